package uuid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUUIDIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := NewUUID()
		require.NoError(t, err)
		require.True(t, IsValid(id))
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestIsValid(t *testing.T) {
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("not-a-uuid"))
	assert.True(t, IsValid("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
}

func TestCreatedAt(t *testing.T) {
	before := time.Now().Add(-time.Second)
	at, err := CreatedAt(MustNewUUID())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), at, 2*time.Second)
	assert.True(t, at.After(before))

	_, err = CreatedAt("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Error(t, err)
}
