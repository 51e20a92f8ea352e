package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineStageLookup(t *testing.T) {
	p := Pipeline{Name: "Sales", Stages: []Stage{
		{ID: "s1", Name: "Lead", Probability: 10},
		{ID: "s2", Name: "Qualified", Probability: 30},
	}}

	s, ok := p.Stage("s2")
	require.True(t, ok)
	assert.Equal(t, 30, s.Probability)

	s, ok = p.Stage("qualified")
	require.True(t, ok)
	assert.Equal(t, "s2", s.ID)

	_, ok = p.Stage("won")
	assert.False(t, ok)
}

func TestPipelineValidate(t *testing.T) {
	assert.NoError(t, (&Pipeline{Name: "Sales", Stages: DefaultStages()}).Validate())
	assert.Error(t, (&Pipeline{Name: "Sales"}).Validate())
	assert.Error(t, (&Pipeline{Name: "Sales", Stages: []Stage{{Name: "Odd", Probability: 120}}}).Validate())
}

func TestDealWeightedValue(t *testing.T) {
	d := Deal{Title: "Big", Value: 1000}
	assert.Zero(t, d.WeightedValue())
	d.Probability = ptrInt(30)
	assert.InDelta(t, 300.0, d.WeightedValue(), 0.001)
}

func TestDealValidate(t *testing.T) {
	assert.NoError(t, (&Deal{Title: "x", Status: DealOpen}).Validate())
	assert.Error(t, (&Deal{Title: " "}).Validate())
	assert.Error(t, (&Deal{Title: "x", Value: -1}).Validate())
	assert.Error(t, (&Deal{Title: "x", Status: "maybe"}).Validate())
}

func TestSplitAddresses(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "b@y.com"}, SplitAddresses(" a@x.com, ;b@y.com "))
	assert.Empty(t, SplitAddresses(""))
}

func TestEmailCounterpart(t *testing.T) {
	sent := EmailRecord{Direction: EmailDirectionSend, FromEmail: "me@x.com", ToEmail: "you@y.com"}
	got := EmailRecord{Direction: EmailDirectionReceive, FromEmail: "you@y.com", ToEmail: "me@x.com"}
	assert.Equal(t, "you@y.com", sent.Counterpart())
	assert.Equal(t, "you@y.com", got.Counterpart())
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 41)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, NewPagination(1, 0, 10).TotalPages)
}
