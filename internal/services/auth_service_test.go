package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/white/crm-backend/config"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/internal/ratelimit"
	"github.com/white/crm-backend/internal/utils"
)

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserRepo, *fakeSessionRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	users := newFakeUserRepo(
		&models.User{ID: "u1", TenantID: "t1", Email: "Rep@Acme.io", Name: "Rep", Role: models.UserRoleSalesRep, IsActive: true, PasswordHash: string(hash)},
		&models.User{ID: "u2", TenantID: "t1", Email: "gone@acme.io", Name: "Gone", IsActive: false, PasswordHash: string(hash)},
	)
	sessions := newFakeSessionRepo()
	jwtService, err := utils.NewJWTService(config.JWTConfig{SharedSecret: "test", AccessTokenExpiry: 15, RefreshTokenExpiry: 7})
	require.NoError(t, err)

	svc := NewAuthService(users, sessions, jwtService, ratelimit.NewMemoryLimiter(5, 15*time.Minute))
	return svc, users, sessions
}

func TestLogin(t *testing.T) {
	svc, users, sessions := newAuthFixture(t)

	user, tokens, err := svc.Login(context.Background(), " rep@acme.io ", "s3cret-pass", ClientInfo{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.Equal(t, 900, tokens.ExpiresIn)
	assert.NotEmpty(t, tokens.AccessToken)

	_, raw := sessions.sessions[tokens.RefreshToken]
	assert.False(t, raw, "refresh token must not be stored in clear")
	session, ok := sessions.sessions[models.HashRefreshToken(tokens.RefreshToken)]
	require.True(t, ok)
	assert.Equal(t, "t1", session.TenantID)
	assert.Equal(t, "10.0.0.1", session.Client.IPAddress)
	assert.Contains(t, users.lastLogin, "u1")
}

func TestLoginFailures(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "rep@acme.io", "wrong", ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@acme.io", "s3cret-pass", ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "gone@acme.io", "s3cret-pass", ClientInfo{})
	assert.ErrorIs(t, err, ErrAccountInactive)

	_, _, err = svc.Login(ctx, "", "", ClientInfo{})
	assert.True(t, models.IsValidationError(err))
}

func TestLoginRateLimited(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := svc.Login(ctx, "rep@acme.io", "wrong", ClientInfo{})
		require.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i+1)
	}

	_, _, err := svc.Login(ctx, "REP@acme.io", "s3cret-pass", ClientInfo{})
	rl, ok := AsRateLimited(err)
	require.True(t, ok, "sixth attempt should be rate limited, got %v", err)
	assert.Equal(t, 5, rl.Limit)
	assert.Equal(t, 6, rl.Current)
	assert.Greater(t, rl.RetryAfter, time.Duration(0))

	_, _, err = svc.Login(ctx, "other@acme.io", "whatever", ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "other addresses keep their own budget")
}

func TestSuccessfulLoginResetsAttempts(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _, _ = svc.Login(ctx, "rep@acme.io", "wrong", ClientInfo{})
	}
	_, _, err := svc.Login(ctx, "rep@acme.io", "s3cret-pass", ClientInfo{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _, err = svc.Login(ctx, "rep@acme.io", "wrong", ClientInfo{})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, tokens, err := svc.Login(ctx, "rep@acme.io", "s3cret-pass", ClientInfo{})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, tokens.RefreshToken, refreshed.RefreshToken)
	assert.NotEmpty(t, refreshed.AccessToken)

	user, err := svc.Logout(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	_, err = svc.RefreshToken(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	_, err = svc.RefreshToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestMe(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	user, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Rep", user.Name)

	_, err = svc.Me(context.Background(), "u2")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("short")
	assert.True(t, models.IsValidationError(err))

	hash, err := HashPassword("long-enough")
	require.NoError(t, err)
	assert.NoError(t, VerifyPassword(hash, "long-enough"))
	assert.Error(t, VerifyPassword(hash, "other"))
	assert.Error(t, VerifyPassword("", "long-enough"))
}
