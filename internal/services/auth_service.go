package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/internal/ratelimit"
	"github.com/white/crm-backend/internal/repositories"
	"github.com/white/crm-backend/pkg/uuid"
)

// ClientInfo describes where a login came from. It is stored on the session.
type ClientInfo = models.ClientInfo

type AuthService struct {
	userRepo    UserRepository
	sessionRepo SessionRepository
	tokens      TokenIssuer
	limiter     ratelimit.Limiter
	now         func() time.Time
}

func NewAuthService(
	userRepo UserRepository,
	sessionRepo SessionRepository,
	tokens TokenIssuer,
	limiter ratelimit.Limiter,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		limiter:     limiter,
		now:         time.Now,
	}
}

// Login authenticates a user and returns tokens. Every attempt counts against
// the address; a successful login clears the counter.
func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (*models.User, *models.TokenPair, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" || password == "" {
		return nil, nil, models.NewValidationError("email", "email and password are required")
	}

	if s.limiter != nil {
		res, err := s.limiter.Hit(ctx, key)
		if err != nil {
			// Fail open when the counter store is down.
			zap.L().Warn("Login rate limiter unavailable", zap.Error(err))
		} else if !res.Allowed {
			return nil, nil, &RateLimitedError{RetryAfter: res.RetryAfter, Limit: res.Limit, Current: res.Current}
		}
	}

	user, err := s.userRepo.GetByEmail(ctx, key)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, ErrAccountInactive
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, key); err != nil {
			zap.L().Warn("Failed to reset login attempts", zap.Error(err))
		}
	}

	tokens, err := s.createSession(ctx, user, client)
	if err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		zap.L().Warn("Failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now

	return user, tokens, nil
}

func (s *AuthService) createSession(ctx context.Context, user *models.User, client ClientInfo) (*models.TokenPair, error) {
	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.tokens.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := s.now().UTC()
	session := &models.Session{
		ID:        uuid.MustNewUUID(),
		UserID:    user.ID,
		TenantID:  user.TenantID,
		TokenHash: models.HashRefreshToken(refreshToken),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokens.RefreshTokenTTL()),
		Client:    client,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.AccessTokenTTL().Seconds()),
	}, nil
}

// sessionFor resolves a refresh token to its live session and user.
func (s *AuthService) sessionFor(ctx context.Context, refreshToken string) (*models.Session, *models.User, error) {
	userID, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, nil, ErrInvalidRefreshToken
	}
	session, err := s.sessionRepo.GetByTokenHash(ctx, models.HashRefreshToken(refreshToken))
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, nil, ErrInvalidRefreshToken
		}
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !session.Active(s.now()) {
		return nil, nil, ErrSessionRevoked
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, nil, ErrInvalidRefreshToken
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	return session, user, nil
}

// Logout revokes the session behind refreshToken and returns its user for
// event publishing.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (*models.User, error) {
	session, user, err := s.sessionFor(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.Revoke(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("failed to revoke session: %w", err)
	}
	return user, nil
}

// RefreshToken issues a new access token. The refresh token is kept.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	_, user, err := s.sessionFor(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.AccessTokenTTL().Seconds()),
	}, nil
}

// Me returns the caller's profile.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	return user, nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", models.NewValidationError("password", "password must be at least 8 characters")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// VerifyPassword verifies a password against a hash
func VerifyPassword(hashedPassword, password string) error {
	if hashedPassword == "" {
		return errors.New("no password set")
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
