package utils

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/white/crm-backend/config"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/pkg/uuid"
)

const issuer = "crm-api"

// ErrTokenExpired is returned for a well-formed token past its expiry
var ErrTokenExpired = errors.New("token expired")

// JWTService handles JWT token generation and validation
type JWTService struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	kid       string
	config    config.JWTConfig
	now       func() time.Time
}

// AccessTokenClaims represents the claims in an access token
type AccessTokenClaims struct {
	UserID   string `json:"sub"` // Subject - User ID
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTService creates a new JWT service. An RSA key pair selects RS256;
// otherwise the shared secret selects HS256.
func NewJWTService(cfg config.JWTConfig) (*JWTService, error) {
	s := &JWTService{config: cfg, now: time.Now}

	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		privateKey, publicKey, err := loadRSAKeys(cfg.PrivateKeyPath, cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		s.method = jwt.SigningMethodRS256
		s.signKey = privateKey
		s.verifyKey = publicKey
		s.kid = KeyID(publicKey)
		return s, nil
	}

	if cfg.SharedSecret == "" {
		return nil, fmt.Errorf("jwt: either a key pair or a shared secret must be configured")
	}
	s.method = jwt.SigningMethodHS256
	s.signKey = []byte(cfg.SharedSecret)
	s.verifyKey = []byte(cfg.SharedSecret)
	return s, nil
}

func loadRSAKeys(privatePath, publicPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read private key: %w", err)
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read public key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return privateKey, publicKey, nil
}

// AccessTokenTTL is how long an access token stays valid
func (s *JWTService) AccessTokenTTL() time.Duration {
	return time.Duration(s.config.AccessTokenExpiry) * time.Minute
}

// RefreshTokenTTL is how long a refresh token stays valid
func (s *JWTService) RefreshTokenTTL() time.Duration {
	return time.Duration(s.config.RefreshTokenExpiry) * 24 * time.Hour
}

// GenerateAccessToken signs a short-lived token carrying the user's tenant and role
func (s *JWTService) GenerateAccessToken(user *models.User) (string, error) {
	now := s.now()
	claims := AccessTokenClaims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Email:    user.Email,
		Name:     user.Name,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.AccessTokenTTL())),
			Issuer:    issuer,
		},
	}

	return s.sign(claims)
}

func (s *JWTService) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(s.method, claims)
	if s.kid != "" {
		token.Header["kid"] = s.kid
	}
	return token.SignedString(s.signKey)
}

// GenerateRefreshToken generates a new refresh token. Each token has a
// unique id so two issued in the same second never collide.
func (s *JWTService) GenerateRefreshToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.MustNewUUID(),
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.RefreshTokenTTL())),
		Issuer:    issuer,
	}

	return s.sign(claims)
}

func (s *JWTService) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method.Alg() != s.method.Alg() {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.verifyKey, nil
}

func (s *JWTService) parserOptions() []jwt.ParserOption {
	return []jwt.ParserOption{jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now)}
}

// ValidateAccessToken validates an access token and returns the claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, s.keyFunc, s.parserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*AccessTokenClaims); ok && token.Valid {
		if claims.TenantID == "" || claims.UserID == "" {
			return nil, fmt.Errorf("invalid token: missing subject or tenant")
		}
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// ValidateRefreshToken validates a refresh token and returns the user ID
func (s *JWTService) ValidateRefreshToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, s.keyFunc, s.parserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*jwt.RegisteredClaims); ok && token.Valid && claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", fmt.Errorf("invalid token")
}
