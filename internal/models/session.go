package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Session is one login. Only the hash of its refresh token is stored, so a
// leaked sessions collection cannot be replayed against /auth/refresh.
// Collection: sessions (expired documents are dropped by a TTL index)
type Session struct {
	ID        string     `bson:"_id" json:"id"`
	UserID    string     `bson:"user_id" json:"user_id"`
	TenantID  string     `bson:"tenant_id" json:"tenant_id"`
	TokenHash string     `bson:"token_hash" json:"-"`
	IssuedAt  time.Time  `bson:"issued_at" json:"issued_at"`
	ExpiresAt time.Time  `bson:"expires_at" json:"expires_at"`
	Client    ClientInfo `bson:"client" json:"client"`
	RevokedAt *time.Time `bson:"revoked_at,omitempty" json:"revoked_at,omitempty"`
}

// ClientInfo identifies where a login came from.
type ClientInfo struct {
	IPAddress string `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	UserAgent string `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
}

// HashRefreshToken is the lookup key a session is stored under.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Active reports whether the session can still mint access tokens at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}
