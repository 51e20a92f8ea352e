package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/white/crm-backend/internal/utils"
	"go.uber.org/zap"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	TenantIDKey contextKey = "tenant_id"
	EmailKey    contextKey = "email"
	NameKey     contextKey = "name"
	RoleKey     contextKey = "role"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("failed to write response", zap.Error(err))
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, code, message string) {
	respondWithJSON(w, statusCode, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// TokenValidator is the part of the JWT service the middleware needs
type TokenValidator interface {
	ValidateAccessToken(token string) (*utils.AccessTokenClaims, error)
}

// JWTAuth is a middleware that validates bearer access tokens and puts the
// caller's identity and tenant into the request context
func JWTAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header is required")
				return
			}

			// Check for Bearer token format
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				respondWithError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authorization header must be in format: Bearer <token>")
				return
			}

			claims, err := validator.ValidateAccessToken(strings.TrimSpace(parts[1]))
			if err != nil {
				message := "Invalid access token"
				if errors.Is(err, utils.ErrTokenExpired) {
					message = "Access token has expired"
				}
				respondWithError(w, http.StatusUnauthorized, "INVALID_TOKEN", message)
				return
			}

			ctx := WithIdentity(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity stores token claims in ctx
func WithIdentity(ctx context.Context, claims *utils.AccessTokenClaims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, TenantIDKey, claims.TenantID)
	ctx = context.WithValue(ctx, EmailKey, claims.Email)
	ctx = context.WithValue(ctx, NameKey, claims.Name)
	ctx = context.WithValue(ctx, RoleKey, claims.Role)
	return ctx
}

func stringValue(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// GetUserID returns the authenticated user's id
func GetUserID(ctx context.Context) string { return stringValue(ctx, UserIDKey) }

// GetTenantID returns the tenant every query must be scoped to
func GetTenantID(ctx context.Context) string { return stringValue(ctx, TenantIDKey) }

func GetEmail(ctx context.Context) string { return stringValue(ctx, EmailKey) }

func GetRole(ctx context.Context) string { return stringValue(ctx, RoleKey) }
