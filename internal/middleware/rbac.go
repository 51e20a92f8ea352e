package middleware

import (
	"net/http"
)

// RequireRole only lets callers whose token carries one of roles through.
// It must run after JWTAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetRole(r.Context())
			if role == "" {
				respondWithError(w, http.StatusForbidden, "PERMISSION_DENIED", "User role not found")
				return
			}
			if !allowed[role] {
				respondWithError(w, http.StatusForbidden, "PERMISSION_DENIED", "You don't have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
