package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/middleware"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/internal/ratelimit"
	"github.com/white/crm-backend/internal/services"
)

type AuthService interface {
	Login(ctx context.Context, email, password string, client services.ClientInfo) (*models.User, *models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) (*models.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

type AuthHandler struct {
	authService AuthService
	audit       *events.AuditPublisher
}

func NewAuthHandler(authService AuthService, audit *events.AuditPublisher) *AuthHandler {
	return &AuthHandler{authService: authService, audit: audit}
}

// RegisterPublic mounts the endpoints reachable without a token.
func (h *AuthHandler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", h.Refresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
}

func (h *AuthHandler) Register(r *mux.Router) {
	r.HandleFunc("/auth/me", h.Me).Methods(http.MethodGet)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User   models.UserProfile `json:"user"`
	Tokens *models.TokenPair  `json:"tokens"`
}

// RateLimitResponse is the 429 body of a locked login.
type RateLimitResponse struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
	Limit      int    `json:"limit"`
	Current    int    `json:"current"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login godoc
// @Summary Log in with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "credentials"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 429 {object} RateLimitResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	actor := events.Actor{UserEmail: email}

	user, tokens, err := h.authService.Login(r.Context(), email, req.Password, services.ClientInfo{
		IPAddress: events.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if rl, ok := services.AsRateLimited(err); ok {
			h.audit.PublishAuthEvent(r, actor, events.ActionLoginLocked, false, rl.Error())
			seconds := ratelimit.RetryAfterSeconds(rl.RetryAfter)
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			respondWithJSON(w, http.StatusTooManyRequests, RateLimitResponse{
				Message:    "Too many login attempts. Please try again later.",
				RetryAfter: seconds,
				Limit:      rl.Limit,
				Current:    rl.Current,
			})
			return
		}
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			h.audit.PublishAuthEvent(r, actor, events.ActionLoginFailed, false, "invalid credentials")
			respondWithError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		case errors.Is(err, services.ErrAccountInactive):
			h.audit.PublishAuthEvent(r, actor, events.ActionLoginFailed, false, "account inactive")
			respondWithError(w, http.StatusForbidden, "ACCOUNT_INACTIVE", "Account is inactive")
		default:
			respondWithServiceError(w, r, err)
		}
		return
	}

	h.audit.PublishAuthEvent(r, events.Actor{TenantID: user.TenantID, UserID: user.ID, UserEmail: user.Email},
		events.ActionLogin, true, "login successful")
	respondWithJSON(w, http.StatusOK, LoginResponse{User: user.ToProfile(), Tokens: tokens})
}

// Me returns the authenticated user's profile
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, services.ErrAccountInactive) {
			respondWithError(w, http.StatusForbidden, "ACCOUNT_INACTIVE", "Account is inactive")
			return
		}
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user.ToProfile())
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tokens, err := h.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondWithTokenError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"tokens": tokens})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.authService.Logout(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondWithTokenError(w, r, err)
		return
	}
	h.audit.PublishAuthEvent(r, events.Actor{TenantID: user.TenantID, UserID: user.ID, UserEmail: user.Email},
		events.ActionLogout, true, "logout")
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) respondWithTokenError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRefreshToken), errors.Is(err, services.ErrSessionRevoked):
		respondWithError(w, http.StatusUnauthorized, "INVALID_TOKEN", err.Error())
	case errors.Is(err, services.ErrAccountInactive):
		respondWithError(w, http.StatusForbidden, "ACCOUNT_INACTIVE", "Account is inactive")
	default:
		respondWithServiceError(w, r, err)
	}
}
