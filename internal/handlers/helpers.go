package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/middleware"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/internal/repositories"
	"github.com/white/crm-backend/internal/services"
)

const maxBodyBytes = 1 << 20

// respondWithJSON writes a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("Failed to encode response", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR","message":"Internal server error"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError writes an error response
func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, middleware.ErrorResponse{
		Error: middleware.ErrorDetail{Code: code, Message: message},
	})
}

// respondWithServiceError maps service and repository errors to statuses.
// Unknown errors are logged and answered with a generic 500.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error())
	case repositories.IsNotFound(err):
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", notFoundMessage(err))
	case errors.Is(err, services.ErrChecklistItemNotFound):
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case repositories.IsDuplicateKey(err):
		respondWithError(w, http.StatusConflict, "CONFLICT", "Resource already exists")
	default:
		zap.L().Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("tenant_id", middleware.GetTenantID(r.Context())),
			zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// notFoundMessage picks the domain error out of a wrapped not-found chain.
func notFoundMessage(err error) string {
	for _, domain := range []error{
		repositories.ErrActivityNotFound,
		repositories.ErrContactNotFound,
		repositories.ErrPipelineNotFound,
		repositories.ErrDealNotFound,
		repositories.ErrEmailNotFound,
		repositories.ErrUserNotFound,
		repositories.ErrSocialAccountNotFound,
	} {
		if errors.Is(err, domain) {
			return domain.Error()
		}
	}
	return "Resource not found"
}

// readBody returns the raw request body, capped at maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || len(body) == 0 {
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return nil, false
	}
	return body, true
}

// decodeJSON decodes the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error())
			return false
		}
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return false
	}
	return true
}

// actorFrom builds the audit actor from the authenticated request.
func actorFrom(r *http.Request) events.Actor {
	ctx := r.Context()
	return events.Actor{
		TenantID:  middleware.GetTenantID(ctx),
		UserID:    middleware.GetUserID(ctx),
		UserEmail: middleware.GetEmail(ctx),
	}
}

func tenantFrom(r *http.Request) string {
	return middleware.GetTenantID(r.Context())
}

// queryInt parses an integer query parameter, returning def when absent or invalid.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
