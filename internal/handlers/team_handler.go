package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/middleware"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/internal/services"
)

type UserService interface {
	List(ctx context.Context, tenantID string) ([]models.UserProfile, error)
	Delete(ctx context.Context, actor events.Actor, id string) error
}

type DashboardService interface {
	Get(ctx context.Context, tenantID string) (*services.Dashboard, error)
}

// TeamHandler serves the team listing used by assignee pickers, member
// removal and the dashboard summary.
type TeamHandler struct {
	users     UserService
	dashboard DashboardService
}

func NewTeamHandler(users UserService, dashboard DashboardService) *TeamHandler {
	return &TeamHandler{users: users, dashboard: dashboard}
}

func (h *TeamHandler) Register(r *mux.Router) {
	r.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	r.Handle("/users/{id}",
		middleware.RequireRole(string(models.UserRoleAdmin))(http.HandlerFunc(h.DeleteUser)),
	).Methods(http.MethodDelete)
	r.HandleFunc("/dashboard", h.Dashboard).Methods(http.MethodGet)
}

func (h *TeamHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), tenantFrom(r))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []models.UserProfile{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// DeleteUser removes a team member and revokes their sessions. Admin only.
func (h *TeamHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), actorFrom(r), mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard.Get(r.Context(), tenantFrom(r))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"dashboard": d})
}
