package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/models"
)

// ActivityService is the activity behaviour the handler exposes.
type ActivityService interface {
	List(ctx context.Context, tenantID string, f models.ActivityFilter) ([]*models.Activity, error)
	Get(ctx context.Context, tenantID, id string) (*models.Activity, error)
	Stats(ctx context.Context, tenantID string) (*models.ActivityStats, error)
	Create(ctx context.Context, actor events.Actor, body []byte) (*models.Activity, error)
	Update(ctx context.Context, actor events.Actor, id string, body []byte) (*models.Activity, error)
	Complete(ctx context.Context, actor events.Actor, id string) (*models.Activity, *models.Activity, error)
	ToggleChecklist(ctx context.Context, actor events.Actor, id, itemID string, completed bool) (*models.Activity, error)
	Escalate(ctx context.Context, actor events.Actor, id, reason string) (*models.Activity, error)
	Snooze(ctx context.Context, actor events.Actor, id string, until time.Time) (*models.Activity, error)
	Delete(ctx context.Context, actor events.Actor, id string) error
}

// ActivityHandler handles the /activities endpoints
type ActivityHandler struct {
	service ActivityService
}

func NewActivityHandler(service ActivityService) *ActivityHandler {
	return &ActivityHandler{service: service}
}

func (h *ActivityHandler) Register(r *mux.Router) {
	r.HandleFunc("/activities", h.List).Methods(http.MethodGet)
	r.HandleFunc("/activities", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/activities/stats", h.Stats).Methods(http.MethodGet)
	r.HandleFunc("/activities/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/activities/{id}", h.Update).Methods(http.MethodPut)
	r.HandleFunc("/activities/{id}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/activities/{id}/complete", h.Complete).Methods(http.MethodPut)
	r.HandleFunc("/activities/{id}/checklist", h.ToggleChecklist).Methods(http.MethodPut)
	r.HandleFunc("/activities/{id}/escalate", h.Escalate).Methods(http.MethodPut)
	r.HandleFunc("/activities/{id}/snooze", h.Snooze).Methods(http.MethodPut)
}

// List godoc
// @Summary List activities
// @Tags activities
// @Param type query string false "activity type"
// @Param is_completed query bool false "completion filter"
// @Param limit query int false "max results"
// @Success 200 {object} map[string][]models.Activity
// @Router /activities [get]
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ActivityFilter{
		Type:       models.ActivityType(q.Get("type")),
		AssignedTo: q.Get("assigned_to"),
		ContactID:  q.Get("contact_id"),
		Limit:      queryInt(r, "limit", 0),
	}
	if v := q.Get("is_completed"); v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "is_completed must be true or false")
			return
		}
		filter.IsCompleted = &completed
	}

	activities, err := h.service.List(r.Context(), tenantFrom(r), filter)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if activities == nil {
		activities = []*models.Activity{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"activities": activities})
}

func (h *ActivityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), tenantFrom(r))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	activity, err := h.service.Get(r.Context(), tenantFrom(r), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	activity, err := h.service.Create(r.Context(), actorFrom(r), body)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, activity)
}

func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	activity, err := h.service.Update(r.Context(), actorFrom(r), mux.Vars(r)["id"], body)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, activity)
}

// Complete answers with the completed activity. For recurring tasks the
// id of the follow-up instance is sent in X-Next-Activity-ID.
func (h *ActivityHandler) Complete(w http.ResponseWriter, r *http.Request) {
	activity, next, err := h.service.Complete(r.Context(), actorFrom(r), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if next != nil {
		w.Header().Set("X-Next-Activity-ID", next.ID)
	}
	respondWithJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) ToggleChecklist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID    string `json:"itemId"`
		Completed *bool  `json:"completed"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ItemID == "" || req.Completed == nil {
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "itemId and completed are required")
		return
	}

	activity, err := h.service.ToggleChecklist(r.Context(), actorFrom(r), mux.Vars(r)["id"], req.ItemID, *req.Completed)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	activity, err := h.service.Escalate(r.Context(), actorFrom(r), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Until time.Time `json:"until"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Until.IsZero() {
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "until is required")
		return
	}
	activity, err := h.service.Snooze(r.Context(), actorFrom(r), mux.Vars(r)["id"], req.Until)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorFrom(r), mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
