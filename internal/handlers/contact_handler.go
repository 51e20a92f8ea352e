package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/models"
)

type ContactService interface {
	List(ctx context.Context, tenantID string, q models.ContactQuery) ([]*models.Contact, models.Pagination, error)
	Get(ctx context.Context, tenantID, id string) (*models.Contact, error)
	Create(ctx context.Context, actor events.Actor, contact *models.Contact) (*models.Contact, error)
	Update(ctx context.Context, actor events.Actor, id string, body []byte) (*models.Contact, error)
	Delete(ctx context.Context, actor events.Actor, id string) error
}

type ContactHandler struct {
	service ContactService
}

func NewContactHandler(service ContactService) *ContactHandler {
	return &ContactHandler{service: service}
}

func (h *ContactHandler) Register(r *mux.Router) {
	r.HandleFunc("/contacts", h.List).Methods(http.MethodGet)
	r.HandleFunc("/contacts", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/contacts/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/contacts/{id}", h.Update).Methods(http.MethodPut)
	r.HandleFunc("/contacts/{id}", h.Delete).Methods(http.MethodDelete)
}

// List godoc
// @Summary List contacts
// @Tags contacts
// @Param page query int false "page number"
// @Param limit query int false "page size"
// @Param search query string false "name, email or company"
// @Router /contacts [get]
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	q := models.ContactQuery{
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 0),
		Search: r.URL.Query().Get("search"),
	}
	contacts, page, err := h.service.List(r.Context(), tenantFrom(r), q)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []*models.Contact{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"contacts":   contacts,
		"pagination": page,
	})
}

func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	contact, err := h.service.Get(r.Context(), tenantFrom(r), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, contact)
}

func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var contact models.Contact
	if !decodeJSON(w, r, &contact) {
		return
	}
	created, err := h.service.Create(r.Context(), actorFrom(r), &contact)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	contact, err := h.service.Update(r.Context(), actorFrom(r), mux.Vars(r)["id"], body)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, contact)
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorFrom(r), mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
