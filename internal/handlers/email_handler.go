package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/inbox"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/internal/services"
)

type EmailService interface {
	List(ctx context.Context, tenantID string, limit int) ([]*models.EmailRecord, error)
	Conversations(ctx context.Context, tenantID string) ([]inbox.Conversation, error)
	Send(ctx context.Context, actor events.Actor, req services.SendRequest) (*models.EmailRecord, error)
	Reply(ctx context.Context, actor events.Actor, id, message string, all bool) (*models.EmailRecord, error)
	MarkRead(ctx context.Context, tenantID, id string) error
	Delete(ctx context.Context, actor events.Actor, id string) error
}

type EmailHandler struct {
	service EmailService
}

func NewEmailHandler(service EmailService) *EmailHandler {
	return &EmailHandler{service: service}
}

func (h *EmailHandler) Register(r *mux.Router) {
	r.HandleFunc("/email", h.List).Methods(http.MethodGet)
	r.HandleFunc("/email/conversations", h.Conversations).Methods(http.MethodGet)
	r.HandleFunc("/email/send", h.Send).Methods(http.MethodPost)
	r.HandleFunc("/email/{id}/reply", h.Reply).Methods(http.MethodPost)
	r.HandleFunc("/email/{id}/reply-all", h.ReplyAll).Methods(http.MethodPost)
	r.HandleFunc("/email/{id}/read", h.MarkRead).Methods(http.MethodPut)
	r.HandleFunc("/email/{id}", h.Delete).Methods(http.MethodDelete)
}

func (h *EmailHandler) List(w http.ResponseWriter, r *http.Request) {
	emails, err := h.service.List(r.Context(), tenantFrom(r), queryInt(r, "limit", 0))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if emails == nil {
		emails = []*models.EmailRecord{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"emails": emails})
}

// Conversations groups the mailbox per counterpart, newest first.
func (h *EmailHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.service.Conversations(r.Context(), tenantFrom(r))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if convs == nil {
		convs = []inbox.Conversation{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"conversations": convs})
}

// Send godoc
// @Summary Send an email
// @Description "to" may be a list or a comma separated string; more than one recipient is a bulk send
// @Tags email
// @Router /email/send [post]
func (h *EmailHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req services.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	record, err := h.service.Send(r.Context(), actorFrom(r), req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, record)
}

func (h *EmailHandler) Reply(w http.ResponseWriter, r *http.Request) {
	h.reply(w, r, false)
}

func (h *EmailHandler) ReplyAll(w http.ResponseWriter, r *http.Request) {
	h.reply(w, r, true)
}

func (h *EmailHandler) reply(w http.ResponseWriter, r *http.Request, all bool) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	record, err := h.service.Reply(r.Context(), actorFrom(r), mux.Vars(r)["id"], req.Message, all)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, record)
}

func (h *EmailHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarkRead(r.Context(), tenantFrom(r), mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EmailHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorFrom(r), mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
