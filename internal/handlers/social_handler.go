package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/models"
)

type SocialService interface {
	ListAccounts(ctx context.Context, tenantID string) ([]*models.SocialAccount, error)
	DisconnectAccount(ctx context.Context, actor events.Actor, id string) error
	ListPosts(ctx context.Context, tenantID string) ([]*models.SocialPost, error)
	CreatePost(ctx context.Context, actor events.Actor, post *models.SocialPost) (*models.SocialPost, error)
	ListLeads(ctx context.Context, tenantID string) ([]*models.Lead, error)
}

type SocialHandler struct {
	service SocialService
}

func NewSocialHandler(service SocialService) *SocialHandler {
	return &SocialHandler{service: service}
}

func (h *SocialHandler) Register(r *mux.Router) {
	r.HandleFunc("/social/accounts", h.ListAccounts).Methods(http.MethodGet)
	r.HandleFunc("/social/accounts/{id}", h.DisconnectAccount).Methods(http.MethodDelete)
	r.HandleFunc("/social/posts", h.ListPosts).Methods(http.MethodGet)
	r.HandleFunc("/social/posts", h.CreatePost).Methods(http.MethodPost)
	r.HandleFunc("/social/leads", h.ListLeads).Methods(http.MethodGet)
}

func (h *SocialHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context(), tenantFrom(r))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []*models.SocialAccount{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}

func (h *SocialHandler) DisconnectAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DisconnectAccount(r.Context(), actorFrom(r), mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SocialHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPosts(r.Context(), tenantFrom(r))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if posts == nil {
		posts = []*models.SocialPost{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

func (h *SocialHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var post models.SocialPost
	if !decodeJSON(w, r, &post) {
		return
	}
	created, err := h.service.CreatePost(r.Context(), actorFrom(r), &post)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *SocialHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.service.ListLeads(r.Context(), tenantFrom(r))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if leads == nil {
		leads = []*models.Lead{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"leads": leads})
}
