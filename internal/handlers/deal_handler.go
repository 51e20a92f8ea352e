package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/models"
)

type DealService interface {
	ListPipelines(ctx context.Context, tenantID string) ([]*models.Pipeline, error)
	CreatePipeline(ctx context.Context, actor events.Actor, p *models.Pipeline) (*models.Pipeline, error)
	ListDeals(ctx context.Context, tenantID string, f models.DealFilter) ([]*models.Deal, error)
	CreateDeal(ctx context.Context, actor events.Actor, d *models.Deal) (*models.Deal, error)
	UpdateDeal(ctx context.Context, actor events.Actor, id string, body []byte) (*models.Deal, error)
	DeleteDeal(ctx context.Context, actor events.Actor, id string) error
}

// DealHandler serves pipelines and the deals moving through them
type DealHandler struct {
	service DealService
}

func NewDealHandler(service DealService) *DealHandler {
	return &DealHandler{service: service}
}

func (h *DealHandler) Register(r *mux.Router) {
	r.HandleFunc("/pipelines", h.ListPipelines).Methods(http.MethodGet)
	r.HandleFunc("/pipelines", h.CreatePipeline).Methods(http.MethodPost)
	r.HandleFunc("/deals", h.ListDeals).Methods(http.MethodGet)
	r.HandleFunc("/deals", h.CreateDeal).Methods(http.MethodPost)
	r.HandleFunc("/deals/{id}", h.UpdateDeal).Methods(http.MethodPut)
	r.HandleFunc("/deals/{id}", h.DeleteDeal).Methods(http.MethodDelete)
}

func (h *DealHandler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := h.service.ListPipelines(r.Context(), tenantFrom(r))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"pipelines": pipelines})
}

func (h *DealHandler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var p models.Pipeline
	if !decodeJSON(w, r, &p) {
		return
	}
	created, err := h.service.CreatePipeline(r.Context(), actorFrom(r), &p)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *DealHandler) ListDeals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	deals, err := h.service.ListDeals(r.Context(), tenantFrom(r), models.DealFilter{
		PipelineID: q.Get("pipeline_id"),
		StageID:    q.Get("stage_id"),
		Status:     models.DealStatus(q.Get("status")),
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if deals == nil {
		deals = []*models.Deal{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"deals": deals})
}

func (h *DealHandler) CreateDeal(w http.ResponseWriter, r *http.Request) {
	var d models.Deal
	if !decodeJSON(w, r, &d) {
		return
	}
	created, err := h.service.CreateDeal(r.Context(), actorFrom(r), &d)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// UpdateDeal merges the body onto the stored deal. Moving stages without a
// probability in the body takes the new stage's probability.
func (h *DealHandler) UpdateDeal(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	deal, err := h.service.UpdateDeal(r.Context(), actorFrom(r), mux.Vars(r)["id"], body)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, deal)
}

func (h *DealHandler) DeleteDeal(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteDeal(r.Context(), actorFrom(r), mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
