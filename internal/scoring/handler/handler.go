package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trustscore/internal/scoring/models"
	"trustscore/internal/scoring/registry"
	"trustscore/internal/scoring/service"
	"trustscore/pkg/platform/httputil"
	"trustscore/pkg/requestcontext"
)

// Service defines the scoring operations exposed over HTTP.
type Service interface {
	GetEvaluation(ctx context.Context, firmID string) (*service.View, error)
	UpdateFactor(ctx context.Context, firmID string, update service.FactorUpdate) (*service.UpdateResult, error)
	UpdateFactors(ctx context.Context, firmID string, updates []service.FactorUpdate) (*service.UpdateResult, error)
	ClearFactor(ctx context.Context, firmID string, ref models.FactorRef) (*service.UpdateResult, error)
	Registry() *registry.Registry
}

// Handler wires scoring endpoints to the scoring service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a scoring handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the public read endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/registry", h.HandleRegistry)
	r.Get("/firms/{firmID}/evaluation", h.HandleGetEvaluation)
}

// RegisterAdmin mounts the write endpoints. The caller is expected to guard r
// with authentication and role checks.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/firms/{firmID}/evaluation/factors", h.HandleUpdateFactor)
	r.Post("/firms/{firmID}/evaluation/factors:batch", h.HandleUpdateFactors)
	r.Delete("/firms/{firmID}/evaluation/factors/{pillarID}/{categoryID}/{factorKey}", h.HandleClearFactor)
}

// HandleRegistry handles GET /registry.
func (h *Handler) HandleRegistry(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FromRegistry(h.service.Registry()))
}

// HandleGetEvaluation handles GET /firms/{firmID}/evaluation.
func (h *Handler) HandleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := chi.URLParam(r, "firmID")

	view, err := h.service.GetEvaluation(ctx, firmID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromView(view))
}

// HandleUpdateFactor handles PUT /admin/firms/{firmID}/evaluation/factors.
func (h *Handler) HandleUpdateFactor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	firmID := chi.URLParam(r, "firmID")
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[UpdateFactorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.UpdateFactor(ctx, firmID, req.ToUpdate())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "factor updated",
		"request_id", requestID,
		"firm_id", firmID,
		"factor", req.Ref().String(),
		"action", string(result.Entry.Action),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// HandleUpdateFactors handles POST /admin/firms/{firmID}/evaluation/factors:batch.
func (h *Handler) HandleUpdateFactors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	firmID := chi.URLParam(r, "firmID")
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[BatchUpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.UpdateFactors(ctx, firmID, req.ToUpdates())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "factors updated",
		"request_id", requestID,
		"firm_id", firmID,
		"count", len(req.Updates),
		"action", string(result.Entry.Action),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// HandleClearFactor handles DELETE /admin/firms/{firmID}/evaluation/factors/{pillarID}/{categoryID}/{factorKey}.
func (h *Handler) HandleClearFactor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := chi.URLParam(r, "firmID")
	ref := models.FactorRef{
		PillarID:   chi.URLParam(r, "pillarID"),
		CategoryID: chi.URLParam(r, "categoryID"),
		FactorKey:  chi.URLParam(r, "factorKey"),
	}

	result, err := h.service.ClearFactor(ctx, firmID, ref)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "factor cleared",
		"request_id", requestcontext.RequestID(ctx),
		"firm_id", firmID,
		"factor", ref.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}
