package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trustscore/internal/audit"
	dErrors "trustscore/pkg/domain-errors"
	"trustscore/pkg/platform/httputil"
	"trustscore/pkg/requestcontext"
)

// Service is the audit query surface.
type Service interface {
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*audit.Entry, error)
}

// Handler exposes the audit log to administrators.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts audit endpoints on an admin router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.HandleList)
}

// ListResponse is the body of GET /admin/audit.
type ListResponse struct {
	Entries []*audit.Entry `json:"entries"`
	Count   int            `json:"count"`
}

// HandleList handles GET /admin/audit?entityType=...&entityId=...&limit=n.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries, err := h.service.ListByEntity(ctx, q.Get("entityType"), q.Get("entityId"), limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Entries: entries, Count: len(entries)})
}
