package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	syncpkg "github.com/teilehaus/searchsync/internal/sync"
	apperrors "github.com/teilehaus/searchsync/pkg/errors"
	"github.com/teilehaus/searchsync/pkg/httputil"
	"github.com/teilehaus/searchsync/pkg/logger"
	"github.com/teilehaus/searchsync/pkg/validator"
)

// AdminHandler exposes the operational sync and rebuild triggers. All of its
// endpoints are idempotent: re-invoking while a previous run is in flight
// either runs redundantly or is rejected with a conflict, never corrupts
// index state.
type AdminHandler struct {
	orch       *syncpkg.Orchestrator
	rebuilder  *syncpkg.Rebuilder
	products   syncpkg.Source
	categories syncpkg.Source
	logger     *slog.Logger
}

func NewAdminHandler(orch *syncpkg.Orchestrator, rebuilder *syncpkg.Rebuilder, products, categories syncpkg.Source, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		orch:       orch,
		rebuilder:  rebuilder,
		products:   products,
		categories: categories,
		logger:     logger,
	}
}

// syncSummary is the response body of the synchronous sync endpoints.
type syncSummary struct {
	Kind       string `json:"kind"`
	Synced     int    `json:"synced"`
	Skipped    int    `json:"skipped"`
	Batches    int    `json:"batches"`
	DurationMs int64  `json:"duration_ms"`
}

func toSummary(s *syncpkg.Summary) syncSummary {
	return syncSummary{
		Kind:       s.Kind,
		Synced:     s.Synced,
		Skipped:    s.Skipped,
		Batches:    s.Batches,
		DurationMs: s.Duration.Milliseconds(),
	}
}

// SyncProducts handles POST /api/v1/admin/sync/products.
func (h *AdminHandler) SyncProducts(w http.ResponseWriter, r *http.Request) {
	h.syncAll(w, r, h.products)
}

// SyncCategories handles POST /api/v1/admin/sync/categories.
func (h *AdminHandler) SyncCategories(w http.ResponseWriter, r *http.Request) {
	h.syncAll(w, r, h.categories)
}

func (h *AdminHandler) syncAll(w http.ResponseWriter, r *http.Request, src syncpkg.Source) {
	summary, err := h.orch.SyncAll(r.Context(), src)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toSummary(summary)})
}

type syncIDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=1000,dive,required"`
}

// SyncProductIDs handles POST /api/v1/admin/sync/products/ids.
func (h *AdminHandler) SyncProductIDs(w http.ResponseWriter, r *http.Request) {
	var req syncIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("request body must be valid JSON"), h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	summary, err := h.orch.SyncIDs(r.Context(), h.products, req.IDs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toSummary(summary)})
}

// Rebuild handles POST /api/v1/admin/rebuild. The rebuild runs detached from
// the request: the handler acknowledges with 202 and the outcome lands in
// the logs. A rebuild already in flight is rejected with 409.
func (h *AdminHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.rebuilder.InProgress() {
		httputil.WriteError(w, r, syncpkg.ErrRebuildInProgress, h.logger)
		return
	}

	// Detach from the request context but keep its logger for correlation.
	ctx := logger.NewContext(context.Background(), logger.FromContext(r.Context()))
	go func() {
		if err := h.rebuilder.RebuildAll(ctx); err != nil {
			if errors.Is(err, syncpkg.ErrRebuildInProgress) {
				return
			}
			h.logger.ErrorContext(ctx, "background rebuild failed", slog.String("error", err.Error()))
		}
	}()

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: map[string]string{
		"status":     "rebuild started",
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}})
}

// ForceSync handles POST /api/v1/admin/rebuild/force: a synchronous full
// category+product sync without clearing the indexes first.
func (h *AdminHandler) ForceSync(w http.ResponseWriter, r *http.Request) {
	if err := h.rebuilder.ForceSync(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "synced"}})
}

// Reconfigure handles POST /api/v1/admin/reconfigure: reapply index settings
// without touching documents.
func (h *AdminHandler) Reconfigure(w http.ResponseWriter, r *http.Request) {
	if err := h.rebuilder.Reconfigure(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "reconfigured"}})
}
