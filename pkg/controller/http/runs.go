package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// RunsHandler serves recorded runs
type RunsHandler struct {
	store interfaces.RunStore
}

// NewRunsHandler creates a new RunsHandler
func NewRunsHandler(store interfaces.RunStore) *RunsHandler {
	return &RunsHandler{store: store}
}

// List returns recent runs, newest first. ?limit= caps the page size.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, goerr.New("invalid limit parameter"), http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(ctx, limit)
	if err != nil {
		ctxlog.From(ctx).Error("Failed to list runs", "error", err)
		writeError(w, goerr.New("failed to list runs"), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]any{"runs": runs}); err != nil {
		ctxlog.From(ctx).Error("Failed to encode runs response", "error", err)
	}
}

// Get returns one run by ID
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runID := chi.URLParam(r, "runID")
	if !model.ValidRunID(runID) {
		writeError(w, goerr.New("invalid run ID"), http.StatusBadRequest)
		return
	}

	run, err := h.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, types.ErrRunNotFound) {
			writeError(w, types.ErrRunNotFound, http.StatusNotFound)
			return
		}
		ctxlog.From(ctx).Error("Failed to load run", "run_id", runID, "error", err)
		writeError(w, goerr.New("failed to load run"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(run); err != nil {
		ctxlog.From(ctx).Error("Failed to encode run response", "error", err)
	}
}
