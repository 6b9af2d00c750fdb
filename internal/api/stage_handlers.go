package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/stage-progress/internal/store"
)

const (
	defaultRunLimit   = 50
	maxRunLimit       = 500
	defaultStageLimit = 100
	maxStageLimit     = 1000
	repoTimeout       = 3 * time.Second
)

// StageHandler exposes read-only stage progress endpoints.
type StageHandler struct {
	repo    store.StageRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewStageHandler wires the repository and logger.
func NewStageHandler(repo store.StageRepository, logger *zap.Logger) *StageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StageHandler{
		repo:    repo,
		timeout: repoTimeout,
		logger:  logger,
	}
}

// ListRuns handles GET /api/runs?limit=&offset=. It returns {"runs": [...]}
// on success, 400 for invalid paging, 503 when the repo is unavailable, or 500
// if the repository call fails.
func (h *StageHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "stage repository unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	runs, err := h.repo.ListRuns(ctx, limit, offset)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	out := make([]runDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

// GetRun handles GET /api/runs/{run_id}. It returns {"run": {...}}, 400 for
// malformed IDs and 404 when the repository reports store.ErrNotFound.
func (h *StageHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "stage repository unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.repo.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toRunDTO(run)})
}

// ListStages handles GET /api/runs/{run_id}/stages?limit=&offset=.
func (h *StageHandler) ListStages(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "stage repository unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultStageLimit, maxStageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stages, err := h.repo.ListStages(ctx, runID, limit, offset)
	if err != nil {
		h.logger.Error("list stages failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list stages")
		return
	}
	out := make([]stageDTO, 0, len(stages))
	for _, rec := range stages {
		out = append(out, toStageDTO(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": out})
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "run_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("run_id is required")
	}
	runID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid run_id")
	}
	return runID, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func toRunDTO(run store.RunSummary) runDTO {
	return runDTO{
		RunID:          run.RunID.String(),
		StartedAt:      run.StartedAt,
		LastUpdate:     run.LastUpdate,
		Stages:         run.Stages,
		FinishedStages: run.FinishedStages,
	}
}

func toStageDTO(rec store.StageRecord) stageDTO {
	var percent float64
	if rec.Total > 0 {
		percent = float64(rec.Completed) / float64(rec.Total) * 100
	}
	return stageDTO{
		Stage:        rec.Stage,
		Description:  rec.Description,
		Total:        rec.Total,
		Completed:    rec.Completed,
		Percent:      percent,
		Overshoots:   rec.Overshoots,
		Status:       string(rec.Status),
		RegisteredAt: rec.RegisteredAt,
		UpdatedAt:    rec.UpdatedAt,
		FinishedAt:   rec.FinishedAt,
	}
}

type runDTO struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	LastUpdate     time.Time `json:"last_update"`
	Stages         int64     `json:"stages"`
	FinishedStages int64     `json:"finished_stages"`
}

type stageDTO struct {
	Stage        string     `json:"stage"`
	Description  string     `json:"description"`
	Total        int64      `json:"total"`
	Completed    int64      `json:"completed"`
	Percent      float64    `json:"percent"`
	Overshoots   int64      `json:"overshoots"`
	Status       string     `json:"status"`
	RegisteredAt time.Time  `json:"registered_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
