package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/stage-progress/internal/storage/memory"
	"github.com/JakeFAU/stage-progress/internal/store"
)

// ExampleStageHandler_ListRuns shows how to serve the /api/runs endpoint.
func ExampleStageHandler_ListRuns() {
	repo := memory.NewStageStore()
	runID := uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	_ = repo.UpsertStage(context.Background(), store.StageRecord{
		RunID:        runID,
		Stage:        "0",
		Total:        10,
		RegisteredAt: time.Unix(0, 0).UTC(),
	})
	handler := NewStageHandler(repo, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=1", nil)
	rec := httptest.NewRecorder()
	handler.ListRuns(rec, req)

	var payload struct {
		Runs []map[string]any `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		panic(err)
	}
	fmt.Printf("returned runs: %d (%s)\n", len(payload.Runs), payload.Runs[0]["run_id"])
	// Output:
	// returned runs: 1 (00000000-0000-0000-0000-0000000000aa)
}
