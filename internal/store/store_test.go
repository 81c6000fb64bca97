package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stocksync/internal/core"
)

func sampleRun(id string, started time.Time) core.ImportRun {
	qty := 25
	return core.ImportRun{
		ID:          id,
		FileName:    "stock.csv",
		RequestedBy: "10.0.0.7",
		StartedAt:   started,
		FinishedAt:  started.Add(3 * time.Second),
		Summary:     core.BatchSummary{Total: 2, Succeeded: 1, Failed: 1},
		Outcomes: []core.ReconciliationOutcome{
			{Line: 2, SKU: "VDJ-001", Status: core.StatusSucceeded, NewQuantity: &qty},
			{Line: 3, SKU: "NOPE", Status: core.StatusFailed, ErrorDetail: core.DetailSKUNotFound},
		},
	}
}

// historyContract runs the behaviour every core.HistoryStore must have.
func historyContract(t *testing.T, s core.HistoryStore) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	oldID, midID, newID := uuid.NewString(), uuid.NewString(), uuid.NewString()
	require.NoError(t, s.SaveRun(ctx, sampleRun(oldID, base.Add(-48*time.Hour))))
	require.NoError(t, s.SaveRun(ctx, sampleRun(midID, base.Add(-time.Hour))))
	require.NoError(t, s.SaveRun(ctx, sampleRun(newID, base)))

	got, err := s.GetRun(ctx, midID)
	require.NoError(t, err)
	assert.Equal(t, "stock.csv", got.FileName)
	assert.Equal(t, "10.0.0.7", got.RequestedBy)
	assert.Equal(t, core.BatchSummary{Total: 2, Succeeded: 1, Failed: 1}, got.Summary)
	require.Len(t, got.Outcomes, 2)
	require.NotNil(t, got.Outcomes[0].NewQuantity)
	assert.Equal(t, 25, *got.Outcomes[0].NewQuantity)
	assert.Nil(t, got.Outcomes[1].NewQuantity)
	assert.Equal(t, core.DetailSKUNotFound, got.Outcomes[1].ErrorDetail)

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newID, runs[0].ID)
	assert.Equal(t, midID, runs[1].ID)
	assert.Empty(t, runs[0].Outcomes)

	_, err = s.GetRun(ctx, uuid.NewString())
	assert.ErrorIs(t, err, core.ErrImportNotFound)

	pruned, err := s.PruneRuns(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pruned, int64(1))
	_, err = s.GetRun(ctx, oldID)
	assert.ErrorIs(t, err, core.ErrImportNotFound)
	_, err = s.GetRun(ctx, newID)
	assert.NoError(t, err)
}

func TestMemoryStore(t *testing.T) {
	historyContract(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	run := sampleRun("r1", time.Now())
	require.NoError(t, s.SaveRun(ctx, run))

	run.Outcomes[0].SKU = "mutated"
	got, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "VDJ-001", got.Outcomes[0].SKU)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := NewPostgresStore(pool)
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.Ping(ctx))

	_, err = pool.Exec(ctx, `TRUNCATE import_runs CASCADE`)
	require.NoError(t, err)

	historyContract(t, s)
}
