package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestReconciliationRun_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN: A run saved as running, then completed
	created := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	run := ReconciliationRun{
		ID:            "run-1",
		ReferenceDate: "2025-03-14",
		Mode:          "today",
		Status:        StatusRunning,
		StartedAt:     &created,
		CreatedAt:     created,
	}
	require.NoError(t, store.SaveReconciliationRun(ctx, run))

	done := created.Add(4 * time.Second)
	run.Status = StatusCompleted
	run.DueCount, run.SentCount, run.FailedCount = 3, 2, 1
	run.CompletedAt = &done
	require.NoError(t, store.SaveReconciliationRun(ctx, run))

	require.NoError(t, store.SaveDeliveries(ctx, "run-1", []Delivery{
		{RowNumber: 4, Name: "Luis", Outcome: "send_failed", Errors: []string{"row 4: send to 5215550002 failed: timeout"}},
		{RowNumber: 2, Name: "Ana", Outcome: "sent"},
		{RowNumber: 3, Name: "Eva", Outcome: "sent"},
	}))

	// WHEN
	got, deliveries, err := store.GetReconciliationRun(ctx, "run-1")

	// THEN: The update replaced the counters and deliveries are in row order
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 3, got.DueCount)
	assert.Equal(t, 2, got.SentCount)
	assert.Equal(t, 1, got.FailedCount)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
	assert.True(t, created.Equal(got.CreatedAt))

	require.Len(t, deliveries, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{deliveries[0].RowNumber, deliveries[1].RowNumber, deliveries[2].RowNumber})
	assert.Empty(t, deliveries[0].Errors)
	assert.Equal(t, []string{"row 4: send to 5215550002 failed: timeout"}, deliveries[2].Errors)
}

func TestGetReconciliationRun_Missing(t *testing.T) {
	store := newTestStore(t)

	run, deliveries, err := store.GetReconciliationRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.Nil(t, deliveries)
}

func TestGetReconciliationRuns_FilterAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, status := range []string{StatusCompleted, StatusRejected, StatusCompleted} {
		require.NoError(t, store.SaveReconciliationRun(ctx, ReconciliationRun{
			ID:            []string{"a", "b", "c"}[i],
			ReferenceDate: "2025-03-14",
			Mode:          "today",
			Status:        status,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := store.GetReconciliationRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")

	completed, err := store.GetReconciliationRuns(ctx, StatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	assert.Equal(t, "c", completed[0].ID)
	assert.Equal(t, "a", completed[1].ID)
}

func TestSaveDeliveries_ReplacesPrevious(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveReconciliationRun(ctx, ReconciliationRun{
		ID: "run-1", ReferenceDate: "2025-03-14", Mode: "today",
		Status: StatusRunning, CreatedAt: time.Now(),
	}))
	require.NoError(t, store.SaveDeliveries(ctx, "run-1", []Delivery{{RowNumber: 2, Outcome: "sent"}}))
	require.NoError(t, store.SaveDeliveries(ctx, "run-1", []Delivery{{RowNumber: 5, Outcome: "write_failed"}}))

	_, deliveries, err := store.GetReconciliationRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, 5, deliveries[0].RowNumber)
}

func TestSaveDeliveries_UnknownRun(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveDeliveries(context.Background(), "ghost", []Delivery{{RowNumber: 2, Outcome: "sent"}})
	assert.Error(t, err, "foreign key rejects deliveries without a run")
}

func TestGetReconciliationRuns_OrderIgnoresFractionAndZone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN: Runs whose RFC3339Nano text would sort out of time order
	plus2 := time.FixedZone("UTC+2", 2*60*60)
	whole := time.Date(2025, 3, 14, 9, 0, 5, 0, time.UTC)
	half := whole.Add(500 * time.Millisecond)
	// 11:00:06 at UTC+2 is 09:00:06 UTC, the newest of the three
	zoned := time.Date(2025, 3, 14, 11, 0, 6, 0, plus2)

	for id, created := range map[string]time.Time{"whole": whole, "half": half, "zoned": zoned} {
		require.NoError(t, store.SaveReconciliationRun(ctx, ReconciliationRun{
			ID: id, ReferenceDate: "2025-03-14", Mode: "today",
			Status: StatusCompleted, CreatedAt: created,
		}))
	}

	// WHEN
	runs, err := store.GetReconciliationRuns(ctx, "")
	require.NoError(t, err)

	// THEN: Newest first by instant
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"zoned", "half", "whole"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	assert.True(t, zoned.Equal(runs[0].CreatedAt))
}
