package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfsummary/internal/pkg/audit"
	"perfsummary/internal/pkg/models"
)

func setupTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

var start = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func outcome(name string, state audit.State, attempts int, err error) audit.Outcome {
	return audit.Outcome{
		Target:     models.Target{Name: name, URL: "https://shop.example.com/" + name},
		State:      state,
		Attempts:   attempts,
		Err:        err,
		StartedAt:  start,
		FinishedAt: start.Add(42 * time.Second),
	}
}

func TestRecordAndReadRun(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)

	require.NoError(t, ledger.Record(ctx, "run-1", outcome("home", audit.StateSuccess, 1, nil)))
	require.NoError(t, ledger.Record(ctx, "run-1", outcome("cart", audit.StateSkipped, 2, errors.New("Target closed"))))
	require.NoError(t, ledger.Record(ctx, "run-2", outcome("home", audit.StateSuccess, 1, nil)))

	entries, err := ledger.Run(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, Entry{
		RunID:      "run-1",
		Name:       "home",
		URL:        "https://shop.example.com/home",
		State:      "success",
		Attempts:   1,
		StartedAt:  start,
		FinishedAt: start.Add(42 * time.Second),
	}, entries[0])
	assert.Equal(t, "cart", entries[1].Name)
	assert.Equal(t, "skipped", entries[1].State)
	assert.Equal(t, 2, entries[1].Attempts)
	assert.Equal(t, "Target closed", entries[1].Error)
}

// Validates that Latest keeps only the newest outcome for each page.
func TestLatestPerTarget(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)

	require.NoError(t, ledger.Record(ctx, "run-1", outcome("home", audit.StateSkipped, 2, errors.New("boom"))))
	require.NoError(t, ledger.Record(ctx, "run-1", outcome("cart", audit.StateSuccess, 1, nil)))
	require.NoError(t, ledger.Record(ctx, "run-2", outcome("home", audit.StateSuccess, 2, nil)))

	entries, err := ledger.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "cart", entries[0].Name)
	assert.Equal(t, "home", entries[1].Name)
	assert.Equal(t, "run-2", entries[1].RunID)
	assert.Equal(t, "success", entries[1].State)
}

// Validates that an outcome which has not reached success or skipped is refused.
func TestRecordRejectsInFlightOutcome(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)

	for _, state := range []audit.State{audit.StatePending, audit.StateAttempting, audit.StateRetryScheduled} {
		err := ledger.Record(ctx, "run-1", outcome("home", state, 1, nil))
		assert.ErrorContains(t, err, state.String())
	}

	entries, err := ledger.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnknownRunIsEmpty(t *testing.T) {
	entries, err := setupTestLedger(t).Run(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedgerPersistsOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	ledger, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, ledger.Record(ctx, "run-1", outcome("home", audit.StateSuccess, 1, nil)))
	require.NoError(t, ledger.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

var _ audit.Recorder = (*Ledger)(nil)
