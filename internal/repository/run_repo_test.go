package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/orisweep/internal/config"
	"github.com/timmy/orisweep/internal/domain"
)

func newTestRepo(t *testing.T) *RunRepository {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "history", "orisweep.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return NewRunRepository(db)
}

func TestRunRepositoryRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	older := &domain.ExportRun{ID: "11111111-aaaa", FileType: "annual", ExamplePrefix: "CrimeTrend", Status: domain.RunStatusRunning, StartedAt: time.Now().Add(-time.Hour)}
	newer := &domain.ExportRun{ID: "22222222-bbbb", FileType: "monthly", ExamplePrefix: "CrimeTrend", Status: domain.RunStatusRunning, StartedAt: time.Now()}
	require.NoError(t, repo.CreateRun(ctx, older))
	require.NoError(t, repo.CreateRun(ctx, newer))

	for i, ori := range []string{"CD0020000", "AB0010000"} {
		require.NoError(t, repo.AddResult(ctx, &domain.ExportResult{
			RunID:    newer.ID,
			Position: 1 - i,
			ORI:      ori,
			Outcome:  domain.OutcomeSucceeded,
			Attempts: 1,
		}))
	}

	newer.Status = domain.RunStatusCompleted
	newer.Succeeded = 2
	newer.TotalItems = 2
	done := time.Now()
	newer.CompletedAt = &done
	require.NoError(t, repo.UpdateRun(ctx, newer))

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, domain.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 2, runs[0].Succeeded)
	assert.NotNil(t, runs[0].CompletedAt)

	limited, err := repo.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	results, err := repo.GetResults(ctx, newer.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "AB0010000", results[0].ORI)
	assert.Equal(t, "CD0020000", results[1].ORI)

	found, err := repo.FindRunsByPrefix(ctx, "1111")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, older.ID, found[0].ID)
}

func TestInitDBRejectsUnknownDriver(t *testing.T) {
	_, err := InitDB(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
