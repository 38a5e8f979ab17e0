package report

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playground-engine/jobsystem/pkg/config"
	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

func setupTestRepo(t *testing.T) *GormRepository {
	t.Helper()
	repo, err := Open(context.Background(), &config.ReportConfig{Type: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleRun(session string, throughput float64) *BenchRun {
	return &BenchRun{
		SessionID:      session,
		Host:           "bench-host",
		TopologySource: "static",
		CPUs:           12,
		HighWorkers:    6,
		LowWorkers:     4,
		Trees:          8,
		Depth:          3,
		Fanout:         4,
		Jobs:           168,
		DurationNS:     int64(20 * time.Millisecond),
		Throughput:     throughput,
	}
}

func TestGormRepository_SaveAndBySession(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	run := sampleRun("session-1", 8400)
	require.NoError(t, run.SetPlan(map[string]int{"high": 6, "low": 4}))
	require.NoError(t, repo.Save(ctx, run))
	assert.NotZero(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := repo.BySession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, 20*time.Millisecond, got.Duration())
	assert.JSONEq(t, `{"high":6,"low":4}`, string(got.Plan))
}

func TestGormRepository_BySessionNotFound(t *testing.T) {
	repo := setupTestRepo(t)
	_, err := repo.BySession(context.Background(), "missing")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetErrorCode(err))
}

func TestGormRepository_SaveValidation(t *testing.T) {
	repo := setupTestRepo(t)
	err := repo.Save(context.Background(), &BenchRun{})
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))
}

func TestGormRepository_DuplicateSession(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, sampleRun("dup", 1)))

	err := repo.Save(ctx, sampleRun("dup", 2))
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetErrorCode(err))
}

func TestGormRepository_Latest(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, sampleRun(fmt.Sprintf("s%d", i), float64(i))))
	}

	runs, err := repo.Latest(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "s4", runs[0].SessionID)
	assert.Equal(t, "s2", runs[2].SessionID)

	all, err := repo.Latest(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestGormRepository_Summary(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	empty, err := repo.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Runs)

	require.NoError(t, repo.Save(ctx, sampleRun("a", 100)))
	require.NoError(t, repo.Save(ctx, sampleRun("b", 300)))

	sum, err := repo.Summary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, sum.Runs)
	assert.InDelta(t, 200, sum.AvgThroughput, 1e-9)
	assert.InDelta(t, 300, sum.BestThroughput, 1e-9)
	assert.EqualValues(t, 336, sum.TotalJobs)
}

func TestOpen_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	repo, err := Open(ctx, &config.ReportConfig{Type: "sqlite", Path: path})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, sampleRun("persisted", 1)))
	require.NoError(t, repo.Close())

	reopened, err := Open(ctx, &config.ReportConfig{Type: "sqlite", Path: path})
	require.NoError(t, err)
	defer reopened.Close()
	_, err = reopened.BySession(ctx, "persisted")
	assert.NoError(t, err)
}

func TestDialector(t *testing.T) {
	for _, typ := range []string{"sqlite", "mysql", "postgres", "postgresql"} {
		d, err := Dialector(&config.ReportConfig{Type: typ, Path: ":memory:"})
		require.NoError(t, err, typ)
		assert.NotNil(t, d)
	}

	_, err := Dialector(&config.ReportConfig{Type: "oracle"})
	assert.True(t, apperrors.IsConfigError(err))
}
