package report

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

// Repository stores bench runs.
type Repository interface {
	// Save inserts run and fills its ID.
	Save(ctx context.Context, run *BenchRun) error

	// Latest returns up to limit runs, newest first.
	Latest(ctx context.Context, limit int) ([]BenchRun, error)

	// BySession returns the run recorded for sessionID.
	BySession(ctx context.Context, sessionID string) (*BenchRun, error)

	// Summary aggregates every stored run.
	Summary(ctx context.Context) (*RunSummary, error)
}

// GormRepository implements Repository using GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GormRepository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// AutoMigrate creates or updates the bench_runs table.
func (r *GormRepository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&BenchRun{}); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "migrate bench_runs", err)
	}
	return nil
}

// Save inserts run.
func (r *GormRepository) Save(ctx context.Context, run *BenchRun) error {
	if run == nil || run.SessionID == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "bench run has no session id")
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "save bench run", err)
	}
	return nil
}

// Latest returns the newest runs.
func (r *GormRepository) Latest(ctx context.Context, limit int) ([]BenchRun, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []BenchRun
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "query bench runs", err)
	}
	return runs, nil
}

// BySession looks a run up by its session id.
func (r *GormRepository) BySession(ctx context.Context, sessionID string) (*BenchRun, error) {
	var run BenchRun
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "bench run not found: %s", sessionID)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "get bench run", err)
	}
	return &run, nil
}

// Summary computes run count and throughput statistics.
func (r *GormRepository) Summary(ctx context.Context) (*RunSummary, error) {
	var sum RunSummary
	err := r.db.WithContext(ctx).
		Model(&BenchRun{}).
		Select("COUNT(*) AS runs, COALESCE(AVG(throughput), 0) AS avg_throughput, " +
			"COALESCE(MAX(throughput), 0) AS best_throughput, COALESCE(SUM(jobs), 0) AS total_jobs").
		Scan(&sum).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "summarize bench runs", err)
	}
	return &sum, nil
}

// Close closes the underlying connection pool.
func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the underlying GORM DB instance.
func (r *GormRepository) DB() *gorm.DB {
	return r.db
}
