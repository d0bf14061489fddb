package repository

import (
	"context"

	"github.com/timmy/orisweep/internal/domain"
	"gorm.io/gorm"
)

// RunRepository stores sweep runs and their per-agency results.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun inserts a new run record.
func (r *RunRepository) CreateRun(ctx context.Context, run *domain.ExportRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// UpdateRun saves the run's status, counters and completion time.
func (r *RunRepository) UpdateRun(ctx context.Context, run *domain.ExportRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// AddResult inserts one agency result.
func (r *RunRepository) AddResult(ctx context.Context, result *domain.ExportResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

// ListRuns returns the most recent runs, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of runs; values below 1 return all runs.
// Returns:
//   - []domain.ExportRun: runs ordered by start time descending.
//   - error: non-nil if the query fails.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]domain.ExportRun, error) {
	var runs []domain.ExportRun
	q := r.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// GetResults returns a run's results in enumeration order.
func (r *RunRepository) GetResults(ctx context.Context, runID string) ([]domain.ExportResult, error) {
	var results []domain.ExportResult
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("position ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindRunsByPrefix returns the runs whose ID starts with prefix, newest first.
func (r *RunRepository) FindRunsByPrefix(ctx context.Context, prefix string) ([]domain.ExportRun, error) {
	var runs []domain.ExportRun
	err := r.db.WithContext(ctx).
		Where("id LIKE ?", prefix+"%").
		Order("started_at DESC").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
