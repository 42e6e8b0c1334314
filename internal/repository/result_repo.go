package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jonathanpberger/typingpool/internal/domain"
)

// ResultRepository is the local cache of remote jobs seen during collection
// and retirement.
type ResultRepository struct {
	db     *gorm.DB
	fields domain.IdentifierFields
}

// NewResultRepository creates a new ResultRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//   - fields: identifier field names used to read project and audio ids off jobs.
// Returns:
//   - *ResultRepository: repository instance bound to db.
func NewResultRepository(db *gorm.DB, fields domain.IdentifierFields) *ResultRepository {
	return &ResultRepository{db: db, fields: fields}
}

// Save caches a remote job, replacing any earlier copy.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: remote job to cache.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *ResultRepository) Save(ctx context.Context, job *domain.RemoteJob) error {
	row := domain.NewCachedResult(job, r.fields)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"project_id", "audio_url", "status", "submission_id",
			"submission_status", "transcription", "expires_at", "updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("cache result %s: %w", job.ID, err)
	}
	return nil
}

// Delete removes a cached job. Deleting an unknown job is not an error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: remote job id.
// Returns:
//   - error: non-nil if the delete fails.
func (r *ResultRepository) Delete(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Delete(&domain.CachedResult{}, "job_id = ?", jobID).Error
}

// Get retrieves a cached job by id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: remote job id.
// Returns:
//   - *domain.CachedResult: cached row, or nil if not cached.
//   - error: non-nil if lookup fails.
func (r *ResultRepository) Get(ctx context.Context, jobID string) (*domain.CachedResult, error) {
	var row domain.CachedResult
	err := r.db.WithContext(ctx).First(&row, "job_id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByProject lists cached jobs for a project, oldest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - projectID: owning project id; empty lists every cached job.
// Returns:
//   - []domain.CachedResult: cached rows.
//   - error: non-nil if the query fails.
func (r *ResultRepository) ListByProject(ctx context.Context, projectID string) ([]domain.CachedResult, error) {
	var rows []domain.CachedResult
	q := r.db.WithContext(ctx).Order("created_at ASC, job_id ASC")
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of cached jobs per project.
func (r *ResultRepository) Count(ctx context.Context, projectID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.CachedResult{}).Where("project_id = ?", projectID).Count(&n).Error
	return n, err
}
