package postgres

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/config"
	"github.com/joshu-sajeev/wastewise/internal/job"
	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/joshu-sajeev/wastewise/internal/retry"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxProgressPercent caps progress updates. Only Complete writes 100.
const maxProgressPercent = 99

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type JobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewJobRepository(db *gorm.DB, opts ...Option) *JobRepository {
	o := buildOptions(opts)
	return &JobRepository{db: db, now: o.now}
}

var _ job.JobRepoInterface = (*JobRepository)(nil)

// Create inserts a new job record into the database. It uses the provided
// context for cancellation and timeout propagation. Returns an error if the
// database operation fails.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.now()
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Get retrieves a single job record by its ID. Returns the job if found,
// or models.ErrJobNotFound if the job doesn't exist.
func (r *JobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).Take(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get job %s: %w", id, models.ErrJobNotFound)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// List returns jobs matching the filter, newest first.
func (r *JobRepository) List(ctx context.Context, filter models.JobFilter) ([]models.Job, error) {
	q := r.db.WithContext(ctx).Model(&models.Job{})
	if filter.PropertyID != "" {
		q = q.Where("property_id = ?", filter.PropertyID)
	}
	if filter.PrincipalID != "" {
		q = q.Where("principal_id = ?", filter.PrincipalID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	var jobs []models.Job
	if err := q.Order("created_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// ClaimNext hands the most urgent eligible pending job to workerID. Rows
// locked by a concurrent claim are skipped rather than waited on, and the
// status transition is guarded so a row can only leave pending once. Returns
// nil when nothing is eligible.
func (r *JobRepository) ClaimNext(ctx context.Context, workerID string) (*models.Job, error) {
	var claimed *models.Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()

		var candidate models.Job
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", config.JobStatusPending).
			Where("(retry_after IS NULL OR retry_after <= ?)", now).
			Order("priority ASC").
			Order("created_at ASC").
			Order("id ASC").
			Take(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", candidate.ID, config.JobStatusPending).
			Updates(map[string]any{
				"status":      config.JobStatusProcessing,
				"started_at":  now,
				"claimed_at":  now,
				"worker_id":   workerID,
				"retry_after": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// lost the race to another claimant
			return nil
		}

		candidate.Status = config.JobStatusProcessing
		candidate.StartedAt = &now
		candidate.ClaimedAt = &now
		candidate.WorkerID = workerID
		candidate.RetryAfter = nil
		claimed = &candidate
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return claimed, nil
}

// UpdateProgress records progress for a processing job. Lower percentages
// and updates against jobs that are no longer processing are ignored.
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, p models.Progress) error {
	percent := min(max(p.Percent, 0), maxProgressPercent)

	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ? AND percent <= ?", id, config.JobStatusProcessing, percent).
		Updates(map[string]any{
			"percent":         percent,
			"current_step":    p.CurrentStep,
			"steps_completed": p.StepsCompleted,
			"total_steps":     p.TotalSteps,
		})
	if res.Error != nil {
		return fmt.Errorf("update progress: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("update progress %s: %w", id, models.ErrJobNotFound)
	}
	return nil
}

// Complete marks a processing job completed and stores its result. A second
// call on a completed job is a no-op and keeps the first result.
func (r *JobRepository) Complete(ctx context.Context, id string, result datatypes.JSON) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, id)
		if err != nil {
			return fmt.Errorf("complete job: %w", err)
		}

		switch job.Status {
		case config.JobStatusCompleted:
			return nil
		case config.JobStatusProcessing:
		default:
			return fmt.Errorf("complete job %s from %s: %w", id, job.Status, models.ErrInvalidTransition)
		}

		now := r.now()
		res := tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", id, config.JobStatusProcessing).
			Updates(map[string]any{
				"status":           config.JobStatusCompleted,
				"percent":          100,
				"completed_at":     now,
				"duration_seconds": durationSeconds(job.StartedAt, now),
				"result_data":      result,
				"error_message":    "",
				"error_code":       "",
			})
		if res.Error != nil {
			return fmt.Errorf("complete job: %w", res.Error)
		}
		return nil
	})
}

// Fail records a retryable failure. The job goes back to pending with a
// backoff while retries remain and becomes failed once they are spent.
func (r *JobRepository) Fail(ctx context.Context, id, message, code string) error {
	return r.fail(ctx, id, message, code, true)
}

// FailTerminal records a failure that retrying cannot fix. The retry budget
// is marked spent and the job becomes failed immediately.
func (r *JobRepository) FailTerminal(ctx context.Context, id, message, code string) error {
	return r.fail(ctx, id, message, code, false)
}

func (r *JobRepository) fail(ctx context.Context, id, message, code string, retryable bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, id)
		if err != nil {
			return fmt.Errorf("fail job: %w", err)
		}
		if job.Status != config.JobStatusProcessing {
			return fmt.Errorf("fail job %s from %s: %w", id, job.Status, models.ErrInvalidTransition)
		}

		now := r.now()
		entries := append(slices.Clone(job.RetryErrorLog), models.RetryErrorEntry{
			Attempt:   job.RetryCount + 1,
			Timestamp: now,
			Message:   message,
			Code:      code,
		})

		updates := map[string]any{
			"retry_error_log": datatypes.JSONSlice[models.RetryErrorEntry](entries),
			"error_message":   message,
			"error_code":      code,
		}

		switch {
		case job.CancelRequested:
			// an accepted cancel outranks the retry policy
			updates["status"] = config.JobStatusCancelled
			updates["completed_at"] = now
			updates["duration_seconds"] = durationSeconds(job.StartedAt, now)
		case retryable && retry.ShouldRetry(job.RetryCount, job.MaxRetries):
			next := job.RetryCount + 1
			updates["status"] = config.JobStatusPending
			updates["retry_count"] = next
			updates["retry_after"] = now.Add(retry.Backoff(next))
			maps.Copy(updates, requeueFields)
		default:
			updates["status"] = config.JobStatusFailed
			updates["retry_count"] = job.MaxRetries
			updates["completed_at"] = now
			updates["duration_seconds"] = durationSeconds(job.StartedAt, now)
		}

		res := tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", id, config.JobStatusProcessing).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("fail job: %w", res.Error)
		}
		return nil
	})
}

// requeueFields reset a job's claim and progress when it returns to pending.
var requeueFields = map[string]any{
	"percent":          0,
	"current_step":     "",
	"steps_completed":  0,
	"worker_id":        "",
	"claimed_at":       nil,
	"cancel_requested": false,
}

// Release hands a processing job back to the queue without charging it an
// attempt, used when its worker shuts down mid-run. Retry count, backoff and
// error log are untouched. A job with an accepted cancel is cancelled instead.
func (r *JobRepository) Release(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, id)
		if err != nil {
			return fmt.Errorf("release job: %w", err)
		}
		if job.Status != config.JobStatusProcessing {
			return fmt.Errorf("release job %s from %s: %w", id, job.Status, models.ErrInvalidTransition)
		}

		updates := map[string]any{}
		if job.CancelRequested {
			now := r.now()
			updates["status"] = config.JobStatusCancelled
			updates["completed_at"] = now
			updates["duration_seconds"] = durationSeconds(job.StartedAt, now)
		} else {
			updates["status"] = config.JobStatusPending
			maps.Copy(updates, requeueFields)
		}

		res := tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", id, config.JobStatusProcessing).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("release job: %w", res.Error)
		}
		return nil
	})
}

// Cancel cancels a pending job outright. A processing job is only flagged;
// its worker observes the flag at the next step boundary.
func (r *JobRepository) Cancel(ctx context.Context, id string) (models.CancelOutcome, error) {
	var outcome models.CancelOutcome

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, id)
		if err != nil {
			return err
		}

		switch job.Status {
		case config.JobStatusPending:
			outcome = models.CancelOutcomeCancelled
			return tx.Model(&models.Job{}).
				Where("id = ? AND status = ?", id, config.JobStatusPending).
				Updates(map[string]any{
					"status":       config.JobStatusCancelled,
					"completed_at": r.now(),
					"retry_after":  nil,
				}).Error
		case config.JobStatusProcessing:
			outcome = models.CancelOutcomeRequested
			return tx.Model(&models.Job{}).
				Where("id = ?", id).
				Update("cancel_requested", true).Error
		default:
			return fmt.Errorf("cancel job %s from %s: %w", id, job.Status, models.ErrInvalidTransition)
		}
	})
	if err != nil {
		return "", fmt.Errorf("cancel job: %w", err)
	}
	return outcome, nil
}

func (r *JobRepository) IsCancelRequested(ctx context.Context, id string) (bool, error) {
	var job models.Job
	err := r.db.WithContext(ctx).Select("id", "cancel_requested").Take(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("cancel requested %s: %w", id, models.ErrJobNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("cancel requested: %w", err)
	}
	return job.CancelRequested, nil
}

// MarkCancelled finishes a cooperative cancellation of a processing job.
func (r *JobRepository) MarkCancelled(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, id)
		if err != nil {
			return fmt.Errorf("mark cancelled: %w", err)
		}
		switch job.Status {
		case config.JobStatusCancelled:
			return nil
		case config.JobStatusProcessing:
		default:
			return fmt.Errorf("mark cancelled %s from %s: %w", id, job.Status, models.ErrInvalidTransition)
		}

		now := r.now()
		return tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", id, config.JobStatusProcessing).
			Updates(map[string]any{
				"status":           config.JobStatusCancelled,
				"completed_at":     now,
				"duration_seconds": durationSeconds(job.StartedAt, now),
			}).Error
	})
}

// ListStuck returns processing jobs started more than threshold ago, oldest
// first. It never modifies them.
func (r *JobRepository) ListStuck(ctx context.Context, threshold time.Duration) ([]models.Job, error) {
	cutoff := r.now().Add(-threshold)

	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", config.JobStatusProcessing, cutoff).
		Order("started_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list stuck jobs: %w", err)
	}
	return jobs, nil
}

// CountOutcomes counts jobs that completed or terminally failed since the
// given time.
func (r *JobRepository) CountOutcomes(ctx context.Context, since time.Time) (models.JobOutcomeCounts, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Job{}).
		Select("status, COUNT(*) AS total").
		Where("status IN ? AND completed_at >= ?",
			[]string{string(config.JobStatusCompleted), string(config.JobStatusFailed)}, since).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return models.JobOutcomeCounts{}, fmt.Errorf("count outcomes: %w", err)
	}

	counts := models.JobOutcomeCounts{Since: since}
	for _, row := range rows {
		switch config.JobStatus(row.Status) {
		case config.JobStatusCompleted:
			counts.Completed = row.Total
		case config.JobStatusFailed:
			counts.Failed = row.Total
		}
	}
	return counts, nil
}

// Now exposes the repository clock so callers measure windows consistently.
func (r *JobRepository) Now() time.Time {
	return r.now()
}

func lockJob(tx *gorm.DB, id string) (*models.Job, error) {
	var job models.Job
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job %s: %w", id, models.ErrJobNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func durationSeconds(startedAt *time.Time, now time.Time) *float64 {
	if startedAt == nil {
		return nil
	}
	d := now.Sub(*startedAt).Seconds()
	return &d
}
