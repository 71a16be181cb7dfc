package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/foodsnap/internal/logging"
)

// ErrJobNotFound is returned when no job matches the given handle.
var ErrJobNotFound = errors.New("recognition job not found")

// JobRepository provides persistence APIs for recognition jobs, meals and
// usage counters.
type JobRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewJobRepository creates a new repository instance.
func NewJobRepository(db *gorm.DB, logger *zap.Logger) *JobRepository {
	return &JobRepository{
		db:             db,
		logger:         logger.Named("job_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *JobRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&RecognitionJob{},
		&Meal{},
		&MealItem{},
		&DailyUsage{},
	)
}

// CreateJob persists a new job row in the SUBMITTED state.
func (r *JobRepository) CreateJob(ctx context.Context, job *RecognitionJob) error {
	return r.executeWithRetry(ctx, "repository.create_job", job.JobID, func() error {
		return r.db.WithContext(ctx).Create(job).Error
	})
}

// FindJob retrieves a job by handle.
func (r *JobRepository) FindJob(ctx context.Context, jobID string) (*RecognitionJob, error) {
	var job RecognitionJob
	err := r.db.WithContext(ctx).First(&job, "job_id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// MarkProcessing transitions a submitted job to PROCESSING.
func (r *JobRepository) MarkProcessing(ctx context.Context, jobID string) error {
	return r.executeWithRetry(ctx, "repository.mark_processing", jobID, func() error {
		return r.db.WithContext(ctx).
			Model(&RecognitionJob{}).
			Where("job_id = ? AND state = ?", jobID, JobStateSubmitted).
			Update("state", JobStateProcessing).Error
	})
}

// FailJob writes the terminal FAILED state with its contract code and payload.
func (r *JobRepository) FailJob(ctx context.Context, jobID, errorCode, payload string) error {
	return r.executeWithRetry(ctx, "repository.fail_job", jobID, func() error {
		return r.db.WithContext(ctx).
			Model(&RecognitionJob{}).
			Where("job_id = ? AND state NOT IN ?", jobID, []JobState{JobStateSuccess, JobStateFailed}).
			Updates(map[string]interface{}{
				"state":      JobStateFailed,
				"error_code": errorCode,
				"payload":    payload,
			}).Error
	})
}

// PersistRecognition commits the successful outcome atomically: the meal row,
// its items, the job's SUCCESS state with payload and meal link, and the
// owner's daily usage increment. All of it commits or none of it does.
func (r *JobRepository) PersistRecognition(ctx context.Context, job *RecognitionJob, items []MealItem, payload string) error {
	day := time.Now().UTC().Format("2006-01-02")
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meal := Meal{
			UserID:  job.UserID,
			Type:    job.MealType,
			Date:    job.MealDate,
			Comment: job.Comment,
		}
		if err := tx.Create(&meal).Error; err != nil {
			return err
		}

		for i := range items {
			items[i].MealID = meal.ID
			items[i].JobID = job.JobID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}

		result := tx.Model(&RecognitionJob{}).
			Where("job_id = ? AND state NOT IN ?", job.JobID, []JobState{JobStateSuccess, JobStateFailed}).
			Updates(map[string]interface{}{
				"state":   JobStateSuccess,
				"payload": payload,
				"meal_id": meal.ID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return logging.NewOperationError("repository.persist_recognition", job.JobID,
				errors.New("job already terminal"))
		}

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count": gorm.Expr("daily_usages.count + 1"),
			}),
		}).Create(&DailyUsage{UserID: job.UserID, Day: day, Count: 1}).Error
	})
}

// UsedToday returns the caller's usage count for the given UTC day.
func (r *JobRepository) UsedToday(ctx context.Context, userID, day string) (int, error) {
	var usage DailyUsage
	err := r.db.WithContext(ctx).
		First(&usage, "user_id = ? AND day = ?", userID, day).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return usage.Count, nil
}

func (r *JobRepository) executeWithRetry(ctx context.Context, operation, jobID string, fn func() error) error {
	if r.retryAttempts <= 1 {
		return logging.NewOperationError(operation, jobID, fn())
	}

	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, jobID)
	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, jobID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, jobID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, jobID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
