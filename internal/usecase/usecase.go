package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/foodsnap/internal/jobqueue"
	"github.com/example/foodsnap/internal/recognition"
	"github.com/example/foodsnap/internal/repository"
	"github.com/example/foodsnap/internal/storage"
)

// JobStore defines the persistence operations needed by the pipeline.
type JobStore interface {
	CreateJob(ctx context.Context, job *repository.RecognitionJob) error
	FindJob(ctx context.Context, jobID string) (*repository.RecognitionJob, error)
	MarkProcessing(ctx context.Context, jobID string) error
	FailJob(ctx context.Context, jobID, errorCode, payload string) error
	PersistRecognition(ctx context.Context, job *repository.RecognitionJob, items []repository.MealItem, payload string) error
	UsedToday(ctx context.Context, userID, day string) (int, error)
}

// Recognizer calls the external recognition service.
type Recognizer interface {
	Recognize(ctx context.Context, imageBytes []byte, contentType, correlationID string) (recognition.Outcome, error)
}

// OwnerRegistry maps job handles to owning users.
type OwnerRegistry interface {
	Record(ctx context.Context, jobID, userID string) error
	Owner(ctx context.Context, jobID string) string
}

// Enqueuer hands a job description to the background worker pool.
type Enqueuer interface {
	Enqueue(job jobqueue.Job) error
}

// RecognitionUseCase orchestrates intake, background execution and status
// queries for the recognition job pipeline.
type RecognitionUseCase struct {
	jobs       JobStore
	owners     OwnerRegistry
	blobs      storage.BlobStore
	recognizer Recognizer
	queue      Enqueuer
	logger     *zap.Logger

	dailyLimit     int
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewRecognitionUseCase constructs the use case. The queue is attached
// separately because the worker pool needs the use case as its executor.
func NewRecognitionUseCase(jobs JobStore, owners OwnerRegistry, blobs storage.BlobStore, recognizer Recognizer, dailyLimit int, logger *zap.Logger) *RecognitionUseCase {
	return &RecognitionUseCase{
		jobs:           jobs,
		owners:         owners,
		blobs:          blobs,
		recognizer:     recognizer,
		logger:         logger.Named("recognition_usecase"),
		dailyLimit:     dailyLimit,
		retryAttempts:  3,
		initialBackoff: 500 * time.Millisecond,
		maxBackoff:     5 * time.Second,
	}
}

// AttachQueue wires the worker pool in after construction.
func (uc *RecognitionUseCase) AttachQueue(queue Enqueuer) {
	uc.queue = queue
}
