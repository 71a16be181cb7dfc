package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/foodsnap/internal/apperrors"
	"github.com/example/foodsnap/internal/jobqueue"
	"github.com/example/foodsnap/internal/logging"
	"github.com/example/foodsnap/internal/repository"
)

// SubmitInput carries one recognition request: exactly one of ImageData or
// DataURL must be present.
type SubmitInput struct {
	ImageData        []byte
	ImageContentType string
	DataURL          string
	MealType         string
	MealDate         string
	Comment          string
}

// SubmitResult is returned to the caller immediately, before recognition runs.
type SubmitResult struct {
	JobID  string
	Status string
	MealID *uint
}

// Submit validates quota, stores the image, creates the job row, records
// ownership and enqueues background execution. It never waits on recognition.
func (uc *RecognitionUseCase) Submit(ctx context.Context, userID string, input SubmitInput) (*SubmitResult, error) {
	if err := uc.checkQuota(ctx, userID); err != nil {
		return nil, err
	}

	data, contentType, err := resolveImage(input)
	if err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.submit", jobID)

	imageKey := fmt.Sprintf("uploads/%s/%s", userID, jobID)
	if err := uc.blobs.Put(ctx, imageKey, data, contentType); err != nil {
		wrapped := logging.NewOperationError("usecase.store_image", jobID, err)
		opLogger.Error("failed to store uploaded image", zap.Error(wrapped))
		return nil, wrapped
	}

	job := &repository.RecognitionJob{
		JobID:       jobID,
		UserID:      userID,
		State:       repository.JobStateSubmitted,
		ImageKey:    imageKey,
		ContentType: contentType,
		MealType:    input.MealType,
		MealDate:    input.MealDate,
		Comment:     input.Comment,
	}
	if err := uc.jobs.CreateJob(ctx, job); err != nil {
		opLogger.Error("failed to create job row", zap.Error(err))
		return nil, err
	}

	if err := uc.owners.Record(ctx, jobID, userID); err != nil {
		// The registry is a cache over the job's own payload; a failed write
		// degrades to the fallback path, it does not fail the submission.
		opLogger.Warn("failed to record ownership", zap.Error(err))
	}

	if err := uc.enqueue(ctx, job); err != nil {
		return nil, err
	}

	return &SubmitResult{JobID: jobID, Status: StatusProcessing}, nil
}

// Retry re-submits a previously failed recognition. Only jobs whose last
// terminal state is FAILED are eligible; the prior row is left untouched and
// a fresh handle runs through normal processing against the stored image.
func (uc *RecognitionUseCase) Retry(ctx context.Context, userID, jobID string) (*SubmitResult, error) {
	prior, err := uc.authorizedJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	if prior.State != repository.JobStateFailed {
		return nil, apperrors.NewContractError(apperrors.CodeInvalidStatus,
			fmt.Sprintf("job state %s is not retryable", prior.State))
	}

	if err := uc.checkQuota(ctx, userID); err != nil {
		return nil, err
	}

	retryID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.retry", retryID)

	job := &repository.RecognitionJob{
		JobID:       retryID,
		UserID:      userID,
		State:       repository.JobStateSubmitted,
		ImageKey:    prior.ImageKey,
		ContentType: prior.ContentType,
		MealType:    prior.MealType,
		MealDate:    prior.MealDate,
		Comment:     prior.Comment,
	}
	if err := uc.jobs.CreateJob(ctx, job); err != nil {
		opLogger.Error("failed to create retry job row", zap.Error(err))
		return nil, err
	}

	if err := uc.owners.Record(ctx, retryID, userID); err != nil {
		opLogger.Warn("failed to record ownership", zap.Error(err))
	}

	if err := uc.enqueue(ctx, job); err != nil {
		return nil, err
	}

	return &SubmitResult{JobID: retryID, Status: StatusProcessing}, nil
}

func (uc *RecognitionUseCase) enqueue(ctx context.Context, job *repository.RecognitionJob) error {
	err := uc.queue.Enqueue(jobqueue.Job{
		JobID:       job.JobID,
		UserID:      job.UserID,
		ImageKey:    job.ImageKey,
		ContentType: job.ContentType,
		MealType:    job.MealType,
		MealDate:    job.MealDate,
		Comment:     job.Comment,
	})
	if err == nil {
		return nil
	}

	opLogger := logging.WithOperation(uc.logger, "usecase.enqueue", job.JobID)
	opLogger.Error("failed to enqueue job", zap.Error(err))
	uc.failJob(ctx, job.JobID, job.UserID, apperrors.CodeUnknownError, "enqueue failed")
	return apperrors.WrapContract(apperrors.CodeUnknownError, err)
}

func (uc *RecognitionUseCase) checkQuota(ctx context.Context, userID string) error {
	today := time.Now().UTC().Format("2006-01-02")
	used, err := uc.jobs.UsedToday(ctx, userID, today)
	if err != nil {
		return logging.NewOperationError("usecase.check_quota", "", err)
	}
	if used >= uc.dailyLimit {
		return &apperrors.ContractError{
			Code:          apperrors.CodeLimitExceeded,
			Detail:        fmt.Sprintf("daily limit of %d reached", uc.dailyLimit),
			RetryAfterSec: secondsUntilUTCMidnight(time.Now().UTC()),
		}
	}
	return nil
}

func secondsUntilUTCMidnight(now time.Time) int {
	midnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	return int(midnight.Sub(now).Seconds())
}

// resolveImage enforces the exactly-one-of rule and decodes a base64 data URL
// when that is the chosen transport.
func resolveImage(input SubmitInput) ([]byte, string, error) {
	hasBytes := len(input.ImageData) > 0
	hasURL := input.DataURL != ""

	switch {
	case hasBytes && hasURL:
		return nil, "", apperrors.NewContractError(apperrors.CodeInvalidRequest,
			"request carries both an image and a data URL")
	case !hasBytes && !hasURL:
		return nil, "", apperrors.NewContractError(apperrors.CodeInvalidRequest,
			"request carries neither an image nor a data URL")
	case hasBytes:
		contentType := input.ImageContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		return input.ImageData, contentType, nil
	default:
		return parseDataURL(input.DataURL)
	}
}

func parseDataURL(raw string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, "", apperrors.NewContractError(apperrors.CodeInvalidRequest, "malformed data URL")
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", apperrors.NewContractError(apperrors.CodeInvalidRequest, "malformed data URL")
	}
	contentType, enc := meta, ""
	if i := strings.LastIndex(meta, ";"); i >= 0 {
		contentType, enc = meta[:i], meta[i+1:]
	}
	if enc != "base64" {
		return nil, "", apperrors.NewContractError(apperrors.CodeInvalidRequest, "data URL must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", apperrors.NewContractError(apperrors.CodeInvalidRequest, "data URL payload is not valid base64")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}
