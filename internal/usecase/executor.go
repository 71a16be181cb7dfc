package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/foodsnap/internal/apperrors"
	"github.com/example/foodsnap/internal/imagenorm"
	"github.com/example/foodsnap/internal/jobqueue"
	"github.com/example/foodsnap/internal/logging"
	"github.com/example/foodsnap/internal/recognition"
	"github.com/example/foodsnap/internal/repository"
)

var supportedMimeTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// Execute runs one job to its terminal state. It is the worker pool entry
// point and never returns an error: every failure path writes a FAILED state
// with a contract code instead.
func (uc *RecognitionUseCase) Execute(ctx context.Context, job jobqueue.Job) {
	opLogger := logging.WithOperation(uc.logger, "usecase.execute", job.JobID)

	if err := uc.jobs.MarkProcessing(ctx, job.JobID); err != nil {
		opLogger.Error("failed to mark job processing", zap.Error(err))
		uc.failJob(ctx, job.JobID, job.UserID, apperrors.CodeUnknownError, "state transition failed")
		return
	}

	if _, ok := supportedMimeTypes[job.ContentType]; !ok {
		uc.failJob(ctx, job.JobID, job.UserID, apperrors.CodeImageUnsupportedFormat, "unsupported mime type "+job.ContentType)
		return
	}
	if _, err := time.Parse("2006-01-02", job.MealDate); err != nil {
		uc.failJob(ctx, job.JobID, job.UserID, apperrors.CodeInvalidDate, "unparseable meal date "+job.MealDate)
		return
	}

	data, err := uc.blobs.Get(ctx, job.ImageKey)
	if err != nil {
		opLogger.Error("failed to fetch stored image", zap.Error(err))
		uc.failJob(ctx, job.JobID, job.UserID, apperrors.CodeUnknownError, "stored image unavailable")
		return
	}

	norm := imagenorm.Normalize(data, job.ContentType)
	opLogger.Info("image normalized",
		zap.String("action", string(norm.Action)),
		zap.String("reason", string(norm.Reason)),
		zap.Int("original_px", norm.OriginalLongestSide),
		zap.Int("normalized_px", norm.NormalizedLongestSide))
	if norm.Action == imagenorm.ActionReject {
		uc.failJob(ctx, job.JobID, job.UserID, rejectionCode(norm.Reason), string(norm.Reason))
		return
	}

	outcome, err := uc.recognizeWithRetry(ctx, job.JobID, norm.Data, norm.ContentType)
	if err != nil {
		code := recognitionErrorCode(err)
		if code == apperrors.CodeAuthFailed {
			opLogger.Error("recognition credentials rejected, operator attention required", zap.Error(err))
		}
		uc.failJob(ctx, job.JobID, job.UserID, code, err.Error())
		return
	}

	if !outcome.OK {
		uc.failJob(ctx, job.JobID, job.UserID, outcome.Payload.ErrorCode, outcome.Payload.Message)
		return
	}

	if len(outcome.Payload.Items) == 0 {
		uc.failJob(ctx, job.JobID, job.UserID, classifyEmptyResult(outcome.Payload), "no items recognized")
		return
	}

	items := buildMealItems(outcome.Payload.Items)
	payload, err := successPayload(job.UserID, items)
	if err != nil {
		opLogger.Error("failed to serialize result payload", zap.Error(err))
		uc.failJob(ctx, job.JobID, job.UserID, apperrors.CodeUnknownError, "payload serialization failed")
		return
	}

	jobRow := &repository.RecognitionJob{
		JobID:    job.JobID,
		UserID:   job.UserID,
		MealType: job.MealType,
		MealDate: job.MealDate,
		Comment:  job.Comment,
	}
	if err := uc.jobs.PersistRecognition(ctx, jobRow, items, payload); err != nil {
		opLogger.Error("failed to persist recognition result", zap.Error(err))
		uc.failJob(ctx, job.JobID, job.UserID, apperrors.CodeUnknownError, "persistence failed")
		return
	}

	opLogger.Info("job completed", zap.Int("items", len(items)))
}

func (uc *RecognitionUseCase) recognizeWithRetry(ctx context.Context, jobID string, image []byte, contentType string) (recognition.Outcome, error) {
	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, "usecase.recognize", jobID)

	var outcome recognition.Outcome
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return recognition.Outcome{}, logging.NewOperationError("usecase.recognize", jobID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		outcome, err = uc.recognizer.Recognize(ctx, image, contentType, jobID)
		if err == nil {
			if attempt > 0 {
				opLogger.Info("recognition succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return outcome, nil
		}

		if !recognition.IsRetryable(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("recognition failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return recognition.Outcome{}, err
		}

		opLogger.Warn("transient recognition error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return recognition.Outcome{}, err
}

// failJob writes the terminal FAILED state. The payload embeds the owner id
// so the ownership registry can self-heal from it after cache eviction.
func (uc *RecognitionUseCase) failJob(ctx context.Context, jobID, userID, code, detail string) {
	payload, err := json.Marshal(map[string]interface{}{
		"owner_id":   userID,
		"error_code": code,
	})
	if err != nil {
		payload = []byte(`{}`)
	}
	if err := uc.jobs.FailJob(ctx, jobID, code, string(payload)); err != nil {
		logging.WithOperation(uc.logger, "usecase.fail_job", jobID).
			Error("failed to write terminal state", zap.Error(err), zap.String("code", code))
		return
	}
	logging.WithOperation(uc.logger, "usecase.fail_job", jobID).
		Info("job failed", zap.String("code", code), zap.String("detail", detail))
}

func rejectionCode(reason imagenorm.Reason) string {
	if reason == imagenorm.ReasonUnsupportedFormat {
		return apperrors.CodeImageUnsupportedFormat
	}
	return apperrors.CodeImageDecodeFailed
}

func recognitionErrorCode(err error) string {
	switch {
	case errors.Is(err, recognition.ErrAuth):
		return apperrors.CodeAuthFailed
	case errors.Is(err, recognition.ErrValidation):
		return apperrors.CodeInvalidRequest
	case errors.Is(err, recognition.ErrServer):
		return apperrors.CodeRecognitionUnavailable
	case recognition.IsRetryable(err):
		return apperrors.CodeRecognitionTimeout
	default:
		return apperrors.CodeUnknownError
	}
}

func successPayload(userID string, items []repository.MealItem) (string, error) {
	itemMaps := make([]map[string]interface{}, 0, len(items))
	totals := map[string]float64{
		"weight_grams":  0,
		"calories":      0,
		"protein":       0,
		"fat":           0,
		"carbohydrates": 0,
	}
	for _, item := range items {
		m := map[string]interface{}{
			"name":          item.Name,
			"weight_grams":  item.WeightGrams,
			"calories":      item.Calories,
			"protein":       item.Protein,
			"fat":           item.Fat,
			"carbohydrates": item.Carbs,
		}
		if item.Confidence != nil {
			m["confidence"] = *item.Confidence
		}
		itemMaps = append(itemMaps, m)
		totals["weight_grams"] += float64(item.WeightGrams)
		totals["calories"] += item.Calories
		totals["protein"] += item.Protein
		totals["fat"] += item.Fat
		totals["carbohydrates"] += item.Carbs
	}

	raw, err := json.Marshal(map[string]interface{}{
		"owner_id": userID,
		"items":    itemMaps,
		"totals":   totals,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
