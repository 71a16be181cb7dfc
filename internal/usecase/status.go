package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/example/foodsnap/internal/apperrors"
	"github.com/example/foodsnap/internal/logging"
	"github.com/example/foodsnap/internal/repository"
)

// Caller-visible job statuses.
const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// StatusResult is the sanitized view of a job returned to its owner.
type StatusResult struct {
	JobID     string
	Status    string
	ErrorCode string
	Result    map[string]interface{}
}

// Status resolves ownership and returns the sanitized job state. Any request
// that cannot be positively tied to the requester yields a not-found outcome;
// the existence of another user's job is never revealed.
func (uc *RecognitionUseCase) Status(ctx context.Context, requesterID, jobID string) (*StatusResult, error) {
	cachedOwner := uc.owners.Owner(ctx, jobID)
	if cachedOwner != "" && cachedOwner != requesterID {
		return nil, apperrors.NewContractError(apperrors.CodeNotFound, "job not found for requester")
	}

	job, err := uc.jobs.FindJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperrors.NewContractError(apperrors.CodeNotFound, "no such job")
		}
		return nil, logging.NewOperationError("usecase.status", jobID, err)
	}

	if cachedOwner == "" {
		embedded := ownerFromPayload(job.Payload)
		if embedded == "" {
			embedded = job.UserID
		}
		if embedded != requesterID {
			return nil, apperrors.NewContractError(apperrors.CodeNotFound, "job not found for requester")
		}
		// Self-healing backfill after cache eviction.
		if err := uc.owners.Record(ctx, jobID, embedded); err != nil {
			logging.WithOperation(uc.logger, "usecase.status", jobID).
				Warn("failed to backfill ownership cache", zap.Error(err))
		}
	}

	return buildStatusResult(job), nil
}

func (uc *RecognitionUseCase) authorizedJob(ctx context.Context, requesterID, jobID string) (*repository.RecognitionJob, error) {
	cachedOwner := uc.owners.Owner(ctx, jobID)
	if cachedOwner != "" && cachedOwner != requesterID {
		return nil, apperrors.NewContractError(apperrors.CodeNotFound, "job not found for requester")
	}
	job, err := uc.jobs.FindJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperrors.NewContractError(apperrors.CodeNotFound, "no such job")
		}
		return nil, logging.NewOperationError("usecase.authorize", jobID, err)
	}
	if cachedOwner == "" && job.UserID != requesterID {
		return nil, apperrors.NewContractError(apperrors.CodeNotFound, "job not found for requester")
	}
	return job, nil
}

func ownerFromPayload(payload string) string {
	if payload == "" {
		return ""
	}
	var decoded struct {
		OwnerID string `json:"owner_id"`
	}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return ""
	}
	return decoded.OwnerID
}

func buildStatusResult(job *repository.RecognitionJob) *StatusResult {
	result := &StatusResult{JobID: job.JobID}

	switch job.State {
	case repository.JobStateSubmitted, repository.JobStateProcessing:
		result.Status = StatusProcessing
		return result
	case repository.JobStateFailed:
		result.Status = StatusFailed
	case repository.JobStateSuccess:
		if job.ErrorCode != "" {
			result.Status = StatusFailed
		} else {
			result.Status = StatusSuccess
		}
	default:
		result.Status = StatusProcessing
		return result
	}

	result.ErrorCode = job.ErrorCode
	result.Result = sanitizePayload(job.Payload)
	return result
}

// sanitizePayload strips internal ownership metadata and guarantees the
// presence of items and totals so callers never special-case a missing key.
func sanitizePayload(payload string) map[string]interface{} {
	sanitized := map[string]interface{}{}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &sanitized); err != nil {
			sanitized = map[string]interface{}{}
		}
	}
	delete(sanitized, "owner_id")
	delete(sanitized, "error_code")
	if _, ok := sanitized["items"]; !ok {
		sanitized["items"] = []interface{}{}
	}
	if _, ok := sanitized["totals"]; !ok {
		sanitized["totals"] = map[string]interface{}{}
	}
	return sanitized
}
