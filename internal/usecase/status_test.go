package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/example/foodsnap/internal/apperrors"
	"github.com/example/foodsnap/internal/repository"
)

func successRow(jobID, userID string) *repository.RecognitionJob {
	row := jobRow(jobID, userID, "SUCCESS")
	row.Payload = `{"owner_id":"` + userID + `","items":[{"name":"rice","weight_grams":143}],"totals":{"calories":180}}`
	return row
}

func TestStatusCacheHitAuthorizesDirectly(t *testing.T) {
	jobs := &stubJobStore{findJob: successRow("job-1", "user-a")}
	owners := &stubOwners{owner: "user-a"}
	uc := newTestUseCase(jobs, owners, &stubBlobs{}, &stubRecognizer{}, &stubQueue{})

	result, err := uc.Status(context.Background(), "user-a", "job-1")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success status, got %s", result.Status)
	}
	if len(owners.recorded) != 0 {
		t.Fatal("cache hit must not trigger a backfill")
	}
}

func TestStatusCacheMissFallsBackToPayloadAndBackfills(t *testing.T) {
	jobs := &stubJobStore{findJob: successRow("job-1", "user-a")}
	owners := &stubOwners{}
	uc := newTestUseCase(jobs, owners, &stubBlobs{}, &stubRecognizer{}, &stubQueue{})

	result, err := uc.Status(context.Background(), "user-a", "job-1")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if owners.records["job-1"] != "user-a" {
		t.Fatal("expected ownership cache backfilled after payload fallback")
	}
}

func TestStatusOtherUsersJobIsNotFoundNotForbidden(t *testing.T) {
	jobs := &stubJobStore{findJob: successRow("job-1", "user-a")}
	owners := &stubOwners{}
	uc := newTestUseCase(jobs, owners, &stubBlobs{}, &stubRecognizer{}, &stubQueue{})

	_, err := uc.Status(context.Background(), "user-b", "job-1")
	assertContractCode(t, err, apperrors.CodeNotFound)
}

func TestStatusCachedMismatchIsNotFound(t *testing.T) {
	jobs := &stubJobStore{findJob: successRow("job-1", "user-a")}
	owners := &stubOwners{owner: "user-a"}
	uc := newTestUseCase(jobs, owners, &stubBlobs{}, &stubRecognizer{}, &stubQueue{})

	_, err := uc.Status(context.Background(), "user-b", "job-1")
	assertContractCode(t, err, apperrors.CodeNotFound)
}

func TestStatusUnknownJobIsNotFound(t *testing.T) {
	uc := newTestUseCase(&stubJobStore{}, &stubOwners{}, &stubBlobs{}, &stubRecognizer{}, &stubQueue{})

	_, err := uc.Status(context.Background(), "user-a", "missing")
	assertContractCode(t, err, apperrors.CodeNotFound)
}

func TestStatusSanitizesOwnerAndFloorsKeys(t *testing.T) {
	row := jobRow("job-1", "user-a", "FAILED")
	row.ErrorCode = apperrors.CodeLowConfidence
	row.Payload = `{"owner_id":"user-a","error_code":"LOW_CONFIDENCE"}`
	jobs := &stubJobStore{findJob: row}
	uc := newTestUseCase(jobs, &stubOwners{}, &stubBlobs{}, &stubRecognizer{}, &stubQueue{})

	result, err := uc.Status(context.Background(), "user-a", "job-1")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", result.Status)
	}
	if result.ErrorCode != apperrors.CodeLowConfidence {
		t.Fatalf("expected LOW_CONFIDENCE, got %s", result.ErrorCode)
	}
	if _, ok := result.Result["owner_id"]; ok {
		t.Fatal("owner_id must be stripped from the caller-visible payload")
	}
	if _, ok := result.Result["items"]; !ok {
		t.Fatal("items key must always be present")
	}
	if _, ok := result.Result["totals"]; !ok {
		t.Fatal("totals key must always be present")
	}
}

func TestStatusProcessingStates(t *testing.T) {
	for _, state := range []string{"SUBMITTED", "PROCESSING"} {
		jobs := &stubJobStore{findJob: jobRow("job-1", "user-a", state)}
		uc := newTestUseCase(jobs, &stubOwners{}, &stubBlobs{}, &stubRecognizer{}, &stubQueue{})

		result, err := uc.Status(context.Background(), "user-a", "job-1")
		if err != nil {
			t.Fatalf("state %s: expected success, got error: %v", state, err)
		}
		if result.Status != StatusProcessing {
			t.Fatalf("state %s: expected processing, got %s", state, result.Status)
		}
		if result.Result != nil {
			t.Fatalf("state %s: expected no result while processing", state)
		}
	}
}

func TestStatusRepeatedReadsAreIdentical(t *testing.T) {
	jobs := &stubJobStore{findJob: successRow("job-1", "user-a")}
	uc := newTestUseCase(jobs, &stubOwners{}, &stubBlobs{}, &stubRecognizer{}, &stubQueue{})

	first, err := uc.Status(context.Background(), "user-a", "job-1")
	if err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	second, err := uc.Status(context.Background(), "user-a", "job-1")
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}

	a, _ := json.Marshal(first.Result)
	b, _ := json.Marshal(second.Result)
	if !bytes.Equal(a, b) {
		t.Fatalf("expected byte-identical reads, got %s vs %s", a, b)
	}
}
