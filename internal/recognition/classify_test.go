package recognition

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyErrorCodeWinsOverStatus(t *testing.T) {
	body := []byte(`{"error_code":"UNSUPPORTED_CONTENT","message":"not food"}`)

	for _, status := range []int{200, 400} {
		outcome, err := Classify(status, body)
		if err != nil {
			t.Fatalf("status %d: expected business error outcome, got error: %v", status, err)
		}
		if outcome.OK {
			t.Fatalf("status %d: expected ok=false", status)
		}
		if outcome.Payload.ErrorCode != "UNSUPPORTED_CONTENT" {
			t.Fatalf("status %d: payload must pass through unchanged, got %s", status, outcome.Payload.ErrorCode)
		}
		if outcome.StatusCode != status {
			t.Fatalf("status %d: expected status preserved, got %d", status, outcome.StatusCode)
		}
	}
}

func TestClassifySuccess(t *testing.T) {
	body := []byte(`{"items":[{"name":"rice","weight_grams":140}],"metadata":{"zone":"food","confidence":0.92}}`)
	outcome, err := Classify(200, body)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !outcome.OK {
		t.Fatal("expected ok=true")
	}
	if len(outcome.Payload.Items) != 1 || outcome.Payload.Items[0].Name != "rice" {
		t.Fatalf("unexpected items: %+v", outcome.Payload.Items)
	}
	if outcome.Payload.Metadata.Zone != "food" {
		t.Fatalf("unexpected zone: %s", outcome.Payload.Metadata.Zone)
	}
}

func TestClassifyBare400IsValidationError(t *testing.T) {
	_, err := Classify(400, []byte(`{"message":"missing field"}`))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestClassifyAuthStatuses(t *testing.T) {
	for _, status := range []int{401, 403} {
		_, err := Classify(status, []byte(`{}`))
		if !errors.Is(err, ErrAuth) {
			t.Fatalf("status %d: expected ErrAuth, got %v", status, err)
		}
	}
}

func TestClassifyServerErrors(t *testing.T) {
	for _, status := range []int{500, 502, 503} {
		_, err := Classify(status, []byte(`upstream exploded`))
		if !errors.Is(err, ErrServer) {
			t.Fatalf("status %d: expected ErrServer, got %v", status, err)
		}
	}
}

type timeoutError struct{}

func (timeoutError) Error() string { return "deadline exceeded" }
func (timeoutError) Timeout() bool { return true }

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("wrapped: %w", ErrServer), true},
		{timeoutError{}, true},
		{context.DeadlineExceeded, true},
		{fmt.Errorf("wrapped: %w", ErrAuth), false},
		{fmt.Errorf("wrapped: %w", ErrValidation), false},
		{errors.New("something else"), false},
		{nil, false},
	}
	for i, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("case %d (%v): expected %v, got %v", i, tc.err, tc.want, got)
		}
	}
}
