package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel conditions raised by response classification.
var (
	// ErrValidation marks a malformed request (bare HTTP 400, no error_code).
	ErrValidation = errors.New("recognition: request rejected as malformed")
	// ErrAuth marks an upstream credential failure (401/403). Non-retryable.
	ErrAuth = errors.New("recognition: upstream authentication failed")
	// ErrServer marks an upstream 5xx. Retryable.
	ErrServer = errors.New("recognition: upstream server error")
)

// Item is a single recognized food item. Numeric fields are kept raw because
// the upstream occasionally sends them as strings or omits them; coercion
// happens at persistence time.
type Item struct {
	Name       string          `json:"name"`
	Weight     json.RawMessage `json:"weight_grams,omitempty"`
	Calories   json.RawMessage `json:"calories,omitempty"`
	Protein    json.RawMessage `json:"protein,omitempty"`
	Fat        json.RawMessage `json:"fat,omitempty"`
	Carbs      json.RawMessage `json:"carbohydrates,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
}

// Metadata carries the upstream model's own classification of the photo.
type Metadata struct {
	Zone       string   `json:"zone,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Payload is the decoded upstream response body.
type Payload struct {
	ErrorCode string             `json:"error_code,omitempty"`
	Message   string             `json:"message,omitempty"`
	Items     []Item             `json:"items,omitempty"`
	Totals    map[string]float64 `json:"totals,omitempty"`
	Metadata  Metadata           `json:"metadata,omitempty"`
}

// Outcome is the tagged result of classifying an upstream response.
type Outcome struct {
	OK         bool
	StatusCode int
	Payload    *Payload
}

// Classify maps an upstream HTTP status and body onto the client contract.
// A payload carrying an error_code field is a structured business error no
// matter the transport status, including 200 and 400; the status code only
// matters when no error_code is present.
func Classify(statusCode int, body []byte) (Outcome, error) {
	var payload Payload
	decodeErr := json.Unmarshal(body, &payload)

	if decodeErr == nil && payload.ErrorCode != "" {
		return Outcome{OK: false, StatusCode: statusCode, Payload: &payload}, nil
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		if decodeErr != nil {
			return Outcome{}, fmt.Errorf("%w: undecodable success body: %v", ErrServer, decodeErr)
		}
		return Outcome{OK: true, StatusCode: statusCode, Payload: &payload}, nil
	case statusCode == 400:
		return Outcome{}, fmt.Errorf("%w: status %d", ErrValidation, statusCode)
	case statusCode == 401 || statusCode == 403:
		return Outcome{}, fmt.Errorf("%w: status %d", ErrAuth, statusCode)
	case statusCode >= 500:
		return Outcome{}, fmt.Errorf("%w: status %d", ErrServer, statusCode)
	default:
		return Outcome{}, fmt.Errorf("%w: unexpected status %d", ErrServer, statusCode)
	}
}

// IsRetryable reports whether the error is a transient condition worth a
// bounded retry: upstream 5xx or a network timeout.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrServer) {
		return true
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrAuth) {
		return false
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
