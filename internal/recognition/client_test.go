package recognition

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRecognizeSendsCorrelationAndDecodesResult(t *testing.T) {
	var gotPath, gotCorrelation, gotAuth string
	var gotBody recognizeRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCorrelation = r.Header.Get("X-Correlation-Id")
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"name":"pasta","weight_grams":220}]}`)) //nolint:errcheck
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:        server.URL,
		APIKey:         "secret-key",
		ConnectTimeout: time.Second,
		ReadTimeout:    2 * time.Second,
	}, zap.NewNop())

	outcome, err := client.Recognize(context.Background(), []byte("image bytes"), "image/jpeg", "corr-1")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !outcome.OK {
		t.Fatal("expected ok outcome")
	}
	if len(outcome.Payload.Items) != 1 || outcome.Payload.Items[0].Name != "pasta" {
		t.Fatalf("unexpected payload: %+v", outcome.Payload)
	}
	if gotPath != "/v1/recognize" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotCorrelation != "corr-1" {
		t.Fatalf("expected correlation header, got %q", gotCorrelation)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	decoded, err := base64.StdEncoding.DecodeString(gotBody.Image)
	if err != nil || string(decoded) != "image bytes" {
		t.Fatalf("expected base64 image in body, got %q (err %v)", gotBody.Image, err)
	}
	if gotBody.ContentType != "image/jpeg" {
		t.Fatalf("unexpected content type: %s", gotBody.ContentType)
	}
}

func TestRecognizeClassifiesUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())

	_, err := client.Recognize(context.Background(), []byte("image"), "image/jpeg", "corr-2")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable server error, got %v", err)
	}
}
