package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/foodsnap/internal/logging"
)

// Config holds the upstream connection settings. Connect fast-fails; the read
// budget is sized for model generation latency.
type Config struct {
	BaseURL        string
	APIKey         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Client calls the external recognition service. Each call is synchronous and
// blocking; concurrency comes from independent background executions.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a recognition client with split connect/read budgets.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = 3 * time.Second
	}
	read := cfg.ReadTimeout
	if read <= 0 {
		read = 60 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: read,
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: connect}).DialContext,
				TLSHandshakeTimeout:   connect,
				ResponseHeaderTimeout: read,
			},
		},
		logger: logger.Named("recognition_client"),
	}
}

type recognizeRequest struct {
	Image       string `json:"image"`
	ContentType string `json:"content_type"`
}

// Recognize submits the image and classifies the upstream response.
func (c *Client) Recognize(ctx context.Context, imageBytes []byte, contentType, correlationID string) (Outcome, error) {
	opLogger := logging.WithOperation(c.logger, "recognition.recognize", correlationID)

	body, err := json.Marshal(recognizeRequest{
		Image:       base64.StdEncoding.EncodeToString(imageBytes),
		ContentType: contentType,
	})
	if err != nil {
		return Outcome{}, logging.NewOperationError("recognition.encode_request", correlationID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/recognize", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, logging.NewOperationError("recognition.build_request", correlationID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-Id", correlationID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := logging.NewOperationError("recognition.http_call", correlationID, err)
		opLogger.Warn("recognition call failed", zap.Error(wrapped))
		return Outcome{}, wrapped
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		wrapped := logging.NewOperationError("recognition.read_body", correlationID, err)
		opLogger.Warn("failed to read recognition response", zap.Error(wrapped))
		return Outcome{}, wrapped
	}

	outcome, err := Classify(resp.StatusCode, respBody)
	if err != nil {
		opLogger.Warn("recognition response classified as failure",
			zap.Int("status", resp.StatusCode), zap.Error(err))
		return Outcome{}, logging.NewOperationError("recognition.classify", correlationID, err)
	}
	return outcome, nil
}
