package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"oficina/internal/config"
)

// RemoteClient sends documents to an HTTP OCR service:
//
//	POST {base}/extract  (body: raw file, Content-Type: file mime)
//	200 {"text": "..."}
//
// Calls are rate limited and never retried.
type RemoteClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *RateLimiter
	logger     *zap.Logger
}

type remoteResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

func NewRemoteClient(cfg config.Config, logger *zap.Logger) (*RemoteClient, error) {
	if err := cfg.Require("OCR_API_BASE_URL", cfg.OCRAPIBaseURL); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteClient{
		baseURL:    strings.TrimRight(cfg.OCRAPIBaseURL, "/"),
		token:      cfg.OCRAPIToken,
		httpClient: &http.Client{Timeout: time.Duration(cfg.OCRTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.OCRRateLimitRPS),
		logger:     logger,
	}, nil
}

func (c *RemoteClient) ExtractText(ctx context.Context, content []byte, mime string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mime)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ocr service: %w", err)
	}
	c.logger.Debug("ocr service call",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(content)),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ocr service error: status=%d body=%s", resp.StatusCode, truncate(string(body), 512))
	}

	var payload remoteResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("ocr service: decode response: %w", err)
	}
	if payload.Error != "" {
		return "", errors.New("ocr service: " + payload.Error)
	}
	return payload.Text, nil
}
