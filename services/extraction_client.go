package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"rfp-intake-platform/internal/config"
	"rfp-intake-platform/internal/logger"
	"rfp-intake-platform/internal/telemetry"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ExtractionClient talks to an out-of-process extraction service, used as a
// fallback when local parsing cannot produce text. Calls go through a
// circuit breaker so a degraded service fails fast instead of holding
// worker slots for the full HTTP timeout.
type ExtractionClient struct {
	config      *config.Config
	httpClient  *http.Client
	baseURL     string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

// extractResponse is the service's wire format.
type extractResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Pages   int    `json:"pages"`
	Method  string `json:"method"`
	Error   string `json:"error,omitempty"`
}

// NewExtractionClient creates a client for the remote extraction service.
func NewExtractionClient(cfg *config.Config, metrics *telemetry.Metrics) *ExtractionClient {
	baseURL := cfg.ExtractServiceURL
	if baseURL == "" {
		baseURL = "http://localhost:8001"
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ExtractionService",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if metrics != nil {
				metrics.RecordCircuitBreakerState(name, to.String())
			}
		},
	})

	rpm := cfg.ExtractServiceRPM
	if rpm <= 0 {
		rpm = 60
	}
	rateLimiter := rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm/6+1)

	return &ExtractionClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // extraction can take a while on large scans
		},
		baseURL:     baseURL,
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}
}

// Extract uploads the stored file and returns its extracted text.
func (c *ExtractionClient) Extract(ctx context.Context, src ExtractSource) (*ExtractionResult, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doExtract(ctx, src)
	})
	if err != nil {
		return nil, &ProcessingError{Err: fmt.Errorf("remote extraction: %w", err)}
	}
	return result.(*ExtractionResult), nil
}

func (c *ExtractionClient) doExtract(ctx context.Context, src ExtractSource) (*ExtractionResult, error) {
	file, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stored file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", src.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy file into request: %w", err)
	}
	if err := writer.WriteField("content_type", src.MIME); err != nil {
		return nil, fmt.Errorf("failed to write content_type field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/extract", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}

	var decoded extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}
	if !decoded.Success {
		return nil, fmt.Errorf("extraction service error: %s", decoded.Error)
	}

	method := decoded.Method
	if method == "" {
		method = "remote"
	}
	return &ExtractionResult{
		Content: decoded.Text,
		Pages:   decoded.Pages,
		Method:  method,
	}, nil
}

// IsHealthy checks the service's health endpoint.
func (c *ExtractionClient) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}
