// Package masteryengine implements the client for the external mastery
// probability engine. The engine maintains per-student knowledge
// estimates (Bayesian knowledge tracing) and exposes concept, module,
// subject and practice-plan reports over HTTP.
//
// The client wraps every call in a token-bucket rate limiter, a circuit
// breaker and a bounded retry loop. Service adds read-through fallback
// to the locally cached mastery records when the engine is unreachable.
package masteryengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gyansetu/pulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the mastery engine client.
type ClientConfig struct {
	// BaseURL is the engine's base URL
	BaseURL string

	// APIKey is the bearer token for authentication, if the deployment
	// requires one
	APIKey string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// RateLimiterConfig for request rate limiting
	RateLimiterConfig RateLimiterConfig

	// CircuitBreakerConfig for fault tolerance
	CircuitBreakerConfig CircuitBreakerConfig

	// RetryConfig for retry behavior
	RetryConfig RetryConfig

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:              baseURL,
		Timeout:              10 * time.Second,
		RateLimiterConfig:    DefaultRateLimiterConfig(),
		CircuitBreakerConfig: DefaultCircuitBreakerConfig(),
		RetryConfig:          DefaultRetryConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the mastery engine HTTP client.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
}

// NewClient creates a new mastery engine client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:         config.Logger,
		rateLimiter:    NewRateLimiter(config.RateLimiterConfig),
		circuitBreaker: NewCircuitBreaker(config.CircuitBreakerConfig),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// UpdateMastery submits one graded interaction for a student and concept.
// Engagement is the 0-1 engagement weight attached to the interaction.
func (c *Client) UpdateMastery(ctx context.Context, studentID, conceptID string, correct bool, engagement float64) error {
	req := UpdateMasteryRequestDTO{
		StudentID:  studentID,
		ConceptID:  conceptID,
		Correct:    correct,
		Engagement: engagement,
	}

	var ack UpdateAckDTO
	if err := c.doRequest(ctx, http.MethodPost, "/mastery/update", req, &ack); err != nil {
		return c.mapError(err)
	}
	if ack.Status != "updated" {
		return fmt.Errorf("%w: unexpected ack status %q", shared.ErrEngineInvalidResponse, ack.Status)
	}
	return nil
}

// GetConceptMastery fetches the engine's current estimate for one
// concept. The engine never 404s here: unknown students start at the
// prior probability.
func (c *Client) GetConceptMastery(ctx context.Context, studentID, conceptID string) (*ConceptMasteryDTO, error) {
	path := "/mastery/concept/" + url.PathEscape(studentID) + "/" + url.PathEscape(conceptID)

	var report ConceptMasteryDTO
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, c.mapError(err)
	}
	return &report, nil
}

// GetModuleMastery fetches the module rollup for a student.
func (c *Client) GetModuleMastery(ctx context.Context, studentID, moduleID string) (*ModuleMasteryDTO, error) {
	path := "/mastery/module/" + url.PathEscape(studentID) + "/" + url.PathEscape(moduleID)

	var report ModuleMasteryDTO
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, c.mapError(err)
	}
	return &report, nil
}

// GetSubjectMastery fetches the subject rollup for a student.
func (c *Client) GetSubjectMastery(ctx context.Context, studentID, subjectID string) (*SubjectMasteryDTO, error) {
	path := "/mastery/subject/" + url.PathEscape(studentID) + "/" + url.PathEscape(subjectID)

	var report SubjectMasteryDTO
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, c.mapError(err)
	}
	return &report, nil
}

// GetStudentMastery fetches the whole-student mastery summary.
func (c *Client) GetStudentMastery(ctx context.Context, studentID string) (*StudentMasteryDTO, error) {
	path := "/mastery/student/" + url.PathEscape(studentID)

	var report StudentMasteryDTO
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, c.mapError(err)
	}
	return &report, nil
}

// GetPracticePlan fetches the per-module practice buckets for a student
// within a subject.
func (c *Client) GetPracticePlan(ctx context.Context, studentID, subjectID string) (PracticePlanDTO, error) {
	path := "/mastery/practice/" + url.PathEscape(studentID) + "/" + url.PathEscape(subjectID)

	var plan PracticePlanDTO
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &plan); err != nil {
		return nil, c.mapError(err)
	}
	return plan, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs an HTTP request with rate limiting, circuit breaking
// and retries.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	if err := c.circuitBreaker.Allow(); err != nil {
		return fmt.Errorf("circuit breaker: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryConfig.CalculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.rateLimiter.Allow(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := c.doSingleRequest(ctx, method, path, body, result)
		if err == nil {
			c.circuitBreaker.RecordSuccess()
			return nil
		}

		lastErr = err

		if !c.isRetryable(err) {
			c.circuitBreaker.RecordFailure()
			return err
		}

		var rateLimitErr *RateLimitError
		if errors.As(err, &rateLimitErr) {
			c.rateLimiter.RecordRateLimitHit(rateLimitErr.RetryAfter)
		}
	}

	c.circuitBreaker.RecordFailure()
	return fmt.Errorf("request failed after %d retries: %w", c.config.RetryConfig.MaxRetries, lastErr)
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	fullURL := c.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	if c.config.Debug {
		c.logger.Debug("mastery engine request", "method", method, "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := c.config.RateLimiterConfig.RetryAfter
		if retryAfter <= 0 {
			retryAfter = 15 * time.Second
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{
			RetryAfter: retryAfter,
			Message:    "rate limit exceeded",
		}
	}

	if resp.StatusCode >= 400 {
		apiErr := APIErrorDTO{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			return &apiErr
		}
		return &APIErrorDTO{Status: resp.StatusCode, Message: "engine error"}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrEngineInvalidResponse, err)
		}
	}

	return nil
}

// isRetryable checks if an error is retryable.
func (c *Client) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}

	// A payload that does not parse will not parse on retry either
	if errors.Is(err, shared.ErrEngineInvalidResponse) {
		return false
	}

	// Network errors are generally retryable
	errStr := err.Error()
	return containsAny(errStr, []string{"timeout", "connection refused", "temporary", "reset", "EOF"})
}

// mapError translates transport failures into the shared error
// vocabulary so callers can branch without knowing this package's types.
func (c *Client) mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, shared.ErrEngineInvalidResponse):
		return err
	case errors.Is(err, ErrCircuitOpen):
		return fmt.Errorf("%w: %v", shared.ErrEngineUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", shared.ErrEngineTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Errorf("%w: %v", shared.ErrEngineRateLimited, err)
	}

	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 {
			return fmt.Errorf("%w: %v", shared.ErrEngineUnavailable, err)
		}
		return fmt.Errorf("%w: %v", shared.ErrEngineInvalidResponse, err)
	}

	return fmt.Errorf("%w: %v", shared.ErrEngineUnavailable, err)
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if len(s) >= len(sub) && findStr(s, sub) >= 0 {
			return true
		}
	}
	return false
}

// findStr finds substr in s.
func findStr(s, substr string) int {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy checks if the engine is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	err := c.doSingleRequest(ctx, http.MethodGet, "/", nil, nil)
	return err == nil
}

// ClientStatus is a point-in-time view of the client's internals.
type ClientStatus struct {
	RateLimiter    RateLimiterStatus
	CircuitBreaker CircuitBreakerStatus
	IsHealthy      bool
}

// Status returns the current status of the client.
func (c *Client) Status(ctx context.Context) ClientStatus {
	return ClientStatus{
		RateLimiter:    c.rateLimiter.Status(),
		CircuitBreaker: c.circuitBreaker.Status(),
		IsHealthy:      c.IsHealthy(ctx),
	}
}

// Reset resets the rate limiter and circuit breaker.
func (c *Client) Reset() {
	c.rateLimiter.Reset()
	c.circuitBreaker.Reset()
}
