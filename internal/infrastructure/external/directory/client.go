// Package directory implements the client for the school directory
// service. The directory owns identities, class rosters and the set of
// classes currently being monitored; this service only ever reads from
// it.
package directory

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
	"time"

	"github.com/gyansetu/pulse/internal/domain/shared"
)

// ClientConfig contains configuration for the directory client.
type ClientConfig struct {
	// BaseURL is the directory service base URL
	BaseURL string

	// APIKey authenticates this service to the directory
	APIKey string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}
}

// Identity is a verified platform identity.
type Identity struct {
	UserID string
	Role   shared.Role
	Email  string
}

// Client is the directory service HTTP client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new directory client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: config.Logger,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire types
// ─────────────────────────────────────────────────────────────────────────────

type verifyRequestDTO struct {
	Token string `json:"token"`
}

type identityDTO struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
}

type classListDTO struct {
	Classes []string `json:"classes"`
}

type rosterDTO struct {
	Students []string `json:"students"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Operations
// ─────────────────────────────────────────────────────────────────────────────

// VerifyToken asks the directory to validate a bearer credential.
// Returns the identity it belongs to, ErrTokenRejected when the
// directory refuses it, or ErrDirectoryUnavailable when the directory
// cannot be reached.
func (c *Client) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, shared.ErrTokenRejected
	}

	var dto identityDTO
	status, err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/verify", verifyRequestDTO{Token: token}, &dto)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, shared.ErrTokenRejected
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: verify returned status %d", shared.ErrDirectoryUnavailable, status)
	}

	role, err := shared.ParseRole(dto.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDirectoryUnavailable, err)
	}
	if dto.UserID == "" {
		return nil, fmt.Errorf("%w: verify returned empty user id", shared.ErrDirectoryUnavailable)
	}

	return &Identity{
		UserID: dto.UserID,
		Role:   role,
		Email:  dto.Email,
	}, nil
}

// ListActiveClasses returns the IDs of classes the directory marks as
// actively monitored. The alert sweep iterates exactly this set.
func (c *Client) ListActiveClasses(ctx context.Context) ([]string, error) {
	var dto classListDTO
	status, err := c.doJSON(ctx, http.MethodGet, "/api/v1/classes/active", nil, &dto)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: class list returned status %d", shared.ErrDirectoryUnavailable, status)
	}
	return dto.Classes, nil
}

// GetClassRoster returns the student IDs enrolled in a class.
func (c *Client) GetClassRoster(ctx context.Context, classID string) ([]string, error) {
	if classID == "" {
		return nil, shared.ErrClassNotFound
	}

	var dto rosterDTO
	path := "/api/v1/classes/" + url.PathEscape(classID) + "/students"
	status, err := c.doJSON(ctx, http.MethodGet, path, nil, &dto)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, shared.ErrClassNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: roster returned status %d", shared.ErrDirectoryUnavailable, status)
	}
	return dto.Students, nil
}

// IsHealthy checks if the directory is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	status, err := c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
	return err == nil && status == http.StatusOK
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTP plumbing
// ─────────────────────────────────────────────────────────────────────────────

// doJSON performs one request and decodes a 2xx body into result.
// Non-2xx statuses are returned to the caller for mapping; transport
// failures map to ErrDirectoryUnavailable here.
func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, result interface{}) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", shared.ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read response: %v", shared.ErrDirectoryUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: unmarshal response: %v", shared.ErrDirectoryUnavailable, err)
		}
	}

	return resp.StatusCode, nil
}
