package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/steveyegge/sabre/internal/types"
)

// DefaultAPIURL is the production analysis service
const DefaultAPIURL = "https://api.mythx.io"

// APIError is a non-success HTTP response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("service returned %d: %s", e.StatusCode, e.Message)
}

// HTTPClient implements Client over the service's JSON API
type HTTPClient struct {
	BaseURL   string
	HTTP      *http.Client
	UserAgent string

	limiter *rate.Limiter
}

// NewHTTPClient creates a client for baseURL issuing at most
// requestsPerSecond requests (unlimited when <= 0)
func NewHTTPClient(baseURL string, requestsPerSecond float64) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &HTTPClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		HTTP:      &http.Client{Timeout: 60 * time.Second},
		UserAgent: "sabre",
		limiter:   rate.NewLimiter(limit, 1),
	}
}

type loginRequest struct {
	EthAddress string `json:"ethAddress"`
	Password   string `json:"password"`
}

type loginResponse struct {
	Access string `json:"access"`
}

type analysisResponse struct {
	UUID   string `json:"uuid"`
	Status string `json:"status"`
}

type issuesResponse struct {
	Issues []types.RawFinding `json:"issues"`
}

// Authenticate logs in; rejected credentials yield ErrAuthentication
func (c *HTTPClient) Authenticate(ctx context.Context, ethAddress, password string) (string, error) {
	var out loginResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", "", loginRequest{EthAddress: ethAddress, Password: password}, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return "", fmt.Errorf("%w: %s", ErrAuthentication, apiErr.Error())
		}
		return "", err
	}
	if out.Access == "" {
		return "", errors.New("login response carried no access token")
	}
	return out.Access, nil
}

// Submit creates an analysis job
func (c *HTTPClient) Submit(ctx context.Context, token string, sub Submission) (string, error) {
	var out analysisResponse
	if err := c.do(ctx, http.MethodPost, "/v1/analyses", token, sub, &out); err != nil {
		return "", err
	}
	return out.UUID, nil
}

// Status returns the job's status
func (c *HTTPClient) Status(ctx context.Context, token, jobUUID string) (JobStatus, error) {
	var out analysisResponse
	if err := c.do(ctx, http.MethodGet, "/v1/analyses/"+url.PathEscape(jobUUID), token, nil, &out); err != nil {
		return "", err
	}
	return parseStatus(out.Status)
}

// Results returns the raw findings of a finished job
func (c *HTTPClient) Results(ctx context.Context, token, jobUUID string) ([]types.RawFinding, error) {
	var out issuesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/analyses/"+url.PathEscape(jobUUID)+"/issues", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Issues, nil
}

// parseStatus accepts both the normalized names and the service's own
// ("Queued", "In progress", "Finished", "Error")
func parseStatus(s string) (JobStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "queued", "in progress", "running":
		return StatusPending, nil
	case "completed", "finished":
		return StatusCompleted, nil
	case "failed", "error":
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(msg)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} bodies, falling back to the raw text
func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return strings.TrimSpace(string(body))
}
