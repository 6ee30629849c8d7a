// API client for the pulse HTTP endpoints
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/pulse/internal/server"
	"github.com/desertthunder/pulse/internal/session"
	"github.com/desertthunder/pulse/internal/shared"
)

const DefaultBaseURL = "http://127.0.0.1:3000"

// APIService talks to a pulse server over HTTP.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a client for the server at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// BaseURL returns the server address requests are sent to.
func (a *APIService) BaseURL() string { return a.baseURL }

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports whether the response carries a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path)
}

// Delete performs a DELETE request to the specified path and returns the raw response.
func (a *APIService) Delete(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodDelete, path)
}

func (a *APIService) do(ctx context.Context, method, path string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// Status fetches GET /status.
func (a *APIService) Status(ctx context.Context) (*server.ReportingStatus, error) {
	var status server.ReportingStatus
	if err := a.getJSON(ctx, "/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Sessions fetches GET /sessions.
func (a *APIService) Sessions(ctx context.Context) ([]session.Info, error) {
	var infos []session.Info
	if err := a.getJSON(ctx, "/sessions", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// Session fetches GET /sessions/{id}.
func (a *APIService) Session(ctx context.Context, id string) (*session.Info, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	var info session.Info
	if err := a.getJSON(ctx, "/sessions/"+id, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Cancel sends DELETE /sessions/{id}.
func (a *APIService) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	resp, err := a.Delete(ctx, "/sessions/"+id)
	if err != nil {
		return err
	}
	return checkStatus(resp, id)
}

func (a *APIService) getJSON(ctx context.Context, path string, v any) error {
	resp, err := a.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := checkStatus(resp, path); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func checkStatus(resp *APIResponse, target string) error {
	switch {
	case resp.OK():
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, target)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, strings.TrimSpace(string(resp.Body)))
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(resp.Body)))
	}
}
