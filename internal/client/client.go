package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"berth/internal/api"
)

// DefaultTimeout bounds each request except Watch.
const DefaultTimeout = 30 * time.Second

// Client talks to a running berth server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New creates a client for the server at baseURL, e.g. http://localhost:9899.
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// ServerError is a non-2xx answer from the server.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is a 409 answer.
func IsConflict(err error) bool {
	var se *ServerError
	return errors.As(err, &se) && se.StatusCode == http.StatusConflict
}

// List returns every service with its status.
func (c *Client) List(ctx context.Context) ([]api.ServiceInfo, error) {
	var out []api.ServiceInfo
	err := c.do(ctx, http.MethodGet, "/services", nil, http.StatusOK, &out)
	return out, err
}

// Tree returns the group tree.
func (c *Client) Tree(ctx context.Context) (*api.ServiceGroup, error) {
	var out api.ServiceGroup
	if err := c.do(ctx, http.MethodGet, "/services/tree", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resolve finds a service by name or sid.
func (c *Client) Resolve(ctx context.Context, nameOrSID string) (api.ServiceInfo, error) {
	services, err := c.List(ctx)
	if err != nil {
		return api.ServiceInfo{}, err
	}
	for _, svc := range services {
		if svc.Name == nameOrSID || svc.SID == nameOrSID {
			return svc, nil
		}
	}
	return api.ServiceInfo{}, api.NewServiceNotFoundError(nameOrSID)
}

// Start asks the server to start sid. It returns once the command is accepted.
func (c *Client) Start(ctx context.Context, sid string) error {
	return c.do(ctx, http.MethodPost, "/services/"+url.PathEscape(sid)+"/start", nil, http.StatusAccepted, nil)
}

// Stop asks the server to stop sid. It returns once the command is accepted.
func (c *Client) Stop(ctx context.Context, sid string) error {
	return c.do(ctx, http.MethodPost, "/services/"+url.PathEscape(sid)+"/stop", nil, http.StatusAccepted, nil)
}

// Import uploads the bundle at path and returns the operation id.
func (c *Client) Import(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	var out struct {
		OperationID string `json:"operationId"`
	}
	name := url.PathEscape(filepath.Base(path))
	if err := c.do(ctx, http.MethodPut, "/bundles/"+name, f, http.StatusAccepted, &out); err != nil {
		return "", err
	}
	return out.OperationID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &ServerError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
