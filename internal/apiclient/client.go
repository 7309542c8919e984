package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/jmagar/nugs-dl/internal/logger"
	"github.com/jmagar/nugs-dl/pkg/api"
)

type Options struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string

	// HTTPClient overrides the default client. The stream request relies on
	// context cancellation, not client timeouts, so the default carries none.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client talks to the nugs-dl server's REST surface and opens its
// server-sent-event stream.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &Client{baseURL: base, http: httpClient, log: log}, nil
}

// ListJobs fetches the full queue snapshot.
func (c *Client) ListJobs(ctx context.Context) ([]api.DownloadJob, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/downloads", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch job snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse("fetch job snapshot", resp)
	}

	var jobs []api.DownloadJob
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("decode job snapshot: %w", err)
	}
	return jobs, nil
}

// AddDownloads submits one job per URL and returns the per-URL outcomes.
func (c *Client) AddDownloads(ctx context.Context, urls []string, opts api.DownloadOptions) ([]api.AddDownloadResponseItem, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one URL is required")
	}

	body, err := json.Marshal(api.AddDownloadRequest{Urls: urls, Options: opts})
	if err != nil {
		return nil, fmt.Errorf("marshal add request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/downloads", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit downloads: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusMultiStatus {
		return nil, c.errorFromResponse("submit downloads", resp)
	}

	var items []api.AddDownloadResponseItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode add response: %w", err)
	}
	return items, nil
}

// RemoveJob deletes a job on the server. The caller reflects a confirmed
// removal into its local store.
func (c *Client) RemoveJob(ctx context.Context, jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return fmt.Errorf("job ID is required")
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/downloads/"+url.PathEscape(jobID), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remove job %s: %w", jobID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return c.errorFromResponse("remove job "+jobID, resp)
	}
	return nil
}

// OpenStream opens the status event stream. The returned body stays open
// until the caller closes it or ctx is cancelled.
func (c *Client) OpenStream(ctx context.Context) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/status-stream", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open status stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.errorFromResponse("open status stream", resp)
	}
	return resp.Body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

func (c *Client) errorFromResponse(op string, resp *http.Response) error {
	// The server reports failures as {"error": "..."}; fall back to the
	// HTTP status line for anything else.
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s: %s (status %d)", op, payload.Error, resp.StatusCode)
	}
	return fmt.Errorf("%s: unexpected status %s", op, resp.Status)
}
