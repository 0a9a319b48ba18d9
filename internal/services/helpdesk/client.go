package helpdesk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"auditexport/internal/config"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultMediaTimeout   = 15 * time.Second
	idPlaceholder         = "{id}"
)

// Config captures the connection settings for the API.
type Config struct {
	BaseURL        string
	AuditsPath     string
	Username       string
	Password       string
	UserAgent      string
	RequestTimeout time.Duration
	MediaTimeout   time.Duration
}

// ConfigFrom derives client settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		BaseURL:        cfg.API.BaseURL,
		AuditsPath:     cfg.API.AuditsPath,
		Username:       cfg.API.Username,
		Password:       cfg.API.Password,
		UserAgent:      cfg.API.UserAgent,
		RequestTimeout: cfg.RequestTimeout(),
		MediaTimeout:   cfg.MediaTimeout(),
	}
}

// Response is a fully-read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client talks to the helpdesk API with HTTP basic auth.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	mediaClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the client used for audit requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMediaClient overrides the client used for media downloads. The caller is
// responsible for disabling redirect following on it.
func WithMediaClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.mediaClient = client
		}
	}
}

// NewClient constructs a Client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.AuditsPath = strings.TrimSpace(cfg.AuditsPath)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MediaTimeout <= 0 {
		cfg.MediaTimeout = defaultMediaTimeout
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		mediaClient: &http.Client{
			Timeout: cfg.MediaTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// AuditsURL returns the audit endpoint for id.
func (c *Client) AuditsURL(id int64) string {
	return c.cfg.BaseURL + strings.ReplaceAll(c.cfg.AuditsPath, idPlaceholder, strconv.FormatInt(id, 10))
}

// FetchAudits retrieves the audit trail for one record. Transport faults are
// returned as errors; any HTTP status, including 4xx and 5xx, is returned as a
// Response for the caller to classify.
func (c *Client) FetchAudits(ctx context.Context, id int64) (*Response, error) {
	req, err := c.newRequest(ctx, c.AuditsURL(id))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audits request (timeout=%s): %w", c.cfg.RequestTimeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audits body (timeout=%s): %w", c.cfg.RequestTimeout, err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// GetMedia starts a media download. Redirects are returned, not followed. The
// caller must close the response body.
func (c *Client) GetMedia(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := c.newRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := c.mediaClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media request (timeout=%s): %w", c.cfg.MediaTimeout, err)
	}
	return resp, nil
}

// CheckAccess issues one audits request for id and reports whether the
// credentials were accepted. A 404 counts as accepted.
func (c *Client) CheckAccess(ctx context.Context, id int64) (int, error) {
	resp, err := c.FetchAudits(ctx, id)
	if err != nil {
		return 0, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, fmt.Errorf("credentials rejected (http %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, nil
	default:
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

func (c *Client) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.cfg.Username != "" || c.cfg.Password != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	return req, nil
}

// IsRetriable reports whether a transport error is a connection-level fault
// worth retrying: timeouts, resets, and refused connections. Context
// cancellation by the caller is never retriable.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	message := strings.ToLower(err.Error())
	for _, token := range []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"broken pipe",
		"temporary failure",
		"awaiting headers",
	} {
		if strings.Contains(message, token) {
			return true
		}
	}
	return false
}
