// Package api talks to a gallery service over HTTP. Client implements every
// remote collaborator a gallery.Panel needs.
package api

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
	"strings"
	"sync/atomic"
	"time"

	"github.com/pluqqy/lora-gallery/internal/logger"
)

const (
	DefaultPrefix  = "/LocalLoraGalleryRemix"
	DefaultTimeout = 15 * time.Second

	maxResponseSize = 8 << 20
)

var ErrBadBaseURL = errors.New("invalid server url")

// StatusError is returned for replies outside the 2xx range
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 reply
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Options configures a Client
type Options struct {
	BaseURL    string
	Prefix     string
	Timeout    time.Duration
	PerPage    int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is safe for concurrent use
type Client struct {
	base     *url.URL
	prefix   string
	perPage  int
	http     *http.Client
	log      *slog.Logger
	inFlight atomic.Int64
}

// New builds a client for the service at opts.BaseURL
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https, got %q", ErrBadBaseURL, opts.BaseURL)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	prefix = "/" + strings.Trim(prefix, "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}

	return &Client{
		base:    base,
		prefix:  prefix,
		perPage: opts.PerPage,
		http:    httpClient,
		log:     log.With("component", "api"),
	}, nil
}

// InFlight is the number of requests currently waiting on the server
func (c *Client) InFlight() int64 {
	return c.inFlight.Load()
}

// BaseURL returns the server address without the route prefix
func (c *Client) BaseURL() string {
	return c.base.String()
}

// endpoint builds the URL of a route under the prefix
func (c *Client) endpoint(route string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + c.prefix + "/" + strings.TrimLeft(route, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// ResolveURL turns a server-relative path such as a preview URL into an absolute one
func (c *Client) ResolveURL(path string) string {
	if path == "" {
		return ""
	}
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) getJSON(ctx context.Context, route string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(route, query), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, route string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(route, nil), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

// do sends req and decodes a JSON reply into out, when out is not nil
func (c *Client) do(req *http.Request, out any) error {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("request done",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Message: replyMessage(body)}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

// statusReply is the envelope the service wraps most write replies in
type statusReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (r statusReply) err() error {
	if r.Status == "" || r.Status == "ok" {
		return nil
	}
	msg := r.Message
	if msg == "" {
		msg = r.Error
	}
	return &StatusError{Code: http.StatusOK, Message: msg}
}

// replyMessage pulls a readable message out of an error reply
func replyMessage(body []byte) string {
	var reply statusReply
	if err := json.Unmarshal(body, &reply); err == nil {
		if reply.Message != "" {
			return reply.Message
		}
		if reply.Error != "" {
			return reply.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
