// Package client builds the HTTP clients used to probe a running webserv.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultClientTimeout = 10 * time.Second

type ClientOption func(*http.Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *http.Client) {
		c.Timeout = timeout
	}
}

func WithTransport(transport *http.Transport) ClientOption {
	return func(c *http.Client) {
		c.Transport = transport
	}
}

// WithoutRedirects makes the client return 3xx responses as they are, so a
// directory redirect can be inspected.
func WithoutRedirects() ClientOption {
	return func(c *http.Client) {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
}

func NewClient(opts ...ClientOption) *http.Client {
	client := &http.Client{
		Timeout:   defaultClientTimeout,
		Transport: NewTransport(),
	}

	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Result summarises one probe.
type Result struct {
	Status        int
	ContentType   string
	ContentLength int
	KeepAlive     bool
	Elapsed       time.Duration
	Body          []byte
}

func (r *Result) String() string {
	conn := "close"
	if r.KeepAlive {
		conn = "keep-alive"
	}
	return fmt.Sprintf("%d %s, %d bytes, %s, connection %s",
		r.Status, http.StatusText(r.Status), r.ContentLength, r.Elapsed.Round(time.Microsecond), conn)
}

// Probe issues method against url and reads the whole response.
func Probe(ctx context.Context, c *http.Client, method, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	start := time.Now()
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Result{
		Status:        resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: len(body),
		KeepAlive:     !resp.Close,
		Elapsed:       time.Since(start),
		Body:          body,
	}, nil
}
