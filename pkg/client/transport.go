package client

import (
	"net/http"
	"time"
)

const (
	defaultMaxIdleConnsPerHost = 4
	defaultIdleConnTimeout     = 30 * time.Second
)

type TransportOption func(*http.Transport)

func WithMaxIdleConns(maxIdleConns int) TransportOption {
	return func(t *http.Transport) {
		t.MaxIdleConns = maxIdleConns
	}
}

func WithMaxIdleConnsPerHost(maxIdleConnsPerHost int) TransportOption {
	return func(t *http.Transport) {
		t.MaxIdleConnsPerHost = maxIdleConnsPerHost
	}
}

func WithIdleConnTimeout(timeout time.Duration) TransportOption {
	return func(t *http.Transport) {
		t.IdleConnTimeout = timeout
	}
}

// WithDisableKeepAlives opens a fresh connection per request.
func WithDisableKeepAlives() TransportOption {
	return func(t *http.Transport) {
		t.DisableKeepAlives = true
	}
}

// NewTransport returns a plain HTTP/1.1 transport; webserv does not speak
// HTTP/2 or TLS.
func NewTransport(opts ...TransportOption) *http.Transport {
	transport := &http.Transport{
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		ForceAttemptHTTP2:   false,
	}
	for _, opt := range opts {
		opt(transport)
	}
	return transport
}
