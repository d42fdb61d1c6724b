package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Options(t *testing.T) {
	tr := NewTransport(WithMaxIdleConns(7), WithIdleConnTimeout(time.Second), WithDisableKeepAlives())
	c := NewClient(WithTimeout(time.Second), WithTransport(tr))

	assert.Equal(t, time.Second, c.Timeout)
	assert.Same(t, tr, c.Transport)
	assert.Equal(t, 7, tr.MaxIdleConns)
	assert.Equal(t, defaultMaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
	assert.True(t, tr.DisableKeepAlives)
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dir" {
			http.Redirect(w, r, "/dir/", http.StatusMovedPermanently)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	res, err := Probe(context.Background(), NewClient(), http.MethodGet, srv.URL+"/x")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "text/plain", res.ContentType)
	assert.Equal(t, 5, res.ContentLength)
	assert.Contains(t, res.String(), "200 OK, 5 bytes")

	res, err = Probe(context.Background(), NewClient(WithoutRedirects()), http.MethodGet, srv.URL+"/dir")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, res.Status)
}

func TestProbe_Unreachable(t *testing.T) {
	_, err := Probe(context.Background(), NewClient(WithTimeout(time.Second)), http.MethodGet, "http://127.0.0.1:1/")
	assert.Error(t, err)
}
