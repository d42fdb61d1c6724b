package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashpect/webserv/pkg/config"
	"github.com/ashpect/webserv/pkg/logging"
	"github.com/ashpect/webserv/pkg/request"
)

func newRouter(t *testing.T, f *fixture, observe func(int)) *Router {
	t.Helper()
	cfg := &config.SystemCfg{Root: f.root, Servers: []config.ServerCfg{
		{
			Listen: 8080, ServerName: "default", ClientMaxBodySize: 64,
			Locations: []config.LocationCfg{
				{Path: "/", Root: f.root, Index: "index.html", Methods: []string{"GET"}},
				{Path: "/cgi-bin", Root: f.root, Methods: []string{"GET"}, CGI: true},
			},
		},
		{
			Listen: 8080, ServerName: "other.test", ClientMaxBodySize: 128,
			Locations: []config.LocationCfg{{Path: "/", Root: f.root + "/other", Index: "index.html", Methods: []string{"GET"}}},
		},
	}}
	r, err := NewRouter(cfg, f.static, logging.Discard(), WithStatusObserver(observe))
	require.NoError(t, err)
	return r
}

func TestRouter_VirtualHosts(t *testing.T) {
	f := newFixture(t, 4)
	f.write(t, "index.html", "main")
	f.write(t, "other/index.html", "other")
	r := newRouter(t, f, func(int) {})

	resp := r.Respond(8080, get("/"))
	assert.Equal(t, "main", string(resp.Body))

	req := get("/")
	req.Host = "OTHER.test:8080"
	resp = r.Respond(8080, req)
	assert.Equal(t, "other", string(resp.Body))

	assert.EqualValues(t, 64, r.MaxBody(8080))
	assert.Zero(t, r.MaxBody(9999))
	assert.Equal(t, []int{8080}, r.Ports())
}

func TestRouter_LocationPrefixIsSegmentAware(t *testing.T) {
	f := newFixture(t, 4)
	r := newRouter(t, f, func(int) {})

	route, ok := r.Route(8080, get("/cgi-bin/run"))
	require.True(t, ok)
	assert.True(t, route.Location.CGI)

	route, ok = r.Route(8080, get("/cgi-binary"))
	require.True(t, ok)
	assert.Equal(t, "/", route.Location.Path)
}

func TestRouter_GeneratedStub(t *testing.T) {
	f := newFixture(t, 4)
	var seen []int
	r := newRouter(t, f, func(s int) { seen = append(seen, s) })

	resp := r.Respond(8080, get("/cgi-bin/script.py"))
	assert.Equal(t, http.StatusNotImplemented, resp.Status)
	assert.Equal(t, []int{http.StatusNotImplemented}, seen)
}

// scripted stands in for a process-backed handler.
type scripted struct {
	served []string
}

func (s *scripted) Kind() Kind { return KindGenerated }

func (s *scripted) Serve(req *request.Request, route Route) *Response {
	s.served = append(s.served, route.Location.Path+" "+req.Path)
	resp := newResponse(http.StatusOK, []byte("generated"), "text/plain")
	resp.KeepAlive = req.KeepAlive
	return resp
}

func TestRouter_WithGenerated(t *testing.T) {
	f := newFixture(t, 4)
	f.write(t, "index.html", "main")
	gen := &scripted{}
	cfg := &config.SystemCfg{Root: f.root, Servers: []config.ServerCfg{{
		Listen: 8080,
		Locations: []config.LocationCfg{
			{Path: "/", Root: f.root, Index: "index.html", Methods: []string{"GET"}},
			{Path: "/cgi-bin", Root: f.root, Methods: []string{"GET"}, CGI: true},
		},
	}}}
	r, err := NewRouter(cfg, f.static, logging.Discard(), WithGenerated(gen))
	require.NoError(t, err)

	resp := r.Respond(8080, get("/cgi-bin/run.py"))
	assert.Equal(t, "generated", string(resp.Body))
	resp = r.Respond(8080, get("/"))
	assert.Equal(t, "main", string(resp.Body))

	assert.Equal(t, []string{"/cgi-bin /cgi-bin/run.py"}, gen.served)
	assert.Equal(t, KindGenerated, gen.Kind())
	assert.Equal(t, KindStatic, f.static.Kind())
	assert.Equal(t, KindGenerated, Generated{}.Kind())
	assert.Equal(t, "generated", KindGenerated.String())
}

func TestRouter_RejectedRequestCloses(t *testing.T) {
	f := newFixture(t, 4)
	r := newRouter(t, f, func(int) {})

	resp := r.Respond(8080, &request.Request{Status: http.StatusRequestEntityTooLarge, Reason: "too big"})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Status)
	assert.False(t, resp.KeepAlive)
	assert.Contains(t, string(resp.Bytes()), "Connection: close\r\n")
}

func TestResponse_Bytes(t *testing.T) {
	now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	resp := newResponse(http.StatusOK, []byte("hi"), "text/plain")
	resp.KeepAlive = true
	raw := string(resp.Bytes())

	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, raw, "Connection: keep-alive\r\n")
	assert.Contains(t, raw, "Content-Length: 2\r\n")
	assert.Contains(t, raw, "Content-Type: text/plain\r\n")
	assert.Contains(t, raw, "Date: Tue, 02 Jan 2024 03:04:05 GMT\r\n")
	assert.Contains(t, raw, "Server: webserv\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nhi"))
}
