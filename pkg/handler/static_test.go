package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashpect/webserv/pkg/cache"
	"github.com/ashpect/webserv/pkg/config"
	"github.com/ashpect/webserv/pkg/errs"
	"github.com/ashpect/webserv/pkg/fsys"
	"github.com/ashpect/webserv/pkg/logging"
	"github.com/ashpect/webserv/pkg/request"
)

// countingFS records disk reads on top of the real filesystem.
type countingFS struct {
	fsys.OS
	reads int
}

func (c *countingFS) ReadFile(name string) ([]byte, error) {
	c.reads++
	return c.OS.ReadFile(name)
}

type fixture struct {
	root   string
	cache  *cache.LRU[string, []byte]
	fs     *countingFS
	static *Static
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	root := t.TempDir()
	c, err := cache.New[string, []byte](capacity)
	require.NoError(t, err)
	fs := &countingFS{}
	s, err := NewStatic(c, fs, logging.Discard(), root)
	require.NoError(t, err)
	return &fixture{root: root, cache: c, fs: fs, static: s}
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (f *fixture) route(extra ...func(*config.ServerCfg)) Route {
	s := &config.ServerCfg{
		Listen:     8080,
		ErrorPages: map[string]string{},
		Locations: []config.LocationCfg{{
			Path: "/", Root: f.root, Index: "index.html", Methods: []string{"GET", "HEAD", "DELETE", "POST"},
		}},
	}
	for _, fn := range extra {
		fn(s)
	}
	return Route{Server: s, Location: &s.Locations[0]}
}

func get(path string) *request.Request {
	return &request.Request{Method: http.MethodGet, Path: path, Proto: "HTTP/1.1", Host: "h", Header: http.Header{}, KeepAlive: true, Sanity: true}
}

func TestNewStatic_RequiresCollaborators(t *testing.T) {
	c, _ := cache.New[string, []byte](1)
	_, err := NewStatic(c, fsys.OS{}, nil, "/")
	assert.True(t, errs.Is(err, errs.Configuration))
	_, err = NewStatic(nil, fsys.OS{}, logging.Discard(), "/")
	assert.True(t, errs.Is(err, errs.Configuration))
}

func TestResolveContent_MissPopulatesThenHits(t *testing.T) {
	f := newFixture(t, 4)
	p := f.write(t, "a.txt", "A")

	data := f.static.ResolveContent(get("/a.txt"), p)
	require.True(t, data.OK)
	assert.Equal(t, "A", string(data.Content))
	assert.Equal(t, 1, f.cache.Len())

	data = f.static.ResolveContent(get("/a.txt"), p)
	require.True(t, data.OK)
	assert.Equal(t, 1, f.fs.reads, "second resolve must come from cache")
}

// Cache holds ("x","old"); the file is gone; resolve must drop the entry and
// report NotFound rather than serve stale bytes.
func TestResolveContent_StaleHitIsInvalidated(t *testing.T) {
	f := newFixture(t, 4)
	x := filepath.Join(f.root, "x")
	f.cache.Put(x, []byte("old"))

	data := f.static.ResolveContent(get("/x"), x)

	assert.False(t, data.OK)
	assert.True(t, errs.Is(data.Err, errs.NotFound))
	_, ok := f.cache.Get(x)
	assert.False(t, ok)
	assert.Zero(t, f.fs.reads)
}

func TestResolveContent_InsaneRequestNotCached(t *testing.T) {
	f := newFixture(t, 4)
	p := f.write(t, "a.txt", "A")
	req := get("/a.txt")
	req.Sanity, req.Reason = false, "partial content request"

	data := f.static.ResolveContent(req, p)

	require.True(t, data.OK)
	assert.Equal(t, "A", string(data.Content))
	assert.Equal(t, 0, f.cache.Len())
}

func TestResolveContent_MissingFile(t *testing.T) {
	f := newFixture(t, 4)
	data := f.static.ResolveContent(get("/nope"), filepath.Join(f.root, "nope"))
	assert.False(t, data.OK)
	assert.True(t, errs.Is(data.Err, errs.NotFound))
	assert.Equal(t, 0, f.cache.Len())
}

func TestServe_FileAndHead(t *testing.T) {
	f := newFixture(t, 4)
	f.write(t, "css/site.css", "body{}")

	resp := f.static.Serve(get("/css/site.css"), f.route())
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "body{}", string(resp.Body))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	assert.True(t, resp.KeepAlive)

	head := get("/css/site.css")
	head.Method = http.MethodHead
	resp = f.static.Serve(head, f.route())
	assert.True(t, resp.OmitBody)
	raw := string(resp.Bytes())
	assert.Contains(t, raw, "Content-Length: 6\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n"))
}

func TestServe_DirectoryIndexAndRedirect(t *testing.T) {
	f := newFixture(t, 4)
	f.write(t, "docs/index.html", "<p>docs</p>")

	resp := f.static.Serve(get("/docs"), f.route())
	assert.Equal(t, http.StatusMovedPermanently, resp.Status)
	assert.Equal(t, "/docs/", resp.Header.Get("Location"))

	withQuery := get("/docs")
	withQuery.Query = "lang=en&v=2"
	resp = f.static.Serve(withQuery, f.route())
	assert.Equal(t, http.StatusMovedPermanently, resp.Status)
	assert.Equal(t, "/docs/?lang=en&v=2", resp.Header.Get("Location"))

	resp = f.static.Serve(get("/docs/"), f.route())
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "<p>docs</p>", string(resp.Body))
}

func TestServe_Autoindex(t *testing.T) {
	f := newFixture(t, 4)
	f.write(t, "pub/b.txt", "b")
	f.write(t, "pub/a/inner.txt", "a")

	resp := f.static.Serve(get("/pub/"), f.route())
	assert.Equal(t, http.StatusForbidden, resp.Status, "autoindex off")

	r := f.route()
	r.Location.Autoindex = true
	resp = f.static.Serve(get("/pub/"), r)
	require.Equal(t, http.StatusOK, resp.Status)
	body := string(resp.Body)
	assert.Contains(t, body, `<a href="a/">a/</a>`)
	assert.Contains(t, body, `<a href="b.txt">b.txt</a>`)
	assert.Equal(t, 0, f.cache.Len(), "listings are not cached")
}

func TestServe_CustomErrorPage(t *testing.T) {
	f := newFixture(t, 4)
	f.write(t, "errors/404.html", "custom missing")
	r := f.route(func(s *config.ServerCfg) { s.ErrorPages["404"] = "/errors/404.html" })

	resp := f.static.Serve(get("/missing.html"), r)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "custom missing", string(resp.Body))
}

func TestServe_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, 4)
	r := f.route()
	r.Location.Methods = []string{"GET"}
	req := get("/")
	req.Method = http.MethodDelete

	resp := f.static.Serve(req, r)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Status)
	assert.Equal(t, "GET", resp.Header.Get("Allow"))
}

func TestServe_UploadAndDeleteInvalidateCache(t *testing.T) {
	f := newFixture(t, 4)
	p := f.write(t, "note.txt", "v1")

	resp := f.static.Serve(get("/note.txt"), f.route())
	require.Equal(t, "v1", string(resp.Body))
	require.Equal(t, 1, f.cache.Len())

	post := get("/note.txt")
	post.Method, post.Body = http.MethodPost, []byte("v2")
	resp = f.static.Serve(post, f.route())
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, 0, f.cache.Len())

	resp = f.static.Serve(get("/note.txt"), f.route())
	assert.Equal(t, "v2", string(resp.Body))

	del := get("/note.txt")
	del.Method = http.MethodDelete
	resp = f.static.Serve(del, f.route())
	assert.Equal(t, http.StatusNoContent, resp.Status)
	_, ok := f.cache.Get(p)
	assert.False(t, ok)

	resp = f.static.Serve(del, f.route())
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestServe_TraversalForbidden(t *testing.T) {
	f := newFixture(t, 4)
	resp := f.static.Serve(get("/../etc/passwd"), f.route())
	assert.Equal(t, http.StatusForbidden, resp.Status)
}
