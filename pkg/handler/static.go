package handler

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/ashpect/webserv/pkg/cache"
	"github.com/ashpect/webserv/pkg/errs"
	"github.com/ashpect/webserv/pkg/fsys"
	"github.com/ashpect/webserv/pkg/logging"
	"github.com/ashpect/webserv/pkg/request"
)

const module = "handler"

// Static serves files under a location root, preferring the content cache
// over the filesystem.
type Static struct {
	cache   cache.Cache[string, []byte]
	fs      fsys.FS
	log     logging.Logger
	webRoot string
}

// NewStatic builds the static handler. webRoot is the directory error pages
// are resolved against.
func NewStatic(c cache.Cache[string, []byte], files fsys.FS, log logging.Logger, webRoot string) (*Static, error) {
	switch {
	case c == nil:
		return nil, errs.Configf("handler.NewStatic", "cache is required")
	case files == nil:
		return nil, errs.Configf("handler.NewStatic", "filesystem is required")
	case log == nil:
		return nil, errs.Configf("handler.NewStatic", "logger is required")
	}
	return &Static{cache: c, fs: files, log: log, webRoot: webRoot}, nil
}

func (s *Static) Kind() Kind { return KindStatic }

// ResolveContent returns the bytes for path.
//
// A cache hit is trusted only if the file still exists; a stale entry is
// dropped and reported as NotFound. On a miss the file is read from disk and
// cached only when the request is sane.
func (s *Static) ResolveContent(req *request.Request, path string) ResponseData {
	if content, ok := s.cache.Get(path); ok {
		if s.fs.Exists(path) {
			s.log.Log(logging.LevelDebug, module, "cache hit", "path", path)
			return ResponseData{Content: content, OK: true}
		}
		s.cache.Remove(path)
		s.log.Log(logging.LevelDebug, module, "stale cache entry dropped", "path", path)
		return ResponseData{Err: errs.E(errs.NotFound, "resolve "+path, fs.ErrNotExist)}
	}

	content, err := s.fs.ReadFile(path)
	if err != nil {
		return ResponseData{Err: err}
	}
	if req.Sanity {
		s.cache.Put(path, content)
		s.log.Log(logging.LevelDebug, module, "cached", "path", path, "bytes", len(content))
	} else {
		s.log.Log(logging.LevelDebug, module, "not caching insane request", "path", path, "reason", req.Reason)
	}
	return ResponseData{Content: content, OK: true}
}

func (s *Static) Serve(req *request.Request, route Route) *Response {
	resp := s.serve(req, route)
	resp.KeepAlive = resp.KeepAlive && req.KeepAlive
	if req.Method == http.MethodHead {
		resp.OmitBody = true
	}
	return resp
}

func (s *Static) serve(req *request.Request, route Route) *Response {
	loc := route.Location
	if !loc.Allows(req.Method) {
		resp := s.errorResponse(req, route, http.StatusMethodNotAllowed)
		resp.Header.Set("Allow", strings.Join(loc.Methods, ", "))
		return resp
	}

	target, ok := fsys.Join(loc.Root, loc.Path, req.Path)
	if !ok {
		return s.errorResponse(req, route, http.StatusForbidden)
	}

	switch req.Method {
	case http.MethodDelete:
		return s.delete(req, route, target)
	case http.MethodPost:
		return s.upload(req, route, target)
	}

	if fi, err := s.fs.Stat(target); err == nil && fi.IsDir() {
		if !strings.HasSuffix(req.Path, "/") {
			dest := req.Path + "/"
			if req.Query != "" {
				dest += "?" + req.Query
			}
			resp := newResponse(http.StatusMovedPermanently, nil, "")
			resp.Header.Set("Location", dest)
			resp.KeepAlive = true
			return resp
		}
		index := filepath.Join(target, loc.Index)
		if !s.fs.Exists(index) {
			if loc.Autoindex {
				return s.listing(req, route, target)
			}
			return s.errorResponse(req, route, http.StatusForbidden)
		}
		target = index
	}

	data := s.ResolveContent(req, target)
	if !data.OK {
		return s.errorResponse(req, route, statusFor(data.Err))
	}
	resp := newResponse(http.StatusOK, data.Content, contentType(target))
	resp.KeepAlive = true
	return resp
}

func (s *Static) delete(req *request.Request, route Route, target string) *Response {
	if err := s.fs.Remove(target); err != nil {
		return s.errorResponse(req, route, statusFor(err))
	}
	s.cache.Remove(target)
	resp := newResponse(http.StatusNoContent, nil, "")
	resp.KeepAlive = true
	return resp
}

func (s *Static) upload(req *request.Request, route Route, target string) *Response {
	if strings.HasSuffix(req.Path, "/") {
		return s.errorResponse(req, route, http.StatusForbidden)
	}
	if err := s.fs.WriteFile(target, req.Body); err != nil {
		s.log.Log(logging.LevelWarning, module, "upload failed", "path", target, "err", err)
		return s.errorResponse(req, route, statusFor(err))
	}
	// Whatever was cached for this path is now wrong.
	s.cache.Remove(target)
	resp := newResponse(http.StatusCreated, nil, "")
	resp.Header.Set("Location", req.Path)
	resp.KeepAlive = true
	return resp
}

// errorResponse renders status, using the server's custom page when one is
// configured and resolvable.
func (s *Static) errorResponse(req *request.Request, route Route, status int) *Response {
	if route.Server != nil {
		if page, ok := route.Server.ErrorPage(status); ok {
			if p, ok := fsys.Join(s.webRoot, "/", page); ok {
				if data := s.ResolveContent(req, p); data.OK {
					resp := newResponse(status, data.Content, contentType(p))
					resp.KeepAlive = true
					return resp
				}
			}
			s.log.Log(logging.LevelWarning, module, "error page unavailable", "status", status, "page", page)
		}
	}
	resp := newResponse(status, defaultErrorBody(status), "text/html; charset=utf-8")
	resp.KeepAlive = true
	return resp
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errs.Is(err, errs.NotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
