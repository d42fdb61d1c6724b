package handler

import (
	"net/http"
	"strings"

	"github.com/ashpect/webserv/pkg/config"
	"github.com/ashpect/webserv/pkg/errs"
	"github.com/ashpect/webserv/pkg/logging"
	"github.com/ashpect/webserv/pkg/request"
)

// RouterOption is a functional option for building a Router
type RouterOption func(*Router)

// WithStatusObserver is called with the status of every response.
func WithStatusObserver(fn func(status int)) RouterOption {
	return func(r *Router) {
		r.observe = fn
	}
}

// WithGenerated replaces the handler used for cgi locations.
func WithGenerated(h Handler) RouterOption {
	return func(r *Router) {
		r.generated = h
	}
}

// Router selects the server block, location and handler variant for a
// request and produces its response.
type Router struct {
	servers   map[int][]*config.ServerCfg
	static    *Static
	generated Handler
	log       logging.Logger
	observe   func(int)
}

// NewRouter indexes cfg's servers by listening port.
func NewRouter(cfg *config.SystemCfg, static *Static, log logging.Logger, opts ...RouterOption) (*Router, error) {
	if static == nil || log == nil {
		return nil, errs.Configf("handler.NewRouter", "static handler and logger are required")
	}
	r := &Router{
		servers:   make(map[int][]*config.ServerCfg),
		static:    static,
		generated: Generated{},
		log:       log,
		observe:   func(int) {},
	}
	for i := range cfg.Servers {
		s := &cfg.Servers[i]
		r.servers[s.Listen] = append(r.servers[s.Listen], s)
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Ports returns every configured listening port.
func (r *Router) Ports() []int {
	out := make([]int, 0, len(r.servers))
	for p := range r.servers {
		out = append(out, p)
	}
	return out
}

// MaxBody returns the body limit of the default server on port.
func (r *Router) MaxBody(port int) int64 {
	if s := r.server(port, ""); s != nil {
		return s.ClientMaxBodySize
	}
	return 0
}

// server picks the block whose server_name matches host, falling back to
// the first block declared for the port.
func (r *Router) server(port int, host string) *config.ServerCfg {
	list := r.servers[port]
	if len(list) == 0 {
		return nil
	}
	for _, s := range list {
		if host != "" && strings.EqualFold(s.ServerName, host) {
			return s
		}
	}
	return list[0]
}

// location returns the longest prefix match on whole path segments.
func location(s *config.ServerCfg, p string) *config.LocationCfg {
	var best *config.LocationCfg
	for i := range s.Locations {
		l := &s.Locations[i]
		prefix := strings.TrimSuffix(l.Path, "/")
		if prefix != "" && p != prefix && !strings.HasPrefix(p, prefix+"/") {
			continue
		}
		if best == nil || len(l.Path) > len(best.Path) {
			best = l
		}
	}
	return best
}

// Route resolves req on port to its configuration.
func (r *Router) Route(port int, req *request.Request) (Route, bool) {
	s := r.server(port, req.HostName())
	if s == nil {
		return Route{}, false
	}
	l := location(s, req.Path)
	return Route{Server: s, Location: l}, l != nil
}

// Respond produces the response for req received on port.
func (r *Router) Respond(port int, req *request.Request) *Response {
	resp, kind := r.respond(port, req)
	r.observe(resp.Status)
	r.log.Log(logging.LevelInfo, module, "response", "port", port, "request", req, "handler", kind, "status", resp.Status)
	return resp
}

func (r *Router) respond(port int, req *request.Request) (*Response, Kind) {
	if req.Status != 0 {
		resp := r.static.errorResponse(req, Route{Server: r.server(port, "")}, req.Status)
		resp.KeepAlive = false
		return resp, r.static.Kind()
	}

	route, ok := r.Route(port, req)
	if !ok {
		resp := r.static.errorResponse(req, route, http.StatusNotFound)
		resp.KeepAlive = req.KeepAlive
		return resp, r.static.Kind()
	}
	var h Handler = r.static
	if route.Location.CGI {
		h = r.generated
	}
	return h.Serve(req, route), h.Kind()
}
