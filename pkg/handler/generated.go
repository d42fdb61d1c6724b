package handler

import (
	"net/http"

	"github.com/ashpect/webserv/pkg/request"
)

// Generated is the slot for process-backed content (CGI). Execution is not
// implemented; routes marked cgi answer 501 through it.
type Generated struct{}

func (Generated) Kind() Kind { return KindGenerated }

func (Generated) Serve(req *request.Request, _ Route) *Response {
	resp := newResponse(http.StatusNotImplemented, defaultErrorBody(http.StatusNotImplemented), "text/html; charset=utf-8")
	resp.KeepAlive = req.KeepAlive
	return resp
}
