// Package request assembles HTTP/1.x requests from a connection's inbound
// buffer and classifies them as sane or not.
package request

import (
	"bufio"
	"bytes"
	"log/slog"
	"net/http"
	"strings"
)

// MaxHeaderBytes bounds the request line plus headers.
const MaxHeaderBytes = 8 << 10

var headerEnd = []byte("\r\n\r\n")

// Request is the parsed record handed to a response handler.
// Handlers only read it.
type Request struct {
	Method string
	Path   string
	Query  string
	Proto  string
	Host   string
	Header http.Header
	Body   []byte

	KeepAlive bool

	// Sanity is true when the request is well-formed and safe to let
	// influence shared state such as the content cache.
	Sanity bool
	// Status is non-zero when the request cannot be served at all; the
	// dispatcher answers with this code and closes the connection.
	Status int
	// Reason explains a false Sanity.
	Reason string
}

// Assemble looks for one complete request at the start of buf.
// It returns the request and the number of bytes it occupied, or (nil, 0)
// when more input is needed. maxBody limits Content-Length.
func Assemble(buf []byte, maxBody int64) (*Request, int) {
	end := bytes.Index(buf, headerEnd)
	if end < 0 {
		if len(buf) > MaxHeaderBytes {
			return reject(http.StatusRequestHeaderFieldsTooLarge, "header section too large"), len(buf)
		}
		return nil, 0
	}
	if end+len(headerEnd) > MaxHeaderBytes {
		return reject(http.StatusRequestHeaderFieldsTooLarge, "header section too large"), len(buf)
	}
	head := buf[:end+len(headerEnd)]

	hr, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(head)))
	if err != nil {
		return reject(http.StatusBadRequest, err.Error()), len(buf)
	}
	if hr.ProtoMajor != 1 {
		return reject(http.StatusHTTPVersionNotSupported, "protocol "+hr.Proto), len(buf)
	}
	if len(hr.TransferEncoding) > 0 {
		return reject(http.StatusNotImplemented, "transfer-encoding not supported"), len(buf)
	}

	bodyLen := hr.ContentLength
	if bodyLen < 0 {
		bodyLen = 0
	}
	if maxBody > 0 && bodyLen > maxBody {
		return reject(http.StatusRequestEntityTooLarge, "body exceeds client_max_body_size"), len(buf)
	}
	total := len(head) + int(bodyLen)
	if len(buf) < total {
		return nil, 0
	}

	req := &Request{
		Method:    hr.Method,
		Path:      hr.URL.Path,
		Query:     hr.URL.RawQuery,
		Proto:     hr.Proto,
		Host:      hr.Host,
		Header:    hr.Header,
		KeepAlive: !hr.Close,
		Sanity:    true,
	}
	if bodyLen > 0 {
		req.Body = append([]byte(nil), buf[len(head):total]...)
	}
	if req.Path == "" || req.Path[0] != '/' {
		return reject(http.StatusBadRequest, "target must be an absolute path"), len(buf)
	}
	req.classify()
	return req, total
}

// classify clears Sanity for requests that are answerable but whose content
// must not be shared through the cache.
func (r *Request) classify() {
	switch {
	case hasDotDot(r.Path):
		r.Sanity, r.Reason = false, "dot-dot segment in path"
	case r.Proto == "HTTP/1.1" && r.Host == "":
		r.Sanity, r.Reason = false, "missing Host header"
	case r.Header.Get("Range") != "":
		r.Sanity, r.Reason = false, "partial content request"
	case len(r.Body) > 0 && (r.Method == http.MethodGet || r.Method == http.MethodHead):
		r.Sanity, r.Reason = false, "body on " + r.Method
	}
}

func hasDotDot(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

func reject(status int, reason string) *Request {
	return &Request{Status: status, Reason: reason}
}

// HostName returns Host without the port.
func (r *Request) HostName() string {
	h := r.Host
	if i := strings.LastIndexByte(h, ':'); i >= 0 && !strings.Contains(h[i:], "]") {
		h = h[:i]
	}
	return strings.ToLower(h)
}

// LogValue renders the request for structured logs.
func (r *Request) LogValue() slog.Value {
	if r.Status != 0 {
		return slog.GroupValue(slog.Int("status", r.Status), slog.String("reason", r.Reason))
	}
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.Path),
		slog.String("host", r.Host),
		slog.Bool("keepalive", r.KeepAlive),
		slog.Bool("sane", r.Sanity),
	}
	if !r.Sanity {
		attrs = append(attrs, slog.String("reason", r.Reason))
	}
	return slog.GroupValue(attrs...)
}
