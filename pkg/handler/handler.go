// Package handler produces HTTP responses for assembled requests.
//
// A Handler is chosen per request by the Router. The Static variant serves
// files through the shared content cache; Generated is the extension point
// for process-backed content and currently answers 501. Neither the cache
// nor the connection layer depends on a concrete variant.
package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/ashpect/webserv/pkg/config"
	"github.com/ashpect/webserv/pkg/request"
)

const serverName = "webserv"

// Kind tags the handler variants.
type Kind int

const (
	KindStatic Kind = iota
	KindGenerated
)

func (k Kind) String() string {
	if k == KindGenerated {
		return "generated"
	}
	return "static"
}

// Handler produces the response for one request.
type Handler interface {
	Kind() Kind
	Serve(req *request.Request, route Route) *Response
}

// Route is the configuration a request resolved to.
type Route struct {
	Server   *config.ServerCfg
	Location *config.LocationCfg
}

// ResponseData is resolved content plus whether resolution succeeded.
type ResponseData struct {
	Content []byte
	OK      bool
	Err     error
}

// Response is a complete HTTP response.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	KeepAlive bool
	// OmitBody is set for HEAD: headers describe Body but it is not sent.
	OmitBody bool
}

func newResponse(status int, body []byte, contentType string) *Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &Response{Status: status, Header: h, Body: body}
}

// now is swapped in tests.
var now = time.Now

// Bytes renders the status line, headers and body.
func (r *Response) Bytes() []byte {
	var b bytes.Buffer
	text := http.StatusText(r.Status)
	if text == "" {
		text = "Status " + strconv.Itoa(r.Status)
	}
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", r.Status, text)

	h := r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Server", serverName)
	h.Set("Date", now().UTC().Format(http.TimeFormat))
	h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	if r.KeepAlive {
		h.Set("Connection", "keep-alive")
	} else {
		h.Set("Connection", "close")
	}

	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range h[k] {
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}
	b.WriteString("\r\n")
	if !r.OmitBody {
		b.Write(r.Body)
	}
	return b.Bytes()
}

func defaultErrorBody(status int) []byte {
	return []byte(fmt.Sprintf("<html><head><title>%d %s</title></head><body><h1>%d %s</h1></body></html>\n",
		status, http.StatusText(status), status, http.StatusText(status)))
}
