package handler

import (
	"bytes"
	"html/template"
	"net/http"
	"sort"

	"github.com/ashpect/webserv/pkg/logging"
	"github.com/ashpect/webserv/pkg/request"
)

var listingTmpl = template.Must(template.New("index").Parse(`<html><head><title>Index of {{.Path}}</title></head>
<body><h1>Index of {{.Path}}</h1><hr><pre>
<a href="../">../</a>
{{range .Entries}}<a href="{{.}}">{{.}}</a>
{{end}}</pre><hr></body></html>
`))

// listing renders an autoindex page. Listings are never cached.
func (s *Static) listing(req *request.Request, route Route, dir string) *Response {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		s.log.Log(logging.LevelWarning, module, "autoindex failed", "dir", dir, "err", err)
		return s.errorResponse(req, route, statusFor(err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() {
			n += "/"
		}
		names = append(names, n)
	}
	sort.Strings(names)

	var b bytes.Buffer
	if err := listingTmpl.Execute(&b, struct {
		Path    string
		Entries []string
	}{req.Path, names}); err != nil {
		return s.errorResponse(req, route, http.StatusInternalServerError)
	}
	resp := newResponse(http.StatusOK, b.Bytes(), "text/html; charset=utf-8")
	resp.KeepAlive = true
	return resp
}
