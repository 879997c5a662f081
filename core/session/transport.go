package session

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

var errNoHandler = errors.New("session: transport has no handler")

// HandlerTransport serves outbound requests in-process with Handler, so the portal
// pages can call the auth endpoints of the same server without a network hop.
// Handler may be set after the client is built, but before the first request.
type HandlerTransport struct {
	Handler http.Handler
}

var _ http.RoundTripper = (*HandlerTransport)(nil)

func (t *HandlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Handler == nil {
		return nil, errNoHandler
	}
	if req.Body == nil {
		req = req.Clone(req.Context())
		req.Body = http.NoBody
	}
	buf := newResponseBuffer()
	t.Handler.ServeHTTP(buf, req)
	return buf.response(req), nil
}

// responseBuffer is an http.ResponseWriter that keeps the whole response in memory.
// Headers are frozen at the first WriteHeader, as on a real connection.
type responseBuffer struct {
	header http.Header
	sent   http.Header
	code   int
	body   bytes.Buffer
}

var _ http.Flusher = (*responseBuffer)(nil)

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{header: make(http.Header)}
}

func (b *responseBuffer) Header() http.Header { return b.header }

func (b *responseBuffer) WriteHeader(code int) {
	if b.sent != nil {
		return
	}
	b.code = code
	b.sent = b.header.Clone()
}

func (b *responseBuffer) Write(p []byte) (int, error) {
	b.WriteHeader(http.StatusOK)
	return b.body.Write(p)
}

// Flush only commits the headers; the body is handed over when the handler returns.
func (b *responseBuffer) Flush() { b.WriteHeader(http.StatusOK) }

func (b *responseBuffer) response(req *http.Request) *http.Response {
	b.WriteHeader(http.StatusOK)
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", b.code, http.StatusText(b.code)),
		StatusCode:    b.code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        b.sent,
		Body:          io.NopCloser(bytes.NewReader(b.body.Bytes())),
		ContentLength: int64(b.body.Len()),
		Request:       req,
	}
}
