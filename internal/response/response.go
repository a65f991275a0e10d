// Package response builds default responses for parsed requests and
// serializes responses to HTTP/1.x wire format.
package response

import (
	"bytes"
	"io"
	"strconv"

	"github.com/athena-engine/athena/internal/request"
)

// FallbackResponse is written whenever a Response is incomplete or marked
// unsuccessful. It is a complete, self-delimiting 200 with an empty body.
const FallbackResponse = "HTTP/1.1 200 OK\r\n" +
	"Content-Type: text/html; charset=UTF-8\r\n" +
	"Date: Wed, 14 Dec 2022 00:25:57 GMT\r\n" +
	"Access-Control-Allow-Origin: *\r\n" +
	"Content-Disposition: inline\r\n" +
	"Content-Language: ko-KR\r\n" +
	"Connection: close\r\n" +
	"Content-Length: 0\r\n" +
	"\r\n"

// Response is a single response. It is consumed once by Serialize.
type Response struct {
	Success bool
	Status  Status
	Version request.Version
	Headers *Header
	Cookies []Cookie

	body    string
	hasBody bool
}

// Body returns the response body. ok is false when no body is set.
func (r *Response) Body() (string, bool) { return r.body, r.hasBody }

// SetBody replaces the body and recomputes Content-Length and
// Accept-Ranges. Hooks that rewrite the body must go through here.
func (r *Response) SetBody(body string) {
	r.body = body
	r.hasBody = true
	r.syncLength()
}

// ClearBody removes the body and sets Content-Length to 0.
func (r *Response) ClearBody() {
	r.body = ""
	r.hasBody = false
	r.syncLength()
}

func (r *Response) syncLength() {
	if r.Headers == nil {
		r.Headers = NewHeader()
	}
	if !r.hasBody {
		r.Headers.Set("Content-Length", "0")
		r.Headers.Del("Accept-Ranges")
		return
	}
	r.Headers.Set("Content-Length", strconv.Itoa(len(r.body)))
	r.Headers.Set("Accept-Ranges", "bytes")
}

// Complete reports whether the response can be serialized as-is rather
// than replaced by the fallback.
func (r *Response) Complete() bool {
	return r != nil && r.Success && r.Status != 0 &&
		r.Version != request.VersionNone && r.Headers != nil
}

// Serialize renders r in wire format. Incomplete or unsuccessful
// responses produce FallbackResponse.
func Serialize(r *Response) []byte {
	if !r.Complete() {
		return []byte(FallbackResponse)
	}

	var buf bytes.Buffer
	buf.Grow(256 + len(r.body))

	buf.WriteString(r.Version.String())
	buf.WriteByte(' ')
	buf.WriteString(r.Status.String())
	buf.WriteString("\r\n")

	r.Headers.Each(func(name, value string) {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	})
	for _, c := range r.Cookies {
		buf.WriteString("Set-Cookie: ")
		buf.WriteString(c.String())
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")

	if r.hasBody {
		buf.WriteString(r.body)
	}

	return buf.Bytes()
}

// WriteTo serializes r into w.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(Serialize(r))
	return int64(n), err
}
