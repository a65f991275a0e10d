// Package request turns raw HTTP/1.x request text into an immutable Request.
package request

import (
	"net/textproto"
	"strings"
)

// Method is the request method. The zero value means the request line
// was too short to carry one.
type Method int

const (
	MethodNone Method = iota
	MethodGet
	MethodPost
	MethodUnsupported
)

// String returns the method token.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodUnsupported:
		return "UNSUPPORTED"
	default:
		return ""
	}
}

// Supported reports whether the engine serves this method.
func (m Method) Supported() bool {
	return m == MethodGet || m == MethodPost
}

func parseMethod(token string) Method {
	switch token {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	default:
		return MethodUnsupported
	}
}

// Version is the HTTP protocol version. The zero value means unset.
type Version int

const (
	VersionNone Version = iota
	Version10
	Version11
	Version20
	VersionUnsupported
)

// String returns the version as written on a status line. Unset and
// unsupported versions are answered as HTTP/1.1.
func (v Version) String() string {
	switch v {
	case Version10:
		return "HTTP/1.0"
	case Version20:
		return "HTTP/2.0"
	default:
		return "HTTP/1.1"
	}
}

// Supported reports whether the engine serves this version.
func (v Version) Supported() bool {
	return v == Version10 || v == Version11 || v == Version20
}

func parseVersion(token string) Version {
	switch token {
	case "HTTP/1.0":
		return Version10
	case "HTTP/1.1":
		return Version11
	case "HTTP/2":
		return Version20
	default:
		return VersionUnsupported
	}
}

// Request is a parsed request. It is built once per connection and never
// modified afterwards; map accessors return copies.
type Request struct {
	method    Method
	target    string
	hasTarget bool
	version   Version
	host      string
	headers   map[string]string
	cookies   map[string]string
	query     map[string]string
	body      string
	hasBody   bool
}

// Method returns the request method.
func (r *Request) Method() Method { return r.method }

// Version returns the protocol version.
func (r *Request) Version() Version { return r.version }

// Target returns the raw request target including the query string.
func (r *Request) Target() (string, bool) { return r.target, r.hasTarget }

// Path returns the target without its query string.
func (r *Request) Path() (string, bool) {
	if !r.hasTarget {
		return "", false
	}
	path, _, _ := strings.Cut(r.target, "?")
	return path, true
}

// Host returns the value of the Host header, or "".
func (r *Request) Host() string { return r.host }

// UserAgent returns the User-Agent header when present.
func (r *Request) UserAgent() (string, bool) {
	return r.Header("User-Agent")
}

// Header returns a header value. Names are matched case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.headers[textproto.CanonicalMIMEHeaderKey(name)]
	return v, ok
}

// Headers returns a copy of all headers other than Host and Cookie.
func (r *Request) Headers() map[string]string { return copyMap(r.headers) }

// Cookie returns a single cookie value.
func (r *Request) Cookie(name string) (string, bool) {
	v, ok := r.cookies[name]
	return v, ok
}

// Cookies returns a copy of the cookie map.
func (r *Request) Cookies() map[string]string { return copyMap(r.cookies) }

// Query returns a single decoded query parameter.
func (r *Request) Query(name string) (string, bool) {
	v, ok := r.query[name]
	return v, ok
}

// QueryParams returns a copy of the decoded query parameters.
func (r *Request) QueryParams() map[string]string { return copyMap(r.query) }

// Body returns the request body. ok is false when no line followed the
// blank separator line.
func (r *Request) Body() (string, bool) { return r.body, r.hasBody }

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
