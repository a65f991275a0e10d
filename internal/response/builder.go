package response

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/athena-engine/athena/internal/errors"
	"github.com/athena-engine/athena/internal/registry"
	"github.com/athena-engine/athena/internal/request"
)

// DefaultServerName is sent in the Server header.
const DefaultServerName = "Athena-Engine"

// DefaultContentLanguage is sent in the Content-Language header.
const DefaultContentLanguage = "ko-KR"

// PageSource resolves lower-cased request paths to page contents.
type PageSource interface {
	Lookup(path string) registry.Result
}

// Builder produces default responses for parsed requests.
type Builder struct {
	pages            PageSource
	serverName       string
	contentLanguage  string
	rejectWithStatus bool
	now              func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder) error

// WithServerName overrides the Server header value.
func WithServerName(name string) BuilderOption {
	return func(b *Builder) error {
		if strings.TrimSpace(name) == "" {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid, "server name cannot be empty")
		}
		b.serverName = name
		return nil
	}
}

// WithContentLanguage sets the Content-Language header. The value must
// be a valid BCP 47 tag.
func WithContentLanguage(tag string) BuilderOption {
	return func(b *Builder) error {
		parsed, err := language.Parse(tag)
		if err != nil {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid,
				"invalid content language "+tag).WithContext("cause", err.Error())
		}
		b.contentLanguage = parsed.String()
		return nil
	}
}

// WithRejectStatus selects how unsupported methods and versions are
// answered. When enabled they get a 426 page; when disabled the response
// is marked unsuccessful and the formatter sends FallbackResponse.
func WithRejectStatus(enabled bool) BuilderOption {
	return func(b *Builder) error {
		b.rejectWithStatus = enabled
		return nil
	}
}

// WithClock replaces the time source used for the Date header.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) error {
		if now != nil {
			b.now = now
		}
		return nil
	}
}

// NewBuilder creates a Builder. A nil page source answers every lookup
// with 404.
func NewBuilder(pages PageSource, opts ...BuilderOption) (*Builder, error) {
	b := &Builder{
		pages:            pages,
		serverName:       DefaultServerName,
		contentLanguage:  DefaultContentLanguage,
		rejectWithStatus: true,
		now:              time.Now,
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// DefaultBody returns the error page used for non-200 responses.
func DefaultBody(s Status) string {
	text := s.String()
	return "<head><title>" + text + "</title><body>" + text + "</body></head>"
}

// Build creates the default response for req. cookies become Set-Cookie
// lines. extra headers are applied after the baseline and win on
// conflicts. Either may be nil.
func (b *Builder) Build(req *request.Request, cookies []Cookie, extra *Header) *Response {
	if req == nil || !req.Method().Supported() || !req.Version().Supported() {
		if !b.rejectWithStatus {
			return &Response{Success: false}
		}
		version := request.Version11
		if req != nil && req.Version().Supported() {
			version = req.Version()
		}
		resp := b.newResponse(StatusUpgradeRequired, version, cookies, extra)
		resp.SetBody(DefaultBody(StatusUpgradeRequired))
		return resp
	}

	status, body := b.resolve(req)
	resp := b.newResponse(status, req.Version(), cookies, extra)
	resp.SetBody(body)
	return resp
}

func (b *Builder) resolve(req *request.Request) (Status, string) {
	path, ok := req.Path()
	if !ok || b.pages == nil {
		return StatusNotFound, DefaultBody(StatusNotFound)
	}

	res := b.pages.Lookup(strings.ToLower(path))
	switch res.Status {
	case registry.StatusFound:
		return StatusOK, res.Content
	case registry.StatusFail:
		return StatusBadRequest, DefaultBody(StatusBadRequest)
	default:
		return StatusNotFound, DefaultBody(StatusNotFound)
	}
}

func (b *Builder) newResponse(status Status, version request.Version, cookies []Cookie, extra *Header) *Response {
	h := b.baseline()
	extra.Each(h.Set)

	resp := &Response{
		Success: true,
		Status:  status,
		Version: version,
		Headers: h,
	}
	if len(cookies) > 0 {
		resp.Cookies = append([]Cookie(nil), cookies...)
	}
	return resp
}

func (b *Builder) baseline() *Header {
	h := NewHeader()
	h.Set("Date", b.now().UTC().Format(http.TimeFormat))
	h.Set("Server", b.serverName)
	h.Set("Connection", "close")
	h.Set("Pragma", "no-cache")
	h.Set("Content-Type", "text/html; charset=UTF-8")
	h.Set("Content-Language", b.contentLanguage)
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Content-Disposition", "inline")
	h.Set("Cache-Control", "no-cache")
	return h
}
