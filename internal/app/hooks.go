package app

import (
	"context"
	"net/http"
	"time"

	"github.com/athena-engine/athena/internal/logging"
	"github.com/athena-engine/athena/internal/metrics"
	"github.com/athena-engine/athena/internal/renderer"
	"github.com/athena-engine/athena/internal/request"
	"github.com/athena-engine/athena/internal/response"
)

// Hooks are the request and response hooks used by athena serve: every
// request is logged, and the response is the builder's page with template
// markers expanded.
type Hooks struct {
	builder    *response.Builder
	template   bool
	variables  renderer.Bindings
	serverName string

	logger  logging.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// HooksConfig configures Hooks.
type HooksConfig struct {
	Builder         *response.Builder
	TemplateEnabled bool
	Variables       map[string]string
	ServerName      string
	Logger          logging.Logger
	Metrics         *metrics.Recorder
	Clock           func() time.Time
}

// NewHooks creates the default hooks.
func NewHooks(cfg HooksConfig) *Hooks {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Hooks{
		builder:    cfg.Builder,
		template:   cfg.TemplateEnabled,
		variables:  renderer.Static(cfg.Variables),
		serverName: cfg.ServerName,
		logger:     logger.WithComponent("app"),
		metrics:    cfg.Metrics,
		now:        now,
	}
}

// Observe logs the request line and the client details.
func (h *Hooks) Observe(ctx context.Context, req *request.Request) {
	target, _ := req.Target()
	ua, _ := req.UserAgent()
	h.logger.Info(ctx, "Request",
		"method", req.Method().String(),
		"target", target,
		"version", req.Version().String(),
		"host", req.Host(),
		"user_agent", ua,
	)
}

// Respond builds the page response and expands template markers in
// successful page bodies. A template error serves the page unchanged.
func (h *Hooks) Respond(ctx context.Context, req *request.Request) *response.Response {
	resp := h.builder.Build(req, nil, nil)
	if !h.template || !resp.Complete() || resp.Status != response.StatusOK {
		return resp
	}
	body, ok := resp.Body()
	if !ok {
		return resp
	}

	out, err := renderer.Expand(body, renderer.Merge(h.variables, h.builtins(req)))
	if err != nil {
		h.metrics.TemplateError(ctx)
		path, _ := req.Path()
		h.logger.Warn(ctx, err, "Template syntax error, serving original page", "path", path)
		return resp
	}
	if out != body {
		resp.SetBody(out)
	}
	return resp
}

// builtins are bound last so configuration cannot shadow them.
func (h *Hooks) builtins(req *request.Request) renderer.Bindings {
	return renderer.Bindings{
		"path": func() string {
			p, _ := req.Path()
			return p
		},
		"host":   req.Host,
		"method": func() string { return req.Method().String() },
		"date":   func() string { return h.now().UTC().Format(http.TimeFormat) },
		"server": func() string { return h.serverName },
	}
}
