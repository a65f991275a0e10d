package server

import (
	"context"

	"github.com/athena-engine/athena/internal/request"
	"github.com/athena-engine/athena/internal/response"
)

// RequestHook observes every parsed request. It cannot influence the
// response.
type RequestHook interface {
	Observe(ctx context.Context, req *request.Request)
}

// ResponseHook produces the response for a request. Returning nil closes
// the connection without writing anything.
type ResponseHook interface {
	Respond(ctx context.Context, req *request.Request) *response.Response
}

// RequestHookFunc adapts a function to RequestHook.
type RequestHookFunc func(ctx context.Context, req *request.Request)

// Observe calls f.
func (f RequestHookFunc) Observe(ctx context.Context, req *request.Request) { f(ctx, req) }

// ResponseHookFunc adapts a function to ResponseHook.
type ResponseHookFunc func(ctx context.Context, req *request.Request) *response.Response

// Respond calls f.
func (f ResponseHookFunc) Respond(ctx context.Context, req *request.Request) *response.Response {
	return f(ctx, req)
}
