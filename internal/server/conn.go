package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/athena-engine/athena/internal/errors"
	"github.com/athena-engine/athena/internal/logging"
	"github.com/athena-engine/athena/internal/request"
	"github.com/athena-engine/athena/internal/response"
)

var headerTerminator = []byte("\r\n\r\n")

// HandleConn runs one request/response cycle on conn and closes it.
// Read failures abandon the connection before any hook runs. Hook panics
// are recovered here so they never reach the accept loop.
func (s *Server) HandleConn(ctx context.Context, conn net.Conn) {
	op := logging.StartOperation(s.logger.With("remote", remoteAddr(conn)), "connection")
	ctx, span := s.tracer.Start(ctx, "athena.connection",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("net.peer.addr", remoteAddr(conn))))
	defer span.End()

	s.active.Add(1)
	s.metrics.ConnectionOpened(ctx, string(s.mode))
	defer func() {
		_ = conn.Close()
		s.active.Add(-1)
		s.handled.Add(1)
		s.metrics.ConnectionClosed(ctx, string(s.mode), op.End(ctx))
	}()

	now := time.Now()
	if err := conn.SetReadDeadline(now.Add(s.readTimeout)); err != nil {
		s.logger.Warn(ctx, err, "Failed to set read timeout")
	}
	if err := conn.SetWriteDeadline(now.Add(s.writeTimeout)); err != nil {
		s.logger.Warn(ctx, err, "Failed to set write timeout")
	}

	req, err := s.readRequest(ctx, conn)
	if err != nil {
		s.metrics.ReadError(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		s.logger.Warn(ctx, err, "Abandoning connection", "remote", remoteAddr(conn))
		return
	}

	target, _ := req.Target()
	span.SetAttributes(
		attribute.String("http.request.method", req.Method().String()),
		attribute.String("url.path", target),
	)

	if s.requestHook != nil {
		s.observe(ctx, req)
	}
	if s.responseHook == nil {
		return
	}

	resp, ok := s.respond(ctx, req)
	if !ok || resp == nil {
		return
	}

	status := int(response.StatusOK)
	if resp.Complete() {
		status = resp.Status.Code()
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	if err := s.write(conn, resp); err != nil {
		s.metrics.WriteError(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		s.logger.Warn(ctx, err, "Failed to write response", "remote", remoteAddr(conn))
		return
	}
	s.metrics.Request(ctx, req.Method().String(), status)
}

func (s *Server) observe(ctx context.Context, req *request.Request) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.HookPanic(ctx, "request")
			s.logger.Error(ctx, hookPanic("request", r), "Request hook panicked")
		}
	}()
	s.requestHook.Observe(ctx, req)
}

func (s *Server) respond(ctx context.Context, req *request.Request) (resp *response.Response, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.HookPanic(ctx, "response")
			s.logger.Error(ctx, hookPanic("response", r), "Response hook panicked; closing connection")
			resp, ok = nil, false
		}
	}()
	return s.responseHook.Respond(ctx, req), true
}

func hookPanic(hook string, recovered interface{}) error {
	return errors.NewInternalError(errors.ErrCodeHookPanic,
		fmt.Sprintf("%s hook panicked: %v", hook, recovered), nil)
}

// write serializes resp and flushes it. The flush is attempted even when
// the write fails, and a TCP connection has its write side shut so the
// peer sees the end of the response.
func (s *Server) write(conn net.Conn, resp *response.Response) error {
	w := bufio.NewWriter(conn)
	_, writeErr := resp.WriteTo(w)
	flushErr := w.Flush()

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}

	if writeErr != nil {
		return errors.NewIOError(errors.ErrCodeWriteFailed, "write response", writeErr)
	}
	if flushErr != nil {
		return errors.NewIOError(errors.ErrCodeWriteFailed, "flush response", flushErr)
	}
	return nil
}

func (s *Server) readRequest(ctx context.Context, conn net.Conn) (*request.Request, error) {
	if s.readMode == ReadLines {
		lines, err := s.readLines(conn)
		if err != nil {
			return nil, err
		}
		return s.parser.ParseLines(ctx, lines), nil
	}

	raw, err := s.readBuffer(conn)
	if err != nil {
		return nil, err
	}
	return s.parser.Parse(ctx, raw), nil
}

// readBuffer reads into a buffer of readBufferSize bytes until it holds
// the end of the header block, fills up, or the peer stops sending.
func (s *Server) readBuffer(conn net.Conn) ([]byte, error) {
	buf := make([]byte, s.readBufferSize)
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		n += m
		if bytes.Contains(buf[:n], headerTerminator) {
			break
		}
		if err != nil {
			if n > 0 && (err == io.EOF || isTimeout(err)) {
				break
			}
			return nil, errors.NewIOError(errors.ErrCodeReadFailed, "read request", err)
		}
	}
	if n == 0 {
		return nil, errors.NewIOError(errors.ErrCodeReadFailed, "read request", io.ErrUnexpectedEOF)
	}
	return buf[:n], nil
}

// readLines reads CRLF or LF terminated lines up to the first blank line.
// The total is bounded by readBufferSize.
func (s *Server) readLines(conn net.Conn) ([]string, error) {
	r := bufio.NewReaderSize(conn, s.readBufferSize)
	var lines []string
	total := 0
	for total < s.readBufferSize {
		line, err := r.ReadString('\n')
		total += len(line)
		line = strings.TrimRight(line, "\r\n")
		if err == nil {
			if strings.TrimSpace(line) == "" {
				break
			}
			lines = append(lines, line)
			continue
		}
		if line != "" {
			lines = append(lines, line)
		}
		if len(lines) > 0 && (err == io.EOF || isTimeout(err)) {
			break
		}
		return nil, errors.NewIOError(errors.ErrCodeReadFailed, "read request line", err)
	}
	return lines, nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
