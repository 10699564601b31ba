package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
)

// requestIDHeader carries the request ID in both directions.
const requestIDHeader = "X-Request-ID"

// middleware decorates a handler.
type middleware func(http.Handler) http.Handler

// chain applies the middlewares so that the first one is outermost.
func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// isStreamingPath reports whether the path is served as a long-lived stream.
func isStreamingPath(path string) bool {
	return strings.HasSuffix(path, "/logs")
}

// withRequestID reuses the caller's request ID or assigns a fresh one.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		log := s.logger.With(zap.String("request_id", id))
		next.ServeHTTP(w, r.WithContext(loggerpkg.WithLogger(r.Context(), log)))
	})
}

// withTracing opens a span per request and logs the outcome at a level matching the status.
func (s *Server) withTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Streams are logged by their handler
		if isStreamingPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		name := r.Method + " " + r.URL.Path

		ctx, span := s.tp.Start(
			r.Context(),
			name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.String()),
				attribute.String("http.remote_addr", r.RemoteAddr),
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.String("http.request_id", w.Header().Get(requestIDHeader)),
			),
		)
		defer span.End()

		rec, ok := w.(*statusRecorder)
		if !ok {
			rec = &statusRecorder{ResponseWriter: w}
		}
		next.ServeHTTP(rec, r.WithContext(ctx))

		code := rec.recordedStatus()
		elapsed := time.Since(start)
		span.SetAttributes(attribute.Int("http.status_code", code))

		level := zapcore.InfoLevel
		switch {
		case code >= http.StatusInternalServerError:
			level = zapcore.ErrorLevel
			span.SetStatus(codes.Error, http.StatusText(code))
			span.RecordError(fmt.Errorf("server error: %s", http.StatusText(code)))
		case code >= http.StatusBadRequest:
			level = zapcore.WarnLevel
			span.RecordError(fmt.Errorf("client error: %s", http.StatusText(code)))
		}

		loggerpkg.FromContext(ctx).Log(level, name,
			zap.Int("status", code),
			zap.Duration("duration", elapsed),
			zap.String("remote_addr", r.RemoteAddr),
		)
	})
}

// withCORS answers preflight requests and sets the CORS headers on everything else.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.cfg.CORSOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID, "+requestIDHeader)
		h.Set("Access-Control-Expose-Headers", requestIDHeader)
		h.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withCompression gzips bodies for clients that accept it. Streams are left untouched
// so every event is flushed as soon as it is written.
func (s *Server) withCompression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isStreamingPath(r.URL.Path) || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		gz, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
		if err != nil {
			loggerpkg.FromContext(r.Context()).Error("failed to create gzip writer", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add("Vary", "Accept-Encoding")

		rec := &statusRecorder{ResponseWriter: w, gz: gz}
		next.ServeHTTP(rec, r)

		if err := rec.finish(); err != nil {
			loggerpkg.FromContext(r.Context()).Warn("failed to close gzip writer", zap.Error(err))
		}
	})
}

// route describes one registered endpoint.
type route struct {
	pattern string
	method  string
	handler http.HandlerFunc
	// bounded routes are cut off after the configured request timeout
	bounded bool
}

// handle wraps the route handler with the method check, the body limit and the timeout.
func (s *Server) handle(rt route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != rt.method {
			w.Header().Set("Allow", rt.method)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.RequestBodyLimit)
		}

		if rt.bounded && s.cfg.RequestTimeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
			defer cancel()
			r = r.WithContext(ctx)
		}

		rt.handler(w, r)
	})
}
