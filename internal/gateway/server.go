package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/leadclaw/internal/config"
	"github.com/nextlevelbuilder/leadclaw/internal/metrics"
	"github.com/nextlevelbuilder/leadclaw/internal/tracing"
)

var tracer = otel.Tracer("github.com/nextlevelbuilder/leadclaw/internal/gateway")

// RouteRegistrar is implemented by every HTTP handler group in internal/http.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// ReadinessCheck reports whether a dependency (e.g. Postgres) is reachable.
type ReadinessCheck func(ctx context.Context) error

// Server is the LeadClaw HTTP gateway: webhooks, the dashboard API, /health and /metrics.
type Server struct {
	cfg      *config.Config
	version  string
	handlers []RouteRegistrar
	ready    ReadinessCheck

	handler    http.Handler
	httpServer *http.Server
}

// NewServer creates a server that mounts the given handler groups.
func NewServer(cfg *config.Config, version string, handlers ...RouteRegistrar) *Server {
	return &Server{cfg: cfg, version: version, handlers: handlers}
}

// SetReadinessCheck makes /health report 503 while check fails.
func (s *Server) SetReadinessCheck(check ReadinessCheck) { s.ready = check }

// Handler builds (once) the mux with all routes and middleware.
func (s *Server) Handler() http.Handler {
	if s.handler != nil {
		return s.handler
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	for _, h := range s.handlers {
		h.RegisterRoutes(mux)
	}

	// metrics.Instrument must wrap the mux directly so it sees r.Pattern.
	s.handler = s.withCORS(s.withRequestLog(metrics.Instrument(mux)))
	return s.handler
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on an existing listener (tests use 127.0.0.1:0).
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("gateway starting", "addr", ln.Addr().String(), "version", s.version)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		timeout := time.Duration(s.cfg.Gateway.ShutdownSec) * time.Second
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("gateway shutdown", "error", err)
		}
	}()

	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway server: %w", err)
	}
	<-done
	slog.Info("gateway stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	resp := map[string]string{"version": s.version}
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			slog.Warn("gateway.health.degraded", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	resp["status"] = status

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

// checkOrigin validates the Origin header against gateway.allowed_origins.
// No configured origins allows all; an empty Origin (server-to-server callers) is always allowed.
func (s *Server) checkOrigin(origin string) bool {
	allowed := s.cfg.Gateway.AllowedOrigins
	if len(allowed) == 0 || origin == "" {
		return true
	}
	for _, a := range allowed {
		if origin == a || a == "*" {
			return true
		}
	}
	return false
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !s.checkOrigin(origin) {
			slog.Warn("security.cors_rejected", "origin", origin, "path", r.URL.Path)
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-LeadClaw-Org-Ref")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestLog opens a server span (continuing any incoming trace context) and
// logs method, path, status and duration once the request completes.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		r = r.WithContext(ctx)
		sw := &metrics.StatusWriter{ResponseWriter: w, Code: http.StatusOK}
		next.ServeHTTP(sw, r)

		if r.Pattern != "" {
			span.SetName(r.Pattern)
		}
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.Pattern),
			attribute.Int("http.status_code", sw.Code),
		)
		if sw.Code >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.Code))
		}

		level := slog.LevelDebug
		if sw.Code >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.Code,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if id := tracing.TraceID(ctx); id != "" {
			attrs = append(attrs, "trace_id", id)
		}
		slog.Log(ctx, level, "http.request", attrs...)
	})
}
