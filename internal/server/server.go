package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jonathan/transcript-archiver/internal/config"
	"github.com/jonathan/transcript-archiver/internal/logging"
	"github.com/jonathan/transcript-archiver/internal/pipeline"
	"github.com/jonathan/transcript-archiver/internal/runs"
	"github.com/jonathan/transcript-archiver/internal/scheduler"
	"github.com/jonathan/transcript-archiver/internal/server/middleware"
	"github.com/jonathan/transcript-archiver/internal/server/ratelimit"
	"github.com/jonathan/transcript-archiver/internal/storage"
	"github.com/jonathan/transcript-archiver/internal/types"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 30 * time.Second
)

// Deps are the collaborators served over HTTP.
type Deps struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Store    storage.Store
	// Scheduler is nil when scheduled jobs are disabled.
	Scheduler *scheduler.Scheduler
	Keys      *config.KeyStore
	// RateLimit overrides the RATE_LIMIT_* environment configuration.
	RateLimit *ratelimit.Config
	Logger    *slog.Logger
	Now       func() time.Time
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	cfg         *config.Config
	pipeline    *pipeline.Pipeline
	runs        *runs.Registry
	store       storage.Store
	scheduler   *scheduler.Scheduler
	keys        *config.KeyStore
	rateLimiter *ratelimit.Limiter
	authHandler *AuthHandler
	protect     func(http.Handler) http.Handler
	logger      *slog.Logger
	now         func() time.Time

	// streamInterval is how often progress streams poll the run registry.
	streamInterval time.Duration
}

// New creates a new server instance
func New(deps Deps) (*Server, error) {
	if deps.Pipeline == nil {
		return nil, errors.New("server: pipeline is required")
	}
	if deps.Store == nil {
		return nil, errors.New("server: store is required")
	}
	cfg := deps.Config
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	rl := deps.RateLimit
	if rl == nil {
		rl = ratelimit.LoadConfig()
	}

	s := &Server{
		cfg:            cfg,
		pipeline:       deps.Pipeline,
		runs:           deps.Pipeline.Runs(),
		store:          deps.Store,
		scheduler:      deps.Scheduler,
		keys:           deps.Keys,
		rateLimiter:    ratelimit.NewLimiter(rl),
		protect:        func(h http.Handler) http.Handler { return h },
		logger:         logging.OrDiscard(deps.Logger).With("component", "server"),
		now:            deps.Now,
		streamInterval: 500 * time.Millisecond,
	}

	if cfg.Auth.Enabled {
		passwordConfig, err := config.NewPasswordConfig(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to create password config: %w", err)
		}
		jwtConfig, err := config.NewJWTConfig(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to create JWT config: %w", err)
		}
		jwtService := NewJWTService(jwtConfig)
		s.authHandler = NewAuthHandler(passwordConfig, jwtService)
		s.protect = middleware.AuthMiddleware(jwtService.AsTokenValidator())
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/auth/token", s.handleToken)

	// Runs
	mux.Handle("POST /api/download", s.guard(s.handleDownload))
	mux.HandleFunc("GET /api/progress/{id}", s.handleProgress)
	mux.HandleFunc("GET /api/progress/{id}/stream", s.handleProgressStream)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)

	// API key
	mux.Handle("POST /api/set_api_key", s.guard(s.handleSetAPIKey))
	mux.Handle("POST /api/remove_api_key", s.guard(s.handleRemoveAPIKey))
	mux.HandleFunc("GET /api/check_api_key", s.handleCheckAPIKey)

	// Storage
	mux.HandleFunc("GET /api/storage/channels", s.handleListChannels)
	mux.HandleFunc("GET /api/storage/transcripts", s.handleListTranscripts)
	mux.HandleFunc("GET /api/storage/transcripts/detailed", s.handleListDetailed)
	mux.HandleFunc("GET /api/storage/transcript/{channel}/{name}", s.handleGetTranscript)
	mux.HandleFunc("GET /api/storage/search", s.handleSearch)
	mux.HandleFunc("GET /api/storage/stats", s.handleStats)
	mux.HandleFunc("POST /api/storage/transcripts/combine", s.handleCombine)
	mux.Handle("POST /api/storage/init", s.guard(s.handleInitStorage))

	// Scheduler
	mux.HandleFunc("GET /api/scheduler/jobs", s.handleListJobs)
	mux.Handle("POST /api/scheduler/jobs", s.guard(s.handleCreateJob))
	mux.Handle("DELETE /api/scheduler/jobs/{id}", s.guard(s.handleDeleteJob))
	mux.Handle("POST /api/scheduler/jobs/{id}/run", s.guard(s.handleRunJob))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second, // progress streams clear their own deadline
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled or the process receives SIGINT/SIGTERM,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	return s.Shutdown(context.Background())
}

// Shutdown stops the HTTP listener, the scheduler and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
	}
	if s.scheduler != nil {
		if err := s.scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler shutdown failed: %w", err))
		}
	}
	s.rateLimiter.Stop()

	s.logger.Info("server stopped")
	return errors.Join(errs...)
}

// guard applies bearer authentication when auth is enabled.
func (s *Server) guard(h http.HandlerFunc) http.Handler {
	return s.protect(h)
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	origin := s.cfg.Server.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, clientID, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if r.URL.Path == "/health" {
			level = slog.LevelDebug
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration", time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"storage":   s.cfg.Storage.Backend,
		"scheduler": s.scheduler != nil && s.scheduler.Running(),
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps err to a status code and writes its short message and kind.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	body := map[string]string{"error": types.MessageOf(err)}
	var verr *ErrValidation
	if errors.As(err, &verr) {
		body["error"] = verr.Error()
	}
	if kind := types.KindOf(err); kind != "" {
		body["error_type"] = string(kind)
	}
	s.jsonResponse(w, status, body)
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &ErrValidation{Message: "request body is empty"}
		}
		return &ErrValidation{Message: "Invalid request body"}
	}
	return nil
}

// extractClientID extracts the client identifier from the request.
// It uses the peer IP from RemoteAddr; forwarded headers are not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, clientID string, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		response["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	s.logger.Warn("rate limit exceeded",
		"client", clientID,
		"limit", info.Limit,
		"reset", info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
