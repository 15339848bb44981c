package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RowanDark/citadel/internal/cipher"
	"github.com/RowanDark/citadel/internal/logging"
	"github.com/RowanDark/citadel/internal/observability/metrics"
	"github.com/RowanDark/citadel/internal/observability/tracing"
)

const defaultMaxBodyBytes = 1 << 20

// Config configures the REST API server.
type Config struct {
	Addr    string
	Service *cipher.Service
	// Auth enables bearer token checks on /api/v1 routes when set.
	Auth         *Authenticator
	Logger       *logging.AuditLogger
	MaxBodyBytes int64
}

// Server exposes the cipher over HTTP.
type Server struct {
	cfg        Config
	svc        *cipher.Service
	auth       *Authenticator
	logger     *logging.AuditLogger
	maxBody    int64
	httpServer *http.Server
}

// NewServer constructs a REST API server using the provided configuration.
func NewServer(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("api address must be provided")
	}
	if cfg.Service == nil {
		return nil, errors.New("cipher service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Server{
		cfg:     cfg,
		svc:     cfg.Service,
		auth:    cfg.Auth,
		logger:  logger,
		maxBody: maxBody,
	}, nil
}

// Handler returns the routed handler with request ID, tracing and metrics
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/api/v1/encrypt", s.requireJWT(http.HandlerFunc(s.handleEncrypt)))
	mux.Handle("/api/v1/decrypt", s.requireJWT(http.HandlerFunc(s.handleDecrypt)))
	mux.Handle("/api/v1/keys", s.requireJWT(http.HandlerFunc(s.handleKeys)))
	mux.Handle("/api/v1/operations", s.requireJWT(http.HandlerFunc(s.handleOperations)))
	mux.Handle("/api/v1/pipeline", s.requireJWT(http.HandlerFunc(s.handlePipeline)))
	mux.Handle("/api/v1/recipes", s.requireJWT(http.HandlerFunc(s.handleRecipes)))
	mux.Handle("/api/v1/recipes/run", s.requireJWT(http.HandlerFunc(s.handleRecipeRun)))
	return s.instrument(mux)
}

// unmatchedRoute labels requests that no registered pattern serves.
const unmatchedRoute = "other"

// routeOf returns the registered pattern serving r, or unmatchedRoute.
func routeOf(mux *http.ServeMux, r *http.Request) string {
	if _, pattern := mux.Handler(r); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}

// Run starts the HTTP server and blocks until the provided context is cancelled or a fatal error occurs.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	_ = s.logger.Emit(logging.AuditEvent{
		EventType: logging.EventServerLifecycle,
		Decision:  logging.DecisionInfo,
		Metadata:  map[string]any{"server": "http", "state": "listening", "addr": s.cfg.Addr},
	})

	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = s.httpServer.Shutdown(shutdownCtx)
		_ = s.logger.Emit(logging.AuditEvent{
			EventType: logging.EventServerLifecycle,
			Decision:  logging.DecisionInfo,
			Metadata:  map[string]any{"server": "http", "state": "stopped"},
		})
		return <-errCh
	case err := <-errCh:
		return err
	}
}

type requestIDKey struct{}

// RequestIDFromContext returns the ID assigned to the current request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := routeOf(mux, r)
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := tracing.ContextFromHTTP(r)
		ctx, span := tracing.StartSpan(ctx, "http "+r.Method+" "+route,
			tracing.WithSpanKind(tracing.SpanKindServer),
			tracing.WithAttributes(map[string]any{
				"http.method":     r.Method,
				"http.target":     r.URL.Path,
				"http.route":      route,
				"http.request_id": requestID,
			}))
		defer span.End()
		ctx = context.WithValue(ctx, requestIDKey{}, requestID)
		tracing.InjectHTTP(ctx, w.Header())

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttribute("http.status_code", rec.status)
		if rec.status >= http.StatusInternalServerError {
			span.EndWithStatus(tracing.StatusError, http.StatusText(rec.status))
		}
		metrics.RecordRequest(ctx, "http", route, strconv.Itoa(rec.status), rec.status >= http.StatusBadRequest, time.Since(start))
	})
}

func (s *Server) requireJWT(next http.Handler) http.Handler {
	if s.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			s.denyAuth(w, r, "missing bearer token")
			return
		}
		token := strings.TrimSpace(authHeader[7:])
		if _, err := s.auth.Validate(token); err != nil {
			s.denyAuth(w, r, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) denyAuth(w http.ResponseWriter, r *http.Request, reason string) {
	_ = s.logger.Emit(logging.AuditEvent{
		EventType: logging.EventAuthDenied,
		Decision:  logging.DecisionDeny,
		Reason:    reason,
		Metadata:  map[string]any{"path": r.URL.Path, "request_id": RequestIDFromContext(r.Context())},
	})
	s.writeError(w, http.StatusUnauthorized, "Unauthorized", reason)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "BodyTooLarge", "request body too large")
			return false
		}
		s.writeError(w, http.StatusBadRequest, "InvalidJSON", "invalid json")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		_ = s.logger.Emit(logging.AuditEvent{EventType: logging.EventServerLifecycle, Decision: logging.DecisionDeny, Reason: err.Error()})
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	s.writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
}
