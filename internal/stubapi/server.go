// Package stubapi serves a stand-in for the content submission API. It speaks
// the same wire format as the real service (POST /submit/ plus presigned PUT
// uploads) but keeps uploads in memory and runs no hashing or matching.
package stubapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/FairForge/storm/internal/submit"
)

// Operations recorded by the server.
const (
	OpDirectUpload = "direct_upload"
	OpPresign      = "presign"
	OpUpload       = "upload"
)

// Config controls how the stand-in behaves.
type Config struct {
	Addr string
	// Token is the static bearer token to accept. Ignored when JWTSecret is set.
	Token string
	// JWTSecret switches bearer verification to HS256 JWTs.
	JWTSecret string
	Bucket    string
	// PublicURL is the endpoint presigned URLs point at. Derived from the
	// request Host when empty.
	PublicURL     string
	PresignExpiry time.Duration
	// Delay is added to every /submit/ request.
	Delay time.Duration
	// RateLimit caps requests per second; 0 disables throttling.
	RateLimit int
	Burst     int
}

// DefaultConfig returns a config suitable for local smoke tests.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		Bucket:        "storm-uploads",
		PresignExpiry: time.Hour,
	}
}

// Call is one request the server accepted past authentication.
type Call struct {
	Op        string
	ContentID string
	Bytes     int
}

type errorResponse struct {
	ContentID string `json:"content_id"`
	Message   string `json:"message"`
}

// Server is an http.Handler implementing the submission API surface.
type Server struct {
	config    Config
	logger    *zap.Logger
	router    *mux.Router
	presigner *presigner
	limiter   *rate.Limiter

	mu      sync.Mutex
	calls   []Call
	objects map[string][]byte

	requestCount int64
	startTime    time.Time
}

// New builds a Server. Zero-valued fields of cfg fall back to DefaultConfig.
func New(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Bucket == "" {
		cfg.Bucket = def.Bucket
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = def.PresignExpiry
	}
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}

	s := &Server{
		config:    cfg,
		logger:    logger,
		router:    mux.NewRouter(),
		presigner: newPresigner(cfg.Bucket, cfg.PresignExpiry),
		objects:   make(map[string][]byte),
		startTime: time.Now(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.RateLimit
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.throttleMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/submit").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/", s.handleSubmit).Methods(http.MethodPost)

	// presigned uploads carry their own signature, no bearer token
	s.router.HandleFunc("/{bucket}/{key:.+}", s.handleUpload).Methods(http.MethodPut)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("stub api listening", zap.String("addr", s.config.Addr), zap.String("bucket", s.config.Bucket))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Calls returns a copy of every accepted call, in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Object returns the stored bytes for key.
func (s *Server) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return b, ok
}

// ObjectCount returns how many objects have been stored.
func (s *Server) ObjectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *Server) record(c Call) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

func (s *Server) store(key string, data []byte) {
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"uptime":   time.Since(s.startTime).Seconds(),
		"requests": atomic.LoadInt64(&s.requestCount),
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.config.Delay > 0 {
		select {
		case <-time.After(s.config.Delay):
		case <-r.Context().Done():
			return
		}
	}

	var req submit.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body: " + err.Error()})
		return
	}
	if req.ContentID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "content_id is required"})
		return
	}

	switch req.SubmissionType {
	case submit.TypeDirectUpload:
		s.directUpload(w, req)
	case submit.TypePostURL:
		s.postURLUpload(w, r, req)
	default:
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			ContentID: req.ContentID,
			Message:   "submission_type not yet supported",
		})
	}
}

func (s *Server) directUpload(w http.ResponseWriter, req submit.SubmitRequest) {
	data, err := base64.StdEncoding.DecodeString(req.ContentBytesURLOrFileType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{ContentID: req.ContentID, Message: "content is not valid base64"})
		return
	}

	s.store(req.ContentID, data)
	s.record(Call{Op: OpDirectUpload, ContentID: req.ContentID, Bytes: len(data)})

	writeJSON(w, http.StatusOK, submit.SubmitResponse{ContentID: req.ContentID, SubmitSuccessful: true})
}

func (s *Server) postURLUpload(w http.ResponseWriter, r *http.Request, req submit.SubmitRequest) {
	endpoint := s.config.PublicURL
	if endpoint == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		endpoint = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	url, err := s.presigner.PresignPut(r.Context(), endpoint, req.ContentID, req.ContentBytesURLOrFileType)
	if err != nil {
		s.logger.Error("presign failed", zap.String("content_id", req.ContentID), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{ContentID: req.ContentID, Message: "not yet supported"})
		return
	}

	s.record(Call{Op: OpPresign, ContentID: req.ContentID})
	writeJSON(w, http.StatusOK, submit.InitUploadResponse{
		ContentID:    req.ContentID,
		FileType:     req.ContentBytesURLOrFileType,
		PresignedURL: url,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if vars["bucket"] != s.config.Bucket {
		http.Error(w, "no such bucket", http.StatusNotFound)
		return
	}
	if err := checkPresignedQuery(r.URL.Query(), time.Now()); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	key := vars["key"]
	s.store(key, data)
	s.record(Call{Op: OpUpload, ContentID: key, Bytes: len(data)})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.requestCount, 1)
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

func (s *Server) throttleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		allowed := s.limiter.Allow()
		remaining := int(s.limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.limiter.Burst()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
