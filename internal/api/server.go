// Package api exposes synthesis and registry introspection over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ppiankov/triggerscope/internal/events"
	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/pipeline"
	"github.com/ppiankov/triggerscope/internal/registry"
	"go.uber.org/zap"
)

// DefaultSearchThreshold is used when /sources/search has no threshold
const DefaultSearchThreshold = 0.6

// maxRequestBytes bounds a synthesize request body
const maxRequestBytes = 32 << 20

// SynthesizeRequest is the POST /api/v1/synthesize body
type SynthesizeRequest struct {
	Samples          []model.RawSample      `json:"samples"`
	ValueProposition model.ValueProposition `json:"value_proposition"`
	Profile          *model.BusinessProfile `json:"profile,omitempty"`
}

// Server is the HTTP surface
type Server struct {
	router    *chi.Mux
	cfg       model.ServerConfig
	synth     *pipeline.Synthesizer
	registry  *registry.Registry
	publisher events.Publisher
	prefix    string
	logger    *zap.Logger
}

// Option configures a Server
type Option func(*Server)

// WithPublisher publishes progress events for API-triggered runs
func WithPublisher(pub events.Publisher, subjectPrefix string) Option {
	return func(s *Server) {
		s.publisher = pub
		s.prefix = subjectPrefix
	}
}

// NewServer creates a new Server
func NewServer(cfg model.ServerConfig, synth *pipeline.Synthesizer, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))

	s := &Server{
		router:   router,
		cfg:      cfg,
		synth:    synth,
		registry: synth.Registry(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	router.Get("/health", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/synthesize", s.synthesize)
		r.Route("/sources", func(r chi.Router) {
			r.Get("/stats", s.sourceStats)
			r.Get("/search", s.searchSources)
			r.Get("/{id}", s.getSource)
		})
	})

	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("API server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"sources": s.registry.Len(),
	})
}

func (s *Server) synthesize(w http.ResponseWriter, r *http.Request) {
	var req SynthesizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "samples must not be empty")
		return
	}

	in := pipeline.Input{
		RunID:            middleware.GetReqID(r.Context()),
		Samples:          req.Samples,
		ValueProposition: req.ValueProposition,
		Profile:          req.Profile,
	}

	var notifier *events.Notifier
	if s.publisher != nil {
		notifier = events.NewNotifier(s.publisher, s.prefix, in.RunID, s.logger)
		in.OnBatchComplete = notifier.BatchCompleted
	}

	out, err := s.synth.Synthesize(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "synthesis aborted: "+err.Error())
		return
	}
	if notifier != nil {
		notifier.Completed(out)
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) sourceStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Stats())
}

func (s *Server) getSource(w http.ResponseWriter, r *http.Request) {
	src, ok := s.registry.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (s *Server) searchSources(w http.ResponseWriter, r *http.Request) {
	quote := r.URL.Query().Get("quote")
	if quote == "" {
		writeError(w, http.StatusBadRequest, "quote is required")
		return
	}

	threshold := DefaultSearchThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			writeError(w, http.StatusBadRequest, "threshold must be a number in [0,1]")
			return
		}
		threshold = v
	}

	match, ok := s.registry.FindByQuote(quote, threshold)
	if !ok {
		writeError(w, http.StatusNotFound, "no matching source")
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs one line per request through zap
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
