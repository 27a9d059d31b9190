package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aitask/internal/aitask"
	"aitask/internal/mediasource"
	"aitask/internal/metrics"
	"aitask/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// maxBodySize bounds request bodies read by the API
const maxBodySize = 1 << 20

// Options are the components the API exposes. Media and Metrics may be nil.
type Options struct {
	Services    *service.Registry
	Preferences *aitask.Preferences
	Entities    *aitask.Entities
	Media       *mediasource.LocalSource
	Metrics     *metrics.Metrics
}

// Server provides the HTTP API of the ai_task service
type Server struct {
	opts   Options
	logger *zap.Logger
	router chi.Router
	server *http.Server
}

// NewServer creates a new API server
func NewServer(opts Options, logger *zap.Logger, port int) *Server {
	s := &Server{
		opts:   opts,
		logger: logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleSitemap)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/services", s.handleListServices)
		r.Post("/services/{domain}/{service}", s.handleCallService)

		r.Get("/ai_task/preferences", s.handleGetPreferences)
		r.Post("/ai_task/preferences", s.handleSetPreferences)
		r.Get("/ai_task/entities", s.handleListEntities)
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	if opts.Media != nil {
		for _, name := range opts.Media.DirNames() {
			handler, _ := opts.Media.FileServer(name)
			prefix := "/media/" + name
			r.Handle(prefix+"/*", http.StripPrefix(prefix, handler))
		}
	}

	s.router = r
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // model calls can be slow
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote_addr", r.RemoteAddr))
	})
}

// ServiceCallResponse is returned by POST /api/services/{domain}/{service}
// when return_response is set. Calls without it answer with an empty object.
type ServiceCallResponse struct {
	ServiceResponse map[string]any `json:"service_response"`
}

// handleCallService runs a service. The request body is the service data;
// the return_response query parameter asks for response data.
func (s *Server) handleCallService(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	name := chi.URLParam(r, "service")
	_, returnResponse := r.URL.Query()["return_response"]

	data, err := decodeObject(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.opts.Services.Call(r.Context(), domain, name, data, returnResponse)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !returnResponse {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	if resp == nil {
		resp = map[string]any{}
	}
	writeJSON(w, http.StatusOK, ServiceCallResponse{ServiceResponse: resp})
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Services.List())
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Preferences.AsMap())
}

// handleSetPreferences applies a partial update and returns all slots
func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	data, err := decodeObject(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	updates, err := aitask.DecodePreferenceUpdates(data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.opts.Preferences.SetPreferences(updates); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.opts.Preferences.AsMap())
}

// EntityResponse describes one handling entity
type EntityResponse struct {
	EntityID          string `json:"entity_id"`
	Name              string `json:"name"`
	SupportedFeatures int    `json:"supported_features"`
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities := s.opts.Entities.List()
	response := make([]EntityResponse, 0, len(entities))
	for _, entity := range entities {
		response = append(response, EntityResponse{
			EntityID:          entity.EntityID(),
			Name:              entity.Name(),
			SupportedFeatures: int(entity.SupportedFeatures()),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// decodeObject reads a JSON object body. An empty body is an empty object.
func decodeObject(r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %v: %w", err, aitask.ErrInvalidRequest)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("body exceeds %d bytes: %w", maxBodySize, aitask.ErrInvalidRequest)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return map[string]any{}, nil
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("body must be a JSON object: %v: %w", err, aitask.ErrInvalidRequest)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, aitask.ErrInvalidRequest),
		errors.Is(err, aitask.ErrUnknownPreference),
		errors.Is(err, aitask.ErrNoEntity),
		errors.Is(err, aitask.ErrNotSupported),
		errors.Is(err, service.ErrResponseMode),
		errors.Is(err, mediasource.ErrUnknownMediaSource):
		return http.StatusBadRequest
	case errors.Is(err, aitask.ErrEntityNotFound),
		errors.Is(err, service.ErrServiceNotFound),
		errors.Is(err, mediasource.ErrMediaNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
