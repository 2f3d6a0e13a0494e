// Package server exposes the optimization driver over HTTP. Translation
// between the wire format and the in-process request/result contract happens
// here; the optimizer packages know nothing about HTTP.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/soilhub/fieldopt/internal/config"
	"github.com/soilhub/fieldopt/internal/logging"
	"github.com/soilhub/fieldopt/internal/optimization"
	"github.com/soilhub/fieldopt/internal/optimization/driver"
)

// Server handles optimization requests.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	driver *driver.Driver

	optimizations *prometheus.CounterVec
	duration      prometheus.Histogram
}

// NewServer creates a server around a driver configured from cfg and
// registers its metrics with the registerer (nil means the default
// registry).
func NewServer(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) *Server {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		driver: driver.New(driver.Config{
			Workers:        cfg.Optimizer.Workers,
			PopulationSize: cfg.Optimizer.PopulationSize,
			MaxGenerations: cfg.Optimizer.MaxGenerations,
			PlateauWindow:  cfg.Optimizer.PlateauWindow,
		}, logger),
		optimizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldopt_optimizations_total",
			Help: "Optimization requests by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldopt_optimization_duration_seconds",
			Help:    "Wall-clock duration of optimization runs.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	reg.MustRegister(s.optimizations, s.duration)
	return s
}

// RegisterRoutes mounts the API.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/strategies", s.handleStrategies)
		r.Get("/axes", s.handleAxes)
	})
}

// optimizeResponse wraps a result with the ID assigned to the request, so
// callers can correlate logs and persisted recommendations.
type optimizeResponse struct {
	RequestID string               `json:"request_id"`
	Result    *optimization.Result `json:"result"`
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	var req optimization.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	requestID := uuid.NewString()
	logger = logger.With(zap.String("optimization_id", requestID))

	result, err := s.driver.Optimize(r.Context(), req)
	if err != nil {
		outcome := "error"
		status := http.StatusInternalServerError
		if optimization.IsValidation(err) {
			outcome = "invalid"
			status = http.StatusBadRequest
		}
		s.optimizations.WithLabelValues(string(req.Strategy), outcome).Inc()
		logger.Warn("optimization failed", zap.Error(err))
		s.respondError(w, status, err.Error())
		return
	}

	outcome := "feasible"
	if !result.Feasible {
		outcome = "infeasible"
	}
	s.optimizations.WithLabelValues(string(req.Strategy), outcome).Inc()
	s.duration.Observe(result.Elapsed.Seconds())

	s.respondJSON(w, http.StatusOK, optimizeResponse{RequestID: requestID, Result: result})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, optimization.StrategyKinds())
}

func (s *Server) handleAxes(w http.ResponseWriter, r *http.Request) {
	axes := optimization.Axes()
	names := make([]string, len(axes))
	for i, a := range axes {
		names[i] = a.String()
	}
	s.respondJSON(w, http.StatusOK, names)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
