// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/pacer/internal/adapters/mq/queue"
	"github.com/okian/pacer/internal/adapters/repository"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/policy"
	"github.com/okian/pacer/internal/domain/solver"
	"github.com/okian/pacer/internal/simulation"
	"github.com/okian/pacer/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// Decide evaluates one campaign tick with the given policy.
	Decide(ctx context.Context, kind policy.Kind, campaignID string, st model.CampaignState) (model.Decision, error)

	// Simulate runs a batch of random campaigns and aggregates them.
	Simulate(ctx context.Context, req simulation.BatchRequest) (simulation.Stats, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	optimHandlers      map[string]*OptimHandler
	simulationsHandler *SimulationsHandler
	log                logger.Logger
}

// routes maps the decision endpoints to their policies.
var routes = map[string]policy.Kind{
	"optim-exp":              policy.KindPacing,
	"optim-nbinomial":        policy.KindBayesian,
	"optim-stoch-constraint": policy.KindStochastic,
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		optimHandlers:      make(map[string]*OptimHandler, len(routes)),
		simulationsHandler: NewSimulationsHandler(deps),
		log:                log.Named("api"),
	}
	for endpoint, kind := range routes {
		s.optimHandlers[endpoint] = NewOptimHandler(deps, kind)
	}
	return s
}

// Register attaches all HTTP routes to mux. Decision routes also answer with
// a trailing slash.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/simulations", s.wrap(s.simulationsHandler.HandlePostSimulations, "simulations"))

	for endpoint, h := range s.optimHandlers {
		handler := s.wrap(h.HandleDecide, endpoint)
		mux.HandleFunc("/"+endpoint, handler)
		mux.HandleFunc("/"+endpoint+"/", handler)
	}
}

func (s *Server) wrap(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return MetricsMiddleware(LoggingMiddleware(next, s.log), endpoint)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps service errors to status codes.
func writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidState),
		errors.Is(err, repository.ErrKindMismatch),
		errors.Is(err, simulation.ErrInvalidBatch):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, policy.ErrUnknownPolicy):
		writeError(w, http.StatusNotFound, "unknown_policy", err)
	case errors.Is(err, solver.ErrInfeasible):
		writeError(w, http.StatusUnprocessableEntity, "infeasible", err)
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, queue.ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
