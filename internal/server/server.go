// Package server exposes the grading pipeline over HTTP: evaluation,
// explanation, validation-case management, accuracy sweeps and health
// reporting.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"

	"github.com/answerlab/go-grader/internal/dataset"
	"github.com/answerlab/go-grader/internal/domain"
	"github.com/answerlab/go-grader/internal/embed"
	"github.com/answerlab/go-grader/internal/evaluator"
	"github.com/answerlab/go-grader/internal/faults"
	"github.com/answerlab/go-grader/internal/monitor"
	"github.com/answerlab/go-grader/internal/validation"
)

// Defaults applied when the corresponding Deps or Config fields are
// left unset.
const (
	defaultMaxTextLength       = 10000
	defaultSimilarityThreshold = 0.5
)

// Evaluator grades one answer pair.
type Evaluator interface {
	Evaluate(ctx context.Context, reference, candidate string, detailed bool) (domain.EvaluationResult, error)
}

// BreakerStater reports the embedding circuit state for health checks.
type BreakerStater interface {
	BreakerState() embed.State
}

// Deps are the services the HTTP layer fronts. Evaluator, Monitor,
// Faults, Validator and Logger fall back to defaults when nil. Store is
// required; Embedding may be nil when no backend is configured.
type Deps struct {
	Evaluator Evaluator
	Store     *dataset.Store
	Monitor   *monitor.Monitor
	Faults    *faults.Handler
	Validator *validation.Validator
	Embedding BreakerStater
	Logger    *slog.Logger
}

// Config tunes response shaping.
type Config struct {
	// SimilarityThreshold is the similarity at or above which an
	// explanation reports the answers as matching the reference.
	SimilarityThreshold float64
}

// Server is the HTTP surface over the grading service.
type Server struct {
	evaluator Evaluator
	store     *dataset.Store
	monitor   *monitor.Monitor
	faults    *faults.Handler
	validator *validation.Validator
	embedding BreakerStater
	logger    *slog.Logger

	similarityThreshold float64
}

// New builds a Server, filling nil dependencies with defaults.
func New(deps Deps, cfg Config) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Monitor == nil {
		deps.Monitor = monitor.New(deps.Logger)
	}
	if deps.Faults == nil {
		deps.Faults = faults.New(deps.Logger)
	}
	if deps.Evaluator == nil {
		deps.Evaluator = evaluator.New(evaluator.Deps{
			Faults:  deps.Faults,
			Metrics: deps.Monitor,
			Logger:  deps.Logger,
		}, evaluator.Params{})
	}
	if deps.Validator == nil {
		deps.Validator = validation.New(defaultMaxTextLength)
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = defaultSimilarityThreshold
	}

	return &Server{
		evaluator:           deps.Evaluator,
		store:               deps.Store,
		monitor:             deps.Monitor,
		faults:              deps.Faults,
		validator:           deps.Validator,
		embedding:           deps.Embedding,
		logger:              deps.Logger,
		similarityThreshold: cfg.SimilarityThreshold,
	}
}

// Routes assembles the router with its middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, m.Logger, m.Recoverer)
	r.Use(s.trackRequests)

	r.Post("/evaluate", s.evaluate)
	r.Post("/explain", s.explain)

	r.Route("/validate", func(r chi.Router) {
		r.Post("/", s.runValidation)
		r.Get("/cases", s.listCases)
		r.Post("/cases", s.addCase)
		r.Get("/cases/{id}", s.getCase)
	})

	r.Get("/metrics", s.metrics)
	r.Get("/performance", s.performance)
	r.Get("/healthz", s.healthz)

	return r
}

// trackRequests feeds every request through the performance tracker.
func (s *Server) trackRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		finish := s.monitor.Performance().StartRequest()
		defer finish()
		next.ServeHTTP(w, r)
	})
}
