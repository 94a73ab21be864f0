package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/answerlab/go-grader/internal/dataset"
	"github.com/answerlab/go-grader/internal/domain"
	"github.com/answerlab/go-grader/internal/faults"
	"github.com/answerlab/go-grader/internal/monitor"
)

type evaluateRequest struct {
	ModelAnswer   string `json:"model_answer"`
	StudentAnswer string `json:"student_answer"`
	Detailed      bool   `json:"detailed"`
}

type explainRequest struct {
	ModelAnswer   string `json:"model_answer"`
	StudentAnswer string `json:"student_answer"`
}

type explainBreakdown struct {
	Quality         string `json:"quality"`
	ConfidenceLevel string `json:"confidence_level"`
	Concepts        string `json:"concepts"`
	MatchesModel    bool   `json:"matches_model_answer"`
	Domain          string `json:"domain,omitempty"`
}

type explainResponse struct {
	Score       float64          `json:"score"`
	Similarity  float64          `json:"similarity"`
	Confidence  float64          `json:"confidence"`
	NeedsReview bool             `json:"needs_review"`
	Explanation explainBreakdown `json:"explanation"`
}

type metricsResponse struct {
	Performance monitor.PerformanceSnapshot `json:"performance"`
	Accuracy    monitor.AccuracySnapshot    `json:"accuracy"`
	Faults      faults.Stats                `json:"faults"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Dataset   string `json:"dataset"`
	Embedding string `json:"embedding"`
}

type errResp struct {
	Error string `json:"error"`
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	reference, candidate, err := s.cleanPair(req.ModelAnswer, req.StudentAnswer)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.evaluator.Evaluate(r.Context(), reference, candidate, req.Detailed)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wireResult(result))
}

func (s *Server) explain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	reference, candidate, err := s.cleanPair(req.ModelAnswer, req.StudentAnswer)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.evaluator.Evaluate(r.Context(), reference, candidate, true)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result = wireResult(result)
	resp := explainResponse{
		Score:       result.Score,
		Similarity:  result.Similarity,
		Confidence:  result.Confidence,
		NeedsReview: result.NeedsReview,
		Explanation: explainBreakdown{
			Quality:         qualityBand(result.Score),
			ConfidenceLevel: confidenceBand(result.Confidence),
			Concepts:        conceptsLine(result.Details),
			MatchesModel:    result.Similarity >= s.similarityThreshold,
		},
	}
	if result.Details != nil {
		resp.Explanation.Domain = result.Details.Domain
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) runValidation(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.RunAccuracy(r.Context(), s.scoreCase)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) addCase(w http.ResponseWriter, r *http.Request) {
	var c dataset.Case
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	added, err := s.store.AddCase(r.Context(), c)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) getCase(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) listCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.store.ListCases(r.Context(), r.URL.Query().Get("domain"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

func (s *Server) metrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, metricsResponse{
		Performance: s.monitor.Performance().Snapshot(),
		Accuracy:    s.monitor.Accuracy().Snapshot(),
		Faults:      s.faults.Stats(),
	})
}

func (s *Server) performance(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Performance().Snapshot())
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Dataset: "ok", Embedding: "disabled"}
	if s.embedding != nil {
		resp.Embedding = s.embedding.BreakerState().String()
	}

	if err := s.store.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Dataset = "unreachable"
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// scoreCase adapts the evaluator to the accuracy sweep.
func (s *Server) scoreCase(ctx context.Context, reference, candidate string) (float64, error) {
	result, err := s.evaluator.Evaluate(ctx, reference, candidate, false)
	if err != nil {
		return 0, err
	}
	return result.Score, nil
}

// cleanPair sanitizes and bounds both sides of an answer pair.
// Rejections are counted as input faults.
func (s *Server) cleanPair(modelAnswer, studentAnswer string) (reference, candidate string, err error) {
	reference, err = s.validator.Process(modelAnswer)
	if err != nil {
		s.faults.Record("validation", err)
		return "", "", err
	}
	candidate, err = s.validator.Process(studentAnswer)
	if err != nil {
		s.faults.Record("validation", err)
		return "", "", err
	}
	return reference, candidate, nil
}

// wireResult applies the response rounding contract: similarity and
// confidence to four decimals. Scores are already rounded upstream.
func wireResult(r domain.EvaluationResult) domain.EvaluationResult {
	r.Similarity = domain.RoundTo(r.Similarity, 4)
	r.Confidence = domain.RoundTo(r.Confidence, 4)
	return r
}

func qualityBand(score float64) string {
	switch {
	case score >= 5:
		return "excellent"
	case score >= 4:
		return "good"
	case score >= 3:
		return "satisfactory"
	case score >= 2:
		return "needs improvement"
	default:
		return "insufficient"
	}
}

func confidenceBand(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "high"
	case confidence >= 0.7:
		return "moderate"
	default:
		return "low"
	}
}

func conceptsLine(details *domain.EvaluationDetails) string {
	if details == nil {
		return "concept analysis unavailable"
	}
	return fmt.Sprintf("found %d of %d key concepts", details.KeyConceptsFound, details.TotalKeyConcepts)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, dataset.ErrCaseNotFound):
		status = http.StatusNotFound
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errResp{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
