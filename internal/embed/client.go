// Package embed scores semantic similarity through an external
// embedding service. The service exposes a single POST endpoint that
// turns a batch of texts into vectors; similarity is the cosine of the
// two vectors. Calls are retried with exponential backoff and guarded
// by a circuit breaker so a dead backend degrades the ensemble instead
// of stalling it.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/answerlab/go-grader/internal/domain"
	"github.com/answerlab/go-grader/internal/ensemble"
	"github.com/answerlab/go-grader/internal/retry"
)

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultOpenTimeout      = 30 * time.Second
)

// Client is the embedding-backed semantic scorer.
type Client struct {
	endpoint string
	http     *http.Client
	policy   retry.Policy
	breaker  *Breaker
	logger   *slog.Logger
}

var _ ensemble.SemanticScorer = (*Client)(nil)

// NewClient builds a Client for the given base endpoint, for example
// "http://localhost:8090". The timeout bounds each HTTP attempt; the
// policy governs retries across attempts.
func NewClient(endpoint string, timeout time.Duration, policy retry.Policy, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
		policy:   policy,
		breaker:  NewBreaker(defaultFailureThreshold, defaultSuccessThreshold, defaultOpenTimeout, logger),
		logger:   logger,
	}
}

// Name identifies this scorer in ensemble signal maps and logs.
func (c *Client) Name() string { return "embedding" }

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Score embeds both texts in one request and returns their cosine
// similarity clamped to [0, 1]. Errors from the backend are returned
// to the caller so the ensemble can fall back to lexical scoring.
func (c *Client) Score(ctx context.Context, reference, candidate string) (float64, error) {
	release, err := c.breaker.Allow()
	if err != nil {
		return 0, err
	}
	defer release()

	var resp embedResponse
	err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
		return c.post(ctx, "/embed", embedRequest{Texts: []string{reference, candidate}}, &resp)
	})
	if err != nil {
		c.breaker.RecordFailure()
		return 0, err
	}
	if len(resp.Embeddings) != 2 {
		c.breaker.RecordFailure()
		return 0, fmt.Errorf("embedding service returned %d vectors, want 2", len(resp.Embeddings))
	}

	c.breaker.RecordSuccess()
	return domain.Clamp01(Cosine(resp.Embeddings[0], resp.Embeddings[1])), nil
}

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() State {
	return c.breaker.State()
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call embedding service: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("failed to close embedding response body", "error", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding service returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode embedding response: %w", err)
	}
	return nil
}

// Cosine returns the cosine similarity of two vectors. Mismatched or
// empty vectors and zero-magnitude vectors yield 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
