// Package audit persists low-confidence evaluations as append-only JSON
// lines so flagged gradings can be reviewed by a human later. Writes are
// best effort: the caller logs failures and never propagates them into
// the evaluation itself.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ContentTruncationLimit caps the answer excerpts stored per entry.
const ContentTruncationLimit = 200

// Entry is one audit record. Field names match the review tooling that
// consumes the log file.
type Entry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ModelAnswer   string    `json:"model_answer"`
	StudentAnswer string    `json:"student_answer"`
	Score         float64   `json:"score"`
	Confidence    float64   `json:"confidence"`
	NeedsReview   bool      `json:"needs_review"`
}

// NewEntry builds an audit entry for a flagged evaluation, truncating
// both answers to ContentTruncationLimit characters.
func NewEntry(reference, candidate string, score, confidence float64) Entry {
	return Entry{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		ModelAnswer:   truncate(reference, ContentTruncationLimit),
		StudentAnswer: truncate(candidate, ContentTruncationLimit),
		Score:         score,
		Confidence:    confidence,
		NeedsReview:   true,
	}
}

// Sink receives audit entries. Implementations must be safe for
// concurrent use.
type Sink interface {
	// Append persists one entry.
	Append(ctx context.Context, entry Entry) error

	// Close releases the sink's resources.
	Close() error
}

// FileSink appends entries as JSON lines to a single file.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewFileSink opens (or creates) the audit log at path, creating parent
// directories as needed.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &FileSink{file: file, path: path}, nil
}

// Append implements Sink. Entries are written whole under a mutex so
// concurrent evaluations never interleave lines.
func (s *FileSink) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// Path returns the log file location, used by health checks.
func (s *FileSink) Path() string { return s.path }

// Close implements Sink.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// NoOpSink discards every entry. Used in tests and when auditing is
// disabled.
type NoOpSink struct{}

// Append implements Sink.
func (NoOpSink) Append(context.Context, Entry) error { return nil }

// Close implements Sink.
func (NoOpSink) Close() error { return nil }

// truncate limits s to n characters, not bytes, so multi-byte text is
// never cut mid-rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
