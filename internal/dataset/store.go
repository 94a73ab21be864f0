// Package dataset persists labeled validation cases: answer pairs with
// expert-assigned expected scores, used to sweep the pipeline's grading
// accuracy.
package dataset

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the sqlite driver

	"github.com/answerlab/go-grader/internal/dataset/migrations"
	"github.com/answerlab/go-grader/internal/domain"
)

// ErrCaseNotFound is returned when no case exists under the given ID.
var ErrCaseNotFound = errors.New("validation case not found")

const casesTable = "validation_cases"

var caseColumns = []string{
	"id",
	"domain",
	"question",
	"model_answer",
	"student_answer",
	"expected_score",
	"key_concepts",
	"notes",
	"created_at",
}

// Case is one labeled validation case. IDs follow the pattern
// <DOMAIN>_<NNN>, numbered per domain.
type Case struct {
	ID            string      `db:"id"             json:"id"`
	Domain        string      `db:"domain"         json:"domain"          validate:"required"`
	Question      string      `db:"question"       json:"question"        validate:"required"`
	ModelAnswer   string      `db:"model_answer"   json:"model_answer"    validate:"required"`
	StudentAnswer string      `db:"student_answer" json:"student_answer"  validate:"required"`
	ExpectedScore float64     `db:"expected_score" json:"expected_score"  validate:"min=0,max=6"`
	KeyConcepts   ConceptList `db:"key_concepts"   json:"key_concepts"`
	Notes         string      `db:"notes"          json:"notes,omitempty"`
	CreatedAt     time.Time   `db:"created_at"     json:"created_at"`
}

// ConceptList stores a case's key concepts as a JSON array in a single
// text column.
type ConceptList []string

// Value implements driver.Valuer.
func (c ConceptList) Value() (driver.Value, error) {
	if c == nil {
		c = ConceptList{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal concept list: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (c *ConceptList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = ConceptList{}
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("cannot scan %T into concept list", src)
	}
}

// DatasetStats summarizes the stored cases.
type DatasetStats struct {
	Total            int            `json:"total_cases"`
	PerDomain        map[string]int `json:"per_domain"`
	AvgExpectedScore float64        `json:"avg_expected_score"`
}

// Store provides access to the validation-case database. It is safe for
// concurrent use.
type Store struct {
	db     *sqlx.DB
	sq     squirrel.StatementBuilderType
	logger *slog.Logger
}

// Open opens (creating if necessary) the SQLite database at path and
// applies pending migrations. Use ":memory:" for an ephemeral store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create dataset directory: %w", err)
			}
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection avoids busy errors
	// and keeps in-memory databases on one attached instance.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping dataset %s: %w", path, err)
	}
	if err := migrations.Run(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		logger: logger,
	}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AddCase validates and stores a new case. An empty ID is assigned the
// next number in the case's domain.
func (s *Store) AddCase(ctx context.Context, c Case) (Case, error) {
	if err := domain.ValidateInput(c); err != nil {
		return Case{}, err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Case{}, fmt.Errorf("begin add case: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if c.ID == "" {
		c.ID, err = s.nextID(ctx, tx, c.Domain)
		if err != nil {
			return Case{}, err
		}
	}

	query, args, err := s.sq.Insert(casesTable).
		Columns(caseColumns...).
		Values(c.ID, c.Domain, c.Question, c.ModelAnswer, c.StudentAnswer,
			c.ExpectedScore, c.KeyConcepts, c.Notes, c.CreatedAt).
		ToSql()
	if err != nil {
		return Case{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return Case{}, fmt.Errorf("insert case %s: %w", c.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return Case{}, fmt.Errorf("commit add case: %w", err)
	}

	s.logger.Info("validation case added", "case_id", c.ID, "domain", c.Domain)
	return c, nil
}

// GetCase fetches one case by ID.
func (s *Store) GetCase(ctx context.Context, id string) (Case, error) {
	query, args, err := s.sq.Select(caseColumns...).
		From(casesTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return Case{}, fmt.Errorf("build select: %w", err)
	}

	var c Case
	if err := s.db.GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Case{}, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
		}
		return Case{}, fmt.Errorf("get case %s: %w", id, err)
	}
	return c, nil
}

// ListCases returns all cases, optionally restricted to one domain,
// ordered by ID.
func (s *Store) ListCases(ctx context.Context, domainFilter string) ([]Case, error) {
	builder := s.sq.Select(caseColumns...).From(casesTable).OrderBy("id")
	if domainFilter != "" {
		builder = builder.Where(squirrel.Eq{"domain": domainFilter})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	cases := []Case{}
	if err := s.db.SelectContext(ctx, &cases, query, args...); err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return cases, nil
}

// Stats summarizes the stored cases.
func (s *Store) Stats(ctx context.Context) (DatasetStats, error) {
	stats := DatasetStats{PerDomain: map[string]int{}}

	rows, err := s.db.QueryxContext(ctx,
		"SELECT domain, COUNT(*) FROM "+casesTable+" GROUP BY domain")
	if err != nil {
		return DatasetStats{}, fmt.Errorf("count cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return DatasetStats{}, fmt.Errorf("scan domain count: %w", err)
		}
		stats.PerDomain[name] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return DatasetStats{}, fmt.Errorf("iterate domain counts: %w", err)
	}

	var avg sql.NullFloat64
	if err := s.db.GetContext(ctx, &avg,
		"SELECT AVG(expected_score) FROM "+casesTable); err != nil {
		return DatasetStats{}, fmt.Errorf("average expected score: %w", err)
	}
	if avg.Valid {
		stats.AvgExpectedScore = domain.RoundTo(avg.Float64, 4)
	}
	return stats, nil
}

// nextID assigns the next sequential ID within a domain, zero-padded to
// three digits.
func (s *Store) nextID(ctx context.Context, tx *sqlx.Tx, caseDomain string) (string, error) {
	query, args, err := s.sq.Select("COUNT(*)").
		From(casesTable).
		Where(squirrel.Eq{"domain": caseDomain}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build count: %w", err)
	}

	var count int
	if err := tx.GetContext(ctx, &count, query, args...); err != nil {
		return "", fmt.Errorf("count domain cases: %w", err)
	}
	return fmt.Sprintf("%s_%03d", caseDomain, count+1), nil
}
