package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/greenlight/pkg/engine"
)

// Record is one persisted decision.
type Record struct {
	// ID is the store-assigned row identifier.
	ID int64 `json:"id"`

	// SubjectType and SubjectIdentifier are the decided subject's primary
	// reference form.
	SubjectType       string `json:"subject_type"`
	SubjectIdentifier string `json:"subject_identifier"`

	// DecisionContext and ProductVersion are the request parameters.
	DecisionContext string `json:"decision_context"`
	ProductVersion  string `json:"product_version"`

	// Passed is the aggregate outcome.
	Passed bool `json:"passed"`

	// Summary is the one-line explanation.
	Summary string `json:"summary"`

	// Decision is the full decision as evaluated.
	Decision *engine.Decision `json:"decision"`

	// CreatedAt is when the decision was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// QueryFilter selects records to return. Zero fields do not filter.
type QueryFilter struct {
	// SubjectType and SubjectIdentifier select decisions for one subject.
	SubjectType       string
	SubjectIdentifier string

	// DecisionContext selects decisions for one context.
	DecisionContext string

	// Limit caps the number of returned records. Default: 50
	Limit int
}

// Store persists decisions in a SQLite database. It is safe for concurrent
// use; SQLite allows a single writer, which the connection pool enforces.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the decision store at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history database path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{
		db:     db,
		logger: logger.With("component", "history"),
		now:    time.Now,
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_type TEXT NOT NULL,
		subject_identifier TEXT NOT NULL,
		decision_context TEXT NOT NULL,
		product_version TEXT NOT NULL,
		passed INTEGER NOT NULL,
		summary TEXT NOT NULL,
		decision TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_subject
		ON decisions(subject_type, subject_identifier);
	CREATE INDEX IF NOT EXISTS idx_decisions_created_at
		ON decisions(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record persists one evaluated decision.
func (s *Store) Record(ctx context.Context, d *engine.Decision) error {
	blob, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions
			(subject_type, subject_identifier, decision_context, product_version,
			 passed, summary, decision, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Subject.Type(),
		d.Subject.Identifier(),
		d.DecisionContext,
		d.ProductVersion,
		boolToInt(d.Passed),
		d.Summary,
		string(blob),
		s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// Query returns recorded decisions matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, subject_type, subject_identifier, decision_context,
		       product_version, passed, summary, decision, created_at
		FROM decisions WHERE 1=1`
	var args []any
	if filter.SubjectType != "" {
		query += " AND subject_type = ?"
		args = append(args, filter.SubjectType)
	}
	if filter.SubjectIdentifier != "" {
		query += " AND subject_identifier = ?"
		args = append(args, filter.SubjectIdentifier)
	}
	if filter.DecisionContext != "" {
		query += " AND decision_context = ?"
		args = append(args, filter.DecisionContext)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			passed    int
			blob      string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.SubjectType, &rec.SubjectIdentifier,
			&rec.DecisionContext, &rec.ProductVersion, &passed, &rec.Summary,
			&blob, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision row: %w", err)
		}
		rec.Passed = passed != 0
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		if err := json.Unmarshal([]byte(blob), &rec.Decision); err != nil {
			return nil, fmt.Errorf("failed to decode decision %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes records older than the given age and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).Unix()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM decisions WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune decisions: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
