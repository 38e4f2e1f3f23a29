// Package runs persists completed analysis runs so that a request with the
// same idempotency key can be answered across process restarts.
package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/db"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is one persisted analysis run.
type Record struct {
	ID              string          `json:"id"`
	IssueKey        string          `json:"issue_key"`
	IdempotencyKey  string          `json:"idempotency_key"`
	Domain          string          `json:"domain,omitempty"`
	OS              string          `json:"os,omitempty"`
	LogsFingerprint string          `json:"logs_fingerprint,omitempty"`
	Inputs          json.RawMessage `json:"inputs,omitempty"`
	Report          string          `json:"report"`
	Analysis        string          `json:"analysis"`
	Fallback        bool            `json:"fallback,omitempty"`
	FallbackReason  string          `json:"fallback_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Store provides persistence for analysis runs.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Save inserts a run. If rec.ID is empty a UUID is generated. The stored
// record is returned.
func (s *Store) Save(ctx context.Context, rec Record) (*Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	inputs := string(rec.Inputs)
	if inputs == "" {
		inputs = "{}"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (
			id, issue_key, idempotency_key, domain, os, logs_fingerprint,
			inputs, report, analysis, fallback, fallback_reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.IssueKey, rec.IdempotencyKey, rec.Domain, rec.OS, rec.LogsFingerprint,
		inputs, rec.Report, rec.Analysis, rec.Fallback, rec.FallbackReason,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting analysis run: %w", err)
	}
	return &rec, nil
}

// FindByIdempotencyKey returns the newest run with the key, or nil.
func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, issue_key, idempotency_key, domain, os, logs_fingerprint,
			   inputs, report, analysis, fallback, fallback_reason, created_at
		FROM analysis_runs WHERE idempotency_key = ?
		ORDER BY created_at DESC LIMIT 1`, key)
	rec, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding analysis run: %w", err)
	}
	return rec, nil
}

// ListByIssue returns runs for an issue, newest first. A limit <= 0 returns
// all of them.
func (s *Store) ListByIssue(ctx context.Context, issueKey string, limit int) ([]Record, error) {
	query := `
		SELECT id, issue_key, idempotency_key, domain, os, logs_fingerprint,
			   inputs, report, analysis, fallback, fallback_reason, created_at
		FROM analysis_runs WHERE issue_key = ?
		ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, issueKey)
	if err != nil {
		return nil, fmt.Errorf("querying analysis runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanInto(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning analysis run: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Record, error) {
	var (
		rec     Record
		inputs  string
		created string
	)
	err := sc.Scan(
		&rec.ID, &rec.IssueKey, &rec.IdempotencyKey, &rec.Domain, &rec.OS, &rec.LogsFingerprint,
		&inputs, &rec.Report, &rec.Analysis, &rec.Fallback, &rec.FallbackReason, &created,
	)
	if err != nil {
		return nil, err
	}
	rec.Inputs = json.RawMessage(inputs)
	if t, err := time.Parse(timeLayout, created); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}
