package issues

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/db"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/embeddings"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/rcaerr"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is a document paired with its stored embedding.
type Record struct {
	Document Document
	Vector   embeddings.Vector
}

// Store provides persistence for issues and their embeddings.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

const issueColumns = `key, url, summary, description, status, priority, assignee,
	issue_type, program_theme, labels, components, comments, related_keys, updated_at`

// Upsert inserts or replaces an issue. Related keys already stored are kept
// and merged with the document's.
func (s *Store) Upsert(ctx context.Context, doc Document) error {
	key, err := NormalizeKey(doc.Key)
	if err != nil {
		return err
	}
	doc.Key = key
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}

	existing, err := s.relatedKeys(ctx, s.db.DB, key)
	if err != nil {
		return err
	}
	doc.RelatedKeys = appendUnique(existing, doc.RelatedKeys...)

	labels, err := marshalJSON(doc.Labels)
	if err != nil {
		return err
	}
	components, err := marshalJSON(doc.Components)
	if err != nil {
		return err
	}
	comments, err := marshalJSON(doc.Comments)
	if err != nil {
		return err
	}
	related, err := marshalJSON(doc.RelatedKeys)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO issues (`+issueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			url = excluded.url,
			summary = excluded.summary,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			assignee = excluded.assignee,
			issue_type = excluded.issue_type,
			program_theme = excluded.program_theme,
			labels = excluded.labels,
			components = excluded.components,
			comments = excluded.comments,
			related_keys = excluded.related_keys,
			updated_at = excluded.updated_at`,
		doc.Key, doc.URL, doc.Summary, doc.Description, doc.Status, doc.Priority,
		doc.Assignee, doc.IssueType, doc.ProgramTheme, labels, components, comments,
		related, doc.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upserting issue %s: %w", doc.Key, err)
	}
	return nil
}

// Fetch returns the issue with the given key, or an rcaerr.ErrNotFound error.
func (s *Store) Fetch(ctx context.Context, key string) (*Document, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE key = ?`, k)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rcaerr.New(rcaerr.KindNotFound, "fetch issue", fmt.Errorf("issue %s not found", k))
	}
	if err != nil {
		return nil, fmt.Errorf("fetching issue %s: %w", k, err)
	}
	return doc, nil
}

// SaveEmbedding stores or replaces the vector for an existing issue.
func (s *Store) SaveEmbedding(ctx context.Context, key string, vec embeddings.Vector) error {
	values, err := json.Marshal(vec.Values)
	if err != nil {
		return fmt.Errorf("marshalling vector: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO issue_embeddings (key, provider, model, dimensions, vector, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			provider = excluded.provider,
			model = excluded.model,
			dimensions = excluded.dimensions,
			vector = excluded.vector,
			updated_at = excluded.updated_at`,
		key, vec.Provider, vec.Model, len(vec.Values), string(values),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("saving embedding for %s: %w", key, err)
	}
	return nil
}

// Corpus returns every issue that has a stored embedding, ordered by key.
func (s *Store) Corpus(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.key, i.url, i.summary, i.description, i.status, i.priority, i.assignee,
			i.issue_type, i.program_theme, i.labels, i.components, i.comments, i.related_keys,
			i.updated_at, e.provider, e.model, e.dimensions, e.vector
		FROM issues i JOIN issue_embeddings e ON e.key = i.key
		ORDER BY i.key`)
	if err != nil {
		return nil, fmt.Errorf("querying corpus: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			f          docFields
			rec        Record
			vectorJSON string
		)
		dest := append(f.dest(), &rec.Vector.Provider, &rec.Vector.Model, &rec.Vector.Dimensions, &vectorJSON)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning corpus row: %w", err)
		}
		doc, err := f.document()
		if err != nil {
			return nil, err
		}
		rec.Document = *doc
		if err := json.Unmarshal([]byte(vectorJSON), &rec.Vector.Values); err != nil {
			return nil, fmt.Errorf("decoding vector for %s: %w", doc.Key, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AppendRelated adds keys to the issue's related list, skipping ones already
// present and the issue's own key.
func (s *Store) AppendRelated(ctx context.Context, key string, related []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.relatedKeys(ctx, tx, key)
	if err != nil {
		return err
	}
	var add []string
	for _, k := range related {
		if k != key {
			add = append(add, k)
		}
	}
	merged := appendUnique(existing, add...)
	data, err := marshalJSON(merged)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE issues SET related_keys = ? WHERE key = ?`, data, key)
	if err != nil {
		return fmt.Errorf("updating related keys for %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return rcaerr.New(rcaerr.KindNotFound, "append related", fmt.Errorf("issue %s not found", key))
	}
	return tx.Commit()
}

// List returns issues ordered by key. A limit <= 0 returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]Document, error) {
	query := `SELECT ` + issueColumns + ` FROM issues ORDER BY key`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning issue: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Count returns the number of stored issues and how many have embeddings.
func (s *Store) Count(ctx context.Context) (issues, embedded int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM issues), (SELECT COUNT(*) FROM issue_embeddings)`).
		Scan(&issues, &embedded)
	if err != nil {
		return 0, 0, fmt.Errorf("counting issues: %w", err)
	}
	return issues, embedded, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) relatedKeys(ctx context.Context, q queryer, key string) ([]string, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT related_keys FROM issues WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading related keys for %s: %w", key, err)
	}
	var keys []string
	if err := json.Unmarshal([]byte(data), &keys); err != nil {
		return nil, fmt.Errorf("decoding related keys for %s: %w", key, err)
	}
	return keys, nil
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

type docFields struct {
	doc                                    Document
	labels, components, comments, related string
	updated                                string
}

func (f *docFields) dest() []any {
	d := &f.doc
	return []any{
		&d.Key, &d.URL, &d.Summary, &d.Description, &d.Status, &d.Priority, &d.Assignee,
		&d.IssueType, &d.ProgramTheme, &f.labels, &f.components, &f.comments, &f.related, &f.updated,
	}
}

func (f *docFields) document() (*Document, error) {
	d := f.doc
	for _, p := range []struct {
		src string
		dst any
	}{
		{f.labels, &d.Labels},
		{f.components, &d.Components},
		{f.comments, &d.Comments},
		{f.related, &d.RelatedKeys},
	} {
		if p.src == "" {
			continue
		}
		if err := json.Unmarshal([]byte(p.src), p.dst); err != nil {
			return nil, fmt.Errorf("decoding issue %s: %w", d.Key, err)
		}
	}
	if f.updated != "" {
		if t, err := time.Parse(timeLayout, f.updated); err == nil {
			d.UpdatedAt = t
		}
	}
	return &d, nil
}

func scanDocument(sc scanner) (*Document, error) {
	var f docFields
	if err := sc.Scan(f.dest()...); err != nil {
		return nil, err
	}
	return f.document()
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshalling: %w", err)
	}
	if string(data) == "null" {
		return "[]", nil
	}
	return string(data), nil
}

func appendUnique(base []string, add ...string) []string {
	seen := make(map[string]struct{}, len(base)+len(add))
	out := make([]string, 0, len(base)+len(add))
	for _, k := range append(append([]string(nil), base...), add...) {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
