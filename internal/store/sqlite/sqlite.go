package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/statushub/internal/status"
	"github.com/loykin/statushub/internal/store"
)

// DB implements store.Store on SQLite (modernc.org/sqlite driver,
// CGO-free). DSN is a filesystem path; use ":memory:" for in-memory.
type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path. A "sqlite://" prefix is
// stripped when present.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if strings.HasPrefix(strings.ToLower(p), "sqlite://") {
		p = p[len("sqlite://"):]
	}
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// an in-memory database exists per connection; keep the pool at one
	if strings.Contains(p, ":memory:") {
		d.SetMaxOpenConns(1)
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS status_history(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			object_id TEXT NOT NULL,
			pos INTEGER NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL,
			error TEXT NULL,
			details TEXT NULL,
			UNIQUE(object_id, pos)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_status_history_object ON status_history(object_id, pos);`,
		`CREATE INDEX IF NOT EXISTS idx_status_history_status ON status_history(object_id, status);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) Append(ctx context.Context, e status.Event) (int64, error) {
	var errStr sql.NullString
	if e.Error != "" {
		errStr = sql.NullString{String: e.Error, Valid: true}
	}
	var details sql.NullString
	if j, ok := e.DetailsJSON(); ok {
		details = sql.NullString{String: j, Valid: true}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var pos int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(pos), 0) + 1 FROM status_history WHERE object_id = ?;`,
		string(e.ObjectID)).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO status_history(object_id, pos, occurred_at, status, error, details)
		VALUES(?, ?, ?, ?, ?, ?);`,
		string(e.ObjectID), pos, e.OccurredAt.UTC(), string(e.Status), errStr, details)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return pos, nil
}

func (s *DB) History(ctx context.Context, id status.ObjectID, f store.Filter) ([]store.Entry, error) {
	q := `SELECT pos, occurred_at, status, error, details
		FROM status_history WHERE object_id = ? AND pos > ?`
	args := []any{string(id), f.AfterPos}
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	q += ` ORDER BY pos ASC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, q+";", args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows, id)
}

func (s *DB) Current(ctx context.Context, id status.ObjectID) (*store.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pos, occurred_at, status, error, details
		FROM status_history WHERE object_id = ?
		ORDER BY pos DESC LIMIT 1;`, string(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()
	entries, err := scanEntries(rows, id)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (s *DB) Objects(ctx context.Context) ([]status.ObjectID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT object_id FROM status_history ORDER BY object_id;`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()
	out := make([]status.ObjectID, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, status.ObjectID(id))
	}
	return out, rows.Err()
}

func (s *DB) Purge(ctx context.Context, id status.ObjectID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM status_history WHERE object_id = ?;`, string(id))
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func scanEntries(rows *sql.Rows, id status.ObjectID) ([]store.Entry, error) {
	out := make([]store.Entry, 0)
	for rows.Next() {
		var (
			en      store.Entry
			kind    string
			errStr  sql.NullString
			details sql.NullString
		)
		if err := rows.Scan(&en.Pos, &en.Event.OccurredAt, &kind, &errStr, &details); err != nil {
			return nil, err
		}
		en.Event.ObjectID = id
		en.Event.Status = status.Kind(kind)
		if errStr.Valid {
			en.Event.Error = errStr.String
		}
		if details.Valid {
			d, err := status.ParseDetails(details.String)
			if err != nil {
				return nil, err
			}
			en.Event.Details = d
		}
		out = append(out, en)
	}
	return out, rows.Err()
}
