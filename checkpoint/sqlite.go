package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/c360studio/taxorank/taxonomy"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	taxonomy_id TEXT    NOT NULL,
	seq         INTEGER NOT NULL,
	requested   TEXT    NOT NULL,
	saved_at    TEXT    NOT NULL,
	data        BLOB    NOT NULL,
	PRIMARY KEY (taxonomy_id, seq)
);
`

// SQLiteStore keeps snapshots in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps SQLite from reporting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Backend implements Store.
func (q *SQLiteStore) Backend() string { return BackendSQLite }

// Close closes the database.
func (q *SQLiteStore) Close() error { return q.db.Close() }

// Save inserts a row one past the taxonomy's highest sequence number. The
// number is allocated inside the insert so concurrent saves cannot collide.
func (q *SQLiteStore) Save(ctx context.Context, s *taxonomy.Snapshot) (string, error) {
	data, err := encode(s)
	if err != nil {
		return "", err
	}
	var seq int64
	err = q.db.QueryRowContext(ctx, `
INSERT INTO snapshots (taxonomy_id, seq, requested, saved_at, data)
SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ? FROM snapshots WHERE taxonomy_id = ?
RETURNING seq`,
		s.ID, s.Requested, time.Now().UTC().Format(time.RFC3339Nano), data, s.ID).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	return Location{Backend: BackendSQLite, Key: formatKey(s.ID, seq)}.String(), nil
}

// Load reads the snapshot at a sqlite:// location.
func (q *SQLiteStore) Load(ctx context.Context, location string) (*taxonomy.Snapshot, error) {
	loc, err := locate(location, BackendSQLite)
	if err != nil {
		return nil, err
	}
	id, seq, err := splitKey(loc.Key)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = q.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE taxonomy_id = ? AND seq = ?`, id, seq).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", location, ErrNotFound)
		}
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	return decode(data)
}

// Latest returns the location of the newest save of a taxonomy.
func (q *SQLiteStore) Latest(ctx context.Context, taxonomyID string) (string, error) {
	var seq sql.NullInt64
	err := q.db.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM snapshots WHERE taxonomy_id = ?`, taxonomyID).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("query latest snapshot: %w", err)
	}
	if !seq.Valid {
		return "", fmt.Errorf("%s: %w", taxonomyID, ErrNotFound)
	}
	return Location{Backend: BackendSQLite, Key: formatKey(taxonomyID, seq.Int64)}.String(), nil
}
