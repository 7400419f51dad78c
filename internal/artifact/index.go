package artifact

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one indexed artifact row.
type Record struct {
	ID        string    `json:"id"`
	Family    string    `json:"family"`
	Mode      string    `json:"mode"`
	Filename  string    `json:"filename"`
	Seed      int64     `json:"seed"`
	CreatedAt time.Time `json:"created_at"`
}

// Index is a sqlite-backed catalog of saved artifacts. It is an inventory,
// not a source of truth: the PNG on disk is authoritative.
type Index struct {
	db *sql.DB
}

func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ix := &Index{db: db}
	if err := ix.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) migrate() error {
	_, err := ix.db.Exec(`
CREATE TABLE IF NOT EXISTS artifacts (
  id TEXT PRIMARY KEY,
  family TEXT NOT NULL,
  mode TEXT NOT NULL,
  filename TEXT NOT NULL,
  seed INTEGER NOT NULL,
  created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_created_at ON artifacts(created_at DESC);
`)
	return err
}

func (ix *Index) Insert(ctx context.Context, r Record) error {
	if ix.db == nil {
		return nil
	}
	_, err := ix.db.ExecContext(ctx, `
INSERT INTO artifacts(id, family, mode, filename, seed, created_at)
VALUES(?, ?, ?, ?, ?, ?);
`, r.ID, r.Family, r.Mode, r.Filename, r.Seed, r.CreatedAt)
	return err
}

// Recent returns up to limit rows, newest first.
func (ix *Index) Recent(ctx context.Context, limit int) ([]Record, error) {
	if ix.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := ix.db.QueryContext(ctx, `
SELECT id, family, mode, filename, seed, created_at
FROM artifacts ORDER BY created_at DESC, id DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Family, &r.Mode, &r.Filename, &r.Seed, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (ix *Index) Close() error {
	if ix.db == nil {
		return nil
	}
	return ix.db.Close()
}
