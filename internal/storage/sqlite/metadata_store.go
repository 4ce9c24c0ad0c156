// Package sqlite provides a single-file wallpaper metadata store on mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
)

var _ armada.MetadataStore = (*MetadataStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS wallpapers (
	name TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	blob_path TEXT NOT NULL,
	thumb_path TEXT NOT NULL,
	stored_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS keywords (
	word TEXT NOT NULL,
	name TEXT NOT NULL REFERENCES wallpapers (name) ON DELETE CASCADE,
	PRIMARY KEY (word, name)
);`

// MetadataStore writes wallpaper and keyword rows into a SQLite database.
type MetadataStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*MetadataStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("metadata.dsn is required for sqlite: %w", armada.ErrConfiguration)
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between transactions.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &MetadataStore{db: db}, nil
}

// Close releases the database handle.
func (s *MetadataStore) Close() error {
	return s.db.Close()
}

// Ping checks the database handle.
func (s *MetadataStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Begin opens a transaction.
func (s *MetadataStore) Begin(ctx context.Context) (armada.MetadataTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &metadataTx{tx: tx}, nil
}

// Wallpaper loads the row for name.
func (s *MetadataStore) Wallpaper(ctx context.Context, name string) (armada.WallpaperRecord, error) {
	var rec armada.WallpaperRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT name, source, width, height, blob_path, thumb_path, stored_at FROM wallpapers WHERE name = ?`, name).
		Scan(&rec.Name, &rec.Source, &rec.Width, &rec.Height, &rec.BlobPath, &rec.ThumbPath, &rec.StoredAt)
	if err != nil {
		return armada.WallpaperRecord{}, fmt.Errorf("load wallpaper %s: %w", name, err)
	}
	return rec, nil
}

// Keywords lists the words attached to name in insertion order.
func (s *MetadataStore) Keywords(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT word FROM keywords WHERE name = ? ORDER BY rowid`, name)
	if err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}
	defer rows.Close()
	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

type metadataTx struct {
	tx *sql.Tx
}

func (t *metadataTx) InsertWallpaper(ctx context.Context, record armada.WallpaperRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO wallpapers (name, source, width, height, blob_path, thumb_path, stored_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.Name, record.Source, record.Width, record.Height, record.BlobPath, record.ThumbPath, record.StoredAt)
	if err != nil {
		if isConstraintDuplicate(err) {
			return fmt.Errorf("insert wallpaper %s: %w", record.Name, armada.ErrDuplicate)
		}
		return fmt.Errorf("insert wallpaper: %w", err)
	}
	return nil
}

// InsertKeyword inserts one row. SQLite keeps the transaction usable after a constraint failure.
func (t *metadataTx) InsertKeyword(ctx context.Context, record armada.KeywordRecord) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO keywords (word, name) VALUES (?, ?)`, record.Word, record.Name)
	if err != nil {
		if isConstraintDuplicate(err) {
			return fmt.Errorf("insert keyword %q: %w", record.Word, armada.ErrDuplicate)
		}
		return fmt.Errorf("insert keyword %q: %w", record.Word, err)
	}
	return nil
}

func (t *metadataTx) Commit(_ context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *metadataTx) Rollback(_ context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func isConstraintDuplicate(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
