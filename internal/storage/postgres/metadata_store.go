// Package postgres provides the Postgres-backed wallpaper metadata store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
)

const uniqueViolation = "23505"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var _ armada.MetadataStore = (*MetadataStore)(nil)

// Config controls the Postgres connection pool and table names.
type Config struct {
	DSN             string
	WallpaperTable  string
	KeywordTable    string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Ping(context.Context) error
	Close()
}

// MetadataStore writes wallpaper and keyword rows into Postgres.
type MetadataStore struct {
	pool       pool
	wallpapers string
	keywords   string
}

// New creates a pool-backed MetadataStore using the provided config.
func New(ctx context.Context, cfg Config) (*MetadataStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("metadata.dsn is required: %w", armada.ErrConfiguration)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %v: %w", err, armada.ErrConfiguration)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(p, cfg.WallpaperTable, cfg.KeywordTable)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, wallpaperTable, keywordTable string) (*MetadataStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required: %w", armada.ErrConfiguration)
	}
	if wallpaperTable == "" {
		wallpaperTable = "wallpapers"
	}
	if keywordTable == "" {
		keywordTable = "keywords"
	}
	for _, table := range []string{wallpaperTable, keywordTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q: %w", table, armada.ErrConfiguration)
		}
	}
	return &MetadataStore{pool: p, wallpapers: wallpaperTable, keywords: keywordTable}, nil
}

// Close releases the underlying pool resources.
func (s *MetadataStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity.
func (s *MetadataStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the wallpaper and keyword tables when absent.
func (s *MetadataStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	name TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	blob_path TEXT NOT NULL,
	thumb_path TEXT NOT NULL,
	stored_at TIMESTAMPTZ NOT NULL
)`, s.wallpapers),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	word TEXT NOT NULL,
	name TEXT NOT NULL REFERENCES %s (name) ON DELETE CASCADE,
	PRIMARY KEY (word, name)
)`, s.keywords, s.wallpapers),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Begin opens a transaction.
func (s *MetadataStore) Begin(ctx context.Context) (armada.MetadataTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &metadataTx{tx: tx, wallpapers: s.wallpapers, keywords: s.keywords}, nil
}

type metadataTx struct {
	tx         pgx.Tx
	wallpapers string
	keywords   string
}

func (t *metadataTx) InsertWallpaper(ctx context.Context, record armada.WallpaperRecord) error {
	query := fmt.Sprintf(`
INSERT INTO %s (
	name,
	source,
	width,
	height,
	blob_path,
	thumb_path,
	stored_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)`, t.wallpapers)
	_, err := t.tx.Exec(ctx, query,
		record.Name,
		record.Source,
		record.Width,
		record.Height,
		record.BlobPath,
		record.ThumbPath,
		record.StoredAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert wallpaper %s: %w", record.Name, armada.ErrDuplicate)
		}
		return fmt.Errorf("insert wallpaper: %w", err)
	}
	return nil
}

// InsertKeyword runs inside a savepoint so a failed row leaves the transaction usable.
func (t *metadataTx) InsertKeyword(ctx context.Context, record armada.KeywordRecord) error {
	if _, err := t.tx.Exec(ctx, "SAVEPOINT keyword"); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (word, name) VALUES ($1, $2)`, t.keywords)
	if _, err := t.tx.Exec(ctx, query, record.Word, record.Name); err != nil {
		if _, rbErr := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT keyword"); rbErr != nil {
			return errors.Join(fmt.Errorf("insert keyword %q: %w", record.Word, err), rbErr)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("insert keyword %q: %w", record.Word, armada.ErrDuplicate)
		}
		return fmt.Errorf("insert keyword %q: %w", record.Word, err)
	}
	if _, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT keyword"); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *metadataTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *metadataTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
