// Package store persists extracted palettes in a SQLite database so the same
// pixels and configuration are only clustered once.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/hashicorp/go-hclog"
	_ "modernc.org/sqlite"

	"github.com/jmylchreest/blotch/internal/colour"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout sorts lexically in time order, unlike RFC3339Nano which trims
// trailing zeros.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultMaxEntries bounds the store when pruning without an explicit limit.
const DefaultMaxEntries = 512

// Store is a palette cache backed by SQLite.
type Store struct {
	db     *sql.DB
	logger hclog.Logger
	now    func() time.Time
}

// Entry describes a stored palette.
type Entry struct {
	Key        string
	Source     string
	ColorSpace colour.ColorSpace
	Count      int
	CreatedAt  time.Time
	UsedAt     time.Time
}

// DefaultPath returns the default database location in the user cache dir.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine cache directory: %w", err)
	}
	return filepath.Join(dir, "blotch", "palettes.db"), nil
}

// Open opens (creating if needed) the database at path and applies migrations.
// A nil logger discards output.
func Open(ctx context.Context, path string, logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { // #nosec G301 - Cache directory needs standard permissions
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(names)

	for _, name := range names {
		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE name = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		body, err := migrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("start migration tx %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations(name, applied_at) VALUES (?, ?)",
			name, s.timestamp(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
		s.logger.Debug("applied migration", "name", name)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

// Key derives the cache key for a pixel buffer extracted with cfg.
func Key(pixels []uint8, width int, cfg colour.Config) string {
	h := sha256.New()
	var w [8]byte
	binary.LittleEndian.PutUint64(w[:], uint64(width)) // #nosec G115 - width is validated positive by callers
	h.Write(w[:])
	h.Write([]byte(cfg.Key()))
	h.Write(pixels)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get returns the stored palette for key. The boolean is false on a miss.
func (s *Store) Get(ctx context.Context, key string) (*colour.Palette, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT palette FROM palettes WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query palette: %w", err)
	}

	palette, err := colour.ParseJSON([]byte(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode stored palette: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE palettes SET used_at = ? WHERE key = ?", s.timestamp(), key); err != nil {
		return nil, false, fmt.Errorf("touch palette: %w", err)
	}
	return palette, true, nil
}

// Put stores palette under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key, source string, palette *colour.Palette) error {
	data, err := palette.ToJSON()
	if err != nil {
		return fmt.Errorf("encode palette: %w", err)
	}
	now := s.timestamp()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO palettes(key, source, colorspace, count, palette, created_at, used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			source = excluded.source,
			colorspace = excluded.colorspace,
			count = excluded.count,
			palette = excluded.palette,
			used_at = excluded.used_at
	`, key, source, string(palette.ColorSpace), palette.Len(), string(data), now, now)
	if err != nil {
		return fmt.Errorf("store palette: %w", err)
	}
	return nil
}

// List returns stored palettes, most recently used first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, source, colorspace, count, created_at, used_at FROM palettes ORDER BY used_at DESC, key")
	if err != nil {
		return nil, fmt.Errorf("list palettes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			cs, created, used string
		)
		if err := rows.Scan(&e.Key, &e.Source, &cs, &e.Count, &created, &used); err != nil {
			return nil, fmt.Errorf("scan palette: %w", err)
		}
		e.ColorSpace = colour.ColorSpace(cs)
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if e.UsedAt, err = time.Parse(timeLayout, used); err != nil {
			return nil, fmt.Errorf("parse used_at: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes all but the maxEntries most recently used palettes and
// returns how many were removed. maxEntries <= 0 uses DefaultMaxEntries.
func (s *Store) Prune(ctx context.Context, maxEntries int) (int, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM palettes WHERE key NOT IN (
			SELECT key FROM palettes ORDER BY used_at DESC, key LIMIT ?
		)
	`, maxEntries)
	if err != nil {
		return 0, fmt.Errorf("prune palettes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune palettes: %w", err)
	}
	if n > 0 {
		s.logger.Debug("pruned palettes", "removed", n, "kept", maxEntries)
	}
	return int(n), nil
}

// Clear deletes every stored palette and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM palettes")
	if err != nil {
		return 0, fmt.Errorf("clear palettes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear palettes: %w", err)
	}
	return int(n), nil
}
