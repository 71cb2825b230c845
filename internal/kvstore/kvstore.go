// Package kvstore is a small string key-value store on SQLite. It backs
// local document storage and the directory permission grants.
package kvstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nibzard/roadmapper/internal/fsaccess"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed key-value store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. The special path ":memory:"
// opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if !IsMemory(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		var err error
		if dsn, err = fileDSN(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// fileDSN builds the sqlite URI for the database file at path, escaping
// characters such as '?' and '#' that would otherwise end the file name.
func fileDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve database path: %w", err)
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		// Drive-letter paths become file:///C:/...
		p = "/" + p
	}
	u := &url.URL{
		Scheme:   "file",
		Path:     p,
		RawQuery: "_busy_timeout=5000&_journal_mode=WAL",
	}
	return u.String(), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys returns the keys starting with prefix in ascending order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// HasGrant implements fsaccess.GrantStore. A readwrite grant covers read.
func (s *Store) HasGrant(ctx context.Context, id fsaccess.DirID, mode fsaccess.Mode) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM grants
		WHERE path = ? AND device = ? AND inode = ? AND mode IN (?, ?)
	`, id.Path, int64(id.Device), int64(id.Inode), string(mode), string(fsaccess.ModeReadWrite)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query grant: %w", err)
	}
	return n > 0, nil
}

// SaveGrant implements fsaccess.GrantStore.
func (s *Store) SaveGrant(ctx context.Context, id fsaccess.DirID, mode fsaccess.Mode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grants (path, device, inode, mode, granted_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path, device, inode, mode) DO UPDATE SET granted_at = excluded.granted_at
	`, id.Path, int64(id.Device), int64(id.Inode), string(mode), now())
	if err != nil {
		return fmt.Errorf("save grant: %w", err)
	}
	return nil
}

// RevokeGrants implements fsaccess.GrantStore.
func (s *Store) RevokeGrants(ctx context.Context, path string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM grants WHERE path = ?`, path)
	if err != nil {
		return 0, fmt.Errorf("revoke grants: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke grants: %w", err)
	}
	return int(n), nil
}

// ListGrants implements fsaccess.GrantStore.
func (s *Store) ListGrants(ctx context.Context) ([]fsaccess.Grant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, device, inode, mode, granted_at FROM grants ORDER BY path, mode`)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []fsaccess.Grant
	for rows.Next() {
		var (
			g             fsaccess.Grant
			device, inode int64
			mode, granted string
		)
		if err := rows.Scan(&g.Path, &device, &inode, &mode, &granted); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		g.Device = uint64(device)
		g.Inode = uint64(inode)
		g.Mode = fsaccess.Mode(mode)
		if t, err := time.Parse(time.RFC3339Nano, granted); err == nil {
			g.GrantedAt = t
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// IsMemory reports whether path names an in-memory database.
func IsMemory(path string) bool {
	return strings.TrimSpace(path) == ":memory:"
}
