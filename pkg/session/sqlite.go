package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pinrunner/pkg/browser"
)

const cookieSchema = `
CREATE TABLE IF NOT EXISTS cookies (
	account    TEXT    NOT NULL,
	name       TEXT    NOT NULL,
	domain     TEXT    NOT NULL,
	path       TEXT    NOT NULL,
	value      TEXT    NOT NULL,
	expires    REAL    NOT NULL DEFAULT 0,
	http_only  INTEGER NOT NULL DEFAULT 0,
	secure     INTEGER NOT NULL DEFAULT 0,
	same_site  TEXT    NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (account, name, domain, path)
);`

// SQLiteStore keeps cookies per account in a SQLite database. It serves as
// both the external Source and Sink.
type SQLiteStore struct {
	db      *sql.DB
	account string
}

var (
	_ Source = (*SQLiteStore)(nil)
	_ Sink   = (*SQLiteStore)(nil)
)

// OpenSQLite opens or creates the cookie database at path
func OpenSQLite(path, account string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie database: %w", err)
	}
	// one connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(cookieSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cookie schema: %w", err)
	}

	if account == "" {
		account = "default"
	}
	return &SQLiteStore{db: db, account: account}, nil
}

// FetchCookies returns the stored cookies for the account
func (s *SQLiteStore) FetchCookies(ctx context.Context) ([]browser.Cookie, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value, domain, path, expires, http_only, secure, same_site
		FROM cookies WHERE account = ? ORDER BY domain, path, name`, s.account)
	if err != nil {
		return nil, fmt.Errorf("failed to query cookies: %w", err)
	}
	defer rows.Close()

	var out []browser.Cookie
	for rows.Next() {
		var c browser.Cookie
		if err := rows.Scan(&c.Name, &c.Value, &c.Domain, &c.Path, &c.Expires, &c.HTTPOnly, &c.Secure, &c.SameSite); err != nil {
			return nil, fmt.Errorf("failed to scan cookie: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// StoreCookies replaces the account's cookies in one transaction
func (s *SQLiteStore) StoreCookies(ctx context.Context, cookies []browser.Cookie) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cookies WHERE account = ?`, s.account); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cookies (account, name, domain, path, value, expires, http_only, secure, same_site, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account, name, domain, path) DO UPDATE SET
			value = excluded.value, expires = excluded.expires, http_only = excluded.http_only,
			secure = excluded.secure, same_site = excluded.same_site, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, c := range cookies {
		if _, err := stmt.ExecContext(ctx, s.account, c.Name, c.Domain, c.Path, c.Value, c.Expires, c.HTTPOnly, c.Secure, c.SameSite, now); err != nil {
			return fmt.Errorf("failed to insert cookie %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
