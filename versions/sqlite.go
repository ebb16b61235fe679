package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS swcache_versions (
    ns TEXT NOT NULL,
    version TEXT NOT NULL,
    registered INTEGER NOT NULL DEFAULT 0,
    gen INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (ns, version)
);
CREATE TABLE IF NOT EXISTS swcache_version_keys (
    ns TEXT NOT NULL,
    version TEXT NOT NULL,
    key TEXT NOT NULL,
    PRIMARY KEY (ns, version, key)
);
`

// SQLite keeps the registry next to the entries of a sqlite provider, so a
// restarted agent still knows which versions it has to reclaim.
//
//	swcache_versions      (ns, version) -> registered, gen
//	swcache_version_keys  (ns, version, key)
//
// The database handle is borrowed; Close does not close it.
type SQLite struct {
	db *sql.DB
	ns string
}

var _ Registry = (*SQLite)(nil)

// NewSQLite creates the registry tables in db if needed. namespace should
// match the store namespace.
func NewSQLite(ctx context.Context, db *sql.DB, namespace string) (*SQLite, error) {
	if db == nil {
		return nil, errors.New("versions: sqlite db is required")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("ensure registry schema: %w", err)
	}
	return &SQLite{db: db, ns: namespace}, nil
}

func (r *SQLite) Register(ctx context.Context, version string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO swcache_versions (ns, version, registered) VALUES (?, ?, 1)
ON CONFLICT(ns, version) DO UPDATE SET registered = 1`, r.ns, version)
	return err
}

func (r *SQLite) Versions(ctx context.Context) ([]string, error) {
	return r.strings(ctx,
		`SELECT version FROM swcache_versions WHERE ns = ? AND registered = 1 ORDER BY version`, r.ns)
}

func (r *SQLite) Forget(ctx context.Context, version string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`UPDATE swcache_versions SET registered = 0 WHERE ns = ? AND version = ?`, r.ns, version); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM swcache_version_keys WHERE ns = ? AND version = ?`, r.ns, version); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLite) Generation(ctx context.Context, version string) (uint64, error) {
	var g uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT gen FROM swcache_versions WHERE ns = ? AND version = ?`, r.ns, version).Scan(&g)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return g, err
}

func (r *SQLite) Bump(ctx context.Context, version string) (uint64, error) {
	var g uint64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO swcache_versions (ns, version, gen) VALUES (?, ?, 1)
ON CONFLICT(ns, version) DO UPDATE SET gen = gen + 1
RETURNING gen`, r.ns, version).Scan(&g)
	return g, err
}

func (r *SQLite) Track(ctx context.Context, version, key string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var registered bool
	err = tx.QueryRowContext(ctx,
		`SELECT registered FROM swcache_versions WHERE ns = ? AND version = ?`, r.ns, version).Scan(&registered)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !registered) {
		return ErrUnregistered
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO swcache_version_keys (ns, version, key) VALUES (?, ?, ?)`,
		r.ns, version, key); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLite) Keys(ctx context.Context, version string) ([]string, error) {
	return r.strings(ctx,
		`SELECT key FROM swcache_version_keys WHERE ns = ? AND version = ?`, r.ns, version)
}

func (r *SQLite) Close(context.Context) error { return nil }

func (r *SQLite) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
