// Package pgcache implements the L3 persistent cache layer (spec §4.6: "L3
// | persistent (disk/remote) | ~10^5 | async, best-effort | TTL-dominant").
// It is backed directly by Postgres via pgx/v5 rather than an ORM: the
// persisted shape is a single flat key/value/expiry table (spec §6,
// "Persisted state layout"), too simple to need entgo.io/ent's generated
// schema client.
package pgcache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver for migrations
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// defaultTTL is longer than L1/L2's (spec §4.6: "longer" for L3).
const defaultTTL = 24 * time.Hour

// Layer is the L3 cache backend. Reads and writes are best-effort: callers
// (pkg/cache's MultiLayerCache) never let an L3 failure affect resolve
// correctness, per spec §4.6's write path.
type Layer struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, runs pending migrations, and returns a ready Layer.
func Open(ctx context.Context, dsn string) (*Layer, error) {
	if err := migrateUp(dsn); err != nil {
		return nil, fmt.Errorf("pgcache: migrate: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgcache: connect: %w", err)
	}
	return &Layer{pool: pool}, nil
}

// migrateUp applies every migration in migrations/ via golang-migrate, using
// pgx's database/sql adapter since golang-migrate's Postgres driver takes a
// *sql.DB rather than a pgxpool.Pool.
func migrateUp(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (l *Layer) Close() {
	l.pool.Close()
}

func (l *Layer) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expires time.Time
	err := l.pool.QueryRow(ctx, `SELECT value, expires_at FROM cache_entries WHERE key = $1`, key).Scan(&value, &expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if time.Now().After(expires) {
		_, _ = l.pool.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key)
		return nil, false, nil
	}
	return value, true, nil
}

func (l *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	_, err := l.pool.Exec(ctx, `
		INSERT INTO cache_entries (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, key, value, time.Now().Add(ttl))
	return err
}

func (l *Layer) Delete(ctx context.Context, key string) error {
	_, err := l.pool.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key)
	return err
}

func (l *Layer) Clear(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `TRUNCATE cache_entries`)
	return err
}

func (l *Layer) Stats(ctx context.Context) (entries int64, err error) {
	err = l.pool.QueryRow(ctx, `SELECT count(*) FROM cache_entries`).Scan(&entries)
	return entries, err
}

func (l *Layer) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := l.pool.Query(ctx, `SELECT key FROM cache_entries WHERE key LIKE $1`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
