package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPool is the subset of *pgxpool.Pool used by the stores. pgxmock pools
// satisfy it as well.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PoolOptions configures a connection pool.
type PoolOptions struct {
	ConnString string
	MinConns   int32 // Default 1
	MaxConns   int32 // Default 10
	// LoadAGE runs the AGE session setup on every new connection.
	LoadAGE bool
}

// AGE session setup run on each new connection.
var ageSessionSetup = []string{
	`LOAD 'age'`,
	`SET search_path = ag_catalog, "$user", public`,
}

// NewPool opens a pgx pool according to opts.
func NewPool(ctx context.Context, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	cfg.MinConns = opts.MinConns
	if cfg.MinConns <= 0 {
		cfg.MinConns = 1
	}
	cfg.MaxConns = opts.MaxConns
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10
	}
	if cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = cfg.MaxConns
	}

	if opts.LoadAGE {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			for _, stmt := range ageSessionSetup {
				if _, err := conn.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("age session setup %q: %w", stmt, err)
				}
			}
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return pool, nil
}
