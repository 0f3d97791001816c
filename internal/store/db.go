package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB holds the read-only pool every rollup runs on.
type DB struct {
	Pool *pgxpool.Pool
}

// PoolOptions tunes the warehouse pool.
type PoolOptions struct {
	MaxConns         int32
	StatementTimeout time.Duration
	ApplicationName  string
}

// PoolConfig parses url and applies opts. Sessions are read-only and, when
// StatementTimeout is set, the server cancels any statement that runs longer.
func PoolConfig(url string, opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse warehouse url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = min(2, cfg.MaxConns)
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 10 * time.Minute

	params := cfg.ConnConfig.RuntimeParams
	params["default_transaction_read_only"] = "on"
	if opts.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(opts.StatementTimeout.Milliseconds(), 10)
	}
	if opts.ApplicationName != "" {
		params["application_name"] = opts.ApplicationName
	}
	return cfg, nil
}

// NewDB opens the pool. Connections are established lazily.
func NewDB(ctx context.Context, url string, opts PoolOptions) (*DB, error) {
	cfg, err := PoolConfig(url, opts)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

// Ping checks that the warehouse answers.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping warehouse: %w", err)
	}
	return nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}
