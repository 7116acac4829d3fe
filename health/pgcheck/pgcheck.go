// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pgcheck reports whether a Postgres database is reachable.
package pgcheck

import (
	"context"
	"fmt"
	"time"

	"github.com/z5labs/keel/health"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTimeout bounds a single reachability check.
const DefaultTimeout = 500 * time.Millisecond

// Config is the database section of the service config.
type Config struct {
	// ConnectionString is a Postgres DSN or URL. The check is disabled when empty.
	ConnectionString string `config:"connection_string"`

	HealthCheckTimeoutMs int `config:"health_check_timeout_ms"`
}

// TimeoutError reports a check timeout outside its allowed range.
type TimeoutError struct {
	TimeoutMs int
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("database.health_check_timeout_ms must be within [1, 5000], got %d", e.TimeoutMs)
}

// Validate checks the timeout range.
func (c Config) Validate() error {
	if c.HealthCheckTimeoutMs < 1 || c.HealthCheckTimeoutMs > 5000 {
		return TimeoutError{TimeoutMs: c.HealthCheckTimeoutMs}
	}
	return nil
}

// Enabled reports whether a connection string was configured.
func (c Config) Enabled() bool {
	return c.ConnectionString != ""
}

// Timeout is HealthCheckTimeoutMs as a time.Duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HealthCheckTimeoutMs) * time.Millisecond
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(context.Context) error
}

// Connect lazily creates a pool. No connection is made until the first check.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}
	poolCfg.MinConns = 0
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// New returns a health.Checker pinging p within timeout.
func New(p Pinger, timeout time.Duration) health.Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return health.CheckerFunc(func(ctx context.Context) health.Result {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := p.Ping(ctx)
		if err != nil {
			return health.Result{Description: fmt.Sprintf("Database unreachable: %s", err)}
		}
		return health.Result{Healthy: true, Description: "Database reachable."}
	})
}
