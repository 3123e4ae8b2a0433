package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver

	"clinix-backend/internal/shared/telemetry"
)

// Pool names a process shape. Each one gets its own pool sizing.
type Pool string

const (
	PoolServer  Pool = "server"
	PoolWorker  Pool = "worker"
	PoolMigrate Pool = "migrate"
)

// Options controls database pool and connectivity behavior.
type Options struct {
	Pool            Pool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var presets = map[Pool]Options{
	PoolServer: {
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	},
	// a document job reads one appointment and patches it
	PoolWorker: {
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxIdleTime: 30 * time.Second,
		ConnMaxLifetime: 15 * time.Minute,
		PingTimeout:     3 * time.Second,
	},
	PoolMigrate: {
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	},
}

// Preset returns the pool defaults for p. Unknown pools get the server sizing.
func Preset(p Pool) Options {
	opts, ok := presets[p]
	if !ok {
		opts = presets[PoolServer]
	}
	opts.Pool = p
	return opts
}

type envOverride struct {
	key   string
	apply func(o *Options, raw string) error
}

var envOverrides = []envOverride{
	{"DB_MAX_OPEN_CONNS", intField(func(o *Options) *int { return &o.MaxOpenConns })},
	{"DB_MAX_IDLE_CONNS", intField(func(o *Options) *int { return &o.MaxIdleConns })},
	{"DB_CONN_MAX_LIFETIME", durationField(func(o *Options) *time.Duration { return &o.ConnMaxLifetime })},
	{"DB_CONN_MAX_IDLE_TIME", durationField(func(o *Options) *time.Duration { return &o.ConnMaxIdleTime })},
	{"DB_PING_TIMEOUT", durationField(func(o *Options) *time.Duration { return &o.PingTimeout })},
}

func intField(field func(*Options) *int) func(*Options, string) error {
	return func(o *Options, raw string) error {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*field(o) = v
		return nil
	}
}

func durationField(field func(*Options) *time.Duration) func(*Options, string) error {
	return func(o *Options, raw string) error {
		v, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*field(o) = v
		return nil
	}
}

// OptionsFromEnv applies DB_* env overrides on top of base. Unparseable
// values are logged and leave the base value in place.
func OptionsFromEnv(base Options) Options {
	for _, ov := range envOverrides {
		raw := strings.TrimSpace(os.Getenv(ov.key))
		if raw == "" {
			continue
		}
		if err := ov.apply(&base, raw); err != nil {
			telemetry.Warn("db.env_invalid", map[string]any{"key": ov.key, "error": err.Error()})
		}
	}
	return base
}

var openDB = sql.Open

// Connect opens a pgx-backed *sql.DB and pings it. Callers share the result.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	sqlDB, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	configurePool(sqlDB, opts)

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database %s: %w", redactedHost(databaseURL), err)
	}

	fields := poolStats(sqlDB)
	fields["pool"] = string(opts.Pool)
	fields["host"] = redactedHost(databaseURL)
	telemetry.Info("db.connected", fields)
	return sqlDB, nil
}

// shared holds the process-wide pool used by Lambda handlers. ready is
// non-nil while a connect is in flight; waiters block on it.
var shared struct {
	mu    sync.Mutex
	db    *sql.DB
	ready chan struct{}
}

// GetSingleton returns a process-wide *sql.DB so warm Lambda invocations reuse
// one pool. Concurrent callers wait for a single connect; after a failure
// the next call tries again.
func GetSingleton(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	for {
		shared.mu.Lock()
		if shared.db != nil {
			sqlDB := shared.db
			shared.mu.Unlock()
			return sqlDB, nil
		}
		if wait := shared.ready; wait != nil {
			shared.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		done := make(chan struct{})
		shared.ready = done
		shared.mu.Unlock()

		sqlDB, err := Connect(ctx, databaseURL, opts)

		shared.mu.Lock()
		if err == nil {
			shared.db = sqlDB
		}
		shared.ready = nil
		shared.mu.Unlock()
		close(done)

		if err != nil {
			return nil, err
		}
		telemetry.Info("db.singleton_init", map[string]any{"pool": string(opts.Pool)})
		return sqlDB, nil
	}
}

func configurePool(sqlDB *sql.DB, opts Options) {
	fallback := presets[PoolServer]
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = fallback.MaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = fallback.MaxIdleConns
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = fallback.ConnMaxLifetime
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func poolStats(sqlDB *sql.DB) map[string]any {
	s := sqlDB.Stats()
	return map[string]any{
		"open":     s.OpenConnections,
		"in_use":   s.InUse,
		"idle":     s.Idle,
		"wait":     s.WaitCount,
		"max_open": s.MaxOpenConnections,
	}
}

// redactedHost keeps host and database name for logs and drops credentials.
func redactedHost(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host + u.Path
}
