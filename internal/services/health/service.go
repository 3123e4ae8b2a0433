package health

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkTimeout = 2 * time.Second

// Service reports on the backing stores the API depends on.
type Service struct {
	DB    *sql.DB
	Redis *redis.Client
}

// NewService constructs a new health service. Nil dependencies are reported as disabled.
func NewService(db *sql.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, Redis: rdb}
}

// Status returns the health payload and whether every configured dependency answered.
func (s *Service) Status(ctx context.Context) (map[string]any, bool) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	ok := true
	payload := map[string]any{}

	switch {
	case s.DB == nil:
		payload["database"] = "memory"
	case s.DB.PingContext(ctx) != nil:
		payload["database"] = "down"
		ok = false
	default:
		payload["database"] = "ok"
	}

	switch {
	case s.Redis == nil:
		payload["lock"] = "disabled"
	case s.Redis.Ping(ctx).Err() != nil:
		payload["lock"] = "down"
		ok = false
	default:
		payload["lock"] = "ok"
	}

	payload["ok"] = ok
	return payload, ok
}
