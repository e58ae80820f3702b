package health

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/ports"
	infraDB "github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/db"
)

// dbHealthChecker wraps the database for health checks.
type dbHealthChecker struct{ db *infraDB.Database }

func (d *dbHealthChecker) Name() string                    { return d.db.Driver }
func (d *dbHealthChecker) Check(ctx context.Context) error { return d.db.Ping(ctx) }

// redisHealthChecker wraps the redis client for health checks.
type redisHealthChecker struct{ client redis.UniversalClient }

func (r *redisHealthChecker) Name() string                    { return "redis" }
func (r *redisHealthChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }

// pingChecker adapts anything with a Ping method, such as the object store.
type pingChecker struct {
	name string
	ping func(ctx context.Context) error
}

func (p *pingChecker) Name() string                    { return p.name }
func (p *pingChecker) Check(ctx context.Context) error { return p.ping(ctx) }

// NewDBHealthChecker creates a health checker for the database.
func NewDBHealthChecker(db *infraDB.Database) ports.HealthChecker { return &dbHealthChecker{db: db} }

// NewRedisHealthChecker creates a health checker for Redis.
func NewRedisHealthChecker(client redis.UniversalClient) ports.HealthChecker {
	return &redisHealthChecker{client: client}
}

// NewPingHealthChecker creates a named health checker from a ping function.
func NewPingHealthChecker(name string, ping func(ctx context.Context) error) ports.HealthChecker {
	return &pingChecker{name: name, ping: ping}
}
