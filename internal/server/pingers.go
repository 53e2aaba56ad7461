package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
)

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// RedisPinger probes the Redis broker backing the task queue.
type RedisPinger struct {
	// client is the Redis connection to probe.
	client redis.UniversalClient
}

// NewRedisPinger constructs a RedisPinger for a Redis instance at addr.
func NewRedisPinger(addr, password string, db int) *RedisPinger {
	return &RedisPinger{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Name returns the dependency label used in readiness responses.
func (p *RedisPinger) Name() string { return "redis" }

// Ping issues a Redis PING.
func (p *RedisPinger) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// DBPinger probes the SQLite job tracker database.
type DBPinger struct {
	// db is the tracker's database handle.
	db *sql.DB
}

// NewDBPinger constructs a DBPinger over db.
func NewDBPinger(db *sql.DB) *DBPinger {
	return &DBPinger{db: db}
}

// Name returns the dependency label used in readiness responses.
func (p *DBPinger) Name() string { return "jobs-db" }

// Ping verifies the database handle is usable.
func (p *DBPinger) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
