// Package redisrepo persists the session in Redis so several console processes on different
// hosts can share one sign-in.
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/jrsteele09/go-hr-console/sessions"
	"github.com/redis/go-redis/v9"
)

var _ sessions.Repo = (*Repo)(nil)

// Config contains configuration options for the Redis session repo
type Config struct {
	// Client is the Redis client instance
	Client *redis.Client

	// Key under which the session is stored
	// Default: "hrconsole:session"
	Key string

	// TTL bounds how long an unused session survives. Zero keeps it until deleted.
	TTL time.Duration
}

type Repo struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func New(config Config) (*Repo, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.Key == "" {
		config.Key = "hrconsole:session"
	}
	return &Repo{
		client: config.Client,
		key:    config.Key,
		ttl:    config.TTL,
	}, nil
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, key string, ttl time.Duration) (*Repo, error) {
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(Config{Client: cl, Key: key, TTL: ttl})
}

func (r *Repo) Close() error { return r.client.Close() }

func (r *Repo) Save(ctx context.Context, p *sessions.Persisted) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", r.key, err)
	}
	return nil
}

func (r *Repo) Load(ctx context.Context) (*sessions.Persisted, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, hrerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", r.key, err)
	}
	var p sessions.Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &p, nil
}

func (r *Repo) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", r.key, err)
	}
	return nil
}
