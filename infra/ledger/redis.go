// Package ledger provides a Redis-backed dispatch ledger so several
// coordinator replicas never open two rounds for the same incident.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/wildguard/core/dispatch"
	"github.com/kilianp07/wildguard/core/model"
)

var _ dispatch.Ledger = (*Redis)(nil)

// Config configures the Redis ledger.
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
	// ClaimTTL bounds how long a crashed coordinator can hold an incident.
	ClaimTTL time.Duration `json:"claim_ttl"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Prefix == "" {
		c.Prefix = "wildguard:ledger:"
	}
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = time.Minute
	}
}

// Redis implements dispatch.Ledger. Claims are SETNX keys with a TTL;
// decisions are stored as JSON without expiry.
type Redis struct {
	client redis.Cmdable
	closer func() error
	prefix string
	ttl    time.Duration
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, cfg Config) (*Redis, error) {
	cfg.SetDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ledger: redis ping %s: %w", cfg.Addr, err)
	}
	l := New(client, cfg)
	l.closer = client.Close
	return l, nil
}

// New wraps an existing client. The caller owns its lifecycle.
func New(client redis.Cmdable, cfg Config) *Redis {
	cfg.SetDefaults()
	return &Redis{client: client, prefix: cfg.Prefix, ttl: cfg.ClaimTTL, closer: func() error { return nil }}
}

func (r *Redis) claimKey(id string) string    { return r.prefix + "claim:" + id }
func (r *Redis) decisionKey(id string) string { return r.prefix + "decision:" + id }

func (r *Redis) Claim(ctx context.Context, id string) (bool, error) {
	decided, err := r.client.Exists(ctx, r.decisionKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("ledger claim %s: %w", id, err)
	}
	if decided > 0 {
		return false, nil
	}
	ok, err := r.client.SetNX(ctx, r.claimKey(id), time.Now().UTC().Format(time.RFC3339Nano), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ledger claim %s: %w", id, err)
	}
	if !ok {
		return false, nil
	}
	// A decision may have landed between the two calls.
	if n, err := r.client.Exists(ctx, r.decisionKey(id)).Result(); err == nil && n > 0 {
		_ = r.client.Del(ctx, r.claimKey(id)).Err()
		return false, nil
	}
	return true, nil
}

func (r *Redis) Record(ctx context.Context, d model.DispatchDecision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.decisionKey(d.IncidentID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("ledger record %s: %w", d.IncidentID, err)
	}
	if !ok {
		return dispatch.ErrAlreadyDecided
	}
	return r.client.Del(ctx, r.claimKey(d.IncidentID)).Err()
}

func (r *Redis) Release(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.claimKey(id)).Err()
}

func (r *Redis) Get(ctx context.Context, id string) (model.DispatchDecision, bool, error) {
	data, err := r.client.Get(ctx, r.decisionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.DispatchDecision{}, false, nil
	}
	if err != nil {
		return model.DispatchDecision{}, false, fmt.Errorf("ledger get %s: %w", id, err)
	}
	var d model.DispatchDecision
	if err := json.Unmarshal(data, &d); err != nil {
		return model.DispatchDecision{}, false, fmt.Errorf("ledger get %s: %w", id, err)
	}
	return d, true, nil
}

// Close closes the client when the ledger dialed it.
func (r *Redis) Close() error { return r.closer() }
