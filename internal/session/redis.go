// Package session stores validated imports between the upload and the apply.
//
// Two implementations of core.SessionStore are provided: RedisStore for
// deployments with more than one server process, and MemoryStore for a
// single process or tests. Both expire sessions after a fixed TTL.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/stocksync/internal/core"
)

// DefaultTTL is how long a validated import waits to be applied.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "stockimport:"

// RedisStore keeps sessions as JSON values with a TTL. The applied flag is
// a separate key claimed with SETNX, so two servers racing to apply the
// same import cannot both win.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store on client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string { return keyPrefix + "session:" + id }
func appliedKey(id string) string { return keyPrefix + "applied:" + id }

// Save stores sess, resetting its TTL.
func (s *RedisStore) Save(ctx context.Context, sess core.ImportSession) error {
	sess.Applied = false
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session %s: %w", sess.ID, err)
	}
	return nil
}

// Get loads a session and its applied flag.
func (s *RedisStore) Get(ctx context.Context, id string) (core.ImportSession, error) {
	var sess core.ImportSession

	pipe := s.client.Pipeline()
	payloadCmd := pipe.Get(ctx, sessionKey(id))
	appliedCmd := pipe.Exists(ctx, appliedKey(id))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return sess, fmt.Errorf("load session %s: %w", id, err)
	}

	payload, err := payloadCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sess, fmt.Errorf("session %s: %w", id, core.ErrImportNotFound)
		}
		return sess, fmt.Errorf("load session %s: %w", id, err)
	}
	if err := json.Unmarshal(payload, &sess); err != nil {
		return sess, fmt.Errorf("decode session %s: %w", id, err)
	}
	sess.Applied = appliedCmd.Val() > 0
	return sess, nil
}

// MarkApplied claims the session for apply.
func (s *RedisStore) MarkApplied(ctx context.Context, id string) error {
	exists, err := s.client.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("check session %s: %w", id, err)
	}
	if exists == 0 {
		return fmt.Errorf("session %s: %w", id, core.ErrImportNotFound)
	}

	claimed, err := s.client.SetNX(ctx, appliedKey(id), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim session %s: %w", id, err)
	}
	if !claimed {
		return core.ErrImportAlreadyApplied
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
