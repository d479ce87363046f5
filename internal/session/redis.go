package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session under "session:{id}" with a sliding TTL
// and indexes ids per user under "user_sessions:{user_id}".
type RedisStore struct {
	rdb     *redis.Client
	timeout time.Duration
}

func NewRedisStore(rdb *redis.Client, timeout time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, timeout: timeout}
}

func sessionKey(id string) string { return "session:" + id }
func userKey(userID int) string { return "user_sessions:" + strconv.Itoa(userID) }

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.LastActivity = now
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(s.ID), b, r.timeout)
	pipe.SAdd(ctx, userKey(s.UserID), s.ID)
	pipe.Expire(ctx, userKey(s.UserID), r.timeout)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis create session: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	b, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	s.LastActivity = time.Now()
	if b, err = json.Marshal(&s); err == nil {
		pipe := r.rdb.Pipeline()
		pipe.Set(ctx, sessionKey(id), b, r.timeout)
		pipe.Expire(ctx, userKey(s.UserID), r.timeout)
		_, _ = pipe.Exec(ctx)
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	b, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == nil {
		var s Session
		if json.Unmarshal(b, &s) == nil {
			r.rdb.SRem(ctx, userKey(s.UserID), id)
		}
	}
	return r.rdb.Del(ctx, sessionKey(id)).Err()
}

func (r *RedisStore) DeleteUser(ctx context.Context, userID int) error {
	ids, err := r.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userKey(userID))
	return r.rdb.Del(ctx, keys...).Err()
}

// Sweep prunes user index entries whose session key has already expired.
// The session keys themselves expire through their TTL.
func (r *RedisStore) Sweep(ctx context.Context) (int, error) {
	pruned := 0
	iter := r.rdb.Scan(ctx, 0, "user_sessions:*", 100).Iterator()
	for iter.Next(ctx) {
		set := iter.Val()
		ids, err := r.rdb.SMembers(ctx, set).Result()
		if err != nil {
			return pruned, err
		}
		for _, id := range ids {
			n, err := r.rdb.Exists(ctx, sessionKey(id)).Result()
			if err != nil {
				return pruned, err
			}
			if n == 0 {
				r.rdb.SRem(ctx, set, id)
				pruned++
			}
		}
	}
	return pruned, iter.Err()
}
