package sessions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository implements Repository using Redis as the backing store.
// Sessions are stored as JSON under "<prefix><id>" with TTL = expiresAt - now,
// and each user's session ids are tracked in a set under "<prefix>user:<uid>"
// so DeleteAllForUser stays a point operation.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-based session repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(id string) string { return r.prefix + id }

func (r *RedisRepository) userKey(userID string) string { return r.prefix + "user:" + userID }

func (r *RedisRepository) write(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		// keep a minimal TTL so Redis never stores a row forever; reads
		// still treat it as missing via the embedded expiry
		ttl = time.Second
	}
	if err := r.client.Set(ctx, r.key(s.ID), b, ttl).Err(); err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, r.userKey(s.UserID), s.ID)
	// the index outlives individual sessions; cap it rather than track the max TTL
	pipe.Expire(ctx, r.userKey(s.UserID), 30*24*time.Hour)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	return r.write(ctx, s)
}

func (r *RedisRepository) Save(ctx context.Context, s *Session) error {
	return r.write(ctx, s)
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*Session, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	// expired from the stored value's perspective: treat as missing
	if s.Expired(time.Now().UTC()) {
		_ = r.remove(ctx, &s)
		return nil, nil
	}
	return &s, nil
}

func (r *RedisRepository) remove(ctx context.Context, s *Session) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.key(s.ID))
	pipe.SRem(ctx, r.userKey(s.UserID), s.ID)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		// corrupted value: drop the key itself
		return r.client.Del(ctx, r.key(id)).Err()
	}
	return r.remove(ctx, &s)
}

func (r *RedisRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	var n int64
	for _, id := range ids {
		deleted, err := r.client.Del(ctx, r.key(id)).Result()
		if err != nil {
			return n, err
		}
		n += deleted
	}
	if err := r.client.Del(ctx, r.userKey(userID)).Err(); err != nil {
		return n, err
	}
	return n, nil
}

// SweepExpired scans stored sessions and removes those whose embedded expiry
// has passed. Redis TTLs already collect most garbage; the sweep catches
// rows whose expiry was shortened after the key TTL was set.
func (r *RedisRepository) SweepExpired(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		n      int64
		now    = time.Now().UTC()
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return n, err
		}
		for _, k := range keys {
			b, err := r.client.Get(ctx, k).Bytes()
			if err != nil {
				continue // user index set, or key already gone
			}
			var s Session
			if err := json.Unmarshal(b, &s); err != nil {
				continue
			}
			if s.Expired(now) {
				if err := r.remove(ctx, &s); err == nil {
					n++
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return n, nil
		}
	}
}
