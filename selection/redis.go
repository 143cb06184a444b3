package selection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "slippidex:session"

// RedisStore keeps sessions in redis, so several bot processes can share
// them. Expiry is left to redis.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the redis server at url.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func sessionKey(id string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, id)
}

// Save stores the session with the given time to live.
func (s *RedisStore) Save(ctx context.Context, session *Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	return errors.Wrap(
		s.client.Set(ctx, sessionKey(session.ID), data, ttl).Err(),
		"save session",
	)
}

// Load fetches the session.
func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "load session")
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	return &session, nil
}

// Delete removes the session.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return errors.Wrap(s.client.Del(ctx, sessionKey(id)).Err(), "delete session")
}
