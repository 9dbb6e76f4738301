package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"participants-bot/internal/apperr"
)

const keyPrefix = "session:"

// RedisStore keeps JSON session snapshots in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the expiry of stored sessions.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DialRedis parses url and pings the server.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Load(ctx context.Context, userID, chatID int64) (Session, error) {
	raw, err := s.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(userID, chatID), nil
	}
	if err != nil {
		return Session{}, apperr.Storage("load session", err)
	}
	var out Session
	if err := json.Unmarshal(raw, &out); err != nil {
		// an unreadable snapshot is dropped rather than blocking the user
		return New(userID, chatID), nil
	}
	if chatID != 0 {
		out.ChatID = chatID
	}
	return out, nil
}

func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	sess.UpdatedAt = s.now()
	raw, err := json.Marshal(sess)
	if err != nil {
		return apperr.Technical("encode session", err)
	}
	if err := s.client.Set(ctx, key(sess.UserID), raw, s.ttl).Err(); err != nil {
		return apperr.Storage("save session", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, key(userID)).Err(); err != nil {
		return apperr.Storage("delete session", err)
	}
	return nil
}
