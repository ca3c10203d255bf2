// Package kv holds short-lived key-value state, such as attendance check-in sessions.
package kv

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/attendance"
)

const sessionKeyPrefix = "eskwela:checkin:"

func sessionKey(code string) string {
	return sessionKeyPrefix + code
}

// OpenRedis connects to the redis server of conf and checks it is reachable.
func OpenRedis(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Address,
		Password: conf.Password,
		DB:       conf.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

type redisCodeStore struct {
	client *redis.Client
}

var _ attendance.CodeStore = (*redisCodeStore)(nil) // interface compliance check

func NewRedisCodeStore(client *redis.Client) *redisCodeStore {
	return &redisCodeStore{client: client}
}

func (store *redisCodeStore) SaveSession(ctx context.Context, s attendance.Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "json.Marshal()")
	}
	return store.client.Set(ctx, sessionKey(s.Code), data, ttl).Err()
}

func (store *redisCodeStore) GetSession(ctx context.Context, code string) (attendance.Session, error) {
	data, err := store.client.Get(ctx, sessionKey(code)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return attendance.Session{}, attendance.ErrSessionNotFound
		}
		return attendance.Session{}, err
	}

	var s attendance.Session
	if err = json.Unmarshal(data, &s); err != nil {
		return attendance.Session{}, errors.Wrap(err, "json.Unmarshal()")
	}
	return s, nil
}
