package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisStore keeps each session as a JSON value under {prefix}session:{id} and its lock
// under {prefix}lock:{id}.
type RedisStore struct {
	client   redis.Cmdable
	prefix   string
	newToken func() string
	logger   logger.Logger
}

func NewRedisStore(client redis.Cmdable, prefix string, log logger.Logger) *RedisStore {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &RedisStore{
		client:   client,
		prefix:   prefix,
		newToken: uuid.NewString,
		logger:   log.WithFields(map[string]interface{}{"component": "session-redis"}),
	}
}

func (r *RedisStore) sessionKey(id string) string { return r.prefix + "session:" + id }

func (r *RedisStore) lockKey(id string) string { return r.prefix + "lock:" + id }

func (r *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NewSessionNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewSessionStoreError("get", err)
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, apperrors.NewSessionStoreError("decode", err)
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *models.Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return apperrors.NewSessionStoreError("encode", err)
	}
	if err := r.client.Set(ctx, r.sessionKey(s.ID), data, ttl).Err(); err != nil {
		return apperrors.NewSessionStoreError("put", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return apperrors.NewSessionStoreError("delete", err)
	}
	if n == 0 {
		return apperrors.NewSessionNotFoundError(id)
	}
	return nil
}

// Lock sets the lock key with SET NX and a random token. The returned unlock releases it
// only while the token still matches, so a lock that expired and was re-taken survives.
func (r *RedisStore) Lock(ctx context.Context, id string, ttl time.Duration) (func(), error) {
	token := r.newToken()
	key := r.lockKey(id)

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, apperrors.NewSessionStoreError("lock", err)
	}
	if !ok {
		return nil, apperrors.NewSessionBusyError(id)
	}

	return func() {
		// The caller's context may already be cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := unlockScript.Run(unlockCtx, r.client, []string{key}, token).Err(); err != nil {
			r.logger.Warn("Failed to release session lock", map[string]interface{}{
				"sessionId": id,
				"error":     err.Error(),
			})
		}
	}, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
