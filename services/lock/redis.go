// Package locksvc provides a Redis backed lock for jobs that must not overlap.
package locksvc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/reminder"
)

const keyPrefix = "lasalumni:lock:"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	logger core.Logger
}

var _ reminder.Locker = (*RedisLocker)(nil)

func NewRedisLocker(client *redis.Client, logger core.Logger) *RedisLocker {
	vala.BeginValidation().Validate(
		vala.IsNotNil(client, "client"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &RedisLocker{client: client, logger: logger}
}

// Acquire takes key for at most ttl. It returns reminder.ErrLocked if another holder
// has it. The returned release func is safe to call after the ttl expired.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	fullKey := keyPrefix + key

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "acquiring lock %s", key)
	}
	if !ok {
		return nil, reminder.ErrLocked
	}
	return func() {
		// the caller's ctx may be done by now
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, l.client, []string{fullKey}, token).Err(); err != nil {
			l.logger.Error(fmt.Sprintf("releasing lock %s", key), err)
		}
	}, nil
}

// Open connects to Redis and checks the connection.
func Open(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", conf.Addr)
	}
	return client, nil
}
