package backfill

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/evermore-events/backend/pkg/utils"
)

// releaseScript deletes the key only if it still holds our token, so an expired lock
// re-acquired by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	client redis.Cmdable
}

// NewRedisLocker creates a locker on client.
func NewRedisLocker(client redis.Cmdable) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes key for ttl. ok is false when someone else holds it.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token, err := utils.RandomToken()
	if err != nil {
		return nil, false, err
	}
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// TTL reports the remaining lifetime of key and whether it is held.
func (l *RedisLocker) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	// go-redis passes the raw replies through: -2 missing, -1 no expiry.
	switch {
	case d == -1:
		return 0, true, nil
	case d < 0:
		return 0, false, nil
	}
	return d, true, nil
}
