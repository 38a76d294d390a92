// Package runlock keeps pipeline runs from overlapping, either inside one
// process or across replicas sharing a Redis.
package runlock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"
)

// Locker hands out at most one run slot. TryLock never blocks: ok is false
// when another holder has the slot. release is nil unless ok.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

type Local struct {
	sem *semaphore.Weighted
}

func NewLocal() *Local {
	return &Local{sem: semaphore.NewWeighted(1)}
}

func (l *Local) TryLock(context.Context) (func(), bool, error) {
	if !l.sem.TryAcquire(1) {
		return nil, false, nil
	}
	return func() { l.sem.Release(1) }, true, nil
}

// releaseScript deletes the key only while it still holds our token, so a
// holder whose TTL lapsed cannot free someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
}

func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{Client: client, Key: key, TTL: ttl}
}

func (r *Redis) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, r.Key, token, r.TTL).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.Client, []string{r.Key}, token).Err()
	}
	return release, true, nil
}
