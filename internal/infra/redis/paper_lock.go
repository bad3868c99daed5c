package redis

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only if it still holds our token, so
// a writer whose lock expired cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PaperLock is a Redis advisory lock keyed by paper id. Held across the
// aggregate load-mutate-save cycle it serializes concurrent ingestions for
// the same paper across service instances.
type PaperLock struct {
	client  *redis.Client
	ttl     time.Duration
	maxWait time.Duration
	rnd     *rand.Rand
}

func NewPaperLock(client *redis.Client, ttl time.Duration) *PaperLock {
	return &PaperLock{
		client:  client,
		ttl:     ttl,
		maxWait: 5 * time.Second,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Acquire blocks with jittered backoff until the paper's lock is held, the
// wait budget runs out, or ctx is done. The returned release function is
// best-effort: the TTL reclaims the lock if the holder dies.
func (l *PaperLock) Acquire(ctx context.Context, paperID string) (func(), error) {
	key := l.key(paperID)
	token := strconv.FormatInt(l.rnd.Int63(), 36)
	deadline := time.Now().Add(l.maxWait)

	backoff := 10 * time.Millisecond
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire paper lock %s: %w", paperID, err)
		}
		if ok {
			release := func() {
				_, _ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Result()
			}
			return release, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("paper lock %s: wait budget exceeded", paperID)
		}

		sleep := backoff + time.Duration(l.rnd.Int63n(int64(backoff)))
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if backoff < 160*time.Millisecond {
			backoff *= 2
		}
	}
}

func (l *PaperLock) key(paperID string) string {
	return "analytics:paper:" + paperID + ":lock"
}
