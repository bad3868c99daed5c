package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/dhsingh07/ensureu-sub002/internal/app"
	"github.com/dhsingh07/ensureu-sub002/internal/domain"
)

// AggregateStore decorates a backing app.AggregateStore with two Redis
// concerns: a read-through JSON cache of aggregates (percentile reads far
// outnumber writes) and the per-paper advisory lock held across Update, so
// multiple service instances serialize ingestion for the same paper.
type AggregateStore struct {
	client *redis.Client
	inner  app.AggregateStore
	lock   *PaperLock
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewAggregateStore(client *redis.Client, inner app.AggregateStore, ttl time.Duration) *AggregateStore {
	return &AggregateStore{
		client: client,
		inner:  inner,
		lock:   NewPaperLock(client, 10*time.Second),
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *AggregateStore) Get(ctx context.Context, paperID string) (*domain.PaperAggregate, error) {
	if agg, ok := s.cached(ctx, paperID); ok {
		return agg, nil
	}

	result, err, _ := s.sf.Do(paperID, func() (interface{}, error) {
		// re-check in case another goroutine filled the cache
		if agg, ok := s.cached(ctx, paperID); ok {
			return agg, nil
		}
		agg, err := s.inner.Get(ctx, paperID)
		if err != nil {
			return nil, err
		}
		s.fill(ctx, agg)
		return agg, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.PaperAggregate), nil
}

func (s *AggregateStore) GetByIDs(ctx context.Context, paperIDs []string) (map[string]*domain.PaperAggregate, error) {
	found := make(map[string]*domain.PaperAggregate, len(paperIDs))
	var missing []string
	for _, paperID := range paperIDs {
		if agg, ok := s.cached(ctx, paperID); ok {
			found[paperID] = agg
		} else {
			missing = append(missing, paperID)
		}
	}
	if len(missing) > 0 {
		loaded, err := s.inner.GetByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for paperID, agg := range loaded {
			found[paperID] = agg
			s.fill(ctx, agg)
		}
	}
	return found, nil
}

// Update runs fn under the paper's distributed lock and refreshes the cache
// with the committed state before releasing it.
func (s *AggregateStore) Update(ctx context.Context, paperID string, fn func(agg *domain.PaperAggregate) (*domain.PaperAggregate, error)) (*domain.PaperAggregate, error) {
	release, err := s.lock.Acquire(ctx, paperID)
	if err != nil {
		return nil, err
	}
	defer release()

	agg, err := s.inner.Update(ctx, paperID, fn)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, agg)
	return agg, nil
}

func (s *AggregateStore) cached(ctx context.Context, paperID string) (*domain.PaperAggregate, bool) {
	raw, err := s.client.Get(ctx, s.key(paperID)).Bytes()
	if err != nil {
		return nil, false
	}
	var agg domain.PaperAggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil, false
	}
	return &agg, true
}

// fillScript writes a snapshot only when it is at least as new as the
// cached one. A reader that loaded the backing store just before a
// concurrent Update committed must not clobber the committed state with
// its older snapshot.
var fillScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur then
	local ok, decoded = pcall(cjson.decode, cur)
	if ok and decoded["version"] and tonumber(decoded["version"]) >= tonumber(ARGV[2]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

// fill is best-effort: a cache write failure only costs the next reader a
// trip to the backing store.
func (s *AggregateStore) fill(ctx context.Context, agg *domain.PaperAggregate) {
	raw, err := json.Marshal(agg)
	if err != nil {
		return
	}
	_ = fillScript.Run(ctx, s.client, []string{s.key(agg.PaperID)},
		raw, agg.Version, s.ttlWithJitter().Milliseconds()).Err()
}

func (s *AggregateStore) key(paperID string) string {
	return "analytics:paper:" + paperID + ":aggregate"
}

func (s *AggregateStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
