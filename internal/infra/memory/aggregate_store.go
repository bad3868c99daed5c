package memory

import (
	"context"
	"sync"

	"github.com/dhsingh07/ensureu-sub002/internal/domain"
	"github.com/dhsingh07/ensureu-sub002/internal/scorekey"
)

// AggregateStore is an in-memory implementation of app.AggregateStore.
// Update holds a per-paper mutex across the load-mutate-save cycle, so two
// concurrent ingestions for the same paper serialize instead of losing one
// append.
type AggregateStore struct {
	mu         sync.RWMutex
	aggregates map[string]*domain.PaperAggregate
	locks      map[string]*sync.Mutex
}

func NewAggregateStore() *AggregateStore {
	return &AggregateStore{
		aggregates: make(map[string]*domain.PaperAggregate),
		locks:      make(map[string]*sync.Mutex),
	}
}

func (s *AggregateStore) Get(_ context.Context, paperID string) (*domain.PaperAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agg, ok := s.aggregates[paperID]
	if !ok {
		return nil, domain.ErrAggregateNotFound
	}
	return cloneAggregate(agg), nil
}

func (s *AggregateStore) GetByIDs(_ context.Context, paperIDs []string) (map[string]*domain.PaperAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := make(map[string]*domain.PaperAggregate, len(paperIDs))
	for _, paperID := range paperIDs {
		if agg, ok := s.aggregates[paperID]; ok {
			found[paperID] = cloneAggregate(agg)
		}
	}
	return found, nil
}

func (s *AggregateStore) Update(_ context.Context, paperID string, fn func(agg *domain.PaperAggregate) (*domain.PaperAggregate, error)) (*domain.PaperAggregate, error) {
	lock := s.paperLock(paperID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current := s.aggregates[paperID]
	s.mu.RUnlock()

	var snapshot *domain.PaperAggregate
	if current != nil {
		snapshot = cloneAggregate(current)
	}
	updated, err := fn(snapshot)
	if err != nil {
		return nil, err
	}
	updated.Version++

	s.mu.Lock()
	s.aggregates[paperID] = updated
	s.mu.Unlock()
	return cloneAggregate(updated), nil
}

func (s *AggregateStore) paperLock(paperID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[paperID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[paperID] = lock
	}
	return lock
}

func cloneAggregate(agg *domain.PaperAggregate) *domain.PaperAggregate {
	clone := *agg
	clone.Participants = append([]string(nil), agg.Participants...)
	clone.Toppers = append([]string(nil), agg.Toppers...)
	clone.Bands = make(map[scorekey.Key][]string, len(agg.Bands))
	for key, users := range agg.Bands {
		clone.Bands[key] = append([]string(nil), users...)
	}
	clone.Percentiles = make([]domain.PercentileBand, len(agg.Percentiles))
	for i, band := range agg.Percentiles {
		band.UserIDs = append([]string(nil), band.UserIDs...)
		clone.Percentiles[i] = band
	}
	return &clone
}
