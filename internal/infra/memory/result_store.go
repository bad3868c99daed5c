package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dhsingh07/ensureu-sub002/internal/domain"
)

// ResultStore is an in-memory implementation of app.ResultStore, keyed by
// (userId, paperId).
type ResultStore struct {
	mu      sync.RWMutex
	results map[resultKey]*domain.PaperResult
}

type resultKey struct {
	userID  string
	paperID string
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[resultKey]*domain.PaperResult)}
}

func (s *ResultStore) Save(_ context.Context, result *domain.PaperResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *result
	s.results[resultKey{result.UserID, result.PaperID}] = &clone
	return nil
}

func (s *ResultStore) Get(_ context.Context, userID, paperID string) (*domain.PaperResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[resultKey{userID, paperID}]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	clone := *result
	return &clone, nil
}

func (s *ResultStore) ListRecent(_ context.Context, userID string, limit int) ([]*domain.PaperResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*domain.PaperResult
	for key, result := range s.results {
		if key.userID == userID {
			clone := *result
			results = append(results, &clone)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
