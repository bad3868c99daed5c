package memory

import (
	"context"
	"sync"

	"github.com/dhsingh07/ensureu-sub002/internal/domain"
)

// TimeSeriesStore is an in-memory implementation of app.TimeSeriesStore.
type TimeSeriesStore struct {
	mu     sync.RWMutex
	series map[seriesKey]*domain.TimeSeriesRecord
}

type seriesKey struct {
	userID  string
	paperID string
}

func NewTimeSeriesStore() *TimeSeriesStore {
	return &TimeSeriesStore{series: make(map[seriesKey]*domain.TimeSeriesRecord)}
}

func (s *TimeSeriesStore) Save(_ context.Context, record *domain.TimeSeriesRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	clone.Events = append([]domain.QuestionTimeEvent(nil), record.Events...)
	s.series[seriesKey{record.UserID, record.PaperID}] = &clone
	return nil
}

func (s *TimeSeriesStore) Get(_ context.Context, userID, paperID string) (*domain.TimeSeriesRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.series[seriesKey{userID, paperID}]
	if !ok {
		return nil, domain.ErrTimeSeriesNotFound
	}
	clone := *record
	clone.Events = append([]domain.QuestionTimeEvent(nil), record.Events...)
	return &clone, nil
}
