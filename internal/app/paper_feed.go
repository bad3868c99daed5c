package app

import (
	"sync"

	"github.com/dhsingh07/ensureu-sub002/internal/domain"
)

// PaperFeed fans percentile-band snapshots out to subscribers of a paper.
// Ingestion publishes after every successful aggregate update; transports
// subscribe on behalf of connected clients.
type PaperFeed struct {
	mu          sync.Mutex
	subscribers map[string]map[chan []domain.PercentileBand]struct{}
}

func NewPaperFeed() *PaperFeed {
	return &PaperFeed{
		subscribers: make(map[string]map[chan []domain.PercentileBand]struct{}),
	}
}

// Subscribe returns a channel receiving band snapshots for a paper,
// starting with the supplied initial snapshot. The caller must invoke the
// returned cancel function to avoid leaks.
func (f *PaperFeed) Subscribe(paperID string, initial []domain.PercentileBand) (<-chan []domain.PercentileBand, func()) {
	ch := make(chan []domain.PercentileBand, 8)

	f.mu.Lock()
	subs, ok := f.subscribers[paperID]
	if !ok {
		subs = make(map[chan []domain.PercentileBand]struct{})
		f.subscribers[paperID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	ch <- initial

	cancel := func() {
		f.mu.Lock()
		if subs, ok := f.subscribers[paperID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(f.subscribers, paperID)
			}
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a snapshot to every subscriber of the paper. A slow
// subscriber loses its stale snapshot rather than blocking ingestion.
func (f *PaperFeed) Publish(paperID string, bands []domain.PercentileBand) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[paperID] {
		select {
		case ch <- bands:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- bands
		}
	}
}
