package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/dhsingh07/ensureu-sub002/internal/domain"
	"github.com/dhsingh07/ensureu-sub002/internal/scorekey"
)

func TestAggregateStoreUpdateCreatesAndVersions(t *testing.T) {
	store := NewAggregateStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "paper-1"); err != domain.ErrAggregateNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	agg, err := store.Update(ctx, "paper-1", func(current *domain.PaperAggregate) (*domain.PaperAggregate, error) {
		if current != nil {
			t.Fatalf("expected nil aggregate on first update")
		}
		return &domain.PaperAggregate{
			PaperID:      "paper-1",
			Participants: []string{"u1"},
			Bands:        map[scorekey.Key][]string{scorekey.Encode(40): {"u1"}},
		}, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if agg.Version != 1 {
		t.Fatalf("expected version 1, got %d", agg.Version)
	}

	reloaded, err := store.Get(ctx, "paper-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(reloaded.Participants) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(reloaded.Participants))
	}
}

func TestAggregateStoreSerializesConcurrentUpdates(t *testing.T) {
	store := NewAggregateStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, user := range []string{"u1", "u2", "u3", "u4"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := store.Update(ctx, "paper-1", func(current *domain.PaperAggregate) (*domain.PaperAggregate, error) {
				if current == nil {
					current = &domain.PaperAggregate{
						PaperID: "paper-1",
						Bands:   map[scorekey.Key][]string{},
					}
				}
				current.Participants = append(current.Participants, user)
				return current, nil
			})
			if err != nil {
				t.Errorf("update for %s: %v", user, err)
			}
		}(user)
	}
	wg.Wait()

	agg, err := store.Get(ctx, "paper-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(agg.Participants) != 4 {
		t.Fatalf("expected all 4 updates to survive, got %v", agg.Participants)
	}
}

func TestAggregateStoreGetReturnsCopy(t *testing.T) {
	store := NewAggregateStore()
	ctx := context.Background()

	_, err := store.Update(ctx, "paper-1", func(*domain.PaperAggregate) (*domain.PaperAggregate, error) {
		return &domain.PaperAggregate{
			PaperID:      "paper-1",
			Participants: []string{"u1"},
			Bands:        map[scorekey.Key][]string{scorekey.Encode(40): {"u1"}},
		}, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	agg, _ := store.Get(ctx, "paper-1")
	agg.Participants[0] = "mutated"
	agg.Bands[scorekey.Encode(40)][0] = "mutated"

	reloaded, _ := store.Get(ctx, "paper-1")
	if reloaded.Participants[0] != "u1" || reloaded.Bands[scorekey.Encode(40)][0] != "u1" {
		t.Fatalf("expected stored aggregate to be isolated from caller mutation")
	}
}
