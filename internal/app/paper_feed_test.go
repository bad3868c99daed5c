package app

import (
	"testing"

	"github.com/dhsingh07/ensureu-sub002/internal/domain"
)

func TestPaperFeedDeliversInitialSnapshot(t *testing.T) {
	feed := NewPaperFeed()
	initial := []domain.PercentileBand{{Score: 80, Percentile: 100}}

	ch, cancel := feed.Subscribe("p1", initial)
	defer cancel()

	got := <-ch
	if len(got) != 1 || got[0].Score != 80 {
		t.Fatalf("unexpected initial snapshot %+v", got)
	}
}

func TestPaperFeedPublishReachesOnlyPaperSubscribers(t *testing.T) {
	feed := NewPaperFeed()

	ch1, cancel1 := feed.Subscribe("p1", nil)
	defer cancel1()
	ch2, cancel2 := feed.Subscribe("p2", nil)
	defer cancel2()
	<-ch1
	<-ch2

	feed.Publish("p1", []domain.PercentileBand{{Score: 50, Percentile: 100}})

	got := <-ch1
	if len(got) != 1 || got[0].Score != 50 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	select {
	case snapshot := <-ch2:
		t.Fatalf("p2 subscriber received %+v", snapshot)
	default:
	}
}

func TestPaperFeedDropsStaleSnapshotForSlowSubscriber(t *testing.T) {
	feed := NewPaperFeed()
	ch, cancel := feed.Subscribe("p1", nil)
	defer cancel()
	<-ch

	// fill the buffer without draining, then one more publish
	for i := 0; i < 9; i++ {
		feed.Publish("p1", []domain.PercentileBand{{Score: float64(i)}})
	}
	feed.Publish("p1", []domain.PercentileBand{{Score: 99}})

	var last []domain.PercentileBand
	for {
		select {
		case snapshot := <-ch:
			last = snapshot
			continue
		default:
		}
		break
	}
	if len(last) != 1 || last[0].Score != 99 {
		t.Fatalf("expected latest snapshot to survive, got %+v", last)
	}
}

func TestPaperFeedCancelRemovesSubscriber(t *testing.T) {
	feed := NewPaperFeed()
	ch, cancel := feed.Subscribe("p1", nil)
	<-ch
	cancel()
	cancel() // second call is a no-op

	if _, open := <-ch; open {
		t.Fatal("expected channel closed after cancel")
	}
	feed.Publish("p1", []domain.PercentileBand{{Score: 10}})
}
