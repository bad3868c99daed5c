package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dhsingh07/ensureu-sub002/internal/app"
	"github.com/dhsingh07/ensureu-sub002/internal/domain"
	"github.com/dhsingh07/ensureu-sub002/internal/infra/memory"
)

func paperResult(userID, paperID string, score float64) *domain.PaperResult {
	return &domain.PaperResult{
		UserID:           userID,
		PaperID:          paperID,
		PaperName:        "Mock Test 1",
		TotalScore:       score,
		MaxPossibleScore: 100,
		Completed:        true,
		Questions: []domain.QuestionOutcome{
			{QuestionID: "q1", Section: "Maths", Status: domain.OutcomeCorrect, Marks: score, TimeTaken: 30},
		},
	}
}

func newIngestFixture() (*app.IngestService, *memory.ResultStore, *memory.AggregateStore) {
	results := memory.NewResultStore()
	aggregates := memory.NewAggregateStore()
	service := app.NewIngestService(results, aggregates, app.NewPaperFeed())
	return service, results, aggregates
}

func TestSubmitResultValidation(t *testing.T) {
	service, _, _ := newIngestFixture()
	ctx := context.Background()

	cases := []*domain.PaperResult{
		nil,
		{PaperID: "p1", Questions: []domain.QuestionOutcome{}},
		{UserID: "u1", Questions: []domain.QuestionOutcome{}},
		{UserID: "u1", PaperID: "p1"},
	}
	for i, result := range cases {
		if err := service.SubmitResult(ctx, result); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
}

func TestSubmitResultBuildsAggregate(t *testing.T) {
	service, results, aggregates := newIngestFixture()
	ctx := context.Background()

	if err := service.SubmitResult(ctx, paperResult("u1", "p1", 80)); err != nil {
		t.Fatalf("submit u1: %v", err)
	}
	if err := service.SubmitResult(ctx, paperResult("u2", "p1", 60)); err != nil {
		t.Fatalf("submit u2: %v", err)
	}

	saved, err := results.Get(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if !saved.Freeze {
		t.Fatalf("expected completed submission to freeze")
	}
	if saved.CreatedAt.IsZero() {
		t.Fatalf("expected createdAt to be stamped")
	}

	agg, err := aggregates.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get aggregate: %v", err)
	}
	if len(agg.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %v", agg.Participants)
	}
	if len(agg.Toppers) != 1 || agg.Toppers[0] != "u1" {
		t.Fatalf("expected u1 topper, got %v", agg.Toppers)
	}
	if agg.Percentiles[0].Percentile != 100 || agg.Percentiles[1].Percentile != 50 {
		t.Fatalf("unexpected percentiles %+v", agg.Percentiles)
	}
}

func TestSubmitResultRejectsFrozenDuplicate(t *testing.T) {
	service, _, _ := newIngestFixture()
	ctx := context.Background()

	if err := service.SubmitResult(ctx, paperResult("u1", "p1", 80)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	err := service.SubmitResult(ctx, paperResult("u1", "p1", 95))
	if !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected duplicate submission, got %v", err)
	}
}

func TestSubmitResultCorrectsUnfrozenRecord(t *testing.T) {
	service, _, aggregates := newIngestFixture()
	ctx := context.Background()

	partial := paperResult("u1", "p1", 40)
	partial.Completed = false
	if err := service.SubmitResult(ctx, partial); err != nil {
		t.Fatalf("partial submit: %v", err)
	}

	if err := service.SubmitResult(ctx, paperResult("u1", "p1", 70)); err != nil {
		t.Fatalf("correcting submit: %v", err)
	}

	agg, err := aggregates.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get aggregate: %v", err)
	}
	if len(agg.Participants) != 1 {
		t.Fatalf("expected user counted once, got %v", agg.Participants)
	}
	if len(agg.Percentiles) != 1 || agg.Percentiles[0].Score != 70 {
		t.Fatalf("expected single band at corrected score, got %+v", agg.Percentiles)
	}
}

func TestConcurrentSubmissionsSamePaperNoLostUpdate(t *testing.T) {
	service, _, aggregates := newIngestFixture()
	ctx := context.Background()

	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	var wg sync.WaitGroup
	for i, user := range users {
		wg.Add(1)
		go func(user string, score float64) {
			defer wg.Done()
			if err := service.SubmitResult(ctx, paperResult(user, "p1", score)); err != nil {
				t.Errorf("submit %s: %v", user, err)
			}
		}(user, float64(10*(i+1)))
	}
	wg.Wait()

	agg, err := aggregates.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get aggregate: %v", err)
	}
	if len(agg.Participants) != len(users) {
		t.Fatalf("lost update: %d of %d participants present", len(agg.Participants), len(users))
	}
	total := 0
	for _, band := range agg.Percentiles {
		total += len(band.UserIDs)
	}
	if total != len(users) {
		t.Fatalf("band sizes sum to %d, want %d", total, len(users))
	}
}

func TestSubmitResultPublishesBands(t *testing.T) {
	results := memory.NewResultStore()
	aggregates := memory.NewAggregateStore()
	feed := app.NewPaperFeed()
	service := app.NewIngestService(results, aggregates, feed)
	ctx := context.Background()

	ch, cancel := feed.Subscribe("p1", nil)
	defer cancel()
	<-ch // initial snapshot

	if err := service.SubmitResult(ctx, paperResult("u1", "p1", 80)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case bands := <-ch:
		if len(bands) != 1 || bands[0].Score != 80 {
			t.Fatalf("unexpected snapshot %+v", bands)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a band snapshot after ingestion")
	}
}

// conflictingAggregateStore rejects every Update while failing is set,
// mimicking a writer that always loses the optimistic race.
type conflictingAggregateStore struct {
	app.AggregateStore
	failing bool
}

func (s *conflictingAggregateStore) Update(ctx context.Context, paperID string, fn func(agg *domain.PaperAggregate) (*domain.PaperAggregate, error)) (*domain.PaperAggregate, error) {
	if s.failing {
		return nil, domain.ErrConflict
	}
	return s.AggregateStore.Update(ctx, paperID, fn)
}

func TestSubmitResultRetryAfterExhaustedConflicts(t *testing.T) {
	results := memory.NewResultStore()
	aggregates := &conflictingAggregateStore{AggregateStore: memory.NewAggregateStore(), failing: true}
	service := app.NewIngestService(results, aggregates, app.NewPaperFeed())
	ctx := context.Background()

	err := service.SubmitResult(ctx, paperResult("u1", "p1", 70))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict after exhausted retries, got %v", err)
	}

	// The stored record must stay unfrozen while the user is outside the
	// aggregate, otherwise a later retry bounces off the duplicate check.
	saved, err := results.Get(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if saved.Freeze {
		t.Fatalf("result frozen although the aggregate fold never committed")
	}

	aggregates.failing = false
	if err := service.SubmitResult(ctx, paperResult("u1", "p1", 70)); err != nil {
		t.Fatalf("retry after conflict: %v", err)
	}

	saved, err = results.Get(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("get result after retry: %v", err)
	}
	if !saved.Freeze {
		t.Fatalf("expected the retried submission to freeze")
	}
	agg, err := aggregates.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get aggregate: %v", err)
	}
	if len(agg.Participants) != 1 || agg.Participants[0] != "u1" {
		t.Fatalf("expected u1 in the aggregate, got %v", agg.Participants)
	}
	if len(agg.Percentiles) != 1 || agg.Percentiles[0].Score != 70 {
		t.Fatalf("expected single band at 70, got %+v", agg.Percentiles)
	}
}
