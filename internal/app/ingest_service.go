package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/dhsingh07/ensureu-sub002/internal/domain"
	"github.com/dhsingh07/ensureu-sub002/internal/scorekey"
)

// ResultStore persists individual paper results.
type ResultStore interface {
	Save(ctx context.Context, result *domain.PaperResult) error
	Get(ctx context.Context, userID, paperID string) (*domain.PaperResult, error)
	// ListRecent returns the user's results ordered by creation time,
	// newest first, at most limit entries.
	ListRecent(ctx context.Context, userID string, limit int) ([]*domain.PaperResult, error)
}

// AggregateStore persists per-paper aggregates. Update is the serialization
// point for the read-modify-write cycle: fn receives the current aggregate
// (nil when the paper has none yet) and returns the state to persist.
// Implementations either hold a per-paper lock across the call or reject a
// stale write with domain.ErrConflict.
type AggregateStore interface {
	Get(ctx context.Context, paperID string) (*domain.PaperAggregate, error)
	GetByIDs(ctx context.Context, paperIDs []string) (map[string]*domain.PaperAggregate, error)
	Update(ctx context.Context, paperID string, fn func(agg *domain.PaperAggregate) (*domain.PaperAggregate, error)) (*domain.PaperAggregate, error)
}

// TimeSeriesStore persists per-attempt time replays.
type TimeSeriesStore interface {
	Save(ctx context.Context, record *domain.TimeSeriesRecord) error
	Get(ctx context.Context, userID, paperID string) (*domain.TimeSeriesRecord, error)
}

const (
	conflictAttempts = 3
	conflictBackoff  = 50 * time.Millisecond
)

// IngestService accepts completed paper submissions and folds them into the
// paper-wide aggregate.
type IngestService struct {
	results    ResultStore
	aggregates AggregateStore
	feed       *PaperFeed
	now        func() time.Time
	rnd        *rand.Rand
}

func NewIngestService(results ResultStore, aggregates AggregateStore, feed *PaperFeed) *IngestService {
	return &IngestService{
		results:    results,
		aggregates: aggregates,
		feed:       feed,
		now:        time.Now,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SubmitResult validates and persists a result, then adds the user to the
// paper's score bands and recomputes percentiles and toppers.
//
// Resubmission policy: the first frozen result wins. A prior unfrozen
// record is treated as a correction — it is replaced and the user's band
// entry is rebuilt from the new score.
func (s *IngestService) SubmitResult(ctx context.Context, result *domain.PaperResult) error {
	if err := validateResult(result); err != nil {
		return err
	}

	prior, err := s.results.Get(ctx, result.UserID, result.PaperID)
	switch {
	case err == nil:
		if prior.Freeze {
			log.Printf("[SubmitResult] duplicate submission paper [%s] user [%s]", result.PaperID, result.UserID)
			return domain.ErrDuplicateSubmission
		}
	case errors.Is(err, domain.ErrResultNotFound):
		prior = nil
	default:
		return fmt.Errorf("load prior result: %w", err)
	}

	if result.CreatedAt.IsZero() {
		result.CreatedAt = s.now()
	}

	// The record is saved unfrozen and only frozen once the aggregate fold
	// committed. A fold that still fails after the retries then leaves an
	// unfrozen record behind, and the caller's retry goes through the
	// correction path instead of bouncing off the duplicate check.
	result.Freeze = false
	if err := s.results.Save(ctx, result); err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	agg, err := s.updateAggregate(ctx, result, prior)
	if err != nil {
		return err
	}

	if result.Completed {
		result.Freeze = true
		if err := s.results.Save(ctx, result); err != nil {
			return fmt.Errorf("freeze result: %w", err)
		}
	}
	log.Printf("[SubmitResult] paper [%s] user [%s] score [%v] participants [%d]",
		result.PaperID, result.UserID, result.TotalScore, len(agg.Participants))

	if s.feed != nil {
		s.feed.Publish(result.PaperID, agg.Percentiles)
	}
	return nil
}

// updateAggregate folds the result into the paper aggregate under the
// store's serialization point, retrying bounded times on write conflicts.
func (s *IngestService) updateAggregate(ctx context.Context, result *domain.PaperResult, prior *domain.PaperResult) (*domain.PaperAggregate, error) {
	var agg *domain.PaperAggregate
	var err error
	for attempt := 1; ; attempt++ {
		agg, err = s.aggregates.Update(ctx, result.PaperID, func(current *domain.PaperAggregate) (*domain.PaperAggregate, error) {
			return foldResult(current, result, prior), nil
		})
		if err == nil {
			return agg, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt == conflictAttempts {
			return nil, fmt.Errorf("update aggregate for paper %s: %w", result.PaperID, err)
		}
		backoff := conflictBackoff*time.Duration(attempt) + time.Duration(s.rnd.Int63n(int64(conflictBackoff)))
		log.Printf("[SubmitResult] conflict on paper [%s], retry %d in %v", result.PaperID, attempt, backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// foldResult inserts the user into the aggregate's participant set and the
// band for their encoded score, then refreshes the derived fields. A prior
// unfrozen record's band entry is removed first so the user never appears
// in two bands.
func foldResult(agg *domain.PaperAggregate, result *domain.PaperResult, prior *domain.PaperResult) *domain.PaperAggregate {
	if agg == nil {
		agg = domain.NewPaperAggregate(result)
	}
	if prior != nil {
		removeFromBand(agg, scorekey.Encode(prior.TotalScore), result.UserID)
	}

	if !contains(agg.Participants, result.UserID) {
		agg.Participants = append(agg.Participants, result.UserID)
	}
	key := scorekey.Encode(result.TotalScore)
	if !contains(agg.Bands[key], result.UserID) {
		agg.Bands[key] = append(agg.Bands[key], result.UserID)
	}

	refreshAggregate(agg)
	return agg
}

func removeFromBand(agg *domain.PaperAggregate, key scorekey.Key, userID string) {
	users := agg.Bands[key]
	for i, id := range users {
		if id == userID {
			agg.Bands[key] = append(users[:i], users[i+1:]...)
			break
		}
	}
	if len(agg.Bands[key]) == 0 {
		delete(agg.Bands, key)
	}
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func validateResult(result *domain.PaperResult) error {
	if result == nil {
		return fmt.Errorf("%w: nil result", domain.ErrInvalidInput)
	}
	if result.UserID == "" {
		return fmt.Errorf("%w: missing user id", domain.ErrInvalidInput)
	}
	if result.PaperID == "" {
		return fmt.Errorf("%w: missing paper id", domain.ErrInvalidInput)
	}
	if result.Questions == nil {
		return fmt.Errorf("%w: missing question outcomes", domain.ErrInvalidInput)
	}
	return nil
}
