package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dhsingh07/ensureu-sub002/internal/domain"
)

// DefaultGrowthLimit caps how many historical attempts feed the growth
// chart when the caller does not ask for a specific window.
const DefaultGrowthLimit = 20

// AnalyticsService answers read-side analytics queries: the composite
// per-attempt response, the growth trend, and time-series save/fetch.
type AnalyticsService struct {
	results     ResultStore
	aggregates  AggregateStore
	timeseries  TimeSeriesStore
	feed        *PaperFeed
	growthLimit int
}

func NewAnalyticsService(results ResultStore, aggregates AggregateStore, timeseries TimeSeriesStore, feed *PaperFeed, growthLimit int) *AnalyticsService {
	if growthLimit <= 0 {
		growthLimit = DefaultGrowthLimit
	}
	return &AnalyticsService{
		results:     results,
		aggregates:  aggregates,
		timeseries:  timeseries,
		feed:        feed,
		growthLimit: growthLimit,
	}
}

// GetAnalytics composes the full analytics response for one user's attempt
// at one paper: score summary, topper comparison histograms, percentile
// bands, the time replay, and the growth trend.
func (s *AnalyticsService) GetAnalytics(ctx context.Context, userID, paperID string) (*domain.Analytics, error) {
	if userID == "" || paperID == "" {
		return nil, fmt.Errorf("%w: user id and paper id are required", domain.ErrInvalidInput)
	}
	log.Printf("[GetAnalytics] user [%s] paper [%s]", userID, paperID)

	result, err := s.results.Get(ctx, userID, paperID)
	if err != nil {
		return nil, err
	}
	agg, err := s.aggregates.Get(ctx, paperID)
	if err != nil {
		return nil, err
	}

	reference, err := s.referenceResult(ctx, result, agg)
	if err != nil {
		return nil, err
	}
	questionHist, sectionHist, err := BuildComparison(result.Questions, reference.Questions)
	if err != nil {
		return nil, err
	}

	percentile, rank, ok := agg.PercentileOf(userID)
	if !ok {
		// Ingestion always folds the writer before returning, so a missing
		// membership means the aggregate and the result store disagree.
		return nil, fmt.Errorf("user %s missing from aggregate of paper %s: %w", userID, paperID, domain.ErrAggregateNotFound)
	}

	analytics := &domain.Analytics{
		ScoreSummary: domain.ScoreSummary{
			UserID:           userID,
			Score:            result.TotalScore,
			MaxPossibleScore: result.MaxPossibleScore,
			Percentile:       percentile,
			Rank:             rank,
		},
		Toppers:           agg.Toppers,
		QuestionHistogram: questionHist,
		SectionHistogram:  sectionHist,
		PercentileBands:   agg.Percentiles,
	}
	if top, ok := agg.TopScore(); ok {
		analytics.TopScore = top
	}

	record, err := s.timeseries.Get(ctx, userID, paperID)
	switch {
	case err == nil:
		analytics.TimeSeries = BuildTimeSeries(record)
	case errors.Is(err, domain.ErrTimeSeriesNotFound):
		log.Printf("[GetAnalytics] no time series for user [%s] paper [%s]", userID, paperID)
	default:
		return nil, err
	}

	growth, err := s.BuildGrowth(ctx, userID, s.growthLimit)
	if err != nil {
		return nil, err
	}
	analytics.GrowthSeries = growth
	return analytics, nil
}

// referenceResult picks the outcome list the user is compared against:
// the first topper who is not the user, or the user themself when they top
// the paper alone (zero-delta comparison).
func (s *AnalyticsService) referenceResult(ctx context.Context, result *domain.PaperResult, agg *domain.PaperAggregate) (*domain.PaperResult, error) {
	referenceID := result.UserID
	for _, topper := range agg.Toppers {
		if topper != result.UserID {
			referenceID = topper
			break
		}
	}
	if referenceID == result.UserID {
		return result, nil
	}
	reference, err := s.results.Get(ctx, referenceID, result.PaperID)
	if err != nil {
		return nil, fmt.Errorf("load topper result %s: %w", referenceID, err)
	}
	return reference, nil
}

// BuildGrowth scans the user's last limit attempts and reports, for each,
// their score and percentile against that paper's top score. The series is
// chronological (oldest first) and empty, not an error, for a user with no
// attempts yet.
func (s *AnalyticsService) BuildGrowth(ctx context.Context, userID string, limit int) (domain.GrowthSeries, error) {
	series := domain.GrowthSeries{UserID: userID}
	if limit <= 0 {
		limit = s.growthLimit
	}

	results, err := s.results.ListRecent(ctx, userID, limit)
	if err != nil {
		return series, err
	}
	if len(results) == 0 {
		return series, nil
	}

	paperIDs := make([]string, 0, len(results))
	for _, result := range results {
		paperIDs = append(paperIDs, result.PaperID)
	}
	aggs, err := s.aggregates.GetByIDs(ctx, paperIDs)
	if err != nil {
		return series, err
	}

	// results arrive newest first; walk backwards for a chronological chart
	for i := len(results) - 1; i >= 0; i-- {
		result := results[i]
		agg, ok := aggs[result.PaperID]
		if !ok {
			log.Printf("[BuildGrowth] no aggregate for paper [%s], skipping point", result.PaperID)
			continue
		}
		point := domain.GrowthPoint{
			PaperID:   result.PaperID,
			PaperName: result.PaperName,
			UserScore: result.TotalScore,
		}
		if top, ok := agg.TopScore(); ok {
			point.TopperScore = top
		}
		if percentile, _, ok := agg.PercentileOf(userID); ok {
			point.UserPercentile = percentile
		}
		series.Points = append(series.Points, point)
	}
	return series, nil
}

// SaveTimeSeries stores one attempt's time replay.
func (s *AnalyticsService) SaveTimeSeries(ctx context.Context, record *domain.TimeSeriesRecord) error {
	if record == nil || record.UserID == "" || record.PaperID == "" {
		return fmt.Errorf("%w: user id and paper id are required", domain.ErrInvalidInput)
	}
	if record.Events == nil {
		return fmt.Errorf("%w: missing events", domain.ErrInvalidInput)
	}
	log.Printf("[SaveTimeSeries] user [%s] paper [%s] events [%d]", record.UserID, record.PaperID, len(record.Events))
	return s.timeseries.Save(ctx, record)
}

// FetchTimeSeries returns the chart-ready replay for one attempt, or
// domain.ErrTimeSeriesNotFound — never an empty series — when no record
// exists.
func (s *AnalyticsService) FetchTimeSeries(ctx context.Context, userID, paperID string) (*domain.TimeSeries, error) {
	record, err := s.timeseries.Get(ctx, userID, paperID)
	if err != nil {
		return nil, err
	}
	return BuildTimeSeries(record), nil
}

// SubscribeBands streams percentile-band snapshots for a paper as results
// are ingested. The paper must already have an aggregate.
func (s *AnalyticsService) SubscribeBands(ctx context.Context, paperID string) (<-chan []domain.PercentileBand, func(), error) {
	agg, err := s.aggregates.Get(ctx, paperID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Subscribe(paperID, agg.Percentiles)
	return ch, cancel, nil
}
