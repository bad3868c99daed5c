package app

import (
	"sort"

	"github.com/dhsingh07/ensureu-sub002/internal/domain"
	"github.com/dhsingh07/ensureu-sub002/internal/scorekey"
)

// ComputeBands derives percentile bands from an aggregate's score index,
// highest score first. Rank starts at 1 and advances by band size, so tied
// participants share one band, one rank, and one percentile.
//
// Percentile is 100 × (N − rank + 1) / N with integer truncation toward
// zero. For small N this shows up in displayed values (N=3 gives 100, 66,
// 33) and is intentional: it matches what participants have always seen.
func ComputeBands(agg *domain.PaperAggregate) []domain.PercentileBand {
	total := len(agg.Participants)
	if total == 0 {
		return nil
	}

	keys := make([]scorekey.Key, 0, len(agg.Bands))
	for key := range agg.Bands {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })

	bands := make([]domain.PercentileBand, 0, len(keys))
	rank := 1
	for _, key := range keys {
		users := agg.Bands[key]
		bands = append(bands, domain.PercentileBand{
			Score:      key.Score(),
			Percentile: float64(100 * (total - rank + 1) / total),
			Rank:       rank,
			UserIDs:    users,
		})
		rank += len(users)
	}
	return bands
}

// refreshAggregate recomputes the derived fields of an aggregate after its
// bands changed. The topper list is the full highest band; ties make every
// member a topper.
func refreshAggregate(agg *domain.PaperAggregate) {
	agg.Percentiles = ComputeBands(agg)
	if len(agg.Percentiles) == 0 {
		agg.Toppers = nil
		return
	}
	agg.Toppers = agg.Percentiles[0].UserIDs
}
