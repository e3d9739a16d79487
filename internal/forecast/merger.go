package forecast

import (
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/shopspring/decimal"
)

// MergeResult is the overlap-free schedule produced by Merge.
type MergeResult struct {
	Targets  []domain.SalesTarget `json:"targets"`
	Kept     int                  `json:"kept"`     // ranges in Targets
	Replaced int                  `json:"replaced"` // kept ranges discarded because a later candidate overlapped them
	Dropped  int                  `json:"dropped"`  // candidates whose start date was not before their end date
}

// Merge reconciles candidate ranges, in upload order, against the existing
// ranges of each product. A candidate overlapping a kept range takes that
// range's place entirely; ranges are never split. Every other kept range the
// candidate overlaps is discarded too, so no product ends up with two ranges
// covering the same date. Inputs are not modified.
func Merge(existing, candidates []domain.SalesTarget) MergeResult {
	var (
		result   MergeResult
		products []int64
		kept     = make(map[int64][]domain.SalesTarget)
	)

	track := func(productID int64) {
		if _, ok := kept[productID]; !ok {
			products = append(products, productID)
			kept[productID] = nil
		}
	}

	for _, t := range existing {
		track(t.ProductID)
		kept[t.ProductID] = append(kept[t.ProductID], t)
	}

	for _, c := range candidates {
		if !domain.Day(c.StartDate).Before(domain.Day(c.EndDate)) {
			result.Dropped++
			continue
		}
		track(c.ProductID)

		next, replaced := mergeOne(kept[c.ProductID], c)
		kept[c.ProductID] = next
		result.Replaced += replaced
	}

	for _, productID := range products {
		result.Targets = append(result.Targets, kept[productID]...)
	}
	result.Kept = len(result.Targets)

	return result
}

// mergeOne returns a new accumulator with candidate applied.
func mergeOne(kept []domain.SalesTarget, candidate domain.SalesTarget) ([]domain.SalesTarget, int) {
	next := make([]domain.SalesTarget, 0, len(kept)+1)
	placed := false
	replaced := 0

	for _, k := range kept {
		if !k.Overlaps(candidate) {
			next = append(next, k)
			continue
		}
		replaced++
		if !placed {
			next = append(next, candidate)
			placed = true
		}
	}

	if !placed {
		next = append(next, candidate)
	}

	return next, replaced
}

// ProductTargets returns the targets belonging to productID, in order.
func ProductTargets(targets []domain.SalesTarget, productID int64) []domain.SalesTarget {
	var out []domain.SalesTarget
	for _, t := range targets {
		if t.ProductID == productID {
			out = append(out, t)
		}
	}
	return out
}

// ForecastFor returns the daily forecast of the first target covering day.
func ForecastFor(targets []domain.SalesTarget, day time.Time) (decimal.Decimal, bool) {
	for _, t := range targets {
		if t.Covers(day) {
			return t.SalesForecast, true
		}
	}
	return decimal.Zero, false
}

// Overlapping reports the first pair of same-product targets that overlap.
func Overlapping(targets []domain.SalesTarget) (domain.SalesTarget, domain.SalesTarget, bool) {
	for i := range targets {
		for j := i + 1; j < len(targets); j++ {
			if targets[i].ProductID == targets[j].ProductID && targets[i].Overlaps(targets[j]) {
				return targets[i], targets[j], true
			}
		}
	}
	return domain.SalesTarget{}, domain.SalesTarget{}, false
}
