package features

import (
	"sort"

	"price-feature-lab/internal/domain"
)

// CompetitorStats groups canonical competitor prices by (prod_id, date) and
// computes min, max, mean and median of price. Output is ordered by (prod_id, date).
func CompetitorStats(prices []domain.CompetitorPrice) []domain.CompetitorPriceStats {
	if len(prices) == 0 {
		return nil
	}

	groups := make(map[dayKey][]float64)
	for _, p := range prices {
		key := dayKey{prodID: p.ProdID, day: p.Date.Unix()}
		groups[key] = append(groups[key], p.Price)
	}

	result := make([]domain.CompetitorPriceStats, 0, len(groups))
	for key, values := range groups {
		sort.Float64s(values)
		result = append(result, domain.CompetitorPriceStats{
			ProdID: key.prodID,
			Date:   dayFromUnix(key.day),
			Min:    values[0],
			Max:    values[len(values)-1],
			Mean:   computeMean(values),
			Median: computePercentile(values, 0.5),
			Count:  len(values),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ProdID != result[j].ProdID {
			return result[i].ProdID < result[j].ProdID
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

// computeMean averages sorted values. Summation runs in sorted order.
func computeMean(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}

// computePercentile calculates percentile using linear interpolation.
// Input must be sorted ascending. p=0.5 yields the mean of the two middle
// values for even counts.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
