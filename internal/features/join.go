package features

import (
	"fmt"
	"math"

	"price-feature-lab/internal/domain"
)

// Options controls optional output columns.
type Options struct {
	// IncludeQtyLog adds qty_order_log = ln(qty_order).
	IncludeQtyLog bool
}

// joinedRow is a (product, day) with both sales and competitor stats.
type joinedRow struct {
	sales domain.DailySales
	stats domain.CompetitorPriceStats
}

// JoinFeatures builds the feature table from canonical daily sales and
// canonical competitor prices.
//
// A row for (p, d) is emitted only when p has a sales row and at least one
// competitor price on d, and (p, d-1) satisfies the same two conditions.
// qty_day_shift is the qty_order of (p, d-1). Percent differences divide by
// min and mean; zero denominators yield ±Inf or NaN in the output.
//
// Output is ordered by (prod_id, date). An empty join returns nil.
// Fails with ErrInvalidQuantity if re-aggregating sales overflows a daily quantity.
func JoinFeatures(sales []domain.DailySales, prices []domain.CompetitorPrice, opts Options) ([]domain.FeatureRow, error) {
	rows, _, err := joinFeatures(sales, prices, opts)
	return rows, err
}

// joinFeatures is JoinFeatures that also reports the size of the inner join
// before the lag filter.
func joinFeatures(sales []domain.DailySales, prices []domain.CompetitorPrice, opts Options) ([]domain.FeatureRow, int, error) {
	daily, err := reaggregateSales(sales)
	if err != nil {
		return nil, 0, err
	}
	joined := joinSalesAndStats(daily, CompetitorStats(prices))
	if len(joined) == 0 {
		return nil, 0, nil
	}

	lag := buildLagLookup(joined)

	result := make([]domain.FeatureRow, 0, len(joined))
	for _, j := range joined {
		prev := dayKey{prodID: j.sales.ProdID, day: j.sales.DateOrder.AddDate(0, 0, -1).Unix()}
		qtyPrev, ok := lag[prev]
		if !ok {
			continue
		}
		result = append(result, newFeatureRow(j, qtyPrev, opts))
	}

	if len(result) == 0 {
		return nil, len(joined), nil
	}
	return result, len(joined), nil
}

// reaggregateSales re-asserts one row per (prod_id, date) by collapsing rows
// on (prod_id, date, value_per_item) and re-weighting. Input is not modified.
func reaggregateSales(sales []domain.DailySales) ([]domain.DailySales, error) {
	if len(sales) == 0 {
		return nil, nil
	}
	buckets := make(map[bucketKey]int64, len(sales))
	for _, s := range sales {
		key := bucketKey{
			dayKey: dayKey{prodID: s.ProdID, day: s.DateOrder.Unix()},
			price:  s.ValuePerItem,
		}
		sum, ok := addQty(buckets[key], s.QtyOrder)
		if !ok {
			return nil, fmt.Errorf("%w: %s on %s: qty_order=%d",
				ErrInvalidQuantity, s.ProdID, s.DateOrder.Format(domain.DateLayout), s.QtyOrder)
		}
		buckets[key] = sum
	}
	return weightBuckets(buckets)
}

// joinSalesAndStats inner-joins on (prod_id, date). Both inputs are ordered by
// (prod_id, date), so the result is too.
func joinSalesAndStats(sales []domain.DailySales, stats []domain.CompetitorPriceStats) []joinedRow {
	if len(sales) == 0 || len(stats) == 0 {
		return nil
	}

	statsLookup := make(map[dayKey]domain.CompetitorPriceStats, len(stats))
	for _, s := range stats {
		statsLookup[dayKey{prodID: s.ProdID, day: s.Date.Unix()}] = s
	}

	var joined []joinedRow
	for _, s := range sales {
		st, ok := statsLookup[dayKey{prodID: s.ProdID, day: s.DateOrder.Unix()}]
		if !ok {
			continue
		}
		joined = append(joined, joinedRow{sales: s, stats: st})
	}
	return joined
}

// buildLagLookup maps (prod_id, date) to the qty_order of the joined row on
// that day, from an independent copy of joined. joined holds one row per
// (prod_id, date).
func buildLagLookup(joined []joinedRow) map[dayKey]int64 {
	shifted := make([]joinedRow, len(joined))
	copy(shifted, joined)

	lookup := make(map[dayKey]int64, len(shifted))
	for _, j := range shifted {
		lookup[dayKey{prodID: j.sales.ProdID, day: j.sales.DateOrder.Unix()}] = j.sales.QtyOrder
	}
	return lookup
}

func newFeatureRow(j joinedRow, qtyPrev int64, opts Options) domain.FeatureRow {
	price := j.sales.ValuePerItem
	row := domain.FeatureRow{
		ProdID:      j.sales.ProdID,
		Date:        j.sales.DateOrder,
		Price:       price,
		QtyOrder:    j.sales.QtyOrder,
		Min:         j.stats.Min,
		Max:         j.stats.Max,
		Mean:        j.stats.Mean,
		Median:      j.stats.Median,
		QtyDayShift: qtyPrev,
		DiffMinPct:  (price - j.stats.Min) / j.stats.Min,
		DiffMeanPct: (price - j.stats.Mean) / j.stats.Mean,
	}
	if opts.IncludeQtyLog {
		v := math.Log(float64(j.sales.QtyOrder))
		row.QtyOrderLog = &v
	}
	return row
}
