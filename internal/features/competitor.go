package features

import (
	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/table"
)

// Raw competitor price columns (lowercase).
const (
	colProdID          = "prod_id"
	colCompetitor      = "competitor"
	colCompetitorPrice = "competitor_price"
	colDateExtraction  = "date_extraction"
)

// PrepareCompetitorPrices cleans the raw competitor price table into canonical
// (prod_id, date, price) rows.
//
// Steps:
//  1. Lowercase column names (on a copy, the input is never modified)
//  2. Parse date_extraction and truncate it to the calendar day
//  3. Drop exact duplicates on (date, prod_id, competitor, competitor_price)
//  4. Project to (prod_id, date, price); competitor is only a dedup key
//
// Input order is preserved; the first occurrence of a duplicate wins.
func PrepareCompetitorPrices(raw *table.Table) ([]domain.CompetitorPrice, error) {
	prices, _, err := prepareCompetitorPrices(raw)
	return prices, err
}

// ParseCompetitorObservations types every row of the raw competitor table.
func ParseCompetitorObservations(raw *table.Table) ([]domain.CompetitorObservation, error) {
	if isEmpty(raw) {
		return nil, nil
	}

	t, idx, err := requireColumns(raw, colProdID, colCompetitor, colCompetitorPrice, colDateExtraction)
	if err != nil {
		return nil, err
	}

	observations := make([]domain.CompetitorObservation, 0, t.Len())
	for i := range t.Rows {
		extracted, err := timestampCell(t, i, idx[colDateExtraction], colDateExtraction)
		if err != nil {
			return nil, err
		}
		price, err := floatCell(t, i, idx[colCompetitorPrice], colCompetitorPrice)
		if err != nil {
			return nil, err
		}
		observations = append(observations, domain.CompetitorObservation{
			ProdID:          t.Cell(i, idx[colProdID]),
			Competitor:      t.Cell(i, idx[colCompetitor]),
			DateExtraction:  extracted,
			CompetitorPrice: price,
		})
	}
	return observations, nil
}

// observationKey is the exact dedup tuple.
type observationKey struct {
	day        int64
	prodID     string
	competitor string
	price      float64
}

// prepareCompetitorPrices also reports how many duplicate observations were dropped.
func prepareCompetitorPrices(raw *table.Table) ([]domain.CompetitorPrice, int, error) {
	observations, err := ParseCompetitorObservations(raw)
	if err != nil {
		return nil, 0, err
	}
	if len(observations) == 0 {
		return nil, 0, nil
	}

	seen := make(map[observationKey]struct{}, len(observations))
	result := make([]domain.CompetitorPrice, 0, len(observations))
	duplicates := 0

	for _, o := range observations {
		day := truncateToDay(o.DateExtraction)
		key := observationKey{
			day:        day.Unix(),
			prodID:     o.ProdID,
			competitor: o.Competitor,
			price:      o.CompetitorPrice,
		}
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}

		result = append(result, domain.CompetitorPrice{
			ProdID: o.ProdID,
			Date:   day,
			Price:  o.CompetitorPrice,
		})
	}

	return result, duplicates, nil
}
