package pipeline

import (
	"context"
	"fmt"

	"price-feature-lab/internal/storage"
	"price-feature-lab/internal/table"
)

// Default fixture table names, matching the file source defaults.
const (
	FixtureSalesTable      = "sales"
	FixtureCompetitorTable = "comp_prices"
)

// FixtureSales returns a small raw sales table for demonstration. Revenue is
// the order-line total.
//
// P001 sells on 2024-01-01..03, P002 on 01-01, 01-03 and 01-04 (no sale on 01-02),
// P003 has sales but no competitor prices.
func FixtureSales() *table.Table {
	return table.New(
		[]string{"prod_id", "date_order", "qty_order", "revenue"},
		[][]string{
			{"P001", "2024-01-01 09:15:00", "2", "20.00"},
			{"P001", "2024-01-01 14:00:00", "1", "12.00"},
			{"P001", "2024-01-02 10:00:00", "3", "30.00"},
			{"P001", "2024-01-03 11:30:00", "1", "11.00"},
			{"P001", "2024-01-03 16:45:00", "1", "9.00"},
			{"P002", "2024-01-01 08:00:00", "5", "22.50"},
			{"P002", "2024-01-03 12:00:00", "2", "10.00"},
			{"P002", "2024-01-04 12:00:00", "4", "16.00"},
			{"P003", "2024-01-02 13:00:00", "1", "99.00"},
		},
	)
}

// FixtureCompetitorPrices returns raw competitor observations matching FixtureSales.
// One P001 observation repeats on 2024-01-01; a zero price on P002 2024-01-04
// produces an infinite diff_min_pct.
func FixtureCompetitorPrices() *table.Table {
	return table.New(
		[]string{"prod_id", "competitor", "competitor_price", "date_extraction"},
		[][]string{
			{"P001", "C1", "10.50", "2024-01-01 06:00:00"},
			{"P001", "C2", "11.00", "2024-01-01 06:05:00"},
			{"P001", "C1", "10.50", "2024-01-01 18:00:00"},
			{"P001", "C1", "10.00", "2024-01-02 06:00:00"},
			{"P001", "C2", "10.80", "2024-01-02 06:00:00"},
			{"P001", "C1", "10.20", "2024-01-03 06:00:00"},
			{"P001", "C2", "10.40", "2024-01-03 06:00:00"},
			{"P001", "C3", "12.00", "2024-01-03 06:00:00"},
			{"P002", "C1", "4.80", "2024-01-01 07:00:00"},
			{"P002", "C1", "4.90", "2024-01-03 07:00:00"},
			{"P002", "C1", "4.50", "2024-01-04 07:00:00"},
			{"P002", "C2", "0", "2024-01-04 07:00:00"},
		},
	)
}

// LoadFixtures saves the fixture tables under the default names.
func LoadFixtures(ctx context.Context, sink storage.TableSink) error {
	if err := sink.Save(ctx, FixtureSalesTable, FixtureSales()); err != nil {
		return fmt.Errorf("save %s: %w", FixtureSalesTable, err)
	}
	if err := sink.Save(ctx, FixtureCompetitorTable, FixtureCompetitorPrices()); err != nil {
		return fmt.Errorf("save %s: %w", FixtureCompetitorTable, err)
	}
	return nil
}
