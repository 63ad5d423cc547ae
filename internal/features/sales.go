package features

import (
	"fmt"
	"math"
	"sort"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/table"
)

// Raw sales columns (lowercase).
const (
	colDateOrder = "date_order"
	colQtyOrder  = "qty_order"
	colRevenue   = "revenue"
)

// dayKey identifies a (product, calendar day) pair. day is unix seconds of midnight UTC.
type dayKey struct {
	prodID string
	day    int64
}

// bucketKey identifies a distinct unit price charged for a product on a day.
type bucketKey struct {
	dayKey
	price float64
}

// ParseSalesRecords types every row of the raw sales table.
// Fails with ErrInvalidQuantity on qty_order <= 0.
func ParseSalesRecords(raw *table.Table) ([]domain.SalesRecord, error) {
	if isEmpty(raw) {
		return nil, nil
	}

	t, idx, err := requireColumns(raw, colProdID, colDateOrder, colQtyOrder, colRevenue)
	if err != nil {
		return nil, err
	}

	records := make([]domain.SalesRecord, 0, t.Len())
	for i := range t.Rows {
		day, err := dayCell(t, i, idx[colDateOrder], colDateOrder)
		if err != nil {
			return nil, err
		}
		qty, err := quantityCell(t, i, idx[colQtyOrder], colQtyOrder)
		if err != nil {
			return nil, err
		}
		if qty <= 0 {
			return nil, fmt.Errorf("%w: row %d: qty_order=%d", ErrInvalidQuantity, i+1, qty)
		}
		revenue, err := floatCell(t, i, idx[colRevenue], colRevenue)
		if err != nil {
			return nil, err
		}
		records = append(records, domain.SalesRecord{
			ProdID:    t.Cell(i, idx[colProdID]),
			DateOrder: day,
			QtyOrder:  qty,
			Revenue:   revenue,
		})
	}
	return records, nil
}

// AggregateSales computes one volume-weighted price row per (prod_id, date_order).
//
// Formulas:
//   - value_per_item = revenue / qty_order, per order line
//   - lines sharing (prod_id, date_order, value_per_item) collapse, qty_order summed
//   - qty_day = SUM(qty_order) over the day's price buckets
//   - value_per_item(day) = SUM((qty_order / qty_day) * value_per_item)
//   - qty_order(day) = qty_day
//
// Output is ordered by (prod_id, date_order).
func AggregateSales(raw *table.Table) ([]domain.DailySales, error) {
	records, err := ParseSalesRecords(raw)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	buckets := make(map[bucketKey]int64, len(records))
	for _, r := range records {
		key := bucketKey{
			dayKey: dayKey{prodID: r.ProdID, day: r.DateOrder.Unix()},
			price:  r.ValuePerItem(),
		}
		sum, ok := addQty(buckets[key], r.QtyOrder)
		if !ok {
			return nil, fmt.Errorf("%w: %s on %s: qty_order sum overflows int64",
				ErrInvalidQuantity, r.ProdID, r.DateOrder.Format(domain.DateLayout))
		}
		buckets[key] = sum
	}

	return weightBuckets(buckets)
}

// weightBuckets reduces price buckets to one weighted row per (product, day).
// Fails with ErrInvalidQuantity when a day's total quantity overflows int64.
func weightBuckets(buckets map[bucketKey]int64) ([]domain.DailySales, error) {
	byDay := make(map[dayKey][]priceBucket)
	for k, qty := range buckets {
		byDay[k.dayKey] = append(byDay[k.dayKey], priceBucket{price: k.price, qty: qty})
	}

	result := make([]domain.DailySales, 0, len(byDay))
	for key, day := range byDay {
		// Map iteration order is random; fix summation order so the float result is stable.
		sort.Slice(day, func(i, j int) bool {
			return day[i].price < day[j].price
		})

		var qtyDay int64
		for _, b := range day {
			sum, ok := addQty(qtyDay, b.qty)
			if !ok {
				return nil, fmt.Errorf("%w: %s on %s: daily qty_order overflows int64",
					ErrInvalidQuantity, key.prodID, dayFromUnix(key.day).Format(domain.DateLayout))
			}
			qtyDay = sum
		}

		weighted := 0.0
		for _, b := range day {
			weighted += (float64(b.qty) / float64(qtyDay)) * b.price
		}

		result = append(result, domain.DailySales{
			ProdID:       key.prodID,
			DateOrder:    dayFromUnix(key.day),
			ValuePerItem: weighted,
			QtyOrder:     qtyDay,
		})
	}

	sortDailySales(result)
	return result, nil
}

// addQty adds two non-negative quantities, reporting false on overflow or a
// negative operand.
func addQty(a, b int64) (int64, bool) {
	if a < 0 || b < 0 || b > math.MaxInt64-a {
		return 0, false
	}
	return a + b, true
}

type priceBucket struct {
	price float64
	qty   int64
}

func sortDailySales(rows []domain.DailySales) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ProdID != rows[j].ProdID {
			return rows[i].ProdID < rows[j].ProdID
		}
		return rows[i].DateOrder.Before(rows[j].DateOrder)
	})
}
