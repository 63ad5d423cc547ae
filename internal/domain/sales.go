package domain

import "time"

// SalesRecord is one typed order line from the raw sales table.
type SalesRecord struct {
	ProdID    string    // product identifier
	DateOrder time.Time // calendar day of the order, midnight UTC
	QtyOrder  int64     // units ordered, > 0
	Revenue   float64   // line revenue
}

// ValuePerItem returns revenue / qty_order.
func (r SalesRecord) ValuePerItem() float64 {
	return r.Revenue / float64(r.QtyOrder)
}

// DailySales is the canonical one-row-per-(product, day) sales aggregate.
// ValuePerItem is the quantity-weighted average unit price of the day.
type DailySales struct {
	ProdID       string    // product identifier
	DateOrder    time.Time // calendar day, midnight UTC
	ValuePerItem float64   // volume-weighted unit price
	QtyOrder     int64     // total units sold that day
}
