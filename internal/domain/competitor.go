package domain

import "time"

// CompetitorObservation is one typed row from the raw competitor price table.
type CompetitorObservation struct {
	ProdID          string    // product identifier
	Competitor      string    // competitor identifier
	DateExtraction  time.Time // when the price was scraped
	CompetitorPrice float64   // observed price
}

// CompetitorPrice is the canonical (product, day, price) row kept after dedup.
// A product/day may carry several rows, one per retained observation.
type CompetitorPrice struct {
	ProdID string    // product identifier
	Date   time.Time // calendar day, midnight UTC
	Price  float64   // observed competitor price
}

// CompetitorPriceStats summarizes all competitor prices for one product/day.
type CompetitorPriceStats struct {
	ProdID string
	Date   time.Time
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	Count  int
}
