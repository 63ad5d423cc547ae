package domain

import "time"

// RunStatus is the outcome of a feature build run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord registers one feature build run.
type RunRecord struct {
	RunID           string
	StartedAt       time.Time
	FinishedAt      time.Time
	Status          RunStatus
	SalesTable      string
	CompetitorTable string
	RawSalesRows    int
	RawCompRows     int
	FeatureRows     int
	NonFiniteCells  int
	Error           string // empty unless Status is failed
}
