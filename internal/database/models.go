package database

import (
	"time"
)

// ReadingRow is a persisted sensor reading.
type ReadingRow struct {
	ID          int64
	Date        string
	Time        string
	Temperature float64
	Humidity    float64
	CO2         float64
	ReceivedAt  time.Time
}

// DailySummaryRow is the persisted per-date rollup.
type DailySummaryRow struct {
	ID      int64
	Date    string
	MinTemp float64
	MaxTemp float64
	AvgTemp float64
	MinHumi float64
	MaxHumi float64
	AvgHumi float64
	MinCO2  float64
	MaxCO2  float64
	AvgCO2  float64
	Samples int
}

// RelayLogRow is one relay transition recorded for audit.
type RelayLogRow struct {
	ID         int64
	EventID    string
	EventType  string
	RelayState bool
	Message    string
	OccurredAt time.Time
	CreatedAt  time.Time
}
