// Package stats derives per-day summary statistics from the reading log.
package stats

import (
	"context"
	"math"
	"sync"

	"github.com/qzhari/envmon-server/internal/store"
)

// DayStats holds min/max/avg per quantity for one calendar day. Averages are
// kept at full precision; use Rounded at the presentation boundary.
type DayStats struct {
	MinTemperature float64 `json:"min_temperature"`
	MaxTemperature float64 `json:"max_temperature"`
	AvgTemperature float64 `json:"avg_temperature"`
	MinHumidity    float64 `json:"min_humidity"`
	MaxHumidity    float64 `json:"max_humidity"`
	AvgHumidity    float64 `json:"avg_humidity"`
	MinCO2         float64 `json:"min_co2"`
	MaxCO2         float64 `json:"max_co2"`
	AvgCO2         float64 `json:"avg_co2"`
}

// Rounded returns a copy with averages rounded to 2 decimal places.
func (s DayStats) Rounded() DayStats {
	s.AvgTemperature = round2(s.AvgTemperature)
	s.AvgHumidity = round2(s.AvgHumidity)
	s.AvgCO2 = round2(s.AvgCO2)
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// bucket accumulates running totals for one date.
type bucket struct {
	count   int
	tempSum float64
	tempMin float64
	tempMax float64
	humiSum float64
	humiMin float64
	humiMax float64
	co2Sum  float64
	co2Min  float64
	co2Max  float64
}

func (b *bucket) add(r store.Reading) {
	if b.count == 0 {
		b.tempMin, b.tempMax = r.Temperature, r.Temperature
		b.humiMin, b.humiMax = r.Humidity, r.Humidity
		b.co2Min, b.co2Max = r.CO2, r.CO2
	} else {
		b.tempMin = math.Min(b.tempMin, r.Temperature)
		b.tempMax = math.Max(b.tempMax, r.Temperature)
		b.humiMin = math.Min(b.humiMin, r.Humidity)
		b.humiMax = math.Max(b.humiMax, r.Humidity)
		b.co2Min = math.Min(b.co2Min, r.CO2)
		b.co2Max = math.Max(b.co2Max, r.CO2)
	}
	b.count++
	b.tempSum += r.Temperature
	b.humiSum += r.Humidity
	b.co2Sum += r.CO2
}

func (b *bucket) stats() DayStats {
	n := float64(b.count)
	return DayStats{
		MinTemperature: b.tempMin,
		MaxTemperature: b.tempMax,
		AvgTemperature: b.tempSum / n,
		MinHumidity:    b.humiMin,
		MaxHumidity:    b.humiMax,
		AvgHumidity:    b.humiSum / n,
		MinCO2:         b.co2Min,
		MaxCO2:         b.co2Max,
		AvgCO2:         b.co2Sum / n,
	}
}

// Aggregator maintains incremental day buckets. Results are identical to a
// full recomputation over the store; dates with no readings never appear.
type Aggregator struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{buckets: make(map[string]*bucket)}
}

// Record folds one reading into its date bucket. Called on every append.
func (a *Aggregator) Record(r store.Reading) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buckets[r.Date]
	if !ok {
		b = &bucket{}
		a.buckets[r.Date] = b
	}
	b.add(r)
}

// Rebuild discards all buckets and replays the store. Called at startup.
func (a *Aggregator) Rebuild(ctx context.Context, s store.Store) error {
	readings, err := s.Query(ctx, "")
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.buckets = make(map[string]*bucket)
	for _, r := range readings {
		b, ok := a.buckets[r.Date]
		if !ok {
			b = &bucket{}
			a.buckets[r.Date] = b
		}
		b.add(r)
	}
	return nil
}

// StatsFor returns the stats for one date. The second result is false when
// the date has no readings.
func (a *Aggregator) StatsFor(date string) (DayStats, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	b, ok := a.buckets[date]
	if !ok {
		return DayStats{}, false
	}
	return b.stats(), true
}

// AllStats returns stats for exactly the set of dates present in the log.
func (a *Aggregator) AllStats() map[string]DayStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make(map[string]DayStats, len(a.buckets))
	for date, b := range a.buckets {
		result[date] = b.stats()
	}
	return result
}

// SampleCount returns the number of readings recorded for a date.
func (a *Aggregator) SampleCount(date string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if b, ok := a.buckets[date]; ok {
		return b.count
	}
	return 0
}
