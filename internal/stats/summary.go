package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/qzhari/envmon-server/internal/database"
)

// Snapshotter persists finished day buckets into the daily_summary table so
// dashboards can query history without replaying the reading log.
type Snapshotter struct {
	db  *database.DB
	agg *Aggregator
}

// NewSnapshotter creates a snapshotter over the aggregator.
func NewSnapshotter(db *database.DB, agg *Aggregator) *Snapshotter {
	return &Snapshotter{db: db, agg: agg}
}

// PersistDay upserts the rollup for one date. A date with no readings is a
// no-op, never a zero-filled row.
func (s *Snapshotter) PersistDay(ctx context.Context, date string) error {
	st, ok := s.agg.StatsFor(date)
	if !ok {
		return nil
	}

	row := &database.DailySummaryRow{
		Date:    date,
		MinTemp: st.MinTemperature,
		MaxTemp: st.MaxTemperature,
		AvgTemp: st.AvgTemperature,
		MinHumi: st.MinHumidity,
		MaxHumi: st.MaxHumidity,
		AvgHumi: st.AvgHumidity,
		MinCO2:  st.MinCO2,
		MaxCO2:  st.MaxCO2,
		AvgCO2:  st.AvgCO2,
		Samples: s.agg.SampleCount(date),
	}
	if err := s.db.UpsertDailySummary(ctx, row); err != nil {
		return fmt.Errorf("failed to persist daily summary for %s: %w", date, err)
	}

	fmt.Printf("Persisted daily summary for %s (%d samples)\n", date, row.Samples)
	return nil
}

// PersistPreviousDay rolls up yesterday relative to the given location.
func (s *Snapshotter) PersistPreviousDay(ctx context.Context, loc *time.Location) error {
	yesterday := time.Now().In(loc).AddDate(0, 0, -1)
	return s.PersistDay(ctx, yesterday.Format("2006-01-02"))
}

// NextRunTime returns the next occurrence of the configured HH:MM rollup
// time in the given location.
func NextRunTime(timeOfDay string, loc *time.Location) (time.Time, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("invalid time format: %s (expected HH:MM)", timeOfDay)
	}

	now := time.Now().In(loc)
	todayRun := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	if now.After(todayRun) {
		return todayRun.AddDate(0, 0, 1), nil
	}
	return todayRun, nil
}
