package store

import (
	"context"
	"time"

	"github.com/qzhari/envmon-server/internal/database"
)

// Postgres is the production Store, backed by the readings table.
type Postgres struct {
	db *database.DB
}

// NewPostgres creates a Store over the given database connection.
func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

// Append validates and inserts a reading.
func (p *Postgres) Append(ctx context.Context, r Reading) error {
	if err := r.Validate(); err != nil {
		return err
	}

	row := &database.ReadingRow{
		Date:        r.Date,
		Time:        r.Time,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		CO2:         r.CO2,
		ReceivedAt:  time.Now(),
	}
	if err := p.db.InsertReading(ctx, row); err != nil {
		return &StorageError{Op: "append reading", Err: err}
	}
	return nil
}

// Query returns readings ordered by (date desc, time desc).
func (p *Postgres) Query(ctx context.Context, date string) ([]Reading, error) {
	rows, err := p.db.QueryReadings(ctx, date)
	if err != nil {
		return nil, &StorageError{Op: "query readings", Err: err}
	}

	readings := make([]Reading, 0, len(rows))
	for _, row := range rows {
		readings = append(readings, Reading{
			Date:        row.Date,
			Time:        row.Time,
			Temperature: row.Temperature,
			Humidity:    row.Humidity,
			CO2:         row.CO2,
		})
	}
	return readings, nil
}
