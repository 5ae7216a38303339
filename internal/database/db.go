package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		fmt.Printf("Running migration: %s\n", filename)

		filePath := filepath.Join(migrationsDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	fmt.Println("All migrations completed successfully")
	return nil
}

// InsertReading appends a sensor reading
func (db *DB) InsertReading(ctx context.Context, row *ReadingRow) error {
	query := `
		INSERT INTO readings (date, time, temperature, humidity, co2, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	return db.QueryRowContext(
		ctx,
		query,
		row.Date,
		row.Time,
		row.Temperature,
		row.Humidity,
		row.CO2,
		row.ReceivedAt,
	).Scan(&row.ID)
}

// QueryReadings returns readings ordered by (date desc, time desc).
// An empty date returns all readings.
func (db *DB) QueryReadings(ctx context.Context, date string) ([]*ReadingRow, error) {
	query := `
		SELECT id, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI:SS'),
		       temperature, humidity, co2, received_at
		FROM readings
	`
	args := []interface{}{}
	if date != "" {
		query += ` WHERE date = $1`
		args = append(args, date)
	}
	query += ` ORDER BY date DESC, time DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []*ReadingRow
	for rows.Next() {
		var r ReadingRow
		if err := rows.Scan(
			&r.ID,
			&r.Date,
			&r.Time,
			&r.Temperature,
			&r.Humidity,
			&r.CO2,
			&r.ReceivedAt,
		); err != nil {
			return nil, err
		}
		readings = append(readings, &r)
	}

	return readings, rows.Err()
}

// UpsertDailySummary inserts or replaces the rollup for one date
func (db *DB) UpsertDailySummary(ctx context.Context, row *DailySummaryRow) error {
	query := `
		INSERT INTO daily_summary (
			date, min_temp, max_temp, avg_temp,
			min_humidity, max_humidity, avg_humidity,
			min_co2, max_co2, avg_co2, sample_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (date) DO UPDATE
		SET min_temp = EXCLUDED.min_temp,
		    max_temp = EXCLUDED.max_temp,
		    avg_temp = EXCLUDED.avg_temp,
		    min_humidity = EXCLUDED.min_humidity,
		    max_humidity = EXCLUDED.max_humidity,
		    avg_humidity = EXCLUDED.avg_humidity,
		    min_co2 = EXCLUDED.min_co2,
		    max_co2 = EXCLUDED.max_co2,
		    avg_co2 = EXCLUDED.avg_co2,
		    sample_count = EXCLUDED.sample_count
	`
	_, err := db.ExecContext(ctx, query,
		row.Date, row.MinTemp, row.MaxTemp, row.AvgTemp,
		row.MinHumi, row.MaxHumi, row.AvgHumi,
		row.MinCO2, row.MaxCO2, row.AvgCO2, row.Samples,
	)
	return err
}

// InsertRelayLog records a relay transition
func (db *DB) InsertRelayLog(ctx context.Context, row *RelayLogRow) error {
	query := `
		INSERT INTO relay_log (event_id, event_type, relay_state, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err := db.ExecContext(ctx, query,
		row.EventID, row.EventType, row.RelayState, row.Message, row.OccurredAt)
	return err
}
