package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store. It backs tests and broker-less deployments.
type Memory struct {
	mu       sync.RWMutex
	readings []Reading
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append validates and records a reading.
func (m *Memory) Append(ctx context.Context, r Reading) error {
	if err := r.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, r)
	return nil
}

// Query returns readings ordered by (date desc, time desc). An empty date
// returns all readings.
func (m *Memory) Query(ctx context.Context, date string) ([]Reading, error) {
	m.mu.RLock()
	result := make([]Reading, 0, len(m.readings))
	for _, r := range m.readings {
		if date == "" || r.Date == date {
			result = append(result, r)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date > result[j].Date
		}
		return result[i].Time > result[j].Time
	})
	return result, nil
}

// Count returns the number of stored readings.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.readings)
}
