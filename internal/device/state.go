package device

import (
	"context"
	"sync"
)

// Store persists the configuration record across restarts.
type Store interface {
	// Load returns the persisted record, or found=false when none exists.
	Load(ctx context.Context) (cfg Config, found bool, err error)
	Save(ctx context.Context, cfg Config) error
}

// NopStore discards writes. Used in tests and broker-less deployments.
type NopStore struct{}

func (NopStore) Load(ctx context.Context) (Config, bool, error) { return Config{}, false, nil }
func (NopStore) Save(ctx context.Context, cfg Config) error     { return nil }

// Manager serializes all access to the configuration record. Readers get
// point-in-time copies; writers apply as a sequential total order.
type Manager struct {
	mu    sync.RWMutex
	cfg   Config
	store Store
}

// NewManager creates a Manager seeded with defaults. Call Init before use to
// pick up the persisted record.
func NewManager(store Store, defaults Config) *Manager {
	return &Manager{cfg: defaults, store: store}
}

// Init loads the persisted configuration, keeping the seeded defaults when
// nothing was persisted yet.
func (m *Manager) Init(ctx context.Context) error {
	cfg, found, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	if found {
		m.mu.Lock()
		m.cfg = cfg
		m.mu.Unlock()
	}
	return nil
}

// Snapshot returns a point-in-time copy of the record, never a mutable alias.
func (m *Manager) Snapshot() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.clone()
}

// Mutate applies fn to the record inside the critical section, then persists
// the result. The returned snapshot is the post-mutation record. A persist
// failure is returned alongside the applied snapshot; the in-memory record
// stays authoritative and the next successful save rewrites it in full.
func (m *Manager) Mutate(ctx context.Context, fn func(*Config)) (Config, error) {
	m.mu.Lock()
	fn(&m.cfg)
	snap := m.cfg.clone()
	m.mu.Unlock()

	if err := m.store.Save(ctx, snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// Apply merges a partial update onto the record and returns the new snapshot.
// Unspecified fields are left unchanged.
func (m *Manager) Apply(ctx context.Context, u Update) (Config, error) {
	if err := u.Validate(); err != nil {
		return Config{}, err
	}
	return m.Mutate(ctx, func(c *Config) {
		c.Merge(u)
	})
}

// ConsumeNotification returns the pending notification and clears it, so a
// notification is delivered at most once.
func (m *Manager) ConsumeNotification(ctx context.Context) (string, error) {
	m.mu.Lock()
	msg := m.cfg.Notification
	if msg == "" {
		m.mu.Unlock()
		return "", nil
	}
	m.cfg.Notification = ""
	snap := m.cfg.clone()
	m.mu.Unlock()

	if err := m.store.Save(ctx, snap); err != nil {
		return msg, err
	}
	return msg, nil
}

// clone copies the record, including threshold values, so callers can never
// observe or cause a partial merge. Callers must hold at least a read lock.
func (c Config) clone() Config {
	out := c
	out.TempThreshold = cloneFloat(c.TempThreshold)
	out.HumiThreshold = cloneFloat(c.HumiThreshold)
	out.CO2Threshold = cloneFloat(c.CO2Threshold)
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}
