package zones

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crismap/server/internal/kvstore"
	"github.com/crismap/server/internal/performance"
)

// DefaultStorageKey is the key of the persisted override snapshot
const DefaultStorageKey = "crisZones"

// ChangeHandler receives the effective list after every mutation. It runs while the
// store is locked and must not call back into the store.
type ChangeHandler func(zones []Zone)

// StoreConfig configures a Store
type StoreConfig struct {
	KV         kvstore.Store
	Key        string
	Normalizer *Normalizer
	Defaults   []PartialZone
	Logger     *zap.Logger
	Profiler   *performance.Profiler
}

// Store owns the effective zone list. Shipped defaults are used until a snapshot has
// been persisted; once it exists it replaces the defaults entirely. Every mutation
// rewrites the whole snapshot.
type Store struct {
	mu         sync.Mutex
	kv         kvstore.Store
	key        string
	normalizer *Normalizer
	defaults   []Zone
	zones      []Zone
	logger     *zap.Logger
	profiler   *performance.Profiler
	onChange   ChangeHandler
	newID      func() string
}

// NewStore creates a store. The effective list starts as the shipped defaults; call
// Load to pick up a persisted snapshot.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Key == "" {
		cfg.Key = DefaultStorageKey
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = NewNormalizer(StateDriven)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.KV == nil {
		cfg.KV = kvstore.NewMemory()
	}
	s := &Store{
		kv:         cfg.KV,
		key:        cfg.Key,
		normalizer: cfg.Normalizer,
		defaults:   cfg.Normalizer.NormalizeAll(cfg.Defaults),
		logger:     cfg.Logger.With(zap.String("component", "zone_store")),
		profiler:   cfg.Profiler,
		newID:      func() string { return "zone-" + uuid.NewString() },
	}
	s.zones = cloneZones(s.defaults)
	return s
}

// OnChange sets the handler notified after every mutation
func (s *Store) OnChange(fn ChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Normalizer returns the store's normalizer
func (s *Store) Normalizer() *Normalizer {
	return s.normalizer
}

// Load reads the persisted snapshot and makes it the effective list. A missing,
// unreadable or malformed snapshot falls back to the shipped defaults.
func (s *Store) Load(ctx context.Context) []Zone {
	defer s.profiler.Start("zones.load").End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.zones = s.readSnapshot(ctx)
	s.warnDuplicates("load")
	s.notify()
	return cloneZones(s.zones)
}

func (s *Store) readSnapshot(ctx context.Context) []Zone {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Warn("Failed to read zone snapshot, using defaults", zap.Error(err))
		}
		return cloneZones(s.defaults)
	}

	records, skipped, err := DecodeSnapshot([]byte(data))
	if err != nil {
		s.logger.Warn("Malformed zone snapshot, using defaults", zap.Error(err))
		return cloneZones(s.defaults)
	}
	if skipped > 0 {
		s.logger.Warn("Skipped malformed zone records", zap.Int("skipped", skipped))
	}
	return s.normalizer.NormalizeAll(records)
}

// Zones returns a copy of the effective list
func (s *Store) Zones() []Zone {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneZones(s.zones)
}

// Defaults returns a copy of the normalized shipped defaults
func (s *Store) Defaults() []Zone {
	return cloneZones(s.defaults)
}

// Get returns the zone with the given id
func (s *Store) Get(id string) (Zone, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.zones[i].Clone(), true
	}
	return Zone{}, false
}

// Create normalizes raw and appends it. A raw record without an id gets a fresh one.
// A persist error is returned after the zone has been added.
func (s *Store) Create(ctx context.Context, raw PartialZone) (Zone, error) {
	defer s.profiler.Start("zones.create").End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if raw.ID == "" {
		raw.ID = s.newID()
	}
	if s.indexOf(raw.ID) >= 0 {
		return Zone{}, fmt.Errorf("create zone %s: %w", raw.ID, ErrZoneExists)
	}

	zone := s.normalizer.Normalize(raw, len(s.zones))
	s.zones = append(s.zones, zone)
	return zone.Clone(), s.commit(ctx, "create")
}

// Update replaces the zone with the given id, keeping the id. Updating an unknown id
// changes nothing but still persists; found reports whether a zone was replaced.
func (s *Store) Update(ctx context.Context, id string, raw PartialZone) (zone Zone, found bool, err error) {
	defer s.profiler.Start("zones.update").End()

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i >= 0 {
		raw.ID = id
		zone = s.normalizer.Normalize(raw, i)
		s.zones[i] = zone
		found = true
	}
	return zone.Clone(), found, s.commit(ctx, "update")
}

// Delete removes the zone with the given id and reports whether it existed
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	defer s.profiler.Start("zones.delete").End()

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.zones[:0:0]
	for _, z := range s.zones {
		if z.ID != id {
			kept = append(kept, z)
		}
	}
	removed := len(kept) != len(s.zones)
	s.zones = kept
	return removed, s.commit(ctx, "delete")
}

// RestoreDefaults discards every local edit: the effective list becomes the shipped
// defaults and the persisted snapshot is erased. It refuses to run unless confirmed.
func (s *Store) RestoreDefaults(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	defer s.profiler.Start("zones.restore_defaults").End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.zones = cloneZones(s.defaults)
	s.notify()
	if err := s.kv.Delete(ctx, s.key); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return fmt.Errorf("erase zone snapshot: %w", err)
	}
	s.logger.Info("Restored default zones", zap.Int("zones", len(s.zones)))
	return nil
}

// ImportSnapshot replaces the effective list with records, normalized like a stored
// snapshot, and persists it. Nothing is merged with the current list.
func (s *Store) ImportSnapshot(ctx context.Context, records []PartialZone) ([]Zone, error) {
	defer s.profiler.Start("zones.import").End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.zones = s.normalizer.NormalizeAll(records)
	s.warnDuplicates("import")
	return cloneZones(s.zones), s.commit(ctx, "import")
}

// commit publishes the new list and rewrites the snapshot. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, op string) error {
	s.notify()

	data, err := json.Marshal(s.snapshot())
	if err != nil {
		return fmt.Errorf("encode zone snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		s.logger.Error("Failed to persist zone snapshot", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("persist zone snapshot: %w", err)
	}
	s.logger.Debug("Persisted zone snapshot", zap.String("op", op), zap.Int("zones", len(s.zones)))
	return nil
}

func (s *Store) snapshot() []Zone {
	if s.zones == nil {
		return []Zone{}
	}
	return s.zones
}

func (s *Store) notify() {
	s.profiler.SetZoneCount(len(s.zones))
	if s.onChange != nil {
		s.onChange(cloneZones(s.zones))
	}
}

// warnDuplicates logs ids shared by several zones. Such records are kept: updates
// reach only the first one and deletes remove them all.
func (s *Store) warnDuplicates(op string) {
	seen := make(map[string]int, len(s.zones))
	for _, z := range s.zones {
		seen[z.ID]++
		if seen[z.ID] == 2 {
			s.logger.Warn("Duplicate zone id", zap.String("op", op), zap.String("id", z.ID))
		}
	}
}

func (s *Store) indexOf(id string) int {
	for i, z := range s.zones {
		if z.ID == id {
			return i
		}
	}
	return -1
}

func cloneZones(in []Zone) []Zone {
	out := make([]Zone, len(in))
	for i, z := range in {
		out[i] = z.Clone()
	}
	return out
}
