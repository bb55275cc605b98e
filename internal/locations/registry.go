package locations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crismap/server/internal/geo"
	"github.com/crismap/server/internal/kvstore"
	"github.com/crismap/server/internal/zones"
)

// Storage keys
const (
	DefaultEditsKey = "crisDefaultEdits"
	CustomKey       = "paranormalLocations"
	ConnectionsKey  = "crisConnections"
)

// MembraneNamePrefix names zones created for a location
const MembraneNamePrefix = "Membrana - "

// ZoneStore is the part of the zone store the registry uses to manage linked membranes
type ZoneStore interface {
	Get(id string) (zones.Zone, bool)
	Create(ctx context.Context, raw zones.PartialZone) (zones.Zone, error)
	Update(ctx context.Context, id string, raw zones.PartialZone) (zones.Zone, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// MembraneAction reports what an update did to the linked zone
type MembraneAction string

const (
	MembraneNone     MembraneAction = "none"
	MembraneCreated  MembraneAction = "created"
	MembraneUpdated  MembraneAction = "updated"
	MembraneRemoved  MembraneAction = "removed"
	MembraneUnlinked MembraneAction = "unlinked"
)

// UnlinkPolicy decides the fate of a linked zone when its location's membrane is disabled
type UnlinkPolicy int

const (
	// KeepZone clears the link but leaves the zone on the map
	KeepZone UnlinkPolicy = iota
	// RemoveZone clears the link and deletes the zone
	RemoveZone
)

// Draft is a location as entered in the register/edit form
type Draft struct {
	Type        string     `json:"type" validate:"required"`
	Name        string     `json:"name" validate:"required,max=200"`
	Coords      *geo.Point `json:"coords,omitempty"`
	Description string     `json:"description" validate:"max=2000"`
	Info        string     `json:"info" validate:"max=2000"`
	Threat      int        `json:"threat" validate:"gte=0,lte=3"`
}

// Membrane enables a zone around a location
type Membrane struct {
	State        string  `json:"membraneState"`
	RadiusMeters float64 `json:"radiusMeters"`
}

// ConnectionDraft is a connection as entered in the form
type ConnectionDraft struct {
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
	Label  string `json:"label" validate:"max=200"`
	Color  string `json:"color" validate:"omitempty,hexcolor"`
}

// Shipped is the read-only baseline the registry starts from
type Shipped struct {
	Defaults    []Location
	Custom      []Location
	Connections []Connection
}

// RegistryConfig configures a Registry
type RegistryConfig struct {
	KV      kvstore.Store
	Zones   ZoneStore
	Shipped Shipped
	Logger  *zap.Logger
}

// Registry holds shipped locations with their per-field edits, user-created locations
// and connections. Shipped locations merge field by field with the stored edits, unlike
// zones which replace their defaults wholesale.
type Registry struct {
	mu          sync.Mutex
	kv          kvstore.Store
	zones       ZoneStore
	shipped     []Location
	shippedCust []Location
	shippedConn []Connection
	edits       map[string]DefaultEdit
	defaults    []Location
	custom      []Location
	connections []Connection
	logger      *zap.Logger
	validate    *validator.Validate
	newID       func(prefix string) string
}

// NewRegistry creates a registry over the shipped data. Call Load to apply stored state.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.KV == nil {
		cfg.KV = kvstore.NewMemory()
	}
	r := &Registry{
		kv:       cfg.KV,
		zones:    cfg.Zones,
		edits:    make(map[string]DefaultEdit),
		logger:   cfg.Logger.With(zap.String("component", "location_registry")),
		validate: validator.New(),
		newID:    func(prefix string) string { return prefix + uuid.NewString() },
	}

	for i, l := range cfg.Shipped.Defaults {
		l = Normalize(l)
		if l.ID == "" {
			l.ID = fmt.Sprintf("default-%d", i)
		}
		r.shipped = append(r.shipped, l)
	}
	r.shippedCust = r.normalizeCustom(cfg.Shipped.Custom)
	for i, c := range cfg.Shipped.Connections {
		if c.ID == "" {
			c.ID = fmt.Sprintf("conn-default-%d", i)
		}
		r.shippedConn = append(r.shippedConn, normalizeConnection(c))
	}

	r.defaults = r.applyEdits()
	r.custom = cloneLocations(r.shippedCust)
	r.connections = cloneConnections(r.shippedConn)
	return r
}

// Load reads stored edits, custom locations and connections. Missing or unreadable
// entries leave the shipped values in place.
func (r *Registry) Load(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var edits map[string]DefaultEdit
	if r.read(ctx, DefaultEditsKey, &edits) && edits != nil {
		r.edits = edits
	}
	r.defaults = r.applyEdits()

	var custom []Location
	if r.read(ctx, CustomKey, &custom) {
		r.custom = r.normalizeCustom(custom)
	}

	var conns []Connection
	if r.read(ctx, ConnectionsKey, &conns) {
		r.connections = r.normalizeConnections(conns)
	}
}

func (r *Registry) read(ctx context.Context, key string, v interface{}) bool {
	data, err := r.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			r.logger.Warn("Failed to read stored locations", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		r.logger.Warn("Malformed stored locations, ignoring", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (r *Registry) applyEdits() []Location {
	out := make([]Location, 0, len(r.shipped))
	for _, l := range r.shipped {
		edit, ok := r.edits[l.ID]
		if ok && edit.Deleted {
			continue
		}
		if ok {
			l = edit.Apply(l)
		}
		out = append(out, l)
	}
	return out
}

func (r *Registry) normalizeCustom(in []Location) []Location {
	out := make([]Location, 0, len(in))
	for _, l := range in {
		if l.ID == "" {
			l.ID = r.newID("loc-")
		}
		out = append(out, Normalize(l))
	}
	return out
}

func (r *Registry) normalizeConnections(in []Connection) []Connection {
	out := make([]Connection, 0, len(in))
	for _, c := range in {
		if c.ID == "" {
			c.ID = r.newID("conn-")
		}
		out = append(out, normalizeConnection(c))
	}
	return out
}

// All returns shipped locations followed by custom ones
func (r *Registry) All() []Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.all()
}

func (r *Registry) all() []Location {
	out := make([]Location, 0, len(r.defaults)+len(r.custom))
	out = append(out, r.defaults...)
	return append(out, r.custom...)
}

// Custom returns the user-created locations
func (r *Registry) Custom() []Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneLocations(r.custom)
}

// ShippedDefaults returns the shipped locations without edits
func (r *Registry) ShippedDefaults() []Location {
	return cloneLocations(r.shipped)
}

// Get returns the location with the given id
func (r *Registry) Get(id string) (Location, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.all() {
		if l.ID == id {
			return l, true
		}
	}
	return Location{}, false
}

// IsDefault reports whether id belongs to a shipped location
func (r *Registry) IsDefault(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return indexOf(r.defaults, id) >= 0
}

func (r *Registry) checkDraft(d Draft, m *Membrane) (Draft, error) {
	d.Type = string(NormalizeType(d.Type))
	d.Name = StripLeadingIcon(strings.TrimSpace(d.Name))
	if err := r.validate.Struct(d); err != nil {
		return d, fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}
	if !Type(d.Type).Valid() {
		return d, fmt.Errorf("%w: unknown type %q", ErrInvalidLocation, d.Type)
	}
	// Longitudes are wrapped later; latitudes have nowhere to wrap to
	if c := d.Coords; c != nil && !validCoords(*c) {
		return d, fmt.Errorf("%w: coords %v are outside [-90,90] latitude", ErrInvalidLocation, *c)
	}
	if m != nil {
		if !(m.RadiusMeters > 0) {
			return d, ErrInvalidRadius
		}
		if r.zones == nil {
			return d, errors.New("membranes are not available: no zone store configured")
		}
	}
	return d, nil
}

func validCoords(p geo.Point) bool {
	lon, lat := p.Lon(), p.Lat()
	return !math.IsNaN(lon) && !math.IsInf(lon, 0) && !math.IsNaN(lat) && lat >= -90 && lat <= 90
}

func fromDraft(base Location, d Draft) Location {
	base.Type = Type(d.Type)
	base.Name = d.Name
	base.Description = strings.TrimSpace(d.Description)
	if base.Description == "" {
		base.Description = DefaultDescription
	}
	base.Info = strings.TrimSpace(d.Info)
	if base.Info == "" {
		base.Info = DefaultInfo
	}
	base.Threat = d.Threat
	if d.Coords != nil {
		base.Coords = *d.Coords
	}
	return Normalize(base)
}

func membraneZone(l Location, m Membrane) zones.PartialZone {
	center := l.Coords
	radius := m.RadiusMeters
	return zones.PartialZone{
		Name:          MembraneNamePrefix + l.Name,
		MembraneState: m.State,
		Center:        &center,
		RadiusMeters:  &radius,
	}
}

// Register adds a custom location. With a membrane, a zone centered on the location is
// created and linked to it.
func (r *Registry) Register(ctx context.Context, d Draft, m *Membrane) (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, err := r.checkDraft(d, m)
	if err != nil {
		return Location{}, err
	}
	if d.Coords == nil {
		return Location{}, fmt.Errorf("%w: coords are required", ErrInvalidLocation)
	}

	loc := fromDraft(Location{ID: r.newID("loc-")}, d)

	var zoneErr error
	if m != nil {
		zone, err := r.zones.Create(ctx, membraneZone(loc, *m))
		if zone.ID != "" {
			loc.MembraneZoneID = zone.ID
		}
		zoneErr = err
	}

	r.custom = append(r.custom, loc)
	if err := r.persist(ctx, CustomKey, r.custom); err != nil {
		return loc, err
	}
	return loc, zoneErr
}

// Update edits a location. With a membrane the linked zone is updated, or created and
// linked when there is none. Without one an existing link is cleared, and policy decides
// whether the zone is deleted or kept.
func (r *Registry) Update(ctx context.Context, id string, d Draft, m *Membrane, policy UnlinkPolicy) (Location, MembraneAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	customIdx, defaultIdx := indexOf(r.custom, id), indexOf(r.defaults, id)
	var current Location
	switch {
	case customIdx >= 0:
		current = r.custom[customIdx]
	case defaultIdx >= 0:
		current = r.defaults[defaultIdx]
	default:
		return Location{}, MembraneNone, fmt.Errorf("update location %s: %w", id, ErrLocationNotFound)
	}

	d, err := r.checkDraft(d, m)
	if err != nil {
		return Location{}, MembraneNone, err
	}
	updated := fromDraft(current, d)
	if m != nil && !validCoords(updated.Coords) {
		return Location{}, MembraneNone, fmt.Errorf("%w: coords %v cannot anchor a membrane", ErrInvalidLocation, updated.Coords)
	}

	action, zoneErr := r.syncMembrane(ctx, &updated, m, policy)

	var persistErr error
	if customIdx >= 0 {
		r.custom[customIdx] = updated
		persistErr = r.persist(ctx, CustomKey, r.custom)
	} else {
		r.defaults[defaultIdx] = updated
		r.edits[id] = editFrom(updated, true)
		persistErr = r.persist(ctx, DefaultEditsKey, r.edits)
	}
	if persistErr != nil {
		return updated, action, persistErr
	}
	return updated, action, zoneErr
}

func (r *Registry) syncMembrane(ctx context.Context, loc *Location, m *Membrane, policy UnlinkPolicy) (MembraneAction, error) {
	linked, hasZone := zones.Zone{}, false
	if loc.MembraneZoneID != "" && r.zones != nil {
		linked, hasZone = r.zones.Get(loc.MembraneZoneID)
	}

	if m != nil {
		raw := membraneZone(*loc, *m)
		if hasZone {
			_, _, err := r.zones.Update(ctx, linked.ID, raw)
			return MembraneUpdated, err
		}
		zone, err := r.zones.Create(ctx, raw)
		if zone.ID != "" {
			loc.MembraneZoneID = zone.ID
		}
		return MembraneCreated, err
	}

	if loc.MembraneZoneID == "" {
		return MembraneNone, nil
	}
	loc.MembraneZoneID = ""
	if !hasZone {
		return MembraneNone, nil
	}
	if policy == RemoveZone {
		_, err := r.zones.Delete(ctx, linked.ID)
		return MembraneRemoved, err
	}
	return MembraneUnlinked, nil
}

// Delete removes a location and every connection touching it. A linked zone is kept.
// Deleting a shipped location stores a tombstone edit so it stays deleted.
func (r *Registry) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := false
	if i := indexOf(r.custom, id); i >= 0 {
		r.custom = append(r.custom[:i], r.custom[i+1:]...)
		removed = true
		if err := r.persist(ctx, CustomKey, r.custom); err != nil {
			return true, err
		}
	}
	if i := indexOf(r.defaults, id); i >= 0 {
		r.defaults = append(r.defaults[:i], r.defaults[i+1:]...)
		r.edits[id] = DefaultEdit{Deleted: true}
		removed = true
		if err := r.persist(ctx, DefaultEditsKey, r.edits); err != nil {
			return true, err
		}
	}

	kept := r.connections[:0:0]
	for _, c := range r.connections {
		if c.FromID != id && c.ToID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) != len(r.connections) {
		r.connections = kept
		if err := r.persist(ctx, ConnectionsKey, r.connections); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// ImportDefaults replaces every per-field edit with the imported shipped-location
// records. Records without an id are ignored.
func (r *Registry) ImportDefaults(ctx context.Context, records []Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	edits := make(map[string]DefaultEdit, len(records))
	for _, l := range records {
		if l.ID == "" {
			continue
		}
		edits[l.ID] = editFrom(Normalize(l), false)
	}
	r.edits = edits
	r.defaults = r.applyEdits()
	return r.persist(ctx, DefaultEditsKey, r.edits)
}

// ReplaceCustom replaces the user-created locations
func (r *Registry) ReplaceCustom(ctx context.Context, records []Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom = r.normalizeCustom(records)
	return r.persist(ctx, CustomKey, r.custom)
}

func (r *Registry) persist(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.kv.Set(ctx, key, string(data)); err != nil {
		r.logger.Error("Failed to persist locations", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func indexOf(list []Location, id string) int {
	for i, l := range list {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func cloneLocations(in []Location) []Location {
	out := make([]Location, len(in))
	copy(out, in)
	return out
}
