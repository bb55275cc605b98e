package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crismap/server/internal/locations"
	"github.com/crismap/server/internal/zones"
)

// Document is the export format
type Document struct {
	Custom      []locations.Location   `json:"custom"`
	Connections []locations.Connection `json:"connections"`
	Zones       []zones.Zone           `json:"zones"`
	Defaults    []locations.Location   `json:"defaults,omitempty"`
	Timestamp   string                 `json:"timestamp"`
}

// ImportDocument is the import format. A nil section is left untouched.
type ImportDocument struct {
	Custom      []locations.Location   `json:"custom"`
	Connections []locations.Connection `json:"connections"`
	Zones       json.RawMessage        `json:"zones"`
	Defaults    []locations.Location   `json:"defaults"`
}

// ImportResult reports how many records each imported section held
type ImportResult struct {
	Defaults    *int `json:"defaults,omitempty"`
	Custom      *int `json:"custom,omitempty"`
	Connections *int `json:"connections,omitempty"`
	Zones       *int `json:"zones,omitempty"`
}

// Service exports and imports the combined zone and location state
type Service struct {
	zones    *zones.Store
	registry *locations.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a service over the zone store and the location registry
func NewService(store *zones.Store, registry *locations.Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		zones:    store,
		registry: registry,
		logger:   logger.With(zap.String("component", "dataset")),
		now:      time.Now,
	}
}

// Export captures the current state. The shipped locations are included on request.
func (s *Service) Export(includeDefaults bool) Document {
	doc := Document{
		Custom:      s.registry.Custom(),
		Connections: s.registry.Connections(),
		Zones:       s.zones.Zones(),
		Timestamp:   s.now().UTC().Format(time.RFC3339),
	}
	if includeDefaults {
		doc.Defaults = s.registry.ShippedDefaults()
	}
	return doc
}

// Import applies each present section: defaults replace the per-field edits, custom
// locations and connections are replaced, and zones replace the effective list.
// Sections are applied in that order; the first failure stops the import.
func (s *Service) Import(ctx context.Context, doc ImportDocument) (ImportResult, error) {
	var result ImportResult

	if doc.Defaults != nil {
		if err := s.registry.ImportDefaults(ctx, doc.Defaults); err != nil {
			return result, fmt.Errorf("import defaults: %w", err)
		}
		result.Defaults = count(len(doc.Defaults))
	}
	if doc.Custom != nil {
		if err := s.registry.ReplaceCustom(ctx, doc.Custom); err != nil {
			return result, fmt.Errorf("import custom locations: %w", err)
		}
		result.Custom = count(len(doc.Custom))
	}
	if doc.Connections != nil {
		if err := s.registry.ReplaceConnections(ctx, doc.Connections); err != nil {
			return result, fmt.Errorf("import connections: %w", err)
		}
		result.Connections = count(len(doc.Connections))
	}

	if raw := bytes.TrimSpace(doc.Zones); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		records, skipped, err := zones.DecodeSnapshot(raw)
		if err != nil {
			s.logger.Warn("Ignoring zones section that is not an array", zap.Error(err))
		} else {
			if skipped > 0 {
				s.logger.Warn("Skipped malformed imported zones", zap.Int("skipped", skipped))
			}
			imported, err := s.zones.ImportSnapshot(ctx, records)
			if err != nil {
				return result, fmt.Errorf("import zones: %w", err)
			}
			result.Zones = count(len(imported))
		}
	}

	s.logger.Info("Imported dataset",
		zap.Bool("defaults", result.Defaults != nil),
		zap.Bool("custom", result.Custom != nil),
		zap.Bool("connections", result.Connections != nil),
		zap.Bool("zones", result.Zones != nil))
	return result, nil
}

func count(n int) *int { return &n }
