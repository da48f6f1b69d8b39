// Package layout defines the persisted dashboard layout model and its
// versioned serialization format, including the schema migration pipeline
// that upgrades older persisted documents on load.
package layout

import (
	"fmt"
	"time"

	"github.com/parcelstack-labs/parcelboard/internal/filter"
	"github.com/parcelstack-labs/parcelboard/internal/panel"
)

// Type determines the canonical geometry template of a layout.
type Type string

// Layout types.
const (
	TypeSingle Type = "single"
	TypeDual   Type = "dual"
	TypeTri    Type = "tri"
	TypeQuad   Type = "quad"
)

// Valid reports whether the layout type is known.
func (t Type) Valid() bool {
	switch t {
	case TypeSingle, TypeDual, TypeTri, TypeQuad:
		return true
	}
	return false
}

// Capacity returns the number of panels the template accommodates.
func (t Type) Capacity() int {
	switch t {
	case TypeSingle:
		return 1
	case TypeDual:
		return 2
	case TypeTri:
		return 3
	case TypeQuad:
		return 4
	}
	return 0
}

// Layout is a named, persisted dashboard configuration: a set of panel
// snapshots (state included) plus the active filters. A layout is owned
// exclusively by OwnerID; IsPublic grants read-only visibility to others,
// never co-ownership.
type Layout struct {
	ID            string             `json:"id,omitempty"`
	OwnerID       string             `json:"ownerId"`
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	Type          Type               `json:"layoutType"`
	Panels        []*panel.Descriptor `json:"panels"`
	Filters       filter.Set         `json:"filters,omitempty"`
	IsDefault     bool               `json:"isDefault"`
	IsPublic      bool               `json:"isPublic"`
	SchemaVersion int                `json:"schemaVersion"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// Validate checks the layout's structural invariants.
func (l *Layout) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("layout name is required")
	}
	if !l.Type.Valid() {
		return fmt.Errorf("unknown layout type %q", l.Type)
	}
	if len(l.Panels) > l.Type.Capacity() {
		return fmt.Errorf("layout type %q holds at most %d panels, got %d",
			l.Type, l.Type.Capacity(), len(l.Panels))
	}
	seen := make(map[string]struct{}, len(l.Panels))
	for _, d := range l.Panels {
		if err := d.Validate(); err != nil {
			return err
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("duplicate panel id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy of the layout.
func (l *Layout) Clone() *Layout {
	c := *l
	c.Panels = make([]*panel.Descriptor, len(l.Panels))
	for i, d := range l.Panels {
		c.Panels[i] = d.Clone()
	}
	c.Filters = l.Filters.Clone()
	return &c
}
