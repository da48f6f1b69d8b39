// Package panel provides the panel registry: the single authoritative store
// for the live configuration of every mounted dashboard panel. The registry
// is a passive container; it never publishes sync events itself, keeping
// "what changed" separate from "who should react".
package panel

import "fmt"

// ContentType identifies which renderer owns a panel.
type ContentType string

// Supported panel content types.
const (
	ContentMap          ContentType = "map"
	ContentPropertyList ContentType = "property-list"
	ContentFilter       ContentType = "filter"
	ContentStats        ContentType = "stats"
	ContentChart        ContentType = "chart"
)

// Valid reports whether the content type is one of the known renderers.
func (c ContentType) Valid() bool {
	switch c {
	case ContentMap, ContentPropertyList, ContentFilter, ContentStats, ContentChart:
		return true
	}
	return false
}

// Geometry places a panel on the dashboard grid. Width and height are
// percentages of the grid area.
type Geometry struct {
	Row       int     `json:"row"`
	Col       int     `json:"col"`
	WidthPct  float64 `json:"widthPercent"`
	HeightPct float64 `json:"heightPercent"`
}

// Validate checks the geometry constraints.
func (g Geometry) Validate() error {
	if g.Row < 0 || g.Col < 0 {
		return fmt.Errorf("grid position must be non-negative, got row=%d col=%d", g.Row, g.Col)
	}
	if g.WidthPct < 0 || g.WidthPct > 100 {
		return fmt.Errorf("width percent out of range [0,100]: %v", g.WidthPct)
	}
	if g.HeightPct < 0 || g.HeightPct > 100 {
		return fmt.Errorf("height percent out of range [0,100]: %v", g.HeightPct)
	}
	return nil
}

// Descriptor is the identity and live configuration of one visual panel.
// State is an opaque, content-type-specific payload (selection, zoom level,
// chart mode); the synchronization core never interprets it.
type Descriptor struct {
	ID          string         `json:"id"`
	ContentType ContentType    `json:"contentType"`
	Title       string         `json:"title"`
	Geometry    Geometry       `json:"geometry"`
	State       map[string]any `json:"state,omitempty"`
	Visible     bool           `json:"visible"`
}

// Validate checks the descriptor's invariants.
func (d *Descriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("panel id is required")
	}
	if !d.ContentType.Valid() {
		return fmt.Errorf("unknown content type %q", d.ContentType)
	}
	if err := d.Geometry.Validate(); err != nil {
		return fmt.Errorf("panel %s: %w", d.ID, err)
	}
	return nil
}

// Clone returns a deep copy of the descriptor. State values are copied at
// the top level; panels are expected to treat nested payloads as immutable.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	if d.State != nil {
		c.State = make(map[string]any, len(d.State))
		for k, v := range d.State {
			c.State[k] = v
		}
	}
	return &c
}
