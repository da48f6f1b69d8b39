package panel

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned for lookups and updates against a panel id that
// was never registered or has been unregistered.
var ErrNotFound = errors.New("panel not found")

// Registry maps panel ids to their live descriptors. All mutation goes
// through the documented operations so ownership stays auditable; List
// returns defensive copies so callers can never mutate registry state.
type Registry struct {
	mu     sync.RWMutex
	panels map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		panels: make(map[string]*Descriptor),
	}
}

// Register inserts or replaces the descriptor for its id. Registering the
// same id again is idempotent and replaces the stored descriptor.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panels[d.ID] = d.Clone()
	return nil
}

// Unregister removes the descriptor for id. Removing an unknown id returns
// ErrNotFound so callers can treat it as "nothing to do".
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.panels[id]; !ok {
		return fmt.Errorf("unregister %s: %w", id, ErrNotFound)
	}
	delete(r.panels, id)
	return nil
}

// Get returns a copy of the descriptor for id.
func (r *Registry) Get(id string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.panels[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return d.Clone(), nil
}

// Patch describes a partial update to a registered panel. Nil fields are
// left untouched; State keys are shallow-merged into the existing state.
type Patch struct {
	State    map[string]any `json:"state,omitempty"`
	Geometry *Geometry      `json:"geometry,omitempty"`
	Visible  *bool          `json:"visible,omitempty"`
}

// Update shallow-merges the patch into the stored descriptor. Updating an
// id that was never registered fails with ErrNotFound.
func (r *Registry) Update(id string, patch Patch) (*Descriptor, error) {
	if patch.Geometry != nil {
		if err := patch.Geometry.Validate(); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.panels[id]
	if !ok {
		return nil, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}

	if patch.State != nil {
		if d.State == nil {
			d.State = make(map[string]any, len(patch.State))
		}
		for k, v := range patch.State {
			d.State[k] = v
		}
	}
	if patch.Geometry != nil {
		d.Geometry = *patch.Geometry
	}
	if patch.Visible != nil {
		d.Visible = *patch.Visible
	}

	return d.Clone(), nil
}

// List returns a snapshot of all descriptors ordered by id. Mutating the
// result never affects registry state.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.panels))
	for _, d := range r.panels {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Count returns the number of registered panels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.panels)
}
