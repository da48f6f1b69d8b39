// Package state provides durable persistence of named layout configurations
// using SQLite. Layouts are scoped to their owner; public layouts are
// readable by everyone but writable only by the owner.
package state

import (
	"errors"

	"github.com/parcelstack-labs/parcelboard/internal/layout"
)

// Store failure conditions, distinguishable with errors.Is.
var (
	// ErrNotFound is returned when no layout visible to the caller matches
	// the requested id. Invisible private layouts report not-found rather
	// than permission-denied so their existence does not leak.
	ErrNotFound = errors.New("layout not found")
	// ErrPermissionDenied is returned for write or delete attempts by a
	// caller that does not own the layout. No partial mutation is performed.
	ErrPermissionDenied = errors.New("permission denied")
)

// Store defines layout persistence operations. Implementations must make
// SetDefault atomic: at most one layout per owner carries the default flag
// at any observable point, even under concurrent calls.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	// SaveLayout creates the layout when its id is empty, otherwise updates
	// it. Updates require callerID to match the stored owner.
	SaveLayout(l *layout.Layout, callerID string) (*layout.Layout, error)
	// GetLayout returns the layout when callerID owns it or it is public.
	GetLayout(id, callerID string) (*layout.Layout, error)
	// ListLayouts returns the caller's own layouts plus all public ones.
	ListLayouts(callerID string) ([]*layout.Layout, error)
	// DeleteLayout removes an owned layout.
	DeleteLayout(id, callerID string) error
	// CloneLayout deep-copies a readable layout into a new caller-owned
	// layout with a fresh id, cleared default flag and fresh timestamps.
	CloneLayout(id, newName, callerID string) (*layout.Layout, error)
	// SetDefault marks the layout as the owner's default, clearing the
	// flag from any other layout of the same owner first.
	SetDefault(ownerID, id string) error
	// GetDefault returns the owner's default layout, or ErrNotFound when
	// none is set.
	GetDefault(ownerID string) (*layout.Layout, error)
}
