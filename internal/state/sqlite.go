package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/parcelstack-labs/parcelboard/internal/layout"
)

// SQLiteStore implements Store using SQLite. Layout metadata lives in
// dedicated columns; the panel set and filters persist as the serialized
// layout document.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite layout store instance.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single connection keeps :memory: databases coherent and serializes
	// writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return fmt.Errorf("failed to configure sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying connection for migrations and tests.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// SaveLayout creates the layout when its id is empty, otherwise updates it.
func (s *SQLiteStore) SaveLayout(l *layout.Layout, callerID string) (*layout.Layout, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}

	doc, err := layout.Serialize(layout.Document{
		Type:    l.Type,
		Panels:  l.Panels,
		Filters: l.Filters,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	saved := l.Clone()
	saved.SchemaVersion = layout.CurrentSchemaVersion
	saved.UpdatedAt = now

	if l.ID == "" {
		saved.ID = generateID()
		saved.OwnerID = callerID
		saved.CreatedAt = now
		saved.IsDefault = false

		_, err := s.db.Exec(
			`INSERT INTO layouts (id, owner_id, name, description, layout_type, document,
			                      is_default, is_public, schema_version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
			saved.ID, saved.OwnerID, saved.Name, saved.Description, string(saved.Type), string(doc),
			saved.IsPublic, saved.SchemaVersion, saved.CreatedAt, saved.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create layout: %w", err)
		}
		return saved, nil
	}

	owner, err := s.layoutOwner(l.ID)
	if err != nil {
		return nil, err
	}
	if owner != callerID {
		return nil, fmt.Errorf("update layout %s: %w", l.ID, ErrPermissionDenied)
	}

	res, err := s.db.Exec(
		`UPDATE layouts
		 SET name = ?, description = ?, layout_type = ?, document = ?,
		     is_public = ?, schema_version = ?, updated_at = ?
		 WHERE id = ?`,
		saved.Name, saved.Description, string(saved.Type), string(doc),
		saved.IsPublic, saved.SchemaVersion, saved.UpdatedAt, saved.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update layout: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("update layout %s: %w", l.ID, ErrNotFound)
	}

	return s.GetLayout(saved.ID, callerID)
}

// GetLayout returns the layout when callerID owns it or it is public.
func (s *SQLiteStore) GetLayout(id, callerID string) (*layout.Layout, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, owner_id, name, description, layout_type, document,
		        is_default, is_public, schema_version, created_at, updated_at
		 FROM layouts
		 WHERE id = ? AND (owner_id = ? OR is_public = 1)`,
		id, callerID,
	)
	l, err := scanLayout(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("layout %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ListLayouts returns the caller's own layouts plus all public ones,
// ordered by name. Rows whose stored document cannot be decoded are
// logged and skipped rather than failing the whole listing.
func (s *SQLiteStore) ListLayouts(callerID string) ([]*layout.Layout, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, owner_id, name, description, layout_type, document,
		        is_default, is_public, schema_version, created_at, updated_at
		 FROM layouts
		 WHERE owner_id = ? OR is_public = 1
		 ORDER BY name, id`,
		callerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list layouts: %w", err)
	}
	defer rows.Close()

	var layouts []*layout.Layout
	for rows.Next() {
		l, err := scanLayout(rows)
		if err != nil {
			// One unreadable document must not hide every other layout
			// from the listing; loading it individually still reports
			// the typed error.
			if errors.Is(err, layout.ErrCorruptLayout) || errors.Is(err, layout.ErrUnsupportedVersion) {
				slog.Warn("skipping unreadable layout", "error", err)
				continue
			}
			return nil, err
		}
		layouts = append(layouts, l)
	}
	return layouts, rows.Err()
}

// DeleteLayout removes an owned layout. Deleting by a non-owner fails with
// ErrPermissionDenied and performs no mutation.
func (s *SQLiteStore) DeleteLayout(id, callerID string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	owner, err := s.layoutOwner(id)
	if err != nil {
		return err
	}
	if owner != callerID {
		return fmt.Errorf("delete layout %s: %w", id, ErrPermissionDenied)
	}

	_, err = s.db.Exec(`DELETE FROM layouts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete layout: %w", err)
	}
	return nil
}

// CloneLayout deep-copies a readable layout into a new caller-owned layout.
// The clone gets a fresh id and fresh timestamps; the default and public
// flags are cleared, so cloning a shared layout never republishes it under
// the new owner. An empty newName falls back to "<original> (copy)".
func (s *SQLiteStore) CloneLayout(id, newName, callerID string) (*layout.Layout, error) {
	src, err := s.GetLayout(id, callerID)
	if err != nil {
		return nil, err
	}

	clone := src.Clone()
	clone.ID = ""
	clone.OwnerID = callerID
	clone.IsDefault = false
	clone.IsPublic = false
	if newName != "" {
		clone.Name = newName
	} else {
		clone.Name = src.Name + " (copy)"
	}

	return s.SaveLayout(clone, callerID)
}

// SetDefault marks the layout as the owner's default. The clear and set run
// in one transaction so at most one default per owner is ever observable.
func (s *SQLiteStore) SetDefault(ownerID, id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRow(`SELECT owner_id FROM layouts WHERE id = ?`, id).Scan(&owner)
	if err == sql.ErrNoRows {
		return fmt.Errorf("layout %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up layout: %w", err)
	}
	if owner != ownerID {
		return fmt.Errorf("set default on layout %s: %w", id, ErrPermissionDenied)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := tx.Exec(
		`UPDATE layouts SET is_default = 0 WHERE owner_id = ? AND is_default = 1`, ownerID,
	); err != nil {
		return fmt.Errorf("failed to clear default flag: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE layouts SET is_default = 1, updated_at = ? WHERE id = ?`, now, id,
	); err != nil {
		return fmt.Errorf("failed to set default flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit default change: %w", err)
	}
	return nil
}

// GetDefault returns the owner's default layout, or ErrNotFound if none.
func (s *SQLiteStore) GetDefault(ownerID string) (*layout.Layout, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, owner_id, name, description, layout_type, document,
		        is_default, is_public, schema_version, created_at, updated_at
		 FROM layouts
		 WHERE owner_id = ? AND is_default = 1`,
		ownerID,
	)
	l, err := scanLayout(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("default layout for %s: %w", ownerID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// layoutOwner returns the owner of a layout regardless of visibility.
func (s *SQLiteStore) layoutOwner(id string) (string, error) {
	var owner string
	err := s.db.QueryRow(`SELECT owner_id FROM layouts WHERE id = ?`, id).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("layout %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up layout: %w", err)
	}
	return owner, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanLayout hydrates a layout row, deserializing the document column. A
// corrupt or too-new document propagates as the serializer's typed error so
// callers can surface "layout could not be loaded" instead of a partial one.
func scanLayout(row scanner) (*layout.Layout, error) {
	var (
		l           layout.Layout
		layoutType  string
		document    string
		description sql.NullString
	)
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.Name, &description, &layoutType, &document,
		&l.IsDefault, &l.IsPublic, &l.SchemaVersion, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Description = description.String
	l.Type = layout.Type(layoutType)

	doc, err := layout.Deserialize([]byte(document))
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", l.ID, err)
	}
	l.Panels = doc.Panels
	l.Filters = doc.Filters
	// A migrated document is current once deserialized.
	l.SchemaVersion = doc.SchemaVersion

	return &l, nil
}
