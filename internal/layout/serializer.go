package layout

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parcelstack-labs/parcelboard/internal/filter"
	"github.com/parcelstack-labs/parcelboard/internal/panel"
)

// CurrentSchemaVersion tags documents written by this build. Bump it when
// the document shape changes and add the matching migration to migrations.
const CurrentSchemaVersion = 3

// Serialization failure conditions. Both are surfaced to the user as
// "layout could not be loaded" and are never coerced into a partial layout.
var (
	// ErrCorruptLayout means required fields are absent or malformed.
	ErrCorruptLayout = errors.New("corrupt layout document")
	// ErrUnsupportedVersion means the document was written by a newer
	// schema than this build understands; forward compatibility is not
	// attempted.
	ErrUnsupportedVersion = errors.New("unsupported layout schema version")
)

// Document is the serialized portion of a layout: the panel set, geometry
// template and active filters. Store metadata (id, owner, flags,
// timestamps) lives in dedicated columns, not in the document.
type Document struct {
	SchemaVersion int                 `json:"schemaVersion"`
	Type          Type                `json:"layoutType"`
	Panels        []*panel.Descriptor `json:"panels"`
	Filters       filter.Set          `json:"filters,omitempty"`
}

// Serialize encodes the document tagged with the current schema version.
func Serialize(doc Document) ([]byte, error) {
	doc.SchemaVersion = CurrentSchemaVersion
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode layout document: %w", err)
	}
	return data, nil
}

// Deserialize decodes a persisted document, migrating older schema versions
// forward before validation. Deserialize(Serialize(d)) == d for any valid d
// at the current schema version.
func Deserialize(data []byte) (Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrCorruptLayout, err)
	}

	version, err := documentVersion(raw)
	if err != nil {
		return Document{}, err
	}
	if version > CurrentSchemaVersion {
		return Document{}, fmt.Errorf("%w: document is v%d, this build reads up to v%d",
			ErrUnsupportedVersion, version, CurrentSchemaVersion)
	}

	raw, err = migrate(raw, version)
	if err != nil {
		return Document{}, err
	}

	// Re-encode the migrated map and decode into the typed document.
	migrated, err := json.Marshal(raw)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrCorruptLayout, err)
	}
	var doc Document
	if err := json.Unmarshal(migrated, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrCorruptLayout, err)
	}

	if err := validateDocument(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// documentVersion extracts the schemaVersion field. Documents predating
// version tagging are treated as v1.
func documentVersion(raw map[string]any) (int, error) {
	v, ok := raw["schemaVersion"]
	if !ok {
		return 1, nil
	}
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) || f < 1 {
		return 0, fmt.Errorf("%w: schemaVersion must be a positive integer, got %v", ErrCorruptLayout, v)
	}
	return int(f), nil
}

// validateDocument enforces the structural invariants shared with Layout.
func validateDocument(doc Document) error {
	if !doc.Type.Valid() {
		return fmt.Errorf("%w: unknown layout type %q", ErrCorruptLayout, doc.Type)
	}
	if len(doc.Panels) == 0 {
		return fmt.Errorf("%w: document has no panels", ErrCorruptLayout)
	}
	if len(doc.Panels) > doc.Type.Capacity() {
		return fmt.Errorf("%w: layout type %q holds at most %d panels, got %d",
			ErrCorruptLayout, doc.Type, doc.Type.Capacity(), len(doc.Panels))
	}
	seen := make(map[string]struct{}, len(doc.Panels))
	for _, d := range doc.Panels {
		if d == nil {
			return fmt.Errorf("%w: null panel entry", ErrCorruptLayout)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptLayout, err)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: duplicate panel id %q", ErrCorruptLayout, d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}
