package layout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelstack-labs/parcelboard/internal/filter"
	"github.com/parcelstack-labs/parcelboard/internal/panel"
)

func dualDocument() Document {
	return Document{
		Type: TypeDual,
		Panels: []*panel.Descriptor{
			{
				ID:          "map-1",
				ContentType: panel.ContentMap,
				Title:       "Map",
				Geometry:    panel.Geometry{Row: 0, Col: 0, WidthPct: 50, HeightPct: 100},
				State:       map[string]any{"zoom": float64(12), "selection": "parcel-42"},
				Visible:     true,
			},
			{
				ID:          "list-1",
				ContentType: panel.ContentPropertyList,
				Title:       "Listings",
				Geometry:    panel.Geometry{Row: 0, Col: 1, WidthPct: 50, HeightPct: 100},
				Visible:     true,
			},
		},
		Filters: filter.Set{
			"geography": {"city": "Oakland"},
			"price":     {"max": float64(900000)},
		},
	}
}

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	doc := dualDocument()

	data, err := Serialize(doc)
	require.NoError(t, err)

	got, err := Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, CurrentSchemaVersion, got.SchemaVersion)
	assert.Equal(t, doc.Type, got.Type)
	assert.Equal(t, doc.Panels, got.Panels)
	assert.Equal(t, doc.Filters, got.Filters)
}

func TestSerialize_StampsCurrentVersion(t *testing.T) {
	doc := dualDocument()
	doc.SchemaVersion = 1 // ignored; writers always emit the current version

	data, err := Serialize(doc)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(CurrentSchemaVersion), raw["schemaVersion"])
}

func TestSerialize_RejectsInvalidDocuments(t *testing.T) {
	doc := dualDocument()
	doc.Type = "hexagonal"
	_, err := Serialize(doc)
	assert.ErrorIs(t, err, ErrCorruptLayout)

	doc = dualDocument()
	doc.Panels = nil
	_, err = Serialize(doc)
	assert.ErrorIs(t, err, ErrCorruptLayout)

	doc = dualDocument()
	doc.Type = TypeSingle // capacity 1, two panels
	_, err = Serialize(doc)
	assert.ErrorIs(t, err, ErrCorruptLayout)

	doc = dualDocument()
	doc.Panels[1].ID = "map-1"
	_, err = Serialize(doc)
	assert.ErrorIs(t, err, ErrCorruptLayout)
}

func TestDeserialize_RejectsMalformedJSON(t *testing.T) {
	_, err := Deserialize([]byte(`{"layoutType": "dual",`))
	assert.ErrorIs(t, err, ErrCorruptLayout)
}

func TestDeserialize_RejectsNewerVersions(t *testing.T) {
	_, err := Deserialize([]byte(`{"schemaVersion": 99, "layoutType": "single", "panels": []}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestDeserialize_RejectsNonIntegerVersion(t *testing.T) {
	for _, doc := range []string{
		`{"schemaVersion": "three", "layoutType": "single", "panels": []}`,
		`{"schemaVersion": 1.5, "layoutType": "single", "panels": []}`,
		`{"schemaVersion": 0, "layoutType": "single", "panels": []}`,
	} {
		_, err := Deserialize([]byte(doc))
		assert.ErrorIs(t, err, ErrCorruptLayout, doc)
	}
}

func TestDeserialize_MigratesV2FlatFilters(t *testing.T) {
	v2 := `{
		"schemaVersion": 2,
		"layoutType": "dual",
		"panels": [
			{"id": "map-1", "contentType": "map", "geometry": {"row": 0, "col": 0, "widthPercent": 50, "heightPercent": 100}, "visible": true},
			{"id": "list-1", "contentType": "list", "geometry": {"row": 0, "col": 1, "widthPercent": 50, "heightPercent": 100}, "visible": true}
		],
		"filters": {"city": "Oakland", "state": "CA", "beds": 3, "maxPrice": 750000}
	}`

	doc, err := Deserialize([]byte(v2))
	require.NoError(t, err)

	assert.Equal(t, CurrentSchemaVersion, doc.SchemaVersion)

	// Flat geographic keys move under "geography", the rest under "attributes".
	assert.Equal(t, filter.Set{
		"geography":  {"city": "Oakland", "state": "CA"},
		"attributes": {"beds": float64(3), "maxPrice": float64(750000)},
	}, doc.Filters)

	// The "list" content type was renamed.
	assert.Equal(t, panel.ContentPropertyList, doc.Panels[1].ContentType)
}

func TestDeserialize_MigratesV1CanvasGeometry(t *testing.T) {
	// v1 documents carry no schemaVersion field and use viewport-fraction
	// geometry.
	v1 := `{
		"layoutType": "dual",
		"panels": [
			{"id": "map-1", "contentType": "map", "geometry": {"x": 0, "y": 0, "width": 0.5, "height": 1}, "visible": true},
			{"id": "list-1", "contentType": "list", "geometry": {"x": 0.5, "y": 0, "width": 0.5, "height": 1}, "visible": true}
		]
	}`

	doc, err := Deserialize([]byte(v1))
	require.NoError(t, err)

	assert.Equal(t, CurrentSchemaVersion, doc.SchemaVersion)

	require.Len(t, doc.Panels, 2)
	assert.Equal(t, panel.Geometry{Row: 0, Col: 0, WidthPct: 50, HeightPct: 100}, doc.Panels[0].Geometry)
	assert.Equal(t, panel.Geometry{Row: 0, Col: 1, WidthPct: 50, HeightPct: 100}, doc.Panels[1].Geometry)
	assert.Equal(t, panel.ContentPropertyList, doc.Panels[1].ContentType)
}

func TestDeserialize_V1BadGeometryIsCorrupt(t *testing.T) {
	v1 := `{
		"layoutType": "single",
		"panels": [
			{"id": "map-1", "contentType": "map", "geometry": {"x": 1.5, "y": 0, "width": 0.5, "height": 1}, "visible": true}
		]
	}`
	_, err := Deserialize([]byte(v1))
	assert.ErrorIs(t, err, ErrCorruptLayout)
}

func TestDeserialize_CurrentVersionIsUntouched(t *testing.T) {
	// A current-version document with category-keyed filters must pass
	// through the pipeline without any migration step firing.
	data, err := Serialize(dualDocument())
	require.NoError(t, err)

	first, err := Deserialize(data)
	require.NoError(t, err)

	reencoded, err := Serialize(first)
	require.NoError(t, err)
	second, err := Deserialize(reencoded)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMigrate_StepsArePure(t *testing.T) {
	raw := map[string]any{
		"layoutType": "single",
		"panels": []any{
			map[string]any{
				"id":          "map-1",
				"contentType": "list",
				"geometry":    map[string]any{"x": 0.0, "y": 0.0, "width": 1.0, "height": 1.0},
				"visible":     true,
			},
		},
	}

	migrated, err := migrate(raw, 1)
	require.NoError(t, err)

	// Input document is untouched.
	p := raw["panels"].([]any)[0].(map[string]any)
	assert.Equal(t, "list", p["contentType"])
	assert.Contains(t, p["geometry"].(map[string]any), "x")

	mp := migrated["panels"].([]any)[0].(map[string]any)
	assert.Equal(t, "property-list", mp["contentType"])
	assert.Equal(t, float64(CurrentSchemaVersion), migrated["schemaVersion"])
}

func TestLayout_Validate(t *testing.T) {
	l := &Layout{
		Name: "Side by side",
		Type: TypeDual,
		Panels: []*panel.Descriptor{
			{ID: "map-1", ContentType: panel.ContentMap, Visible: true},
		},
	}
	require.NoError(t, l.Validate())

	l.Name = ""
	assert.Error(t, l.Validate())

	l.Name = "Side by side"
	l.Type = "pentagonal"
	assert.Error(t, l.Validate())

	l.Type = TypeSingle
	l.Panels = append(l.Panels, &panel.Descriptor{ID: "x", ContentType: panel.ContentStats})
	assert.Error(t, l.Validate(), "over capacity")
}

func TestLayout_Clone(t *testing.T) {
	l := &Layout{
		Name: "Side by side",
		Type: TypeDual,
		Panels: []*panel.Descriptor{
			{ID: "map-1", ContentType: panel.ContentMap, State: map[string]any{"zoom": 12}},
		},
		Filters: filter.Set{"geography": {"city": "Oakland"}},
	}

	c := l.Clone()
	c.Panels[0].State["zoom"] = 99
	c.Filters["geography"]["city"] = "Berkeley"

	assert.Equal(t, 12, l.Panels[0].State["zoom"])
	assert.Equal(t, "Oakland", l.Filters["geography"]["city"])
}
