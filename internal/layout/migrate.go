package layout

import (
	"fmt"
	"math"
)

// migration is one pure step of the schema upgrade pipeline, taking a
// decoded document at version N and returning it at version N+1. Steps
// never mutate their input.
type migration func(map[string]any) (map[string]any, error)

// migrations[i] upgrades a v(i+1) document to v(i+2). The chain is applied
// in order until the document reaches CurrentSchemaVersion; applying it to
// a document already at the current version is a no-op.
var migrations = []migration{
	migrateGeometryToGrid,      // v1 -> v2
	migrateFiltersToCategories, // v2 -> v3
}

// migrate runs the pipeline from the given version to the current one.
func migrate(raw map[string]any, from int) (map[string]any, error) {
	for v := from; v < CurrentSchemaVersion; v++ {
		step := migrations[v-1]
		next, err := step(copyMap(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: migrating v%d to v%d: %v", ErrCorruptLayout, v, v+1, err)
		}
		next["schemaVersion"] = float64(v + 1)
		raw = next
	}
	return raw, nil
}

// migrateGeometryToGrid converts v1 free-form canvas geometry, stored as
// {x, y, width, height} fractions of the viewport, to the v2 grid model
// {row, col, widthPercent, heightPercent}. Positions snap to a 2x2 grid,
// which matches every layout template v1 supported.
func migrateGeometryToGrid(raw map[string]any) (map[string]any, error) {
	panels, ok := raw["panels"].([]any)
	if !ok {
		return nil, fmt.Errorf("panels field missing or not a list")
	}

	for i, p := range panels {
		pm, ok := p.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("panel %d is not an object", i)
		}
		gm, ok := pm["geometry"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("panel %d has no geometry", i)
		}

		x, err := fraction(gm, "x")
		if err != nil {
			return nil, fmt.Errorf("panel %d: %w", i, err)
		}
		y, err := fraction(gm, "y")
		if err != nil {
			return nil, fmt.Errorf("panel %d: %w", i, err)
		}
		w, err := fraction(gm, "width")
		if err != nil {
			return nil, fmt.Errorf("panel %d: %w", i, err)
		}
		h, err := fraction(gm, "height")
		if err != nil {
			return nil, fmt.Errorf("panel %d: %w", i, err)
		}

		pm["geometry"] = map[string]any{
			"row":           math.Round(y * 2),
			"col":           math.Round(x * 2),
			"widthPercent":  w * 100,
			"heightPercent": h * 100,
		}
	}
	return raw, nil
}

// geographyFields are the v2 flat-filter keys that belong to the
// "geography" category; everything else files under "attributes".
var geographyFields = map[string]struct{}{
	"state":  {},
	"county": {},
	"city":   {},
	"zip":    {},
	"region": {},
}

// migrateFiltersToCategories lifts the v2 flat filter map into the v3
// category-keyed FilterSet shape, and renames the "list" content type to
// "property-list".
func migrateFiltersToCategories(raw map[string]any) (map[string]any, error) {
	if flat, ok := raw["filters"].(map[string]any); ok && len(flat) > 0 {
		// Already categorized documents (values are objects) pass through.
		categorized := make(map[string]any)
		geography := make(map[string]any)
		attributes := make(map[string]any)
		for k, v := range flat {
			if _, isObj := v.(map[string]any); isObj {
				categorized[k] = v
				continue
			}
			if _, geo := geographyFields[k]; geo {
				geography[k] = v
			} else {
				attributes[k] = v
			}
		}
		if len(geography) > 0 {
			categorized["geography"] = geography
		}
		if len(attributes) > 0 {
			categorized["attributes"] = attributes
		}
		raw["filters"] = categorized
	}

	panels, ok := raw["panels"].([]any)
	if !ok {
		return nil, fmt.Errorf("panels field missing or not a list")
	}
	for _, p := range panels {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if pm["contentType"] == "list" {
			pm["contentType"] = "property-list"
		}
	}
	return raw, nil
}

// fraction reads a numeric field expected to lie in [0,1].
func fraction(m map[string]any, key string) (float64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("geometry field %q missing", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("geometry field %q is not a number", key)
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("geometry field %q out of range [0,1]: %v", key, f)
	}
	return f, nil
}

// copyMap deep-copies a decoded JSON document so migration steps stay pure.
func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
