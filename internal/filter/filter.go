// Package filter provides composable filter criteria for dashboard data
// fetches. Filter sets attach to the dashboard or to individual panels and
// merge into a single query predicate consumed by the data-fetch layer.
package filter

import (
	"fmt"
	"sort"
	"strings"
)

// Criteria holds the values for one filter category, keyed by field name.
type Criteria map[string]any

// Set maps a filter category (geography, property attributes, price, ...)
// to its criteria. Merging is right-biased: applying set A then B equals
// applying Merge(A, B), with B winning on conflicting categories.
type Set map[string]Criteria

// Clone returns a deep copy of the set down to individual criteria keys.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for category, crit := range s {
		c := make(Criteria, len(crit))
		for k, v := range crit {
			c[k] = v
		}
		out[category] = c
	}
	return out
}

// Merge combines base and overlay into a new set. Categories present in
// only one side pass through unchanged; on conflict the overlay's criteria
// replace the base category wholesale, so Merge(a, b)[k] always equals b[k]
// for every category k in b. Neither input is modified.
func Merge(base, overlay Set) Set {
	merged := base.Clone()
	if merged == nil {
		merged = make(Set)
	}
	for category, crit := range overlay {
		c := make(Criteria, len(crit))
		for k, v := range crit {
			c[k] = v
		}
		merged[category] = c
	}
	return merged
}

// Predicate is the query fragment handed to the data-fetch layer: a
// placeholder expression plus its arguments. The translation is one-way;
// a predicate cannot be turned back into a Set.
type Predicate struct {
	Expr string
	Args []any
}

// Empty reports whether the predicate matches everything.
func (p Predicate) Empty() bool {
	return p.Expr == ""
}

// ToPredicate translates a filter set into a conjunctive query predicate.
// Fields are addressed as category.field; slice values become IN lists and
// scalar values become equality checks. Output ordering is deterministic
// so identical sets always produce identical predicates.
func ToPredicate(s Set) Predicate {
	if len(s) == 0 {
		return Predicate{}
	}

	categories := make([]string, 0, len(s))
	for category := range s {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var clauses []string
	var args []any

	for _, category := range categories {
		crit := s[category]
		fields := make([]string, 0, len(crit))
		for f := range crit {
			fields = append(fields, f)
		}
		sort.Strings(fields)

		for _, f := range fields {
			col := category + "." + f
			switch v := crit[f].(type) {
			case []any:
				if len(v) == 0 {
					continue
				}
				placeholders := strings.Repeat("?, ", len(v))
				clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, placeholders[:len(placeholders)-2]))
				args = append(args, v...)
			case []string:
				if len(v) == 0 {
					continue
				}
				placeholders := strings.Repeat("?, ", len(v))
				clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, placeholders[:len(placeholders)-2]))
				for _, sv := range v {
					args = append(args, sv)
				}
			default:
				clauses = append(clauses, col+" = ?")
				args = append(args, v)
			}
		}
	}

	if len(clauses) == 0 {
		return Predicate{}
	}
	return Predicate{
		Expr: strings.Join(clauses, " AND "),
		Args: args,
	}
}
