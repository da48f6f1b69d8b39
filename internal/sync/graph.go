package sync

import (
	"fmt"
	"sort"
)

// Graph records the declared reaction topology between panels: an edge from
// source to reactor means events originating at source may trigger an update
// in reactor. Unlike a build DAG, cycles are allowed to exist here (two map
// panels may legitimately mirror each other); the graph only reports them so
// callers can surface a diagnostic, while runtime termination is enforced by
// the Propagation guard.
type Graph struct {
	panels   map[string]struct{}
	reactors map[string][]string // source -> panels reacting to it
	sources  map[string][]string // reactor -> panels it reacts to
}

// NewGraph creates an empty reaction graph.
func NewGraph() *Graph {
	return &Graph{
		panels:   make(map[string]struct{}),
		reactors: make(map[string][]string),
		sources:  make(map[string][]string),
	}
}

// AddPanel registers a panel id. Adding an existing panel is a no-op.
func (g *Graph) AddPanel(id string) {
	if _, ok := g.panels[id]; ok {
		return
	}
	g.panels[id] = struct{}{}
	g.reactors[id] = []string{}
	g.sources[id] = []string{}
}

// RemovePanel removes a panel and every edge touching it.
func (g *Graph) RemovePanel(id string) {
	if _, ok := g.panels[id]; !ok {
		return
	}
	delete(g.panels, id)
	delete(g.reactors, id)
	delete(g.sources, id)
	for src, list := range g.reactors {
		g.reactors[src] = remove(list, id)
	}
	for reactor, list := range g.sources {
		g.sources[reactor] = remove(list, id)
	}
}

// AddReaction declares that reactor updates in response to events from source.
// Both panels must already be registered. Self-reactions are rejected since
// they are unconditional loops.
func (g *Graph) AddReaction(source, reactor string) error {
	if _, ok := g.panels[source]; !ok {
		return fmt.Errorf("source panel %q not registered", source)
	}
	if _, ok := g.panels[reactor]; !ok {
		return fmt.Errorf("reactor panel %q not registered", reactor)
	}
	if source == reactor {
		return fmt.Errorf("panel %q cannot react to itself", source)
	}

	if !contains(g.reactors[source], reactor) {
		g.reactors[source] = append(g.reactors[source], reactor)
	}
	if !contains(g.sources[reactor], source) {
		g.sources[reactor] = append(g.sources[reactor], source)
	}
	return nil
}

// Reactors returns the panels that react to events from the given source.
func (g *Graph) Reactors(source string) []string {
	return g.reactors[source]
}

// Sources returns the panels the given reactor listens to.
func (g *Graph) Sources(reactor string) []string {
	return g.sources[reactor]
}

// PanelCount returns the number of registered panels.
func (g *Graph) PanelCount() int {
	return len(g.panels)
}

// EdgeCount returns the number of declared reaction edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, list := range g.reactors {
		count += len(list)
	}
	return count
}

// HasCycle reports whether the reaction topology contains a loop, along with
// one offending path for diagnostics.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	cameFrom := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true

		for _, next := range g.reactors[id] {
			if !visited[next] {
				cameFrom[next] = id
				if dfs(next) {
					return true
				}
			} else if onStack[next] {
				cyclePath = []string{next}
				for curr := id; curr != next; curr = cameFrom[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{next}, cyclePath...)
				return true
			}
		}

		onStack[id] = false
		return false
	}

	ids := make([]string, 0, len(g.panels))
	for id := range g.panels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if !visited[id] {
			if dfs(id) {
				return true, cyclePath
			}
		}
	}
	return false, nil
}

// Affected returns the transitive set of panels that may need an update when
// the given panels change: the changed panels plus every downstream reactor.
func (g *Graph) Affected(changed []string) []string {
	affected := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		if affected[id] {
			return
		}
		affected[id] = true
		for _, next := range g.reactors[id] {
			mark(next)
		}
	}

	for _, id := range changed {
		if _, ok := g.panels[id]; ok {
			mark(id)
		}
	}

	out := make([]string, 0, len(affected))
	for id := range affected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the graph.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for id := range g.panels {
		c.AddPanel(id)
	}
	for src, list := range g.reactors {
		for _, reactor := range list {
			_ = c.AddReaction(src, reactor)
		}
	}
	return c
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
