package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelstack-labs/parcelboard/internal/panel"
)

func TestBus_PublishDeliversInRegistrationOrder(t *testing.T) {
	b := NewBus()

	var order []string
	b.Subscribe(nil, func(_ *Propagation, _ Event) { order = append(order, "first") })
	b.Subscribe(nil, func(_ *Propagation, _ Event) { order = append(order, "second") })
	b.Subscribe(nil, func(_ *Propagation, _ Event) { order = append(order, "third") })

	b.Publish(Event{Type: "select", SourcePanel: "map-1"})

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBus_PredicateFiltersEvents(t *testing.T) {
	b := NewBus()

	var got []string
	b.Subscribe(func(evt Event) bool { return evt.Type == "select" }, func(_ *Propagation, evt Event) {
		got = append(got, evt.Type)
	})

	b.Publish(Event{Type: "select", SourcePanel: "map-1"})
	b.Publish(Event{Type: "highlight", SourcePanel: "map-1"})
	b.Publish(Event{Type: "select", SourcePanel: "list-1"})

	assert.Equal(t, []string{"select", "select"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()

	count := 0
	unsub := b.Subscribe(nil, func(_ *Propagation, _ Event) { count++ })

	b.Publish(Event{Type: "select", SourcePanel: "map-1"})
	unsub()
	b.Publish(Event{Type: "select", SourcePanel: "map-1"})

	assert.Equal(t, 1, count)

	// Calling unsubscribe twice must not remove another subscription.
	count2 := 0
	b.Subscribe(nil, func(_ *Propagation, _ Event) { count2++ })
	unsub()
	b.Publish(Event{Type: "select", SourcePanel: "map-1"})
	assert.Equal(t, 1, count2)
}

func TestBus_SubscribeDuringPublishIsDeferred(t *testing.T) {
	b := NewBus()

	lateCalls := 0
	b.Subscribe(nil, func(_ *Propagation, _ Event) {
		b.Subscribe(nil, func(_ *Propagation, _ Event) { lateCalls++ })
	})

	b.Publish(Event{Type: "select", SourcePanel: "map-1"})
	assert.Equal(t, 0, lateCalls, "subscription added mid-publish must not see the in-flight event")

	b.Publish(Event{Type: "select", SourcePanel: "map-1"})
	assert.Equal(t, 1, lateCalls, "subscription added mid-publish sees subsequent events")
}

func TestBus_PanicInHandlerDoesNotStopDelivery(t *testing.T) {
	b := NewBus()

	delivered := false
	b.Subscribe(nil, func(_ *Propagation, _ Event) { panic("renderer exploded") })
	b.Subscribe(nil, func(_ *Propagation, _ Event) { delivered = true })

	require.NotPanics(t, func() {
		b.Publish(Event{Type: "select", SourcePanel: "map-1"})
	})
	assert.True(t, delivered, "subscribers after a panicking one must still receive the event")
}

func TestBus_NestedPublishCycleIsDropped(t *testing.T) {
	b := NewBus()

	// Two list panels mirror each other's selection: each republishes
	// whatever it receives from the other. Without the guard this never
	// terminates.
	mapEvents, listEvents := 0, 0
	b.Subscribe(func(evt Event) bool { return evt.SourcePanel == "list-1" }, func(p *Propagation, _ Event) {
		mapEvents++
		p.Publish(Event{Type: "select", SourcePanel: "map-1"})
	})
	b.Subscribe(func(evt Event) bool { return evt.SourcePanel == "map-1" }, func(p *Propagation, _ Event) {
		listEvents++
		p.Publish(Event{Type: "select", SourcePanel: "list-1"})
	})

	b.Publish(Event{Type: "select", SourcePanel: "map-1"})

	// map-1 -> list handler -> list-1 -> map handler -> re-publish from
	// map-1 is dropped as a cycle.
	assert.Equal(t, 1, listEvents)
	assert.Equal(t, 1, mapEvents)
	assert.Equal(t, 1, b.DropTotal())

	drops := b.Drops()
	require.Len(t, drops, 1)
	assert.Equal(t, DropCycle, drops[0].Reason)
	assert.Equal(t, "map-1", drops[0].Event.SourcePanel)
	assert.Equal(t, []string{"map-1", "list-1"}, drops[0].Chain)
}

func TestBus_DepthCapCutsLongChains(t *testing.T) {
	b := NewBus(WithMaxDepth(3))

	// Each panel republishes as the next panel in line: p0 -> p1 -> p2 -> ...
	// Distinct sources, so the cycle check never fires; only the depth cap
	// can stop the chain.
	var seen []string
	b.Subscribe(nil, func(p *Propagation, evt Event) {
		seen = append(seen, evt.SourcePanel)
		next := Event{Type: "select", SourcePanel: evt.SourcePanel + "x"}
		p.Publish(next)
	})

	b.Publish(Event{Type: "select", SourcePanel: "p"})

	assert.Equal(t, []string{"p", "px", "pxx"}, seen)
	assert.Equal(t, 1, b.DropTotal())

	drops := b.Drops()
	require.Len(t, drops, 1)
	assert.Equal(t, DropDepth, drops[0].Reason)
	assert.Len(t, drops[0].Chain, 3)
}

func TestBus_FreshChainPerPublish(t *testing.T) {
	b := NewBus()

	b.Subscribe(func(evt Event) bool { return evt.SourcePanel == "map-1" }, func(p *Propagation, _ Event) {
		p.Publish(Event{Type: "select", SourcePanel: "list-1"})
	})

	b.Publish(Event{Type: "select", SourcePanel: "map-1"})
	b.Publish(Event{Type: "select", SourcePanel: "map-1"})

	// The second top-level publish starts a fresh chain; nothing about the
	// first publish can cause drops in the second.
	assert.Equal(t, 0, b.DropTotal())
}

func TestBus_PropagationChainAndDepth(t *testing.T) {
	b := NewBus()

	var chain []string
	var depth int
	b.Subscribe(func(evt Event) bool { return evt.SourcePanel == "map-1" }, func(p *Propagation, _ Event) {
		p.Publish(Event{Type: "select", SourcePanel: "list-1"})
	})
	b.Subscribe(func(evt Event) bool { return evt.SourcePanel == "list-1" }, func(p *Propagation, _ Event) {
		chain = p.Chain()
		depth = p.Depth()
	})

	b.Publish(Event{Type: "select", SourcePanel: "map-1"})

	assert.Equal(t, []string{"map-1", "list-1"}, chain)
	assert.Equal(t, 2, depth)
}

func TestBus_SubscribePanel(t *testing.T) {
	b := NewBus()

	var got []Event
	unsub, err := b.SubscribePanel("list-1", []string{"map-1", "filter-1"}, func(_ *Propagation, evt Event) {
		got = append(got, evt)
	})
	require.NoError(t, err)

	b.Publish(Event{Type: "select", SourcePanel: "map-1"})
	b.Publish(Event{Type: "select", SourcePanel: "stats-1"}) // not a declared source
	b.Publish(Event{Type: "filter-changed", SourcePanel: "filter-1"})

	require.Len(t, got, 2)
	assert.Equal(t, "map-1", got[0].SourcePanel)
	assert.Equal(t, "filter-1", got[1].SourcePanel)

	topo := b.Topology()
	assert.Equal(t, 3, topo.PanelCount())
	assert.Equal(t, []string{"list-1"}, topo.Reactors("map-1"))

	unsub()
	b.Publish(Event{Type: "select", SourcePanel: "map-1"})
	assert.Len(t, got, 2, "unsubscribed panel must not receive events")
	assert.NotContains(t, b.Topology().Sources("list-1"), "map-1")
}

func TestBus_SubscribePanel_RequiresID(t *testing.T) {
	b := NewBus()
	_, err := b.SubscribePanel("", []string{"map-1"}, func(_ *Propagation, _ Event) {})
	assert.Error(t, err)
}

func TestBus_SubscribePanel_SelfSourceRejected(t *testing.T) {
	b := NewBus()
	_, err := b.SubscribePanel("map-1", []string{"map-1"}, func(_ *Propagation, _ Event) {})
	assert.Error(t, err)
}

// Two maps mirroring each other's viewport: the declared topology is cyclic,
// each event still makes exactly one full round before the guard cuts it.
func TestBus_MirroredPanelsScenario(t *testing.T) {
	b := NewBus()

	var aViewports, bViewports []any
	_, err := b.SubscribePanel("map-a", []string{"map-b"}, func(p *Propagation, evt Event) {
		aViewports = append(aViewports, evt.Payload)
		p.Publish(Event{Type: "viewport", Payload: evt.Payload, SourcePanel: "map-a"})
	})
	require.NoError(t, err)
	_, err = b.SubscribePanel("map-b", []string{"map-a"}, func(p *Propagation, evt Event) {
		bViewports = append(bViewports, evt.Payload)
		p.Publish(Event{Type: "viewport", Payload: evt.Payload, SourcePanel: "map-b"})
	})
	require.NoError(t, err)

	b.Publish(Event{Type: "viewport", Payload: "37.77,-122.41", SourcePanel: "map-a"})
	b.Publish(Event{Type: "viewport", Payload: "40.71,-74.00", SourcePanel: "map-b"})

	// Each viewport change crosses to the mirror and echoes back exactly
	// once; the echo's re-publish is then dropped.
	assert.Equal(t, []any{"37.77,-122.41", "40.71,-74.00"}, aViewports)
	assert.Equal(t, []any{"37.77,-122.41", "40.71,-74.00"}, bViewports)
	assert.Equal(t, 2, b.DropTotal())
	for _, d := range b.Drops() {
		assert.Equal(t, DropCycle, d.Reason)
	}
}

// A map selection flows through the bus into a stats panel's live state.
func TestBus_SelectionReachesReactorState(t *testing.T) {
	reg := panel.NewRegistry()
	require.NoError(t, reg.Register(&panel.Descriptor{
		ID: "map-1", ContentType: panel.ContentMap, Visible: true,
	}))
	require.NoError(t, reg.Register(&panel.Descriptor{
		ID: "stats-1", ContentType: panel.ContentStats, Visible: true,
	}))

	b := NewBus()
	b.Subscribe(func(evt Event) bool { return evt.Type == "select" }, func(_ *Propagation, evt Event) {
		payload, _ := evt.Payload.(map[string]any)
		_, err := reg.Update("stats-1", panel.Patch{
			State: map[string]any{"selectedEntity": payload["entity"]},
		})
		require.NoError(t, err)
	})

	b.Publish(Event{
		Type:        "select",
		Payload:     map[string]any{"entity": "CA"},
		SourcePanel: "map-1",
	})

	var found bool
	for _, d := range reg.List() {
		if d.ID == "stats-1" {
			found = true
			assert.Equal(t, "CA", d.State["selectedEntity"])
		}
	}
	require.True(t, found)
}

func TestBus_DropRingIsBounded(t *testing.T) {
	b := NewBus()

	b.Subscribe(func(evt Event) bool { return evt.SourcePanel == "a" }, func(p *Propagation, _ Event) {
		p.Publish(Event{Type: "echo", SourcePanel: "a"})
	})

	for i := 0; i < maxDropRecords+10; i++ {
		b.Publish(Event{Type: "echo", SourcePanel: "a"})
	}

	assert.Equal(t, maxDropRecords+10, b.DropTotal())
	assert.Len(t, b.Drops(), maxDropRecords)
}
