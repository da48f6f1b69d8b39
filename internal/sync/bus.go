// Package sync provides the cross-panel synchronization core: a typed
// publish/subscribe bus, loop protection for propagation chains, and a
// reaction graph describing which panels react to which.
package sync

import (
	"fmt"
	"log/slog"
	"sync"
)

// DefaultMaxDepth is the propagation depth cap applied when no override
// is configured. A chain of nested publishes longer than this is cut off.
const DefaultMaxDepth = 8

// maxDropRecords bounds the in-memory drop diagnostics ring.
const maxDropRecords = 128

// Event is a single cross-panel notification. Events are immutable after
// creation and are never persisted.
type Event struct {
	// Type is the event tag, e.g. "select", "filter-changed", "highlight".
	Type string `json:"type"`
	// Payload carries type-specific data; the bus does not inspect it.
	Payload any `json:"payload,omitempty"`
	// SourcePanel is the id of the panel that produced the event.
	SourcePanel string `json:"sourcePanelId"`
}

// Predicate decides whether a subscriber receives an event.
// A nil predicate accepts everything.
type Predicate func(Event) bool

// Handler receives matching events. Handlers that want to publish follow-up
// events must do so through the Propagation handle so loop protection applies.
type Handler func(p *Propagation, evt Event)

type subscription struct {
	id   uint64
	pred Predicate
	fn   Handler
	// panelID is set for panel-bound subscriptions made via SubscribePanel.
	panelID string
}

// Bus delivers events synchronously, in subscriber-registration order, to
// every subscriber whose predicate accepts them. A panic in one handler is
// recovered and logged; remaining subscribers still receive the event.
type Bus struct {
	mu       sync.Mutex
	nextID   uint64
	subs     []*subscription
	maxDepth int
	logger   *slog.Logger

	graph *Graph

	drops     []DropRecord
	dropTotal int
}

// Option configures a Bus.
type Option func(*Bus)

// WithMaxDepth overrides the propagation depth cap.
func WithMaxDepth(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.maxDepth = n
		}
	}
}

// WithLogger sets the logger used for drop and panic diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBus creates an empty bus with the default depth cap.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.DiscardHandler),
		graph:    NewGraph(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers interest and returns an unsubscribe capability that
// deregisters exactly this subscription. Subscribing from within a handler
// is legal; the new subscription only sees subsequent publishes.
func (b *Bus) Subscribe(pred Predicate, fn Handler) func() {
	return b.subscribe(pred, fn, "")
}

// SubscribePanel registers a panel-bound subscription that reacts to events
// originating from the given source panels, and records the corresponding
// reaction edges in the bus topology. If the resulting topology contains a
// cycle it is logged as a warning; the runtime guard still guarantees
// termination, so this is diagnostic only.
func (b *Bus) SubscribePanel(panelID string, sources []string, fn Handler) (func(), error) {
	if panelID == "" {
		return nil, fmt.Errorf("panel id is required")
	}

	srcSet := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		srcSet[s] = struct{}{}
	}
	pred := func(evt Event) bool {
		_, ok := srcSet[evt.SourcePanel]
		return ok
	}

	b.mu.Lock()
	b.graph.AddPanel(panelID)
	for _, src := range sources {
		b.graph.AddPanel(src)
		if err := b.graph.AddReaction(src, panelID); err != nil {
			b.mu.Unlock()
			return nil, err
		}
	}
	if cyclic, path := b.graph.HasCycle(); cyclic {
		b.logger.Warn("panel reaction topology contains a cycle", "path", path)
	}
	b.mu.Unlock()

	unsub := b.subscribe(pred, fn, panelID)
	return func() {
		unsub()
		b.mu.Lock()
		b.graph.RemovePanel(panelID)
		b.mu.Unlock()
	}, nil
}

func (b *Bus) subscribe(pred Predicate, fn Handler, panelID string) func() {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, pred: pred, fn: fn, panelID: panelID}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == sub.id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish starts a new propagation chain and delivers the event to all
// matching subscribers before returning. There is no cancellation of an
// in-flight publish.
func (b *Bus) Publish(evt Event) {
	p := &Propagation{bus: b, maxDepth: b.maxDepth}
	p.deliver(evt)
}

// Topology returns a snapshot of the declared panel reaction graph.
func (b *Bus) Topology() *Graph {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.graph.Clone()
}

// snapshot returns the subscriber list as of now. Delivery iterates the
// snapshot so subscriptions added mid-publish are not delivered re-entrantly.
func (b *Bus) snapshot() []*subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*subscription, len(b.subs))
	copy(out, b.subs)
	return out
}

func (b *Bus) recordDrop(rec DropRecord) {
	b.mu.Lock()
	b.dropTotal++
	if len(b.drops) == maxDropRecords {
		b.drops = b.drops[1:]
	}
	b.drops = append(b.drops, rec)
	b.mu.Unlock()

	b.logger.Debug("event dropped",
		"reason", rec.Reason,
		"type", rec.Event.Type,
		"source", rec.Event.SourcePanel,
		"chain", rec.Chain,
	)
}

// Drops returns a copy of the most recent drop diagnostics.
func (b *Bus) Drops() []DropRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DropRecord, len(b.drops))
	copy(out, b.drops)
	return out
}

// DropTotal returns the total number of events dropped since creation.
func (b *Bus) DropTotal() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropTotal
}
