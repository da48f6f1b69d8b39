package sync

import (
	"fmt"
	"runtime/debug"
	"time"
)

// DropReason classifies why a nested publish was discarded.
type DropReason string

// Drop reasons.
const (
	// DropCycle means the event's source panel already appeared in the
	// propagation chain that produced it.
	DropCycle DropReason = "cycle"
	// DropDepth means the chain exceeded the configured depth cap.
	DropDepth DropReason = "depth"
)

// DropRecord is the diagnostic captured for a dropped event. Dropped events
// are non-fatal and are never retried; the would-be receiver simply does not
// see the update.
type DropRecord struct {
	Event  Event
	Reason DropReason
	Chain  []string
	At     time.Time
}

// Propagation carries the state of one synchronous delivery chain: the
// ordered list of source panels already visited and the current depth.
// Each top-level Bus.Publish starts a fresh chain.
type Propagation struct {
	bus      *Bus
	visited  []string
	depth    int
	maxDepth int
}

// Publish publishes a follow-up event from within a handler. The event is
// dropped, with a recorded diagnostic, if its source panel already appears
// in the chain or if the chain has reached the depth cap. Losing an event
// here is deliberate: guaranteed termination outranks guaranteed delivery.
func (p *Propagation) Publish(evt Event) {
	if p.seen(evt.SourcePanel) {
		p.bus.recordDrop(DropRecord{
			Event:  evt,
			Reason: DropCycle,
			Chain:  p.chain(),
			At:     time.Now().UTC(),
		})
		return
	}
	if p.depth >= p.maxDepth {
		p.bus.recordDrop(DropRecord{
			Event:  evt,
			Reason: DropDepth,
			Chain:  p.chain(),
			At:     time.Now().UTC(),
		})
		return
	}
	p.deliver(evt)
}

// Chain returns the visited source panels of this propagation, oldest first.
func (p *Propagation) Chain() []string {
	return p.chain()
}

// Depth returns the number of events delivered on this chain so far.
func (p *Propagation) Depth() int {
	return p.depth
}

// deliver appends the event's source to the chain and invokes every
// currently-registered matching subscriber in registration order.
func (p *Propagation) deliver(evt Event) {
	next := &Propagation{
		bus:      p.bus,
		visited:  append(p.chain(), evt.SourcePanel),
		depth:    p.depth + 1,
		maxDepth: p.maxDepth,
	}

	for _, sub := range p.bus.snapshot() {
		if sub.pred != nil && !sub.pred(evt) {
			continue
		}
		next.invoke(sub, evt)
	}
}

// invoke runs one handler, containing panics so a failing subscriber cannot
// prevent delivery to the rest.
func (p *Propagation) invoke(sub *subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			p.bus.logger.Error("subscriber panicked",
				"panel", sub.panelID,
				"type", evt.Type,
				"source", evt.SourcePanel,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	sub.fn(p, evt)
}

func (p *Propagation) seen(panelID string) bool {
	for _, id := range p.visited {
		if id == panelID {
			return true
		}
	}
	return false
}

func (p *Propagation) chain() []string {
	out := make([]string, len(p.visited))
	copy(out, p.visited)
	return out
}
