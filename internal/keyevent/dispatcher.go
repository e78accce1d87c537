package keyevent

import "sort"

// Priority orders consumers. Lower values are asked first.
type Priority int

const (
	PriorityHighest Priority = -1000
	PriorityHigh    Priority = -100
	PriorityNormal  Priority = 0
	PriorityLow     Priority = 100
	PriorityLowest  Priority = 1000
)

// Consumer is a key event handler that can claim events.
type Consumer interface {
	// Claim reports whether the consumer takes ownership of ev.
	Claim(ev Event) bool

	// Handle processes an event the consumer claimed.
	Handle(ev Event)
}

type registration struct {
	name     string
	consumer Consumer
	priority Priority
	seq      int
}

// Dispatcher offers each event to its consumers in priority order; the
// first consumer that claims an event is the only one that handles it.
// Consumers with equal priority keep their registration order.
//
// A Dispatcher is not safe for concurrent use. It is driven from the
// connection's dispatch loop.
type Dispatcher struct {
	consumers []registration
	nextSeq   int
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a consumer.
func (d *Dispatcher) Register(name string, c Consumer, p Priority) {
	d.consumers = append(d.consumers, registration{
		name:     name,
		consumer: c,
		priority: p,
		seq:      d.nextSeq,
	})
	d.nextSeq++
	sort.SliceStable(d.consumers, func(i, j int) bool {
		if d.consumers[i].priority != d.consumers[j].priority {
			return d.consumers[i].priority < d.consumers[j].priority
		}
		return d.consumers[i].seq < d.consumers[j].seq
	})
}

// Unregister removes every registration of c.
func (d *Dispatcher) Unregister(c Consumer) {
	kept := d.consumers[:0]
	for _, r := range d.consumers {
		if r.consumer != c {
			kept = append(kept, r)
		}
	}
	d.consumers = kept
}

// Names returns consumer names in dispatch order.
func (d *Dispatcher) Names() []string {
	names := make([]string, len(d.consumers))
	for i, r := range d.consumers {
		names[i] = r.name
	}
	return names
}

// Dispatch offers ev to every consumer in order. It reports whether some
// consumer claimed it.
func (d *Dispatcher) Dispatch(ev Event) bool {
	return d.dispatchFrom(0, ev)
}

// Redispatch offers ev to the consumers ordered after from. A consumer
// that claimed an event but wants to pass it on uses this.
func (d *Dispatcher) Redispatch(ev Event, from Consumer) bool {
	for i, r := range d.consumers {
		if r.consumer == from {
			return d.dispatchFrom(i+1, ev)
		}
	}
	return false
}

func (d *Dispatcher) dispatchFrom(start int, ev Event) bool {
	for _, r := range d.consumers[start:] {
		if r.consumer.Claim(ev) {
			r.consumer.Handle(ev)
			return true
		}
	}
	return false
}
