// ABOUTME: Event dispatcher
// ABOUTME: Subscribe, unsubscribe and dispatch typed notifications
package event

import (
	"sync"

	"github.com/google/uuid"
)

// Wildcard subscribes a listener to every event type
const Wildcard = "*"

// Event is a typed notification carrying the changed value
type Event struct {
	Type  string
	Value any
}

// Listener receives dispatched events
type Listener func(Event)

// Sink accepts listener registrations and dispatches events to them
type Sink interface {
	Subscribe(eventType string, l Listener) string
	Unsubscribe(id string) bool
	Dispatch(e Event)
}

type subscription struct {
	id        string
	eventType string
	listener  Listener
}

// Dispatcher is the default Sink
type Dispatcher struct {
	mu   sync.RWMutex
	subs []subscription
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers l for eventType and returns an id for Unsubscribe
func (d *Dispatcher) Subscribe(eventType string, l Listener) string {
	id := uuid.New().String()

	d.mu.Lock()
	d.subs = append(d.subs, subscription{id: id, eventType: eventType, listener: l})
	d.mu.Unlock()

	return id
}

// Unsubscribe removes a listener. It reports whether the id was known.
func (d *Dispatcher) Unsubscribe(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, s := range d.subs {
		if s.id == id {
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Dispatch delivers e to every matching listener in subscription order.
// Listeners may subscribe or unsubscribe while being called.
func (d *Dispatcher) Dispatch(e Event) {
	d.mu.RLock()
	subs := make([]subscription, 0, len(d.subs))
	for _, s := range d.subs {
		if s.eventType == e.Type || s.eventType == Wildcard {
			subs = append(subs, s)
		}
	}
	d.mu.RUnlock()

	for _, s := range subs {
		s.listener(e)
	}
}

// Len returns the number of registered listeners
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}
