// ABOUTME: Event notification package
// ABOUTME: Typed events delivered synchronously to subscribed listeners
// Package event provides a small synchronous event dispatcher.
//
// Listeners subscribe to an event type (or "*" for every type) and receive
// events in subscription order on the dispatching goroutine.
//
// Example:
//
//	d := event.NewDispatcher()
//	id := d.Subscribe("type_changed", func(e event.Event) {
//	    fmt.Println(e.Value)
//	})
//	d.Dispatch(event.Event{Type: "type_changed", Value: "pink"})
//	d.Unsubscribe(id)
package event
