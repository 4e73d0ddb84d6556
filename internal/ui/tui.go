// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and feeds it noise voice events
package ui

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-noise/pkg/event"
	tea "github.com/charmbracelet/bubbletea"
)

// Options configures the player TUI
type Options struct {
	Voice      Voice
	Events     event.Sink
	SampleRate int

	// Output enables the volume keys when set
	Output VolumeControl

	// Serving is the stream address shown when serving or connected
	Serving string

	// Clients reports connected listeners in serve mode
	Clients func() int
}

// NewModel creates a new TUI model
func NewModel(opts Options) Model {
	return Model{
		voice:     opts.Voice,
		output:    opts.Output,
		clients:   opts.Clients,
		noiseType: opts.Voice.Type(),
		length:    opts.Voice.Length(),
		rate:      opts.SampleRate,
		volume:    100,
		serving:   opts.Serving,
		startTime: time.Now(),
	}
}

// eventQueue is how many voice events may wait for the program before
// new ones are dropped
const eventQueue = 64

// forwarder hands dispatched events to the program one at a time so the
// model sees them in dispatch order. listen never blocks the dispatcher.
type forwarder struct {
	mu     sync.Mutex
	closed bool
	events chan event.Event
}

func newForwarder(size int) *forwarder {
	return &forwarder{events: make(chan event.Event, size)}
}

func (f *forwarder) listen(e event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.events <- e:
	default:
	}
}

// run delivers queued events until close is called
func (f *forwarder) run(send func(tea.Msg)) {
	for e := range f.events {
		send(EventMsg(e))
	}
}

func (f *forwarder) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

// Run starts the TUI and blocks until the user quits
func Run(opts Options) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())

	if opts.Events != nil {
		fw := newForwarder(eventQueue)
		id := opts.Events.Subscribe(event.Wildcard, fw.listen)
		go fw.run(p.Send)
		defer func() {
			opts.Events.Unsubscribe(id)
			fw.close()
		}()
	}

	_, err := p.Run()
	return err
}
