// ABOUTME: NoiseVoice implementation
// ABOUTME: Builds noise buffers, swaps playback voices and emits change events
package noisevoice

import (
	"fmt"
	"math"
	"sync"

	"github.com/Resonate-Protocol/resonate-noise/pkg/audio/graph"
	"github.com/Resonate-Protocol/resonate-noise/pkg/event"
	"github.com/Resonate-Protocol/resonate-noise/pkg/noise"
	"github.com/Resonate-Protocol/resonate-noise/pkg/voice"
	"go.uber.org/zap"
)

// Event types emitted by a NoiseVoice
const (
	TypeChanged   = "type_changed"
	LengthChanged = "length_changed"
)

// PlaybackVoice plays one buffer and is replaced on every rebuild
type PlaybackVoice interface {
	Output() *graph.Gain
	NoteOn(note, volume, when float64) error
	NoteOff(when float64) error
}

// VoiceFactory constructs the playback voice around a freshly built buffer
type VoiceFactory func(ctx graph.Context, opts voice.Options) (PlaybackVoice, error)

// NewSampleVoice is the default VoiceFactory
func NewSampleVoice(ctx graph.Context, opts voice.Options) (PlaybackVoice, error) {
	v, err := voice.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Config holds noise voice configuration
type Config struct {
	// Type is the initial noise color (default: white)
	Type noise.Type

	// Length is the buffer size in samples (default: the context sample rate)
	Length int

	// Rand feeds the generators (default: seeded from the clock)
	Rand noise.Rand

	// Events receives change notifications (default: a new event.Dispatcher)
	Events event.Sink

	// NewVoice builds playback voices (default: NewSampleVoice)
	NewVoice VoiceFactory

	// Logger receives rebuild diagnostics (default: no-op)
	Logger *zap.Logger
}

// trigger remembers the sounding note so a rebuild can carry it over
type trigger struct {
	note   float64
	volume float64
	onAt   int64
	offAt  int64 // -1 when no note off is scheduled
}

// NoiseVoice is a looping noise instrument
type NoiseVoice struct {
	ctx      graph.Context
	output   *graph.Gain
	events   event.Sink
	newVoice VoiceFactory
	logger   *zap.Logger

	mu       sync.Mutex
	rand     noise.Rand
	typ      noise.Type
	length   int
	voice    PlaybackVoice
	held     *trigger
	rebuilds int
	closed   bool
}

// New creates a noise voice and builds its first buffer
func New(ctx graph.Context, config Config) (*NoiseVoice, error) {
	// Set defaults
	if config.Type == "" {
		config.Type = noise.White
	}
	if config.Length == 0 {
		config.Length = ctx.SampleRate()
	}
	if config.Rand == nil {
		config.Rand = noise.NewTimeRand()
	}
	if config.Events == nil {
		config.Events = event.NewDispatcher()
	}
	if config.NewVoice == nil {
		config.NewVoice = NewSampleVoice
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	n := &NoiseVoice{
		ctx:      ctx,
		output:   ctx.CreateGain(),
		events:   config.Events,
		newVoice: config.NewVoice,
		logger:   config.Logger,
		rand:     config.Rand,
		typ:      config.Type,
		length:   config.Length,
	}

	if err := n.build(n.length, n.typ); err != nil {
		return nil, err
	}

	return n, nil
}

// Output returns the node downstream mixes connect to
func (n *NoiseVoice) Output() *graph.Gain { return n.output }

// Events returns the sink change notifications are dispatched to
func (n *NoiseVoice) Events() event.Sink { return n.events }

// Type returns the current noise type
func (n *NoiseVoice) Type() noise.Type {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.typ
}

// Length returns the current buffer length in samples
func (n *NoiseVoice) Length() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.length
}

// Rebuilds returns how many buffers have been built, including the first
func (n *NoiseVoice) Rebuilds() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rebuilds
}

// SetType rebuilds the buffer with t, stores it and emits type_changed.
// Unrecognized types are stored as given and play white noise.
func (n *NoiseVoice) SetType(t noise.Type) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrClosed
	}
	if err := n.build(n.length, t); err != nil {
		n.mu.Unlock()
		return err
	}
	n.typ = t
	n.mu.Unlock()

	n.events.Dispatch(event.Event{Type: TypeChanged, Value: t})
	return nil
}

// SetLength rebuilds the buffer with v samples, stores it and emits
// length_changed
func (n *NoiseVoice) SetLength(v int) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrClosed
	}
	if err := n.build(v, n.typ); err != nil {
		n.mu.Unlock()
		return err
	}
	n.length = v
	n.mu.Unlock()

	n.events.Dispatch(event.Event{Type: LengthChanged, Value: v})
	return nil
}

// TriggerOption adjusts NoteOn and NoteOff
type TriggerOption func(*triggerOptions)

type triggerOptions struct {
	volume float64
	when   float64
}

// WithVolume sets the note volume (default 1.0)
func WithVolume(volume float64) TriggerOption {
	return func(o *triggerOptions) { o.volume = volume }
}

// WithWhen delays the trigger by seconds on the context clock (default 0)
func WithWhen(seconds float64) TriggerOption {
	return func(o *triggerOptions) { o.when = seconds }
}

func resolve(opts []TriggerOption) triggerOptions {
	o := triggerOptions{volume: 1.0}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ResolveTriggerOptions applies opts over the defaults, for forwarding a
// trigger to a remote voice
func ResolveTriggerOptions(opts ...TriggerOption) (volume, when float64) {
	o := resolve(opts)
	return o.volume, o.when
}

// NoteOn starts the active playback voice
func (n *NoiseVoice) NoteOn(note float64, opts ...TriggerOption) error {
	o := resolve(opts)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.voice == nil {
		return ErrPlaybackUnavailable
	}
	if err := n.voice.NoteOn(note, o.volume, o.when); err != nil {
		return fmt.Errorf("note on failed: %w", err)
	}

	n.held = &trigger{
		note:   note,
		volume: o.volume,
		onAt:   n.frameAfter(o.when),
		offAt:  -1,
	}
	return nil
}

// NoteOff stops the active playback voice. Only WithWhen is used.
func (n *NoiseVoice) NoteOff(opts ...TriggerOption) error {
	o := resolve(opts)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.voice == nil {
		return ErrPlaybackUnavailable
	}
	if err := n.voice.NoteOff(o.when); err != nil {
		return fmt.Errorf("note off failed: %w", err)
	}

	if n.held != nil {
		n.held.offAt = n.frameAfter(o.when)
	}
	return nil
}

// Close disconnects the output and releases the playback voice
func (n *NoiseVoice) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true

	if n.voice != nil {
		n.output.ReplaceInput(n.voice.Output(), nil)
		n.voice = nil
	}
	n.held = nil
	n.output.Disconnect()

	n.logger.Debug("Noise voice closed", zap.Int("rebuilds", n.rebuilds))
	return nil
}

// build generates a buffer for (length, t) and swaps in a new playback
// voice around it. Callers hold n.mu. On error the previous voice stays.
func (n *NoiseVoice) build(length int, t noise.Type) error {
	if length < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}

	samples := noise.Generate(t, n.rand, length)

	buf, err := n.ctx.CreateBuffer(1, length, n.ctx.SampleRate())
	if err != nil {
		return fmt.Errorf("failed to allocate noise buffer: %w", err)
	}
	data := buf.ChannelData(0)
	for i, v := range samples {
		data[i] = float32(v)
	}

	next, err := n.newVoice(n.ctx, voice.Options{Loop: true, Buffer: buf})
	if err != nil {
		return fmt.Errorf("failed to create playback voice: %w", err)
	}

	// Carry a sounding note over before the swap so the output never drops out
	if err := n.carryOver(next); err != nil {
		return err
	}

	var old *graph.Gain
	if n.voice != nil {
		old = n.voice.Output()
	}
	n.output.ReplaceInput(old, next.Output())
	n.voice = next
	n.rebuilds++

	n.logger.Debug("Rebuilt noise buffer",
		zap.String("type", string(t)),
		zap.Int("length", length),
		zap.Int("rebuilds", n.rebuilds))

	return nil
}

func (n *NoiseVoice) carryOver(next PlaybackVoice) error {
	if n.held == nil {
		return nil
	}

	now := n.ctx.CurrentFrame()
	if n.held.offAt >= 0 && n.held.offAt <= now {
		n.held = nil
		return nil
	}

	if err := next.NoteOn(n.held.note, n.held.volume, n.secondsUntil(n.held.onAt, now)); err != nil {
		return fmt.Errorf("failed to carry note to new voice: %w", err)
	}
	if n.held.offAt >= 0 {
		if err := next.NoteOff(n.secondsUntil(n.held.offAt, now)); err != nil {
			return fmt.Errorf("failed to carry note off to new voice: %w", err)
		}
	}
	return nil
}

func (n *NoiseVoice) frameAfter(seconds float64) int64 {
	now := n.ctx.CurrentFrame()
	if seconds <= 0 || math.IsNaN(seconds) {
		return now
	}
	return now + int64(math.Round(seconds*float64(n.ctx.SampleRate())))
}

func (n *NoiseVoice) secondsUntil(frame, now int64) float64 {
	if frame <= now {
		return 0
	}
	return float64(frame-now) / float64(n.ctx.SampleRate())
}
