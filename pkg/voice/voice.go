// ABOUTME: Buffer playback voice
// ABOUTME: Renders a buffer into its output node between scheduled start and stop frames
package voice

import (
	"errors"
	"math"
	"sync"

	"github.com/Resonate-Protocol/resonate-noise/pkg/audio"
	"github.com/Resonate-Protocol/resonate-noise/pkg/audio/graph"
)

// ErrNoBuffer is returned when a voice is created without a buffer
var ErrNoBuffer = errors.New("voice has no buffer")

// Options configures a SampleVoice
type Options struct {
	// Loop restarts playback at the buffer start instead of stopping
	Loop bool

	// Buffer is played from channel 0
	Buffer *audio.Buffer
}

// SampleVoice plays one buffer
type SampleVoice struct {
	ctx    graph.Context
	output *graph.Gain
	buffer *audio.Buffer
	loop   bool

	mu           sync.Mutex
	note         float64
	volume       float32
	active       bool
	position     int
	pendingStart bool
	startAt      int64
	pendingStop  bool
	stopAt       int64
}

// New creates a voice whose output is not yet connected anywhere
func New(ctx graph.Context, opts Options) (*SampleVoice, error) {
	if opts.Buffer == nil {
		return nil, ErrNoBuffer
	}

	v := &SampleVoice{
		ctx:    ctx,
		output: ctx.CreateGain(),
		buffer: opts.Buffer,
		loop:   opts.Loop,
		volume: 1,
	}
	v.output.AddInput(v)

	return v, nil
}

// Output returns the node carrying the voice's audio
func (v *SampleVoice) Output() *graph.Gain { return v.output }

// Buffer returns the buffer being played
func (v *SampleVoice) Buffer() *audio.Buffer { return v.buffer }

// Loop reports whether playback wraps at the buffer end
func (v *SampleVoice) Loop() bool { return v.loop }

// NoteOn schedules playback to start when seconds from now
func (v *SampleVoice) NoteOn(note, volume, when float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.note = note
	v.volume = float32(volume)
	v.pendingStart = true
	v.startAt = v.frameAfter(when)
	v.pendingStop = false
	return nil
}

// NoteOff schedules playback to stop when seconds from now
func (v *SampleVoice) NoteOff(when float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.pendingStop = true
	v.stopAt = v.frameAfter(when)
	return nil
}

// Note returns the last triggered note
func (v *SampleVoice) Note() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.note
}

// Volume returns the last trigger volume
func (v *SampleVoice) Volume() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return float64(v.volume)
}

// Playing reports whether the voice is sounding or scheduled to sound
func (v *SampleVoice) Playing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active || v.pendingStart
}

func (v *SampleVoice) Render(dst []float32, frame int64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	data := v.buffer.ChannelData(0)
	length := len(data)

	for i := range dst {
		f := frame + int64(i)

		if v.pendingStart && f >= v.startAt {
			v.pendingStart = false
			v.active = true
			v.position = 0
		}
		if v.pendingStop && f >= v.stopAt {
			v.pendingStop = false
			v.active = false
		}
		if !v.active {
			continue
		}

		if v.position >= length {
			if !v.loop || length == 0 {
				v.active = false
				continue
			}
			v.position = 0
		}

		dst[i] += data[v.position] * v.volume
		v.position++
	}
}

func (v *SampleVoice) frameAfter(seconds float64) int64 {
	now := v.ctx.CurrentFrame()
	if seconds <= 0 || math.IsNaN(seconds) {
		return now
	}
	return now + int64(math.Round(seconds*float64(v.ctx.SampleRate())))
}
