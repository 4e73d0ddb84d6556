// ABOUTME: Oto-based audio output implementation
// ABOUTME: Pulls rendered frames into oto with software volume control
package output

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/resonate-noise/pkg/audio"
	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

// Oto output implementation using oto library
type Oto struct {
	logger     *zap.Logger
	otoCtx     *oto.Context
	player     *oto.Player
	sampleRate int
	channels   int
	ready      bool

	mu     sync.Mutex
	volume int
	muted  bool
}

// NewOto creates a new Oto output
func NewOto(logger *zap.Logger) *Oto {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Oto{
		logger: logger,
		volume: 100,
		muted:  false,
	}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int) error {
	// oto only allows one context per process
	if o.otoCtx != nil {
		if o.sampleRate != sampleRate || o.channels != channels {
			o.logger.Warn("Format change ignored, oto cannot reinitialize",
				zap.Int("sample_rate", o.sampleRate),
				zap.Int("channels", o.channels))
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.channels = channels
	o.ready = true

	o.logger.Info("Audio output initialized",
		zap.Int("sample_rate", sampleRate),
		zap.Int("channels", channels))

	return nil
}

// Start creates a player that pulls frames from r
func (o *Oto) Start(r Renderer) error {
	if !o.ready {
		return fmt.Errorf("output not initialized")
	}
	if o.player != nil {
		return fmt.Errorf("output already started")
	}

	o.player = o.otoCtx.NewPlayer(&renderReader{
		renderer: r,
		channels: o.channels,
		gain:     o.multiplier,
	})
	o.player.Play()

	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	var err error
	if o.player != nil {
		err = o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		if suspendErr := o.otoCtx.Suspend(); suspendErr != nil && err == nil {
			err = suspendErr
		}
		o.ready = false
	}
	return err
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}

	o.mu.Lock()
	o.volume = volume
	o.mu.Unlock()

	o.logger.Debug("Volume set", zap.Int("volume", volume))
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.mu.Unlock()

	o.logger.Debug("Mute set", zap.Bool("muted", muted))
}

// GetVolume returns current volume
func (o *Oto) GetVolume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// IsMuted returns mute state
func (o *Oto) IsMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

func (o *Oto) multiplier() float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return getVolumeMultiplier(o.volume, o.muted)
}

// renderReader adapts a Renderer to the io.Reader oto pulls from
type renderReader struct {
	renderer Renderer
	channels int
	gain     func() float32
	frames   []float32
}

func (r *renderReader) Read(p []byte) (int, error) {
	frameBytes := 2 * r.channels
	n := len(p) / frameBytes
	if n == 0 {
		return 0, nil
	}

	if cap(r.frames) < n {
		r.frames = make([]float32, n)
	}
	frames := r.frames[:n]
	r.renderer.Render(frames)
	applyVolume(frames, r.gain())

	for i, v := range frames {
		sample := uint16(audio.SampleToInt16(audio.FloatToSample(v)))
		for ch := 0; ch < r.channels; ch++ {
			binary.LittleEndian.PutUint16(p[(i*r.channels+ch)*2:], sample)
		}
	}

	return n * frameBytes, nil
}

// applyVolume scales frames in place
func applyVolume(frames []float32, multiplier float32) {
	if multiplier == 1 {
		return
	}
	for i := range frames {
		frames[i] *= multiplier
	}
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float32 {
	if muted {
		return 0.0
	}
	return float32(volume) / 100.0
}
