// ABOUTME: Opus audio encoder
// ABOUTME: Encodes 20ms blocks of float frames to Opus packets
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-noise/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusPacket is the largest packet the encoder is allowed to produce
const maxOpusPacket = 4000

// OpusSampleRate reports whether Opus can encode at rate
func OpusSampleRate(rate int) bool {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	}
	return false
}

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int
}

// NewOpus creates a new Opus encoder
func NewOpus(format audio.Format) (Encoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: format.SampleRate,
		channels:   format.Channels,
		frameSize:  format.SampleRate / 50, // 20ms frame
	}, nil
}

// FrameSize returns the number of frames each Encode call expects
func (e *OpusEncoder) FrameSize() int { return e.frameSize }

// Encode converts exactly one 20ms block of frames to an Opus packet
func (e *OpusEncoder) Encode(frames []float32) ([]byte, error) {
	if len(frames) != e.frameSize {
		return nil, fmt.Errorf("opus encoder expects %d frames, got %d", e.frameSize, len(frames))
	}

	// Opus takes int16 interleaved PCM
	samples := interleave(frames, e.channels)
	pcm := make([]int16, len(samples))
	for i, sample := range samples {
		pcm[i] = audio.SampleToInt16(sample)
	}

	data := make([]byte, maxOpusPacket)
	n, err := e.encoder.Encode(pcm, data)
	if err != nil {
		return nil, fmt.Errorf("opus encode error: %w", err)
	}

	return data[:n], nil
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	return nil
}
