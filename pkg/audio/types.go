// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, float sample buffers and sample conversions
package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// ErrInvalidBuffer is returned when buffer dimensions are unusable
var ErrInvalidBuffer = errors.New("invalid buffer dimensions")

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Buffer holds floating point frames for one or more channels at a fixed
// sample rate. It is filled once after allocation and only read afterwards.
type Buffer struct {
	sampleRate int
	length     int
	channels   [][]float32
}

// NewBuffer allocates a zeroed buffer. A zero length is valid.
func NewBuffer(channels, length, sampleRate int) (*Buffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidBuffer, channels)
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidBuffer, length)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidBuffer, sampleRate)
	}

	data := make([][]float32, channels)
	for ch := range data {
		data[ch] = make([]float32, length)
	}

	return &Buffer{
		sampleRate: sampleRate,
		length:     length,
		channels:   data,
	}, nil
}

// ChannelData returns the backing slice for a channel
func (b *Buffer) ChannelData(ch int) []float32 {
	return b.channels[ch]
}

// Length returns the number of frames
func (b *Buffer) Length() int { return b.length }

// SampleRate returns the buffer sample rate
func (b *Buffer) SampleRate() int { return b.sampleRate }

// NumberOfChannels returns the channel count
func (b *Buffer) NumberOfChannels() int { return len(b.channels) }

// Duration returns the playback length at the buffer's own rate
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.length) * time.Second / time.Duration(b.sampleRate)
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// FloatToSample converts a [-1, 1] float to the 24-bit int32 range, clipping
// anything outside it
func FloatToSample(v float32) int32 {
	if v != v { // NaN
		return 0
	}
	scaled := math.Round(float64(v) * Max24Bit)
	if scaled > Max24Bit {
		return Max24Bit
	}
	if scaled < Min24Bit {
		return Min24Bit
	}
	return int32(scaled)
}

// SampleToFloat converts a 24-bit int32 sample back to [-1, 1]
func SampleToFloat(sample int32) float32 {
	return float32(sample) / Max24Bit
}

// FloatsToSamples converts a float slice to 24-bit int32 samples
func FloatsToSamples(in []float32) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = FloatToSample(v)
	}
	return out
}
