// ABOUTME: Tests for audio types
// ABOUTME: Tests buffer allocation and sample conversion functions
package audio

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestNewBuffer(t *testing.T) {
	buf, err := NewBuffer(2, 480, 48000)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}

	if buf.Length() != 480 {
		t.Errorf("expected length 480, got %d", buf.Length())
	}
	if buf.NumberOfChannels() != 2 {
		t.Errorf("expected 2 channels, got %d", buf.NumberOfChannels())
	}
	if buf.SampleRate() != 48000 {
		t.Errorf("expected rate 48000, got %d", buf.SampleRate())
	}
	if buf.Duration() != 10*time.Millisecond {
		t.Errorf("expected 10ms, got %v", buf.Duration())
	}
	if len(buf.ChannelData(1)) != 480 {
		t.Errorf("expected channel slice of 480, got %d", len(buf.ChannelData(1)))
	}
}

func TestNewBufferEmpty(t *testing.T) {
	buf, err := NewBuffer(1, 0, 44100)
	if err != nil {
		t.Fatalf("zero length should be valid: %v", err)
	}
	if buf.Length() != 0 || len(buf.ChannelData(0)) != 0 {
		t.Errorf("expected empty buffer")
	}
}

func TestNewBufferInvalid(t *testing.T) {
	tests := []struct {
		name       string
		channels   int
		length     int
		sampleRate int
	}{
		{"no channels", 0, 10, 48000},
		{"negative length", 1, -1, 48000},
		{"zero rate", 1, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuffer(tt.channels, tt.length, tt.sampleRate)
			if !errors.Is(err, ErrInvalidBuffer) {
				t.Errorf("expected ErrInvalidBuffer, got %v", err)
			}
		})
	}
}

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected int32
	}{
		{"zero", 0, 0},
		{"positive", 100, 100 << 8},
		{"negative", -100, -100 << 8},
		{"max", 32767, 32767 << 8},
		{"min", -32768, -32768 << 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		expected int16
	}{
		{"zero", 0, 0},
		{"positive", 100 << 8, 100},
		{"negative", -100 << 8, -100},
		{"24bit positive", 1000000, 3906},
		{"24bit negative", -1000000, -3907},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleTo24Bit(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		expected [3]byte
	}{
		{"zero", 0, [3]byte{0, 0, 0}},
		{"positive", 0x123456, [3]byte{0x56, 0x34, 0x12}},
		{"negative", -256, [3]byte{0x00, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleTo24Bit(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestFloatToSample(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected int32
	}{
		{"zero", 0, 0},
		{"full scale", 1, Max24Bit},
		{"negative full scale", -1, -Max24Bit},
		{"half", 0.5, 4194304},
		{"clip high", 1.7, Max24Bit},
		{"clip low", -3, Min24Bit},
		{"nan", float32(math.NaN()), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FloatToSample(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestFloatsToSamples(t *testing.T) {
	out := FloatsToSamples([]float32{0, 1, -1})
	if len(out) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(out))
	}
	if out[1] != Max24Bit || out[2] != -Max24Bit {
		t.Errorf("unexpected conversion: %v", out)
	}
}

func TestSampleToFloat(t *testing.T) {
	if got := SampleToFloat(Max24Bit); got != 1 {
		t.Errorf("SampleToFloat(Max24Bit) = %v, want 1", got)
	}
	if got := SampleToFloat(0); got != 0 {
		t.Errorf("SampleToFloat(0) = %v, want 0", got)
	}
	if got := SampleToFloat(FloatToSample(-0.5)); math.Abs(float64(got)+0.5) > 1e-6 {
		t.Errorf("round trip of -0.5 gave %v", got)
	}
}
