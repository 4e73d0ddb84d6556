// ABOUTME: Unit tests for PCM encoder
// ABOUTME: Tests 16-bit and 24-bit PCM encoding and channel duplication
package encode

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/resonate-noise/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	tests := []struct {
		name        string
		format      audio.Format
		wantErr     bool
		errContains string
	}{
		{
			name:   "valid 16-bit PCM",
			format: audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16},
		},
		{
			name:   "valid 24-bit PCM",
			format: audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 1, BitDepth: 24},
		},
		{
			name:        "invalid codec",
			format:      audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16},
			wantErr:     true,
			errContains: "invalid codec",
		},
		{
			name:        "unsupported bit depth",
			format:      audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 32},
			wantErr:     true,
			errContains: "unsupported bit depth",
		},
		{
			name:        "no channels",
			format:      audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 0, BitDepth: 16},
			wantErr:     true,
			errContains: "invalid channel count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewPCM(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewPCM() expected error, got nil")
				} else if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewPCM() error = %v, want error containing %v", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewPCM() unexpected error = %v", err)
			}
			if encoder == nil {
				t.Errorf("NewPCM() returned nil encoder")
			}
		})
	}
}

func TestPCMEncoder_Encode16Bit(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 1, BitDepth: 16})
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	output, err := encoder.Encode([]float32{0, 1, -1, 0.5})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	if len(output) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(output))
	}

	expected := []int16{0, 32767, -32768, 16384}
	for i, want := range expected {
		got := int16(binary.LittleEndian.Uint16(output[i*2:]))
		if got != want {
			t.Errorf("sample %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestPCMEncoder_Encode24Bit(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 96000, Channels: 1, BitDepth: 24})
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	output, err := encoder.Encode([]float32{0.5, 1})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	expected := []byte{0x00, 0x00, 0x40, 0xFF, 0xFF, 0x7F}
	if !bytes.Equal(output, expected) {
		t.Errorf("expected %v, got %v", expected, output)
	}
}

func TestPCMEncoder_DuplicatesChannels(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	output, err := encoder.Encode([]float32{0.5, -0.5})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	if len(output) != 8 {
		t.Fatalf("expected 8 bytes for 2 stereo frames, got %d", len(output))
	}
	if !bytes.Equal(output[0:2], output[2:4]) || !bytes.Equal(output[4:6], output[6:8]) {
		t.Errorf("channels differ: %v", output)
	}
}

func TestPCMEncoder_Empty(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	output, err := encoder.Encode(nil)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(output) != 0 {
		t.Errorf("expected empty output, got %d bytes", len(output))
	}
}

func TestNewSelectsCodec(t *testing.T) {
	enc, err := New(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("New(pcm) failed: %v", err)
	}
	if _, ok := enc.(*PCMEncoder); !ok {
		t.Errorf("expected *PCMEncoder, got %T", enc)
	}

	if _, err := New(audio.Format{Codec: "flac"}); err == nil {
		t.Error("expected error for unsupported codec")
	}
}
