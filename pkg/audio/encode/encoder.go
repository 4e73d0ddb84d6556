// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for encoders of rendered mono frames
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-noise/pkg/audio"
)

// Encoder encodes rendered mono float frames, duplicating them across the
// channels of its format
type Encoder interface {
	// Encode converts frames to encoded audio data
	Encode(frames []float32) ([]byte, error)

	// Close releases encoder resources
	Close() error
}

// New creates the encoder matching format.Codec
func New(format audio.Format) (Encoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}
}

// interleave converts mono frames to 24-bit int32 samples repeated for
// each channel
func interleave(frames []float32, channels int) []int32 {
	out := make([]int32, len(frames)*channels)
	for i, v := range frames {
		s := audio.FloatToSample(v)
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = s
		}
	}
	return out
}
