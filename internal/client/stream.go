// ABOUTME: Decodes streamed chunks into a playable frame queue
// ABOUTME: Feeds received noise to a local output as a pull renderer
package client

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/resonate-noise/internal/protocol"
	"github.com/Resonate-Protocol/resonate-noise/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxBufferMs bounds the queue so a stalled output cannot grow latency
const maxBufferMs = 500

// Stream decodes chunks and renders their first channel as mono frames
type Stream struct {
	format  protocol.AudioFormat
	decoder *opus.Decoder // nil for pcm
	pcm     []int16

	mu        sync.Mutex
	queue     []float32
	maxFrames int
	underruns int64
}

// NewStream creates a stream for chunks in format
func NewStream(format protocol.AudioFormat) (*Stream, error) {
	if format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid stream format: %d channels at %dHz", format.Channels, format.SampleRate)
	}

	s := &Stream{
		format:    format,
		maxFrames: format.SampleRate * maxBufferMs / 1000,
	}

	switch format.Codec {
	case "pcm":
		if format.BitDepth != 16 && format.BitDepth != 24 {
			return nil, fmt.Errorf("unsupported bit depth: %d", format.BitDepth)
		}
	case "opus":
		decoder, err := opus.NewDecoder(format.SampleRate, format.Channels)
		if err != nil {
			return nil, fmt.Errorf("failed to create opus decoder: %w", err)
		}
		s.decoder = decoder
		// 120ms is the longest Opus packet
		s.pcm = make([]int16, format.SampleRate*120/1000*format.Channels)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}

	return s, nil
}

// Push decodes one chunk onto the queue
func (s *Stream) Push(data []byte) error {
	frames, err := s.decode(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, frames...)
	if over := len(s.queue) - s.maxFrames; over > 0 {
		s.queue = append(s.queue[:0], s.queue[over:]...)
	}
	return nil
}

func (s *Stream) decode(data []byte) ([]float32, error) {
	channels := s.format.Channels

	if s.decoder != nil {
		n, err := s.decoder.Decode(data, s.pcm)
		if err != nil {
			return nil, fmt.Errorf("opus decode error: %w", err)
		}
		frames := make([]float32, n)
		for i := range frames {
			frames[i] = audio.SampleToFloat(audio.SampleFromInt16(s.pcm[i*channels]))
		}
		return frames, nil
	}

	width := s.format.BitDepth / 8
	frameBytes := width * channels
	if len(data)%frameBytes != 0 {
		return nil, fmt.Errorf("chunk of %d bytes is not whole %d-byte frames", len(data), frameBytes)
	}

	frames := make([]float32, len(data)/frameBytes)
	for i := range frames {
		b := data[i*frameBytes:]
		if width == 2 {
			frames[i] = audio.SampleToFloat(audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(b))))
			continue
		}
		// sign-extend 24-bit little endian
		v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
		frames[i] = audio.SampleToFloat(v)
	}
	return frames, nil
}

// Render fills dst from the queue, padding with silence on underrun
func (s *Stream) Render(dst []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := copy(dst, s.queue)
	s.queue = append(s.queue[:0], s.queue[n:]...)

	if n < len(dst) {
		clear(dst[n:])
		s.underruns++
	}
}

// Buffered returns the number of queued frames
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Underruns returns how many renders ran out of frames
func (s *Stream) Underruns() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.underruns
}
