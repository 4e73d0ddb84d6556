// ABOUTME: WAV file writer
// ABOUTME: Wraps PCM-encoded frames in a canonical RIFF/WAVE header
package encode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-noise/pkg/audio"
)

const wavHeaderSize = 44

// WriteWAV writes frames as an uncompressed PCM WAV file. format.Codec is
// ignored; BitDepth must be 16 or 24.
func WriteWAV(w io.Writer, format audio.Format, frames []float32) error {
	format.Codec = "pcm"
	enc, err := NewPCM(format)
	if err != nil {
		return err
	}
	defer enc.Close()

	data, err := enc.Encode(frames)
	if err != nil {
		return err
	}

	blockAlign := format.Channels * format.BitDepth / 8
	header := make([]byte, wavHeaderSize)
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(wavHeaderSize-8+len(data)))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:], 1)  // PCM
	binary.LittleEndian.PutUint16(header[22:], uint16(format.Channels))
	binary.LittleEndian.PutUint32(header[24:], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(format.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:], uint16(format.BitDepth))
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(len(data)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	return nil
}
