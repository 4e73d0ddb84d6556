// ABOUTME: Audio encoder package for encoding rendered frames
// ABOUTME: Provides Encoder interface, PCM and Opus encoders and a WAV writer
// Package encode provides audio encoders for rendered noise.
//
// Supports: PCM (16-bit and 24-bit), Opus, and WAV files.
//
// All encoders accept mono float frames in [-1, 1] and duplicate them
// across the channels of the target format.
//
// Example:
//
//	encoder, err := encode.New(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16})
//	data, err := encoder.Encode(frames)
package encode
