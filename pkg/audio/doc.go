// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer types and sample conversion functions
// Package audio provides the fundamental audio types used by the noise engine.
//
// This package defines:
//   - Format: describes an encoded stream (codec, sample rate, channels, bit depth)
//   - Buffer: float frames per channel at a fixed sample rate
//
// It also provides conversions from float frames to the int32 24-bit range
// used by the encoders and outputs.
//
// Example:
//
//	buf, err := audio.NewBuffer(1, 48000, 48000)
//	data := buf.ChannelData(0)
//	samples := audio.FloatsToSamples(data)
package audio
