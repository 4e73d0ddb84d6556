// ABOUTME: Sample playback voice package
// ABOUTME: Plays a fixed buffer with sample-accurate note on/off scheduling
// Package voice provides SampleVoice, a player for one fixed audio buffer.
//
// A voice owns an output gain node that callers connect into their own mix.
// NoteOn and NoteOff take a delay in seconds that is converted to a frame
// position on the owning context's clock, so triggers land on exact samples.
//
// Example:
//
//	v, err := voice.New(engine, voice.Options{Loop: true, Buffer: buf})
//	v.Output().Connect(engine.Destination())
//	v.NoteOn(60, 1.0, 0)
//	v.NoteOff(0.5)
package voice
