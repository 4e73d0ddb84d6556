// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts rendered frames between sample rates across chunk boundaries
// Package resample provides streaming sample rate conversion.
//
// Uses linear interpolation and carries the last input frame between calls,
// so consecutive chunks join without clicks.
//
// Example:
//
//	r := resample.New(44100, 48000)
//	pending = r.Process(chunk, pending)
package resample
