// ABOUTME: Noise color generators
// ABOUTME: White, pink and brown noise as pure functions over an injected random source
// Package noise generates fixed-length blocks of colored noise.
//
// Three colors are supported:
//   - White: independent uniform samples in [-1, 1)
//   - Pink: white noise through a six-pole smoothing network (about -3dB/octave)
//   - Brown: white noise through a leaky integrator (about -6dB/octave)
//
// Every generator takes a Rand so output is reproducible when the source is seeded.
//
// Example:
//
//	r := noise.NewRand(42)
//	samples := noise.Generate(noise.Pink, r, 48000)
package noise
