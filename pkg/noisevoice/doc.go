// ABOUTME: Noise voice package
// ABOUTME: A looping noise player that rebuilds its buffer when type or length change
// Package noisevoice provides NoiseVoice, an addressable noise instrument.
//
// A NoiseVoice owns one buffer of generated noise and one playback voice
// looping it. Changing the noise type or the buffer length regenerates the
// buffer, swaps in a fresh playback voice and emits a change event:
//
//   - "type_changed" carries the new noise.Type
//   - "length_changed" carries the new length in samples
//
// Example:
//
//	nv, err := noisevoice.New(engine, noisevoice.Config{Type: noise.Pink})
//	nv.Output().Connect(engine.Destination())
//	nv.Events().Subscribe(noisevoice.TypeChanged, func(e event.Event) {
//	    log.Printf("now playing %v noise", e.Value)
//	})
//	err = nv.NoteOn(60, noisevoice.WithVolume(0.8))
//	err = nv.SetType(noise.Brown)
package noisevoice
