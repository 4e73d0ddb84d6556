// ABOUTME: Audio graph package for mixing and rendering
// ABOUTME: Provides the Context interface, Gain mix nodes and a pull-based Engine
// Package graph provides a minimal audio context: buffer allocation, gain
// nodes that can be connected into a mix, and an Engine that renders the mix
// on demand.
//
// Rendering is pull-based. Whoever drives the output (a speaker, a network
// stream, an offline export) calls Engine.Render with a slice to fill, and the
// engine advances its frame clock by the slice length.
//
// Example:
//
//	engine := graph.NewEngine(48000)
//	g := engine.CreateGain()
//	g.Connect(engine.Destination())
//	frames := make([]float32, 960)
//	engine.Render(frames)
package graph
