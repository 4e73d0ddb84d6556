// ABOUTME: Audio output package for playing rendered audio
// ABOUTME: Provides Output interface and an oto implementation
// Package output provides audio playback.
//
// Outputs pull mono frames from a Renderer (normally a graph.Engine) on the
// device's own schedule and duplicate them across the device channels.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(48000, 2)
//	err = out.Start(engine)
package output
