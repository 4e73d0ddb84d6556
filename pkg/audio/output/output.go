// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for pull-based audio playback backends
package output

// Renderer produces the next len(dst) mono frames
type Renderer interface {
	Render(dst []float32)
}

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels int) error

	// Start begins pulling audio from r until Close
	Start(r Renderer) error

	// Close releases output resources
	Close() error
}
