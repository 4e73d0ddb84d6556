// ABOUTME: Sentinel errors for the noise voice
// ABOUTME: Checked by callers with errors.Is
package noisevoice

import "errors"

var (
	// ErrInvalidLength is returned for negative buffer lengths
	ErrInvalidLength = errors.New("invalid noise length")

	// ErrPlaybackUnavailable is returned when triggering without an active voice
	ErrPlaybackUnavailable = errors.New("no playback voice available")

	// ErrClosed is returned by setters after Close
	ErrClosed = errors.New("noise voice closed")
)
