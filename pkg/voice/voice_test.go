// ABOUTME: Tests for the sample voice
// ABOUTME: Covers scheduling, looping, volume and empty buffers
package voice

import (
	"testing"

	"github.com/Resonate-Protocol/resonate-noise/pkg/audio"
	"github.com/Resonate-Protocol/resonate-noise/pkg/audio/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampBuffer(t *testing.T, n int) *audio.Buffer {
	t.Helper()
	buf, err := audio.NewBuffer(1, n, 1000)
	require.NoError(t, err)
	data := buf.ChannelData(0)
	for i := range data {
		data[i] = float32(i + 1)
	}
	return buf
}

func newVoice(t *testing.T, engine *graph.Engine, buf *audio.Buffer, loop bool) *SampleVoice {
	t.Helper()
	v, err := New(engine, Options{Loop: loop, Buffer: buf})
	require.NoError(t, err)
	v.Output().Connect(engine.Destination())
	return v
}

func TestNewRequiresBuffer(t *testing.T) {
	_, err := New(graph.NewEngine(1000), Options{Loop: true})
	assert.ErrorIs(t, err, ErrNoBuffer)
}

func TestSilentUntilNoteOn(t *testing.T) {
	engine := graph.NewEngine(1000)
	v := newVoice(t, engine, rampBuffer(t, 4), true)

	dst := make([]float32, 4)
	engine.Render(dst)
	assert.Equal(t, []float32{0, 0, 0, 0}, dst)
	assert.False(t, v.Playing())
}

func TestLoopedPlayback(t *testing.T) {
	engine := graph.NewEngine(1000)
	v := newVoice(t, engine, rampBuffer(t, 3), true)

	require.NoError(t, v.NoteOn(60, 1, 0))
	dst := make([]float32, 7)
	engine.Render(dst)

	assert.Equal(t, []float32{1, 2, 3, 1, 2, 3, 1}, dst)
	assert.True(t, v.Playing())
}

func TestOneShotStopsAtEnd(t *testing.T) {
	engine := graph.NewEngine(1000)
	v := newVoice(t, engine, rampBuffer(t, 3), false)

	require.NoError(t, v.NoteOn(60, 1, 0))
	dst := make([]float32, 5)
	engine.Render(dst)

	assert.Equal(t, []float32{1, 2, 3, 0, 0}, dst)
	assert.False(t, v.Playing())
}

func TestScheduledStartAndStop(t *testing.T) {
	engine := graph.NewEngine(1000)
	v := newVoice(t, engine, rampBuffer(t, 10), true)

	// 2ms and 5ms at 1kHz
	require.NoError(t, v.NoteOn(60, 1, 0.002))
	require.NoError(t, v.NoteOff(0.005))

	dst := make([]float32, 8)
	engine.Render(dst)
	assert.Equal(t, []float32{0, 0, 1, 2, 3, 0, 0, 0}, dst)
}

func TestVolumeScales(t *testing.T) {
	engine := graph.NewEngine(1000)
	v := newVoice(t, engine, rampBuffer(t, 2), true)

	require.NoError(t, v.NoteOn(69, 0.5, 0))
	dst := make([]float32, 2)
	engine.Render(dst)

	assert.Equal(t, []float32{0.5, 1}, dst)
	assert.Equal(t, 69.0, v.Note())
	assert.Equal(t, 0.5, v.Volume())
}

func TestRetriggerRestartsFromBeginning(t *testing.T) {
	engine := graph.NewEngine(1000)
	v := newVoice(t, engine, rampBuffer(t, 5), true)

	require.NoError(t, v.NoteOn(60, 1, 0))
	engine.Render(make([]float32, 3))

	require.NoError(t, v.NoteOn(60, 1, 0))
	dst := make([]float32, 2)
	engine.Render(dst)
	assert.Equal(t, []float32{1, 2}, dst)
}

func TestEmptyBufferIsSilent(t *testing.T) {
	engine := graph.NewEngine(1000)
	buf, err := audio.NewBuffer(1, 0, 1000)
	require.NoError(t, err)
	v := newVoice(t, engine, buf, true)

	require.NoError(t, v.NoteOn(60, 1, 0))
	dst := make([]float32, 4)
	engine.Render(dst)
	assert.Equal(t, []float32{0, 0, 0, 0}, dst)
}

func TestDisconnectedVoiceIsSilent(t *testing.T) {
	engine := graph.NewEngine(1000)
	v := newVoice(t, engine, rampBuffer(t, 4), true)
	require.NoError(t, v.NoteOn(60, 1, 0))
	v.Output().Disconnect()

	dst := make([]float32, 4)
	engine.Render(dst)
	assert.Equal(t, []float32{0, 0, 0, 0}, dst)
}
