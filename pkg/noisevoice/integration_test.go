// ABOUTME: Integration tests for NoiseVoice with the real graph and sample voice
// ABOUTME: Verifies rendered audio follows rebuilds without dropping out
package noisevoice

import (
	"testing"

	"github.com/Resonate-Protocol/resonate-noise/pkg/audio/graph"
	"github.com/Resonate-Protocol/resonate-noise/pkg/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countSilent(frames []float32) int {
	n := 0
	for _, v := range frames {
		if v == 0 {
			n++
		}
	}
	return n
}

func TestRenderedOutputMatchesBuffer(t *testing.T) {
	engine := graph.NewEngine(8000)
	nv, err := New(engine, Config{Length: 100, Rand: noise.NewRand(3)})
	require.NoError(t, err)
	nv.Output().Connect(engine.Destination())

	require.NoError(t, nv.NoteOn(60))
	frames := make([]float32, 250)
	engine.Render(frames)

	want := toFloat32(noise.WhiteNoise(noise.NewRand(3), 100))
	assert.Equal(t, want, frames[:100])
	assert.Equal(t, want, frames[100:200])
	assert.Equal(t, want[:50], frames[200:])
}

func TestRebuildWhileSounding(t *testing.T) {
	engine := graph.NewEngine(8000)
	nv, err := New(engine, Config{Length: 400, Rand: noise.NewRand(4)})
	require.NoError(t, err)
	nv.Output().Connect(engine.Destination())

	require.NoError(t, nv.NoteOn(60, WithVolume(0.5)))
	engine.Render(make([]float32, 160))

	require.NoError(t, nv.SetType(noise.Pink))

	frames := make([]float32, 160)
	engine.Render(frames)
	assert.Less(t, countSilent(frames), 4, "output dropped out after rebuild")
}

func TestNoteOffSilencesOutput(t *testing.T) {
	engine := graph.NewEngine(8000)
	nv, err := New(engine, Config{Type: noise.Brown, Length: 64})
	require.NoError(t, err)
	nv.Output().Connect(engine.Destination())

	require.NoError(t, nv.NoteOn(60))
	engine.Render(make([]float32, 32))
	require.NoError(t, nv.NoteOff())

	frames := make([]float32, 32)
	engine.Render(frames)
	assert.Equal(t, len(frames), countSilent(frames))
}

func TestEmptyBufferRendersSilence(t *testing.T) {
	engine := graph.NewEngine(8000)
	nv, err := New(engine, Config{Length: 64})
	require.NoError(t, err)
	nv.Output().Connect(engine.Destination())

	require.NoError(t, nv.SetLength(0))
	require.NoError(t, nv.NoteOn(60))

	frames := make([]float32, 32)
	engine.Render(frames)
	assert.Equal(t, len(frames), countSilent(frames))
}
