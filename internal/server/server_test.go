// ABOUTME: Tests for the noise stream server
// ABOUTME: Drives the websocket endpoint with a real client against an in-memory engine
package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-noise/internal/protocol"
	"github.com/Resonate-Protocol/resonate-noise/internal/version"
	"github.com/Resonate-Protocol/resonate-noise/pkg/audio/graph"
	"github.com/Resonate-Protocol/resonate-noise/pkg/noise"
	"github.com/Resonate-Protocol/resonate-noise/pkg/noisevoice"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 8000

func newTestServer(t *testing.T) (*Server, *noisevoice.NoiseVoice) {
	t.Helper()

	engine := graph.NewEngine(testRate)
	nv, err := noisevoice.New(engine, noisevoice.Config{Length: 800, Rand: noise.NewRand(5)})
	require.NoError(t, err)
	nv.Output().Connect(engine.Destination())

	s, err := New(Config{Name: "test"}, nv, engine, nil)
	require.NoError(t, err)
	return s, nv
}

// startTestServer runs the workers and serves the handler over httptest
func startTestServer(t *testing.T) (*Server, *noisevoice.NoiseVoice, string) {
	t.Helper()

	s, nv := newTestServer(t)
	s.startWorkers()
	t.Cleanup(s.stopWorkers)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return s, nv, "ws" + strings.TrimPrefix(ts.URL, "http") + Path
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(protocol.Message{Type: msgType, Payload: payload})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// readText returns the next JSON message, skipping audio chunks
func readText(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		kind, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if kind != websocket.TextMessage {
			continue
		}
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	}
}

func readBinary(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		kind, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if kind == websocket.BinaryMessage {
			return data
		}
	}
}

func handshake(t *testing.T, conn *websocket.Conn, clientID string) protocol.ServerHello {
	t.Helper()
	send(t, conn, protocol.TypeClientHello, protocol.ClientHello{ClientID: clientID, Name: "tester"})

	env := readText(t, conn)
	require.Equal(t, protocol.TypeServerHello, env.Type)

	var hello protocol.ServerHello
	require.NoError(t, env.Decode(&hello))
	return hello
}

func TestNewDefaults(t *testing.T) {
	s, _ := newTestServer(t)

	assert.Equal(t, "pcm", s.format.Codec)
	assert.Equal(t, 2, s.format.Channels)
	assert.Equal(t, testRate, s.format.SampleRate)
	assert.Equal(t, 16, s.format.BitDepth)
	assert.NotEmpty(t, s.serverID)
	assert.Equal(t, testRate/50, s.chunkFrames())
}

func TestNewRejectsUnknownCodec(t *testing.T) {
	engine := graph.NewEngine(testRate)
	nv, err := noisevoice.New(engine, noisevoice.Config{Length: 10})
	require.NoError(t, err)

	_, err = New(Config{Codec: "flac"}, nv, engine, nil)
	assert.Error(t, err)
}

func TestHandshake(t *testing.T) {
	s, _, url := startTestServer(t)
	conn := dial(t, url)

	hello := handshake(t, conn, "")

	assert.Equal(t, s.serverID, hello.ServerID)
	assert.NotEmpty(t, hello.ClientID, "server assigns an id when the client has none")
	assert.Equal(t, "test", hello.Name)
	assert.Equal(t, protocol.Version, hello.Version)
	assert.Equal(t, version.Product, hello.ProductName)
	assert.Equal(t, protocol.AudioFormat{Codec: "pcm", Channels: 2, SampleRate: testRate, BitDepth: 16}, hello.Format)
	assert.Equal(t, protocol.VoiceState{Type: "white", Length: 800}, hello.Voice)

	assert.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHandshakeRejectsOtherMessages(t *testing.T) {
	_, _, url := startTestServer(t)
	conn := dial(t, url)

	send(t, conn, protocol.TypeClientCommand, protocol.Command{Command: protocol.CommandNoteOn})

	env := readText(t, conn)
	require.Equal(t, protocol.TypeServerError, env.Type)
	var e protocol.Error
	require.NoError(t, env.Decode(&e))
	assert.Equal(t, "bad_hello", e.Error)
}

func TestDuplicateClientRejected(t *testing.T) {
	_, _, url := startTestServer(t)

	first := dial(t, url)
	handshake(t, first, "same-id")

	second := dial(t, url)
	send(t, second, protocol.TypeClientHello, protocol.ClientHello{ClientID: "same-id", Name: "again"})

	env := readText(t, second)
	require.Equal(t, protocol.TypeServerError, env.Type)
	var e protocol.Error
	require.NoError(t, env.Decode(&e))
	assert.Equal(t, "duplicate_client_id", e.Error)
}

func TestSetTypeBroadcastsEvent(t *testing.T) {
	_, nv, url := startTestServer(t)

	a := dial(t, url)
	handshake(t, a, "a")
	b := dial(t, url)
	handshake(t, b, "b")

	send(t, a, protocol.TypeClientCommand, protocol.Command{Command: protocol.CommandSetType, Type: "pink"})

	for _, conn := range []*websocket.Conn{a, b} {
		env := readText(t, conn)
		require.Equal(t, protocol.TypeServerEvent, env.Type)
		var ev protocol.Event
		require.NoError(t, env.Decode(&ev))
		assert.Equal(t, noisevoice.TypeChanged, ev.Event)
		assert.Equal(t, "pink", ev.Value)
	}
	assert.Equal(t, noise.Pink, nv.Type())
}

func TestSetLengthBroadcastsEvent(t *testing.T) {
	_, nv, url := startTestServer(t)
	conn := dial(t, url)
	handshake(t, conn, "")

	length := 400
	send(t, conn, protocol.TypeClientCommand, protocol.Command{Command: protocol.CommandSetLength, Length: &length})

	env := readText(t, conn)
	require.Equal(t, protocol.TypeServerEvent, env.Type)
	var ev protocol.Event
	require.NoError(t, env.Decode(&ev))
	assert.Equal(t, noisevoice.LengthChanged, ev.Event)
	assert.Equal(t, float64(400), ev.Value)
	assert.Equal(t, 400, nv.Length())
}

func TestFailedCommandReturnsError(t *testing.T) {
	_, nv, url := startTestServer(t)
	conn := dial(t, url)
	handshake(t, conn, "")

	length := -1
	send(t, conn, protocol.TypeClientCommand, protocol.Command{Command: protocol.CommandSetLength, Length: &length})

	env := readText(t, conn)
	require.Equal(t, protocol.TypeServerError, env.Type)
	var e protocol.Error
	require.NoError(t, env.Decode(&e))
	assert.Equal(t, "command_failed", e.Error)
	assert.Contains(t, e.Message, noisevoice.ErrInvalidLength.Error())
	assert.Equal(t, 800, nv.Length())
}

func TestAudioChunks(t *testing.T) {
	_, _, url := startTestServer(t)
	conn := dial(t, url)
	handshake(t, conn, "")

	// 20ms of 16-bit stereo
	chunk := readBinary(t, conn)
	assert.Len(t, chunk, testRate/50*2*2)

	send(t, conn, protocol.TypeClientCommand, protocol.Command{Command: protocol.CommandNoteOn, Note: 60})

	heard := false
	for i := 0; i < 50 && !heard; i++ {
		for _, b := range readBinary(t, conn) {
			if b != 0 {
				heard = true
				break
			}
		}
	}
	assert.True(t, heard, "expected noise after note_on")
}

func TestApply(t *testing.T) {
	s, nv := newTestServer(t)

	err := s.apply(protocol.Command{Command: "bogus"})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	err = s.apply(protocol.Command{Command: protocol.CommandSetLength})
	assert.Error(t, err)

	require.NoError(t, s.apply(protocol.Command{Command: protocol.CommandSetType, Type: "brown"}))
	assert.Equal(t, noise.Brown, nv.Type())

	volume := 0.5
	require.NoError(t, s.apply(protocol.Command{Command: protocol.CommandNoteOn, Note: 64, Volume: &volume}))
	require.NoError(t, s.apply(protocol.Command{Command: protocol.CommandNoteOff, When: 0.1}))
}

func TestOpusResamplesUnsupportedRate(t *testing.T) {
	engine := graph.NewEngine(44100)
	nv, err := noisevoice.New(engine, noisevoice.Config{Length: 100})
	require.NoError(t, err)

	s, err := New(Config{Codec: "opus"}, nv, engine, nil)
	require.NoError(t, err)
	defer s.encoder.Close()

	assert.NotNil(t, s.resampler)
	assert.Equal(t, 48000, s.format.SampleRate)
	assert.Equal(t, 882, s.renderFrames())
	assert.Equal(t, 960, s.chunkFrames())
}

func TestStreamChunkWithoutClients(t *testing.T) {
	s, _ := newTestServer(t)

	frames := make([]float32, s.renderFrames())
	pending, n, err := s.streamChunk(frames, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pending)
	assert.Equal(t, int64(len(frames)), s.engine.CurrentFrame(), "engine advances with no listeners")
}

func TestFrameClockDue(t *testing.T) {
	start := time.Unix(1000, 0)
	c := newFrameClock(testRate, start)

	assert.Zero(t, c.due(start))
	assert.Zero(t, c.due(start.Add(-time.Second)))
	assert.Equal(t, int64(160), c.due(start.Add(20*time.Millisecond)))
	assert.Equal(t, int64(8000*3600+4), c.due(start.Add(time.Hour+500*time.Microsecond)))
}

func TestFrameClockCatchesUpDroppedTicks(t *testing.T) {
	start := time.Unix(1000, 0)
	c := newFrameClock(testRate, start)

	send, skip := c.chunks(start.Add(70*time.Millisecond), 160)
	assert.Equal(t, 3, send, "three ticks owed after 70ms")
	assert.Zero(t, skip)

	c.advance(3 * 160)
	send, _ = c.chunks(start.Add(70*time.Millisecond), 160)
	assert.Zero(t, send, "partial chunk waits for the next tick")

	send, _ = c.chunks(start.Add(80*time.Millisecond), 160)
	assert.Equal(t, 1, send)
}

func TestFrameClockSkipsLongBacklog(t *testing.T) {
	start := time.Unix(1000, 0)
	c := newFrameClock(testRate, start)

	send, skip := c.chunks(start.Add(5*time.Second), 160)
	assert.Equal(t, 1, send)
	assert.Equal(t, 249, skip)
}

func TestStreamTickFollowsWallClock(t *testing.T) {
	s, _ := newTestServer(t)
	start := time.Unix(1000, 0)
	clock := newFrameClock(s.engine.SampleRate(), start)
	frames := make([]float32, s.renderFrames())

	_, n := s.streamTick(clock, start.Add(60*time.Millisecond), frames, nil)
	assert.Zero(t, n, "nothing sent without clients")
	assert.Equal(t, int64(480), s.engine.CurrentFrame())

	_, _ = s.streamTick(clock, start.Add(5*time.Second), frames, nil)
	assert.Equal(t, int64(40000), s.engine.CurrentFrame(), "skipped frames still advance the engine")
}

func TestCrossedMultiple(t *testing.T) {
	assert.True(t, crossedMultiple(499, 500, 500))
	assert.True(t, crossedMultiple(499, 501, 500), "two chunks in one tick still log")
	assert.False(t, crossedMultiple(500, 500, 500), "no chunks sent")
	assert.False(t, crossedMultiple(501, 999, 500))
	assert.True(t, crossedMultiple(0, 1000, 500))
}
