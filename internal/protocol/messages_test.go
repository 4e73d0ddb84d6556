// ABOUTME: Tests for protocol messages
// ABOUTME: Tests envelope decoding of client messages
package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeDecodeCommand(t *testing.T) {
	raw := `{"type":"client/command","payload":{"command":"set_length","length":0}}`

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.Equal(t, TypeClientCommand, env.Type)

	var cmd Command
	require.NoError(t, env.Decode(&cmd))
	assert.Equal(t, CommandSetLength, cmd.Command)
	require.NotNil(t, cmd.Length)
	assert.Equal(t, 0, *cmd.Length)
	assert.Nil(t, cmd.Volume)
}

func TestEnvelopeDecodeMissingPayload(t *testing.T) {
	env := Envelope{Type: TypeClientHello}
	var hello ClientHello
	assert.Error(t, env.Decode(&hello))
}

func TestEnvelopeDecodeInvalidPayload(t *testing.T) {
	env := Envelope{Type: TypeClientHello, Payload: json.RawMessage(`[1,2]`)}
	var hello ClientHello
	assert.Error(t, env.Decode(&hello))
}

func TestMessageMarshal(t *testing.T) {
	data, err := json.Marshal(Message{
		Type:    TypeServerEvent,
		Payload: Event{Event: "type_changed", Value: "pink"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"server/event","payload":{"event":"type_changed","value":"pink"}}`, string(data))
}
