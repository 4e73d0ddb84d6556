// ABOUTME: Noise stream protocol message type definitions
// ABOUTME: Defines the JSON messages exchanged between the stream server and clients
package protocol

import (
	"encoding/json"
	"fmt"
)

// Protocol version advertised in server/hello
const Version = 1

// Message types
const (
	TypeClientHello   = "client/hello"
	TypeClientCommand = "client/command"
	TypeServerHello   = "server/hello"
	TypeServerEvent   = "server/event"
	TypeServerError   = "server/error"
)

// Commands accepted in client/command
const (
	CommandSetType   = "set_type"
	CommandSetLength = "set_length"
	CommandNoteOn    = "note_on"
	CommandNoteOff   = "note_off"
)

// Message is the top-level wrapper for outgoing messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Envelope is the top-level wrapper for incoming messages; the payload is
// decoded once the type is known
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the envelope payload into v
func (e Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", e.Type, err)
	}
	return nil
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID string `json:"client_id,omitempty"` // assigned by the server when empty
	Name     string `json:"name"`
}

// AudioFormat describes the binary chunks the server streams
type AudioFormat struct {
	Codec      string `json:"codec"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`
	BitDepth   int    `json:"bit_depth"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID        string      `json:"server_id"`
	ClientID        string      `json:"client_id"`
	Name            string      `json:"name"`
	Version         int         `json:"version"`
	ProductName     string      `json:"product_name,omitempty"`
	SoftwareVersion string      `json:"software_version,omitempty"`
	Format          AudioFormat `json:"format"`
	Voice           VoiceState  `json:"voice"`
}

// VoiceState snapshots the noise voice parameters
type VoiceState struct {
	Type   string `json:"type"`
	Length int    `json:"length"`
}

// Command asks the server to change or trigger the noise voice
type Command struct {
	Command string   `json:"command"`
	Type    string   `json:"type,omitempty"`
	Length  *int     `json:"length,omitempty"`
	Note    float64  `json:"note,omitempty"`
	Volume  *float64 `json:"volume,omitempty"`
	When    float64  `json:"when,omitempty"`
}

// Event relays a noise voice change notification
type Event struct {
	Event string      `json:"event"`
	Value interface{} `json:"value"`
}

// Error reports a rejected command
type Error struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
