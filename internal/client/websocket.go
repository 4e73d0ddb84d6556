// ABOUTME: WebSocket client for the noise stream server
// ABOUTME: Handles connection, handshake, remote voice control and message routing
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-noise/internal/protocol"
	"github.com/Resonate-Protocol/resonate-noise/pkg/event"
	"github.com/Resonate-Protocol/resonate-noise/pkg/noise"
	"github.com/Resonate-Protocol/resonate-noise/pkg/noisevoice"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrorEvent is dispatched when the server rejects a command
const ErrorEvent = "error"

// ErrNotConnected is returned when sending on a closed client
var ErrNotConnected = errors.New("not connected")

const handshakeTimeout = 5 * time.Second

// Config holds client configuration
type Config struct {
	URL      string // e.g. ws://host:8928/noise
	ClientID string // assigned by the server when empty
	Name     string
	Logger   *zap.Logger
}

// Client is a remote handle on a served noise voice. It satisfies the
// same control surface as a local voice, but setters return once the
// command is sent; rejections arrive as ErrorEvent.
type Client struct {
	config Config
	logger *zap.Logger
	conn   *websocket.Conn
	events *event.Dispatcher

	writeMu sync.Mutex

	mu        sync.RWMutex
	hello     protocol.ServerHello
	state     protocol.VoiceState
	connected bool

	// AudioChunks receives encoded audio in the format from Format
	AudioChunks chan []byte

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new WebSocket client
func New(config Config) *Client {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:      config,
		logger:      config.Logger,
		events:      event.NewDispatcher(),
		AudioChunks: make(chan []byte, 100),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Connect establishes the WebSocket connection and performs the handshake
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("Connecting", zap.String("url", c.config.URL))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake performs the protocol handshake
func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
	}
	if err := c.sendJSON(protocol.Message{Type: protocol.TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	// audio can only follow the hello, so the first message must be text
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch env.Type {
	case protocol.TypeServerHello:
	case protocol.TypeServerError:
		var e protocol.Error
		if err := env.Decode(&e); err != nil {
			return err
		}
		return fmt.Errorf("server rejected hello: %s: %s", e.Error, e.Message)
	default:
		return fmt.Errorf("expected server/hello, got %s", env.Type)
	}

	var serverHello protocol.ServerHello
	if err := env.Decode(&serverHello); err != nil {
		return err
	}

	c.mu.Lock()
	c.hello = serverHello
	c.state = serverHello.Voice
	c.mu.Unlock()

	c.logger.Info("Handshake complete",
		zap.String("server", serverHello.Name),
		zap.String("client_id", serverHello.ClientID),
		zap.String("codec", serverHello.Format.Codec),
		zap.Int("sample_rate", serverHello.Format.SampleRate))

	return nil
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()
	defer close(c.AudioChunks)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				c.logger.Warn("Read error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleAudio(data)
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		}
	}
}

// handleAudio drops chunks when the consumer falls behind
func (c *Client) handleAudio(data []byte) {
	select {
	case c.AudioChunks <- data:
	default:
		c.logger.Debug("Audio queue full, dropping chunk", zap.Int("size", len(data)))
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("Failed to parse JSON message", zap.Error(err))
		return
	}

	switch env.Type {
	case protocol.TypeServerEvent:
		var ev protocol.Event
		if err := env.Decode(&ev); err != nil {
			c.logger.Warn("Bad event", zap.Error(err))
			return
		}
		c.handleEvent(ev)

	case protocol.TypeServerError:
		var e protocol.Error
		if err := env.Decode(&e); err != nil {
			c.logger.Warn("Bad error message", zap.Error(err))
			return
		}
		c.logger.Warn("Server error", zap.String("error", e.Error), zap.String("message", e.Message))
		c.events.Dispatch(event.Event{Type: ErrorEvent, Value: e.Message})

	default:
		c.logger.Debug("Unknown message type", zap.String("type", env.Type))
	}
}

// handleEvent mirrors a remote change locally, restoring the value types a
// local voice would dispatch
func (c *Client) handleEvent(ev protocol.Event) {
	value := ev.Value

	c.mu.Lock()
	switch ev.Event {
	case noisevoice.TypeChanged:
		if s, ok := ev.Value.(string); ok {
			c.state.Type = s
			value = noise.Type(s)
		}
	case noisevoice.LengthChanged:
		if f, ok := ev.Value.(float64); ok {
			c.state.Length = int(f)
			value = int(f)
		}
	}
	c.mu.Unlock()

	c.events.Dispatch(event.Event{Type: ev.Event, Value: value})
}

func (c *Client) sendCommand(cmd protocol.Command) error {
	return c.sendJSON(protocol.Message{Type: protocol.TypeClientCommand, Payload: cmd})
}

// SetType asks the server to rebuild with t
func (c *Client) SetType(t noise.Type) error {
	return c.sendCommand(protocol.Command{Command: protocol.CommandSetType, Type: string(t)})
}

// SetLength asks the server to rebuild with v samples
func (c *Client) SetLength(v int) error {
	return c.sendCommand(protocol.Command{Command: protocol.CommandSetLength, Length: &v})
}

// NoteOn triggers the remote voice
func (c *Client) NoteOn(note float64, opts ...noisevoice.TriggerOption) error {
	volume, when := noisevoice.ResolveTriggerOptions(opts...)
	return c.sendCommand(protocol.Command{
		Command: protocol.CommandNoteOn,
		Note:    note,
		Volume:  &volume,
		When:    when,
	})
}

// NoteOff releases the remote voice
func (c *Client) NoteOff(opts ...noisevoice.TriggerOption) error {
	_, when := noisevoice.ResolveTriggerOptions(opts...)
	return c.sendCommand(protocol.Command{Command: protocol.CommandNoteOff, When: when})
}

// Type returns the last type reported by the server
func (c *Client) Type() noise.Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return noise.Type(c.state.Type)
}

// Length returns the last length reported by the server
func (c *Client) Length() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Length
}

// Hello returns the server's handshake reply
func (c *Client) Hello() protocol.ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

// Format returns the format of AudioChunks
func (c *Client) Format() protocol.AudioFormat {
	return c.Hello().Format
}

// Events returns the sink remote changes are dispatched on
func (c *Client) Events() event.Sink { return c.events }

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} { return c.ctx.Done() }

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		c.logger.Info("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
