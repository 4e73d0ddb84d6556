// ABOUTME: Noise stream server
// ABOUTME: Manages WebSocket clients, remote control of the noise voice and audio streaming
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-noise/internal/discovery"
	"github.com/Resonate-Protocol/resonate-noise/internal/protocol"
	"github.com/Resonate-Protocol/resonate-noise/internal/version"
	"github.com/Resonate-Protocol/resonate-noise/pkg/audio"
	"github.com/Resonate-Protocol/resonate-noise/pkg/audio/encode"
	"github.com/Resonate-Protocol/resonate-noise/pkg/audio/graph"
	"github.com/Resonate-Protocol/resonate-noise/pkg/audio/resample"
	"github.com/Resonate-Protocol/resonate-noise/pkg/event"
	"github.com/Resonate-Protocol/resonate-noise/pkg/noise"
	"github.com/Resonate-Protocol/resonate-noise/pkg/noisevoice"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Path is the websocket endpoint
	Path = "/noise"

	// ChunkDurationMs is the length of each streamed audio chunk
	ChunkDurationMs = 20

	writeTimeout = 5 * time.Second
	sendQueueLen = 100

	// opusFallbackRate is streamed when Opus cannot run at the engine rate
	opusFallbackRate = 48000
)

// ErrUnknownCommand is returned for commands the server does not implement
var ErrUnknownCommand = errors.New("unknown command")

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Codec      string // "pcm" (default) or "opus"
	Channels   int    // default 2
}

// Server streams a noise voice to websocket clients
type Server struct {
	config   Config
	serverID string
	logger   *zap.Logger

	voice     *noisevoice.NoiseVoice
	engine    *graph.Engine
	format    audio.Format
	encoder   encode.Encoder
	resampler *resample.Resampler // nil when streaming at the engine rate

	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	httpServer *http.Server

	clients   map[string]*Client
	clientsMu sync.RWMutex

	commands chan command
	eventSub string

	mdnsManager *discovery.Manager

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Client represents a connected client
type Client struct {
	ID       string
	Name     string
	Conn     *websocket.Conn
	sendChan chan outgoing
}

type outgoing struct {
	messageType int
	data        []byte
}

type command struct {
	cmd   protocol.Command
	reply chan error
}

// New creates a server streaming nv, which must be connected to the
// engine destination
func New(config Config, nv *noisevoice.NoiseVoice, engine *graph.Engine, logger *zap.Logger) (*Server, error) {
	if config.Codec == "" {
		config.Codec = "pcm"
	}
	if config.Channels == 0 {
		config.Channels = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	format := audio.Format{
		Codec:      config.Codec,
		SampleRate: engine.SampleRate(),
		Channels:   config.Channels,
		BitDepth:   16,
	}

	var resampler *resample.Resampler
	if format.Codec == "opus" && !encode.OpusSampleRate(format.SampleRate) {
		logger.Info("Resampling for Opus",
			zap.Int("from", format.SampleRate),
			zap.Int("to", opusFallbackRate))
		resampler = resample.New(format.SampleRate, opusFallbackRate)
		format.SampleRate = opusFallbackRate
	}

	encoder, err := encode.New(format)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	s := &Server{
		config:    config,
		serverID:  uuid.New().String(),
		logger:    logger,
		voice:     nv,
		engine:    engine,
		format:    format,
		encoder:   encoder,
		resampler: resampler,
		upgrader: websocket.Upgrader{
			// Local network service; browsers on any origin may listen
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:      http.NewServeMux(),
		clients:  make(map[string]*Client),
		commands: make(chan command),
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc(Path, s.handleWebSocket)

	return s, nil
}

// Handler returns the HTTP handler serving the websocket endpoint
func (s *Server) Handler() http.Handler { return s.mux }

// Start runs the server until Stop is called or the listener fails
func (s *Server) Start() error {
	s.logger.Info("Server starting",
		zap.String("version", version.String()),
		zap.String("name", s.config.Name),
		zap.String("id", s.serverID),
		zap.String("codec", s.format.Codec))

	s.startWorkers()

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        Path,
		}, s.logger)

		if err := s.mdnsManager.Advertise(); err != nil {
			s.logger.Warn("Failed to start mDNS advertisement", zap.Error(err))
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	s.logger.Info("WebSocket server listening", zap.String("addr", addr), zap.String("path", Path))

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		s.logger.Info("Server shutting down")
	case err := <-errChan:
		s.logger.Error("HTTP server error", zap.Error(err))
		serverErr = err
		s.Stop()
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	s.stopWorkers()
	s.logger.Info("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// startWorkers launches the control and streaming loops
func (s *Server) startWorkers() {
	s.eventSub = s.voice.Events().Subscribe(event.Wildcard, s.relayEvent)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.controlLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.streamLoop()
	}()
}

// stopWorkers waits for the loops after Stop and releases the encoder
func (s *Server) stopWorkers() {
	s.Stop()
	s.wg.Wait()
	s.voice.Events().Unsubscribe(s.eventSub)
	s.encoder.Close()
}

// controlLoop applies remote commands one at a time
func (s *Server) controlLoop() {
	for {
		select {
		case c := <-s.commands:
			c.reply <- s.apply(c.cmd)
		case <-s.stopChan:
			return
		}
	}
}

// submit hands a command to the control loop and waits for its result
func (s *Server) submit(cmd protocol.Command) error {
	c := command{cmd: cmd, reply: make(chan error, 1)}
	select {
	case s.commands <- c:
	case <-s.stopChan:
		return fmt.Errorf("server stopping")
	}
	select {
	case err := <-c.reply:
		return err
	case <-s.stopChan:
		return fmt.Errorf("server stopping")
	}
}

func (s *Server) apply(cmd protocol.Command) error {
	switch cmd.Command {
	case protocol.CommandSetType:
		return s.voice.SetType(noise.Type(cmd.Type))

	case protocol.CommandSetLength:
		if cmd.Length == nil {
			return fmt.Errorf("%s: missing length", cmd.Command)
		}
		return s.voice.SetLength(*cmd.Length)

	case protocol.CommandNoteOn:
		opts := []noisevoice.TriggerOption{noisevoice.WithWhen(cmd.When)}
		if cmd.Volume != nil {
			opts = append(opts, noisevoice.WithVolume(*cmd.Volume))
		}
		return s.voice.NoteOn(cmd.Note, opts...)

	case protocol.CommandNoteOff:
		return s.voice.NoteOff(noisevoice.WithWhen(cmd.When))

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
}

// relayEvent forwards noise voice notifications to every client
func (s *Server) relayEvent(e event.Event) {
	s.logger.Debug("Voice event", zap.String("event", e.Type), zap.Any("value", e.Value))

	data, err := json.Marshal(protocol.Message{
		Type:    protocol.TypeServerEvent,
		Payload: protocol.Event{Event: e.Type, Value: e.Value},
	})
	if err != nil {
		s.logger.Error("Failed to marshal event", zap.Error(err))
		return
	}
	s.broadcast(outgoing{messageType: websocket.TextMessage, data: data})
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}

	s.logger.Debug("New WebSocket connection", zap.String("remote", r.RemoteAddr))
	s.handleConnection(conn)
}

// handleConnection manages a client connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	select {
	case <-s.stopChan:
		s.logger.Debug("Rejecting connection during shutdown")
		return
	default:
	}

	hello, err := readHello(conn)
	if err != nil {
		s.logger.Warn("Handshake failed", zap.Error(err))
		writeError(conn, "bad_hello", err.Error())
		return
	}
	if hello.ClientID == "" {
		hello.ClientID = uuid.New().String()
	}

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan outgoing, sendQueueLen),
	}

	// hello goes first so it precedes any audio
	helloData, err := json.Marshal(protocol.Message{
		Type: protocol.TypeServerHello,
		Payload: protocol.ServerHello{
			ServerID: s.serverID,
			ClientID: client.ID,
			Name:     s.config.Name,
			Version:  protocol.Version,

			ProductName:     version.Product,
			SoftwareVersion: version.Version,

			Format: protocol.AudioFormat{
				Codec:      s.format.Codec,
				Channels:   s.format.Channels,
				SampleRate: s.format.SampleRate,
				BitDepth:   s.format.BitDepth,
			},
			Voice: protocol.VoiceState{
				Type:   string(s.voice.Type()),
				Length: s.voice.Length(),
			},
		},
	})
	if err != nil {
		s.logger.Error("Failed to marshal server hello", zap.Error(err))
		return
	}
	client.sendChan <- outgoing{messageType: websocket.TextMessage, data: helloData}

	// Check for duplicate client ID and register atomically
	s.clientsMu.Lock()
	if _, exists := s.clients[client.ID]; exists {
		s.clientsMu.Unlock()
		s.logger.Warn("Rejecting duplicate client", zap.String("client_id", client.ID))
		writeError(conn, "duplicate_client_id", "Client ID already connected")
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	s.logger.Info("Client connected", zap.String("name", client.Name), zap.String("client_id", client.ID))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.clientWriter(client)
	}()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		close(client.sendChan)
		<-writerDone
		s.logger.Info("Client disconnected", zap.String("name", client.Name))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", zap.Error(err))
			}
			return
		}
		s.handleMessage(client, data)
	}
}

func (s *Server) handleMessage(client *Client, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.sendError(client, "bad_message", err.Error())
		return
	}

	if env.Type != protocol.TypeClientCommand {
		s.sendError(client, "unexpected_message", fmt.Sprintf("unexpected message type %q", env.Type))
		return
	}

	var cmd protocol.Command
	if err := env.Decode(&cmd); err != nil {
		s.sendError(client, "bad_command", err.Error())
		return
	}

	if err := s.submit(cmd); err != nil {
		s.logger.Debug("Command rejected",
			zap.String("client_id", client.ID),
			zap.String("command", cmd.Command),
			zap.Error(err))
		s.sendError(client, "command_failed", err.Error())
	}
}

// clientWriter is the only goroutine writing to a client connection
func (s *Server) clientWriter(client *Client) {
	for msg := range client.sendChan {
		client.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.Conn.WriteMessage(msg.messageType, msg.data); err != nil {
			s.logger.Debug("Write failed", zap.String("client_id", client.ID), zap.Error(err))
			client.Conn.Close()
			// drain so senders never block on a dead client
			for range client.sendChan {
			}
			return
		}
	}
}

func (s *Server) sendError(client *Client, code, message string) {
	data, err := json.Marshal(protocol.Message{
		Type:    protocol.TypeServerError,
		Payload: protocol.Error{Error: code, Message: message},
	})
	if err != nil {
		return
	}
	s.enqueue(client, outgoing{messageType: websocket.TextMessage, data: data})
}

// broadcast queues msg for every client
func (s *Server) broadcast(msg outgoing) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		s.enqueue(client, msg)
	}
}

// enqueue drops the message when the client is not keeping up.
// Callers hold clientsMu or own the client.
func (s *Server) enqueue(client *Client, msg outgoing) {
	select {
	case client.sendChan <- msg:
	default:
		s.logger.Debug("Client queue full, dropping message", zap.String("client_id", client.ID))
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func readHello(conn *websocket.Conn) (protocol.ClientHello, error) {
	var hello protocol.ClientHello

	_, data, err := conn.ReadMessage()
	if err != nil {
		return hello, fmt.Errorf("error reading hello: %w", err)
	}

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return hello, fmt.Errorf("error unmarshaling message: %w", err)
	}
	if env.Type != protocol.TypeClientHello {
		return hello, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, env.Type)
	}
	if err := env.Decode(&hello); err != nil {
		return hello, err
	}
	if hello.Name == "" {
		return hello, fmt.Errorf("client hello missing name")
	}

	return hello, nil
}

// writeError sends an error directly, before a writer goroutine exists
func writeError(conn *websocket.Conn, code, message string) {
	data, err := json.Marshal(protocol.Message{
		Type:    protocol.TypeServerError,
		Payload: protocol.Error{Error: code, Message: message},
	})
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	conn.WriteMessage(websocket.TextMessage, data)
}
