// ABOUTME: Entry point for the noise voice player and stream server
// ABOUTME: Parses CLI flags and runs local playback, streaming or WAV export
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/resonate-noise/internal/client"
	"github.com/Resonate-Protocol/resonate-noise/internal/discovery"
	"github.com/Resonate-Protocol/resonate-noise/internal/server"
	"github.com/Resonate-Protocol/resonate-noise/internal/ui"
	"github.com/Resonate-Protocol/resonate-noise/internal/version"
	"github.com/Resonate-Protocol/resonate-noise/pkg/audio"
	"github.com/Resonate-Protocol/resonate-noise/pkg/audio/encode"
	"github.com/Resonate-Protocol/resonate-noise/pkg/audio/graph"
	"github.com/Resonate-Protocol/resonate-noise/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-noise/pkg/noise"
	"github.com/Resonate-Protocol/resonate-noise/pkg/noisevoice"
	"go.uber.org/zap"
)

var (
	noiseType  = flag.String("type", "white", "Noise type: white, pink or brown")
	length     = flag.Int("length", 0, "Buffer length in samples (default: one second)")
	sampleRate = flag.Int("rate", 48000, "Sample rate in Hz")
	seed       = flag.Int64("seed", 0, "Random seed (default: time based)")
	note       = flag.Float64("note", ui.DefaultNote, "Note identifier sent with note on")

	serve  = flag.Bool("serve", false, "Stream over WebSocket instead of playing locally")
	port   = flag.Int("port", 8928, "WebSocket server port")
	name   = flag.String("name", "", "Server friendly name (default: hostname-noisevoice)")
	codec  = flag.String("codec", "pcm", "Stream codec: pcm or opus")
	noMDNS = flag.Bool("no-mdns", false, "Disable mDNS advertisement")

	export  = flag.String("export", "", "Write one buffer to this WAV file and exit")
	connect = flag.String("connect", "", "Play and control a remote server: ws:// URL or \"auto\" to browse mDNS")

	noTUI       = flag.Bool("no-tui", false, "Disable the TUI and start the note immediately")
	logFile     = flag.String("log-file", "noisevoice.log", "Log file path")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// The TUI owns the terminal, so only log to stdout without it
	logger, err := newLogger(*logFile, *debug, *noTUI || *export != "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Error("noisevoice failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(path string, debug, console bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.OutputPaths = []string{path}
	if console {
		cfg.OutputPaths = append(cfg.OutputPaths, "stdout")
	}

	return cfg.Build()
}

func run(logger *zap.Logger) error {
	if *connect != "" {
		return runRemote(*connect, logger)
	}

	t := noise.Type(*noiseType)
	if !t.Known() {
		logger.Warn("Unknown noise type, generating white noise", zap.String("type", *noiseType))
	}

	config := noisevoice.Config{
		Type:   t,
		Length: *length,
		Logger: logger,
	}
	if *seed != 0 {
		config.Rand = noise.NewRand(*seed)
	}

	engine := graph.NewEngine(*sampleRate)
	nv, err := noisevoice.New(engine, config)
	if err != nil {
		return fmt.Errorf("failed to create noise voice: %w", err)
	}
	defer nv.Close()
	nv.Output().Connect(engine.Destination())

	logger.Info("Noise voice ready",
		zap.String("type", nv.Type().String()),
		zap.Int("length", nv.Length()),
		zap.Int("sample_rate", engine.SampleRate()))

	switch {
	case *export != "":
		return runExport(nv, engine, *export, logger)
	case *serve:
		return runServer(nv, engine, logger)
	default:
		return runPlayer(nv, engine, logger)
	}
}

// runExport renders exactly one loop of the buffer to a 16-bit mono WAV
func runExport(nv *noisevoice.NoiseVoice, engine *graph.Engine, path string, logger *zap.Logger) error {
	if err := nv.NoteOn(*note); err != nil {
		return err
	}

	frames := make([]float32, nv.Length())
	engine.Render(frames)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	format := audio.Format{
		Codec:      "pcm",
		SampleRate: engine.SampleRate(),
		Channels:   1,
		BitDepth:   16,
	}
	if err := encode.WriteWAV(f, format, frames); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logger.Info("Exported noise buffer", zap.String("path", path), zap.Int("frames", len(frames)))
	return nil
}

func runServer(nv *noisevoice.NoiseVoice, engine *graph.Engine, logger *zap.Logger) error {
	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-noisevoice", hostname)
	}

	srv, err := server.New(server.Config{
		Port:       *port,
		Name:       serverName,
		EnableMDNS: !*noMDNS,
		Codec:      *codec,
	}, nv, engine, logger)
	if err != nil {
		return err
	}

	stopOnSignal(srv.Stop, logger)

	if *noTUI {
		if err := nv.NoteOn(*note); err != nil {
			return err
		}
		return srv.Start()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	tuiErr := ui.Run(ui.Options{
		Voice:      nv,
		Events:     nv.Events(),
		SampleRate: engine.SampleRate(),
		Serving:    fmt.Sprintf("%s :%d%s", serverName, *port, server.Path),
		Clients:    srv.ClientCount,
	})
	srv.Stop()

	return errors.Join(tuiErr, <-errChan)
}

func runPlayer(nv *noisevoice.NoiseVoice, engine *graph.Engine, logger *zap.Logger) error {
	out := output.NewOto(logger)
	if err := out.Open(engine.SampleRate(), 2); err != nil {
		return err
	}
	defer out.Close()

	if err := out.Start(engine); err != nil {
		return err
	}

	if !*noTUI {
		return ui.Run(ui.Options{
			Voice:      nv,
			Events:     nv.Events(),
			SampleRate: engine.SampleRate(),
			Output:     out,
		})
	}

	if err := nv.NoteOn(*note); err != nil {
		return err
	}
	logger.Info("Playing, press Ctrl-C to stop")

	done := make(chan struct{})
	stopOnSignal(func() { close(done) }, logger)
	<-done

	return nv.NoteOff()
}

// runRemote plays a served voice locally and forwards control to it
func runRemote(target string, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if target == "auto" {
		servers, err := discovery.Browse(ctx, 3*time.Second, logger)
		if err != nil {
			return err
		}
		if len(servers) == 0 {
			return fmt.Errorf("no noise servers found on the network")
		}
		target = servers[0].URL()
		logger.Info("Using discovered server", zap.String("name", servers[0].Name), zap.String("url", target))
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	c := client.New(client.Config{
		URL:    target,
		Name:   fmt.Sprintf("%s-noisevoice", hostname),
		Logger: logger,
	})
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	format := c.Format()
	stream, err := client.NewStream(format)
	if err != nil {
		return err
	}

	go func() {
		for chunk := range c.AudioChunks {
			if err := stream.Push(chunk); err != nil {
				logger.Debug("Dropping undecodable chunk", zap.Error(err))
			}
		}
	}()

	out := output.NewOto(logger)
	if err := out.Open(format.SampleRate, 2); err != nil {
		return err
	}
	defer out.Close()

	if err := out.Start(stream); err != nil {
		return err
	}

	if !*noTUI {
		return ui.Run(ui.Options{
			Voice:      c,
			Events:     c.Events(),
			SampleRate: format.SampleRate,
			Output:     out,
			Serving:    target,
		})
	}

	if err := c.NoteOn(*note); err != nil {
		return err
	}
	logger.Info("Listening, press Ctrl-C to stop", zap.String("url", target))

	stop := make(chan struct{})
	stopOnSignal(func() { close(stop) }, logger)

	select {
	case <-stop:
		return c.NoteOff()
	case <-c.Done():
		return fmt.Errorf("connection to %s lost", target)
	}
}

func stopOnSignal(stop func(), logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Shutting down gracefully", zap.String("signal", sig.String()))
		stop()
	}()
}
