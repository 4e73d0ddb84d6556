// ABOUTME: Audio streaming loop
// ABOUTME: Renders the engine against wall time, encodes chunks and broadcasts to clients
package server

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// renderFrames returns the number of engine frames rendered per tick
func (s *Server) renderFrames() int {
	return s.engine.SampleRate() * ChunkDurationMs / 1000
}

// chunkFrames returns the number of frames in each encoded chunk
func (s *Server) chunkFrames() int {
	return s.format.SampleRate * ChunkDurationMs / 1000
}

const (
	// maxBacklogMs bounds how much late audio is still sent after a stall
	maxBacklogMs = 1000

	// streamLogEvery is the chunk interval between progress logs
	streamLogEvery = 500
)

// frameClock compares engine frames rendered against frames due by wall time
type frameClock struct {
	rate     int
	start    time.Time
	rendered int64
}

func newFrameClock(rate int, start time.Time) *frameClock {
	return &frameClock{rate: rate, start: start}
}

// due returns the frames that should have been rendered by now
func (c *frameClock) due(now time.Time) int64 {
	elapsed := now.Sub(c.start)
	if elapsed <= 0 {
		return 0
	}
	rate := int64(c.rate)
	sec := int64(elapsed / time.Second)
	rem := int64(elapsed % time.Second)
	return sec*rate + rem*rate/int64(time.Second)
}

// chunks returns how many chunks of size frames are owed at now. When the
// backlog exceeds maxBacklogMs all but one chunk is returned as skip.
func (c *frameClock) chunks(now time.Time, size int) (send, skip int) {
	if size <= 0 {
		return 0, 0
	}
	owed := c.due(now) - c.rendered
	if owed < int64(size) {
		return 0, 0
	}
	if owed > int64(c.rate)*maxBacklogMs/1000 {
		skip = int((owed - int64(size)) / int64(size))
		owed -= int64(skip) * int64(size)
	}
	return int(owed / int64(size)), skip
}

func (c *frameClock) advance(frames int) {
	c.rendered += int64(frames)
}

// crossedMultiple reports whether a counter moving from before to after
// passed a multiple of every
func crossedMultiple(before, after, every int64) bool {
	return after/every != before/every
}

// streamLoop renders the frames owed by elapsed time on every tick, so
// ticks dropped under load are caught up on the next one
func (s *Server) streamLoop() {
	ticker := time.NewTicker(ChunkDurationMs * time.Millisecond)
	defer ticker.Stop()

	clock := newFrameClock(s.engine.SampleRate(), time.Now())
	frames := make([]float32, s.renderFrames())
	var pending []float32
	var sent int64

	for {
		select {
		case now := <-ticker.C:
			var n int
			pending, n = s.streamTick(clock, now, frames, pending)
			before := sent
			sent += int64(n)
			if crossedMultiple(before, sent, streamLogEvery) {
				s.logger.Debug("Streaming",
					zap.Int64("chunks", sent),
					zap.Int("clients", s.ClientCount()))
			}

		case <-s.stopChan:
			return
		}
	}
}

// streamTick brings the engine up to now. Frames skipped after a stall are
// still rendered so the engine clock matches wall time, but are not sent.
func (s *Server) streamTick(clock *frameClock, now time.Time, frames, pending []float32) ([]float32, int) {
	send, skip := clock.chunks(now, len(frames))
	if skip > 0 {
		s.logger.Warn("Stream fell behind, dropping audio",
			zap.Int("frames", skip*len(frames)))
		for i := 0; i < skip; i++ {
			s.engine.Render(frames)
			clock.advance(len(frames))
		}
		if s.resampler != nil {
			s.resampler.Reset()
		}
		pending = pending[:0]
	}

	sent := 0
	for i := 0; i < send; i++ {
		var n int
		var err error
		pending, n, err = s.streamChunk(frames, pending)
		clock.advance(len(frames))
		sent += n
		if err != nil {
			s.logger.Error("Failed to encode chunk", zap.Error(err))
		}
	}

	return pending, sent
}

// streamChunk renders frames from the engine and broadcasts every complete
// encoded chunk. Resampled frames that do not fill a chunk stay in pending.
// The engine keeps advancing with no clients so the voice's scheduled notes
// stay on the wall clock.
func (s *Server) streamChunk(frames, pending []float32) ([]float32, int, error) {
	s.engine.Render(frames)

	if s.ClientCount() == 0 {
		if s.resampler != nil {
			s.resampler.Reset()
		}
		return pending[:0], 0, nil
	}

	if s.resampler == nil {
		return pending, 1, s.broadcastFrames(frames)
	}

	pending = s.resampler.Process(frames, pending)
	size := s.chunkFrames()
	n := 0
	for len(pending) >= size {
		if err := s.broadcastFrames(pending[:size]); err != nil {
			return pending[:0], n, err
		}
		pending = append(pending[:0], pending[size:]...)
		n++
	}

	return pending, n, nil
}

func (s *Server) broadcastFrames(frames []float32) error {
	data, err := s.encoder.Encode(frames)
	if err != nil {
		return err
	}

	s.broadcast(outgoing{messageType: websocket.BinaryMessage, data: data})
	return nil
}
