// ABOUTME: Audio context and mix nodes
// ABOUTME: Gain nodes sum their inputs; the engine pulls the destination node
package graph

import (
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/resonate-noise/pkg/audio"
)

// Context is the host side of the audio graph
type Context interface {
	// SampleRate returns the fixed rendering rate
	SampleRate() int

	// CreateBuffer allocates a zeroed buffer
	CreateBuffer(channels, length, sampleRate int) (*audio.Buffer, error)

	// CreateGain creates an unconnected mix node
	CreateGain() *Gain

	// CurrentFrame returns the position of the next frame to be rendered
	CurrentFrame() int64
}

// Node produces audio into a mix.
// Render adds len(dst) frames starting at frame into dst. It is always
// called with the graph lock held.
type Node interface {
	Render(dst []float32, frame int64)
}

// Gain sums its inputs and scales the result
type Gain struct {
	graph   *sync.Mutex
	gain    float32
	inputs  []Node
	outputs []*Gain
	scratch []float32
}

// Connect routes g into dst
func (g *Gain) Connect(dst *Gain) {
	g.graph.Lock()
	defer g.graph.Unlock()
	g.connect(dst)
}

// Disconnect removes g from every node it feeds
func (g *Gain) Disconnect() {
	g.graph.Lock()
	defer g.graph.Unlock()

	for _, dst := range g.outputs {
		dst.inputs = removeNode(dst.inputs, g)
	}
	g.outputs = nil
}

// ReplaceInput swaps old for next in one step, so rendering never observes
// a state with neither connected. old may be nil.
func (g *Gain) ReplaceInput(old, next *Gain) {
	g.graph.Lock()
	defer g.graph.Unlock()

	if old != nil {
		g.inputs = removeNode(g.inputs, old)
		old.outputs = removeGain(old.outputs, g)
	}
	if next != nil {
		next.connect(g)
	}
}

// AddInput attaches a leaf source such as a buffer player
func (g *Gain) AddInput(n Node) {
	g.graph.Lock()
	defer g.graph.Unlock()
	g.inputs = append(g.inputs, n)
}

// RemoveInput detaches a leaf source
func (g *Gain) RemoveInput(n Node) {
	g.graph.Lock()
	defer g.graph.Unlock()
	g.inputs = removeNode(g.inputs, n)
}

// NumInputs returns how many nodes currently feed g
func (g *Gain) NumInputs() int {
	g.graph.Lock()
	defer g.graph.Unlock()
	return len(g.inputs)
}

// SetGain sets the linear scale factor
func (g *Gain) SetGain(v float32) {
	g.graph.Lock()
	defer g.graph.Unlock()
	g.gain = v
}

// GetGain returns the linear scale factor
func (g *Gain) GetGain() float32 {
	g.graph.Lock()
	defer g.graph.Unlock()
	return g.gain
}

func (g *Gain) Render(dst []float32, frame int64) {
	if len(g.inputs) == 0 {
		return
	}

	if cap(g.scratch) < len(dst) {
		g.scratch = make([]float32, len(dst))
	}
	mix := g.scratch[:len(dst)]
	clear(mix)

	for _, in := range g.inputs {
		in.Render(mix, frame)
	}
	for i, v := range mix {
		dst[i] += v * g.gain
	}
}

func (g *Gain) connect(dst *Gain) {
	for _, out := range g.outputs {
		if out == dst {
			return
		}
	}
	g.outputs = append(g.outputs, dst)
	dst.inputs = append(dst.inputs, g)
}

func removeNode(nodes []Node, n Node) []Node {
	for i, v := range nodes {
		if v == n {
			return append(nodes[:i:i], nodes[i+1:]...)
		}
	}
	return nodes
}

func removeGain(gains []*Gain, g *Gain) []*Gain {
	for i, v := range gains {
		if v == g {
			return append(gains[:i:i], gains[i+1:]...)
		}
	}
	return gains
}

// Engine is a Context that renders its destination node on demand
type Engine struct {
	mu          sync.Mutex
	sampleRate  int
	frame       atomic.Int64
	destination *Gain
}

// NewEngine creates an engine rendering at sampleRate
func NewEngine(sampleRate int) *Engine {
	e := &Engine{sampleRate: sampleRate}
	e.destination = e.CreateGain()
	return e
}

func (e *Engine) SampleRate() int { return e.sampleRate }

func (e *Engine) CreateBuffer(channels, length, sampleRate int) (*audio.Buffer, error) {
	return audio.NewBuffer(channels, length, sampleRate)
}

func (e *Engine) CreateGain() *Gain {
	return &Gain{graph: &e.mu, gain: 1}
}

func (e *Engine) CurrentFrame() int64 { return e.frame.Load() }

// Destination returns the root mix node
func (e *Engine) Destination() *Gain { return e.destination }

// Render fills dst with the next len(dst) frames of the mix and advances
// the clock
func (e *Engine) Render(dst []float32) {
	clear(dst)

	e.mu.Lock()
	defer e.mu.Unlock()

	frame := e.frame.Load()
	e.destination.Render(dst, frame)
	e.frame.Store(frame + int64(len(dst)))
}
