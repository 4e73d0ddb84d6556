// ABOUTME: Noise generation algorithms
// ABOUTME: Implements white, pink (filtered) and brown (leaky integrated) noise
package noise

import (
	"math/rand"
	"time"
)

// Type selects a noise color. Unknown values are representable and
// generate white noise.
type Type string

const (
	White Type = "white"
	Pink  Type = "pink"
	Brown Type = "brown"
)

// Types returns the supported colors in display order
func Types() []Type {
	return []Type{White, Pink, Brown}
}

// Known reports whether t names a supported color
func (t Type) Known() bool {
	switch t {
	case White, Pink, Brown:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// Rand is the random source consumed by the generators.
// *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// NewRand returns a seeded source
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// NewTimeRand returns a source seeded from the wall clock
func NewTimeRand() *rand.Rand {
	return NewRand(time.Now().UnixNano())
}

// Generate produces n samples of the given color.
// Unrecognized types fall back to white noise.
func Generate(t Type, r Rand, n int) []float64 {
	switch t {
	case Pink:
		return PinkNoise(r, n)
	case Brown:
		return BrownNoise(r, n)
	default:
		return WhiteNoise(r, n)
	}
}

// WhiteNoise returns n uniform samples in [-1, 1)
func WhiteNoise(r Rand, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = r.Float64()*2 - 1
	}
	return out
}

// PinkNoise returns n samples of pink noise
func PinkNoise(r Rand, n int) []float64 {
	return PinkFilter(WhiteNoise(r, n))
}

// BrownNoise returns n samples of brown noise
func BrownNoise(r Rand, n int) []float64 {
	return BrownFilter(WhiteNoise(r, n))
}

// PinkFilter runs white noise through the pink smoothing network.
// State starts at zero on every call, so equal input gives equal output.
func PinkFilter(white []float64) []float64 {
	out := make([]float64, len(white))

	var b0, b1, b2, b3, b4, b5, b6 float64
	for i, w := range white {
		b0 = 0.99886*b0 + w*0.0555179
		b1 = 0.99332*b1 + w*0.0750759
		b2 = 0.96900*b2 + w*0.1538520
		b3 = 0.86650*b3 + w*0.3104856
		b4 = 0.55000*b4 + w*0.5329522
		b5 = -0.7616*b5 - w*0.0168980

		// b6 still holds the previous sample's term here
		out[i] = b0 + b1 + b2 + b3 + b4 + b5 + b6 + w*0.5362
		out[i] *= 0.11 // gain compensation

		b6 = w * 0.115926
	}

	return out
}

// BrownFilter runs white noise through a normalized leaky integrator
func BrownFilter(white []float64) []float64 {
	out := make([]float64, len(white))

	lastOutput := 0.0
	for i, w := range white {
		out[i] = (lastOutput + 0.02*w) / 1.02
		lastOutput = out[i]
		out[i] *= 3.5 // gain compensation
	}

	return out
}
