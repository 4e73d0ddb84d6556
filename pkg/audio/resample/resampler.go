// ABOUTME: Streaming linear resampler for mono float frames
// ABOUTME: Used by the stream server when the codec cannot run at the engine rate
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	ratio      float64

	// position of the next output frame, indexed from the previous chunk's
	// last frame (0) into the current chunk (1..n)
	position float64
	last     float32
}

// New creates a new resampler
func New(inputRate, outputRate int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Process resamples input and appends the produced frames to output
func (r *Resampler) Process(input []float32, output []float32) []float32 {
	if len(input) == 0 {
		return output
	}

	end := float64(len(input))
	for r.position < end {
		idx := int(r.position)
		frac := float32(r.position - float64(idx))

		a := r.frame(input, idx)
		b := r.frame(input, idx+1)
		output = append(output, a+(b-a)*frac)

		r.position += r.ratio
	}

	r.position -= end
	r.last = input[len(input)-1]

	return output
}

func (r *Resampler) frame(input []float32, idx int) float32 {
	if idx == 0 {
		return r.last
	}
	return input[idx-1]
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0
	r.last = 0
}

// OutputFramesNeeded estimates how many output frames inputFrames will produce
func (r *Resampler) OutputFramesNeeded(inputFrames int) int {
	return inputFrames * r.outputRate / r.inputRate
}

// InputRate returns the rate frames are consumed at
func (r *Resampler) InputRate() int { return r.inputRate }

// OutputRate returns the rate frames are produced at
func (r *Resampler) OutputRate() int { return r.outputRate }
