package music

import "fmt"

// resamplePlanar converts each channel by linear interpolation. A ratio above
// 1 lengthens the buffer. Linear quality is below sinc but avoids multi-second
// offline stalls on full-length tracks.
func resamplePlanar(planar [][]float32, ratio float64) ([][]float32, error) {
	if len(planar) == 0 {
		return nil, fmt.Errorf("resample: no channels")
	}
	if !(ratio > 0) {
		return nil, fmt.Errorf("resample: invalid ratio %v", ratio)
	}
	framesIn := len(planar[0])
	for c := 1; c < len(planar); c++ {
		if len(planar[c]) != framesIn {
			return nil, fmt.Errorf("resample: channel length mismatch")
		}
	}
	if framesIn == 0 {
		return nil, fmt.Errorf("resample: no frames")
	}

	framesOut := outputFrames(framesIn, ratio)
	invRatio := 1.0 / ratio

	out := make([][]float32, len(planar))
	for c, src := range planar {
		dst := make([]float32, framesOut)
		for i := 0; i < framesOut; i++ {
			srcPos := float64(i) * invRatio
			idx0 := int(srcPos)
			frac := float32(srcPos - float64(idx0))
			if idx0 > framesIn-1 {
				idx0 = framesIn - 1
			}
			idx1 := idx0 + 1
			if idx1 > framesIn-1 {
				idx1 = framesIn - 1
			}
			s0 := src[idx0]
			s1 := src[idx1]
			dst[i] = s0 + (s1-s0)*frac
		}
		out[c] = dst
	}
	return out, nil
}

// resampleInterleavedLinear is the interleaved variant used when deriving a
// rate variant straight from the interleaved base render.
func resampleInterleavedLinear(input []float32, channels int, ratio float64) ([]float32, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("resample: invalid channel count %d", channels)
	}
	if len(input)%channels != 0 {
		return nil, fmt.Errorf("resample: buffer not divisible by %d channels", channels)
	}
	if !(ratio > 0) {
		return nil, fmt.Errorf("resample: invalid ratio %v", ratio)
	}
	framesIn := len(input) / channels
	if framesIn == 0 {
		return nil, fmt.Errorf("resample: no frames")
	}

	framesOut := outputFrames(framesIn, ratio)
	invRatio := 1.0 / ratio
	out := make([]float32, framesOut*channels)

	for i := 0; i < framesOut; i++ {
		srcPos := float64(i) * invRatio
		idx0 := int(srcPos)
		frac := float32(srcPos - float64(idx0))
		if idx0 > framesIn-1 {
			idx0 = framesIn - 1
		}
		idx1 := idx0 + 1
		if idx1 > framesIn-1 {
			idx1 = framesIn - 1
		}
		a0 := idx0 * channels
		a1 := idx1 * channels
		dst := i * channels
		for c := 0; c < channels; c++ {
			s0 := input[a0+c]
			s1 := input[a1+c]
			out[dst+c] = s0 + (s1-s0)*frac
		}
	}
	return out, nil
}

// outputFrames is ceil(framesIn*ratio), minimum 1.
func outputFrames(framesIn int, ratio float64) int {
	n := int(float64(framesIn) * ratio)
	if float64(n) < float64(framesIn)*ratio {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

func interleave(planar [][]float32) []float32 {
	channels := len(planar)
	if channels == 0 {
		return nil
	}
	frames := len(planar[0])
	out := make([]float32, 0, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			out = append(out, planar[c][i])
		}
	}
	return out
}

func deinterleave(data []float32, channels int) [][]float32 {
	frames := len(data) / channels
	planar := make([][]float32, channels)
	for c := range planar {
		planar[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			planar[c][i] = data[i*channels+c]
		}
	}
	return planar
}
