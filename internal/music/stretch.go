package music

import "math"

// WSOLA window sizes per speed bracket, in milliseconds. Slow speeds get
// longer sequences to keep transients from smearing into reverb-like
// artifacts.
type wsolaParams struct {
	sequenceMs int
	seekMs     int
	overlapMs  int
}

func paramsForSpeed(speed float64) wsolaParams {
	switch {
	case speed < 0.5:
		return wsolaParams{sequenceMs: 90, seekMs: 35, overlapMs: 14}
	case speed < 0.75:
		return wsolaParams{sequenceMs: 70, seekMs: 25, overlapMs: 12}
	default:
		return wsolaParams{sequenceMs: 40, seekMs: 15, overlapMs: 8}
	}
}

// stretchPlanar changes tempo by speed (>1 shortens) without shifting pitch.
// Output is assembled WSOLA-style from overlapping input windows, each picked
// near its nominal analysis position by waveform similarity on a mono mix and
// cross-faded into place. The result is forced to exactly
// round(framesIn/speed) frames so the editor clock cannot drift against the
// rendered buffer.
func stretchPlanar(planar [][]float32, sampleRate uint32, speed float64) [][]float32 {
	channels := len(planar)
	if channels == 0 {
		return planar
	}
	framesIn := len(planar[0])
	expected := expectedStretchFrames(framesIn, speed)
	if framesIn == 0 || math.Abs(speed-1.0) <= 1e-9 {
		return fitFrames(planar, expected)
	}

	p := paramsForSpeed(speed)
	seq := msToFrames(p.sequenceMs, sampleRate)
	seek := msToFrames(p.seekMs, sampleRate)
	overlap := msToFrames(p.overlapMs, sampleRate)
	if overlap >= seq {
		overlap = seq / 2
	}
	if overlap < 1 {
		overlap = 1
	}
	synHop := seq - overlap
	anaHop := int(math.Round(float64(synHop) * speed))
	if anaHop < 1 {
		anaHop = 1
	}
	if framesIn <= seq+seek {
		// Too short for windowed splicing; force the duration directly.
		return fitFrames(planar, expected)
	}

	ref := monoMix(planar)

	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, 0, expected+seq)
	}
	outRef := make([]float32, 0, expected+seq)

	// The first window is copied verbatim; later windows splice onto it.
	for c := range planar {
		out[c] = append(out[c], planar[c][:seq]...)
	}
	outRef = append(outRef, ref[:seq]...)

	for segment := 1; len(outRef) < expected+overlap; segment++ {
		nominal := segment * anaHop
		lo := nominal - seek
		if lo < 0 {
			lo = 0
		}
		hi := nominal + seek
		if hi > framesIn-seq {
			hi = framesIn - seq
		}
		if lo > hi {
			break
		}

		tail := outRef[len(outRef)-overlap:]
		best := bestSplice(ref, tail, lo, hi)

		// Cross-fade the overlap region, then append the rest of the
		// window after it.
		base := len(outRef) - overlap
		for k := 0; k < overlap; k++ {
			w := float32(k) / float32(overlap)
			for c := range out {
				out[c][base+k] = out[c][base+k]*(1-w) + planar[c][best+k]*w
			}
			outRef[base+k] = outRef[base+k]*(1-w) + ref[best+k]*w
		}
		for c := range out {
			out[c] = append(out[c], planar[c][best+overlap:best+seq]...)
		}
		outRef = append(outRef, ref[best+overlap:best+seq]...)
	}

	return fitFrames(out, expected)
}

// bestSplice returns the candidate position in [lo, hi] whose samples match
// the synthesized tail most closely (least squared difference over the
// overlap length).
func bestSplice(ref, tail []float32, lo, hi int) int {
	best := lo
	bestScore := math.Inf(1)
	for cand := lo; cand <= hi; cand++ {
		var score float64
		for k, t := range tail {
			d := float64(ref[cand+k] - t)
			score += d * d
		}
		if score < bestScore {
			bestScore = score
			best = cand
		}
	}
	return best
}

func expectedStretchFrames(framesIn int, speed float64) int {
	n := int(math.Round(float64(framesIn) / speed))
	if n < 1 {
		n = 1
	}
	return n
}

// fitFrames truncates or zero-pads every channel to exactly target frames.
func fitFrames(planar [][]float32, target int) [][]float32 {
	out := make([][]float32, len(planar))
	for c, src := range planar {
		dst := make([]float32, target)
		copy(dst, src)
		out[c] = dst
	}
	return out
}

func monoMix(planar [][]float32) []float32 {
	if len(planar) == 1 {
		mono := make([]float32, len(planar[0]))
		copy(mono, planar[0])
		return mono
	}
	frames := len(planar[0])
	scale := 1 / float32(len(planar))
	mono := make([]float32, frames)
	for _, ch := range planar {
		for i, s := range ch {
			mono[i] += s * scale
		}
	}
	return mono
}

func msToFrames(ms int, sampleRate uint32) int {
	n := ms * int(sampleRate) / 1000
	if n < 1 {
		n = 1
	}
	return n
}
