package music

import (
	"math"
	"testing"
)

func rampPlane(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

func TestResamplePlanarIdentity(t *testing.T) {
	in := [][]float32{rampPlane(100), rampPlane(100)}
	out, err := resamplePlanar(in, 1.0)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	for c := range out {
		if len(out[c]) != 100 {
			t.Fatalf("channel %d: got %d frames, want 100", c, len(out[c]))
		}
		for i, s := range out[c] {
			if s != in[c][i] {
				t.Fatalf("channel %d frame %d: got %v want %v", c, i, s, in[c][i])
			}
		}
	}
}

func TestResamplePlanarUpsampleInterpolates(t *testing.T) {
	in := [][]float32{rampPlane(100)}
	out, err := resamplePlanar(in, 2.0)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if len(out[0]) != 200 {
		t.Fatalf("got %d frames, want 200", len(out[0]))
	}
	// A ramp stays a ramp at half the slope, up to the clamped tail.
	for i := 0; i < 190; i++ {
		want := float32(i) * 0.5
		if math.Abs(float64(out[0][i]-want)) > 1e-4 {
			t.Fatalf("frame %d: got %v want %v", i, out[0][i], want)
		}
	}
}

func TestResamplePlanarDownsampleLength(t *testing.T) {
	in := [][]float32{rampPlane(1000)}
	out, err := resamplePlanar(in, 0.5)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if len(out[0]) != 500 {
		t.Fatalf("got %d frames, want 500", len(out[0]))
	}
}

func TestResamplePlanarErrors(t *testing.T) {
	if _, err := resamplePlanar(nil, 1.0); err == nil {
		t.Fatalf("expected error for no channels")
	}
	if _, err := resamplePlanar([][]float32{{}}, 1.0); err == nil {
		t.Fatalf("expected error for no frames")
	}
	if _, err := resamplePlanar([][]float32{rampPlane(10)}, 0); err == nil {
		t.Fatalf("expected error for zero ratio")
	}
	if _, err := resamplePlanar([][]float32{rampPlane(10)}, math.NaN()); err == nil {
		t.Fatalf("expected error for NaN ratio")
	}
	if _, err := resamplePlanar([][]float32{rampPlane(10), rampPlane(9)}, 1.0); err == nil {
		t.Fatalf("expected error for mismatched channel lengths")
	}
}

func TestResampleInterleaved(t *testing.T) {
	// Interleaved stereo ramp: L counts up, R counts down.
	const frames = 100
	in := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		in[i*2] = float32(i)
		in[i*2+1] = float32(frames - i)
	}

	out, err := resampleInterleavedLinear(in, 2, 0.5)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if len(out) != 50*2 {
		t.Fatalf("got %d samples, want 100", len(out))
	}
	for i := 0; i < 50; i++ {
		if want := float32(i * 2); out[i*2] != want {
			t.Fatalf("L frame %d: got %v want %v", i, out[i*2], want)
		}
	}

	if _, err := resampleInterleavedLinear(in[:5], 2, 1.0); err == nil {
		t.Fatalf("expected error for buffer not divisible by channels")
	}
	if _, err := resampleInterleavedLinear(in, 0, 1.0); err == nil {
		t.Fatalf("expected error for zero channels")
	}
}

func TestInterleaveRoundTrip(t *testing.T) {
	data := []float32{0, 10, 1, 11, 2, 12, 3, 13}
	planar := deinterleave(data, 2)
	if len(planar) != 2 || len(planar[0]) != 4 {
		t.Fatalf("deinterleave shape: %d channels x %d frames", len(planar), len(planar[0]))
	}
	if planar[0][2] != 2 || planar[1][2] != 12 {
		t.Fatalf("deinterleave values wrong: %v", planar)
	}
	back := interleave(planar)
	for i, s := range back {
		if s != data[i] {
			t.Fatalf("round trip sample %d: got %v want %v", i, s, data[i])
		}
	}
}

func TestOutputFrames(t *testing.T) {
	cases := []struct {
		in    int
		ratio float64
		want  int
	}{
		{100, 1.0, 100},
		{100, 0.5, 50},
		{101, 0.5, 51}, // ceil
		{100, 2.0, 200},
		{1, 0.001, 1}, // never below one frame
	}
	for _, c := range cases {
		if got := outputFrames(c.in, c.ratio); got != c.want {
			t.Fatalf("outputFrames(%d, %v) = %d, want %d", c.in, c.ratio, got, c.want)
		}
	}
}
