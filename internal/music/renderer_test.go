package music

import (
	"math"
	"testing"

	"github.com/bad-faith/beatplay/core/track"
)

func baseTrack(frames int) *track.Track {
	data := make([]float32, frames*2)
	for i := range data {
		data[i] = float32(0.25 * math.Sin(float64(i)*0.01))
	}
	return track.New(44100, 2, data)
}

func TestGetOrRenderIdentitySpeedReturnsBase(t *testing.T) {
	r := newTestRenderer(t)
	base := baseTrack(44100)
	r.SetBase(base)

	got := r.GetOrRender(1.0, false, 44100, 2)
	if got != base {
		t.Fatalf("1.0x should return the base render itself")
	}
}

func TestGetOrRenderCachesVariants(t *testing.T) {
	r := newTestRenderer(t)
	r.SetBase(baseTrack(44100))

	first := r.GetOrRender(2.0, false, 44100, 2)
	if first == nil {
		t.Fatalf("variant render failed")
	}
	if got, want := first.Frames(), 22050; got != want {
		t.Fatalf("2x variant: got %d frames, want %d", got, want)
	}
	if second := r.GetOrRender(2.0, false, 44100, 2); second != first {
		t.Fatalf("second lookup re-rendered instead of hitting the cache")
	}

	// A new base invalidates every derived variant.
	r.SetBase(baseTrack(88200))
	if third := r.GetOrRender(2.0, false, 44100, 2); third == first {
		t.Fatalf("stale variant survived a base change")
	}
}

func TestGetOrRenderWithoutBase(t *testing.T) {
	r := newTestRenderer(t)
	if got := r.GetOrRender(1.5, false, 44100, 2); got != nil {
		t.Fatalf("render without base returned %v", got)
	}
	if r.HasBase() {
		t.Fatalf("HasBase true with no base")
	}
}

func TestFailedRenderIsNotRetried(t *testing.T) {
	r := newTestRenderer(t)
	// A base with no frames cannot produce a rate variant.
	r.SetBase(track.New(44100, 2, nil))

	if got := r.GetOrRender(2.0, false, 44100, 2); got != nil {
		t.Fatalf("expected nil for unrenderable base")
	}
	// The failure is cached as a nil variant.
	if _, ok := r.variants[keyFor(2.0, false)]; !ok {
		t.Fatalf("failed render not remembered")
	}
	if got := r.GetOrRender(2.0, false, 44100, 2); got != nil {
		t.Fatalf("retry of a failed render returned %v", got)
	}
}

func TestCachedOnlyNeverRenders(t *testing.T) {
	r := newTestRenderer(t)
	r.SetCacheDir(t.TempDir())
	r.SetBase(baseTrack(44100))

	if got := r.CachedOnly(1.5, false, 44100, 2); got != nil {
		t.Fatalf("CachedOnly rendered a missing variant")
	}

	rendered := r.GetOrRender(1.5, false, 44100, 2)
	if rendered == nil {
		t.Fatalf("variant render failed")
	}
	if got := r.CachedOnly(1.5, false, 44100, 2); got != rendered {
		t.Fatalf("CachedOnly missed the in-memory variant")
	}
}

func TestCachedOnlySurvivesRestartViaDisk(t *testing.T) {
	dir := t.TempDir()

	r := newTestRenderer(t)
	r.SetCacheDir(dir)
	r.SetBase(baseTrack(44100))
	rendered := r.GetOrRender(0.5, false, 44100, 2)
	if rendered == nil {
		t.Fatalf("variant render failed")
	}

	// A fresh renderer with the same cache dir finds the variant on disk
	// without any base render.
	fresh := newTestRenderer(t)
	fresh.SetCacheDir(dir)
	fromDisk := fresh.CachedOnly(0.5, false, 44100, 2)
	if fromDisk == nil {
		t.Fatalf("disk cache missed after restart")
	}
	if fromDisk.Frames() != rendered.Frames() {
		t.Fatalf("disk variant has %d frames, rendered had %d", fromDisk.Frames(), rendered.Frames())
	}
}

func TestClearDropsEverything(t *testing.T) {
	r := newTestRenderer(t)
	r.SetBase(baseTrack(44100))
	if r.GetOrRender(2.0, false, 44100, 2) == nil {
		t.Fatalf("variant render failed")
	}

	r.Clear()
	if r.HasBase() {
		t.Fatalf("base survived Clear")
	}
	if len(r.variants) != 0 {
		t.Fatalf("variants survived Clear: %d", len(r.variants))
	}
}

func TestPrewarmInstallsVariants(t *testing.T) {
	r := newTestRenderer(t)
	r.SetBase(baseTrack(44100))

	speeds := []float64{0.5, 0.75, 1.5}
	if err := r.Prewarm(speeds, false); err != nil {
		t.Fatalf("prewarm: %v", err)
	}
	for _, speed := range speeds {
		v, ok := r.variants[keyFor(speed, false)]
		if !ok || v == nil {
			t.Fatalf("speed %v not installed", speed)
		}
		want := int(math.Round(44100 / speed))
		if got := v.Frames(); got < want-1 || got > want+1 {
			t.Fatalf("speed %v: got %d frames, want ~%d", speed, got, want)
		}
	}

	if err := newTestRenderer(t).Prewarm(speeds, false); err == nil {
		t.Fatalf("prewarm without base should fail")
	}
}

func TestRenderDecodesAndConverts(t *testing.T) {
	r := newTestRenderer(t)
	// 22.05kHz mono source upsampled to the 44.1kHz stereo engine format.
	src := wavBytes(22050, 1, make([]int16, 2205))
	got, err := r.Render(src, 44100, 2, 1.0, false, "song", "wav")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got.SampleRate != 44100 || got.Channels != 2 {
		t.Fatalf("output format: sr=%d ch=%d", got.SampleRate, got.Channels)
	}
	if got.Frames() < 4400 || got.Frames() > 4420 {
		t.Fatalf("expected ~4410 frames after upsampling, got %d", got.Frames())
	}

	if _, err := r.Render([]byte("junk"), 44100, 2, 1.0, false, "song", ""); err == nil {
		t.Fatalf("expected decode error for junk input")
	}
	if _, err := r.Render(src, 44100, 0, 1.0, false, "song", "wav"); err == nil {
		t.Fatalf("expected error for zero channels")
	}
}

func TestNormalizeSpeed(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{1.0, 1.0},
		{math.NaN(), 1.0},
		{math.Inf(1), 1.0},
		{math.Inf(-1), 1.0},
		{0, 0.01},
		{-5, 0.01},
		{1000, 100},
		{2.5, 2.5},
	}
	for _, c := range cases {
		if got := normalizeSpeed(c.in); got != c.want {
			t.Fatalf("normalizeSpeed(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
