// Package music implements the renderer behind the audio engine: it decodes
// source bytes into PCM at the engine's fixed rate and channel count, derives
// speed/pitch variants from a 1.0x reference render, and caches variants both
// in memory and on disk per map.
package music

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bad-faith/beatplay/core/track"
	"github.com/bad-faith/beatplay/internal/log"
)

type variantKey struct {
	speedBits uint64
	fixPitch  bool
}

func keyFor(speed float64, fixPitch bool) variantKey {
	return variantKey{speedBits: math.Float64bits(speed), fixPitch: fixPitch}
}

// Renderer holds the 1.0x original-pitch base render plus its derived
// variants. It is owned by the audio goroutine and does no locking; Prewarm
// is the one concurrent entry point and must run before the renderer is
// handed to an engine.
type Renderer struct {
	log      *log.Logger
	base     *track.Track
	variants map[variantKey]*track.Track
	cacheDir string
}

func New(logger *log.Logger) *Renderer {
	return &Renderer{
		log:      logger,
		variants: make(map[variantKey]*track.Track),
	}
}

func (r *Renderer) Clear() {
	r.base = nil
	r.variants = make(map[variantKey]*track.Track)
}

// SetCacheDir points the disk cache at a per-map directory. The in-memory
// cache resets because its entries may belong to another map's files.
func (r *Renderer) SetCacheDir(dir string) {
	r.cacheDir = dir
	r.variants = make(map[variantKey]*track.Track)
}

func (r *Renderer) SetBase(base *track.Track) {
	r.base = base
	r.variants = make(map[variantKey]*track.Track)
}

func (r *Renderer) HasBase() bool { return r.base != nil }

// CachedOnly returns the variant if already in memory or on disk; it never
// renders.
func (r *Renderer) CachedOnly(speed float64, fixPitch bool, sampleRate uint32, channels int) *track.Track {
	key := keyFor(normalizeSpeed(speed), fixPitch)
	if hit, ok := r.variants[key]; ok {
		return hit
	}
	if cached := r.loadCachedVariant(key, sampleRate, channels); cached != nil {
		r.variants[key] = cached
		return cached
	}
	return nil
}

// GetOrRender returns the (speed, fixPitch) variant, deriving it from the
// base when not cached. Failed renders are remembered so a broken variant is
// not retried every command.
func (r *Renderer) GetOrRender(speed float64, fixPitch bool, sampleRate uint32, channels int) *track.Track {
	speed = normalizeSpeed(speed)
	key := keyFor(speed, fixPitch)
	if hit, ok := r.variants[key]; ok {
		return hit
	}
	if cached := r.loadCachedVariant(key, sampleRate, channels); cached != nil {
		r.variants[key] = cached
		return cached
	}
	if r.base == nil {
		return nil
	}
	rendered, err := renderFromBase(r.base, speed, fixPitch)
	if err != nil {
		r.log.Errorf("[MUSIC] render variant speed=%.3f fix_pitch=%v: %v", speed, fixPitch, err)
		r.variants[key] = nil
		return nil
	}
	r.storeCachedVariant(key, rendered)
	r.variants[key] = rendered
	return rendered
}

// Render decodes data and produces PCM at the requested rate, channel count
// and speed. It does not touch the variant cache.
func (r *Renderer) Render(data []byte, sampleRate uint32, channels int, speed float64, fixPitch bool, label, hintExt string) (*track.Track, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("render %s: invalid channel count %d", label, channels)
	}
	start := time.Now()
	decoded, err := decode(data, hintExt)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", label, err)
	}
	t, err := renderDecoded(decoded, sampleRate, channels, speed, fixPitch)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", label, err)
	}
	r.log.Debugf("[MUSIC] rendered %s: %d frames (%.2fs)", label, t.Frames(), time.Since(start).Seconds())
	return t, nil
}

// Prewarm renders the given speed variants from the base concurrently and
// installs them in both caches. The editor calls it for its speed hotkeys so
// the first rate change doesn't stall on a render.
func (r *Renderer) Prewarm(speeds []float64, fixPitch bool) error {
	if r.base == nil {
		return fmt.Errorf("prewarm: no base render")
	}
	rendered := make([]*track.Track, len(speeds))
	var g errgroup.Group
	for i, speed := range speeds {
		i, speed := i, speed
		g.Go(func() error {
			t, err := renderFromBase(r.base, normalizeSpeed(speed), fixPitch)
			if err != nil {
				return fmt.Errorf("prewarm %gx: %w", speed, err)
			}
			rendered[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, speed := range speeds {
		key := keyFor(normalizeSpeed(speed), fixPitch)
		r.variants[key] = rendered[i]
		r.storeCachedVariant(key, rendered[i])
	}
	return nil
}

// normalizeSpeed maps non-finite speeds to 1.0 and clamps the rest to the
// renderable range.
func normalizeSpeed(speed float64) float64 {
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return 1.0
	}
	if speed < 0.01 {
		return 0.01
	}
	if speed > 100 {
		return 100
	}
	return speed
}

// renderFromBase derives a rate variant from the interleaved base render.
func renderFromBase(base *track.Track, speed float64, fixPitch bool) (*track.Track, error) {
	if base.Channels <= 0 {
		return nil, fmt.Errorf("render variant: invalid channel count %d", base.Channels)
	}
	speed = normalizeSpeed(speed)
	if math.Abs(speed-1.0) <= 1e-9 {
		return base, nil
	}
	if base.Frames() == 0 {
		return nil, fmt.Errorf("render variant: no frames")
	}

	if fixPitch {
		planar := stretchPlanar(deinterleave(base.Data, base.Channels), base.SampleRate, speed)
		return track.New(base.SampleRate, base.Channels, interleave(planar)), nil
	}
	out, err := resampleInterleavedLinear(base.Data, base.Channels, 1.0/speed)
	if err != nil {
		return nil, fmt.Errorf("render variant: %w", err)
	}
	return track.New(base.SampleRate, base.Channels, out), nil
}

// renderDecoded takes planar stereo at the source rate through channel
// adaptation, the optional time stretch, and the rate conversion that also
// realizes the speed change in resample mode.
func renderDecoded(d *decodedAudio, targetSR uint32, targetCh int, speed float64, fixPitch bool) (*track.Track, error) {
	planar := adaptChannels(d, targetCh)
	speed = normalizeSpeed(speed)

	var ratio float64
	if fixPitch {
		if math.Abs(speed-1.0) > 1e-9 {
			planar = stretchPlanar(planar, d.sampleRate, speed)
		}
		ratio = float64(targetSR) / math.Max(float64(d.sampleRate), 1)
	} else {
		ratio = float64(targetSR) / math.Max(float64(d.sampleRate)*speed, 1)
	}

	if math.Abs(ratio-1.0) > 1e-9 {
		var err error
		planar, err = resamplePlanar(planar, ratio)
		if err != nil {
			return nil, err
		}
	}
	return track.New(targetSR, targetCh, interleave(planar)), nil
}

// adaptChannels maps decoded stereo planes onto the target channel count:
// 1 mixes down, 2 passes through, more than 2 repeats the right plane.
func adaptChannels(d *decodedAudio, targetCh int) [][]float32 {
	if targetCh == 1 {
		mono := make([]float32, d.frames())
		for i := range mono {
			mono[i] = (d.left[i] + d.right[i]) * 0.5
		}
		return [][]float32{mono}
	}
	planar := make([][]float32, targetCh)
	planar[0] = d.left
	for c := 1; c < targetCh; c++ {
		planar[c] = d.right
	}
	return planar
}
