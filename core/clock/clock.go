// Package clock holds the shared playback clock: a block of independently
// atomic fields read from any goroutine and written only by the audio
// goroutine (configuration half) or the device callback (played-frame half).
// It is the single source of truth for "what time is it in the song".
package clock

import (
	"math"
	"runtime"
	"sync/atomic"
	"time"
)

// State is created once per engine and shared by pointer. Write ownership is
// split per field: the device callback owns CallbackStarted, PlayedFrames,
// LastCallbackFrames, LastCallbackTimeNs and Underruns; the audio goroutine
// owns everything else. Multi-field updates to the (origin, speed, offset,
// played) tuple must be bracketed by BeginTimeUpdate/EndTimeUpdate so readers
// never observe a torn tuple.
type State struct {
	sampleRate uint32
	channels   int

	epoch time.Time
	now   atomic.Value // func() time.Time

	Playing         atomic.Bool
	CallbackStarted atomic.Bool

	// Absolute output frame index the device has finished consuming
	// (exclusive). Only the device callback advances it; it never decreases
	// except through a bracketed seek/speed rewrite.
	PlayedFrames atomic.Uint64

	// Snapshot pair written by the device callback, used to interpolate
	// sub-callback-period time.
	LastCallbackFrames atomic.Uint64
	LastCallbackTimeNs atomic.Int64

	// Absolute frame index corresponding to map time 0.
	OriginFrame atomic.Uint64

	// Even = stable, odd = a writer is mid-update.
	timeVersion atomic.Uint64

	pausedMapTimeBits   atomic.Uint64
	mapTimeOffsetBits   atomic.Uint64
	hitsoundsOffsetBits atomic.Uint64

	speedBits          atomic.Uint32
	volumeBits         atomic.Uint32
	hitsoundVolumeBits atomic.Uint32
	spatialBits        atomic.Uint32

	// Total rendered music length in output frames, 0 when nothing loaded.
	MusicFrames atomic.Uint64

	// One-shot: tells the callback to drop already-queued stale audio.
	FlushRequested atomic.Bool

	// True while a potentially slow pitch-preserving re-render is running.
	Loading atomic.Bool

	Underruns atomic.Uint64
}

func New(sampleRate uint32, channels int) *State {
	s := &State{
		sampleRate: sampleRate,
		channels:   channels,
		epoch:      time.Now(),
	}
	s.now.Store(time.Now)
	s.SetPausedMapTimeMs(0)
	s.SetMapTimeOffsetMs(0)
	s.SetHitsoundsOffsetMs(0)
	s.SetSpeed(1.0)
	s.SetVolume(1.0)
	s.SetHitsoundVolume(1.0)
	s.SetSpatialAudio(0.0)
	return s
}

func (s *State) SampleRate() uint32 { return s.sampleRate }
func (s *State) Channels() int      { return s.channels }

// NowNs returns monotonic nanoseconds since engine construction.
func (s *State) NowNs() int64 {
	now := s.now.Load().(func() time.Time)
	return now().Sub(s.epoch).Nanoseconds()
}

// SetNowFunc overrides the wall clock. Tests use it to advance time
// deterministically.
func (s *State) SetNowFunc(f func() time.Time) { s.now.Store(f) }

func (s *State) Speed() float64 {
	return float64(math.Float32frombits(s.speedBits.Load()))
}

func (s *State) SetSpeed(v float64) {
	s.speedBits.Store(math.Float32bits(float32(v)))
}

func (s *State) Volume() float32 {
	return math.Float32frombits(s.volumeBits.Load())
}

func (s *State) SetVolume(v float32) {
	s.volumeBits.Store(math.Float32bits(v))
}

func (s *State) HitsoundVolume() float32 {
	return math.Float32frombits(s.hitsoundVolumeBits.Load())
}

func (s *State) SetHitsoundVolume(v float32) {
	s.hitsoundVolumeBits.Store(math.Float32bits(v))
}

func (s *State) SpatialAudio() float32 {
	return math.Float32frombits(s.spatialBits.Load())
}

func (s *State) SetSpatialAudio(v float32) {
	s.spatialBits.Store(math.Float32bits(v))
}

func (s *State) PausedMapTimeMs() float64 {
	return math.Float64frombits(s.pausedMapTimeBits.Load())
}

func (s *State) SetPausedMapTimeMs(v float64) {
	s.pausedMapTimeBits.Store(math.Float64bits(v))
}

func (s *State) MapTimeOffsetMs() float64 {
	return math.Float64frombits(s.mapTimeOffsetBits.Load())
}

func (s *State) SetMapTimeOffsetMs(v float64) {
	s.mapTimeOffsetBits.Store(math.Float64bits(v))
}

func (s *State) HitsoundsOffsetMs() float64 {
	return math.Float64frombits(s.hitsoundsOffsetBits.Load())
}

func (s *State) SetHitsoundsOffsetMs(v float64) {
	s.hitsoundsOffsetBits.Store(math.Float64bits(v))
}

// BeginTimeUpdate marks the (origin, speed, offset, played) tuple as
// mid-update. Readers retry until EndTimeUpdate. Audio goroutine only; calls
// must not nest.
func (s *State) BeginTimeUpdate() { s.timeVersion.Add(1) }

// EndTimeUpdate publishes a consistent tuple.
func (s *State) EndTimeUpdate() { s.timeVersion.Add(1) }

// MapTimeMs estimates the current map time. While paused it returns the
// stored paused time; while playing it derives time from the played-frame
// counter plus an interpolation term covering the span since the last device
// callback, retrying whenever a writer is mid-update.
func (s *State) MapTimeMs() float64 {
	if !s.Playing.Load() {
		return s.PausedMapTimeMs()
	}
	for {
		v1 := s.timeVersion.Load()
		if v1&1 == 1 {
			runtime.Gosched()
			continue
		}

		played := s.PlayedFrames.Load()
		playedInterp := played
		if s.Playing.Load() && s.CallbackStarted.Load() {
			lastFrames := s.LastCallbackFrames.Load()
			lastNs := s.LastCallbackTimeNs.Load()
			nowNs := s.NowNs()
			if nowNs >= lastNs {
				dt := uint64(nowNs - lastNs)
				if lim := ^uint64(0) / uint64(s.sampleRate); dt > lim {
					dt = lim
				}
				add := dt * uint64(s.sampleRate) / 1_000_000_000
				// Interpolation may only move time forward.
				if est := lastFrames + add; est > playedInterp {
					playedInterp = est
				}
			}
		}

		origin := s.OriginFrame.Load()
		speed := s.Speed()
		offset := s.MapTimeOffsetMs()

		if v2 := s.timeVersion.Load(); v1 != v2 {
			runtime.Gosched()
			continue
		}

		var rel float64
		if playedInterp > origin {
			rel = float64(playedInterp - origin)
		}
		return rel / float64(s.sampleRate) * 1000.0 * speed + offset
	}
}

// SongTotalMs reports the loaded track's map-time length. The rendered
// buffer's frame count already scales inversely with speed, so the result is
// stable across speed changes.
func (s *State) SongTotalMs() float64 {
	frames := s.MusicFrames.Load()
	if frames == 0 {
		return 0
	}
	return float64(frames) / float64(s.sampleRate) * 1000.0 * s.Speed()
}
