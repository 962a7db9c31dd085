package clock

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestPausedTimeIsAuthoritative(t *testing.T) {
	s := New(44100, 2)
	s.SetPausedMapTimeMs(1234.5)
	if got := s.MapTimeMs(); got != 1234.5 {
		t.Fatalf("expected paused time 1234.5, got %v", got)
	}
	// Paused time ignores played frames entirely.
	s.PlayedFrames.Store(999999)
	if got := s.MapTimeMs(); got != 1234.5 {
		t.Fatalf("paused time should be stable, got %v", got)
	}
}

func TestMapTimeFromPlayedFrames(t *testing.T) {
	s := New(44100, 2)
	s.Playing.Store(true)
	s.PlayedFrames.Store(44100) // exactly one second of frames
	if got := s.MapTimeMs(); math.Abs(got-1000) > 1e-9 {
		t.Fatalf("expected 1000ms, got %v", got)
	}
}

func TestMapTimeAppliesSpeedAndOffset(t *testing.T) {
	s := New(44100, 2)
	s.Playing.Store(true)
	s.PlayedFrames.Store(44100)
	s.SetSpeed(2.0)
	s.SetMapTimeOffsetMs(-50)
	if got := s.MapTimeMs(); math.Abs(got-1950) > 1e-9 {
		t.Fatalf("expected 1950ms, got %v", got)
	}
}

func TestMapTimeOriginRebase(t *testing.T) {
	s := New(44100, 2)
	s.Playing.Store(true)
	s.PlayedFrames.Store(88200)
	s.OriginFrame.Store(44100)
	if got := s.MapTimeMs(); math.Abs(got-1000) > 1e-9 {
		t.Fatalf("expected 1000ms after rebase, got %v", got)
	}
	// Origin ahead of played clamps to zero rather than going negative.
	s.OriginFrame.Store(176400)
	if got := s.MapTimeMs(); got != 0 {
		t.Fatalf("expected 0ms when origin is ahead, got %v", got)
	}
}

func TestInterpolationNeverMovesBackward(t *testing.T) {
	s := New(44100, 2)
	base := time.Now()
	now := base
	s.SetNowFunc(func() time.Time { return now })
	s.epoch = base

	s.Playing.Store(true)
	s.CallbackStarted.Store(true)
	s.PlayedFrames.Store(44100)
	s.LastCallbackFrames.Store(44100)
	s.LastCallbackTimeNs.Store(0)

	// 10ms after the callback snapshot the clock should have advanced ~10ms.
	now = base.Add(10 * time.Millisecond)
	got := s.MapTimeMs()
	if got < 1000 || got > 1011 {
		t.Fatalf("expected ~1010ms, got %v", got)
	}

	// A stale snapshot (behind played frames) must not pull time backward.
	s.LastCallbackFrames.Store(0)
	s.LastCallbackTimeNs.Store(0)
	now = base
	if got := s.MapTimeMs(); got < 1000 {
		t.Fatalf("interpolation moved time backward: %v", got)
	}
}

func TestInterpolationRequiresCallbackStart(t *testing.T) {
	s := New(44100, 2)
	base := time.Now()
	now := base.Add(5 * time.Second)
	s.SetNowFunc(func() time.Time { return now })
	s.epoch = base

	s.Playing.Store(true)
	s.PlayedFrames.Store(44100)
	// CallbackStarted is false: no interpolation term.
	if got := s.MapTimeMs(); math.Abs(got-1000) > 1e-9 {
		t.Fatalf("expected exactly 1000ms before first callback, got %v", got)
	}
}

func TestSongTotalMs(t *testing.T) {
	s := New(44100, 2)
	if got := s.SongTotalMs(); got != 0 {
		t.Fatalf("expected 0 with no music, got %v", got)
	}
	s.MusicFrames.Store(441000) // ten seconds at 1.0x
	if got := s.SongTotalMs(); math.Abs(got-10000) > 1e-6 {
		t.Fatalf("expected 10000ms, got %v", got)
	}
	// At 2x the rendered buffer holds half the frames; the map-time total is
	// unchanged.
	s.SetSpeed(2.0)
	s.MusicFrames.Store(220500)
	if got := s.SongTotalMs(); math.Abs(got-10000) > 1e-6 {
		t.Fatalf("expected total to stay 10000ms at 2x, got %v", got)
	}
}

// TestVersionProtocolNoTornReads hammers MapTimeMs from several goroutines
// while a writer keeps rewriting (origin, speed, played) between
// BeginTimeUpdate/EndTimeUpdate. Writers always publish tuples whose map time
// is exactly 1000ms, so any other reading means a torn tuple leaked out.
func TestVersionProtocolNoTornReads(t *testing.T) {
	s := New(44100, 2)
	s.Playing.Store(true)

	s.OriginFrame.Store(0)
	s.PlayedFrames.Store(44100)
	s.SetSpeed(1.0)

	stop := make(chan struct{})
	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		flip := false
		for {
			select {
			case <-stop:
				return
			default:
			}
			s.BeginTimeUpdate()
			if flip {
				// 2x speed, half the relative frames: still 1000ms.
				s.OriginFrame.Store(100000)
				s.PlayedFrames.Store(100000 + 22050)
				s.SetSpeed(2.0)
			} else {
				s.OriginFrame.Store(0)
				s.PlayedFrames.Store(44100)
				s.SetSpeed(1.0)
			}
			flip = !flip
			s.EndTimeUpdate()
		}
	}()

	errs := make(chan float64, 8)
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 20000; i++ {
				got := s.MapTimeMs()
				if math.Abs(got-1000) > 1e-6 {
					select {
					case errs <- got:
					default:
					}
					return
				}
			}
		}()
	}

	readers.Wait()
	close(stop)
	writer.Wait()

	select {
	case got := <-errs:
		t.Fatalf("torn read observed: %vms", got)
	default:
	}
}

func TestFloatBitsRoundTrip(t *testing.T) {
	s := New(48000, 2)
	s.SetMapTimeOffsetMs(-123.456)
	if got := s.MapTimeOffsetMs(); got != -123.456 {
		t.Fatalf("offset round trip: %v", got)
	}
	s.SetVolume(0.37)
	if got := s.Volume(); got != float32(0.37) {
		t.Fatalf("volume round trip: %v", got)
	}
	s.SetSpeed(0.1)
	if got := s.Speed(); math.Abs(got-0.1) > 1e-7 {
		t.Fatalf("speed round trip: %v", got)
	}
}
