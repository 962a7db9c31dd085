package audio

import (
	"encoding/binary"
	"math"

	"github.com/bad-faith/beatplay/core/clock"
	"github.com/bad-faith/beatplay/internal/log"
)

// callbackCore is the device-callback body, shared by every backend. It runs
// on the backend's real-time thread: no locks, and no allocation once the
// scratch buffer has grown to the device's period size.
type callbackCore struct {
	shared   *clock.State
	ring     *spscRing
	format   Format
	channels int
	scratch  []float32
	log      *log.Logger
}

func newCallbackCore(shared *clock.State, ring *spscRing, cfg StreamConfig, logger *log.Logger) *callbackCore {
	return &callbackCore{
		shared:   shared,
		ring:     ring,
		format:   cfg.Format,
		channels: cfg.Channels,
		log:      logger,
	}
}

// Fill writes frames frames into out. Shortfalls from the ring are padded
// with silence; the clock only advances by frames that actually came out of
// the queue, so the timeline never runs ahead of audible audio.
func (c *callbackCore) Fill(out []byte, frames int) {
	if c.shared.CallbackStarted.CompareAndSwap(false, true) {
		c.log.Debugf("[DEVICE] output callback started")
	}

	if c.shared.FlushRequested.Swap(false) {
		c.ring.Drop()
	}

	need := frames * c.channels
	if cap(c.scratch) < need {
		c.scratch = make([]float32, need)
	}
	scratch := c.scratch[:need]

	got := c.ring.Pop(scratch)
	if got < need {
		for i := got; i < need; i++ {
			scratch[i] = 0
		}
		// Log the first starvation only; a struggling machine would
		// otherwise flood the log from a real-time thread.
		if c.shared.Underruns.Add(1) == 1 {
			c.log.Warnf("[DEVICE] underrun (queue starved)")
		}
	}

	convertSamples(out, scratch, c.format)

	gotFrames := got / c.channels
	if gotFrames > 0 && c.shared.Playing.Load() {
		played := c.shared.PlayedFrames.Add(uint64(gotFrames))
		c.shared.LastCallbackFrames.Store(played)
		c.shared.LastCallbackTimeNs.Store(c.shared.NowNs())
	}
}

// convertSamples encodes src into out in the device's wire format. Unknown
// formats render silence rather than garbage.
func convertSamples(out []byte, src []float32, format Format) {
	switch format {
	case FormatF32:
		for i, s := range src {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
		}
	case FormatS16:
		for i, s := range src {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(sampleToS16(s)))
		}
	case FormatU8:
		for i, s := range src {
			out[i] = sampleToU8(s)
		}
	default:
		for i := range out {
			out[i] = 0
		}
	}
}

func sampleToS16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(s * 32767)
}

func sampleToU8(s float32) uint8 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return uint8((s*0.5 + 0.5) * 255)
}
