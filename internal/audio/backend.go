// Package audio is the playback engine: a non-blocking command façade, a
// render goroutine that mixes music and hitsound voices into a lock-free
// ring, and a device callback that drains the ring and drives the shared
// playback clock.
package audio

// Format is the sample format a device consumes.
type Format int

const (
	FormatF32 Format = iota // little-endian float32
	FormatS16               // little-endian signed 16-bit
	FormatU8                // unsigned 8-bit
	FormatUnknown
)

func (f Format) BytesPerSample() int {
	switch f {
	case FormatF32:
		return 4
	case FormatS16:
		return 2
	case FormatU8:
		return 1
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f {
	case FormatF32:
		return "f32"
	case FormatS16:
		return "s16"
	case FormatU8:
		return "u8"
	default:
		return "unknown"
	}
}

// StreamConfig describes an output stream. BufferFrames is the preferred
// device period; backends clamp it to whatever they support.
type StreamConfig struct {
	SampleRate   uint32
	Channels     int
	Format       Format
	BufferFrames uint32
}

// BytesPerFrame returns the size of one interleaved frame on the wire.
func (c StreamConfig) BytesPerFrame() int {
	return c.Channels * c.Format.BytesPerSample()
}

// DataCallback fills out with exactly frames frames of interleaved audio in
// the stream's format. It runs on the backend's real-time thread and must not
// block or allocate.
type DataCallback func(out []byte, frames int)

// Backend abstracts the OS audio layer so the engine can run against real
// hardware or a hand-driven test device.
type Backend interface {
	// Probe resolves the preferred config against what the device supports.
	Probe(preferred StreamConfig) (StreamConfig, error)

	// OpenStream builds a callback-driven output stream. The stream starts
	// paused; no callback fires until Start.
	OpenStream(cfg StreamConfig, cb DataCallback) (Stream, error)

	Close() error
}

// Stream is a started-or-paused output stream bound to one DataCallback.
type Stream interface {
	Start() error
	Pause() error
	Close() error
}
