package track

import "time"

// Track is a fully decoded PCM buffer: interleaved float32 samples at a fixed
// sample rate and channel count. Tracks are shared read-only between the
// renderer cache and the audio goroutine; never mutate Data after handing a
// Track out.
type Track struct {
	SampleRate uint32
	Channels   int
	Data       []float32
}

func New(sampleRate uint32, channels int, data []float32) *Track {
	return &Track{SampleRate: sampleRate, Channels: channels, Data: data}
}

// Frames returns the number of whole frames in the buffer.
func (t *Track) Frames() int {
	if t == nil || t.Channels <= 0 {
		return 0
	}
	return len(t.Data) / t.Channels
}

// Duration reports the playback length at the track's own sample rate.
func (t *Track) Duration() time.Duration {
	if t == nil || t.SampleRate == 0 {
		return 0
	}
	frames := t.Frames()
	return time.Duration(float64(frames) / float64(t.SampleRate) * float64(time.Second))
}

// Frame returns the interleaved samples of frame i. The returned slice aliases
// Data.
func (t *Track) Frame(i int) []float32 {
	start := i * t.Channels
	return t.Data[start : start+t.Channels]
}
