package audio

import (
	"errors"
	"sync/atomic"
)

// NullBackend emulates an output device without touching audio hardware. The
// playtest harness and the engine tests drive its callback by hand, standing
// in for the OS real-time thread.
type NullBackend struct {
	stream *NullStream
}

func NewNullBackend() *NullBackend { return &NullBackend{} }

// Probe accepts the preferred config as-is, filling in 44.1kHz stereo f32
// defaults for zero fields.
func (b *NullBackend) Probe(preferred StreamConfig) (StreamConfig, error) {
	cfg := preferred
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}
	if cfg.BufferFrames == 0 {
		cfg.BufferFrames = 128
	}
	return cfg, nil
}

func (b *NullBackend) OpenStream(cfg StreamConfig, cb DataCallback) (Stream, error) {
	if b.stream != nil {
		return nil, errors.New("null backend: stream already open")
	}
	b.stream = &NullStream{cfg: cfg, cb: cb}
	return b.stream, nil
}

func (b *NullBackend) Close() error {
	b.stream = nil
	return nil
}

// Stream returns the opened stream, nil before OpenStream.
func (b *NullBackend) Stream() *NullStream { return b.stream }

// NullStream records play/pause state and exposes Consume so a harness can
// act as the device.
type NullStream struct {
	cfg     StreamConfig
	cb      DataCallback
	started atomic.Bool
	closed  atomic.Bool
	buf     []byte
}

func (s *NullStream) Start() error {
	if s.closed.Load() {
		return errors.New("null stream: closed")
	}
	s.started.Store(true)
	return nil
}

func (s *NullStream) Pause() error {
	if s.closed.Load() {
		return errors.New("null stream: closed")
	}
	s.started.Store(false)
	return nil
}

func (s *NullStream) Close() error {
	s.closed.Store(true)
	s.started.Store(false)
	return nil
}

func (s *NullStream) Started() bool { return s.started.Load() }

// Consume invokes the data callback for the given frame count, exactly as
// the OS would, and returns the produced bytes. The returned slice is reused
// by the next call. Consume works even while the stream is paused so tests
// can exercise the callback in isolation; callers modeling a real device
// should check Started first.
func (s *NullStream) Consume(frames int) []byte {
	need := frames * s.cfg.BytesPerFrame()
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]
	s.cb(buf, frames)
	return buf
}
