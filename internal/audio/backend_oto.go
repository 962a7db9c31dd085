package audio

import (
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/bad-faith/beatplay/internal/log"
)

// OtoBackend plays through oto's pull-based player: the player reads PCM
// bytes from an io.Reader, which here forwards straight into the device
// callback. The stream runs in 16-bit little-endian, exercising the engine's
// format conversion.
//
// oto allows one context per process, so at most one OtoBackend stream can
// ever be opened.
type OtoBackend struct {
	log    *log.Logger
	player *oto.Player
}

func NewOtoBackend(logger *log.Logger) *OtoBackend {
	return &OtoBackend{log: logger}
}

func (b *OtoBackend) Probe(preferred StreamConfig) (StreamConfig, error) {
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
	cfg.Format = FormatS16
	return cfg, nil
}

func (b *OtoBackend) OpenStream(cfg StreamConfig, cb DataCallback) (Stream, error) {
	if b.player != nil {
		return nil, fmt.Errorf("oto backend: stream already open")
	}

	op := &oto.NewContextOptions{
		SampleRate:   int(cfg.SampleRate),
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(cfg.BufferFrames) * time.Second / time.Duration(cfg.SampleRate),
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("init oto context: %w", err)
	}
	<-ready

	reader := &callbackReader{cb: cb, bytesPerFrame: cfg.BytesPerFrame()}
	b.player = ctx.NewPlayer(reader)
	return &otoStream{player: b.player}, nil
}

func (b *OtoBackend) Close() error {
	if b.player != nil {
		err := b.player.Close()
		b.player = nil
		return err
	}
	return nil
}

// callbackReader adapts the push-style device callback to oto's pull model.
type callbackReader struct {
	cb            DataCallback
	bytesPerFrame int
}

func (r *callbackReader) Read(p []byte) (int, error) {
	frames := len(p) / r.bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	n := frames * r.bytesPerFrame
	r.cb(p[:n], frames)
	return n, nil
}

type otoStream struct {
	player *oto.Player
}

func (s *otoStream) Start() error {
	s.player.Play()
	return nil
}

func (s *otoStream) Pause() error {
	s.player.Pause()
	return nil
}

func (s *otoStream) Close() error {
	return s.player.Close()
}
