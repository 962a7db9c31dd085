package audio

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/bad-faith/beatplay/internal/log"
)

// MalgoBackend drives real hardware through miniaudio. miniaudio converts
// rate and channel count internally, so the preferred config is honored
// as-is and the f32 path stays native end to end.
type MalgoBackend struct {
	ctx *malgo.AllocatedContext
	log *log.Logger
}

func NewMalgoBackend(logger *log.Logger) (*MalgoBackend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debugf("[DEVICE] %s", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &MalgoBackend{ctx: ctx, log: logger}, nil
}

func (b *MalgoBackend) Probe(preferred StreamConfig) (StreamConfig, error) {
	infos, err := b.ctx.Devices(malgo.Playback)
	if err != nil {
		return StreamConfig{}, fmt.Errorf("enumerate playback devices: %w", err)
	}
	if len(infos) == 0 {
		return StreamConfig{}, fmt.Errorf("no playback devices")
	}
	for _, info := range infos {
		b.log.Debugf("[DEVICE] playback device: %s", info.Name())
	}

	cfg := preferred
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}
	if cfg.Format != FormatF32 && cfg.Format != FormatS16 && cfg.Format != FormatU8 {
		cfg.Format = FormatF32
	}
	return cfg, nil
}

func (b *MalgoBackend) OpenStream(cfg StreamConfig, cb DataCallback) (Stream, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgoFormat(cfg.Format)
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = cfg.SampleRate
	deviceConfig.PeriodSizeInFrames = cfg.BufferFrames

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			cb(pOutputSample, int(frameCount))
		},
	}

	device, err := malgo.InitDevice(b.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	// The device is created stopped; no callback fires until Start.
	return &malgoStream{device: device}, nil
}

func (b *MalgoBackend) Close() error {
	if b.ctx == nil {
		return nil
	}
	err := b.ctx.Uninit()
	b.ctx.Free()
	b.ctx = nil
	return err
}

type malgoStream struct {
	device  *malgo.Device
	started atomic.Bool
}

func (s *malgoStream) Start() error {
	if s.started.Load() {
		return nil
	}
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("start playback device: %w", err)
	}
	s.started.Store(true)
	return nil
}

func (s *malgoStream) Pause() error {
	if !s.started.Load() {
		return nil
	}
	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("stop playback device: %w", err)
	}
	s.started.Store(false)
	return nil
}

func (s *malgoStream) Close() error {
	s.device.Uninit()
	s.started.Store(false)
	return nil
}

func malgoFormat(f Format) malgo.FormatType {
	switch f {
	case FormatS16:
		return malgo.FormatS16
	case FormatU8:
		return malgo.FormatU8
	default:
		return malgo.FormatF32
	}
}
