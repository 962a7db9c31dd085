package audio

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/bad-faith/beatplay/core/clock"
	"github.com/bad-faith/beatplay/internal/log"
	"github.com/bad-faith/beatplay/internal/utils"
)

const (
	minSpeed = 0.1
	maxSpeed = 4.0

	commandBuffer = 64
	editBuffer    = 4096
)

// Config tunes engine construction. Zero values fall back to defaults.
type Config struct {
	// QueueMs is the target amount of queued audio, in milliseconds.
	QueueMs uint32
	// PreferredBufferFrames is the requested device period; backends clamp
	// it to their supported range.
	PreferredBufferFrames uint32
	// FixPitch preserves pitch across playback-rate changes when true;
	// otherwise pitch shifts with rate (classic resample behavior).
	FixPitch bool
	// CacheRoot is the directory holding per-map render caches.
	CacheRoot string
}

func (c Config) withDefaults() Config {
	if c.QueueMs == 0 {
		c.QueueMs = 60
	}
	if c.PreferredBufferFrames == 0 {
		c.PreferredBufferFrames = 128
	}
	if c.CacheRoot == "" {
		c.CacheRoot = "saves"
	}
	return c
}

// Engine is the only type exposed to callers. Every setter enqueues a
// command and returns immediately; every getter reads shared atomics. Nothing
// here blocks on the render goroutine or the device.
type Engine struct {
	shared   *clock.State
	commands chan command
	edits    chan hitsoundEdit
	quit     chan struct{}
	closed   atomic.Bool
	log      *log.Logger
}

// New probes the backend (44.1kHz stereo f32 preferred), opens a paused
// output stream and spawns the render goroutine. Construction fails outright
// when no usable output stream can be built.
func New(cfg Config, backend Backend, renderer Renderer, logger *log.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()

	streamCfg, err := backend.Probe(StreamConfig{
		SampleRate:   44100,
		Channels:     2,
		Format:       FormatF32,
		BufferFrames: cfg.PreferredBufferFrames,
	})
	if err != nil {
		return nil, fmt.Errorf("probe output device: %w", err)
	}
	if streamCfg.SampleRate == 0 || streamCfg.Channels <= 0 {
		return nil, fmt.Errorf("backend returned unusable stream config: %+v", streamCfg)
	}

	shared := clock.New(streamCfg.SampleRate, streamCfg.Channels)

	queueFrames := int(uint64(streamCfg.SampleRate) * uint64(cfg.QueueMs) / 1000)
	if queueFrames < 256 {
		queueFrames = 256
	}
	ring := newSPSCRing(queueFrames * streamCfg.Channels)

	cb := newCallbackCore(shared, ring, streamCfg, logger)
	stream, err := backend.OpenStream(streamCfg, cb.Fill)
	if err != nil {
		return nil, fmt.Errorf("open output stream: %w", err)
	}

	logger.Infof("[AUDIO] stream: sr=%d ch=%d fmt=%s buffer=%d queue_ms=%d queue_frames=%d",
		streamCfg.SampleRate, streamCfg.Channels, streamCfg.Format,
		streamCfg.BufferFrames, cfg.QueueMs, queueFrames)

	e := &Engine{
		shared:   shared,
		commands: make(chan command, commandBuffer),
		edits:    make(chan hitsoundEdit, editBuffer),
		quit:     make(chan struct{}),
		log:      logger,
	}

	loop := &renderLoop{
		shared:   shared,
		ring:     ring,
		stream:   stream,
		renderer: renderer,
		commands: e.commands,
		edits:    e.edits,
		quit:     e.quit,
		cfg:      cfg,
		log:      logger,
		sr:       streamCfg.SampleRate,
		channels: streamCfg.Channels,
		fixPitch: cfg.FixPitch,
	}
	go loop.run()

	return e, nil
}

// Close stops the render goroutine and closes the stream. Commands sent
// after Close are dropped.
func (e *Engine) Close() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.quit)
	}
}

// send is fire-and-forget: a full channel or a closed engine drops the
// command, which is not an error the caller can act on.
func (e *Engine) send(cmd command) {
	if e.closed.Load() {
		return
	}
	select {
	case e.commands <- cmd:
	default:
	}
}

func (e *Engine) sendEdit(edit hitsoundEdit) {
	if e.closed.Load() {
		return
	}
	select {
	case e.edits <- edit:
	default:
	}
}

// LoadMusic replaces the current track. filename is only used to derive the
// decoder hint from its extension; mapDirName keys the per-map render cache.
func (e *Engine) LoadMusic(data []byte, mapDirName, filename string) {
	e.send(cmdLoadMusic{data: data, mapDirName: mapDirName, hintExt: hintFromFilename(filename)})
}

// SetHitsoundSample decodes data and installs it at the given sample slot.
func (e *Engine) SetHitsoundSample(data []byte, index int, filename, hintExt string) {
	if len(data) == 0 || index < 0 {
		return
	}
	e.send(cmdSetHitsoundSample{data: data, index: index, filename: filename, hintExt: hintExt})
}

func (e *Engine) RemoveAllHitsoundSamples() { e.send(cmdRemoveAllHitsoundSamples{}) }

func (e *Engine) RemoveAllHitsounds() { e.send(cmdRemoveAllHitsounds{}) }

// AddHitsound schedules a one-shot at mapTimeMs on sample slot index.
// positionX in [0,1] pans it when spatial audio is enabled.
func (e *Engine) AddHitsound(mapTimeMs float64, index int, volume, positionX float64) {
	if !isFinite(mapTimeMs) || !isFinite(positionX) || index < 0 {
		return
	}
	e.sendEdit(hitsoundEdit{mapTimeMs: mapTimeMs, index: index, volume: utils.Clamp01(volume), positionX: positionX})
}

// RemoveHitsound removes the placed hitsound best matching the given
// placement (index exact; volume, position and time within tolerance). A
// matching voice that is already sounding is cancelled too.
func (e *Engine) RemoveHitsound(mapTimeMs float64, index int, volume, positionX float64) {
	if !isFinite(mapTimeMs) || !isFinite(positionX) || index < 0 {
		return
	}
	e.sendEdit(hitsoundEdit{remove: true, mapTimeMs: mapTimeMs, index: index, volume: utils.Clamp01(volume), positionX: positionX})
}

func (e *Engine) Play()  { e.send(cmdPlay{}) }
func (e *Engine) Pause() { e.send(cmdPause{}) }
func (e *Engine) Stop()  { e.send(cmdStop{}) }

// SetSpeed changes the playback rate. Values outside [0.1, 4.0] are ignored.
func (e *Engine) SetSpeed(speed float64) {
	if !isFinite(speed) || speed < minSpeed || speed > maxSpeed {
		return
	}
	e.send(cmdSetSpeed{speed: speed})
}

func (e *Engine) SetVolume(volume float64) {
	if !isFinite(volume) {
		return
	}
	e.send(cmdSetVolume{volume: utils.Clamp01(volume)})
}

func (e *Engine) SetHitsoundVolume(volume float64) {
	if !isFinite(volume) {
		return
	}
	e.send(cmdSetHitsoundVolume{volume: utils.Clamp01(volume)})
}

// SetSpatialAudio sets the pan blend: 0 keeps hitsounds centered, 1 pans
// fully by their playfield position.
func (e *Engine) SetSpatialAudio(blend float64) {
	if !isFinite(blend) {
		return
	}
	e.send(cmdSetSpatialAudio{blend: utils.Clamp01(blend)})
}

func (e *Engine) SetMapTimeOffsetMs(offsetMs float64) {
	if !isFinite(offsetMs) {
		return
	}
	e.send(cmdSetMapTimeOffset{offsetMs: offsetMs})
}

func (e *Engine) SetHitsoundsOffsetMs(offsetMs float64) {
	if !isFinite(offsetMs) {
		return
	}
	e.send(cmdSetHitsoundsOffset{offsetMs: offsetMs})
}

// SetFixPitch re-renders the track under the new pitch mode at the current
// speed. Playback pauses for the duration of the re-render.
func (e *Engine) SetFixPitch(fixPitch bool) { e.send(cmdSetFixPitch{fixPitch: fixPitch}) }

// SeekMapTime jumps to the given map time, clamped to the loaded track.
func (e *Engine) SeekMapTime(mapTimeMs float64) {
	if !isFinite(mapTimeMs) {
		return
	}
	e.send(cmdSeekMapTime{mapTimeMs: mapTimeMs})
}

func (e *Engine) IsPlaying() bool { return e.shared.Playing.Load() }

// CurrentTimeMs returns the current map time estimate.
func (e *Engine) CurrentTimeMs() float64 { return e.shared.MapTimeMs() }

// SongTotalMs returns the loaded track's map-time length, 0 when nothing is
// loaded.
func (e *Engine) SongTotalMs() float64 { return e.shared.SongTotalMs() }

func (e *Engine) Speed() float64          { return e.shared.Speed() }
func (e *Engine) Volume() float64         { return float64(e.shared.Volume()) }
func (e *Engine) HitsoundVolume() float64 { return float64(e.shared.HitsoundVolume()) }

// IsLoading reports whether a slow pitch-preserving re-render is in flight.
func (e *Engine) IsLoading() bool { return e.shared.Loading.Load() }

// Underruns returns the number of device callbacks that found the queue
// starved.
func (e *Engine) Underruns() uint64 { return e.shared.Underruns.Load() }

func hintFromFilename(filename string) string {
	filename = strings.Trim(strings.TrimSpace(filename), `"`)
	ext := filepath.Ext(filename)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
