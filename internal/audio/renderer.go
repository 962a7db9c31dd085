package audio

import "github.com/bad-faith/beatplay/core/track"

// Renderer turns source bytes into PCM at the engine's fixed rate/channel
// count and keeps speed/pitch variants cached, including on disk under a
// per-map cache directory. Calls may be slow (decode, time stretch); the
// render goroutine invokes them synchronously and degrades to silence on
// failure. Implementations are owned by the render goroutine and need no
// internal locking.
type Renderer interface {
	// Clear drops the base render and every cached variant.
	Clear()

	// SetCacheDir points the disk cache at a per-map directory and resets
	// the in-memory variant cache. An empty dir disables the disk cache.
	SetCacheDir(dir string)

	// SetBase installs the 1.0x original-pitch reference all variants are
	// derived from.
	SetBase(base *track.Track)

	// HasBase reports whether a base render is installed.
	HasBase() bool

	// CachedOnly returns the (speed, fixPitch) variant if it is already in
	// memory or on disk, nil otherwise. It never renders.
	CachedOnly(speed float64, fixPitch bool, sampleRate uint32, channels int) *track.Track

	// GetOrRender returns the (speed, fixPitch) variant, deriving it from
	// the base when not cached. Nil when no base is set or rendering fails.
	GetOrRender(speed float64, fixPitch bool, sampleRate uint32, channels int) *track.Track

	// Render decodes data and produces PCM at the given rate/channels/speed
	// without touching the variant cache. label names the asset in logs.
	Render(data []byte, sampleRate uint32, channels int, speed float64, fixPitch bool, label, hintExt string) (*track.Track, error)
}
