package music

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/bad-faith/beatplay/core/track"
	"github.com/bad-faith/beatplay/internal/log"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	return New(log.New(io.Discard, log.LevelNone))
}

func TestCacheRoundTrip(t *testing.T) {
	r := newTestRenderer(t)
	r.SetCacheDir(t.TempDir())

	src := track.New(44100, 2, []float32{0, 0.5, -0.5, 1, -1, 0.25})
	key := keyFor(1.5, true)
	r.storeCachedVariant(key, src)

	got := r.loadCachedVariant(key, 44100, 2)
	if got == nil {
		t.Fatalf("stored variant not found")
	}
	if got.SampleRate != 44100 || got.Channels != 2 {
		t.Fatalf("header mismatch: sr=%d ch=%d", got.SampleRate, got.Channels)
	}
	for i, s := range src.Data {
		if got.Data[i] != s {
			t.Fatalf("sample %d: got %v want %v", i, got.Data[i], s)
		}
	}

	// fixPitch is part of the variant identity.
	if r.loadCachedVariant(keyFor(1.5, false), 44100, 2) != nil {
		t.Fatalf("fixPitch=false hit the fixPitch=true file")
	}
}

func TestCacheRejectsConfigMismatch(t *testing.T) {
	r := newTestRenderer(t)
	r.SetCacheDir(t.TempDir())

	key := keyFor(2.0, false)
	r.storeCachedVariant(key, track.New(48000, 2, []float32{1, 2}))

	// A 48k file is useless to a 44.1k engine: miss, not error.
	if r.loadCachedVariant(key, 44100, 2) != nil {
		t.Fatalf("sample-rate mismatch should miss")
	}
	if r.loadCachedVariant(key, 48000, 1) != nil {
		t.Fatalf("channel mismatch should miss")
	}
	if r.loadCachedVariant(key, 48000, 2) == nil {
		t.Fatalf("matching config should hit")
	}
}

func TestCacheDiscardsCorruptFiles(t *testing.T) {
	r := newTestRenderer(t)
	dir := t.TempDir()
	r.SetCacheDir(dir)
	key := keyFor(1.25, false)
	path := r.cachePath(key)

	cases := [][]byte{
		[]byte("short"),
		[]byte("XXXX\x01\x00\x00\x00\x44\xac\x00\x00\x02\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"), // bad magic
		[]byte("BPAU\x63\x00\x00\x00\x44\xac\x00\x00\x02\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"), // version 99
		[]byte("BPAU\x01\x00\x00\x00\x44\xac\x00\x00\x02\x00\x00\x00\xff\x00\x00\x00\x00\x00\x00\x00"), // truncated data
	}
	for i, junk := range cases {
		if err := os.WriteFile(path, junk, 0o644); err != nil {
			t.Fatalf("write junk: %v", err)
		}
		if got := r.loadCachedVariant(key, 44100, 2); got != nil {
			t.Fatalf("case %d: corrupt file decoded to %v", i, got)
		}
		// Corrupt files are deleted so they don't fail forever.
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("case %d: corrupt file not removed", i)
		}
	}
}

func TestCachePathIsPerVariant(t *testing.T) {
	r := newTestRenderer(t)
	if r.cachePath(keyFor(1.0, false)) != "" {
		t.Fatalf("no cache dir should disable the disk cache")
	}
	r.SetCacheDir(filepath.Join("saves", "map", "cache"))
	a := r.cachePath(keyFor(1.0, false))
	b := r.cachePath(keyFor(1.5, false))
	c := r.cachePath(keyFor(1.5, true))
	if a == b || b == c || a == c {
		t.Fatalf("variant paths collide: %q %q %q", a, b, c)
	}
}

func TestDecodeCacheZeroChannels(t *testing.T) {
	data := encodeCache(track.New(44100, 2, []float32{1}))
	data[12], data[13], data[14], data[15] = 0, 0, 0, 0
	if _, err := decodeCache(data); err == nil {
		t.Fatalf("expected error for zero channel count")
	}
}
