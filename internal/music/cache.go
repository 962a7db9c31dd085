package music

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/bad-faith/beatplay/core/track"
)

// Disk cache format: "BPAU" magic, then little-endian u32 version, u32
// sample rate, u32 channels, u64 sample count, and raw f32 data. One file per
// (speed, fixPitch) variant under the per-map cache directory.
const (
	cacheMagic   = "BPAU"
	cacheVersion = 1
	cacheHeader  = 4 + 4 + 4 + 4 + 8
)

func (r *Renderer) cachePath(key variantKey) string {
	if r.cacheDir == "" {
		return ""
	}
	fix := 0
	if key.fixPitch {
		fix = 1
	}
	return filepath.Join(r.cacheDir, fmt.Sprintf("music_speed%d_fix%d.bin", key.speedBits, fix))
}

// loadCachedVariant reads a variant from disk. Corrupt or mismatched files
// are removed best-effort and treated as a miss, never as an error.
func (r *Renderer) loadCachedVariant(key variantKey, sampleRate uint32, channels int) *track.Track {
	path := r.cachePath(key)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	t, err := decodeCache(data)
	if err != nil {
		r.log.Warnf("[CACHE] discarding %s: %v", path, err)
		_ = os.Remove(path)
		return nil
	}
	if t.SampleRate != sampleRate || t.Channels != channels {
		return nil
	}
	return t
}

// storeCachedVariant writes a variant to disk best-effort; cache failures
// only cost a future re-render.
func (r *Renderer) storeCachedVariant(key variantKey, t *track.Track) {
	path := r.cachePath(key)
	if path == "" || t == nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.log.Warnf("[CACHE] create %s: %v", filepath.Dir(path), err)
		return
	}
	if err := os.WriteFile(path, encodeCache(t), 0o644); err != nil {
		r.log.Warnf("[CACHE] write %s: %v", path, err)
	}
}

func encodeCache(t *track.Track) []byte {
	out := make([]byte, cacheHeader+len(t.Data)*4)
	copy(out, cacheMagic)
	binary.LittleEndian.PutUint32(out[4:], cacheVersion)
	binary.LittleEndian.PutUint32(out[8:], t.SampleRate)
	binary.LittleEndian.PutUint32(out[12:], uint32(t.Channels))
	binary.LittleEndian.PutUint64(out[16:], uint64(len(t.Data)))
	for i, s := range t.Data {
		binary.LittleEndian.PutUint32(out[cacheHeader+i*4:], math.Float32bits(s))
	}
	return out
}

func decodeCache(data []byte) (*track.Track, error) {
	if len(data) < cacheHeader {
		return nil, fmt.Errorf("cache file too short (%d bytes)", len(data))
	}
	if string(data[:4]) != cacheMagic {
		return nil, fmt.Errorf("bad cache magic")
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != cacheVersion {
		return nil, fmt.Errorf("unsupported cache version %d", v)
	}
	sampleRate := binary.LittleEndian.Uint32(data[8:])
	channels := int(binary.LittleEndian.Uint32(data[12:]))
	samples := binary.LittleEndian.Uint64(data[16:])
	if channels <= 0 {
		return nil, fmt.Errorf("bad channel count %d", channels)
	}
	if uint64(len(data)-cacheHeader) < samples*4 {
		return nil, fmt.Errorf("truncated cache data (%d of %d samples)", (len(data)-cacheHeader)/4, samples)
	}
	pcm := make([]float32, samples)
	for i := range pcm {
		pcm[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[cacheHeader+i*4:]))
	}
	return track.New(sampleRate, channels, pcm), nil
}
