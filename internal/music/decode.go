package music

import (
	"bytes"
	"fmt"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// decodedAudio is planar stereo float32 at the source sample rate. Decoders
// emit stereo pairs, so mono sources arrive with both planes identical.
type decodedAudio struct {
	sampleRate uint32
	left       []float32
	right      []float32
}

func (d *decodedAudio) frames() int { return len(d.left) }

// byteSource wraps a byte slice so it satisfies whatever reader interface a
// decoder asks for.
type byteSource struct{ *bytes.Reader }

func (byteSource) Close() error { return nil }

func newByteSource(data []byte) byteSource {
	return byteSource{bytes.NewReader(data)}
}

var decoderNames = []string{"wav", "flac", "ogg", "mp3"}

func openDecoder(name string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	src := newByteSource(data)
	switch name {
	case "wav":
		return wav.Decode(src)
	case "flac":
		return flac.Decode(src)
	case "ogg":
		return vorbis.Decode(src)
	case "mp3":
		return mp3.Decode(src)
	}
	return nil, beep.Format{}, fmt.Errorf("unknown decoder %q", name)
}

// decodeOrder puts the hinted container first; the rest stay as probe
// fallbacks. mp3 probes last since its framing is permissive enough to
// misread other containers.
func decodeOrder(hintExt string) []string {
	hint := hintExt
	switch hint {
	case "oga", "vorbis":
		hint = "ogg"
	case "wave":
		hint = "wav"
	}
	order := make([]string, 0, len(decoderNames))
	for _, name := range decoderNames {
		if name == hint {
			order = append([]string{name}, order...)
		} else {
			order = append(order, name)
		}
	}
	return order
}

// decode tries each container format until one produces audio.
func decode(data []byte, hintExt string) (*decodedAudio, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no audio bytes")
	}
	var firstErr error
	for _, name := range decodeOrder(hintExt) {
		streamer, format, err := openDecoder(name, data)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		decoded, err := drainStreamer(streamer, format)
		streamer.Close()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		return decoded, nil
	}
	return nil, fmt.Errorf("decode audio (hint %q): %w", hintExt, firstErr)
}

func drainStreamer(streamer beep.Streamer, format beep.Format) (*decodedAudio, error) {
	buf := make([][2]float64, 2048)
	var left, right []float32
	for {
		n, ok := streamer.Stream(buf)
		for i := 0; i < n; i++ {
			left = append(left, float32(buf[i][0]))
			right = append(right, float32(buf[i][1]))
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, err
	}
	if len(left) == 0 {
		return nil, fmt.Errorf("no audio frames")
	}
	return &decodedAudio{
		sampleRate: uint32(format.SampleRate),
		left:       left,
		right:      right,
	}, nil
}
