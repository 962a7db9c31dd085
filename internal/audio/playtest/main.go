// Command playtest is a headless smoke run of the audio engine: it loads a
// synthesized WAV through the real renderer, plays against the null backend
// while hand-driving the device callback, and checks the clock advances.
package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/bad-faith/beatplay/internal/audio"
	"github.com/bad-faith/beatplay/internal/log"
	"github.com/bad-faith/beatplay/internal/music"
)

func main() {
	logger := log.New(os.Stderr, log.LevelInfo)

	backend := audio.NewNullBackend()
	renderer := music.New(logger)
	engine, err := audio.New(audio.Config{QueueMs: 60, CacheRoot: os.TempDir()}, backend, renderer, logger)
	if err != nil {
		logger.Errorf("[PLAYTEST] construct engine: %v", err)
		os.Exit(1)
	}
	defer engine.Close()

	engine.LoadMusic(sineWAV(44100, 2*time.Second, 440), "playtest", "tone.wav")
	engine.SetHitsoundSample(sineWAV(44100, 50*time.Millisecond, 880), 0, "click.wav", "wav")
	engine.AddHitsound(500, 0, 1.0, 0.5)
	engine.AddHitsound(1000, 0, 1.0, 0.2)
	engine.Play()

	stream := backend.Stream()
	deadline := time.Now().Add(5 * time.Second)
	for stream == nil || !stream.Started() {
		if time.Now().After(deadline) {
			logger.Errorf("[PLAYTEST] stream never started")
			os.Exit(1)
		}
		time.Sleep(time.Millisecond)
		stream = backend.Stream()
	}

	// Consume ~1.5s of audio in 10ms periods, as a device would.
	for i := 0; i < 150; i++ {
		stream.Consume(441)
		time.Sleep(2 * time.Millisecond)
		if i%50 == 49 {
			fmt.Printf("t=%.1fms / %.1fms\n", engine.CurrentTimeMs(), engine.SongTotalMs())
		}
	}

	got := engine.CurrentTimeMs()
	if got < 1400 || got > 1700 {
		logger.Errorf("[PLAYTEST] clock off after 1.5s of audio: %.1fms", got)
		os.Exit(1)
	}
	if n := engine.Underruns(); n > 0 {
		logger.Infof("[PLAYTEST] underruns: %d", n)
	}
	fmt.Println("ok")
}

// sineWAV builds a 16-bit stereo PCM WAV of the given pitch in memory.
func sineWAV(sampleRate int, d time.Duration, freq float64) []byte {
	frames := int(float64(sampleRate) * d.Seconds())
	data := make([]byte, 44+frames*4)

	copy(data, "RIFF")
	binary.LittleEndian.PutUint32(data[4:], uint32(36+frames*4))
	copy(data[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(data[16:], 16)
	binary.LittleEndian.PutUint16(data[20:], 1) // PCM
	binary.LittleEndian.PutUint16(data[22:], 2)
	binary.LittleEndian.PutUint32(data[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(data[28:], uint32(sampleRate*4))
	binary.LittleEndian.PutUint16(data[32:], 4)
	binary.LittleEndian.PutUint16(data[34:], 16)
	copy(data[36:], "data")
	binary.LittleEndian.PutUint32(data[40:], uint32(frames*4))

	for i := 0; i < frames; i++ {
		s := int16(0.4 * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(data[44+i*4:], uint16(s))
		binary.LittleEndian.PutUint16(data[44+i*4+2:], uint16(s))
	}
	return data
}
