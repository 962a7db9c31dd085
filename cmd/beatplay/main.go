// Command beatplay is a demo player around the audio engine: pick a music
// file, then drive the transport from a small stdin REPL.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ncruces/zenity"
	"github.com/sqweek/dialog"

	"github.com/bad-faith/beatplay/internal/audio"
	"github.com/bad-faith/beatplay/internal/config"
	"github.com/bad-faith/beatplay/internal/log"
	"github.com/bad-faith/beatplay/internal/music"
)

func main() {
	configPath := flag.String("config", "beatplay.yaml", "config file")
	musicPath := flag.String("music", "", "music file (opens a picker when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	logger := log.New(os.Stderr, log.LevelFromString(cfg.LogLevel))
	if err != nil {
		fail(logger, err)
	}

	path := *musicPath
	if path == "" {
		path, err = pickMusicFile()
		if err != nil {
			fail(logger, fmt.Errorf("pick music file: %w", err))
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fail(logger, fmt.Errorf("read music file: %w", err))
	}

	backend, err := newBackend(cfg.Audio.Backend, logger)
	if err != nil {
		fail(logger, err)
	}
	defer backend.Close()

	renderer := music.New(logger)
	engine, err := audio.New(audio.Config{
		QueueMs:               cfg.Audio.QueueMs,
		PreferredBufferFrames: cfg.Audio.PreferredBufferFrames,
		FixPitch:              cfg.Audio.FixPitch,
		CacheRoot:             cfg.Audio.CacheRoot,
	}, backend, renderer, logger)
	if err != nil {
		fail(logger, err)
	}
	defer engine.Close()

	name := filepath.Base(path)
	engine.LoadMusic(data, strings.TrimSuffix(name, filepath.Ext(name)), name)

	fmt.Printf("loaded %s (type 'help' for commands)\n", name)
	repl(engine)
}

func fail(logger *log.Logger, err error) {
	logger.Errorf("[MAIN] %v", err)
	_ = zenity.Error(err.Error(), zenity.Title("beatplay"))
	os.Exit(1)
}

func newBackend(name string, logger *log.Logger) (audio.Backend, error) {
	switch name {
	case "malgo":
		return audio.NewMalgoBackend(logger)
	case "oto":
		return audio.NewOtoBackend(logger), nil
	case "null":
		return audio.NewNullBackend(), nil
	}
	return nil, fmt.Errorf("unknown audio backend %q", name)
}

func pickMusicFile() (string, error) {
	path, err := dialog.File().
		Filter("Audio files", "mp3", "ogg", "wav", "flac").
		Title("Pick a music file").
		Load()
	if err == nil {
		return path, nil
	}
	// Some desktops have no native dialog; zenity covers those.
	return zenity.SelectFile(
		zenity.Title("Pick a music file"),
		zenity.FileFilter{Name: "Audio files", Patterns: []string{"*.mp3", "*.ogg", "*.wav", "*.flac"}},
	)
}

func repl(engine *audio.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			fmt.Print("> ")
			continue
		}
		switch fields[0] {
		case "play":
			engine.Play()
		case "pause":
			engine.Pause()
		case "stop":
			engine.Stop()
		case "seek":
			if v, ok := floatArg(fields); ok {
				engine.SeekMapTime(v)
			}
		case "speed":
			if v, ok := floatArg(fields); ok {
				engine.SetSpeed(v)
			}
		case "vol":
			if v, ok := floatArg(fields); ok {
				engine.SetVolume(v)
			}
		case "hsvol":
			if v, ok := floatArg(fields); ok {
				engine.SetHitsoundVolume(v)
			}
		case "pan":
			if v, ok := floatArg(fields); ok {
				engine.SetSpatialAudio(v)
			}
		case "pitch":
			if len(fields) > 1 {
				engine.SetFixPitch(fields[1] == "on")
			}
		case "sample":
			if len(fields) < 3 {
				fmt.Println("usage: sample <index> <file>")
				break
			}
			idx, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Printf("bad index %q\n", fields[1])
				break
			}
			data, err := os.ReadFile(fields[2])
			if err != nil {
				fmt.Printf("read sample: %v\n", err)
				break
			}
			name := filepath.Base(fields[2])
			engine.SetHitsoundSample(data, idx, name, strings.TrimPrefix(filepath.Ext(name), "."))
		case "add":
			if v, ok := floatArg(fields); ok {
				engine.AddHitsound(v, 0, 1.0, 0.5)
			}
		case "rm":
			if v, ok := floatArg(fields); ok {
				engine.RemoveHitsound(v, 0, 1.0, 0.5)
			}
		case "time":
			fmt.Printf("%.1fms / %.1fms (speed %.2fx, playing %v, loading %v, underruns %d)\n",
				engine.CurrentTimeMs(), engine.SongTotalMs(),
				engine.Speed(), engine.IsPlaying(), engine.IsLoading(), engine.Underruns())
		case "help":
			fmt.Println("commands: play pause stop seek <ms> speed <x> vol <v> hsvol <v> pan <s>")
			fmt.Println("          pitch <on|off> sample <i> <file> add <ms> rm <ms> time quit")
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q (try 'help')\n", fields[0])
		}
		fmt.Print("> ")
	}
}

func floatArg(fields []string) (float64, bool) {
	if len(fields) < 2 {
		fmt.Println("missing argument")
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		fmt.Printf("bad argument %q\n", fields[1])
		return 0, false
	}
	return v, true
}
