package audio

import (
	"math"
	"path/filepath"
	"time"

	"github.com/bad-faith/beatplay/core/clock"
	"github.com/bad-faith/beatplay/core/hitsound"
	"github.com/bad-faith/beatplay/core/track"
	"github.com/bad-faith/beatplay/internal/log"
	"github.com/bad-faith/beatplay/internal/utils"
)

const (
	// maxEditsPerTick bounds hitsound-edit draining so bulk note edits
	// cannot delay transport commands.
	maxEditsPerTick = 256

	// maxBlockFrames caps one generated block, bounding how long a queued
	// refill can delay reaction to a new command.
	maxBlockFrames = 1024

	idleSleep    = 2 * time.Millisecond
	backoffSleep = time.Millisecond
)

// voice is a sounding or pending one-shot hitsound. event keeps the placed
// identity so approximate-match removal can cancel a voice mid-flight.
type voice struct {
	audio    *track.Track
	framePos int
	startAbs uint64
	event    hitsound.Event
}

// renderLoop runs on a dedicated goroutine. It is the single consumer of both
// channels, the sole owner of the mutable engine state below, the sole
// producer into the ring, and the sole writer of the clock's configuration
// half.
type renderLoop struct {
	shared   *clock.State
	ring     *spscRing
	stream   Stream
	renderer Renderer
	commands chan command
	edits    chan hitsoundEdit
	quit     chan struct{}
	cfg      Config
	log      *log.Logger

	sr       uint32
	channels int

	playing  bool
	fixPitch bool

	music       *track.Track
	sourceBytes []byte
	sourceHint  string

	samples   []*track.Track
	events    []hitsound.Event
	cursor    hitsound.Cursor
	voices    []voice
	scheduled []voice

	out []float32
}

func (l *renderLoop) run() {
	defer func() {
		if err := l.stream.Close(); err != nil {
			l.log.Errorf("[AUDIO] close stream: %v", err)
		}
	}()

	for {
		select {
		case <-l.quit:
			return
		default:
		}

	commands:
		for {
			select {
			case cmd := <-l.commands:
				l.apply(cmd)
			default:
				break commands
			}
		}

		l.drainEdits()

		if !l.playing {
			time.Sleep(idleSleep)
			continue
		}

		l.generateBlock()
	}
}

// drainEdits applies queued hitsound edits, at most maxEditsPerTick per call
// so a bulk note operation cannot delay transport commands.
func (l *renderLoop) drainEdits() int {
	n := 0
	for ; n < maxEditsPerTick; n++ {
		select {
		case e := <-l.edits:
			l.applyEdit(e)
		default:
			return n
		}
	}
	return n
}

// targetFrames is the queue depth the loop refills toward.
func (l *renderLoop) targetFrames() int {
	return int(uint64(l.sr) * uint64(l.cfg.QueueMs) / 1000)
}

func (l *renderLoop) apply(cmd command) {
	switch c := cmd.(type) {
	case cmdLoadMusic:
		l.loadMusic(c)
	case cmdSetHitsoundSample:
		l.setHitsoundSample(c)
	case cmdRemoveAllHitsoundSamples:
		l.samples = l.samples[:0]
	case cmdRemoveAllHitsounds:
		l.events = l.events[:0]
		l.clearVoiceState()
	case cmdPlay:
		l.play()
	case cmdPause:
		l.pause()
	case cmdStop:
		l.stop()
	case cmdSetSpeed:
		l.setSpeed(c.speed)
	case cmdSetVolume:
		l.shared.SetVolume(float32(utils.Clamp01(c.volume)))
	case cmdSetHitsoundVolume:
		l.shared.SetHitsoundVolume(float32(utils.Clamp01(c.volume)))
	case cmdSetSpatialAudio:
		l.shared.SetSpatialAudio(float32(utils.Clamp01(c.blend)))
	case cmdSetMapTimeOffset:
		l.shared.SetMapTimeOffsetMs(c.offsetMs)
	case cmdSetHitsoundsOffset:
		l.shared.SetHitsoundsOffsetMs(c.offsetMs)
	case cmdSetFixPitch:
		l.setFixPitch(c.fixPitch)
	case cmdSeekMapTime:
		l.seek(c.mapTimeMs)
	}
}

func (l *renderLoop) loadMusic(c cmdLoadMusic) {
	// New map: never reuse the previous song's base render.
	l.renderer.Clear()
	l.sourceBytes = c.data
	l.sourceHint = c.hintExt

	cacheDir := ""
	if c.mapDirName != "" {
		cacheDir = filepath.Join(l.cfg.CacheRoot, c.mapDirName, "cache")
	}
	l.renderer.SetCacheDir(cacheDir)

	// A cached 1.0x original-pitch render skips the decode entirely.
	if base := l.renderer.CachedOnly(1.0, false, l.sr, l.channels); base != nil {
		l.renderer.SetBase(base)
	}

	speed := l.shared.Speed()
	rendered := l.renderer.GetOrRender(speed, l.fixPitch, l.sr, l.channels)
	if rendered == nil {
		// Always render the 1.0x reference and derive rate variants from
		// it; re-stretching an already stretched buffer accumulates
		// artifacts.
		base, err := l.renderer.Render(c.data, l.sr, l.channels, 1.0, false, "song", c.hintExt)
		if err != nil {
			l.log.Errorf("[AUDIO] load music: %v", err)
			l.renderer.Clear()
		} else {
			l.renderer.SetBase(base)
			rendered = l.renderer.GetOrRender(speed, l.fixPitch, l.sr, l.channels)
		}
	}
	l.setMusic(rendered)

	// The newly loaded song starts at the current absolute frame.
	l.shared.OriginFrame.Store(l.shared.PlayedFrames.Load())
	l.events = l.events[:0]
	l.clearVoiceState()
	l.shared.FlushRequested.Store(true)
	l.log.Infof("[AUDIO] loaded music: %d frames", l.shared.MusicFrames.Load())
}

func (l *renderLoop) setHitsoundSample(c cmdSetHitsoundSample) {
	if len(c.data) == 0 {
		return
	}
	sample, err := l.renderer.Render(c.data, l.sr, l.channels, 1.0, false, c.filename, c.hintExt)
	for len(l.samples) <= c.index {
		l.samples = append(l.samples, nil)
	}
	if err != nil {
		l.log.Errorf("[AUDIO] decode hitsound index=%d: %v", c.index, err)
		l.samples[c.index] = nil
		return
	}
	l.samples[c.index] = sample
	l.log.Debugf("[AUDIO] set hitsound sample index=%d", c.index)
}

func (l *renderLoop) play() {
	l.playing = true
	l.shared.Playing.Store(true)

	// Prime the queue before the callback starts consuming, otherwise the
	// very first period underruns while the first block renders.
	l.primeQueue()

	if err := l.stream.Start(); err != nil {
		l.log.Errorf("[AUDIO] start stream: %v", err)
		l.playing = false
		l.shared.Playing.Store(false)
	}
	l.log.Debugf("[AUDIO] cmd play (playing=%v)", l.playing)
}

func (l *renderLoop) pause() {
	l.shared.SetPausedMapTimeMs(l.shared.MapTimeMs())
	l.playing = false
	l.shared.Playing.Store(false)
	l.shared.FlushRequested.Store(true)
	if err := l.stream.Pause(); err != nil {
		l.log.Errorf("[AUDIO] pause stream: %v", err)
	}
	l.log.Debugf("[AUDIO] cmd pause (playing=false)")
}

func (l *renderLoop) stop() {
	l.playing = false
	l.shared.Playing.Store(false)
	l.shared.SetPausedMapTimeMs(0)
	l.clearVoiceState()
	l.shared.MusicFrames.Store(0)
	l.shared.FlushRequested.Store(true)
	if err := l.stream.Pause(); err != nil {
		l.log.Errorf("[AUDIO] pause stream: %v", err)
	}
	l.log.Debugf("[AUDIO] cmd stop (playing=false)")
}

func (l *renderLoop) setSpeed(newSpeed float64) {
	if newSpeed < minSpeed || newSpeed > maxSpeed {
		return
	}

	// Capture the current map time from actual played frames, not the
	// interpolated clock, so changing speed never jumps forward.
	played := l.shared.PlayedFrames.Load()
	origin := l.shared.OriginFrame.Load()
	offset := l.shared.MapTimeOffsetMs()
	oldSpeed := l.shared.Speed()
	srF := float64(l.sr)
	var rel float64
	if played > origin {
		rel = float64(played - origin)
	}
	tOld := rel/srF*1000.0*oldSpeed + offset
	l.shared.SetPausedMapTimeMs(tOld)

	wasPlaying := l.playing
	if wasPlaying {
		l.playing = false
		l.shared.Playing.Store(false)
		if err := l.stream.Pause(); err != nil {
			l.log.Errorf("[AUDIO] pause stream: %v", err)
		}
	}

	if l.fixPitch {
		l.shared.Loading.Store(true)
	}

	// Re-anchor origin so mapping played frames through the new speed
	// reproduces tOld exactly. Origin, speed and the played/last-callback
	// snapshot change together, bracketed for concurrent clock readers.
	l.shared.BeginTimeUpdate()
	relNewF := (tOld - offset) / (1000.0 * newSpeed) * srF
	var relNew uint64
	if !math.IsNaN(relNewF) && !math.IsInf(relNewF, 0) && relNewF > 0 {
		relNew = uint64(math.Round(relNewF))
	}
	originNew := uint64(0)
	if played > relNew {
		originNew = played - relNew
	}
	l.shared.OriginFrame.Store(originNew)
	l.shared.SetSpeed(newSpeed)
	desiredPlayed := originNew + relNew
	l.shared.PlayedFrames.Store(desiredPlayed)
	l.shared.LastCallbackFrames.Store(desiredPlayed)
	l.shared.LastCallbackTimeNs.Store(l.shared.NowNs())
	l.shared.EndTimeUpdate()

	l.rerender(newSpeed)

	l.clearVoiceState()
	l.shared.FlushRequested.Store(true)
	if l.fixPitch {
		l.shared.Loading.Store(false)
	}

	if wasPlaying {
		l.playing = true
		l.shared.Playing.Store(true)
		l.primeQueue()
		if err := l.stream.Start(); err != nil {
			l.log.Errorf("[AUDIO] start stream: %v", err)
			l.playing = false
			l.shared.Playing.Store(false)
		}
	}
	l.log.Debugf("[AUDIO] cmd set_speed=%.3f (t=%.2fms)", newSpeed, tOld)
}

func (l *renderLoop) setFixPitch(fixPitch bool) {
	if l.playing {
		l.playing = false
		l.shared.Playing.Store(false)
		if err := l.stream.Pause(); err != nil {
			l.log.Errorf("[AUDIO] pause stream: %v", err)
		}
	}
	l.shared.Loading.Store(true)
	l.fixPitch = fixPitch

	l.rerender(l.shared.Speed())

	l.clearVoiceState()
	l.shared.FlushRequested.Store(true)
	l.shared.Loading.Store(false)
	l.log.Debugf("[AUDIO] cmd set_fix_pitch=%v", fixPitch)
}

func (l *renderLoop) seek(mapTimeMs float64) {
	if l.music == nil {
		return
	}
	offset := l.shared.MapTimeOffsetMs()
	speed := l.shared.Speed()
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 1e-9 {
		return
	}

	// Invert the clock mapping: map time -> relative music frames.
	relMs := (mapTimeMs - offset) / speed
	if relMs < 0 {
		relMs = 0
	}
	relFrames := int64(math.Round(relMs / 1000.0 * float64(l.sr)))
	if relFrames < 0 {
		relFrames = 0
	}
	if max := int64(l.music.Frames()); relFrames > max {
		relFrames = max
	}

	origin := l.shared.OriginFrame.Load()
	newPlayed := origin + uint64(relFrames)
	l.shared.PlayedFrames.Store(newPlayed)

	if !l.playing {
		// The paused display time echoes the request, clamped to the span
		// the track can actually reach.
		minT := offset
		maxT := offset + float64(l.music.Frames())/float64(l.sr)*1000.0*speed
		l.shared.SetPausedMapTimeMs(math.Min(math.Max(mapTimeMs, minT), maxT))
	}

	l.clearVoiceState()
	l.shared.FlushRequested.Store(true)
	l.log.Debugf("[AUDIO] cmd seek t=%.2fms rel_frames=%d played_abs=%d", mapTimeMs, relFrames, newPlayed)
}

// ensureBase makes sure the renderer holds the 1.0x reference, decoding the
// stashed source bytes when needed. False with nil error means there is
// nothing to decode.
func (l *renderLoop) ensureBase() (bool, error) {
	if l.renderer.HasBase() {
		return true, nil
	}
	if l.sourceBytes == nil {
		return false, nil
	}
	base, err := l.renderer.Render(l.sourceBytes, l.sr, l.channels, 1.0, false, "song", l.sourceHint)
	if err != nil {
		return false, err
	}
	l.renderer.SetBase(base)
	return true, nil
}

func (l *renderLoop) rerender(speed float64) {
	ok, err := l.ensureBase()
	switch {
	case err != nil:
		l.log.Errorf("[AUDIO] render music base: %v", err)
	case ok:
		l.setMusic(l.renderer.GetOrRender(speed, l.fixPitch, l.sr, l.channels))
	}
}

func (l *renderLoop) setMusic(t *track.Track) {
	l.music = t
	l.shared.MusicFrames.Store(uint64(t.Frames()))
}

func (l *renderLoop) clearVoiceState() {
	l.voices = l.voices[:0]
	l.scheduled = l.scheduled[:0]
	l.cursor.Reset()
}

func (l *renderLoop) applyEdit(e hitsoundEdit) {
	target := hitsound.Event{
		MapTimeMs: e.mapTimeMs,
		Index:     e.index,
		Volume:    utils.Clamp01(e.volume),
		PositionX: e.positionX,
	}
	if e.remove {
		l.events = hitsound.RemoveMatching(l.events, target)
		l.scheduled = removeMatchingVoices(l.scheduled, target)
		l.voices = removeMatchingVoices(l.voices, target)
		return
	}
	l.events = hitsound.Insert(l.events, target)
}

func removeMatchingVoices(voices []voice, target hitsound.Event) []voice {
	kept := voices[:0]
	for _, v := range voices {
		if !hitsound.Matches(v.event, target) {
			kept = append(kept, v)
		}
	}
	return kept
}

func (l *renderLoop) sampleFor(index int) *track.Track {
	if index < 0 || index >= len(l.samples) {
		return nil
	}
	return l.samples[index]
}

// primeQueue fills the ring with straight music up to the target depth. Used
// before starting the stream so the first callback has audio ready.
func (l *renderLoop) primeQueue() {
	if l.music == nil {
		return
	}
	target := l.targetFrames()
	for {
		occupiedFrames := l.ring.Len() / l.channels
		if occupiedFrames >= target {
			return
		}

		played := l.shared.PlayedFrames.Load()
		absCursor := played + uint64(occupiedFrames)
		origin := l.shared.OriginFrame.Load()

		rel := 0
		if absCursor > origin {
			rel = int(absCursor - origin)
		}
		avail := l.music.Frames() - rel
		if avail <= 0 {
			return
		}

		n := target - occupiedFrames
		if n > maxBlockFrames {
			n = maxBlockFrames
		}
		if n > avail {
			n = avail
		}

		start := rel * l.channels
		slice := l.music.Data[start : start+n*l.channels]
		if l.ring.Push(slice) < len(slice) {
			return
		}
	}
}

// generateBlock renders one block of mixed audio and pushes it into the ring.
func (l *renderLoop) generateBlock() {
	occupiedFrames := l.ring.Len() / l.channels
	target := l.targetFrames()
	if occupiedFrames >= target {
		time.Sleep(backoffSleep)
		return
	}
	frames := target - occupiedFrames
	if frames > maxBlockFrames {
		frames = maxBlockFrames
	}

	need := frames * l.channels
	if cap(l.out) < need {
		l.out = make([]float32, need)
	}
	out := l.out[:need]
	for i := range out {
		out[i] = 0
	}

	// Absolute frame index of the first frame in this block.
	played := l.shared.PlayedFrames.Load()
	absCursor := played + uint64(occupiedFrames)
	origin := l.shared.OriginFrame.Load()

	l.mixMusic(out, absCursor, origin, frames)
	l.scheduleHitsounds(absCursor, origin, frames)
	l.activateScheduled(absCursor + uint64(frames))
	l.mixVoices(out, absCursor, frames)

	// Soft clip.
	for i, s := range out {
		if s > 1 {
			out[i] = 1
		} else if s < -1 {
			out[i] = -1
		}
	}

	if pushed := l.ring.Push(out); pushed < len(out) {
		// The callback will catch up; don't busy-spin.
		time.Sleep(backoffSleep)
	}
}

func (l *renderLoop) mixMusic(out []float32, absCursor, origin uint64, frames int) {
	if l.music == nil {
		return
	}
	rel := 0
	if absCursor > origin {
		rel = int(absCursor - origin)
	}
	avail := l.music.Frames() - rel
	if avail <= 0 {
		return
	}
	n := frames
	if n > avail {
		n = avail
	}
	start := rel * l.channels
	src := l.music.Data[start : start+n*l.channels]
	vol := l.shared.Volume()
	if math.Abs(float64(vol)-1.0) > 1e-7 {
		for i, s := range src {
			out[i] = s * vol
		}
	} else {
		copy(out, src)
	}
}

// scheduleHitsounds converts the block's absolute frame range into a map-time
// window and turns every event inside it into a scheduled voice.
func (l *renderLoop) scheduleHitsounds(absCursor, origin uint64, frames int) {
	speed := l.shared.Speed()
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 1e-9 {
		return
	}
	srF := float64(l.sr)
	offset := l.shared.MapTimeOffsetMs()
	hsOffset := l.shared.HitsoundsOffsetMs()

	var relStart float64
	if absCursor > origin {
		relStart = float64(absCursor - origin)
	}
	relEnd := relStart + float64(frames)
	mapStart := relStart/srF*1000.0*speed + offset
	mapEnd := relEnd/srF*1000.0*speed + offset

	lo, hi := l.cursor.Window(mapStart, mapEnd)
	for _, ev := range l.events {
		evTime := ev.MapTimeMs + hsOffset
		if evTime <= lo || evTime > hi {
			continue
		}
		sample := l.sampleFor(ev.Index)
		if sample == nil {
			continue
		}
		relMs := (evTime - offset) / speed
		if relMs < 0 {
			relMs = 0
		}
		relFramesF := relMs / 1000.0 * srF
		if math.IsNaN(relFramesF) || math.IsInf(relFramesF, 0) {
			continue
		}
		l.scheduled = append(l.scheduled, voice{
			audio:    sample,
			startAbs: origin + uint64(math.Round(relFramesF)),
			event:    ev,
		})
	}
}

// activateScheduled moves voices whose start falls inside the generated range
// into the sounding set.
func (l *renderLoop) activateScheduled(absEnd uint64) {
	for i := 0; i < len(l.scheduled); {
		if l.scheduled[i].startAbs <= absEnd {
			l.voices = append(l.voices, l.scheduled[i])
			l.scheduled[i] = l.scheduled[len(l.scheduled)-1]
			l.scheduled = l.scheduled[:len(l.scheduled)-1]
		} else {
			i++
		}
	}
}

func (l *renderLoop) mixVoices(out []float32, absCursor uint64, frames int) {
	ch := l.channels
	hsVol := float64(l.shared.HitsoundVolume())
	spatial := utils.Clamp01(float64(l.shared.SpatialAudio()))

	for i := 0; i < len(l.voices); {
		v := &l.voices[i]

		// Past the scheduled start (a large block can overshoot): catch up
		// instead of replaying the missed part late.
		if desired := int64(absCursor) - int64(v.startAbs); desired > int64(v.framePos) {
			v.framePos = int(desired)
		}

		startOff := 0
		if v.startAbs > absCursor {
			startOff = int(v.startAbs - absCursor)
		}
		if startOff >= frames {
			i++
			continue
		}

		inBlock := frames - startOff
		avail := v.audio.Frames() - v.framePos
		n := inBlock
		if n > avail {
			n = avail
		}
		if n > 0 {
			src := v.audio.Data[v.framePos*ch : (v.framePos+n)*ch]
			dst := out[startOff*ch:]
			baseGain := v.event.Volume * hsVol

			if ch >= 2 {
				lf, rf := hitsound.PanGains(spatial, v.event.PositionX)
				lg := float32(baseGain * lf)
				rg := float32(baseGain * rf)
				bg := float32(baseGain)
				for f := 0; f < n; f++ {
					fb := f * ch
					dst[fb] += src[fb] * lg
					dst[fb+1] += src[fb+1] * rg
					for c := 2; c < ch; c++ {
						dst[fb+c] += src[fb+c] * bg
					}
				}
			} else {
				bg := float32(baseGain)
				for j, s := range src {
					dst[j] += s * bg
				}
			}
			v.framePos += n
		}

		if v.framePos >= v.audio.Frames() {
			l.voices[i] = l.voices[len(l.voices)-1]
			l.voices = l.voices[:len(l.voices)-1]
		} else {
			i++
		}
	}
}
