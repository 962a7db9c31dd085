package audio

// Commands form a closed set: one struct per variant, dispatched by an
// exhaustive type switch on the render goroutine. Senders never block; a full
// channel drops the command.
type command interface{ isCommand() }

type cmdLoadMusic struct {
	data       []byte
	mapDirName string
	hintExt    string
}

type cmdSetHitsoundSample struct {
	data     []byte
	index    int
	filename string
	hintExt  string
}

type cmdRemoveAllHitsoundSamples struct{}
type cmdRemoveAllHitsounds struct{}
type cmdPlay struct{}
type cmdPause struct{}
type cmdStop struct{}
type cmdSetSpeed struct{ speed float64 }
type cmdSetVolume struct{ volume float64 }
type cmdSetHitsoundVolume struct{ volume float64 }
type cmdSetSpatialAudio struct{ blend float64 }
type cmdSetMapTimeOffset struct{ offsetMs float64 }
type cmdSetHitsoundsOffset struct{ offsetMs float64 }
type cmdSetFixPitch struct{ fixPitch bool }
type cmdSeekMapTime struct{ mapTimeMs float64 }

func (cmdLoadMusic) isCommand()                {}
func (cmdSetHitsoundSample) isCommand()        {}
func (cmdRemoveAllHitsoundSamples) isCommand() {}
func (cmdRemoveAllHitsounds) isCommand()       {}
func (cmdPlay) isCommand()                     {}
func (cmdPause) isCommand()                    {}
func (cmdStop) isCommand()                     {}
func (cmdSetSpeed) isCommand()                 {}
func (cmdSetVolume) isCommand()                {}
func (cmdSetHitsoundVolume) isCommand()        {}
func (cmdSetSpatialAudio) isCommand()          {}
func (cmdSetMapTimeOffset) isCommand()         {}
func (cmdSetHitsoundsOffset) isCommand()       {}
func (cmdSetFixPitch) isCommand()              {}
func (cmdSeekMapTime) isCommand()              {}

// hitsoundEdit travels on its own channel so bulk note edits cannot starve
// transport commands; the loop drains at most maxEditsPerTick per iteration.
type hitsoundEdit struct {
	remove    bool
	mapTimeMs float64
	index     int
	volume    float64
	positionX float64
}
