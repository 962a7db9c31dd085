package hitsound

import "math"

const (
	// A fresh or reset cursor starts just behind the block so an event
	// sitting exactly on the block boundary still fires.
	backstepMs = 1e-3

	// Inclusive upper-bound slack for the scan window.
	windowEpsMs = 1e-6

	// Cursor drift beyond this is treated as a seek, not normal block
	// advancement.
	maxGapMs = 200.0

	// Small backward overlap allowed before the cursor is considered to have
	// jumped (blocks can re-cover a hair of already-scanned time after a
	// speed change rounds the origin).
	regressionSlackMs = 1.0
)

// Cursor tracks the high-water mark of map time already scanned for event
// activation, so an event fires at most once per forward pass. Owned by the
// audio goroutine; not safe for concurrent use.
type Cursor struct {
	lastEndMs float64
	valid     bool
}

// Reset forgets the scan position. The next Window starts just behind its
// block, which re-arms every event at or after the new position.
func (c *Cursor) Reset() { c.valid = false }

// Window advances the cursor across a block covering map times
// [blockStartMs, blockEndMs] and returns the half-open scan interval
// (lo, hi]: events with lo < t <= hi should be activated. A backward jump or
// an implausibly large gap rewinds the window to the block start.
func (c *Cursor) Window(blockStartMs, blockEndMs float64) (lo, hi float64) {
	lastEnd := blockStartMs - backstepMs
	if c.valid {
		lastEnd = c.lastEndMs
	}
	if blockStartMs+regressionSlackMs < lastEnd || math.Abs(blockStartMs-lastEnd) > maxGapMs {
		lastEnd = blockStartMs - backstepMs
	}
	c.lastEndMs = blockEndMs
	c.valid = true
	return lastEnd, blockEndMs + windowEpsMs
}
