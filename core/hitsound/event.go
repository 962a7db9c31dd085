// Package hitsound holds the pure timeline logic for one-shot hitsound
// events: the placed-event list, the approximate identity used to remove
// events without a stable handle, the scan cursor that decides which events a
// rendered block activates, and stereo pan gains.
package hitsound

import (
	"math"
	"sort"
)

// Identity tolerances for Matches. Events carry no stable id; the editor
// identifies one by its placement instead.
const (
	volumeTolerance   = 1e-3
	positionTolerance = 1e-3
	timeToleranceMs   = 0.5
)

// Event is a placed hitsound: a sample index to trigger at a map time with a
// per-event volume and a horizontal playfield position in [0,1].
type Event struct {
	MapTimeMs float64
	Index     int
	Volume    float64
	PositionX float64
}

// Insert appends ev and restores ascending map-time order. Call sites batch
// insertions per tick, so re-sorting the whole slice is fine.
func Insert(events []Event, ev Event) []Event {
	events = append(events, ev)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].MapTimeMs < events[j].MapTimeMs
	})
	return events
}

// Matches reports whether e and target describe the same placed hitsound:
// same sample index, volume and position within tolerance, time within half a
// millisecond.
func Matches(e, target Event) bool {
	return e.Index == target.Index &&
		math.Abs(e.Volume-target.Volume) <= volumeTolerance &&
		math.Abs(e.PositionX-target.PositionX) <= positionTolerance &&
		math.Abs(e.MapTimeMs-target.MapTimeMs) <= timeToleranceMs
}

// RemoveMatching filters out every event matching target, in place.
func RemoveMatching(events []Event, target Event) []Event {
	kept := events[:0]
	for _, e := range events {
		if !Matches(e, target) {
			kept = append(kept, e)
		}
	}
	return kept
}
