package hitsound

import "testing"

func TestInsertKeepsAscendingOrder(t *testing.T) {
	var events []Event
	for _, ms := range []float64{500, 100, 300, 200, 400} {
		events = Insert(events, Event{MapTimeMs: ms, Index: 0, Volume: 1, PositionX: 0.5})
	}
	for i := 1; i < len(events); i++ {
		if events[i].MapTimeMs < events[i-1].MapTimeMs {
			t.Fatalf("events out of order at %d: %v", i, events)
		}
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
}

func TestMatchesTolerances(t *testing.T) {
	base := Event{MapTimeMs: 1000, Index: 3, Volume: 0.8, PositionX: 0.25}

	cases := []struct {
		name string
		e    Event
		want bool
	}{
		{"identical", base, true},
		{"time within half ms", Event{1000.5, 3, 0.8, 0.25}, true},
		{"time beyond half ms", Event{1000.6, 3, 0.8, 0.25}, false},
		{"volume at tolerance", Event{1000, 3, 0.801, 0.25}, true},
		{"volume beyond tolerance", Event{1000, 3, 0.802, 0.25}, false},
		{"position at tolerance", Event{1000, 3, 0.8, 0.251}, true},
		{"position beyond tolerance", Event{1000, 3, 0.8, 0.253}, false},
		{"different index", Event{1000, 4, 0.8, 0.25}, false},
	}
	for _, c := range cases {
		if got := Matches(c.e, base); got != c.want {
			t.Fatalf("%s: Matches = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestRemoveMatchingFiltersAllMatches(t *testing.T) {
	events := []Event{
		{MapTimeMs: 100, Index: 1, Volume: 0.5, PositionX: 0.5},
		{MapTimeMs: 100.2, Index: 1, Volume: 0.5, PositionX: 0.5},
		{MapTimeMs: 200, Index: 1, Volume: 0.5, PositionX: 0.5},
		{MapTimeMs: 100, Index: 2, Volume: 0.5, PositionX: 0.5},
	}
	out := RemoveMatching(events, Event{MapTimeMs: 100, Index: 1, Volume: 0.5, PositionX: 0.5})
	if len(out) != 2 {
		t.Fatalf("expected 2 survivors, got %d: %v", len(out), out)
	}
	for _, e := range out {
		if e.MapTimeMs == 100 && e.Index == 1 {
			t.Fatalf("matching event survived: %v", e)
		}
	}
}

func TestRemoveMatchingNoMatch(t *testing.T) {
	events := []Event{{MapTimeMs: 100, Index: 1, Volume: 0.5, PositionX: 0.5}}
	out := RemoveMatching(events, Event{MapTimeMs: 900, Index: 1, Volume: 0.5, PositionX: 0.5})
	if len(out) != 1 {
		t.Fatalf("non-matching removal should keep the event")
	}
}
