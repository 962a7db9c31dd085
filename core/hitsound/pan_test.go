package hitsound

import (
	"math"
	"testing"
)

func TestPanCenteredWhenSpatialZero(t *testing.T) {
	for _, x := range []float64{0, 0.25, 0.5, 1} {
		l, r := PanGains(0, x)
		if l != 1 || r != 1 {
			t.Fatalf("spatial=0 should be unpanned, got l=%v r=%v for x=%v", l, r, x)
		}
	}
}

func TestPanFullyPositional(t *testing.T) {
	l, r := PanGains(1, 0)
	if l != 1 || r != 0 {
		t.Fatalf("hard left: got l=%v r=%v", l, r)
	}
	l, r = PanGains(1, 1)
	if l != 0 || r != 1 {
		t.Fatalf("hard right: got l=%v r=%v", l, r)
	}
	l, r = PanGains(1, 0.5)
	if math.Abs(l-0.5) > 1e-12 || math.Abs(r-0.5) > 1e-12 {
		t.Fatalf("center: got l=%v r=%v", l, r)
	}
}

func TestPanBlend(t *testing.T) {
	// Half blend at hard left: left = 0.5 + 0.5 = 1, right = 0.5.
	l, r := PanGains(0.5, 0)
	if l != 1 || math.Abs(r-0.5) > 1e-12 {
		t.Fatalf("half blend hard left: got l=%v r=%v", l, r)
	}
}

func TestPanClampsOutOfRangePosition(t *testing.T) {
	l, r := PanGains(1, 1.5)
	if l != 0 || r != 1 {
		t.Fatalf("out-of-range x should clamp, got l=%v r=%v", l, r)
	}
}
