package track

import (
	"testing"
	"time"
)

func TestFramesDividesByChannels(t *testing.T) {
	tr := New(44100, 2, make([]float32, 441*2))
	if got := tr.Frames(); got != 441 {
		t.Fatalf("expected 441 frames, got %d", got)
	}
}

func TestFramesNilAndZeroChannels(t *testing.T) {
	var tr *Track
	if got := tr.Frames(); got != 0 {
		t.Fatalf("nil track should report 0 frames, got %d", got)
	}
	tr = &Track{SampleRate: 44100, Channels: 0, Data: make([]float32, 10)}
	if got := tr.Frames(); got != 0 {
		t.Fatalf("zero-channel track should report 0 frames, got %d", got)
	}
}

func TestDuration(t *testing.T) {
	tr := New(44100, 2, make([]float32, 44100*2))
	if got := tr.Duration(); got != time.Second {
		t.Fatalf("expected 1s, got %v", got)
	}
}

func TestFrameAliasesData(t *testing.T) {
	tr := New(8000, 2, []float32{0, 1, 2, 3, 4, 5})
	f := tr.Frame(1)
	if len(f) != 2 || f[0] != 2 || f[1] != 3 {
		t.Fatalf("unexpected frame contents: %v", f)
	}
	f[0] = 9
	if tr.Data[2] != 9 {
		t.Fatalf("Frame should alias Data")
	}
}
