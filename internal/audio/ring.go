package audio

import (
	"sync/atomic"

	"github.com/bad-faith/beatplay/internal/utils"
)

// spscRing is a lock-free single-producer single-consumer queue of float32
// samples. The render goroutine is the only pusher, the device callback the
// only popper; neither side blocks or allocates. Capacity is rounded up to a
// power of two so positions can wrap with a mask.
type spscRing struct {
	buf  []float32
	mask uint64
	head atomic.Uint64 // producer position
	tail atomic.Uint64 // consumer position
}

func newSPSCRing(capacity int) *spscRing {
	n := utils.NextPow2(capacity)
	return &spscRing{buf: make([]float32, n), mask: uint64(n - 1)}
}

func (r *spscRing) Cap() int { return len(r.buf) }

// Len reports the number of queued samples. Safe from either side.
func (r *spscRing) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Push appends as much of src as fits and returns the number of samples
// written. Producer side only.
func (r *spscRing) Push(src []float32) int {
	h := r.head.Load()
	t := r.tail.Load()
	free := len(r.buf) - int(h-t)
	n := len(src)
	if n > free {
		n = free
	}
	for i := 0; i < n; i++ {
		r.buf[(h+uint64(i))&r.mask] = src[i]
	}
	r.head.Store(h + uint64(n))
	return n
}

// Pop fills dst with queued samples and returns how many were available.
// Consumer side only.
func (r *spscRing) Pop(dst []float32) int {
	h := r.head.Load()
	t := r.tail.Load()
	avail := int(h - t)
	n := len(dst)
	if n > avail {
		n = avail
	}
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(t+uint64(i))&r.mask]
	}
	r.tail.Store(t + uint64(n))
	return n
}

// Drop discards everything currently queued. Consumer side only; used to
// flush stale audio after a seek or speed change.
func (r *spscRing) Drop() {
	r.tail.Store(r.head.Load())
}
