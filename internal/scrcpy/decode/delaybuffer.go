package decode

import "sync"

// DelayBuffer is the single-slot frame buffer between decoder and renderer.
// The newest frame always wins; consumers get a deep copy so the decoder can
// reuse its buffers while the copy is being uploaded or written out.
type DelayBuffer struct {
	mu       sync.Mutex
	pending  *Frame
	consumed bool
	skipped  uint64
}

// Push replaces the pending frame. It reports whether the previous frame was
// never consumed, i.e. skipped.
func (b *DelayBuffer) Push(f *Frame) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	skipped := b.pending != nil && !b.consumed
	if skipped {
		b.skipped++
	}
	b.pending = f
	b.consumed = false
	return skipped
}

// Consume returns a deep copy of the pending frame, or nil when there is no
// new frame since the last call.
func (b *DelayBuffer) Consume() *Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil || b.consumed {
		return nil
	}
	b.consumed = true
	return b.pending.Clone()
}

// Skipped returns how many frames were overwritten unconsumed
func (b *DelayBuffer) Skipped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.skipped
}
