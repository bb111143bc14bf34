package decode

import "sync"

// FrameSink receives decoded video frames as they are produced.
// Implementations must not retain the frame past the call; Clone if needed.
type FrameSink interface {
	WriteFrame(f *Frame) error
}

// UnitSink receives compressed access units before they hit the decoder
type UnitSink interface {
	WriteUnit(u *AccessUnit) error
}

// SampleSink receives audio chunks
type SampleSink interface {
	WriteChunk(c *AudioChunk) error
}

// FrameTee fans frames out to a mutable set of sinks. A sink that returns an
// error is detached so one broken recorder cannot stall the stream.
type FrameTee struct {
	mu    sync.Mutex
	sinks []FrameSink
}

func (t *FrameTee) Attach(s FrameSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, s)
}

func (t *FrameTee) Detach(s FrameSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, existing := range t.sinks {
		if existing == s {
			t.sinks = append(t.sinks[:i], t.sinks[i+1:]...)
			return
		}
	}
}

func (t *FrameTee) WriteFrame(f *Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.sinks[:0]
	for _, s := range t.sinks {
		if err := s.WriteFrame(f); err == nil {
			kept = append(kept, s)
		}
	}
	t.sinks = kept
}

// UnitTee fans compressed access units out to recorders and previews, with
// the same detach-on-error policy as FrameTee.
type UnitTee struct {
	mu    sync.Mutex
	sinks []UnitSink
}

func (t *UnitTee) Attach(s UnitSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, s)
}

func (t *UnitTee) Detach(s UnitSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, existing := range t.sinks {
		if existing == s {
			t.sinks = append(t.sinks[:i], t.sinks[i+1:]...)
			return
		}
	}
}

func (t *UnitTee) WriteUnit(u *AccessUnit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.sinks[:0]
	for _, s := range t.sinks {
		if err := s.WriteUnit(u); err == nil {
			kept = append(kept, s)
		}
	}
	t.sinks = kept
}

// SampleTee is the audio counterpart of FrameTee
type SampleTee struct {
	mu    sync.Mutex
	sinks []SampleSink
}

func (t *SampleTee) Attach(s SampleSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, s)
}

func (t *SampleTee) Detach(s SampleSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, existing := range t.sinks {
		if existing == s {
			t.sinks = append(t.sinks[:i], t.sinks[i+1:]...)
			return
		}
	}
}

func (t *SampleTee) WriteChunk(c *AudioChunk) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.sinks[:0]
	for _, s := range t.sinks {
		if err := s.WriteChunk(c); err == nil {
			kept = append(kept, s)
		}
	}
	t.sinks = kept
}
