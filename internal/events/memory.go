package events

import "context"

// MemorySink buffers events on a channel. Used in tests and memory-backed
// bootstraps. A full buffer drops the event rather than block the caller.
type MemorySink struct {
	ch chan Event
}

// NewMemorySink creates a MemorySink with the provided buffer capacity.
func NewMemorySink(buffer int) *MemorySink {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemorySink{ch: make(chan Event, buffer)}
}

func (m *MemorySink) Emit(_ context.Context, evt Event) error {
	select {
	case m.ch <- evt:
	default:
		// Dropping is acceptable: delivery is best-effort.
	}
	return nil
}

// Events exposes the buffered channel for consumers.
func (m *MemorySink) Events() <-chan Event {
	return m.ch
}

// Drain returns all currently buffered events without blocking.
func (m *MemorySink) Drain() []Event {
	var out []Event
	for {
		select {
		case evt := <-m.ch:
			out = append(out, evt)
		default:
			return out
		}
	}
}
