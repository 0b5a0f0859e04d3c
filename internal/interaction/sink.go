package interaction

import "sync"

// Sink receives the encoded geometry on every edit. An empty string means
// no geometry.
type Sink interface {
	SetValue(value string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(string) error

func (f SinkFunc) SetValue(v string) error { return f(v) }

// FieldSink holds the value of the hidden form field of a widget.
type FieldSink struct {
	mu     sync.RWMutex
	value  string
	writes int
}

// NewFieldSink creates a field holding the value rendered into the form.
func NewFieldSink(initial string) *FieldSink {
	return &FieldSink{value: initial}
}

func (s *FieldSink) SetValue(v string) error {
	s.mu.Lock()
	s.value = v
	s.writes++
	s.mu.Unlock()
	return nil
}

func (s *FieldSink) Value() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Writes counts SetValue calls.
func (s *FieldSink) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
