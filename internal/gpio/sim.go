package gpio

import "sync"

// Sim is an in-memory Output that records every asserted level.
// It backs the "sim" GPIO backend and the test suite.
//
// All methods are safe for concurrent use.
type Sim struct {
	mu      sync.Mutex
	level   Level
	history []Level
	closed  bool
	closes  int
}

// NewSim returns a simulated output, initially low.
func NewSim() *Sim {
	return &Sim{}
}

// SetLevel records the asserted level.
func (s *Sim) SetLevel(level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.level = level
	s.history = append(s.history, level)
	return nil
}

// Close marks the output released. Idempotent; the call count is
// recorded so tests can assert the release-exactly-once rule.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closes++
	return nil
}

// Level returns the last asserted level.
func (s *Sim) Level() Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// History returns a copy of every level asserted so far, oldest first.
func (s *Sim) History() []Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Level, len(s.history))
	copy(out, s.history)
	return out
}

// Closed reports whether Close has been called.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CloseCount returns how many times Close has been called.
func (s *Sim) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
