package resource

import "sync"

// Scope owns the watches of one consumer and cancels them together.
type Scope struct {
	mu       sync.Mutex
	items    []Canceler
	disposed bool
}

func NewScope() *Scope {
	return &Scope{}
}

// Add attaches c to the scope. If the scope is already disposed c is
// cancelled immediately.
func (s *Scope) Add(c Canceler) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		c.Cancel()
		return
	}
	s.items = append(s.items, c)
	s.mu.Unlock()
}

// Dispose cancels every attached item exactly once. Later calls are no-ops.
func (s *Scope) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	items := s.items
	s.items = nil
	s.mu.Unlock()

	for _, c := range items {
		c.Cancel()
	}
}

// Disposed reports whether Dispose has been called.
func (s *Scope) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
