package tasks

import "sync"

// inflightSet guards against concurrent polls of the same feed. A second
// trigger for an already-polling feed is a no-op, not a queued retry.
type inflightSet struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{active: make(map[string]struct{})}
}

func (s *inflightSet) TryAcquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[id]; ok {
		return false
	}
	s.active[id] = struct{}{}
	return true
}

func (s *inflightSet) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}
