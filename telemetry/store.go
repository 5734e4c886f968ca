package telemetry

import "sync"

// Store keeps the two most recent section frames and the latest reading of
// every point.
type Store struct {
	mu       sync.RWMutex
	current  Frame
	previous Frame
	points   map[string]Point
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{points: make(map[string]Point)}
}

// Rotate installs f as the current frame and demotes the old current frame to
// previous. It returns the new pair.
func (s *Store) Rotate(f Frame) (current, previous Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previous = s.current
	s.current = f
	return s.current, s.previous
}

// Amend replaces the current frame without rotating.
func (s *Store) Amend(f Frame) {
	s.mu.Lock()
	s.current = f
	s.mu.Unlock()
}

// Current returns the latest frame.
func (s *Store) Current() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Previous returns the frame before the latest.
func (s *Store) Previous() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previous
}

// UpdatePoint records the latest reading for p.ID.
func (s *Store) UpdatePoint(p Point) {
	s.mu.Lock()
	s.points[p.ID] = p
	s.mu.Unlock()
}

// Points returns a snapshot of all point readings.
func (s *Store) Points() PointSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps := PointSet{byID: make(map[string]Point, len(s.points))}
	for id, p := range s.points {
		ps.byID[id] = p
	}
	return ps
}
