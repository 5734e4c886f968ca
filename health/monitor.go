package health

import (
	"sort"
	"sync"
)

// Check reports the current health of one component
type Check func() Status

// Monitor aggregates registered checks. Checks run on every call to Check,
// so they must be cheap and non-blocking.
type Monitor struct {
	name string

	mu     sync.RWMutex
	checks map[string]Check
}

// NewMonitor creates a monitor whose aggregate status is reported as name
func NewMonitor(name string) *Monitor {
	return &Monitor{
		name:   name,
		checks: make(map[string]Check),
	}
}

// Register adds or replaces the check for component
func (m *Monitor) Register(component string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[component] = check
}

// Remove drops the check for component
func (m *Monitor) Remove(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checks, component)
}

// Components returns the registered component names in sorted order
func (m *Monitor) Components() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every registered check and aggregates the results in
// component name order.
func (m *Monitor) Check() Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	checks := make(map[string]Check, len(m.checks))
	for name, check := range m.checks {
		names = append(names, name)
		checks[name] = check
	}
	m.mu.RUnlock()
	sort.Strings(names)

	subs := make([]Status, 0, len(names))
	for _, name := range names {
		s := checks[name]()
		s.Component = name
		subs = append(subs, s)
	}
	return Aggregate(m.name, subs)
}
