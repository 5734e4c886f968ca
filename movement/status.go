package movement

import (
	"sync"

	"github.com/paragnema1/scc/telemetry"
	"github.com/paragnema1/scc/topology"
)

// NoStatus is the torpedo status of a section carrying no known torpedo.
const NoStatus = "none"

// StatusPropagator fills in the torpedo status (loaded, empty...) of sections
// that have no status sensor, copying it from the neighbour that fed the
// torpedo in. Source sections report their own status and are taken as is.
type StatusPropagator struct {
	sources map[string]bool

	mu     sync.Mutex
	status map[string]string
}

// NewStatusPropagator creates a propagator whose status readings come from
// the given source sections.
func NewStatusPropagator(sources []string) *StatusPropagator {
	p := &StatusPropagator{
		sources: make(map[string]bool, len(sources)),
		status:  make(map[string]string),
	}
	for _, s := range sources {
		p.sources[s] = true
	}
	return p
}

// Propagate returns current with the torpedo status of every non-source
// section replaced by the propagated value. Nothing is propagated on the
// first frame.
func (p *StatusPropagator) Propagate(current, previous telemetry.Frame, g *topology.Graph) telemetry.Frame {
	if current.IsZero() {
		return current
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range current.Sections() {
		if p.sources[s.ID] {
			p.status[s.ID] = normStatus(s.TorpedoStatus)
		}
	}

	if !previous.IsZero() {
		for _, id := range g.Sections() {
			if p.sources[id] {
				continue
			}
			cur, ok := current.Section(id)
			if !ok {
				continue
			}
			links, _ := g.Links(id)
			switch {
			case !cur.Occupied():
				p.status[id] = NoStatus
			case cur.Direction == telemetry.DirectionIn:
				p.inherit(id, links.Right(), current, previous, cur.TorpedoAxleCount, 0)
			case cur.Direction == telemetry.DirectionOut:
				p.inherit(id, links.Left(), current, previous, cur.TorpedoAxleCount, ExitThreshold)
			}
		}
	}

	updates := make([]telemetry.Section, 0, current.Len())
	for _, s := range current.Sections() {
		if p.sources[s.ID] {
			continue
		}
		st, ok := p.status[s.ID]
		if !ok {
			st = NoStatus
		}
		s.TorpedoStatus = st
		updates = append(updates, s)
	}
	return current.Replace(updates...)
}

// inherit copies status from a feeding neighbour whose axle count is moving.
// Outbound sections only inherit once they hold at least ExitThreshold axles.
func (p *StatusPropagator) inherit(id string, from []string, current, previous telemetry.Frame, ownAxles, minAxles int) {
	if ownAxles < minAxles {
		return
	}
	for _, n := range from {
		now, ok := current.Section(n)
		if !ok {
			continue
		}
		before, ok := previous.Section(n)
		if !ok || now.TorpedoAxleCount == before.TorpedoAxleCount {
			continue
		}
		st := p.status[n]
		if st == "" || st == NoStatus {
			continue
		}
		p.status[id] = st
	}
}

func normStatus(s string) string {
	if s == "" {
		return NoStatus
	}
	return s
}
