package movement

import (
	"log/slog"
	"sync"
	"time"

	"github.com/paragnema1/scc/pkg/timestamp"
	"github.com/paragnema1/scc/telemetry"
	"github.com/paragnema1/scc/topology"
)

// Tracer follows movements across the yard. Ids are created at entry
// sections and carried hop-to-hop through occupied neighbours until the
// movement leaves. Only an entry opens a record; every later timestamp needs
// an open record for the carried torpedo id or it is dropped. It is safe for concurrent use; Trace calls are expected to
// be serialised by the caller in frame order.
type Tracer struct {
	logger *slog.Logger
	loc    *time.Location

	mu      sync.Mutex
	carried map[string]IDs
	records map[string]*Record
	order   []string
}

// NewTracer creates a Tracer. Ids are formatted in loc, UTC when nil.
func NewTracer(logger *slog.Logger, loc *time.Location) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Tracer{
		logger:  logger.With("component", "movement"),
		loc:     loc,
		carried: make(map[string]IDs),
		records: make(map[string]*Record),
	}
}

// Trace compares previous and current frames and returns the movement events
// they imply, in layout order. The first frame never produces events.
func (t *Tracer) Trace(current, previous telemetry.Frame, g *topology.Graph) []Event {
	if previous.IsZero() || current.IsZero() {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var events []Event
	for _, id := range g.Sections() {
		cur, ok := current.Section(id)
		if !ok {
			continue
		}
		before, _ := previous.Section(id)
		links, _ := g.Links(id)

		switch g.Role(id) {
		case topology.RoleEntry:
			events = t.traceEntry(events, cur, before, links, current)
		case topology.RoleMiddle:
			t.carry(cur, links, current)
		case topology.RoleUnloading:
			events = t.traceUnloading(events, cur, before, links, current)
		}

		if cur.Status == telemetry.StatusCleared {
			delete(t.carried, id)
		}
	}
	return events
}

func entered(cur, before telemetry.Section) bool {
	return before.TorpedoAxleCount < EntryThreshold && cur.TorpedoAxleCount >= EntryThreshold
}

func cleared(cur, before telemetry.Section) bool {
	if cur.Direction != telemetry.DirectionOut && cur.Direction != telemetry.DirectionNone {
		return false
	}
	return before.TorpedoAxleCount >= ExitThreshold && cur.TorpedoAxleCount < ExitThreshold
}

// leftYard is cleared for a boundary section. A reading of direction none
// only counts when the section was moving out, so an inbound train clearing
// the boundary does not close its own movement.
func leftYard(cur, before telemetry.Section) bool {
	if cur.Direction == telemetry.DirectionNone && before.Direction != telemetry.DirectionOut {
		return false
	}
	return cleared(cur, before)
}

func (t *Tracer) traceEntry(events []Event, cur, before telemetry.Section, links topology.Links, frame telemetry.Frame) []Event {
	if cur.Moving(telemetry.DirectionIn) && entered(cur, before) {
		ids := IDs{
			TorpedoID: timestamp.FormatID("T", frame.TS(), t.loc),
			EngineID:  timestamp.FormatID("E", frame.TS(), t.loc),
		}
		t.carried[cur.ID] = ids
		rec := t.create(ids)
		rec.EntryTS = frame.TS()

		t.logger.Info("Movement entered yard", "section", cur.ID, "torpedo_id", ids.TorpedoID,
			"engine_id", ids.EngineID)
		events = append(events, Event{Kind: EventEntry, SectionID: cur.ID, Record: *rec})
	}

	if cur.Direction == telemetry.DirectionOut {
		t.adopt(cur.ID, links.Left(), telemetry.DirectionOut, frame)
	}

	if leftYard(cur, before) {
		ids := t.carried[cur.ID]
		delete(t.carried, cur.ID)
		rec, ok := t.lookup(cur.ID, "exit", ids)
		if !ok {
			return events
		}
		rec.ExitTS = frame.TS()
		rec.Closed = true
		t.release(ids.TorpedoID)
		events = append(events, Event{Kind: EventExit, SectionID: cur.ID, Record: *rec})

		t.logger.Info("Movement left yard", "section", cur.ID, "torpedo_id", ids.TorpedoID,
			"engine_id", ids.EngineID)
	}
	return events
}

func (t *Tracer) traceUnloading(events []Event, cur, before telemetry.Section, links topology.Links, frame telemetry.Frame) []Event {
	if entered(cur, before) {
		t.adoptAny(cur.ID, links.All(), frame)
		ids := t.carried[cur.ID]
		if rec, ok := t.lookup(cur.ID, "unloading entry", ids); ok {
			rec.UnloadEntryTS = frame.TS()
			rec.UnloadSectionID = cur.ID
			events = append(events, Event{Kind: EventUnloadEntry, SectionID: cur.ID, Record: *rec})
			t.logger.Info("Movement entered unloading", "section", cur.ID, "torpedo_id", ids.TorpedoID)
		}
	}

	if cleared(cur, before) {
		ids := t.carried[cur.ID]
		rec, ok := t.lookup(cur.ID, "unloading exit", ids)
		if !ok {
			return events
		}
		rec.UnloadExitTS = frame.TS()
		events = append(events, Event{Kind: EventUnloadExit, SectionID: cur.ID, Record: *rec})
		t.logger.Info("Movement left unloading", "section", cur.ID, "torpedo_id", ids.TorpedoID)
	}
	return events
}

// carry moves ids into a middle section from the neighbour feeding it:
// left neighbours for outbound traffic, right neighbours for inbound.
func (t *Tracer) carry(cur telemetry.Section, links topology.Links, frame telemetry.Frame) {
	if !cur.Occupied() {
		return
	}
	switch cur.Direction {
	case telemetry.DirectionOut:
		t.adopt(cur.ID, links.Left(), telemetry.DirectionOut, frame)
	case telemetry.DirectionIn:
		t.adopt(cur.ID, links.Right(), telemetry.DirectionIn, frame)
	}
}

// adopt copies ids from the last neighbour in from that is occupied, moving
// in dir and carrying a movement.
func (t *Tracer) adopt(sectionID string, from []string, dir telemetry.Direction, frame telemetry.Frame) {
	for _, n := range from {
		ns, ok := frame.Section(n)
		if !ok {
			t.logger.Debug("Neighbour missing from frame, skipping", "section", sectionID, "neighbour", n)
			continue
		}
		if !ns.Moving(dir) {
			continue
		}
		if ids := t.carried[n]; !ids.IsZero() {
			t.carried[sectionID] = ids
		}
	}
}

// adoptAny copies ids from any occupied neighbour carrying a movement.
func (t *Tracer) adoptAny(sectionID string, from []string, frame telemetry.Frame) {
	for _, n := range from {
		ns, ok := frame.Section(n)
		if !ok || !ns.Occupied() {
			continue
		}
		if ids := t.carried[n]; !ids.IsZero() {
			t.carried[sectionID] = ids
		}
	}
}

// create opens a record for a movement that has just entered the yard.
func (t *Tracer) create(ids IDs) *Record {
	rec := &Record{TorpedoID: ids.TorpedoID, EngineID: ids.EngineID}
	if _, ok := t.records[ids.TorpedoID]; !ok {
		t.order = append(t.order, ids.TorpedoID)
	}
	t.records[ids.TorpedoID] = rec
	return rec
}

// lookup returns the open record for ids. A missing or closed record is
// logged and reported as not found.
func (t *Tracer) lookup(sectionID, event string, ids IDs) (*Record, bool) {
	if ids.IsZero() {
		t.logger.Warn("No movement carried, dropping "+event, "section", sectionID)
		return nil, false
	}
	rec, ok := t.records[ids.TorpedoID]
	switch {
	case !ok:
		t.logger.Warn("Movement record does not exist, dropping "+event, "section", sectionID,
			"torpedo_id", ids.TorpedoID)
		return nil, false
	case rec.Closed:
		t.logger.Warn("Movement already closed, dropping "+event, "section", sectionID,
			"torpedo_id", ids.TorpedoID)
		return nil, false
	}
	return rec, true
}

// release removes torpedoID from every section still carrying it.
func (t *Tracer) release(torpedoID string) {
	for id, ids := range t.carried {
		if ids.TorpedoID == torpedoID {
			delete(t.carried, id)
		}
	}
}

// Assign overrides the torpedo id carried on a section. The engine id is kept
// when the section already carries a movement, and its open record is renamed
// along with every section carrying it. Assigning to a section with no
// movement never opens a record.
func (t *Tracer) Assign(sectionID, torpedoID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.carried[sectionID]
	if rec, ok := t.records[old.TorpedoID]; ok && !rec.Closed && old.TorpedoID != torpedoID {
		if _, taken := t.records[torpedoID]; !taken {
			delete(t.records, old.TorpedoID)
			rec.TorpedoID = torpedoID
			t.records[torpedoID] = rec
			for i, id := range t.order {
				if id == old.TorpedoID {
					t.order[i] = torpedoID
				}
			}
			for id, ids := range t.carried {
				if ids.TorpedoID == old.TorpedoID {
					ids.TorpedoID = torpedoID
					t.carried[id] = ids
				}
			}
		}
	}

	ids := t.carried[sectionID]
	ids.TorpedoID = torpedoID
	t.carried[sectionID] = ids

	t.logger.Info("Torpedo id assigned", "section", sectionID, "torpedo_id", torpedoID)
}

// Carried returns the ids currently carried on a section.
func (t *Tracer) Carried(sectionID string) (IDs, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids, ok := t.carried[sectionID]
	return ids, ok && !ids.IsZero()
}

// Records returns copies of every movement record, closed ones included, in
// the order they were opened.
func (t *Tracer) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.records[id])
	}
	return out
}
