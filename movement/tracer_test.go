package movement

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paragnema1/scc/telemetry"
	"github.com/paragnema1/scc/topology"
)

const baseTS = 1700000000 // 14 Nov 2023 22:13:20 UTC

// yard is S12 (unloading) - S3 (middle) - S1 (entry). Inbound traffic moves
// from S1 towards S12.
func yard(t *testing.T) *topology.Graph {
	t.Helper()
	g, err := topology.New(
		[]topology.LinkRow{
			{SectionID: "S1", LeftNormal: "S3"},
			{SectionID: "S3", LeftNormal: "S12", RightNormal: "S1"},
			{SectionID: "S12", RightNormal: "S3"},
		},
		nil,
		topology.Zones{
			Entry:     []string{"S1"},
			Middle:    []string{"S3"},
			Unloading: []string{"S12"},
		},
	)
	require.NoError(t, err)
	return g
}

type reading struct {
	id    string
	dir   telemetry.Direction
	axles int
}

func at(step int64, readings ...reading) telemetry.Frame {
	sections := make([]telemetry.Section, 0, len(readings))
	for _, r := range readings {
		status := telemetry.StatusOccupied
		if r.axles == 0 && r.dir == telemetry.DirectionNone {
			status = telemetry.StatusCleared
		}
		sections = append(sections, telemetry.Section{
			ID: r.id, Status: status, Direction: r.dir, TorpedoAxleCount: r.axles,
		})
	}
	return telemetry.NewFrame(time.Unix(baseTS+step, 0), sections)
}

func in(id string, axles int) reading   { return reading{id, telemetry.DirectionIn, axles} }
func out(id string, axles int) reading  { return reading{id, telemetry.DirectionOut, axles} }
func none(id string, axles int) reading { return reading{id, telemetry.DirectionNone, axles} }

func newTracer() *Tracer {
	return NewTracer(slog.New(slog.NewTextHandler(io.Discard, nil)), time.UTC)
}

// run feeds frames in order and collects every event.
func run(tr *Tracer, g *topology.Graph, frames ...telemetry.Frame) []Event {
	var all []Event
	var previous telemetry.Frame
	for _, f := range frames {
		all = append(all, tr.Trace(f, previous, g)...)
		previous = f
	}
	return all
}

func TestTrace_OpenClose(t *testing.T) {
	g := yard(t)
	tr := newTracer()

	events := run(tr, g,
		at(0, none("S1", 0)),
		at(1, in("S1", 12)),
		at(2, in("S1", 16)),
		at(3, out("S1", 6)),
		at(4, out("S1", 0)),
	)

	require.Len(t, events, 2)
	entry, exit := events[0], events[1]

	assert.Equal(t, EventEntry, entry.Kind)
	assert.Equal(t, "S1", entry.SectionID)
	assert.Equal(t, "T14112023221321", entry.Record.TorpedoID)
	assert.Equal(t, "E14112023221321", entry.Record.EngineID)
	assert.Equal(t, time.Unix(baseTS+1, 0), entry.Record.EntryTS)
	assert.True(t, entry.Record.ExitTS.IsZero())

	assert.Equal(t, EventExit, exit.Kind)
	assert.Equal(t, entry.Record.TorpedoID, exit.Record.TorpedoID)
	assert.Equal(t, entry.Record.EngineID, exit.Record.EngineID)
	assert.Equal(t, entry.Record.EntryTS, exit.Record.EntryTS)
	assert.Equal(t, time.Unix(baseTS+4, 0), exit.Record.ExitTS)

	records := tr.Records()
	require.Len(t, records, 1, "closed movements are kept")
	assert.True(t, records[0].Closed)
	assert.Equal(t, time.Unix(baseTS+4, 0), records[0].ExitTS)
	_, ok := tr.Carried("S1")
	assert.False(t, ok)
}

func TestTrace_ColdStart(t *testing.T) {
	g := yard(t)
	tr := newTracer()

	assert.Nil(t, tr.Trace(at(1, in("S1", 16), in("S12", 16)), telemetry.Frame{}, g))
	_, ok := tr.Carried("S1")
	assert.False(t, ok)
}

func TestTrace_FullTrip(t *testing.T) {
	g := yard(t)
	tr := newTracer()

	events := run(tr, g,
		at(0, none("S1", 0), none("S3", 0), none("S12", 0)),
		at(1, in("S1", 12), none("S3", 0), none("S12", 0)),
		at(2, in("S1", 16), in("S3", 4), none("S12", 0)),
		at(3, none("S1", 0), in("S3", 16), in("S12", 4)),
		at(4, none("S1", 0), in("S3", 16), in("S12", 12)),
		at(5, none("S1", 0), none("S3", 0), none("S12", 16)),
		at(6, none("S1", 0), out("S3", 12), out("S12", 4)),
		at(7, out("S1", 8), out("S3", 16), none("S12", 0)),
		at(8, out("S1", 4), none("S3", 0), none("S12", 0)),
	)

	kinds := make([]EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
		assert.Equal(t, "T14112023221321", e.Record.TorpedoID, "event %s", e.Kind)
	}
	assert.Equal(t, []EventKind{EventEntry, EventUnloadEntry, EventUnloadExit, EventExit}, kinds)

	unloadExit := events[2].Record
	assert.Equal(t, "S12", unloadExit.UnloadSectionID)
	assert.Equal(t, time.Unix(baseTS+4, 0), unloadExit.UnloadEntryTS)
	assert.Equal(t, time.Unix(baseTS+6, 0), unloadExit.UnloadExitTS)

	final := events[3].Record
	assert.Equal(t, time.Unix(baseTS+1, 0), final.EntryTS)
	assert.Equal(t, time.Unix(baseTS+8, 0), final.ExitTS)
	assert.Equal(t, "S12", final.UnloadSectionID)
}

func TestTrace_InboundClearingIsNotAnExit(t *testing.T) {
	g := yard(t)
	tr := newTracer()

	events := run(tr, g,
		at(0, none("S1", 0)),
		at(1, in("S1", 12)),
		at(2, none("S1", 0)),
	)
	require.Len(t, events, 1)
	assert.Equal(t, EventEntry, events[0].Kind)
	assert.Len(t, tr.Records(), 1)
}

func TestTrace_CloseWithoutOpenIsDropped(t *testing.T) {
	g := yard(t)
	tr := newTracer()

	events := run(tr, g,
		at(0, out("S1", 8), out("S12", 8)),
		at(1, out("S1", 2), out("S12", 2)),
	)
	assert.Empty(t, events)
	assert.Empty(t, tr.Records())
}

func TestTrace_CarriedIDWithoutRecordIsDropped(t *testing.T) {
	g := yard(t)
	tr := newTracer()
	tr.Assign("S3", "T-UNKNOWN")

	events := run(tr, g,
		at(0, none("S12", 0), in("S3", 16)),
		at(1, in("S12", 12), in("S3", 16)),
		at(2, out("S12", 2), none("S3", 0)),
	)
	assert.Empty(t, events)
	assert.Empty(t, tr.Records())
}

func TestTrace_ClosedMovementIsNotClosedAgain(t *testing.T) {
	g := yard(t)
	tr := newTracer()

	events := run(tr, g,
		at(0, none("S1", 0), none("S3", 0)),
		at(1, in("S1", 12), none("S3", 0)),
		at(2, in("S1", 16), in("S3", 4)),
		at(3, out("S1", 8), in("S3", 16)),
		at(4, out("S1", 6), in("S3", 16)),
		at(5, out("S1", 0), in("S3", 16)),
		at(100, none("S1", 0), out("S3", 12)),
		at(101, out("S1", 8), out("S3", 12)),
		at(102, out("S1", 0), none("S3", 0)),
	)

	require.Len(t, events, 2)
	assert.Equal(t, EventEntry, events[0].Kind)
	assert.Equal(t, EventExit, events[1].Kind)
	assert.Equal(t, time.Unix(baseTS+5, 0), events[1].Record.ExitTS)

	_, ok := tr.Carried("S3")
	assert.False(t, ok, "exit releases the id from every section")
	records := tr.Records()
	require.Len(t, records, 1)
	assert.Equal(t, time.Unix(baseTS+5, 0), records[0].ExitTS)
}

func TestTrace_ClearedSectionDropsCarriedIDs(t *testing.T) {
	g := yard(t)
	tr := newTracer()

	run(tr, g,
		at(0, none("S1", 0), none("S3", 0)),
		at(1, in("S1", 12), none("S3", 0)),
		at(2, in("S1", 16), in("S3", 4)),
	)
	_, ok := tr.Carried("S3")
	require.True(t, ok)

	run(tr, g, at(2, in("S1", 16), in("S3", 4)), at(3, in("S1", 16), none("S3", 0)))
	_, ok = tr.Carried("S3")
	assert.False(t, ok)
}

func TestTrace_UnloadingNeverCreatesIDs(t *testing.T) {
	g := yard(t)
	tr := newTracer()

	events := run(tr, g,
		at(0, none("S12", 0)),
		at(1, in("S12", 12)),
	)
	assert.Empty(t, events)
	_, ok := tr.Carried("S12")
	assert.False(t, ok)
}

func TestTrace_ThresholdsFireOnce(t *testing.T) {
	g := yard(t)
	tr := newTracer()

	events := run(tr, g,
		at(0, in("S1", 4)),
		at(1, in("S1", 12)),
		at(2, in("S1", 12)),
		at(3, in("S1", 14)),
	)
	assert.Len(t, events, 1)
}

func TestTracer_Assign(t *testing.T) {
	g := yard(t)
	tr := newTracer()

	tr.Assign("S1", "T-OPERATOR")
	ids, ok := tr.Carried("S1")
	require.True(t, ok)
	assert.Equal(t, "T-OPERATOR", ids.TorpedoID)

	events := run(tr, g,
		at(0, out("S1", 8)),
		at(1, out("S1", 0)),
	)
	assert.Empty(t, events, "an assigned id without an entry has no record to close")
	assert.Empty(t, tr.Records())
}

func TestTracer_AssignRenamesOpenRecord(t *testing.T) {
	g := yard(t)
	tr := newTracer()

	run(tr, g, at(0, in("S1", 0)), at(1, in("S1", 12)))
	tr.Assign("S1", "T-FIXED")

	events := run(tr, g,
		at(2, in("S1", 12)),
		at(3, out("S1", 8)),
		at(4, out("S1", 2)),
	)
	require.Len(t, events, 1)
	assert.Equal(t, EventExit, events[0].Kind)
	assert.Equal(t, "T-FIXED", events[0].Record.TorpedoID)
	assert.Equal(t, time.Unix(baseTS+1, 0), events[0].Record.EntryTS)

	records := tr.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "T-FIXED", records[0].TorpedoID)
}

func TestTracer_AssignKeepsEngineID(t *testing.T) {
	g := yard(t)
	tr := newTracer()

	run(tr, g, at(0, in("S1", 0)), at(1, in("S1", 12)))
	tr.Assign("S1", "T-FIXED")

	ids, _ := tr.Carried("S1")
	assert.Equal(t, "E14112023221321", ids.EngineID)
	assert.Equal(t, "T-FIXED", ids.TorpedoID)
}

func TestTracer_IDsUseLocation(t *testing.T) {
	g := yard(t)
	loc := time.FixedZone("IST", 5*3600+1800)
	tr := NewTracer(slog.New(slog.NewTextHandler(io.Discard, nil)), loc)

	events := run(tr, g, at(0, in("S1", 0)), at(1, in("S1", 12)))
	require.Len(t, events, 1)
	assert.Equal(t, "T15112023034321", events[0].Record.TorpedoID)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "entry", EventEntry.String())
	assert.Equal(t, "exit", EventExit.String())
	assert.Equal(t, "unload_entry", EventUnloadEntry.String())
	assert.Equal(t, "unload_exit", EventUnloadExit.String())
	assert.Equal(t, "unknown", EventKind(9).String())
}
