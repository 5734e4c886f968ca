// Package telemetry holds the immutable value types decoded from section and
// point telemetry, the payload decoder that validates them, and the snapshot
// store that keeps the current and previous section frames.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/paragnema1/scc/pkg/timestamp"
)

// Status is the occupancy state of a section.
type Status string

const (
	StatusCleared  Status = "cleared"
	StatusOccupied Status = "occupied"
)

// Direction is the travel direction reported for a section.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionNone Direction = "none"
)

// Section is one section's reading within a frame. Values are never mutated
// after decoding; a new frame replaces the old one wholesale.
type Section struct {
	ID               string    `json:"section_id"`
	Status           Status    `json:"section_status"`
	EngineAxleCount  int       `json:"engine_axle_count"`
	TorpedoAxleCount int       `json:"torpedo_axle_count"`
	Direction        Direction `json:"direction"`
	Speed            float64   `json:"speed"`
	TorpedoStatus    string    `json:"torpedo_status"`
	FirstAxle        string    `json:"first_axle"`
	ErrorCode        int       `json:"error_code"`
}

// Occupied reports whether the section is occupied.
func (s Section) Occupied() bool {
	return s.Status == StatusOccupied
}

// Moving reports whether the section is occupied and travelling in d.
func (s Section) Moving(d Direction) bool {
	return s.Occupied() && s.Direction == d
}

// Frame is one complete section snapshot. The zero Frame is the empty snapshot
// that exists before the first message is processed.
type Frame struct {
	ts       time.Time
	sections []Section
	index    map[string]int
}

// NewFrame builds a Frame from sections in message order. A repeated section id
// keeps its last reading.
func NewFrame(ts time.Time, sections []Section) Frame {
	f := Frame{
		ts:       ts,
		sections: make([]Section, 0, len(sections)),
		index:    make(map[string]int, len(sections)),
	}
	for _, s := range sections {
		if i, ok := f.index[s.ID]; ok {
			f.sections[i] = s
			continue
		}
		f.index[s.ID] = len(f.sections)
		f.sections = append(f.sections, s)
	}
	return f
}

// IsZero reports whether f is the empty pre-first-message snapshot.
func (f Frame) IsZero() bool {
	return f.index == nil
}

// TS returns the frame timestamp.
func (f Frame) TS() time.Time {
	return f.ts
}

// Len returns the number of sections in the frame.
func (f Frame) Len() int {
	return len(f.sections)
}

// Section looks up a section reading by id.
func (f Frame) Section(id string) (Section, bool) {
	i, ok := f.index[id]
	if !ok {
		return Section{}, false
	}
	return f.sections[i], true
}

// Sections returns a copy of the readings in message order.
func (f Frame) Sections() []Section {
	out := make([]Section, len(f.sections))
	copy(out, f.sections)
	return out
}

// Replace returns a new Frame with the given readings substituted by id.
// Ids not present in f are ignored.
func (f Frame) Replace(updates ...Section) Frame {
	if f.IsZero() {
		return f
	}
	sections := f.Sections()
	for _, u := range updates {
		if i, ok := f.index[u.ID]; ok {
			sections[i] = u
		}
	}
	return NewFrame(f.ts, sections)
}

type frameWire struct {
	TS       float64   `json:"ts"`
	Sections []Section `json:"sections"`
}

// MarshalJSON renders the section-stream payload.
func (f Frame) MarshalJSON() ([]byte, error) {
	sections := f.sections
	if sections == nil {
		sections = []Section{}
	}
	return json.Marshal(frameWire{TS: timestamp.ToEpoch(f.ts), Sections: sections})
}
