// Package movement traces torpedo and engine movements through the yard from
// axle-count threshold crossings, producing entry, exit and unloading
// timestamps per movement.
package movement

import "time"

// Axle-count thresholds. A section is entered when its torpedo axle count
// rises to EntryThreshold and left when it falls below ExitThreshold.
const (
	EntryThreshold = 12
	ExitThreshold  = 6
)

// Record is one movement through the yard. It is opened at entry and updated
// in place as the movement reaches the unloading zone and leaves the yard.
// Records are kept after the exit with Closed set.
type Record struct {
	TorpedoID       string
	EngineID        string
	EntryTS         time.Time
	ExitTS          time.Time
	UnloadEntryTS   time.Time
	UnloadExitTS    time.Time
	UnloadSectionID string
	Closed          bool
}

// IDs is the identifier pair carried from section to section.
type IDs struct {
	TorpedoID string
	EngineID  string
}

// IsZero reports whether no movement has been assigned.
func (i IDs) IsZero() bool {
	return i.TorpedoID == ""
}

// EventKind identifies which timestamp an Event set.
type EventKind int

const (
	EventEntry EventKind = iota
	EventExit
	EventUnloadEntry
	EventUnloadExit
)

// String returns the string representation of EventKind
func (k EventKind) String() string {
	switch k {
	case EventEntry:
		return "entry"
	case EventExit:
		return "exit"
	case EventUnloadEntry:
		return "unload_entry"
	case EventUnloadExit:
		return "unload_exit"
	default:
		return "unknown"
	}
}

// Event reports a change to a movement record. Record is a copy taken after
// the change.
type Event struct {
	Kind      EventKind
	SectionID string
	Record    Record
}
