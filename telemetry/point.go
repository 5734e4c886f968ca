package telemetry

import "time"

// PointStatus is the reported position of a point.
type PointStatus string

const (
	PointNormal  PointStatus = "normal"
	PointReverse PointStatus = "reverse"
	PointFault   PointStatus = "fault"
)

// PointMode is the operating mode of a point.
type PointMode string

const (
	ModeAuto   PointMode = "auto"
	ModeManual PointMode = "manual"
)

// Point is the latest reading of one point machine.
type Point struct {
	ID        string
	SectionID string
	Status    PointStatus
	Mode      PointMode
	ErrorCode int
	TS        time.Time
}

// PointSet is a read-only view of point readings keyed by point id.
type PointSet struct {
	byID map[string]Point
}

// NewPointSet builds a PointSet. Later entries with the same id win.
func NewPointSet(points ...Point) PointSet {
	ps := PointSet{byID: make(map[string]Point, len(points))}
	for _, p := range points {
		ps.byID[p.ID] = p
	}
	return ps
}

// Get returns the reading for a point id.
func (ps PointSet) Get(pointID string) (Point, bool) {
	p, ok := ps.byID[pointID]
	return p, ok
}

// Len returns the number of points with a reading.
func (ps PointSet) Len() int {
	return len(ps.byID)
}
