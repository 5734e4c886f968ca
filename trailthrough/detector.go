// Package trailthrough detects vehicles running through a point that is not
// set for the route they occupy.
package trailthrough

import (
	"log/slog"

	"github.com/paragnema1/scc/telemetry"
	"github.com/paragnema1/scc/topology"
)

// Detector evaluates every point-guarded section of a topology against the
// current and previous section frames. It keeps no state between calls.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a Detector.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger.With("component", "trailthrough")}
}

// Detect returns the ids of guarded sections in violation, in layout order.
// Each section appears at most once. Identical calls produce identical
// output; acknowledging an alarm is the caller's concern.
//
// A guarded section is in violation when it is occupied and moving in its
// watched direction and either its point reports a fault, or the neighbour on
// the side the point is NOT set for is occupied in the same direction with a
// torpedo axle count that changed since the previous frame. Points in manual
// mode are never reported. Nothing is reported on the first frame.
func (d *Detector) Detect(current, previous telemetry.Frame, points telemetry.PointSet, g *topology.Graph) []string {
	if previous.IsZero() || current.IsZero() {
		return nil
	}

	var violations []string
	for _, sectionID := range g.Guarded() {
		if d.violated(sectionID, current, previous, points, g) {
			violations = append(violations, sectionID)
		}
	}
	return violations
}

func (d *Detector) violated(sectionID string, current, previous telemetry.Frame, points telemetry.PointSet, g *topology.Graph) bool {
	pointID, _ := g.PointFor(sectionID)
	point, ok := points.Get(pointID)
	if !ok {
		return false
	}
	if point.Mode == telemetry.ModeManual {
		return false
	}

	watch := g.Watch(sectionID)
	dir, ok := watchedDirection(watch)
	if !ok {
		return false
	}

	section, ok := current.Section(sectionID)
	if !ok || !section.Moving(dir) {
		return false
	}

	links, _ := g.Links(sectionID)
	normalSide, reverseSide := watch.Sides(links)

	var across string
	switch point.Status {
	case telemetry.PointFault:
		d.logger.Info("Trail-through detected due to point fault", "section", sectionID, "point", pointID)
		return true
	case telemetry.PointReverse:
		across = normalSide
	case telemetry.PointNormal:
		across = reverseSide
	default:
		d.logger.Debug("Point state unknown, skipping section", "section", sectionID, "point", pointID,
			"status", point.Status)
		return false
	}

	if across == topology.None {
		return false
	}
	neighbour, ok := current.Section(across)
	if !ok {
		d.logger.Debug("Neighbour missing from frame, skipping", "section", sectionID, "neighbour", across)
		return false
	}
	if !neighbour.Moving(dir) {
		return false
	}

	before, ok := previous.Section(across)
	if !ok {
		d.logger.Debug("Neighbour missing from previous frame, skipping", "section", sectionID, "neighbour", across)
		return false
	}
	if neighbour.TorpedoAxleCount == before.TorpedoAxleCount {
		return false
	}

	d.logger.Info("Trail-through detected", "section", sectionID, "point", pointID,
		"point_status", point.Status, "neighbour", across)
	return true
}

func watchedDirection(w topology.Watch) (telemetry.Direction, bool) {
	switch w {
	case topology.WatchLeftOut:
		return telemetry.DirectionOut, true
	case topology.WatchRightIn:
		return telemetry.DirectionIn, true
	default:
		return telemetry.DirectionNone, false
	}
}
