// Package topology models the static layout of the yard: which sections connect
// to which, which point guards which section, and the role each section plays for
// trail-through detection and movement tracing.
//
// A Graph is built once at startup and never mutated afterwards. Rebuilding the
// layout requires a new Graph and a restart of the correlation engine.
package topology

import (
	"fmt"
	"strings"

	"github.com/paragnema1/scc/errors"
)

// None is the sentinel for an absent neighbour.
const None = ""

// Links holds the four neighbour references of a section. Each is a section id
// or None. References are not validated against the section set.
type Links struct {
	LeftNormal   string
	RightNormal  string
	LeftReverse  string
	RightReverse string
}

// All returns the non-empty neighbour ids in left-normal, right-normal,
// left-reverse, right-reverse order.
func (l Links) All() []string {
	ids := make([]string, 0, 4)
	for _, id := range []string{l.LeftNormal, l.RightNormal, l.LeftReverse, l.RightReverse} {
		if id != None {
			ids = append(ids, id)
		}
	}
	return ids
}

// Left returns the non-empty left neighbours, normal first.
func (l Links) Left() []string {
	return nonEmpty(l.LeftNormal, l.LeftReverse)
}

// Right returns the non-empty right neighbours, normal first.
func (l Links) Right() []string {
	return nonEmpty(l.RightNormal, l.RightReverse)
}

func nonEmpty(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != None {
			out = append(out, id)
		}
	}
	return out
}

// LinkRow is one row of the layout_section_connections table.
type LinkRow struct {
	SectionID    string `json:"section_id" yaml:"section_id"`
	LeftNormal   string `json:"left_normal" yaml:"left_normal"`
	RightNormal  string `json:"right_normal" yaml:"right_normal"`
	LeftReverse  string `json:"left_reverse" yaml:"left_reverse"`
	RightReverse string `json:"right_reverse" yaml:"right_reverse"`
}

// PointRow is one row of the pms_config table.
type PointRow struct {
	PointID   string `json:"point_id" yaml:"point_id"`
	SectionID string `json:"section_id" yaml:"section_id"`
}

// Graph is the immutable section adjacency and point binding of the yard.
type Graph struct {
	order          []string
	links          map[string]Links
	pointBySection map[string]string
	sectionByPoint map[string]string
	watch          map[string]Watch
	roles          map[string]Role
}

// New builds a Graph from persisted layout rows and the static zone assignment.
// Section order follows the order of links.
func New(links []LinkRow, points []PointRow, zones Zones) (*Graph, error) {
	g := &Graph{
		order:          make([]string, 0, len(links)),
		links:          make(map[string]Links, len(links)),
		pointBySection: make(map[string]string, len(points)),
		sectionByPoint: make(map[string]string, len(points)),
		watch:          make(map[string]Watch),
		roles:          make(map[string]Role),
	}

	for _, row := range links {
		id := normalize(row.SectionID)
		if id == None {
			return nil, invalid("link row without section id")
		}
		if _, dup := g.links[id]; dup {
			return nil, invalid(fmt.Sprintf("section %s listed twice", id))
		}
		g.order = append(g.order, id)
		g.links[id] = Links{
			LeftNormal:   normalize(row.LeftNormal),
			RightNormal:  normalize(row.RightNormal),
			LeftReverse:  normalize(row.LeftReverse),
			RightReverse: normalize(row.RightReverse),
		}
	}

	for _, row := range points {
		pointID := strings.TrimSpace(row.PointID)
		sectionID := normalize(row.SectionID)
		if pointID == "" {
			return nil, invalid("point row without point id")
		}
		if _, ok := g.links[sectionID]; !ok {
			return nil, invalid(fmt.Sprintf("point %s bound to unknown section %q", pointID, sectionID))
		}
		if existing, dup := g.pointBySection[sectionID]; dup {
			return nil, invalid(fmt.Sprintf("section %s guarded by both %s and %s", sectionID, existing, pointID))
		}
		if _, dup := g.sectionByPoint[pointID]; dup {
			return nil, invalid(fmt.Sprintf("point %s bound twice", pointID))
		}
		g.pointBySection[sectionID] = pointID
		g.sectionByPoint[pointID] = sectionID
	}

	if err := g.applyZones(zones); err != nil {
		return nil, err
	}

	return g, nil
}

func invalid(msg string) error {
	return errors.WrapFatal(fmt.Errorf("%w: %s", errors.ErrInvalidTopology, msg), "Graph", "New", "build topology")
}

func normalize(id string) string {
	id = strings.TrimSpace(id)
	if strings.EqualFold(id, "none") {
		return None
	}
	return id
}

// Sections returns all section ids in layout order.
func (g *Graph) Sections() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Len returns the number of sections.
func (g *Graph) Len() int {
	return len(g.order)
}

// Has reports whether id is a known section.
func (g *Graph) Has(id string) bool {
	_, ok := g.links[id]
	return ok
}

// Links returns the neighbour references of a section.
func (g *Graph) Links(id string) (Links, bool) {
	l, ok := g.links[id]
	return l, ok
}

// PointFor returns the point guarding a section.
func (g *Graph) PointFor(sectionID string) (string, bool) {
	p, ok := g.pointBySection[sectionID]
	return p, ok
}

// SectionForPoint returns the section a point guards.
func (g *Graph) SectionForPoint(pointID string) (string, bool) {
	s, ok := g.sectionByPoint[pointID]
	return s, ok
}

// Guarded returns the sections that have a point, in layout order.
func (g *Graph) Guarded() []string {
	out := make([]string, 0, len(g.pointBySection))
	for _, id := range g.order {
		if _, ok := g.pointBySection[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Points returns the configured point ids in layout order of their sections.
func (g *Graph) Points() []string {
	out := make([]string, 0, len(g.pointBySection))
	for _, id := range g.order {
		if p, ok := g.pointBySection[id]; ok {
			out = append(out, p)
		}
	}
	return out
}
