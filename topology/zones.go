package topology

import "fmt"

// Watch is the static orientation a guarded section is checked in.
type Watch int

const (
	// WatchNone means the section is not checked for trail-through.
	WatchNone Watch = iota
	// WatchLeftOut checks the left neighbours while traffic moves out.
	WatchLeftOut
	// WatchRightIn checks the right neighbours while traffic moves in.
	WatchRightIn
)

// String returns the string representation of Watch
func (w Watch) String() string {
	switch w {
	case WatchLeftOut:
		return "left_out"
	case WatchRightIn:
		return "right_in"
	default:
		return "none"
	}
}

// Sides returns the normal-side and reverse-side neighbours watched for this
// orientation.
func (w Watch) Sides(l Links) (normal, reverse string) {
	switch w {
	case WatchLeftOut:
		return l.LeftNormal, l.LeftReverse
	case WatchRightIn:
		return l.RightNormal, l.RightReverse
	default:
		return None, None
	}
}

// Role is the part a section plays in movement tracing.
type Role int

const (
	RoleNone Role = iota
	// RoleEntry marks a yard boundary section where movements open and close.
	RoleEntry
	// RoleMiddle marks a section that only carries ids between neighbours.
	RoleMiddle
	// RoleUnloading marks an unloading-zone section.
	RoleUnloading
)

// String returns the string representation of Role
func (r Role) String() string {
	switch r {
	case RoleEntry:
		return "entry"
	case RoleMiddle:
		return "middle"
	case RoleUnloading:
		return "unloading"
	default:
		return "none"
	}
}

// Zones is the static per-section configuration layered over the persisted layout.
type Zones struct {
	Entry        []string `json:"entry_sections" yaml:"entry_sections"`
	Middle       []string `json:"middle_sections" yaml:"middle_sections"`
	Unloading    []string `json:"unloading_sections" yaml:"unloading_sections"`
	WatchLeftOut []string `json:"watch_left_out" yaml:"watch_left_out"`
	WatchRightIn []string `json:"watch_right_in" yaml:"watch_right_in"`
}

// DefaultZones returns the zone layout of the reference yard.
func DefaultZones() Zones {
	return Zones{
		Entry:        []string{"S1", "S2"},
		Middle:       []string{"S3", "S4", "S5", "S6", "S7", "S8", "S9", "S10", "S11"},
		Unloading:    []string{"S12", "S13", "S14"},
		WatchLeftOut: []string{"S20", "S18", "S12", "S10", "S9"},
		WatchRightIn: []string{"S19", "S15", "S13", "S11"},
	}
}

func (g *Graph) applyZones(z Zones) error {
	assignRole := func(ids []string, role Role) error {
		for _, raw := range ids {
			id := normalize(raw)
			if !g.Has(id) {
				continue
			}
			if prev, ok := g.roles[id]; ok && prev != role {
				return invalid(fmt.Sprintf("section %s is both %s and %s", id, prev, role))
			}
			g.roles[id] = role
		}
		return nil
	}
	if err := assignRole(z.Entry, RoleEntry); err != nil {
		return err
	}
	if err := assignRole(z.Middle, RoleMiddle); err != nil {
		return err
	}
	if err := assignRole(z.Unloading, RoleUnloading); err != nil {
		return err
	}

	assignWatch := func(ids []string, w Watch) error {
		for _, raw := range ids {
			id := normalize(raw)
			if !g.Has(id) {
				continue
			}
			if prev, ok := g.watch[id]; ok && prev != w {
				return invalid(fmt.Sprintf("section %s watched as both %s and %s", id, prev, w))
			}
			g.watch[id] = w
		}
		return nil
	}
	if err := assignWatch(z.WatchLeftOut, WatchLeftOut); err != nil {
		return err
	}
	return assignWatch(z.WatchRightIn, WatchRightIn)
}

// Watch returns the configured watch orientation of a section.
func (g *Graph) Watch(sectionID string) Watch {
	return g.watch[sectionID]
}

// Role returns the movement-tracing role of a section.
func (g *Graph) Role(sectionID string) Role {
	return g.roles[sectionID]
}
