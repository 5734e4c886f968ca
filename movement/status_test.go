package movement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paragnema1/scc/telemetry"
)

func withStatus(f telemetry.Frame, id, status string) telemetry.Frame {
	s, _ := f.Section(id)
	s.TorpedoStatus = status
	return f.Replace(s)
}

func statusOf(f telemetry.Frame, id string) string {
	s, _ := f.Section(id)
	return s.TorpedoStatus
}

func TestStatusPropagator(t *testing.T) {
	g := yard(t)
	p := NewStatusPropagator([]string{"S1"})

	f0 := withStatus(at(0, in("S1", 8), in("S3", 0), none("S12", 0)), "S1", "loaded")
	f1 := withStatus(at(1, in("S1", 12), in("S3", 2), none("S12", 0)), "S1", "loaded")

	first := p.Propagate(f0, telemetry.Frame{}, g)
	assert.Equal(t, "loaded", statusOf(first, "S1"), "source readings pass through")
	assert.Equal(t, NoStatus, statusOf(first, "S3"), "nothing propagates on the first frame")

	got := p.Propagate(f1, f0, g)
	assert.Equal(t, "loaded", statusOf(got, "S1"))
	assert.Equal(t, "loaded", statusOf(got, "S3"), "inbound section inherits from its right neighbour")
	assert.Equal(t, NoStatus, statusOf(got, "S12"))

	// S1 static: S3 keeps what it inherited
	f2 := withStatus(at(2, in("S1", 12), in("S3", 8), none("S12", 0)), "S1", "empty")
	got = p.Propagate(f2, f1, g)
	assert.Equal(t, "loaded", statusOf(got, "S3"))

	f3 := at(3, in("S1", 12), none("S3", 0), none("S12", 0))
	got = p.Propagate(f3, f2, g)
	assert.Equal(t, NoStatus, statusOf(got, "S3"), "cleared sections lose their status")
}

func TestStatusPropagator_OutboundNeedsAxles(t *testing.T) {
	g := yard(t)
	p := NewStatusPropagator([]string{"S12"})

	f0 := withStatus(at(0, out("S12", 16), out("S3", 0)), "S12", "empty")
	f1 := withStatus(at(1, out("S12", 12), out("S3", 4)), "S12", "empty")
	f2 := withStatus(at(2, out("S12", 8), out("S3", 8)), "S12", "empty")

	p.Propagate(f0, telemetry.Frame{}, g)
	got := p.Propagate(f1, f0, g)
	assert.Equal(t, NoStatus, statusOf(got, "S3"))

	got = p.Propagate(f2, f1, g)
	assert.Equal(t, "empty", statusOf(got, "S3"))
}
