package yard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/metric"
	"github.com/paragnema1/scc/pkg/retry"
	"github.com/paragnema1/scc/storage"
	"github.com/paragnema1/scc/topology"
)

const baseTS = 1700000000 // 14 Nov 2023 22:13:20 UTC

type published struct {
	subject string
	data    []byte
}

// fakeTransport captures subscriptions and publishes. deliver runs the
// registered handler synchronously.
type fakeTransport struct {
	mu        sync.Mutex
	handlers  map[string]func(context.Context, []byte)
	published []published
	healthy   bool
	failSub   string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]func(context.Context, []byte)), healthy: true}
}

func (f *fakeTransport) Publish(_ context.Context, subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{subject, data})
	return nil
}

func (f *fakeTransport) Subscribe(_ context.Context, subject string, handler func(context.Context, []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if subject == f.failSub {
		return fmt.Errorf("subscribe %s: %w", subject, errors.ErrConnectionLost)
	}
	f.handlers[subject] = handler
	return nil
}

func (f *fakeTransport) IsHealthy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy
}

func (f *fakeTransport) deliver(t *testing.T, subject string, payload any) {
	t.Helper()
	data, ok := payload.([]byte)
	if !ok {
		var err error
		data, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	f.mu.Lock()
	h, found := f.handlers[subject]
	f.mu.Unlock()
	require.True(t, found, "no handler for %s", subject)
	h(context.Background(), data)
}

func (f *fakeTransport) on(subject string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, p := range f.published {
		if p.subject != subject {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(p.data, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// yardGraph has an entry section S1 with middle section S3 behind it, and a
// guarded section S9 watched on its left side while traffic moves out.
func yardGraph(t *testing.T) *topology.Graph {
	t.Helper()
	g, err := topology.New(
		[]topology.LinkRow{
			{SectionID: "S1", LeftNormal: "S3"},
			{SectionID: "S3", RightNormal: "S1"},
			{SectionID: "S8", RightNormal: "S9"},
			{SectionID: "S9", LeftNormal: "S8", LeftReverse: "S10", RightNormal: "S11"},
			{SectionID: "S10", RightReverse: "S9"},
			{SectionID: "S11", LeftNormal: "S9"},
		},
		[]topology.PointRow{{PointID: "P9", SectionID: "S9"}},
		topology.Zones{
			Entry:        []string{"S1"},
			Middle:       []string{"S3"},
			WatchLeftOut: []string{"S9"},
		},
	)
	require.NoError(t, err)
	return g
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Location = time.UTC
	cfg.DetectionPoints = map[string][]string{"S9": {"DP9A", "DP9B"}}
	return cfg
}

type harness struct {
	p         *Processor
	transport *fakeTransport
	store     *storage.MemoryStore
	cfg       Config
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	cfg := testConfig()
	transport := newFakeTransport()
	store := storage.NewMemoryStore()
	clock := func() time.Time { return time.Unix(baseTS+100, 0) }

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), WithClock(clock)}, opts...)
	p, err := NewProcessor(cfg, transport, store, yardGraph(t), opts...)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Stop(time.Second) })

	return &harness{p: p, transport: transport, store: store, cfg: cfg}
}

// drain stops the processor so every queued row is written.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, h.p.Stop(5*time.Second))
}

func (h *harness) rows(t *testing.T, kind storage.Kind) []storage.Record {
	t.Helper()
	rows, err := h.store.Read(context.Background(), kind)
	require.NoError(t, err)
	return rows
}

type section struct {
	ID            string  `json:"section_id"`
	Status        string  `json:"section_status"`
	Engine        int     `json:"engine_axle_count"`
	Axles         int     `json:"torpedo_axle_count"`
	Dir           string  `json:"direction"`
	Speed         float64 `json:"speed"`
	TorpedoStatus string  `json:"torpedo_status"`
	FirstAxle     string  `json:"first_axle"`
	ErrorCode     int     `json:"error_code"`
}

func sectionInfo(ts int64, sections ...section) map[string]any {
	return map[string]any{"ts": ts, "sections": sections}
}

func occ(id, dir string, axles int) section {
	return section{ID: id, Status: "occupied", Axles: axles, Dir: dir}
}

func clr(id string) section {
	return section{ID: id, Status: "cleared", Dir: "none"}
}

func TestNewProcessor_RequiresDependencies(t *testing.T) {
	g := yardGraph(t)
	store := storage.NewMemoryStore()
	transport := newFakeTransport()

	_, err := NewProcessor(DefaultConfig(), nil, store, g)
	assert.True(t, errors.Is(err, errors.ErrMissingConfig))
	assert.True(t, errors.IsFatal(err))

	_, err = NewProcessor(DefaultConfig(), transport, nil, g)
	assert.True(t, errors.Is(err, errors.ErrMissingConfig))

	_, err = NewProcessor(DefaultConfig(), transport, store, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidTopology))
}

func TestProcessor_StartSubscribesAllSubjects(t *testing.T) {
	h := newHarness(t)
	s := h.cfg.Subjects
	for _, subject := range []string{
		s.SectionInfo, s.PointInfo, s.TrailThrough, s.TrailClear, s.SectionReset, s.DPReset, s.TorpedoInfo,
	} {
		assert.Contains(t, h.transport.handlers, subject)
	}

	err := h.p.Start(context.Background())
	assert.True(t, errors.Is(err, errors.ErrAlreadyStarted))
}

func TestProcessor_StartSubscribeFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.failSub = DefaultConfig().Subjects.DPReset
	p, err := NewProcessor(testConfig(), transport, storage.NewMemoryStore(), yardGraph(t),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	defer p.Stop(time.Second)

	err = p.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.False(t, p.Health().Healthy)
}

func TestProcessor_SectionInfoArchivesAndRepublishes(t *testing.T) {
	h := newHarness(t)
	s := h.cfg.Subjects

	h.transport.deliver(t, s.SectionInfo, sectionInfo(baseTS, clr("S1"), clr("S9")))
	h.transport.deliver(t, s.SectionInfo, sectionInfo(baseTS+1, occ("S1", "in", 12), clr("S9")))

	cur, prev := h.p.Snapshot()
	assert.Equal(t, time.Unix(baseTS+1, 0), cur.TS())
	assert.Equal(t, time.Unix(baseTS, 0), prev.TS())

	frames := h.transport.on(s.OCCSectionInfo)
	require.Len(t, frames, 2)
	assert.EqualValues(t, baseTS+1, frames[1]["ts"])

	h.drain(t)

	rows := h.rows(t, storage.KindSection)
	require.Len(t, rows, 4)
	entered := rows[2]
	assert.Equal(t, "S1", entered["section_id"])
	assert.Equal(t, "occupied", entered["section_status"])
	assert.Equal(t, int64(12), entered["torpedo_axle_count"])
	assert.Equal(t, "0", entered["error_code"])
	assert.Equal(t, "T14112023221321", entered["torpedo_id"])
	assert.Equal(t, "E14112023221321", entered["engine_id"])
	assert.NotContains(t, rows[0], "torpedo_id")

	playback := h.rows(t, storage.KindSectionPlayback)
	require.Len(t, playback, 2)
	assert.Equal(t, float64(baseTS+1), playback[1]["ts"])
	assert.Len(t, playback[1]["sections"], 2)
}

func TestProcessor_MovementRecords(t *testing.T) {
	h := newHarness(t)
	s := h.cfg.Subjects

	h.transport.deliver(t, s.SectionInfo, sectionInfo(baseTS, clr("S1")))
	h.transport.deliver(t, s.SectionInfo, sectionInfo(baseTS+1, occ("S1", "in", 12)))
	require.Len(t, h.p.Movements(), 1)

	h.transport.deliver(t, s.SectionInfo, sectionInfo(baseTS+2, occ("S1", "out", 6)))
	h.transport.deliver(t, s.SectionInfo, sectionInfo(baseTS+3, occ("S1", "out", 0)))
	h.transport.deliver(t, s.SectionInfo, sectionInfo(baseTS+4, occ("S1", "out", 8)))
	h.transport.deliver(t, s.SectionInfo, sectionInfo(baseTS+5, occ("S1", "out", 0)))

	movements := h.p.Movements()
	require.Len(t, movements, 1)
	assert.True(t, movements[0].Closed)
	h.drain(t)

	perf := h.rows(t, storage.KindYardPerformance)
	require.Len(t, perf, 1, "entry and exit update one row")
	assert.Equal(t, "T14112023221321", perf[0]["torpedo_id"])
	assert.Equal(t, "E14112023221321", perf[0]["engine_id"])
	assert.Equal(t, float64(baseTS+1), perf[0]["entry_ts"])
	assert.Equal(t, float64(baseTS+3), perf[0]["exit_ts"])
	assert.NotContains(t, perf[0], "unload_entry_ts")
}

func TestProcessor_MalformedFrameKeepsSnapshots(t *testing.T) {
	h := newHarness(t)
	s := h.cfg.Subjects

	h.transport.deliver(t, s.SectionInfo, sectionInfo(baseTS, clr("S1")))
	h.transport.deliver(t, s.SectionInfo, []byte(`{"ts": 1, "sections": [{"section_id": "S1"}]}`))
	h.transport.deliver(t, s.SectionInfo, []byte(`not json`))

	cur, prev := h.p.Snapshot()
	assert.Equal(t, time.Unix(baseTS, 0), cur.TS())
	assert.True(t, prev.IsZero())
	assert.Len(t, h.transport.on(s.OCCSectionInfo), 1)

	status := h.p.Health()
	require.NotNil(t, status.Metrics)
	assert.Equal(t, int64(2), status.Metrics.ErrorCount)
	assert.Equal(t, int64(3), status.Metrics.MessagesProcessed)
}

func trailThroughSetup(t *testing.T, h *harness) {
	t.Helper()
	s := h.cfg.Subjects
	h.transport.deliver(t, s.PointInfo, map[string]any{
		"ts": baseTS, "point_id": "P9", "point_status": "reverse", "point_mode": "auto", "error_code": 0,
	})
	h.transport.deliver(t, s.SectionInfo, sectionInfo(baseTS, occ("S8", "out", 4), occ("S9", "out", 2)))
	h.transport.deliver(t, s.SectionInfo, sectionInfo(baseTS+1, occ("S8", "out", 8), occ("S9", "out", 6)))
}

func TestProcessor_TrailThroughAlert(t *testing.T) {
	h := newHarness(t)
	trailThroughSetup(t, h)

	alerts := h.transport.on(h.cfg.Subjects.TrailThrough)
	require.Len(t, alerts, 1)
	assert.Equal(t, "s9", alerts[0]["section_id"])
	assert.Equal(t, float64(baseTS+100), alerts[0]["ts"])
}

func TestProcessor_PointInfoUnknownPoint(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	h := newHarness(t, WithMetrics(reg))

	h.transport.deliver(t, h.cfg.Subjects.PointInfo, map[string]any{
		"ts": baseTS, "point_id": "P99", "point_status": "reverse", "point_mode": "auto", "error_code": 0,
	})
	h.transport.deliver(t, h.cfg.Subjects.SectionInfo, sectionInfo(baseTS, occ("S8", "out", 4), occ("S9", "out", 2)))
	h.transport.deliver(t, h.cfg.Subjects.SectionInfo, sectionInfo(baseTS+1, occ("S8", "out", 8), occ("S9", "out", 6)))

	assert.Empty(t, h.transport.on(h.cfg.Subjects.TrailThrough))
	assert.Equal(t, int64(1), h.p.Health().Metrics.ErrorCount)
}

func TestProcessor_TrailThroughLatch(t *testing.T) {
	h := newHarness(t)
	s := h.cfg.Subjects

	alert := map[string]any{"ts": baseTS + 5, "section_id": "s9"}
	h.transport.deliver(t, s.TrailThrough, alert)
	h.transport.deliver(t, s.TrailThrough, alert)
	h.transport.deliver(t, s.TrailThrough, map[string]any{"ts": baseTS + 6, "section_id": "S9"})

	h.transport.deliver(t, s.TrailClear, map[string]any{"section_id": "S9"})
	h.transport.deliver(t, s.TrailClear, map[string]any{"section_id": "s9"})

	h.transport.deliver(t, s.TrailThrough, map[string]any{"ts": baseTS + 7, "section_id": "s9"})
	h.drain(t)

	tt := h.rows(t, storage.KindTrailThrough)
	require.Len(t, tt, 2)
	assert.Equal(t, float64(baseTS+5), tt[0]["tt_ts"])
	assert.Equal(t, "s9", tt[0]["section_id"])
	assert.Equal(t, false, tt[0]["confirm_status"])
	assert.Equal(t, float64(baseTS+7), tt[1]["tt_ts"])

	playback := h.rows(t, storage.KindTrailThroughPlayback)
	require.Len(t, playback, 3)
	cleared, ok := playback[1]["section_id"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, cleared["confirm_status"])
	assert.Equal(t, "s9", cleared["section_id"])
	assert.Equal(t, float64(baseTS+100), playback[1]["ts"])
}

func TestProcessor_ClearWithoutAlert(t *testing.T) {
	h := newHarness(t)
	h.transport.deliver(t, h.cfg.Subjects.TrailClear, map[string]any{"section_id": "S3"})
	h.drain(t)
	assert.Empty(t, h.rows(t, storage.KindTrailThroughPlayback))
}

func seedUsers(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, storage.KindUserDetails, storage.Record{
		"username": "admin", "roles": []string{"Operator", "Command Center Admin"},
	}))
	require.NoError(t, store.Insert(ctx, storage.KindUserDetails, storage.Record{
		"username": "viewer", "roles": []string{"Operator"},
	}))
}

func TestProcessor_SectionReset(t *testing.T) {
	h := newHarness(t)
	seedUsers(t, h.store)
	s := h.cfg.Subjects

	h.transport.deliver(t, s.SectionReset, map[string]any{
		"username": "admin", "section_id": "S9", "section_name": "Point 9",
	})

	for _, subject := range []string{s.OCCSectionReset, s.SCCSectionReset} {
		cmds := h.transport.on(subject)
		require.Len(t, cmds, 1, subject)
		assert.Equal(t, "S9", cmds[0]["section_id"])
		assert.Equal(t, "admin", cmds[0]["username"])
		assert.Equal(t, "Point 9", cmds[0]["section_name"])
		assert.Equal(t, []any{"DP9A", "DP9B"}, cmds[0]["dp_id"])
		assert.Equal(t, float64(baseTS+100), cmds[0]["ts"])
	}

	h.drain(t)
	events := h.rows(t, storage.KindEvent)
	require.Len(t, events, 1)
	assert.Equal(t, EventSectionReset, events[0]["event_id"])
	assert.Equal(t, "section S9 reset performed.", events[0]["event_desc"])
	assert.NotEmpty(t, events[0]["correlation_id"])
}

func TestProcessor_SectionResetWithoutDetectionPoints(t *testing.T) {
	h := newHarness(t)
	seedUsers(t, h.store)

	h.transport.deliver(t, h.cfg.Subjects.SectionReset, map[string]any{"username": "admin", "section_id": "S3"})
	cmds := h.transport.on(h.cfg.Subjects.SCCSectionReset)
	require.Len(t, cmds, 1)
	assert.Equal(t, []any{}, cmds[0]["dp_id"])
}

func TestProcessor_DPReset(t *testing.T) {
	h := newHarness(t)
	seedUsers(t, h.store)

	h.transport.deliver(t, h.cfg.Subjects.DPReset, map[string]any{"username": "admin", "dp_id": "DP9A"})

	cmds := h.transport.on(h.cfg.Subjects.SCCDPReset)
	require.Len(t, cmds, 1)
	assert.Equal(t, "DP9A", cmds[0]["dp_id"])
	assert.Equal(t, float64(-1), cmds[0]["in_count"])
	assert.Equal(t, float64(-1), cmds[0]["out_count"])

	h.drain(t)
	events := h.rows(t, storage.KindEvent)
	require.Len(t, events, 1)
	assert.Equal(t, EventDPReset, events[0]["event_id"])
	assert.Equal(t, "dp DP9A reset performed.", events[0]["event_desc"])
}

func TestProcessor_CommandsRequireAdminRole(t *testing.T) {
	h := newHarness(t)
	seedUsers(t, h.store)
	s := h.cfg.Subjects

	h.transport.deliver(t, s.SectionReset, map[string]any{"username": "viewer", "section_id": "S9"})
	h.transport.deliver(t, s.DPReset, map[string]any{"username": "viewer", "dp_id": "DP9A"})
	h.transport.deliver(t, s.DPReset, map[string]any{"username": "nobody", "dp_id": "DP9A"})

	assert.Empty(t, h.transport.on(s.OCCSectionReset))
	assert.Empty(t, h.transport.on(s.SCCSectionReset))
	assert.Empty(t, h.transport.on(s.SCCDPReset))
	assert.Equal(t, int64(3), h.p.Health().Metrics.ErrorCount)

	h.drain(t)
	assert.Empty(t, h.rows(t, storage.KindEvent))
}

func TestAuthorize_Errors(t *testing.T) {
	h := newHarness(t)
	seedUsers(t, h.store)

	err := h.p.authorize(context.Background(), "dp_reset", "viewer")
	assert.True(t, errors.Is(err, errors.ErrNotAuthorized))
	assert.True(t, errors.IsInvalid(err))
	assert.NoError(t, h.p.authorize(context.Background(), "dp_reset", "admin"))
}

func TestAuthorize_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.CommandRate = 0.001
	cfg.CommandBurst = 2
	store := storage.NewMemoryStore()
	seedUsers(t, store)
	p, err := NewProcessor(cfg, newFakeTransport(), store, yardGraph(t),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.authorize(ctx, "dp_reset", "admin"))
	require.NoError(t, p.authorize(ctx, "dp_reset", "admin"))

	err = p.authorize(ctx, "dp_reset", "admin")
	assert.True(t, errors.Is(err, errors.ErrRateLimited))
	assert.True(t, errors.IsTransient(err))
}

func TestAuthorize_CachesRoles(t *testing.T) {
	h := newHarness(t)
	seedUsers(t, h.store)
	ctx := context.Background()

	require.NoError(t, h.p.authorize(ctx, "dp_reset", "admin"))
	require.NoError(t, h.store.Close())

	assert.NoError(t, h.p.authorize(ctx, "dp_reset", "admin"), "roles served from cache")
	err := h.p.authorize(ctx, "dp_reset", "viewer")
	assert.True(t, errors.Is(err, errors.ErrNotAuthorized))

	err = h.p.authorize(ctx, "dp_reset", "nobody")
	assert.True(t, errors.Is(err, errors.ErrStorageUnavailable), "unknown users are read from the store")
	assert.True(t, errors.IsTransient(err))
}

func TestProcessor_TorpedoInfo(t *testing.T) {
	h := newHarness(t)
	s := h.cfg.Subjects

	h.transport.deliver(t, s.TorpedoInfo, map[string]any{"section_id": "S3", "torpedo_id": "TP-42"})
	h.transport.deliver(t, s.TorpedoInfo, map[string]any{"section_id": "S77", "torpedo_id": "TP-43"})

	ids, ok := h.p.tracer.Carried("S3")
	require.True(t, ok)
	assert.Equal(t, "TP-42", ids.TorpedoID)
	assert.Equal(t, int64(1), h.p.Health().Metrics.ErrorCount)

	h.transport.deliver(t, s.SectionInfo, sectionInfo(baseTS, occ("S3", "in", 16)))
	h.drain(t)
	rows := h.rows(t, storage.KindSection)
	require.Len(t, rows, 1)
	assert.Equal(t, "TP-42", rows[0]["torpedo_id"])
}

func TestProcessor_StopDropsLaterMessages(t *testing.T) {
	h := newHarness(t)
	h.drain(t)

	h.transport.deliver(t, h.cfg.Subjects.SectionInfo, sectionInfo(baseTS, clr("S1")))
	cur, _ := h.p.Snapshot()
	assert.True(t, cur.IsZero())
	assert.NoError(t, h.p.Stop(time.Second), "second stop is a no-op")
}

func TestProcessor_Health(t *testing.T) {
	h := newHarness(t)

	status := h.p.Health()
	assert.True(t, status.IsHealthy(), status.Message)
	assert.Equal(t, "yard-processor", status.Component)
	assert.Len(t, status.SubStatuses, 3)

	h.transport.mu.Lock()
	h.transport.healthy = false
	h.transport.mu.Unlock()
	status = h.p.Health()
	assert.True(t, status.IsDegraded())
	assert.Contains(t, status.Message, "transport")

	h.drain(t)
	assert.True(t, h.p.Health().IsUnhealthy())
}

func TestProcessor_Metrics(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	h := newHarness(t, WithMetrics(reg))
	trailThroughSetup(t, h)
	h.transport.deliver(t, h.cfg.Subjects.TrailThrough, map[string]any{"ts": baseTS, "section_id": "s9"})
	h.drain(t)

	families, err := reg.PrometheusRegistry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		values[mf.GetName()] = sumFamily(mf)
	}
	assert.Equal(t, float64(2), values["scc_yard_frames_total"])
	assert.Equal(t, float64(1), values["scc_yard_trail_through_alerts_total"])
	assert.Equal(t, float64(1), values["scc_yard_latched_trail_throughs"])
}

// sumFamily adds up every counter or gauge sample of a metric family.
func sumFamily(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			total += m.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			total += m.GetGauge().GetValue()
		}
	}
	return total
}

func TestLoadTopology(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	for _, r := range []storage.Record{
		{"section_id": "S1", "left_normal": "S3", "right_normal": "none"},
		{"section_id": "S3", "right_normal": "S1"},
	} {
		require.NoError(t, store.Insert(ctx, storage.KindLayoutConnections, r))
	}
	require.NoError(t, store.Insert(ctx, storage.KindPointConfig, storage.Record{"section_id": "S3", "point_id": "P3"}))

	g, err := LoadTopology(ctx, store, topology.Zones{Entry: []string{"S1"}}, retry.DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S3"}, g.Sections())
	section, ok := g.SectionForPoint("P3")
	assert.True(t, ok)
	assert.Equal(t, "S3", section)
	assert.Equal(t, topology.RoleEntry, g.Role("S1"))
}

func TestLoadTopology_EmptyLayoutIsFatal(t *testing.T) {
	retries := 0
	cfg := retry.DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	cfg.OnRetry = func(int, error, time.Duration) { retries++ }

	_, err := LoadTopology(context.Background(), storage.NewMemoryStore(), topology.Zones{}, cfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTopology))
	assert.True(t, errors.IsFatal(err))
	assert.True(t, retry.IsNonRetryable(err))
	assert.Zero(t, retries)
}

func TestLoadTopology_RetriesUnavailableStore(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Close())

	cfg := retry.DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	retries := 0
	cfg.OnRetry = func(int, error, time.Duration) { retries++ }

	_, err := LoadTopology(context.Background(), store, topology.Zones{}, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageUnavailable))
	assert.Equal(t, 2, retries)
}
