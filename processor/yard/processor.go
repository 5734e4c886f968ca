package yard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/health"
	"github.com/paragnema1/scc/metric"
	"github.com/paragnema1/scc/movement"
	"github.com/paragnema1/scc/pkg/cache"
	"github.com/paragnema1/scc/pkg/timestamp"
	"github.com/paragnema1/scc/pkg/worker"
	"github.com/paragnema1/scc/storage"
	"github.com/paragnema1/scc/telemetry"
	"github.com/paragnema1/scc/topology"
	"github.com/paragnema1/scc/trailthrough"
)

// Transport is the messaging channel the processor subscribes and publishes
// through. natsclient.Client implements it.
type Transport interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
	IsHealthy() bool
}

// Processor is the yard orchestrator. It owns the snapshot store and the
// topology, runs trail-through detection and movement tracing on every
// section frame, publishes their results and archives everything through a
// single ordered worker.
type Processor struct {
	name      string
	cfg       Config
	transport Transport
	store     storage.Store
	graph     *topology.Graph
	logger    *slog.Logger
	now       func() time.Time

	decoder    *telemetry.Decoder
	snapshots  *telemetry.Store
	detector   *trailthrough.Detector
	tracer     *movement.Tracer
	propagator *movement.StatusPropagator

	archive *worker.Pool[archiveJob]
	metrics *yardMetrics
	roles   *cache.TTL[[]string]

	commandLimiter *rate.Limiter

	// processingMu serialises telemetry: decode, rotation, detection and
	// tracing of one message complete before the next starts.
	processingMu sync.Mutex

	latchMu sync.Mutex
	latched map[string]bool

	lifecycleMu sync.Mutex
	running     atomic.Bool
	startTime   time.Time
	cancel      context.CancelFunc

	messagesProcessed atomic.Int64
	errorCount        atomic.Int64
	lastActivity      atomic.Int64
}

// Option configures a Processor
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	now      func() time.Time
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics registers the processor and archive metrics in registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithClock replaces time.Now for alert and event timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewProcessor creates a processor for graph. The graph is never modified.
func NewProcessor(cfg Config, transport Transport, store storage.Store, graph *topology.Graph,
	opts ...Option) (*Processor, error) {
	if transport == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "YardProcessor", "NewProcessor", "transport required")
	}
	if store == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "YardProcessor", "NewProcessor", "store required")
	}
	if graph == nil {
		return nil, errors.WrapFatal(errors.ErrInvalidTopology, "YardProcessor", "NewProcessor", "topology required")
	}

	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	decoder, err := telemetry.NewDecoder()
	if err != nil {
		return nil, err
	}

	metrics, err := newYardMetrics(o.registry)
	if err != nil {
		return nil, errors.WrapFatal(err, "YardProcessor", "NewProcessor", "register metrics")
	}

	p := &Processor{
		name:      "yard-processor",
		cfg:       cfg,
		transport: transport,
		store:     store,
		graph:     graph,
		logger:    o.logger.With("component", "yard-processor"),
		now:       o.now,
		decoder:   decoder,
		snapshots: telemetry.NewStore(),
		detector:  trailthrough.NewDetector(o.logger),
		tracer:    movement.NewTracer(o.logger, cfg.Location),
		metrics:   metrics,
		latched:   make(map[string]bool),
	}
	if cfg.PropagateTorpedoStatus {
		p.propagator = movement.NewStatusPropagator(cfg.StatusSources)
	}

	if cfg.RoleCacheTTL > 0 {
		p.roles, err = cache.NewTTL(cfg.RoleCacheTTL, cache.WithMetrics[[]string](o.registry, "roles"))
		if err != nil {
			return nil, errors.WrapFatal(err, "YardProcessor", "NewProcessor", "create role cache")
		}
	}

	if cfg.CommandRate > 0 {
		burst := cfg.CommandBurst
		if burst < 1 {
			burst = 1
		}
		p.commandLimiter = rate.NewLimiter(rate.Limit(cfg.CommandRate), burst)
	}

	p.archive, err = worker.NewPool("archive", 1, cfg.ArchiveQueueSize, p.archiveOne,
		worker.WithMetrics[archiveJob](o.registry),
		worker.WithErrorHandler(p.archiveFailed))
	if err != nil {
		return nil, errors.WrapFatal(err, "YardProcessor", "NewProcessor", "create archive pool")
	}
	return p, nil
}

// Start subscribes every inbound subject and starts archiving. The archive
// worker keeps running after ctx is cancelled until Stop drains it.
func (p *Processor) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running.Load() || p.cancel != nil {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "YardProcessor", "Start", "check running state")
	}

	archiveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := p.archive.Start(archiveCtx); err != nil {
		cancel()
		return errors.WrapFatal(err, "YardProcessor", "Start", "start archive pool")
	}
	p.cancel = cancel

	// Running before subscribing: the transport may deliver as soon as a
	// subscription is registered.
	p.running.Store(true)
	p.startTime = time.Now()

	s := p.cfg.Subjects
	routes := []struct {
		subject string
		handle  func(context.Context, []byte) error
	}{
		{s.SectionInfo, p.handleSectionInfo},
		{s.PointInfo, p.handlePointInfo},
		{s.TrailThrough, p.handleTrailThrough},
		{s.TrailClear, p.handleTrailClear},
		{s.SectionReset, p.handleSectionReset},
		{s.DPReset, p.handleDPReset},
		{s.TorpedoInfo, p.handleTorpedoInfo},
	}
	for _, r := range routes {
		if err := p.transport.Subscribe(ctx, r.subject, p.wrap(r.subject, r.handle)); err != nil {
			p.running.Store(false)
			p.logger.Error("Failed to subscribe", "subject", r.subject, "error", err)
			return errors.WrapTransient(err, "YardProcessor", "Start", fmt.Sprintf("subscribe to %s", r.subject))
		}
		p.logger.Debug("Subscribed", "subject", r.subject)
	}

	p.logger.Info("Yard processor started",
		"sections", p.graph.Len(),
		"points", len(p.graph.Points()),
		"propagate_torpedo_status", p.propagator != nil)
	return nil
}

// Stop stops handling messages and waits up to timeout for queued archive
// records to be written.
func (p *Processor) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.cancel == nil {
		return nil
	}
	p.running.Store(false)

	err := p.archive.Stop(timeout)
	p.cancel()
	p.cancel = nil

	stats := p.archive.Stats()
	p.logger.Info("Yard processor stopped",
		"messages", p.messagesProcessed.Load(),
		"errors", p.errorCount.Load(),
		"archived", stats.Processed,
		"archive_failed", stats.Failed)

	if err != nil {
		return errors.WrapTransient(err, "YardProcessor", "Stop", "drain archive")
	}
	return nil
}

// Health reports the transport, the archive queue and the processor itself.
func (p *Processor) Health() health.Status {
	subs := make([]health.Status, 0, 3)

	if p.running.Load() {
		subs = append(subs, health.NewHealthy("processor", "running"))
	} else {
		subs = append(subs, health.NewUnhealthy("processor", "stopped"))
	}

	if p.transport.IsHealthy() {
		subs = append(subs, health.NewHealthy("transport", "connected"))
	} else {
		subs = append(subs, health.NewDegraded("transport", "not connected; outbound messages are queued"))
	}

	stats := p.archive.Stats()
	switch {
	case stats.QueueSize > 0 && stats.QueueDepth*10 >= stats.QueueSize*9:
		subs = append(subs, health.NewDegraded("archive",
			fmt.Sprintf("queue %d/%d", stats.QueueDepth, stats.QueueSize)))
	default:
		subs = append(subs, health.NewHealthy("archive",
			fmt.Sprintf("queue %d/%d", stats.QueueDepth, stats.QueueSize)))
	}

	var uptime time.Duration
	if p.running.Load() {
		uptime = time.Since(p.startTime)
	}
	var last time.Time
	if ns := p.lastActivity.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}

	return health.Aggregate(p.name, subs).WithMetrics(&health.Metrics{
		Uptime:            uptime,
		ErrorCount:        p.errorCount.Load(),
		MessagesProcessed: p.messagesProcessed.Load(),
		LastActivity:      last,
	})
}

// Snapshot returns the current and previous section frames.
func (p *Processor) Snapshot() (current, previous telemetry.Frame) {
	return p.snapshots.Current(), p.snapshots.Previous()
}

// Movements returns the movement records seen since start.
func (p *Processor) Movements() []movement.Record {
	return p.tracer.Records()
}

// wrap adapts a handler to the transport callback: it drops messages while
// stopped and logs failures by class.
func (p *Processor) wrap(subject string, handle func(context.Context, []byte) error) func(context.Context, []byte) {
	return func(ctx context.Context, data []byte) {
		if !p.running.Load() {
			return
		}
		p.messagesProcessed.Add(1)
		p.lastActivity.Store(time.Now().UnixNano())
		p.metrics.recordReceived(subject)

		err := handle(ctx, data)
		if err == nil {
			return
		}
		p.errorCount.Add(1)
		p.metrics.recordRejected(subject, err)

		switch {
		case errors.IsInvalid(err):
			p.logger.Warn("Message rejected", "subject", subject, "error", err)
		default:
			p.logger.Error("Message handling failed", "subject", subject, "error", err)
		}
	}
}

// handleSectionInfo rotates the snapshot store and runs detection and
// tracing. A malformed frame leaves the snapshots untouched.
func (p *Processor) handleSectionInfo(ctx context.Context, data []byte) error {
	start := time.Now()
	frame, err := p.decoder.DecodeFrame(data)
	if err != nil {
		return err
	}

	p.processingMu.Lock()
	current, previous := p.snapshots.Rotate(frame)
	if p.propagator != nil {
		current = p.propagator.Propagate(current, previous, p.graph)
		p.snapshots.Amend(current)
	}
	violations := p.detector.Detect(current, previous, p.snapshots.Points(), p.graph)
	events := p.tracer.Trace(current, previous, p.graph)
	rows := p.sectionRows(current)
	p.processingMu.Unlock()

	p.metrics.recordFrame(start)

	p.enqueue(storage.KindSection, rows...)
	p.enqueue(storage.KindSectionPlayback, playbackRecord(current))
	for _, ev := range events {
		p.metrics.recordMovement(ev.Kind.String())
		p.logger.Info("Movement event",
			"event", ev.Kind.String(),
			"section", ev.SectionID,
			"torpedo_id", ev.Record.TorpedoID)
		p.enqueue(storage.KindYardPerformance, performanceRecord(ev.Record))
	}

	for _, sectionID := range violations {
		alert := telemetry.Alert{
			TS:        timestamp.ToEpoch(p.now()),
			SectionID: strings.ToLower(sectionID),
		}
		p.logger.Warn("Trail-through detected", "section", sectionID)
		p.metrics.recordAlert()
		p.publish(ctx, p.cfg.Subjects.TrailThrough, alert)
	}

	p.publish(ctx, p.cfg.Subjects.OCCSectionInfo, current)
	return nil
}

// handlePointInfo records the latest point reading.
func (p *Processor) handlePointInfo(_ context.Context, data []byte) error {
	point, err := p.decoder.DecodePoint(data)
	if err != nil {
		return err
	}
	sectionID, ok := p.graph.SectionForPoint(point.ID)
	if !ok {
		return errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrUnknownPoint, point.ID),
			"YardProcessor", "handlePointInfo", "resolve point")
	}
	point.SectionID = sectionID

	p.processingMu.Lock()
	p.snapshots.UpdatePoint(point)
	p.processingMu.Unlock()
	return nil
}

// publish marshals v and hands it to the transport. Transport faults are
// absorbed by the transport's queue, so errors here are only logged.
func (p *Processor) publish(ctx context.Context, subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("Failed to encode message", "subject", subject, "error", err)
		return
	}
	if err := p.transport.Publish(ctx, subject, data); err != nil {
		p.logger.Error("Failed to publish", "subject", subject, "error", err)
		return
	}
	p.metrics.recordPublished(subject)
}
