package natsclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paragnema1/scc/errors"
)

// ConnectionStatus represents the state of the broker connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

const (
	defaultReconnectInterval = 10 * time.Second
	defaultTimeout           = 5 * time.Second
	messageTimeout           = 30 * time.Second
)

// Stats is a point-in-time view of the channel
type Stats struct {
	Status            ConnectionStatus
	QueueDepth        int
	Subscriptions     int
	ReconnectAttempts int
	OutageStarted     time.Time
}

type outbound struct {
	subject string
	data    []byte
}

type registration struct {
	ctx     context.Context
	subject string
	handler func(context.Context, []byte)
	sub     Subscription
}

// Client is a publish/subscribe channel that survives broker outages.
// Publish never blocks on the network and never reports transport faults;
// messages published while the broker is away are delivered in order once
// the connection comes back.
type Client struct {
	url    string
	logger *slog.Logger

	dialer            Dialer
	reconnectInterval time.Duration
	timeout           time.Duration
	clientName        string
	username          string
	password          string
	token             string
	metrics           *clientMetrics

	// mu guards everything below
	mu          sync.Mutex
	status      ConnectionStatus
	conn        Conn
	generation  uint64
	queue       []outbound
	regs        []*registration
	manual      bool
	supervising bool
	outageStart time.Time
	attempts    int
	stop        chan struct{}
	wg          sync.WaitGroup
}

// NewClient creates a new channel for the broker at url
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:               url,
		logger:            slog.Default(),
		reconnectInterval: defaultReconnectInterval,
		timeout:           defaultTimeout,
		clientName:        "scc-" + uuid.NewString(),
		stop:              make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	if c.dialer == nil {
		c.dialer = &natsDialer{
			name:     c.clientName,
			timeout:  c.timeout,
			username: c.username,
			password: c.password,
			token:    c.token,
			logger:   c.logger,
		}
	}

	c.logger = c.logger.With("component", "natsclient", "url", url)
	c.metrics.setStatus(StatusDisconnected)

	return c, nil
}

// URL returns the broker URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsHealthy returns true if the connection is up
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Stats returns a snapshot of the channel state
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Status:            c.status,
		QueueDepth:        len(c.queue),
		Subscriptions:     len(c.regs),
		ReconnectAttempts: c.attempts,
		OutageStarted:     c.outageStart,
	}
}

func (c *Client) setStatusLocked(s ConnectionStatus) {
	c.status = s
	c.metrics.setStatus(s)
}

// Connect dials the broker and waits for the outcome. On success the outbound
// queue is flushed and every registered subscription is replayed. On failure
// the reconnect supervisor takes over; transport faults are never returned.
// The only error is ctx being done before Connect started.
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "Client", "Connect", "check context")
	}

	c.mu.Lock()
	if c.status == StatusConnected || c.status == StatusConnecting || c.supervising {
		c.mu.Unlock()
		return nil
	}
	c.manual = false
	c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	c.logger.Info("Connecting to broker")

	if c.attempt(ctx) {
		return nil
	}

	c.mu.Lock()
	if !c.manual && c.status != StatusConnected {
		c.setStatusLocked(StatusReconnecting)
		c.startSupervisorLocked()
	}
	c.mu.Unlock()
	return nil
}

type dialResult struct {
	conn Conn
	err  error
}

// attempt performs one dial and installs the connection on success.
func (c *Client) attempt(ctx context.Context) bool {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	events := Events{
		OnDisconnect: func(err error) { c.connectionLost(gen, err) },
		OnClosed:     func() { c.connectionLost(gen, errors.ErrConnectionLost) },
	}

	connectDone := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(ctx, c.url, events)
		connectDone <- dialResult{conn: conn, err: err}
	}()

	var res dialResult
	select {
	case res = <-connectDone:
	case <-ctx.Done():
		go func() {
			if late := <-connectDone; late.conn != nil {
				late.conn.Close()
			}
		}()
		c.logger.Debug("Connection attempt abandoned", "error", ctx.Err())
		return false
	}

	if res.err != nil {
		c.logger.Debug("Connection attempt failed", "error", res.err)
		return false
	}

	return c.install(gen, res.conn)
}

// install makes conn the live connection, drains the queue and replays
// subscriptions. Returns false if the connection was lost again during the
// flush or the channel was stopped meanwhile.
func (c *Client) install(gen uint64, conn Conn) bool {
	c.mu.Lock()
	if c.manual || gen != c.generation {
		c.mu.Unlock()
		conn.Close()
		return false
	}

	c.conn = conn
	wasReconnect := c.attempts > 0
	c.setStatusLocked(StatusConnected)
	c.attempts = 0
	c.outageStart = time.Time{}

	flushed, flushErr := c.flushLocked()
	if flushErr != nil {
		dead := c.markLostLocked()
		c.mu.Unlock()
		c.logger.Warn("Flush interrupted, connection lost", "sent", flushed, "error", flushErr)
		if dead != nil {
			dead.Close()
		}
		return false
	}

	c.replayLocked()
	depth := len(c.queue)
	subs := len(c.regs)
	c.mu.Unlock()

	if wasReconnect {
		c.metrics.recordReconnect()
	}
	c.logger.Info("Connected to broker", "flushed", flushed, "queue_depth", depth, "subscriptions", subs)
	return true
}

// flushLocked sends queued messages in FIFO order. A failed send leaves that
// message at the head of the queue and stops the flush.
func (c *Client) flushLocked() (int, error) {
	sent := 0
	for len(c.queue) > 0 {
		msg := c.queue[0]
		if err := c.conn.Publish(msg.subject, msg.data); err != nil {
			c.metrics.recordRequeue()
			return sent, err
		}
		c.queue[0] = outbound{}
		c.queue = c.queue[1:]
		sent++
		c.metrics.recordPublish(c.queueDepthLocked())
	}
	c.queue = nil
	return sent, nil
}

func (c *Client) replayLocked() {
	for _, reg := range c.regs {
		if err := c.subscribeLocked(reg); err != nil {
			c.logger.Error("Failed to replay subscription", "subject", reg.subject, "error", err)
		}
	}
}

func (c *Client) subscribeLocked(reg *registration) error {
	sub, err := c.conn.Subscribe(reg.subject, func(data []byte) {
		msgCtx, cancel := context.WithTimeout(reg.ctx, messageTimeout)
		defer cancel()
		reg.handler(msgCtx, data)
	})
	if err != nil {
		return err
	}
	reg.sub = sub
	return nil
}

// markLostLocked moves a live connection into reconnecting and starts the
// supervisor. It returns the dead connection for the caller to close outside
// the lock.
func (c *Client) markLostLocked() Conn {
	if c.manual || c.status != StatusConnected {
		return nil
	}
	dead := c.conn
	c.conn = nil
	c.generation++
	for _, reg := range c.regs {
		reg.sub = nil
	}
	c.setStatusLocked(StatusReconnecting)
	c.startSupervisorLocked()
	return dead
}

// connectionLost is the transport callback for disconnect and close events.
func (c *Client) connectionLost(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	dead := c.markLostLocked()
	c.mu.Unlock()

	if dead != nil {
		c.logger.Warn("Connection to broker lost", "error", err)
		dead.Close()
	}
}

// Publish sends data on subject when connected, otherwise appends it to the
// outbound queue. A failed send puts the message back at the head of the
// queue and schedules recovery. It never blocks on the network.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	if subject == "" {
		return errors.WrapInvalid(errors.New("empty subject"), "Client", "Publish", "validate subject")
	}
	msg := outbound{subject: subject, data: data}

	c.mu.Lock()
	if c.status != StatusConnected || c.conn == nil {
		c.queue = append(c.queue, msg)
		depth := len(c.queue)
		c.mu.Unlock()
		c.metrics.recordQueued(depth)
		return nil
	}

	if err := c.conn.Publish(subject, data); err != nil {
		c.queue = append([]outbound{msg}, c.queue...)
		depth := len(c.queue)
		dead := c.markLostLocked()
		c.mu.Unlock()

		c.metrics.recordRequeue()
		c.metrics.setQueueDepth(depth)
		c.logger.Warn("Publish failed, message re-queued", "subject", subject, "error", err)
		if dead != nil {
			dead.Close()
		}
		return nil
	}
	depth := len(c.queue)
	c.mu.Unlock()

	c.metrics.recordPublish(depth)
	return nil
}

// Subscribe registers handler for subject. The registration survives
// reconnects and is replayed in registration order. Each message handler
// receives a context derived from ctx with a 30-second timeout. When
// connected the subscription is made immediately; an error from the broker
// is returned but the registration is kept for the next reconnect.
func (c *Client) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	if subject == "" || handler == nil {
		return errors.WrapInvalid(errors.New("subject and handler are required"), "Client", "Subscribe", "validate")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	reg := &registration{ctx: ctx, subject: subject, handler: handler}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs = append(c.regs, reg)

	if c.status != StatusConnected || c.conn == nil {
		return nil
	}
	if err := c.subscribeLocked(reg); err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", "subscribe "+subject)
	}
	return nil
}

// Disconnect stops the channel. The transport is torn down and the
// supervisor exits; queued messages and registrations are kept for a later
// Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manual = true
	conn := c.conn
	c.conn = nil
	c.generation++
	for _, reg := range c.regs {
		reg.sub = nil
	}
	c.setStatusLocked(StatusDisconnected)
	close(c.stop)
	c.stop = make(chan struct{})
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	c.logger.Info("Disconnected from broker")
}

// Close is Disconnect for callers that shut down with a context.
func (c *Client) Close(_ context.Context) error {
	c.Disconnect()
	return nil
}

// WaitForConnection blocks until the channel is connected or ctx is done.
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.IsHealthy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "Client", "WaitForConnection", "wait for broker")
		case <-ticker.C:
		}
	}
}

func (c *Client) queueDepthLocked() int {
	return len(c.queue)
}
