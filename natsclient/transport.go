package natsclient

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/paragnema1/scc/errors"
)

// Events carries the transport callbacks the Client routes into its
// supervisor.
type Events struct {
	OnDisconnect func(error)
	OnClosed     func()
}

// Subscription is an active subject subscription on a live connection.
type Subscription interface {
	Unsubscribe() error
}

// Conn is one live broker connection. Implementations must not invoke the
// Events callbacks synchronously from Publish, Subscribe or Close.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func([]byte)) (Subscription, error)
	Close()
}

// Dialer opens broker connections.
type Dialer interface {
	Dial(ctx context.Context, url string, events Events) (Conn, error)
}

// natsDialer dials NATS with the library's own reconnect logic disabled so
// that the Client supervisor owns recovery.
type natsDialer struct {
	name     string
	timeout  time.Duration
	username string
	password string
	token    string
	logger   *slog.Logger
}

func (d *natsDialer) options(events Events) []nats.Option {
	opts := []nats.Option{
		nats.Name(d.name),
		nats.Timeout(d.timeout),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if events.OnDisconnect != nil {
				events.OnDisconnect(err)
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if events.OnClosed != nil {
				events.OnClosed()
			}
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			d.logger.Error("NATS async error", "subject", subject, "error", err)
		}),
	}

	if d.username != "" && d.password != "" {
		opts = append(opts, nats.UserInfo(d.username, d.password))
	}
	if d.token != "" {
		opts = append(opts, nats.Token(d.token))
	}
	return opts
}

// Dial implements Dialer
func (d *natsDialer) Dial(ctx context.Context, url string, events Events) (Conn, error) {
	opts := d.options(events)
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < d.timeout {
			opts = append(opts, nats.Timeout(remaining))
		}
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.WrapTransient(err, "natsDialer", "Dial", "connect")
	}
	return &natsConn{nc: nc}, nil
}

type natsConn struct {
	nc *nats.Conn
}

func (c *natsConn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

func (c *natsConn) Subscribe(subject string, handler func([]byte)) (Subscription, error) {
	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (c *natsConn) Close() {
	c.nc.Close()
}
