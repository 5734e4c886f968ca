package natsclient

import (
	"context"
	"log/slog"
	"time"
)

// Outage ages at which supervisor logging escalates.
const (
	warnAfter  = time.Minute
	errorAfter = 10 * time.Minute
)

func (c *Client) startSupervisorLocked() {
	if c.supervising || c.manual {
		return
	}
	c.supervising = true
	if c.outageStart.IsZero() {
		c.outageStart = time.Now()
	}
	c.wg.Add(1)
	go c.supervise(c.stop)
}

// supervise retries the connection every reconnectInterval until it succeeds
// or the channel is stopped. There is no attempt limit.
func (c *Client) supervise(stop <-chan struct{}) {
	defer c.wg.Done()

	timer := time.NewTimer(c.reconnectInterval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			c.finishSupervising()
			return
		case <-timer.C:
		}

		c.mu.Lock()
		if c.manual {
			c.supervising = false
			c.mu.Unlock()
			return
		}
		c.attempts++
		attempt := c.attempts
		outage := time.Since(c.outageStart)
		c.mu.Unlock()

		c.logger.Log(context.Background(), outageLevel(outage), "Reconnecting to broker",
			"attempt", attempt, "outage", outage.Round(time.Second).String())

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		c.attempt(ctx)
		cancel()

		c.mu.Lock()
		if c.status == StatusConnected || c.manual {
			c.supervising = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		timer.Reset(c.reconnectInterval)
	}
}

func (c *Client) finishSupervising() {
	c.mu.Lock()
	c.supervising = false
	c.mu.Unlock()
}

// outageLevel maps how long the broker has been unreachable to a log level.
func outageLevel(outage time.Duration) slog.Level {
	switch {
	case outage < warnAfter:
		return slog.LevelInfo
	case outage < errorAfter:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
