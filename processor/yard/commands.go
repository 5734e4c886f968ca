package yard

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/pkg/timestamp"
	"github.com/paragnema1/scc/storage"
	"github.com/paragnema1/scc/telemetry"
)

// Event ids written to the event log for operator commands.
const (
	EventSectionReset = "SCC-EVENT-01"
	EventDPReset      = "SCC-EVENT-02"
)

// handleTrailThrough archives an alert the first time it is seen for a
// section. Repeats are ignored until the section is cleared.
func (p *Processor) handleTrailThrough(_ context.Context, data []byte) error {
	var alert telemetry.Alert
	if err := p.decoder.Decode(telemetry.KindTrailThrough, data, &alert); err != nil {
		return err
	}
	key := strings.ToLower(alert.SectionID)

	p.latchMu.Lock()
	if p.latched[key] {
		p.latchMu.Unlock()
		p.logger.Debug("Trail-through already latched", "section", key)
		return nil
	}
	p.latched[key] = true
	n := len(p.latched)
	p.latchMu.Unlock()
	p.metrics.setLatched(n)

	p.enqueue(storage.KindTrailThrough, storage.Record{
		"tt_ts":          alert.TS,
		"section_id":     key,
		"confirm_status": false,
	})
	p.enqueue(storage.KindTrailThroughPlayback, storage.Record{
		"ts": alert.TS,
		"section_id": telemetry.TrailThroughPlayback{
			TS:        alert.TS,
			SectionID: key,
		},
	})
	return nil
}

// handleTrailClear releases the latch for a section and records the
// acknowledgement. Clearing a section with no latched alert does nothing.
func (p *Processor) handleTrailClear(_ context.Context, data []byte) error {
	var clear telemetry.TrailThroughClear
	if err := p.decoder.Decode(telemetry.KindTTClear, data, &clear); err != nil {
		return err
	}
	key := strings.ToLower(clear.SectionID)

	p.latchMu.Lock()
	if !p.latched[key] {
		p.latchMu.Unlock()
		p.logger.Debug("No trail-through to clear", "section", key)
		return nil
	}
	delete(p.latched, key)
	n := len(p.latched)
	p.latchMu.Unlock()
	p.metrics.setLatched(n)

	ts := timestamp.ToEpoch(p.now())
	p.enqueue(storage.KindTrailThroughPlayback, storage.Record{
		"ts": ts,
		"section_id": telemetry.TrailThroughPlayback{
			TS:            ts,
			SectionID:     key,
			ConfirmStatus: true,
		},
	})
	p.logger.Info("Trail-through cleared", "section", key)
	return nil
}

// handleSectionReset forwards an authorised section reset to the OCC and the
// counters and logs the event.
func (p *Processor) handleSectionReset(ctx context.Context, data []byte) error {
	var req telemetry.SectionReset
	if err := p.decoder.Decode(telemetry.KindSectionReset, data, &req); err != nil {
		return err
	}
	if err := p.authorize(ctx, "section_reset", req.Username); err != nil {
		return err
	}

	dpIDs := p.cfg.DetectionPoints[req.SectionID]
	if dpIDs == nil {
		dpIDs = []string{}
	}
	cmd := telemetry.SectionResetCommand{
		TS:          timestamp.ToEpoch(p.now()),
		Username:    req.Username,
		SectionID:   req.SectionID,
		SectionName: req.SectionName,
		DPIDs:       dpIDs,
	}
	p.publish(ctx, p.cfg.Subjects.OCCSectionReset, cmd)
	p.publish(ctx, p.cfg.Subjects.SCCSectionReset, cmd)

	p.logEvent(EventSectionReset, fmt.Sprintf("section %s reset performed.", req.SectionID))
	p.logger.Info("Section reset", "section", req.SectionID, "username", req.Username)
	return nil
}

// handleDPReset forwards an authorised detection point reset to the counters
// and logs the event.
func (p *Processor) handleDPReset(ctx context.Context, data []byte) error {
	var req telemetry.DPReset
	if err := p.decoder.Decode(telemetry.KindDPReset, data, &req); err != nil {
		return err
	}
	if err := p.authorize(ctx, "dp_reset", req.Username); err != nil {
		return err
	}

	p.publish(ctx, p.cfg.Subjects.SCCDPReset, telemetry.DPResetCommand{
		DPID:     req.DPID,
		InCount:  -1,
		OutCount: -1,
	})

	p.logEvent(EventDPReset, fmt.Sprintf("dp %s reset performed.", req.DPID))
	p.logger.Info("Detection point reset", "dp_id", req.DPID, "username", req.Username)
	return nil
}

// handleTorpedoInfo overrides the torpedo id carried on a section.
func (p *Processor) handleTorpedoInfo(_ context.Context, data []byte) error {
	var info telemetry.TorpedoInfo
	if err := p.decoder.Decode(telemetry.KindTorpedoInfo, data, &info); err != nil {
		return err
	}
	if !p.graph.Has(info.SectionID) {
		return errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrUnknownSection, info.SectionID),
			"YardProcessor", "handleTorpedoInfo", "resolve section")
	}

	p.processingMu.Lock()
	p.tracer.Assign(info.SectionID, info.TorpedoID)
	p.processingMu.Unlock()
	return nil
}

// authorize checks that username holds one of the admin roles.
func (p *Processor) authorize(ctx context.Context, command, username string) error {
	if p.commandLimiter != nil && !p.commandLimiter.Allow() {
		p.metrics.recordDenied(command)
		return errors.WrapTransient(errors.ErrRateLimited, "YardProcessor", "authorize", command)
	}

	granted, err := p.userRoles(ctx, username)
	if err != nil {
		return err
	}
	for _, role := range granted {
		for _, admin := range p.cfg.AdminRoles {
			if role == admin {
				return nil
			}
		}
	}

	p.metrics.recordDenied(command)
	return errors.WrapInvalid(fmt.Errorf("%w: %s may not %s", errors.ErrNotAuthorized, username, command),
		"YardProcessor", "authorize", "check role")
}

// userRoles returns the roles of username, reading user_details when the
// cache has no live entry. Unknown users are never cached.
func (p *Processor) userRoles(ctx context.Context, username string) ([]string, error) {
	if p.roles != nil {
		if r, ok := p.roles.Get(username); ok {
			return r, nil
		}
	}

	users, err := p.store.Read(ctx, storage.KindUserDetails)
	if err != nil {
		return nil, errors.Wrap(err, "YardProcessor", "userRoles", "read user details")
	}
	var found []string
	for _, u := range users {
		name, _ := u["username"].(string)
		if name == "" {
			continue
		}
		r := roles(u["roles"])
		if p.roles != nil {
			_ = p.roles.Set(name, r)
		}
		if name == username {
			found = r
		}
	}
	return found, nil
}

// roles reads the roles column, stored either as a JSON list or as a single
// name.
func roles(v any) []string {
	switch r := v.(type) {
	case string:
		return []string{r}
	case []any:
		out := make([]string, 0, len(r))
		for _, item := range r {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return r
	}
	return nil
}

func (p *Processor) logEvent(eventID, desc string) {
	p.enqueue(storage.KindEvent, storage.Record{
		"ts":             timestamp.ToEpoch(p.now()),
		"event_id":       eventID,
		"event_desc":     desc,
		"correlation_id": uuid.NewString(),
	})
}
