package yard

import (
	"context"
	"log/slog"
	"time"

	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/pkg/retry"
	"github.com/paragnema1/scc/storage"
	"github.com/paragnema1/scc/topology"
)

// LoadTopology reads the layout and point configuration from store and
// builds the graph. Transient storage errors are retried with retryCfg; an
// empty or inconsistent layout fails immediately.
func LoadTopology(ctx context.Context, store storage.Store, zones topology.Zones, retryCfg retry.Config,
	logger *slog.Logger) (*topology.Graph, error) {
	if logger == nil {
		logger = slog.Default()
	}
	retryCfg.Retryable = errors.IsTransient
	onRetry := retryCfg.OnRetry
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("Topology not available, retrying", "attempt", attempt, "delay", delay, "error", err)
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}

	return retry.DoWithResult(ctx, retryCfg, func() (*topology.Graph, error) {
		layout, err := store.Read(ctx, storage.KindLayoutConnections)
		if err != nil {
			return nil, err
		}
		if len(layout) == 0 {
			return nil, retry.NonRetryable(errors.WrapFatal(errors.ErrInvalidTopology,
				"YardProcessor", "LoadTopology", "read layout_section_connections: no rows"))
		}
		points, err := store.Read(ctx, storage.KindPointConfig)
		if err != nil {
			return nil, err
		}

		links := make([]topology.LinkRow, 0, len(layout))
		for _, r := range layout {
			links = append(links, topology.LinkRow{
				SectionID:    text(r, "section_id"),
				LeftNormal:   text(r, "left_normal"),
				RightNormal:  text(r, "right_normal"),
				LeftReverse:  text(r, "left_reverse"),
				RightReverse: text(r, "right_reverse"),
			})
		}
		pointRows := make([]topology.PointRow, 0, len(points))
		for _, r := range points {
			pointRows = append(pointRows, topology.PointRow{
				PointID:   text(r, "point_id"),
				SectionID: text(r, "section_id"),
			})
		}

		g, err := topology.New(links, pointRows, zones)
		if err != nil {
			return nil, retry.NonRetryable(err)
		}
		logger.Info("Topology loaded", "sections", g.Len(), "points", len(g.Points()))
		return g, nil
	})
}

func text(r storage.Record, col string) string {
	s, _ := r[col].(string)
	return s
}
