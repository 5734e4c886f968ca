package yard

import (
	"context"
	"strconv"
	"time"

	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/movement"
	"github.com/paragnema1/scc/pkg/timestamp"
	"github.com/paragnema1/scc/pkg/worker"
	"github.com/paragnema1/scc/storage"
	"github.com/paragnema1/scc/telemetry"
)

// archiveJob is one row waiting for the archive worker. Jobs are written in
// submission order by a single worker.
type archiveJob struct {
	kind storage.Kind
	rec  storage.Record
}

// enqueue hands rows to the archive worker without blocking. A full queue
// drops the row; archiving never holds up telemetry.
func (p *Processor) enqueue(kind storage.Kind, recs ...storage.Record) {
	for _, rec := range recs {
		err := p.archive.Submit(archiveJob{kind: kind, rec: rec})
		if err == nil {
			continue
		}
		reason := "rejected"
		if errors.Is(err, worker.ErrQueueFull) {
			reason = "queue_full"
		}
		p.metrics.recordArchiveError(kind, reason)
		p.logger.Warn("Archive record dropped", "kind", kind, "reason", reason, "error", err)
	}
}

func (p *Processor) archiveOne(ctx context.Context, job archiveJob) error {
	return p.store.Insert(ctx, job.kind, job.rec)
}

func (p *Processor) archiveFailed(job archiveJob, err error) {
	p.metrics.recordArchiveError(job.kind, "insert")
	p.logger.Error("Failed to archive record", "kind", job.kind, "error", err)
}

// sectionRows builds one section row per reading, stamped with the ids the
// tracer carries on that section. Callers hold processingMu.
func (p *Processor) sectionRows(f telemetry.Frame) []storage.Record {
	ts := timestamp.ToEpoch(f.TS())
	sections := f.Sections()
	rows := make([]storage.Record, 0, len(sections))
	for _, s := range sections {
		row := storage.Record{
			"ts":                 ts,
			"section_id":         s.ID,
			"section_status":     string(s.Status),
			"engine_axle_count":  s.EngineAxleCount,
			"torpedo_axle_count": s.TorpedoAxleCount,
			"direction":          string(s.Direction),
			"speed":              s.Speed,
			"torpedo_status":     s.TorpedoStatus,
			"first_axle":         s.FirstAxle,
			"error_code":         strconv.Itoa(s.ErrorCode),
		}
		if ids, ok := p.tracer.Carried(s.ID); ok {
			row["torpedo_id"] = ids.TorpedoID
			row["engine_id"] = ids.EngineID
		}
		rows = append(rows, row)
	}
	return rows
}

func playbackRecord(f telemetry.Frame) storage.Record {
	return storage.Record{
		"ts":       timestamp.ToEpoch(f.TS()),
		"sections": f.Sections(),
	}
}

// performanceRecord carries only the timestamps that are set, so an upsert
// never clears an earlier one.
func performanceRecord(r movement.Record) storage.Record {
	rec := storage.Record{"torpedo_id": r.TorpedoID}
	if r.EngineID != "" {
		rec["engine_id"] = r.EngineID
	}
	setTS(rec, "entry_ts", r.EntryTS)
	setTS(rec, "exit_ts", r.ExitTS)
	setTS(rec, "unload_entry_ts", r.UnloadEntryTS)
	setTS(rec, "unload_exit_ts", r.UnloadExitTS)
	if r.UnloadSectionID != "" {
		rec["unload_section_id"] = r.UnloadSectionID
	}
	return rec
}

func setTS(rec storage.Record, col string, t time.Time) {
	if !t.IsZero() {
		rec[col] = timestamp.ToEpoch(t)
	}
}
