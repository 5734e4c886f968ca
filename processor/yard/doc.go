// Package yard wires the SCC telemetry pipeline together.
//
// A Processor subscribes to the section, point, trail-through and operator
// command subjects. Each section frame rotates the snapshot store and then
// runs trail-through detection and movement tracing against the immutable
// topology:
//
//	section_info ─► decode ─► rotate snapshots ─► detect ─► alert (scc/trail_through)
//	                                   │            └──► trace ─► yard_performance
//	                                   └──► section, section_playback rows
//	                                   └──► republish (occ/section_info)
//
// Telemetry is handled one message at a time. Rows are archived by a single
// worker in submission order; a full archive queue drops rows rather than
// delaying telemetry, and Stop drains what is queued.
//
// Alerts are latched per section: the first trail_through message for a
// section is archived and later ones are ignored until a tt_clear message
// acknowledges it.
//
// Section and detection point resets are forwarded only for users holding one
// of the configured admin roles, and each one is written to the event log.
//
// # Usage
//
//	graph, err := yard.LoadTopology(ctx, store, cfg.Yard.Zones, retry.Startup(), logger)
//	if err != nil {
//		return err
//	}
//	yardCfg, err := yard.ConfigFrom(cfg)
//	if err != nil {
//		return err
//	}
//	p, err := yard.NewProcessor(yardCfg, natsClient, store, graph,
//		yard.WithLogger(logger), yard.WithMetrics(registry))
//	if err != nil {
//		return err
//	}
//	if err := p.Start(ctx); err != nil {
//		return err
//	}
//	defer p.Stop(10 * time.Second)
package yard
