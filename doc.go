// Package scc is the section control centre of a torpedo yard: it watches
// track-section and point telemetry, raises trail-through alarms, traces
// torpedo and engine movements through the yard and archives everything it
// sees.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│        cmd/scc-server               │  config, store, topology,
//	│                                     │  broker, metrics, signals
//	└─────────────────────────────────────┘
//	           ↓ runs
//	┌─────────────────────────────────────┐
//	│        processor/yard               │  subscriptions, commands,
//	│                                     │  archive worker, health
//	└─────────────────────────────────────┘
//	           ↓ per section frame
//	┌──────────────┐ ┌──────────────┐ ┌──────────────┐
//	│ telemetry    │ │ trailthrough │ │ movement     │
//	│ decode,      │ │ point vs     │ │ entry, exit, │
//	│ snapshots    │ │ neighbour    │ │ unloading    │
//	└──────────────┘ └──────────────┘ └──────────────┘
//	           ↓ all read
//	┌─────────────────────────────────────┐
//	│        topology                     │  immutable adjacency,
//	│                                     │  points and zones
//	└─────────────────────────────────────┘
//
// Supporting packages:
//   - natsclient: broker channel with reconnect and an outbound queue
//   - storage: the archive contract, with sqlstore (PostgreSQL, SQLite),
//     kvstore (NATS JetStream KeyValue) and an in-memory store
//   - config: layered YAML/JSON configuration with environment overrides
//   - metric, health: Prometheus metrics and health aggregation
//   - errors: classified errors (transient, invalid, fatal)
//   - pkg/retry, pkg/worker, pkg/timestamp: backoff, bounded worker pools
//     and epoch time helpers
//
// # Message Flow
//
// Section frames arrive on sem.section_info. Each frame replaces the current
// snapshot, the old one becomes the previous snapshot, and the pair is
// compared against the topology. A trail-through is published on
// scc.trail_through, movement timestamps are upserted into yard_performance,
// and the frame is republished for the OCC. Point readings only update the
// point table used by the next frame.
//
// Operator commands (trail-through acknowledgement, section and detection
// point resets, torpedo id overrides) arrive on their own subjects and are
// applied between frames.
package scc
