// Package storage provides the persistence contract shared by every
// component of the yard service.
//
// # Overview
//
// The service reads its static topology and user roles from storage at
// startup and archives telemetry, trail-through alerts, operator events and
// movement records while it runs. All of it goes through one small
// interface:
//
//	type Store interface {
//	    Insert(ctx context.Context, kind Kind, rec Record) error
//	    Read(ctx context.Context, kind Kind) ([]Record, error)
//	    Close() error
//	}
//
// A Kind names a record family and has a fixed Table of typed columns.
// Records are plain maps keyed by column name. Insert normalizes values to
// the column types, so a Read returns the same Go types whichever backend
// wrote them:
//
//	Text  -> string
//	Float -> float64
//	Int   -> int64
//	Bool  -> bool
//	JSON  -> the value encoding/json decodes into any
//
// # Upserts
//
// Kinds whose Table declares a Key are upserted. KindYardPerformance is keyed
// by torpedo_id: each movement event inserts the whole record and the stored
// row keeps any timestamp the update leaves out.
//
// # Backends
//
//   - sqlstore: database/sql on PostgreSQL (pgx) or SQLite (modernc)
//   - kvstore: a NATS JetStream KeyValue bucket
//   - MemoryStore: in-process, for tests and dry runs
//
// Backends record operation counts, latency and errors through Metrics when
// a metric.MetricsRegistry is supplied.
//
// # Thread Safety
//
// All Store implementations are safe for concurrent use.
package storage
