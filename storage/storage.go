// Package storage defines the persistence contract of the yard service.
package storage

import (
	"context"
	"sort"
)

// Kind names a record family. Each kind maps to one SQL table or one key
// prefix in a KeyValue bucket.
type Kind string

// Record kinds.
const (
	KindLayoutConnections    Kind = "layout_section_connections"
	KindPointConfig          Kind = "pms_config"
	KindSection              Kind = "section"
	KindSectionPlayback      Kind = "section_playback"
	KindTrailThrough         Kind = "trail_through"
	KindTrailThroughPlayback Kind = "trail_through_playback"
	KindYardPerformance      Kind = "yard_performance"
	KindEvent                Kind = "event"
	KindUserDetails          Kind = "user_details"
)

// Record is one row. Keys are column names from the kind's Table. Values
// read back from any Store use the Go type of the column: string, float64,
// int64, bool, or the decoded JSON value for JSON columns.
type Record map[string]any

// Store is the persistence backend.
//
// Insert appends rec to the kind, or merges it into the existing row with
// the same key for kinds whose Table declares one. Read returns every row
// of the kind in insertion order.
//
// All Store implementations must be safe for concurrent use.
type Store interface {
	Insert(ctx context.Context, kind Kind, rec Record) error
	Read(ctx context.Context, kind Kind) ([]Record, error)
	Close() error
}

// Kinds returns every known kind sorted by name.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(tables))
	for k := range tables {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// String implements fmt.Stringer
func (k Kind) String() string {
	return string(k)
}

