package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/paragnema1/scc/errors"
)

// ColumnType is the logical type of a column.
type ColumnType int

const (
	Text ColumnType = iota
	Float
	Int
	Bool
	JSON
)

func (t ColumnType) String() string {
	switch t {
	case Text:
		return "text"
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case JSON:
		return "json"
	default:
		return "unknown"
	}
}

// Column is one named, typed field of a Table.
type Column struct {
	Name string
	Type ColumnType
}

// Table describes the columns of a kind. A non-empty Key makes Insert an
// upsert on that column: non-nil values of the new record replace the stored
// ones, absent values are kept.
type Table struct {
	Kind    Kind
	Columns []Column
	Key     string
}

var tables = map[Kind]Table{
	KindLayoutConnections: {
		Kind: KindLayoutConnections,
		Columns: []Column{
			{"section_id", Text},
			{"left_normal", Text},
			{"right_normal", Text},
			{"left_reverse", Text},
			{"right_reverse", Text},
		},
	},
	KindPointConfig: {
		Kind: KindPointConfig,
		Columns: []Column{
			{"section_id", Text},
			{"point_id", Text},
		},
	},
	KindSection: {
		Kind: KindSection,
		Columns: []Column{
			{"ts", Float},
			{"section_id", Text},
			{"section_status", Text},
			{"engine_id", Text},
			{"torpedo_id", Text},
			{"engine_axle_count", Int},
			{"torpedo_axle_count", Int},
			{"direction", Text},
			{"speed", Float},
			{"torpedo_status", Text},
			{"first_axle", Text},
			{"error_code", Text},
		},
	},
	KindSectionPlayback: {
		Kind: KindSectionPlayback,
		Columns: []Column{
			{"ts", Float},
			{"sections", JSON},
		},
	},
	KindTrailThrough: {
		Kind: KindTrailThrough,
		Columns: []Column{
			{"tt_ts", Float},
			{"section_id", Text},
			{"confirm_status", Bool},
		},
	},
	KindTrailThroughPlayback: {
		Kind: KindTrailThroughPlayback,
		Columns: []Column{
			{"ts", Float},
			{"section_id", JSON},
		},
	},
	KindYardPerformance: {
		Kind: KindYardPerformance,
		Columns: []Column{
			{"torpedo_id", Text},
			{"engine_id", Text},
			{"entry_ts", Float},
			{"exit_ts", Float},
			{"unload_entry_ts", Float},
			{"unload_exit_ts", Float},
			{"unload_section_id", Text},
		},
		Key: "torpedo_id",
	},
	KindEvent: {
		Kind: KindEvent,
		Columns: []Column{
			{"ts", Float},
			{"event_id", Text},
			{"event_desc", Text},
			{"correlation_id", Text},
		},
	},
	KindUserDetails: {
		Kind: KindUserDetails,
		Columns: []Column{
			{"username", Text},
			{"email", Text},
			{"firstname", Text},
			{"lastname", Text},
			{"roles", JSON},
		},
	},
}

// TableFor returns the table of kind.
func TableFor(kind Kind) (Table, error) {
	t, ok := tables[kind]
	if !ok {
		return Table{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownKind, kind), "storage", "TableFor", "lookup table")
	}
	return t, nil
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Normalize checks rec against the table and converts every value to the Go
// type of its column. Nil values are dropped. Unknown columns are an error.
func (t Table) Normalize(rec Record) (Record, error) {
	out := make(Record, len(rec))
	for name, v := range rec {
		col, ok := t.Column(name)
		if !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("unknown column %q for %s", name, t.Kind), "storage", "Normalize", "check column")
		}
		if v == nil {
			continue
		}
		cv, err := convert(col, v)
		if err != nil {
			return nil, errors.WrapInvalid(err, "storage", "Normalize", "convert "+name)
		}
		out[name] = cv
	}
	if t.Key != "" {
		if s, _ := out[t.Key].(string); s == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%s requires %s", t.Kind, t.Key), "storage", "Normalize", "check key")
		}
	}
	return out, nil
}

// Merge overlays the non-nil values of update on base. Both must already be
// normalized.
func Merge(base, update Record) Record {
	out := make(Record, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

func convert(col Column, v any) (any, error) {
	switch col.Type {
	case Text:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
			return rv.String(), nil
		}
	case Float:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			return n.Float64()
		}
	case Int:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case float64:
			if n == math.Trunc(n) {
				return int64(n), nil
			}
		case json.Number:
			return n.Int64()
		}
	case Bool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		}
	case JSON:
		return roundTrip(v)
	}
	return nil, fmt.Errorf("%s: cannot store %T in %s column", col.Name, v, col.Type)
}

// roundTrip gives JSON values the shape encoding/json decodes them into, so
// every Store returns identical values.
func roundTrip(v any) (any, error) {
	var data []byte
	switch raw := v.(type) {
	case json.RawMessage:
		data = raw
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		data = b
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
