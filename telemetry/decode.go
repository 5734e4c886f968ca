package telemetry

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/pkg/timestamp"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Kind names an inbound payload schema.
type Kind string

const (
	KindSectionInfo  Kind = "section_info"
	KindPointInfo    Kind = "point_info"
	KindTrailThrough Kind = "trail_through"
	KindTTClear      Kind = "tt_clear"
	KindTorpedoInfo  Kind = "torpedo_info"
	KindSectionReset Kind = "section_reset"
	KindDPReset      Kind = "dp_reset"
)

var allKinds = []Kind{
	KindSectionInfo,
	KindPointInfo,
	KindTrailThrough,
	KindTTClear,
	KindTorpedoInfo,
	KindSectionReset,
	KindDPReset,
}

// Decoder validates inbound payloads against their JSON schema before
// unmarshalling them. It is safe for concurrent use.
type Decoder struct {
	schemas map[Kind]*gojsonschema.Schema
}

// NewDecoder compiles the embedded payload schemas.
func NewDecoder() (*Decoder, error) {
	d := &Decoder{schemas: make(map[Kind]*gojsonschema.Schema, len(allKinds))}
	for _, kind := range allKinds {
		raw, err := schemaFS.ReadFile("schemas/" + string(kind) + ".json")
		if err != nil {
			return nil, errors.WrapFatal(err, "Decoder", "NewDecoder", "read schema "+string(kind))
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, errors.WrapFatal(err, "Decoder", "NewDecoder", "compile schema "+string(kind))
		}
		d.schemas[kind] = schema
	}
	return d, nil
}

// Validate checks data against the schema for kind.
func (d *Decoder) Validate(kind Kind, data []byte) error {
	schema, ok := d.schemas[kind]
	if !ok {
		return errors.WrapInvalid(fmt.Errorf("%w: no schema for %q", errors.ErrMalformedTelemetry, kind),
			"Decoder", "Validate", "lookup schema")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrMalformedTelemetry, err),
			"Decoder", "Validate", "parse "+string(kind))
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrMalformedTelemetry, strings.Join(msgs, "; ")),
			"Decoder", "Validate", "validate "+string(kind))
	}
	return nil
}

// Decode validates data and unmarshals it into v.
func (d *Decoder) Decode(kind Kind, data []byte, v any) error {
	if err := d.Validate(kind, data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrMalformedTelemetry, err),
			"Decoder", "Decode", "unmarshal "+string(kind))
	}
	return nil
}

// DecodeFrame decodes a section-stream message into a Frame.
func (d *Decoder) DecodeFrame(data []byte) (Frame, error) {
	var wire frameWire
	if err := d.Decode(KindSectionInfo, data, &wire); err != nil {
		return Frame{}, err
	}
	return NewFrame(timestamp.FromEpoch(wire.TS), wire.Sections), nil
}

type pointWire struct {
	TS        float64     `json:"ts"`
	PointID   string      `json:"point_id"`
	Status    PointStatus `json:"point_status"`
	Mode      PointMode   `json:"point_mode"`
	ErrorCode int         `json:"error_code"`
}

// DecodePoint decodes a point message. SectionID is left empty; the caller
// resolves it from the topology.
func (d *Decoder) DecodePoint(data []byte) (Point, error) {
	var wire pointWire
	if err := d.Decode(KindPointInfo, data, &wire); err != nil {
		return Point{}, err
	}
	return Point{
		ID:        wire.PointID,
		Status:    wire.Status,
		Mode:      wire.Mode,
		ErrorCode: wire.ErrorCode,
		TS:        timestamp.FromEpoch(wire.TS),
	}, nil
}
