// Package source parses staged upstream artifacts into datasets the loader
// can project onto the canonical schema. Three source shapes exist: vector
// GeoJSON, pipe-delimited text and zipped per-region vector bundles.
package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/boundaries-lt/boundaries/internal/geom"
	"github.com/boundaries-lt/boundaries/pkg/types"
)

// feature mirrors one GeoJSON feature on the wire.
type feature struct {
	Properties map[string]json.RawMessage `json:"properties"`
	Geometry   json.RawMessage            `json:"geometry"`
}

type featureCollection struct {
	Features []feature `json:"features"`
}

// ParseGeoJSON parses a staged GeoJSON feature collection into a dataset.
// Feature order is preserved. Geometries are encoded as EWKB with the given
// SRID. Property values decode to string, int64 or float64; JSON null
// becomes a nil value.
func ParseGeoJSON(name string, data []byte, srid uint32) (*types.Dataset, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("source: parse %s: %w", name, err)
	}

	ds := &types.Dataset{Name: name}
	columns := map[string]bool{}

	for i, f := range fc.Features {
		rec := types.Record{Fields: make(map[string]any, len(f.Properties))}

		for key, raw := range f.Properties {
			columns[key] = true
			v, err := decodeScalar(raw)
			if err != nil {
				return nil, fmt.Errorf("source: %s feature %d property %s: %w", name, i, key, err)
			}
			rec.Fields[key] = v
		}

		if len(f.Geometry) > 0 && !bytes.Equal(f.Geometry, []byte("null")) {
			g, err := geom.Parse(f.Geometry)
			if err != nil {
				return nil, fmt.Errorf("source: %s feature %d: %w", name, i, err)
			}
			ewkb, err := g.EWKB(srid)
			if err != nil {
				return nil, fmt.Errorf("source: %s feature %d: %w", name, i, err)
			}
			rec.Geometry = ewkb
		}

		ds.Records = append(ds.Records, rec)
	}

	for c := range columns {
		ds.Columns = append(ds.Columns, c)
	}
	sort.Strings(ds.Columns)

	return ds, nil
}

// decodeScalar decodes one JSON property value. Integral numbers become
// int64 so registry codes survive without float rounding.
func decodeScalar(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return t, nil
	case bool:
		return t, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("unparseable number %q", t.String())
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported property value %s", string(raw))
	}
}
