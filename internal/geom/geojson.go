// Package geom parses GeoJSON geometries from the upstream vector sources and
// encodes them as EWKB blobs for the geometry columns of the output database.
package geom

import (
	"encoding/json"
	"fmt"
)

// Type enumerates the geometry types present in the upstream datasets.
type Type string

const (
	TypePoint           Type = "Point"
	TypeMultiPoint      Type = "MultiPoint"
	TypeLineString      Type = "LineString"
	TypeMultiLineString Type = "MultiLineString"
	TypePolygon         Type = "Polygon"
	TypeMultiPolygon    Type = "MultiPolygon"
)

// Geometry is a parsed GeoJSON geometry. Exactly one coordinate field is
// populated, matching Type.
type Geometry struct {
	Type Type

	Point      []float64
	MultiPoint [][]float64
	Line       [][]float64
	MultiLine  [][][]float64
	Polygon    [][][]float64
	MultiPoly  [][][][]float64
}

// rawGeometry mirrors the GeoJSON wire shape before coordinate typing.
type rawGeometry struct {
	Type        Type            `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Parse decodes a GeoJSON geometry object.
func Parse(data []byte) (*Geometry, error) {
	var raw rawGeometry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("geom: parse geometry: %w", err)
	}
	if len(raw.Coordinates) == 0 {
		return nil, fmt.Errorf("geom: geometry %q has no coordinates", raw.Type)
	}

	g := &Geometry{Type: raw.Type}
	var err error
	switch raw.Type {
	case TypePoint:
		err = json.Unmarshal(raw.Coordinates, &g.Point)
	case TypeMultiPoint:
		err = json.Unmarshal(raw.Coordinates, &g.MultiPoint)
	case TypeLineString:
		err = json.Unmarshal(raw.Coordinates, &g.Line)
	case TypeMultiLineString:
		err = json.Unmarshal(raw.Coordinates, &g.MultiLine)
	case TypePolygon:
		err = json.Unmarshal(raw.Coordinates, &g.Polygon)
	case TypeMultiPolygon:
		err = json.Unmarshal(raw.Coordinates, &g.MultiPoly)
	default:
		return nil, fmt.Errorf("geom: unsupported geometry type %q", raw.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("geom: parse %s coordinates: %w", raw.Type, err)
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// validate checks every position in the coordinate tree. The EWKB encoder
// relies on each position carrying at least X and Y, so a degenerate position
// anywhere must be rejected here with a diagnostic.
func (g *Geometry) validate() error {
	var err error
	switch g.Type {
	case TypePoint:
		err = checkPosition(g.Point)
	case TypeMultiPoint:
		err = checkRing(g.MultiPoint)
	case TypeLineString:
		err = checkRing(g.Line)
	case TypeMultiLineString:
		err = checkRings(g.MultiLine)
	case TypePolygon:
		err = checkRings(g.Polygon)
	case TypeMultiPolygon:
		for _, poly := range g.MultiPoly {
			if err = checkRings(poly); err != nil {
				break
			}
		}
	}
	if err != nil {
		return fmt.Errorf("geom: invalid %s geometry: %w", g.Type, err)
	}
	return nil
}

func checkPosition(pos []float64) error {
	if len(pos) < 2 {
		return fmt.Errorf("position has %d ordinates", len(pos))
	}
	return nil
}

func checkRing(ring [][]float64) error {
	for _, pos := range ring {
		if err := checkPosition(pos); err != nil {
			return err
		}
	}
	return nil
}

func checkRings(rings [][][]float64) error {
	for _, ring := range rings {
		if err := checkRing(ring); err != nil {
			return err
		}
	}
	return nil
}
