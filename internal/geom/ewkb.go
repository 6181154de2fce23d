package geom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// WKB geometry type codes.
const (
	wkbPoint           uint32 = 1
	wkbLineString      uint32 = 2
	wkbPolygon         uint32 = 3
	wkbMultiPoint      uint32 = 4
	wkbMultiLineString uint32 = 5
	wkbMultiPolygon    uint32 = 6

	// ewkbSRIDFlag marks the presence of an SRID in the header.
	ewkbSRIDFlag uint32 = 0x20000000

	littleEndian byte = 1
)

// EWKB encodes the geometry as little-endian extended WKB carrying the given
// SRID in the top-level header.
func (g *Geometry) EWKB(srid uint32) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.encode(&buf, srid); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encode writes one geometry. srid 0 omits the SRID flag, which is how
// sub-geometries inside multi-geometries are written.
func (g *Geometry) encode(buf *bytes.Buffer, srid uint32) error {
	buf.WriteByte(littleEndian)

	typeCode, err := g.typeCode()
	if err != nil {
		return err
	}
	if srid != 0 {
		writeUint32(buf, typeCode|ewkbSRIDFlag)
		writeUint32(buf, srid)
	} else {
		writeUint32(buf, typeCode)
	}

	switch g.Type {
	case TypePoint:
		writePosition(buf, g.Point)
	case TypeLineString:
		writeRing(buf, g.Line)
	case TypePolygon:
		writeUint32(buf, uint32(len(g.Polygon)))
		for _, ring := range g.Polygon {
			writeRing(buf, ring)
		}
	case TypeMultiPoint:
		writeUint32(buf, uint32(len(g.MultiPoint)))
		for _, p := range g.MultiPoint {
			sub := Geometry{Type: TypePoint, Point: p}
			if err := sub.encode(buf, 0); err != nil {
				return err
			}
		}
	case TypeMultiLineString:
		writeUint32(buf, uint32(len(g.MultiLine)))
		for _, line := range g.MultiLine {
			sub := Geometry{Type: TypeLineString, Line: line}
			if err := sub.encode(buf, 0); err != nil {
				return err
			}
		}
	case TypeMultiPolygon:
		writeUint32(buf, uint32(len(g.MultiPoly)))
		for _, poly := range g.MultiPoly {
			sub := Geometry{Type: TypePolygon, Polygon: poly}
			if err := sub.encode(buf, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Geometry) typeCode() (uint32, error) {
	switch g.Type {
	case TypePoint:
		return wkbPoint, nil
	case TypeLineString:
		return wkbLineString, nil
	case TypePolygon:
		return wkbPolygon, nil
	case TypeMultiPoint:
		return wkbMultiPoint, nil
	case TypeMultiLineString:
		return wkbMultiLineString, nil
	case TypeMultiPolygon:
		return wkbMultiPolygon, nil
	}
	return 0, fmt.Errorf("geom: unsupported geometry type %q", g.Type)
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeFloat64(buf *bytes.Buffer, v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	buf.Write(b[:])
}

func writePosition(buf *bytes.Buffer, pos []float64) {
	// Only X and Y are carried; upstream sources are planar.
	writeFloat64(buf, pos[0])
	writeFloat64(buf, pos[1])
}

func writeRing(buf *bytes.Buffer, ring [][]float64) {
	writeUint32(buf, uint32(len(ring)))
	for _, pos := range ring {
		writePosition(buf, pos)
	}
}
