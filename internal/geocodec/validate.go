package geocodec

import (
	"encoding/json"
	"math"

	"github.com/paulmach/orb"
)

// rawGeometry is the GeoJSON geometry envelope before coordinate validation.
type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type position []float64

// validateGeometry checks a GeoJSON geometry object against the shapes the
// editor supports. path prefixes error reasons (e.g. "features[2].geometry").
func validateGeometry(data []byte, path string) error {
	var raw rawGeometry
	if err := json.Unmarshal(data, &raw); err != nil {
		return malformed(path, "not a geometry object: %v", err)
	}

	kind := Kind(raw.Type)
	if !kind.Supported() {
		if raw.Type == "" {
			return malformed(path, "missing type")
		}
		return malformed(path, "unsupported geometry type %q", raw.Type)
	}
	if len(raw.Coordinates) == 0 || string(raw.Coordinates) == "null" {
		return malformed(path, "%s without coordinates", kind)
	}

	var err error
	switch kind {
	case KindPoint:
		var p position
		if err = unmarshalCoords(raw.Coordinates, &p, path); err == nil {
			err = checkPosition(p, path)
		}
	case KindMultiPoint:
		var ps []position
		if err = unmarshalCoords(raw.Coordinates, &ps, path); err == nil {
			err = checkPositions(ps, 1, path)
		}
	case KindLineString:
		var ls []position
		if err = unmarshalCoords(raw.Coordinates, &ls, path); err == nil {
			err = checkLine(ls, path)
		}
	case KindMultiLineString:
		var mls [][]position
		if err = unmarshalCoords(raw.Coordinates, &mls, path); err == nil {
			if len(mls) == 0 {
				return malformed(path, "%s without parts", kind)
			}
			for i, ls := range mls {
				if err = checkLine(ls, indexed(path, i)); err != nil {
					break
				}
			}
		}
	case KindPolygon:
		var poly [][]position
		if err = unmarshalCoords(raw.Coordinates, &poly, path); err == nil {
			err = checkPolygon(poly, path)
		}
	case KindMultiPolygon:
		var mp [][][]position
		if err = unmarshalCoords(raw.Coordinates, &mp, path); err == nil {
			if len(mp) == 0 {
				return malformed(path, "%s without parts", kind)
			}
			for i, poly := range mp {
				if err = checkPolygon(poly, indexed(path, i)); err != nil {
					break
				}
			}
		}
	}
	return err
}

func unmarshalCoords(data json.RawMessage, v any, path string) error {
	if err := json.Unmarshal(data, v); err != nil {
		return malformed(path, "malformed coordinates: %v", err)
	}
	return nil
}

func checkPosition(p position, path string) error {
	if len(p) < 2 {
		return malformed(path, "position needs at least 2 ordinates, got %d", len(p))
	}
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return malformed(path, "non-finite ordinate")
		}
	}
	return nil
}

func checkPositions(ps []position, min int, path string) error {
	if len(ps) < min {
		return malformed(path, "need at least %d positions, got %d", min, len(ps))
	}
	for i, p := range ps {
		if err := checkPosition(p, indexed(path, i)); err != nil {
			return err
		}
	}
	return nil
}

func checkLine(ls []position, path string) error {
	return checkPositions(ls, 2, path)
}

func checkPolygon(rings [][]position, path string) error {
	if len(rings) == 0 {
		return malformed(path, "polygon without rings")
	}
	for i, ring := range rings {
		rp := indexed(path, i)
		if err := checkPositions(ring, 4, rp); err != nil {
			return err
		}
		first, last := ring[0], ring[len(ring)-1]
		if first[0] != last[0] || first[1] != last[1] {
			return malformed(rp, "ring is not closed")
		}
	}
	return nil
}

// checkGeometry applies the same structural rules as validateGeometry to an
// in-memory geometry, so nothing is encoded that decoding would reject.
func checkGeometry(g orb.Geometry, path string) error {
	switch g := g.(type) {
	case orb.Point:
		return checkPoint(g, path)
	case orb.MultiPoint:
		return checkPoints(g, 1, path)
	case orb.LineString:
		return checkPoints(g, 2, path)
	case orb.MultiLineString:
		if len(g) == 0 {
			return malformed(path, "%s without parts", KindMultiLineString)
		}
		for i, ls := range g {
			if err := checkPoints(ls, 2, indexed(path, i)); err != nil {
				return err
			}
		}
	case orb.Polygon:
		return checkRings(g, path)
	case orb.MultiPolygon:
		if len(g) == 0 {
			return malformed(path, "%s without parts", KindMultiPolygon)
		}
		for i, poly := range g {
			if err := checkRings(poly, indexed(path, i)); err != nil {
				return err
			}
		}
	default:
		return malformed(path, "unsupported geometry type %q", g.GeoJSONType())
	}
	return nil
}

func checkPoint(p orb.Point, path string) error {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return malformed(path, "non-finite ordinate")
		}
	}
	return nil
}

func checkPoints(ps []orb.Point, min int, path string) error {
	if len(ps) < min {
		return malformed(path, "need at least %d positions, got %d", min, len(ps))
	}
	for i, p := range ps {
		if err := checkPoint(p, indexed(path, i)); err != nil {
			return err
		}
	}
	return nil
}

func checkRings(rings orb.Polygon, path string) error {
	if len(rings) == 0 {
		return malformed(path, "polygon without rings")
	}
	for i, ring := range rings {
		rp := indexed(path, i)
		if err := checkPoints(ring, 4, rp); err != nil {
			return err
		}
		if !ring.Closed() {
			return malformed(rp, "ring is not closed")
		}
	}
	return nil
}
