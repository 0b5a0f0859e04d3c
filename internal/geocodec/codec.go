// Package geocodec converts between GeoJSON text and the orb geometries and
// features the map engine works with.
//
// Input is validated against the editor's schema before conversion: only
// Point, LineString, Polygon and their Multi variants are accepted, and
// coordinate arrays must have the right nesting and sizes. Anything else
// fails with ErrMalformedGeometry. Positions are 2D; extra ordinates are
// dropped.
package geocodec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geoform/internal/projection"
)

// ErrMalformedGeometry is returned when input does not conform to the schema.
var ErrMalformedGeometry = errors.New("malformed geometry")

// MalformedError describes why an input was rejected.
type MalformedError struct {
	Path   string
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Path == "" {
		return "malformed geometry: " + e.Reason
	}
	return fmt.Sprintf("malformed geometry at %s: %s", e.Path, e.Reason)
}

func (e *MalformedError) Unwrap() error { return ErrMalformedGeometry }

func malformed(path, format string, args ...any) error {
	return &MalformedError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func indexed(path string, i int) string {
	if path == "" {
		return fmt.Sprintf("[%d]", i)
	}
	return fmt.Sprintf("%s[%d]", path, i)
}

// Kind is a GeoJSON geometry type name.
type Kind string

const (
	KindPoint           Kind = "Point"
	KindLineString      Kind = "LineString"
	KindPolygon         Kind = "Polygon"
	KindMultiPoint      Kind = "MultiPoint"
	KindMultiLineString Kind = "MultiLineString"
	KindMultiPolygon    Kind = "MultiPolygon"
)

// Supported reports whether the codec accepts geometries of this kind.
func (k Kind) Supported() bool {
	switch k {
	case KindPoint, KindLineString, KindPolygon,
		KindMultiPoint, KindMultiLineString, KindMultiPolygon:
		return true
	}
	return false
}

// Multi returns the Multi variant of a single kind. Multi kinds map to themselves.
func (k Kind) Multi() Kind {
	switch k {
	case KindPoint:
		return KindMultiPoint
	case KindLineString:
		return KindMultiLineString
	case KindPolygon:
		return KindMultiPolygon
	}
	return k
}

// Single returns the single-part variant of a Multi kind.
func (k Kind) Single() Kind {
	switch k {
	case KindMultiPoint:
		return KindPoint
	case KindMultiLineString:
		return KindLineString
	case KindMultiPolygon:
		return KindPolygon
	}
	return k
}

// IsMulti reports whether k is a Multi kind.
func (k Kind) IsMulti() bool { return k.Single() != k }

// Label is the short name used in tooltip keys: Point, Line or Polygon.
func (k Kind) Label() string {
	if k.Single() == KindLineString {
		return "Line"
	}
	return string(k.Single())
}

// KindOf returns the kind of g, or "" for nil.
func KindOf(g orb.Geometry) Kind {
	if g == nil {
		return ""
	}
	return Kind(g.GeoJSONType())
}

// Codec decodes and encodes GeoJSON. The zero value performs no coordinate
// transforms; use WithProjections to read data in one CRS into another.
type Codec struct {
	registry          *projection.Registry
	dataProjection    string
	featureProjection string
}

// Option configures a Codec.
type Option func(*Codec)

// WithProjections makes the codec transform from dataProjection on decode,
// and back to it on encode, with features held in featureProjection.
func WithProjections(reg *projection.Registry, dataProjection, featureProjection string) Option {
	return func(c *Codec) {
		c.registry = reg
		c.dataProjection = dataProjection
		c.featureProjection = featureProjection
	}
}

// New creates a codec.
func New(opts ...Option) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default is the projection-less codec.
var Default = New()

func (c *Codec) transforms() bool {
	return c.registry != nil && c.dataProjection != "" && c.featureProjection != "" &&
		c.dataProjection != c.featureProjection
}

// Check verifies the codec's projections are registered.
func (c *Codec) Check() error {
	if !c.transforms() {
		return nil
	}
	_, err := c.registry.Transform(c.dataProjection, c.featureProjection)
	return err
}

// DecodeGeometry parses a GeoJSON geometry object.
func (c *Codec) DecodeGeometry(data []byte) (orb.Geometry, error) {
	if err := validateGeometry(data, ""); err != nil {
		return nil, err
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, malformed("", "%v", err)
	}
	return c.read(g.Geometry())
}

// DecodeFeatureCollection parses a GeoJSON FeatureCollection document.
// Features with a null geometry are kept with a nil Geometry.
func (c *Codec) DecodeFeatureCollection(data []byte) ([]*geojson.Feature, error) {
	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string          `json:"type"`
			Geometry json.RawMessage `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed("", "not a feature collection: %v", err)
	}
	if doc.Type != "FeatureCollection" {
		return nil, malformed("type", "expected FeatureCollection, got %q", doc.Type)
	}
	for i, f := range doc.Features {
		path := indexed("features", i)
		if f.Type != "Feature" {
			return nil, malformed(path, "expected Feature, got %q", f.Type)
		}
		if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
			continue
		}
		if err := validateGeometry(f.Geometry, path+".geometry"); err != nil {
			return nil, err
		}
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, malformed("", "%v", err)
	}
	for _, f := range fc.Features {
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		if f.Geometry == nil {
			continue
		}
		if f.Geometry, err = c.read(f.Geometry); err != nil {
			return nil, err
		}
	}
	return fc.Features, nil
}

// EncodeGeometry renders g as a GeoJSON geometry object.
func (c *Codec) EncodeGeometry(g orb.Geometry) ([]byte, error) {
	if g == nil {
		return nil, malformed("", "nil geometry")
	}
	if !KindOf(g).Supported() {
		return nil, malformed("", "unsupported geometry type %q", g.GeoJSONType())
	}
	out, err := c.write(g)
	if err != nil {
		return nil, err
	}
	if err := checkGeometry(out, ""); err != nil {
		return nil, err
	}
	return json.Marshal(geojson.NewGeometry(out))
}

// EncodeFeatureCollection renders features as a GeoJSON FeatureCollection.
func (c *Codec) EncodeFeatureCollection(features []*geojson.Feature) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for i, f := range features {
		out := geojson.NewFeature(nil)
		out.ID = f.ID
		for k, v := range f.Properties {
			out.Properties[k] = v
		}
		if f.Geometry != nil {
			if !KindOf(f.Geometry).Supported() {
				return nil, malformed(indexed("features", i), "unsupported geometry type %q", f.Geometry.GeoJSONType())
			}
			g, err := c.write(f.Geometry)
			if err != nil {
				return nil, err
			}
			if err := checkGeometry(g, indexed("features", i)+".geometry"); err != nil {
				return nil, err
			}
			out.Geometry = g
		}
		fc.Append(out)
	}
	return json.Marshal(fc)
}

// read moves a decoded geometry from the data to the feature projection.
func (c *Codec) read(g orb.Geometry) (orb.Geometry, error) {
	if !c.transforms() {
		return g, nil
	}
	return c.registry.TransformGeometry(g, c.dataProjection, c.featureProjection)
}

// write moves a geometry from the feature to the data projection.
func (c *Codec) write(g orb.Geometry) (orb.Geometry, error) {
	if !c.transforms() {
		return g, nil
	}
	return c.registry.TransformGeometry(g, c.featureProjection, c.dataProjection)
}

// DecodeGeometry decodes with the Default codec.
func DecodeGeometry(data []byte) (orb.Geometry, error) { return Default.DecodeGeometry(data) }

// DecodeFeatureCollection decodes with the Default codec.
func DecodeFeatureCollection(data []byte) ([]*geojson.Feature, error) {
	return Default.DecodeFeatureCollection(data)
}

// EncodeGeometry encodes with the Default codec.
func EncodeGeometry(g orb.Geometry) ([]byte, error) { return Default.EncodeGeometry(g) }
