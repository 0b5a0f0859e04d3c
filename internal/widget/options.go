package widget

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geoform/internal/baselayer"
	"github.com/joeblew999/geoform/internal/geocodec"
	"github.com/joeblew999/geoform/internal/mapview"
	"github.com/joeblew999/geoform/internal/style"
)

const (
	// DefaultFitMaxZoom caps the zoom when fitting to an initial geometry.
	DefaultFitMaxZoom = 18

	// FitPadding is the pixel padding used when fitting to an initial geometry.
	FitPadding = 20

	// HoverClass is toggled on the map target while a feature is hovered.
	HoverClass = "hovering"
)

// Options configures a map or widget.
type Options struct {
	BaseLayers     []baselayer.Definition `json:"baselayers,omitempty" yaml:"baselayers" doc:"Background layers, bottom first"`
	View           mapview.ViewOptions    `json:"view,omitempty" yaml:"view" doc:"Initial view"`
	URL            string                 `json:"url,omitempty" yaml:"url" doc:"Feature collection to load (read-only maps)" example:"/api/v1/collections/sites/features"`
	FitSource      bool                   `json:"fit_source,omitempty" yaml:"fit_source" doc:"Fit the view to the loaded features"`
	OnFocusOnly    bool                   `json:"onFocusOnly,omitempty" yaml:"onFocusOnly" doc:"Only handle view input while the map has focus"`
	FitMaxZoom     float64                `json:"fit_max_zoom,omitempty" yaml:"fit_max_zoom" doc:"Maximum zoom when fitting to an initial geometry" default:"18"`
	GeoJSON        json.RawMessage        `json:"geojson,omitempty" yaml:"-" doc:"Initial geometry (editable widgets), as an object or a JSON string"`
	DataProjection string                 `json:"dataProjection,omitempty" yaml:"dataProjection" doc:"Projection of geojson and fetched features, when it differs from the view" example:"EPSG:4326"`
	Opacity        float64                `json:"opacity,omitempty" yaml:"opacity" minimum:"0" maximum:"1" doc:"Opacity of non-hovered features on read-only maps" default:"0.5"`

	// FetchTimeout bounds the feature collection request. Zero means none.
	FetchTimeout time.Duration `json:"-" yaml:"-"`

	// OnFeaturesLoaded is called once with the decoded features of URL.
	OnFeaturesLoaded func([]*geojson.Feature) `json:"-" yaml:"-"`
}

func (o Options) fitMaxZoom() float64 {
	if o.FitMaxZoom > 0 {
		return o.FitMaxZoom
	}
	return DefaultFitMaxZoom
}

func (o Options) opacity() float64 {
	if o.Opacity > 0 {
		return o.Opacity
	}
	return style.DefaultOpacity
}

// initialGeometry returns the geojson option as raw GeoJSON. Form
// frameworks often pass it as a JSON encoded string; that is unwrapped.
func (o Options) initialGeometry() []byte {
	raw := bytes.TrimSpace(o.GeoJSON)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			s = strings.TrimSpace(s)
			if s == "" || s == "null" {
				return nil
			}
			return []byte(s)
		}
	}
	return raw
}

// Definition declares the editing constraints of a widget.
type Definition struct {
	Point           bool              `json:"point,omitempty" doc:"Edit points"`
	Line            bool              `json:"line,omitempty" doc:"Edit lines"`
	IsMultiGeometry bool              `json:"isMultiGeometry,omitempty" doc:"Edit a Multi geometry"`
	ReadOnly        bool              `json:"readonly,omitempty" doc:"Show the geometry without editing controls"`
	Tooltips        map[string]string `json:"tooltips,omitempty" doc:"Tooltips keyed drawPointTooltip, drawLineTooltip, drawPolygonTooltip, modifyTooltip, clearTooltip"`

	// Tooltip keys may also be sent at the top level.
	_ struct{} `json:"-" additionalProperties:"true"`
}

// UnmarshalJSON also accepts tooltip keys at the top level, the way form
// templates emit them.
func (d *Definition) UnmarshalJSON(data []byte) error {
	type plain Definition
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	for k, v := range flat {
		if !strings.HasSuffix(k, "Tooltip") {
			continue
		}
		var s string
		if json.Unmarshal(v, &s) != nil {
			continue
		}
		if p.Tooltips == nil {
			p.Tooltips = map[string]string{}
		}
		p.Tooltips[k] = s
	}
	*d = Definition(p)
	return nil
}

// Kind returns the single-part kind being edited: Point, LineString or
// Polygon.
func (d Definition) Kind() geocodec.Kind {
	switch {
	case d.Point:
		return geocodec.KindPoint
	case d.Line:
		return geocodec.KindLineString
	}
	return geocodec.KindPolygon
}
