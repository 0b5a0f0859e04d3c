// Package mapview is the server-side model of a rendered map: its view,
// its layers, the vector source holding the features and the hit testing
// the pointer handlers rely on.
package mapview

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geoform/internal/projection"
)

const (
	// TileSize is the pixel size of a tile at integer zoom levels.
	TileSize = 256

	DefaultMinZoom = 0
	DefaultMaxZoom = 28

	defaultWidth  = 800
	defaultHeight = 400
)

// ErrInvalidExtent is returned for extents that are not [minx, miny, maxx, maxy].
var ErrInvalidExtent = errors.New("invalid extent")

// ViewOptions configures a View. Coordinates are in the view projection.
type ViewOptions struct {
	Center     []float64 `json:"center,omitempty" yaml:"center" doc:"View centre [x, y] in the view projection"`
	Zoom       float64   `json:"zoom,omitempty" yaml:"zoom" doc:"Initial zoom level"`
	MinZoom    float64   `json:"minZoom,omitempty" yaml:"minZoom" doc:"Minimum zoom level"`
	MaxZoom    float64   `json:"maxZoom,omitempty" yaml:"maxZoom" doc:"Maximum zoom level"`
	Extent     []float64 `json:"extent,omitempty" yaml:"extent" doc:"Static extent [minx, miny, maxx, maxy] fitted at init"`
	Projection string    `json:"projection,omitempty" yaml:"projection" doc:"View projection code" example:"EPSG:3857"`
	Width      float64   `json:"width,omitempty" yaml:"width" doc:"Viewport width in pixels"`
	Height     float64   `json:"height,omitempty" yaml:"height" doc:"Viewport height in pixels"`
}

// ExtentBound returns the static extent, if one is set.
func (o ViewOptions) ExtentBound() (orb.Bound, bool, error) {
	if len(o.Extent) == 0 {
		return orb.Bound{}, false, nil
	}
	if len(o.Extent) != 4 || o.Extent[0] > o.Extent[2] || o.Extent[1] > o.Extent[3] {
		return orb.Bound{}, false, fmt.Errorf("%w: %v", ErrInvalidExtent, o.Extent)
	}
	return orb.Bound{
		Min: orb.Point{o.Extent[0], o.Extent[1]},
		Max: orb.Point{o.Extent[2], o.Extent[3]},
	}, true, nil
}

// FitOptions controls View.Fit. Padding is top, right, bottom, left in pixels.
type FitOptions struct {
	Padding [4]float64
	MaxZoom float64
}

// View is the centre, zoom and viewport size of a map.
type View struct {
	mu            sync.RWMutex
	projection    string
	maxResolution float64
	center        orb.Point
	zoom          float64
	minZoom       float64
	maxZoom       float64
	width         float64
	height        float64
}

// NewView creates a view. The projection must be registered in reg.
func NewView(opts ViewOptions, reg *projection.Registry) (*View, error) {
	code := opts.Projection
	if code == "" {
		code = projection.EPSG3857
	}
	p, err := reg.Get(code)
	if err != nil {
		return nil, err
	}
	if _, _, err := opts.ExtentBound(); err != nil {
		return nil, err
	}

	worldWidth := p.Extent.Max[0] - p.Extent.Min[0]
	if worldWidth <= 0 {
		return nil, fmt.Errorf("projection %s has no extent", code)
	}

	v := &View{
		projection:    code,
		maxResolution: worldWidth / TileSize,
		zoom:          opts.Zoom,
		minZoom:       opts.MinZoom,
		maxZoom:       opts.MaxZoom,
		width:         opts.Width,
		height:        opts.Height,
	}
	if v.maxZoom == 0 {
		v.maxZoom = DefaultMaxZoom
	}
	if v.width <= 0 {
		v.width = defaultWidth
	}
	if v.height <= 0 {
		v.height = defaultHeight
	}
	if len(opts.Center) >= 2 {
		v.center = orb.Point{opts.Center[0], opts.Center[1]}
	}
	v.zoom = v.clampZoom(v.zoom)
	return v, nil
}

// Projection returns the view projection code.
func (v *View) Projection() string { return v.projection }

func (v *View) Center() orb.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.center
}

func (v *View) SetCenter(c orb.Point) {
	v.mu.Lock()
	v.center = c
	v.mu.Unlock()
}

func (v *View) Zoom() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.zoom
}

// SetZoom sets the zoom, clamped to the view's zoom range.
func (v *View) SetZoom(z float64) {
	v.mu.Lock()
	v.zoom = v.clampZoom(z)
	v.mu.Unlock()
}

// ZoomRange returns the minimum and maximum zoom.
func (v *View) ZoomRange() (float64, float64) { return v.minZoom, v.maxZoom }

// Size returns the viewport size in pixels.
func (v *View) Size() (w, h float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.width, v.height
}

// SetSize updates the viewport size reported by the client.
func (v *View) SetSize(w, h float64) {
	if w <= 0 || h <= 0 {
		return
	}
	v.mu.Lock()
	v.width, v.height = w, h
	v.mu.Unlock()
}

// Resolution returns map units per pixel at the current zoom.
func (v *View) Resolution() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.resolution(v.zoom)
}

func (v *View) resolution(zoom float64) float64 {
	return v.maxResolution / math.Pow(2, zoom)
}

func (v *View) clampZoom(z float64) float64 {
	return math.Max(v.minZoom, math.Min(v.maxZoom, z))
}

// Fit centres the view on b and picks the largest zoom that shows all of it
// inside the padded viewport, capped at opts.MaxZoom when set.
func (v *View) Fit(b orb.Bound, opts FitOptions) {
	v.mu.Lock()
	defer v.mu.Unlock()

	top, right, bottom, left := opts.Padding[0], opts.Padding[1], opts.Padding[2], opts.Padding[3]
	w := math.Max(v.width-left-right, 1)
	h := math.Max(v.height-top-bottom, 1)

	maxZoom := v.maxZoom
	if opts.MaxZoom > 0 && opts.MaxZoom < maxZoom {
		maxZoom = opts.MaxZoom
	}

	res := math.Max((b.Max[0]-b.Min[0])/w, (b.Max[1]-b.Min[1])/h)
	zoom := maxZoom
	if res > 0 {
		zoom = math.Min(maxZoom, math.Log2(v.maxResolution/res))
	}
	v.zoom = math.Max(v.minZoom, zoom)

	// Shift the centre so b sits in the middle of the padded box.
	r := v.resolution(v.zoom)
	c := b.Center()
	v.center = orb.Point{
		c[0] - (left-right)/2*r,
		c[1] + (top-bottom)/2*r,
	}
}

// CalculateExtent returns the area visible in the viewport.
func (v *View) CalculateExtent() orb.Bound {
	v.mu.RLock()
	defer v.mu.RUnlock()
	r := v.resolution(v.zoom)
	dx, dy := v.width/2*r, v.height/2*r
	return orb.Bound{
		Min: orb.Point{v.center[0] - dx, v.center[1] - dy},
		Max: orb.Point{v.center[0] + dx, v.center[1] + dy},
	}
}

// CoordinateFromPixel converts a viewport pixel (origin top left) to a map
// coordinate.
func (v *View) CoordinateFromPixel(px orb.Point) orb.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	r := v.resolution(v.zoom)
	return orb.Point{
		v.center[0] + (px[0]-v.width/2)*r,
		v.center[1] - (px[1]-v.height/2)*r,
	}
}

// PixelFromCoordinate is the inverse of CoordinateFromPixel.
func (v *View) PixelFromCoordinate(c orb.Point) orb.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	r := v.resolution(v.zoom)
	return orb.Point{
		(c[0]-v.center[0])/r + v.width/2,
		(v.center[1]-c[1])/r + v.height/2,
	}
}

// State is a JSON snapshot of the view.
type State struct {
	Projection string     `json:"projection"`
	Center     [2]float64 `json:"center"`
	Zoom       float64    `json:"zoom"`
	Resolution float64    `json:"resolution"`
	Extent     [4]float64 `json:"extent"`
}

// Snapshot returns the current view state.
func (v *View) Snapshot() State {
	e := v.CalculateExtent()
	c := v.Center()
	return State{
		Projection: v.projection,
		Center:     [2]float64{c[0], c[1]},
		Zoom:       v.Zoom(),
		Resolution: v.Resolution(),
		Extent:     [4]float64{e.Min[0], e.Min[1], e.Max[0], e.Max[1]},
	}
}
