package mapview

import (
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/joeblew999/geoform/internal/style"
)

// HitTolerance is the pixel tolerance used for hover and click hit tests.
const HitTolerance = 3

var (
	ErrGeolocationDisabled = errors.New("geolocation is not enabled")
	ErrNoPosition          = errors.New("no position reported yet")
)

// Options configures a Map.
type Options struct {
	Target      string
	View        *View
	Layers      []Layer
	Vector      *VectorLayer
	OnFocusOnly bool
}

// Map stacks base layers under one vector layer, with a view.
type Map struct {
	target      string
	view        *View
	layers      []Layer
	vector      *VectorLayer
	onFocusOnly bool

	mu          sync.RWMutex
	classes     map[string]bool
	attrs       map[string]string
	focused     bool
	geolocation *Geolocation
	disposed    bool
}

// New creates a map. With OnFocusOnly the target gets a tabindex and
// pointer input is ignored until it has focus.
func New(opts Options) *Map {
	m := &Map{
		target:      opts.Target,
		view:        opts.View,
		layers:      opts.Layers,
		vector:      opts.Vector,
		onFocusOnly: opts.OnFocusOnly,
		classes:     map[string]bool{},
		attrs:       map[string]string{},
	}
	if m.onFocusOnly {
		m.attrs["tabindex"] = "0"
	}
	return m
}

func (m *Map) Target() string            { return m.target }
func (m *Map) View() *View               { return m.view }
func (m *Map) VectorLayer() *VectorLayer { return m.vector }

// Layers returns the base layers followed by the vector layer.
func (m *Map) Layers() []Layer {
	out := slices.Clone(m.layers)
	if m.vector != nil {
		out = append(out, m.vector)
	}
	return out
}

// ToggleClass adds or removes a class on the target element and reports
// whether that changed anything.
func (m *Map) ToggleClass(name string, on bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.classes[name] == on {
		return false
	}
	if on {
		m.classes[name] = true
	} else {
		delete(m.classes, name)
	}
	return true
}

func (m *Map) HasClass(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.classes[name]
}

// Classes returns the target's classes, sorted.
func (m *Map) Classes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.classes))
	for c := range m.classes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (m *Map) SetAttribute(name, value string) {
	m.mu.Lock()
	m.attrs[name] = value
	m.mu.Unlock()
}

func (m *Map) Attribute(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.attrs[name]
	return v, ok
}

// Attributes returns a copy of the target's attributes.
func (m *Map) Attributes() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.attrs))
	for k, v := range m.attrs {
		out[k] = v
	}
	return out
}

func (m *Map) Focus() {
	m.mu.Lock()
	m.focused = true
	m.mu.Unlock()
}

func (m *Map) Blur() {
	m.mu.Lock()
	m.focused = false
	m.mu.Unlock()
}

// AcceptsInput reports whether pointer and edit input should be handled.
func (m *Map) AcceptsInput() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.disposed && (!m.onFocusOnly || m.focused)
}

// EnableGeolocation starts tracking the device position.
func (m *Map) EnableGeolocation() *Geolocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.geolocation == nil {
		m.geolocation = &Geolocation{}
	}
	return m.geolocation
}

// Geolocation returns the tracker, or nil when not enabled.
func (m *Map) Geolocation() *Geolocation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.geolocation
}

// Locate centres the view on the last tracked position.
func (m *Map) Locate() error {
	g := m.Geolocation()
	if g == nil {
		return ErrGeolocationDisabled
	}
	pos, ok := g.Position()
	if !ok {
		return ErrNoPosition
	}
	m.view.SetCenter(pos)
	m.vector.Changed()
	return nil
}

// Dispose marks the map as torn down. Late updates must check Disposed.
func (m *Map) Dispose() {
	m.mu.Lock()
	m.disposed = true
	m.mu.Unlock()
}

func (m *Map) Disposed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disposed
}

// FeaturesAtPixel returns the features of the vector layer within
// tolerance pixels of px, topmost first. Features without geometry are
// never hit.
func (m *Map) FeaturesAtPixel(px orb.Point, tolerance float64) []*geojson.Feature {
	if m.vector == nil {
		return nil
	}
	coord := m.view.CoordinateFromPixel(px)
	tol := tolerance * m.view.Resolution()

	features := m.vector.Source().Features()
	var hits []*geojson.Feature
	for i := len(features) - 1; i >= 0; i-- {
		f := features[i]
		if f.Geometry != nil && hit(f.Geometry, coord, tol) {
			hits = append(hits, f)
		}
	}
	return hits
}

func hit(g orb.Geometry, p orb.Point, tol float64) bool {
	if !g.Bound().Pad(tol).Contains(p) {
		return false
	}
	switch g := g.(type) {
	case orb.Polygon:
		if planar.PolygonContains(g, p) {
			return true
		}
	case orb.MultiPolygon:
		if planar.MultiPolygonContains(g, p) {
			return true
		}
	}
	return planar.DistanceFrom(g, p) <= tol
}

// Rendered is a feature with the style it is painted with.
type Rendered struct {
	Feature *geojson.Feature
	Style   style.Spec
}

// Render evaluates the style function for every feature, in paint order.
func (m *Map) Render() []Rendered {
	if m.vector == nil {
		return nil
	}
	features := m.vector.Source().Features()
	out := make([]Rendered, 0, len(features))
	for _, f := range features {
		out = append(out, Rendered{Feature: f, Style: m.vector.StyleFor(f)})
	}
	return out
}

// Geolocation holds the last device position reported by the client, in
// the view projection.
type Geolocation struct {
	mu       sync.RWMutex
	position orb.Point
	accuracy float64
	known    bool
}

// SetPosition records a new position.
func (g *Geolocation) SetPosition(p orb.Point, accuracy float64) {
	g.mu.Lock()
	g.position, g.accuracy, g.known = p, accuracy, true
	g.mu.Unlock()
}

func (g *Geolocation) Position() (orb.Point, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.position, g.known
}

func (g *Geolocation) Accuracy() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.accuracy
}
