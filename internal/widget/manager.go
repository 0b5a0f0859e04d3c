// Package widget composes maps and editable geometry widgets out of base
// layers, a styled vector layer, the interaction controller and the
// control panel, and keeps the process-wide widget and projection state.
package widget

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geoform/internal/baselayer"
	"github.com/joeblew999/geoform/internal/geocodec"
	"github.com/joeblew999/geoform/internal/mapview"
	"github.com/joeblew999/geoform/internal/projection"
	"github.com/joeblew999/geoform/internal/service"
	"github.com/joeblew999/geoform/internal/style"
)

// Config wires a Manager. Zero fields get working defaults.
type Config struct {
	Projections  *projection.Registry
	BaseLayers   *baselayer.Factory
	Fetcher      Fetcher
	Bus          *service.EventBus
	Logger       *slog.Logger
	FetchTimeout time.Duration
}

// Manager owns every widget and map of the process.
type Manager struct {
	projections  *projection.Registry
	factory      *baselayer.Factory
	fetcher      Fetcher
	bus          *service.EventBus
	logger       *slog.Logger
	fetchTimeout time.Duration
	registry     *Registry

	// initMu serializes editable widget initialization.
	initMu sync.Mutex

	mu       sync.RWMutex
	itemIcon string
	widgets  map[string]*Widget
	maps     map[string]*MapHandle
}

func NewManager(cfg Config) *Manager {
	m := &Manager{
		projections:  cfg.Projections,
		factory:      cfg.BaseLayers,
		fetcher:      cfg.Fetcher,
		bus:          cfg.Bus,
		logger:       cfg.Logger,
		fetchTimeout: cfg.FetchTimeout,
		registry:     NewRegistry(),
		widgets:      map[string]*Widget{},
		maps:         map[string]*MapHandle{},
	}
	if m.projections == nil {
		m.projections = projection.Default
	}
	if m.factory == nil {
		m.factory = &baselayer.Factory{}
	}
	if m.fetcher == nil {
		m.fetcher = NewHTTPFetcher("", 0)
	}
	if m.bus == nil {
		m.bus = service.NewEventBus()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Projections returns the projection registry maps are built with.
func (m *Manager) Projections() *projection.Registry { return m.projections }

// Bus returns the bus widget and map changes are published on.
func (m *Manager) Bus() *service.EventBus { return m.bus }

// Registry returns the set of initialized widget ids.
func (m *Manager) Registry() *Registry { return m.registry }

// RegisterProjection makes a CRS code usable by maps created afterwards.
// Redefining a code overwrites it; that is logged.
func (m *Manager) RegisterProjection(code, def string) error {
	replaced, err := m.projections.Register(code, def)
	if err != nil {
		return err
	}
	if replaced {
		m.logger.Warn("projection redefined", "code", code)
	}
	m.publish("projections", "registered", code)
	return nil
}

// SetItemIcon forces every widget initialized afterwards to render its
// features with url. Empty clears it.
func (m *Manager) SetItemIcon(url string) {
	m.mu.Lock()
	m.itemIcon = url
	m.mu.Unlock()
	m.publish("icon", "updated", url)
}

func (m *Manager) ItemIcon() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.itemIcon
}

// Widget returns an editable widget by id.
func (m *Manager) Widget(id string) (*Widget, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.widgets[id]
	return w, ok
}

// WidgetIDs returns the ids of every widget, sorted.
func (m *Manager) WidgetIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.widgets))
	for id := range m.widgets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Map returns a read-only map by id.
func (m *Manager) Map(id string) (*MapHandle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.maps[id]
	return h, ok
}

// MapIDs returns the ids of every open map, sorted.
func (m *Manager) MapIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.maps))
	for id := range m.maps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseMap tears a map down. A fetch still in flight is dropped.
func (m *Manager) CloseMap(id string) bool {
	m.mu.Lock()
	h, ok := m.maps[id]
	delete(m.maps, id)
	m.mu.Unlock()
	if ok {
		h.Close()
		m.publish("maps", "deleted", id)
	}
	return ok
}

func (m *Manager) publish(resource, action, id string) {
	m.bus.Publish(service.Event{Resource: resource, Action: action, ID: id})
}

// codec returns the codec reading data in opts.DataProjection into the
// view projection.
func (m *Manager) codec(opts Options, view *mapview.View) (*geocodec.Codec, error) {
	if opts.DataProjection == "" {
		return geocodec.Default, nil
	}
	c := geocodec.New(geocodec.WithProjections(m.projections, opts.DataProjection, view.Projection()))
	if err := c.Check(); err != nil {
		return nil, err
	}
	return c, nil
}

// build creates the map shared by both widget kinds: base layers, a vector
// layer, the view fitted to the static extent, and geolocation.
func (m *Manager) build(target string, opts Options) (*mapview.Map, error) {
	view, err := mapview.NewView(opts.View, m.projections)
	if err != nil {
		return nil, err
	}
	layers, err := m.factory.BuildAll(opts.BaseLayers)
	if err != nil {
		return nil, err
	}
	base := make([]mapview.Layer, len(layers))
	for i, l := range layers {
		base[i] = l
	}

	mp := mapview.New(mapview.Options{
		Target:      target,
		View:        view,
		Layers:      base,
		Vector:      mapview.NewVectorLayer(mapview.NewVectorSource()),
		OnFocusOnly: opts.OnFocusOnly,
	})
	if extent, ok, _ := opts.View.ExtentBound(); ok {
		view.Fit(extent, mapview.FitOptions{})
	}
	mp.EnableGeolocation()
	return mp, nil
}

// locate records a lon/lat device position and centres the map on it.
func (m *Manager) locate(mp *mapview.Map, lon, lat float64, accuracy float64) error {
	pos, err := m.projections.Transform(projection.EPSG4326, mp.View().Projection())
	if err != nil {
		return err
	}
	g := mp.Geolocation()
	if g == nil {
		return mapview.ErrGeolocationDisabled
	}
	g.SetPosition(pos(orb.Point{lon, lat}), accuracy)
	return mp.Locate()
}

// RenderedFeature is a feature with its resolved paint, as sent to clients.
type RenderedFeature struct {
	Feature *geojson.Feature `json:"feature"`
	Style   style.Spec       `json:"style"`
}

func render(mp *mapview.Map) []RenderedFeature {
	rendered := mp.Render()
	out := make([]RenderedFeature, len(rendered))
	for i, r := range rendered {
		out[i] = RenderedFeature{Feature: r.Feature, Style: r.Style}
	}
	return out
}

func (m *Manager) withTimeout(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	timeout := opts.FetchTimeout
	if timeout == 0 {
		timeout = m.fetchTimeout
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func wrapInit(kind, id string, err error) error {
	return fmt.Errorf("init %s %q: %w", kind, id, err)
}
