package widget

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geoform/internal/geocodec"
	"github.com/joeblew999/geoform/internal/mapview"
	"github.com/joeblew999/geoform/internal/style"
)

// ErrClosed is reported by Wait when the map was closed before its
// features loaded.
var ErrClosed = errors.New("map closed")

// MapHandle is a read-only map listing a feature collection, with hover
// highlighting and click-through navigation.
type MapHandle struct {
	id        string
	mgr       *Manager
	m         *mapview.Map
	codec     *geocodec.Codec
	renderCtx *style.RenderContext
	cancel    context.CancelFunc
	done      chan struct{}

	mu       sync.Mutex
	err      error
	features []*geojson.Feature
	loaded   bool
}

// InitReadOnlyMap builds a map in target and, when opts.URL is set, loads
// its features in the background. Base layers are usable immediately; use
// Wait or Done to observe the load. A failed load leaves an empty map and
// is reported by Err.
func (m *Manager) InitReadOnlyMap(ctx context.Context, target string, opts Options) (*MapHandle, error) {
	mp, err := m.build(target, opts)
	if err != nil {
		return nil, wrapInit("map", target, err)
	}
	codec, err := m.codec(opts, mp.View())
	if err != nil {
		return nil, wrapInit("map", target, err)
	}

	h := &MapHandle{
		id:        uuid.NewString(),
		mgr:       m,
		m:         mp,
		codec:     codec,
		renderCtx: style.NewRenderContext(opts.opacity()),
		done:      make(chan struct{}),
	}
	mp.VectorLayer().SetStyle(style.ForContext(h.renderCtx))

	// The load outlives the request that created the map.
	h.cancel = func() {}
	var fetchCtx context.Context
	if opts.URL != "" {
		fetchCtx, h.cancel = m.withTimeout(context.WithoutCancel(ctx), opts)
	} else {
		h.loaded = true
		close(h.done)
	}

	m.mu.Lock()
	m.maps[h.id] = h
	m.mu.Unlock()
	m.publish("maps", "created", h.id)

	if opts.URL != "" {
		go h.load(fetchCtx, opts)
	}
	return h, nil
}

func (h *MapHandle) load(ctx context.Context, opts Options) {
	defer close(h.done)
	defer h.cancel()

	features, err := h.fetch(ctx, opts.URL)

	h.mu.Lock()
	if h.m.Disposed() {
		h.err = ErrClosed
		h.mu.Unlock()
		return
	}
	if err != nil {
		h.err = err
		h.mu.Unlock()
		h.mgr.logger.Warn("feature load failed", "map", h.id, "url", opts.URL, "error", err)
		h.mgr.publish("maps", "failed", h.id)
		return
	}
	if err := h.m.VectorLayer().Source().AddFeatures(features); err != nil {
		h.err = err
		h.mu.Unlock()
		return
	}
	h.features = features
	h.loaded = true
	if opts.FitSource {
		if b, ok := h.m.VectorLayer().Source().Extent(); ok {
			h.m.View().Fit(b, mapview.FitOptions{})
		}
	}
	h.mu.Unlock()

	if opts.OnFeaturesLoaded != nil {
		opts.OnFeaturesLoaded(features)
	}
	h.mgr.publish("maps", "loaded", h.id)
}

func (h *MapHandle) fetch(ctx context.Context, url string) ([]*geojson.Feature, error) {
	body, err := h.mgr.fetcher.Fetch(ctx, url)
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{URL: url, Err: err}
		}
		return nil, err
	}
	return h.codec.DecodeFeatureCollection(body)
}

func (h *MapHandle) ID() string            { return h.id }
func (h *MapHandle) Target() string        { return h.m.Target() }
func (h *MapHandle) Map() *mapview.Map     { return h.m }
func (h *MapHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the features are loaded or the load failed.
func (h *MapHandle) Wait(ctx context.Context) ([]*geojson.Feature, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.features, h.err
}

// Err returns the load failure, if any.
func (h *MapHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Loaded reports whether the features were added to the map.
func (h *MapHandle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// Hover is the result of a pointer move.
type Hover struct {
	Feature  *geojson.Feature
	Hovering bool
	Changed  bool
}

// PointerMove highlights the topmost feature under px. Moves while
// dragging are ignored. A move the map does not accept input for clears
// any highlight left from before it lost focus.
func (h *MapHandle) PointerMove(px orb.Point, dragging bool) Hover {
	if dragging {
		return Hover{Feature: h.renderCtx.Hovered(), Hovering: h.renderCtx.Hovered() != nil}
	}
	var f *geojson.Feature
	if h.m.AcceptsInput() {
		if hits := h.m.FeaturesAtPixel(px, mapview.HitTolerance); len(hits) > 0 {
			f = hits[0]
		}
	}
	changed := h.setHovered(f)
	return Hover{Feature: f, Hovering: f != nil, Changed: changed}
}

func (h *MapHandle) setHovered(f *geojson.Feature) bool {
	h.m.ToggleClass(HoverClass, f != nil)
	changed := h.renderCtx.SetHovered(f)
	if changed {
		h.m.VectorLayer().Changed()
	}
	return changed
}

// Focus marks the map focused so an onFocusOnly map handles input.
func (h *MapHandle) Focus() { h.m.Focus() }

// Blur marks the map unfocused and drops the hover highlight.
func (h *MapHandle) Blur() {
	h.m.Blur()
	h.setHovered(nil)
}

// Click returns the url property of the topmost feature under px that has
// one.
func (h *MapHandle) Click(px orb.Point) (string, bool) {
	if !h.m.AcceptsInput() {
		return "", false
	}
	for _, f := range h.m.FeaturesAtPixel(px, mapview.HitTolerance) {
		if u, ok := f.Properties["url"].(string); ok && u != "" {
			return u, true
		}
	}
	return "", false
}

// Locate records a lon/lat device position and centres on it.
func (h *MapHandle) Locate(lon, lat, accuracy float64) error {
	return h.mgr.locate(h.m, lon, lat, accuracy)
}

// Close disposes the map. A load still in flight is cancelled and its
// result dropped.
func (h *MapHandle) Close() {
	h.mu.Lock()
	h.m.Dispose()
	h.mu.Unlock()
	h.cancel()
}

// Features returns the rendered features of the map.
func (h *MapHandle) Features() []RenderedFeature { return render(h.m) }

// MapState is a snapshot of a read-only map for clients.
type MapState struct {
	ID       string            `json:"id"`
	Target   string            `json:"target"`
	Loaded   bool              `json:"loaded"`
	Error    string            `json:"error,omitempty"`
	Classes  []string          `json:"classes"`
	View     mapview.State     `json:"view"`
	Features []RenderedFeature `json:"features"`
}

func (h *MapHandle) Snapshot() MapState {
	s := MapState{
		ID:       h.id,
		Target:   h.Target(),
		Loaded:   h.Loaded(),
		Classes:  h.m.Classes(),
		View:     h.m.View().Snapshot(),
		Features: h.Features(),
	}
	if err := h.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}
