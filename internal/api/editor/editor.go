// Package editor serves the Datastar SSE surface of the widgets: HTML
// fragments for the map, control panel and hidden input, and the pointer
// and edit events the browser posts back.
package editor

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoform/internal/controls"
	"github.com/joeblew999/geoform/internal/featurestore"
	"github.com/joeblew999/geoform/internal/humastar"
	"github.com/joeblew999/geoform/internal/mapview"
	"github.com/joeblew999/geoform/internal/service"
	"github.com/joeblew999/geoform/internal/templates"
	"github.com/joeblew999/geoform/internal/widget"
)

const (
	widgetBase = "/api/v1/editor/widgets/"
	mapBase    = "/api/v1/editor/maps/"
)

// Handler holds the SSE handlers. Features may be nil.
type Handler struct {
	humastar.Handler
	widgets  *widget.Manager
	presets  *service.PresetService
	sources  *service.SourceService
	tiles    *service.TileService
	features *featurestore.Store

	invalidate func()
}

// Config wires a Handler.
type Config struct {
	Renderer *templates.Renderer
	Logger   *slog.Logger
	Widgets  *widget.Manager
	Presets  *service.PresetService
	Sources  *service.SourceService
	Tiles    *service.TileService
	Features *featurestore.Store

	// Invalidate drops cached feature collections after an import or drop.
	Invalidate func()
}

func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Invalidate == nil {
		cfg.Invalidate = func() {}
	}
	return &Handler{
		Handler:  humastar.Handler{Renderer: cfg.Renderer, Logger: cfg.Logger},
		widgets:  cfg.Widgets,
		presets:  cfg.Presets,
		sources:  cfg.Sources,
		tiles:    cfg.Tiles,
		features: cfg.Features,

		invalidate: cfg.Invalidate,
	}
}

// RegisterRoutes registers every editor route. They are tagged "editor"
// so the hypermedia links skip them.
func (h *Handler) RegisterRoutes(api huma.API) {
	h.registerWidgets(api)
	h.registerMaps(api)
	h.registerEvents(api)
	h.registerLayers(api)
	h.registerSources(api)
	h.registerTiles(api)
	h.registerCollections(api)
}

var tags = huma.OperationTags("editor")

// MapView is the data of the "map" fragment.
type MapView struct {
	Target   string
	Classes  string
	TabIndex string
	State    string
	Base     string
	ReadOnly bool
}

// WidgetView is the data of the "widget", "control-panel" and
// "hidden-input" fragments.
type WidgetView struct {
	ID      string
	Base    string
	Value   string
	Signals string
	Buttons []controls.Button
	Map     MapView
}

func mapView(base string, m *mapview.Map, state any, readOnly bool) MapView {
	tab, _ := m.Attribute("tabindex")
	return MapView{
		Target:   m.Target(),
		Classes:  strings.Join(append([]string{"geoform-map"}, m.Classes()...), " "),
		TabIndex: tab,
		State:    marshal(state),
		Base:     base,
		ReadOnly: readOnly,
	}
}

func widgetView(w *widget.Widget) WidgetView {
	base := widgetBase + w.ID()
	snap := w.Snapshot()
	return WidgetView{
		ID:      w.ID(),
		Base:    base,
		Value:   w.Value(),
		Signals: marshal(map[string]any{"geometry": nil}),
		Buttons: w.Panel().Buttons(),
		Map:     mapView(base, w.Map(), snap, false),
	}
}

func readOnlyView(m *widget.MapHandle) MapView {
	return mapView(mapBase+m.ID(), m.Map(), m.Snapshot(), true)
}

func marshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// widgetSignals is the per-widget state mirrored into the page signals.
func widgetSignals(w *widget.Widget) map[string]any {
	return map[string]any{
		"geoform": map[string]any{
			w.ID(): map[string]any{
				"state": w.State().String(),
				"value": w.Value(),
			},
		},
	}
}

// patchWidget morphs the map, control panel and hidden input of w. The
// fragments carry their ids so no selector is needed.
func (h *Handler) patchWidget(sse humastar.SSE, w *widget.Widget) {
	v := widgetView(w)
	sse.PatchElements(h.Render("map", v.Map))
	sse.PatchElements(h.Render("control-panel", v))
	sse.PatchElements(h.Render("hidden-input", v))
	sse.Signals(widgetSignals(w))
}

func (h *Handler) patchMap(sse humastar.SSE, m *widget.MapHandle) {
	sse.PatchElements(h.Render("map", readOnlyView(m)))
}

func (h *Handler) publish(resource, action, id string) {
	h.widgets.Bus().Publish(service.Event{Resource: resource, Action: action, ID: id})
}

func (h *Handler) widget(id string) (*widget.Widget, error) {
	w, ok := h.widgets.Widget(id)
	if !ok {
		return nil, huma.Error404NotFound("widget " + id + " not initialized")
	}
	return w, nil
}

func (h *Handler) mapHandle(id string) (*widget.MapHandle, error) {
	m, ok := h.widgets.Map(id)
	if !ok {
		return nil, huma.Error404NotFound("map " + id + " not found")
	}
	return m, nil
}
