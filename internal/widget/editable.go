package widget

import (
	"errors"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geoform/internal/controls"
	"github.com/joeblew999/geoform/internal/geocodec"
	"github.com/joeblew999/geoform/internal/interaction"
	"github.com/joeblew999/geoform/internal/mapview"
	"github.com/joeblew999/geoform/internal/style"
)

// ErrReadOnly is returned for edits sent to a read-only widget.
var ErrReadOnly = errors.New("widget is read-only")

// TargetID returns the id of the map container of widget id.
func TargetID(id string) string { return "map_" + id }

// Widget is an editable geometry form field: a map, its single feature and
// the hidden input holding the encoded geometry.
type Widget struct {
	id        string
	defs      Definition
	mgr       *Manager
	m         *mapview.Map
	codec     *geocodec.Codec
	renderCtx *style.RenderContext
	field     *interaction.FieldSink
	ctrl      *interaction.Controller
	panel     *controls.Panel
}

// InitEditableWidget binds a widget to the form input id and the map
// container map_<id>. A second call for the same id does nothing.
func (m *Manager) InitEditableWidget(id string, opts Options, defs Definition) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.registry.Has(id) {
		m.logger.Debug("widget already initialized", "id", id)
		return nil
	}

	w, err := m.newWidget(id, opts, defs)
	if err != nil {
		return wrapInit("widget", id, err)
	}

	m.registry.CheckInitialized(id)
	m.mu.Lock()
	m.widgets[id] = w
	m.mu.Unlock()
	m.publish("widgets", "created", id)
	return nil
}

func (m *Manager) newWidget(id string, opts Options, defs Definition) (*Widget, error) {
	mp, err := m.build(TargetID(id), opts)
	if err != nil {
		return nil, err
	}
	codec, err := m.codec(opts, mp.View())
	if err != nil {
		return nil, err
	}

	w := &Widget{
		id:    id,
		defs:  defs,
		mgr:   m,
		m:     mp,
		codec: codec,
		field: interaction.NewFieldSink(string(opts.initialGeometry())),
	}
	source := mp.VectorLayer().Source()

	if raw := opts.initialGeometry(); raw != nil {
		g, err := codec.DecodeGeometry(raw)
		if err != nil {
			return nil, err
		}
		if err := source.AddFeature(geojson.NewFeature(g)); err != nil {
			return nil, err
		}
		mp.View().Fit(g.Bound(), mapview.FitOptions{
			Padding: [4]float64{FitPadding, FitPadding, FitPadding, FitPadding},
			MaxZoom: opts.fitMaxZoom(),
		})
	}

	if !defs.ReadOnly {
		w.ctrl, err = interaction.New(interaction.Config{
			Source: source,
			Codec:  codec,
			Sink:   w.field,
			Kind:   defs.Kind(),
			Multi:  defs.IsMultiGeometry,
			OnChange: func(interaction.Change) {
				m.publish("widgets", "changed", id)
			},
		})
		if err != nil {
			return nil, err
		}
	}
	w.panel = controls.NewPanel(w.ctrl, controls.TooltipsFromDefs(defs.Tooltips, defs.Kind()), w)

	// The icon is read once: setItemIcon only affects later widgets.
	if icon := m.ItemIcon(); icon != "" {
		w.renderCtx = style.NewIconContext(icon)
	} else {
		w.renderCtx = style.NewRenderContext(1)
	}
	mp.VectorLayer().SetStyle(style.ForContext(w.renderCtx))
	return w, nil
}

func (w *Widget) ID() string                          { return w.id }
func (w *Widget) TargetID() string                    { return TargetID(w.id) }
func (w *Widget) Definition() Definition              { return w.defs }
func (w *Widget) ReadOnly() bool                      { return w.ctrl == nil }
func (w *Widget) Map() *mapview.Map                   { return w.m }
func (w *Widget) Panel() *controls.Panel              { return w.panel }
func (w *Widget) Codec() *geocodec.Codec              { return w.codec }
func (w *Widget) RenderContext() *style.RenderContext { return w.renderCtx }

// Controller returns the interaction controller, nil when read-only.
func (w *Widget) Controller() *interaction.Controller { return w.ctrl }

// Value returns the content of the hidden input.
func (w *Widget) Value() string { return w.field.Value() }

func (w *Widget) State() interaction.State {
	if w.ctrl == nil {
		if w.m.VectorLayer().Source().Len() > 0 {
			return interaction.Editing
		}
		return interaction.Empty
	}
	return w.ctrl.State()
}

// Press performs a control panel action.
func (w *Widget) Press(a controls.Action) error {
	return w.panel.Press(a)
}

// CompleteDraw commits a geometry drawn on the client, as GeoJSON in the
// data projection.
func (w *Widget) CompleteDraw(raw []byte) error {
	if w.ctrl == nil {
		return ErrReadOnly
	}
	g, err := w.codec.DecodeGeometry(raw)
	if err != nil {
		return err
	}
	return w.ctrl.CompleteDraw(g)
}

// Modify commits a geometry changed on the client.
func (w *Widget) Modify(raw []byte) error {
	if w.ctrl == nil {
		return ErrReadOnly
	}
	g, err := w.codec.DecodeGeometry(raw)
	if err != nil {
		return err
	}
	return w.ctrl.Modify(g)
}

// Locate implements controls.Locator by centring on the last position.
func (w *Widget) Locate() error {
	return w.m.Locate()
}

// LocateAt records a lon/lat device position and centres on it.
func (w *Widget) LocateAt(lon, lat, accuracy float64) error {
	if err := w.mgr.locate(w.m, lon, lat, accuracy); err != nil {
		return err
	}
	w.mgr.publish("widgets", "changed", w.id)
	return nil
}

// Features returns the rendered features of the widget.
func (w *Widget) Features() []RenderedFeature { return render(w.m) }

// WidgetState is a snapshot of a widget for clients.
type WidgetState struct {
	ID       string                   `json:"id"`
	Target   string                   `json:"target"`
	Kind     geocodec.Kind            `json:"kind"`
	Multi    bool                     `json:"multi"`
	ReadOnly bool                     `json:"readonly"`
	State    string                   `json:"state" enum:"empty,drawing,editing"`
	Value    string                   `json:"value" doc:"Content of the hidden input"`
	Active   interaction.Interactions `json:"interactions"`
	Buttons  []controls.Button        `json:"buttons"`
	View     mapview.State            `json:"view"`
	Features []RenderedFeature        `json:"features"`
}

func (w *Widget) Snapshot() WidgetState {
	s := WidgetState{
		ID:       w.id,
		Target:   w.TargetID(),
		Kind:     w.defs.Kind(),
		Multi:    w.defs.IsMultiGeometry,
		ReadOnly: w.ReadOnly(),
		State:    w.State().String(),
		Value:    w.Value(),
		Buttons:  w.panel.Buttons(),
		View:     w.m.View().Snapshot(),
		Features: w.Features(),
	}
	if w.ctrl != nil {
		s.Active = w.ctrl.Interactions()
	}
	return s
}
