package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoform/internal/controls"
	"github.com/joeblew999/geoform/internal/humastar"
	"github.com/joeblew999/geoform/internal/interaction"
	"github.com/joeblew999/geoform/internal/widget"
)

type WidgetIDInput struct {
	ID string `path:"id" pattern:"^[A-Za-z][A-Za-z0-9_.:-]*$" doc:"Form input id of the widget" example:"geom"`
}

type InitWidgetInput struct {
	WidgetIDInput
	Body struct {
		Options    widget.Options    `json:"options,omitempty" doc:"Map options"`
		Definition widget.Definition `json:"definition,omitempty" doc:"Editing constraints"`
	}
}

// WidgetBody is a widget snapshot with its state-dependent actions.
type WidgetBody struct {
	widget.WidgetState
}

// Actions offers one link per enabled button, plus the geometry endpoint
// the current state accepts.
func (b WidgetBody) Actions() []humastar.Action {
	base := "/api/v1/widgets/" + b.ID
	var actions []humastar.Action
	for _, btn := range b.Buttons {
		if !btn.Enabled {
			continue
		}
		actions = append(actions, humastar.Action{
			Rel:    string(btn.Action),
			Href:   base + "/press/" + string(btn.Action),
			Method: http.MethodPost,
			Title:  btn.Tooltip,
		})
	}
	switch b.State {
	case interaction.Drawing.String():
		actions = append(actions, humastar.Action{Rel: "complete", Href: base + "/draw", Method: http.MethodPost, Title: "Commit the drawn geometry"})
	case interaction.Editing.String():
		if !b.ReadOnly {
			actions = append(actions, humastar.Action{Rel: "modify", Href: base + "/geometry", Method: http.MethodPut, Title: "Replace the geometry"})
		}
	}
	return actions
}

type WidgetOutput struct {
	Body WidgetBody
}

type GeometryInput struct {
	WidgetIDInput
	Body struct {
		Geometry json.RawMessage `json:"geometry" required:"true" doc:"GeoJSON geometry in the data projection"`
	}
}

type PressInput struct {
	WidgetIDInput
	Action string `path:"action" enum:"draw,modify,clear,locate" doc:"Control panel button"`
}

// LocateBody is a device position reported by the browser.
type LocateBody struct {
	Lon      float64 `json:"lon" minimum:"-180" maximum:"180" doc:"Longitude in degrees"`
	Lat      float64 `json:"lat" minimum:"-90" maximum:"90" doc:"Latitude in degrees"`
	Accuracy float64 `json:"accuracy,omitempty" minimum:"0" doc:"Accuracy radius in metres"`
}

type WidgetLocateInput struct {
	WidgetIDInput
	Body LocateBody
}

// RegisterWidgets registers the editable widget routes.
func (h *APIHandler) RegisterWidgets(api huma.API) {
	tags := huma.OperationTags("widgets")
	huma.Get(api, "/api/v1/widgets", h.ListWidgets, tags)
	huma.Register(api, huma.Operation{
		OperationID:   "init-widget",
		Method:        http.MethodPut,
		Path:          "/api/v1/widgets/{id}",
		Summary:       "Initialize an editable widget",
		Description:   "Binds a widget to a form input. Initializing an id twice keeps the first widget.",
		Tags:          []string{"widgets"},
		DefaultStatus: http.StatusOK,
	}, h.InitWidget)
	huma.Get(api, "/api/v1/widgets/{id}", h.GetWidget, tags)
	huma.Post(api, "/api/v1/widgets/{id}/press/{action}", h.PressWidget, tags)
	huma.Post(api, "/api/v1/widgets/{id}/draw", h.CompleteDraw, tags)
	huma.Put(api, "/api/v1/widgets/{id}/geometry", h.ModifyGeometry, tags)
	huma.Post(api, "/api/v1/widgets/{id}/locate", h.LocateWidget, tags)
}

func (h *APIHandler) widget(id string) (*widget.Widget, error) {
	w, ok := h.svc.Widgets.Widget(id)
	if !ok {
		return nil, huma.Error404NotFound("widget " + id + " not initialized")
	}
	return w, nil
}

func widgetOutput(w *widget.Widget) *WidgetOutput {
	return &WidgetOutput{Body: WidgetBody{w.Snapshot()}}
}

func (h *APIHandler) ListWidgets(ctx context.Context, input *struct{}) (*struct{ Body []string }, error) {
	return &struct{ Body []string }{Body: h.svc.Widgets.WidgetIDs()}, nil
}

func (h *APIHandler) InitWidget(ctx context.Context, input *InitWidgetInput) (*WidgetOutput, error) {
	if err := h.svc.Widgets.InitEditableWidget(input.ID, input.Body.Options, input.Body.Definition); err != nil {
		return nil, statusError(err)
	}
	w, err := h.widget(input.ID)
	if err != nil {
		return nil, err
	}
	return widgetOutput(w), nil
}

func (h *APIHandler) GetWidget(ctx context.Context, input *WidgetIDInput) (*WidgetOutput, error) {
	w, err := h.widget(input.ID)
	if err != nil {
		return nil, err
	}
	return widgetOutput(w), nil
}

func (h *APIHandler) PressWidget(ctx context.Context, input *PressInput) (*WidgetOutput, error) {
	w, err := h.widget(input.ID)
	if err != nil {
		return nil, err
	}
	if err := w.Press(controls.Action(input.Action)); err != nil {
		return nil, statusError(err)
	}
	return widgetOutput(w), nil
}

func (h *APIHandler) CompleteDraw(ctx context.Context, input *GeometryInput) (*WidgetOutput, error) {
	w, err := h.widget(input.ID)
	if err != nil {
		return nil, err
	}
	if err := w.CompleteDraw(input.Body.Geometry); err != nil {
		return nil, statusError(err)
	}
	return widgetOutput(w), nil
}

func (h *APIHandler) ModifyGeometry(ctx context.Context, input *GeometryInput) (*WidgetOutput, error) {
	w, err := h.widget(input.ID)
	if err != nil {
		return nil, err
	}
	if err := w.Modify(input.Body.Geometry); err != nil {
		return nil, statusError(err)
	}
	return widgetOutput(w), nil
}

func (h *APIHandler) LocateWidget(ctx context.Context, input *WidgetLocateInput) (*WidgetOutput, error) {
	w, err := h.widget(input.ID)
	if err != nil {
		return nil, err
	}
	b := input.Body
	if err := w.LocateAt(b.Lon, b.Lat, b.Accuracy); err != nil {
		return nil, statusError(err)
	}
	return widgetOutput(w), nil
}
