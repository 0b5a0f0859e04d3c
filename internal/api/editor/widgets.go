package editor

import (
	"context"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoform/internal/controls"
	"github.com/joeblew999/geoform/internal/humastar"
	"github.com/joeblew999/geoform/internal/widget"
)

type WidgetInput struct {
	ID string `path:"id" pattern:"^[A-Za-z][A-Za-z0-9_.:-]*$" doc:"Form input id of the widget"`
}

type WidgetFragmentInput struct {
	WidgetInput
	Into string `query:"into" doc:"CSS selector whose content the widget replaces; by default the widget element is morphed by id"`
}

type WidgetSignalsInput struct {
	ID      string `path:"id" pattern:"^[A-Za-z][A-Za-z0-9_.:-]*$" doc:"Form input id of the widget"`
	Into    string `query:"into" doc:"CSS selector whose content the widget replaces"`
	RawBody []byte
}

type WidgetPressInput struct {
	ID      string `path:"id" pattern:"^[A-Za-z][A-Za-z0-9_.:-]*$" doc:"Form input id of the widget"`
	Action  string `path:"action" enum:"draw,modify,clear,locate" doc:"Control panel button"`
	RawBody []byte
}

func (h *Handler) registerWidgets(api huma.API) {
	huma.Get(api, widgetBase+"{id}", h.WidgetFragment, tags)
	huma.Put(api, widgetBase+"{id}", h.InitWidget, tags)
	huma.Post(api, widgetBase+"{id}/press/{action}", h.Press, tags)
	huma.Post(api, widgetBase+"{id}/drawend", h.DrawEnd, tags)
	huma.Post(api, widgetBase+"{id}/modifyend", h.ModifyEnd, tags)
	huma.Post(api, widgetBase+"{id}/focus", h.FocusWidget, tags)
	huma.Post(api, widgetBase+"{id}/blur", h.BlurWidget, tags)
}

func (h *Handler) sendWidget(sse humastar.SSE, w *widget.Widget, into string) {
	html := h.Render("widget", widgetView(w))
	if into != "" {
		sse.Patch(html, into)
	} else {
		sse.PatchElements(html)
	}
	sse.Signals(widgetSignals(w))
}

// WidgetFragment streams the whole widget: map, control panel and hidden
// input.
func (h *Handler) WidgetFragment(ctx context.Context, input *WidgetFragmentInput) (*huma.StreamResponse, error) {
	w, err := h.widget(input.ID)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		h.sendWidget(sse, w, input.Into)
	}), nil
}

// InitWidget initializes a widget from the options and definition signals
// and streams it.
func (h *Handler) InitWidget(ctx context.Context, input *WidgetSignalsInput) (*huma.StreamResponse, error) {
	signals, err := humastar.MustParseSignals(input.RawBody)
	if err != nil {
		return nil, err
	}
	var (
		opts widget.Options
		defs widget.Definition
	)
	if raw := signals.JSON("options"); raw != nil {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, huma.Error400BadRequest("Invalid options: " + err.Error())
		}
	}
	if raw := signals.JSON("definition"); raw != nil {
		if err := json.Unmarshal(raw, &defs); err != nil {
			return nil, huma.Error400BadRequest("Invalid definition: " + err.Error())
		}
	}

	return h.Stream(func(sse humastar.SSE) {
		if err := h.widgets.InitEditableWidget(input.ID, opts, defs); err != nil {
			sse.Error(err.Error())
			return
		}
		w, _ := h.widgets.Widget(input.ID)
		h.sendWidget(sse, w, input.Into)
	}), nil
}

// Press handles a control panel click. Locate uses the lon and lat
// signals when the browser sent a position.
func (h *Handler) Press(ctx context.Context, input *WidgetPressInput) (*huma.StreamResponse, error) {
	w, err := h.widget(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := humastar.MustParseSignals(input.RawBody)
	if err != nil {
		return nil, err
	}
	action := controls.Action(input.Action)

	return h.Stream(func(sse humastar.SSE) {
		var err error
		if action == controls.ActionLocate && signals.Has("lon") && signals.Has("lat") {
			err = w.LocateAt(signals.Float("lon"), signals.Float("lat"), signals.Float("accuracy"))
		} else {
			err = w.Press(action)
		}
		if err != nil {
			sse.Error(err.Error())
		}
		h.patchWidget(sse, w)
	}), nil
}

// DrawEnd commits the geometry signal of a finished draw.
func (h *Handler) DrawEnd(ctx context.Context, input *WidgetSignalsInput) (*huma.StreamResponse, error) {
	return h.edit(input, (*widget.Widget).CompleteDraw)
}

// ModifyEnd commits the geometry signal of a finished modification.
func (h *Handler) ModifyEnd(ctx context.Context, input *WidgetSignalsInput) (*huma.StreamResponse, error) {
	return h.edit(input, (*widget.Widget).Modify)
}

func (h *Handler) edit(input *WidgetSignalsInput, apply func(*widget.Widget, []byte) error) (*huma.StreamResponse, error) {
	w, err := h.widget(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := humastar.MustParseSignals(input.RawBody)
	if err != nil {
		return nil, err
	}
	geom := signals.JSON("geometry")
	if geom == nil {
		return nil, huma.Error400BadRequest("geometry signal is required")
	}

	return h.Stream(func(sse humastar.SSE) {
		if err := apply(w, geom); err != nil {
			sse.Error(err.Error())
		}
		// The resync also undoes a rejected edit on the client.
		h.patchWidget(sse, w)
	}), nil
}

func (h *Handler) FocusWidget(ctx context.Context, input *WidgetInput) (*huma.StreamResponse, error) {
	w, err := h.widget(input.ID)
	if err != nil {
		return nil, err
	}
	w.Map().Focus()
	return h.Stream(func(sse humastar.SSE) {}), nil
}

func (h *Handler) BlurWidget(ctx context.Context, input *WidgetInput) (*huma.StreamResponse, error) {
	w, err := h.widget(input.ID)
	if err != nil {
		return nil, err
	}
	w.Map().Blur()
	return h.Stream(func(sse humastar.SSE) {}), nil
}
