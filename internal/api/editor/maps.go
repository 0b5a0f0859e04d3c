package editor

import (
	"context"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/geoform/internal/humastar"
	"github.com/joeblew999/geoform/internal/widget"
)

type MapInput struct {
	ID string `path:"id" format:"uuid" doc:"Map handle id"`
}

type MapFragmentInput struct {
	MapInput
	Into string `query:"into" doc:"CSS selector whose content the map replaces; by default the target is morphed by id"`
}

type MapSignalsInput struct {
	ID      string `path:"id" format:"uuid" doc:"Map handle id"`
	RawBody []byte
}

type CreateMapInput struct {
	Into    string `query:"into" doc:"CSS selector whose content the map replaces"`
	RawBody []byte
}

func (h *Handler) registerMaps(api huma.API) {
	huma.Post(api, "/api/v1/editor/maps", h.CreateMap, tags)
	huma.Get(api, mapBase+"{id}", h.MapFragment, tags)
	huma.Post(api, mapBase+"{id}/pointer", h.Pointer, tags)
	huma.Post(api, mapBase+"{id}/click", h.Click, tags)
	huma.Post(api, mapBase+"{id}/focus", h.FocusMap, tags)
	huma.Post(api, mapBase+"{id}/blur", h.BlurMap, tags)
}

func (h *Handler) sendMap(sse humastar.SSE, m *widget.MapHandle, into string) {
	html := h.Render("map", readOnlyView(m))
	if into != "" {
		sse.Patch(html, into)
	} else {
		sse.PatchElements(html)
	}
}

// CreateMap builds a read-only map from the target and options signals.
// The map is streamed once with its base layers and again when the
// features have loaded or failed to.
func (h *Handler) CreateMap(ctx context.Context, input *CreateMapInput) (*huma.StreamResponse, error) {
	signals, err := humastar.MustParseSignals(input.RawBody)
	if err != nil {
		return nil, err
	}
	target := signals.String("target")
	if target == "" {
		return nil, huma.Error400BadRequest("target signal is required")
	}
	var opts widget.Options
	if raw := signals.JSON("options"); raw != nil {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, huma.Error400BadRequest("Invalid options: " + err.Error())
		}
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			m, err := h.widgets.InitReadOnlyMap(humaCtx.Context(), target, opts)
			if err != nil {
				sse.Error(err.Error())
				return
			}
			sse.Signals(map[string]any{"mapId": m.ID()})
			h.sendMap(sse, m, input.Into)

			if _, err := m.Wait(humaCtx.Context()); err != nil {
				if humaCtx.Context().Err() != nil {
					return
				}
				sse.Error(err.Error())
			}
			h.sendMap(sse, m, "")
		},
	}, nil
}

func (h *Handler) MapFragment(ctx context.Context, input *MapFragmentInput) (*huma.StreamResponse, error) {
	m, err := h.mapHandle(input.ID)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		h.sendMap(sse, m, input.Into)
	}), nil
}

func pixel(s humastar.Signals) orb.Point {
	return orb.Point{s.Float("x"), s.Float("y")}
}

// Pointer highlights the feature under the x and y signals. Only a change
// of highlight is streamed back.
func (h *Handler) Pointer(ctx context.Context, input *MapSignalsInput) (*huma.StreamResponse, error) {
	m, err := h.mapHandle(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := humastar.MustParseSignals(input.RawBody)
	if err != nil {
		return nil, err
	}

	return h.Stream(func(sse humastar.SSE) {
		hover := m.PointerMove(pixel(signals), signals.Bool("dragging"))
		if !hover.Changed {
			return
		}
		var props map[string]any
		if hover.Feature != nil {
			props = hover.Feature.Properties
		}
		sse.Signals(map[string]any{"hovering": hover.Hovering, "hovered": props})
		h.patchMap(sse, m)
	}), nil
}

// Click navigates the browser to the url of the clicked feature.
func (h *Handler) Click(ctx context.Context, input *MapSignalsInput) (*huma.StreamResponse, error) {
	m, err := h.mapHandle(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := humastar.MustParseSignals(input.RawBody)
	if err != nil {
		return nil, err
	}

	return h.Stream(func(sse humastar.SSE) {
		if url, ok := m.Click(pixel(signals)); ok {
			sse.Navigate(url)
		}
	}), nil
}

func (h *Handler) FocusMap(ctx context.Context, input *MapInput) (*huma.StreamResponse, error) {
	m, err := h.mapHandle(input.ID)
	if err != nil {
		return nil, err
	}
	m.Focus()
	return h.Stream(func(sse humastar.SSE) {}), nil
}

func (h *Handler) BlurMap(ctx context.Context, input *MapInput) (*huma.StreamResponse, error) {
	m, err := h.mapHandle(input.ID)
	if err != nil {
		return nil, err
	}
	m.Blur()
	return h.Stream(func(sse humastar.SSE) {}), nil
}
