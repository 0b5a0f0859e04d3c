package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoform/internal/humastar"
	"github.com/joeblew999/geoform/internal/service"
)

type EventsInput struct {
	Resources []string `query:"resources" doc:"Resources to follow (widgets, maps, projections, icon, baselayers, collections, sources); all when empty"`
}

func (h *Handler) registerEvents(api huma.API) {
	huma.Get(api, "/api/v1/editor/events", h.Events, tags)
}

// Events streams resource changes: changed widgets and maps are patched in
// place, lists are refreshed, and every event is dispatched to the page as
// a geoform-changed custom event.
func (h *Handler) Events(ctx context.Context, input *EventsInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			bus := h.widgets.Bus()
			ch := bus.Subscribe(input.Resources...)
			defer bus.Unsubscribe(ch)

			done := humaCtx.Context().Done()
			for {
				select {
				case <-done:
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					h.apply(sse, ev)
					sse.DispatchCustomEvent("geoform-changed", ev)
				}
			}
		},
	}, nil
}

func (h *Handler) apply(sse humastar.SSE, ev service.Event) {
	switch ev.Resource {
	case "widgets":
		if w, ok := h.widgets.Widget(ev.ID); ok {
			h.patchWidget(sse, w)
		}
	case "maps":
		if ev.Action == "deleted" {
			return
		}
		if m, ok := h.widgets.Map(ev.ID); ok {
			h.patchMap(sse, m)
		}
	case "baselayers":
		sse.Patch(h.presetSelect(), "#baselayer-select")
	case "collections":
		if html, err := h.collectionList(context.Background()); err == nil {
			sse.Patch(html, "#collection-list")
		}
	case "sources":
		if html, err := h.sourceList(); err == nil {
			sse.Patch(html, "#source-list")
		}
	}
}
