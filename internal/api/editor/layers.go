package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoform/internal/humastar"
)

type PresetInput struct {
	Name string `path:"name" pattern:"^[a-z0-9_-]+$" doc:"Preset name"`
}

// PresetRowData is the data of the "preset-row" fragment.
type PresetRowData struct {
	Name  string
	Type  string
	Label string
	URL   string
}

func (h *Handler) registerLayers(api huma.API) {
	huma.Get(api, "/api/v1/editor/baselayers", h.ListPresets, tags)
	huma.Get(api, "/api/v1/editor/baselayers/select", h.PresetSelect, tags)
	huma.Delete(api, "/api/v1/editor/baselayers/{name}", h.DeletePreset, tags)
}

func (h *Handler) presetList() string {
	presets := h.presets.List()
	items := make([]any, len(presets))
	for i, p := range presets {
		items[i] = PresetRowData{
			Name:  p.Name,
			Type:  p.Definition.Type,
			Label: p.Definition.Name,
			URL:   p.Definition.URL,
		}
	}
	return h.RenderList("preset-row", items, "No base layer presets", "Create one through the baselayers API.")
}

func (h *Handler) presetSelect() string {
	var options []humastar.SelectOptionData
	for _, p := range h.presets.List() {
		label := p.Name
		if p.Definition.Name != "" {
			label = p.Definition.Name + " (" + p.Name + ")"
		}
		options = append(options, humastar.SelectOptionData{Value: p.Name, Label: label})
	}
	return h.RenderSelect("-- Select a base layer --", options)
}

func (h *Handler) ListPresets(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.presetList(), "#baselayer-list")
	}), nil
}

func (h *Handler) PresetSelect(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.presetSelect(), "#baselayer-select")
	}), nil
}

func (h *Handler) DeletePreset(ctx context.Context, input *PresetInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		if err := h.presets.Delete(input.Name); err != nil {
			sse.Error(err.Error())
			return
		}
		sse.RemoveElementByID("preset-" + input.Name)
		sse.Success("Base layer deleted")
		sse.Patch(h.presetSelect(), "#baselayer-select")
		h.publish("baselayers", "deleted", input.Name)
	}), nil
}
