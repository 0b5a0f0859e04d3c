package editor

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoform/internal/humastar"
	"github.com/joeblew999/geoform/internal/service"
)

// TileRowData is the data of the "tile-row" fragment.
type TileRowData struct {
	Name     string
	Size     string
	TileType string
	Zooms    string
	Error    string
}

func (h *Handler) registerTiles(api huma.API) {
	huma.Get(api, "/api/v1/editor/tiles", h.ListTiles, tags)
	huma.Get(api, "/api/v1/editor/tiles/select", h.TileSelect, tags)
}

func (h *Handler) tileList(tiles []service.TileFile) string {
	items := make([]any, len(tiles))
	for i, t := range tiles {
		items[i] = TileRowData{
			Name:     t.Name,
			Size:     t.Size,
			TileType: t.TileType,
			Zooms:    fmt.Sprintf("z%d-z%d", t.MinZoom, t.MaxZoom),
			Error:    t.Error,
		}
	}
	return h.RenderList("tile-row", items, "No PMTiles found", "Copy .pmtiles archives into the tiles directory.")
}

// tileSelect offers the readable archives as pmtiles base layer files.
func (h *Handler) tileSelect(tiles []service.TileFile) string {
	var options []humastar.SelectOptionData
	for _, t := range tiles {
		if t.Error != "" {
			continue
		}
		options = append(options, humastar.SelectOptionData{Value: t.Name, Label: t.Name + " (" + t.Size + ")"})
	}
	return h.RenderSelect("-- Select a PMTiles file --", options)
}

func (h *Handler) ListTiles(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		tiles, err := h.tiles.List()
		if err != nil {
			sse.Error("Failed to list tiles: " + err.Error())
			return
		}
		sse.Patch(h.tileList(tiles), "#tile-list")
		sse.Patch(h.tileSelect(tiles), "#pmtiles-select")
	}), nil
}

func (h *Handler) TileSelect(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		tiles, err := h.tiles.List()
		if err != nil {
			sse.Error("Failed to list tiles: " + err.Error())
			return
		}
		sse.Patch(h.tileSelect(tiles), "#pmtiles-select")
	}), nil
}
