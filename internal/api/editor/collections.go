package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoform/internal/featurestore"
	"github.com/joeblew999/geoform/internal/humastar"
)

type CollectionInput struct {
	Name string `path:"name" pattern:"^[A-Za-z0-9_-]{1,64}$" doc:"Collection name"`
}

type ImportSourceInput struct {
	RawBody []byte
}

// CollectionRowData is the data of the "collection-row" fragment.
type CollectionRowData struct {
	Name  string
	Count int
	URL   string
}

func (h *Handler) registerCollections(api huma.API) {
	huma.Get(api, "/api/v1/editor/collections", h.ListCollections, tags)
	huma.Post(api, "/api/v1/editor/collections/import", h.ImportSource, tags)
	huma.Delete(api, "/api/v1/editor/collections/{name}", h.DropCollection, tags)
}

func (h *Handler) collectionList(ctx context.Context) (string, error) {
	if h.features == nil {
		return h.RenderList("collection-row", nil, "Feature store unavailable", "DuckDB could not be opened."), nil
	}
	cols, err := h.features.Collections(ctx)
	if err != nil {
		return "", err
	}
	items := make([]any, len(cols))
	for i, c := range cols {
		items[i] = CollectionRowData{Name: c.Name, Count: c.Count, URL: featurestore.Path(c.Name)}
	}
	return h.RenderList("collection-row", items, "No collections", "Import a source file to create one."), nil
}

func (h *Handler) ListCollections(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		html, err := h.collectionList(ctx)
		if err != nil {
			sse.Error("Failed to list collections: " + err.Error())
			return
		}
		sse.Patch(html, "#collection-list")
	}), nil
}

// ImportSource imports the source named by the sourcefile signal into the
// collection signal.
func (h *Handler) ImportSource(ctx context.Context, input *ImportSourceInput) (*huma.StreamResponse, error) {
	if h.features == nil {
		return nil, huma.Error503ServiceUnavailable("feature store unavailable")
	}
	signals, err := humastar.MustParseSignals(input.RawBody)
	if err != nil {
		return nil, err
	}
	source, collection := signals.String("sourcefile"), signals.String("collection")
	if source == "" {
		return nil, huma.Error400BadRequest("Source file is required")
	}
	if err := featurestore.CheckName(collection); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	return h.Stream(func(sse humastar.SSE) {
		data, err := h.sources.Read(source)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		n, err := h.features.Import(ctx, collection, data)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		h.invalidate()
		sse.Signals(map[string]any{
			"success":     "Imported " + source + " into " + collection,
			"imported":    n,
			"featuresUrl": featurestore.Path(collection),
		})
		if html, err := h.collectionList(ctx); err == nil {
			sse.Patch(html, "#collection-list")
		}
		h.publish("collections", "changed", collection)
	}), nil
}

func (h *Handler) DropCollection(ctx context.Context, input *CollectionInput) (*huma.StreamResponse, error) {
	if h.features == nil {
		return nil, huma.Error503ServiceUnavailable("feature store unavailable")
	}
	return h.Stream(func(sse humastar.SSE) {
		if _, err := h.features.Drop(ctx, input.Name); err != nil {
			sse.Error(err.Error())
			return
		}
		h.invalidate()
		sse.RemoveElementByID("collection-" + input.Name)
		sse.Success("Collection dropped: " + input.Name)
		h.publish("collections", "deleted", input.Name)
	}), nil
}
