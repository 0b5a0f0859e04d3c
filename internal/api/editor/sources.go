package editor

import (
	"context"
	"mime/multipart"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoform/internal/humastar"
	"github.com/joeblew999/geoform/internal/service"
)

type SourceUploadInput struct {
	RawBody multipart.Form
}

type SourceInput struct {
	Name string `path:"name" doc:"Source file name"`
}

// SourceRowData is the data of the "source-row" fragment.
type SourceRowData struct {
	Name     string
	Size     string
	FileType string
}

func (h *Handler) registerSources(api huma.API) {
	huma.Get(api, "/api/v1/editor/sources", h.ListSources, tags)
	huma.Get(api, "/api/v1/editor/sources/select", h.SourceSelect, tags)
	huma.Post(api, "/api/v1/editor/sources/upload", h.UploadSource, tags)
	huma.Delete(api, "/api/v1/editor/sources/{name}", h.DeleteSource, tags)
}

func (h *Handler) sourceList() (string, error) {
	sources, err := h.sources.List()
	if err != nil {
		return "", err
	}
	items := make([]any, len(sources))
	for i, s := range sources {
		items[i] = SourceRowData{Name: s.Name, Size: s.Size, FileType: s.FileType}
	}
	return h.RenderList("source-row", items, "No source files", "Upload a GeoJSON FeatureCollection to import it."), nil
}

func sourceOptions(sources []service.SourceFile) []humastar.SelectOptionData {
	options := make([]humastar.SelectOptionData, len(sources))
	for i, s := range sources {
		options[i] = humastar.SelectOptionData{Value: s.Name, Label: s.Name + " (" + s.Size + ")"}
	}
	return options
}

func (h *Handler) refreshSources(sse humastar.SSE) {
	sources, err := h.sources.List()
	if err != nil {
		sse.Error("Failed to list sources: " + err.Error())
		return
	}
	if html, err := h.sourceList(); err == nil {
		sse.Patch(html, "#source-list")
	}
	sse.Patch(h.RenderSelect("-- Select a source file --", sourceOptions(sources)), "#source-select")
}

func (h *Handler) ListSources(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(h.refreshSources), nil
}

func (h *Handler) SourceSelect(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sources, err := h.sources.List()
		if err != nil {
			sse.Error("Failed to list sources: " + err.Error())
			return
		}
		sse.Patch(h.RenderSelect("-- Select a source file --", sourceOptions(sources)), "#source-select")
	}), nil
}

// UploadSource stores the "file" part of a multipart upload. Files that
// are not GeoJSON FeatureCollections are rejected.
func (h *Handler) UploadSource(ctx context.Context, input *SourceUploadInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		files := input.RawBody.File["file"]
		if len(files) == 0 {
			sse.Error("No file provided")
			return
		}

		header := files[0]
		file, err := header.Open()
		if err != nil {
			sse.Error("Failed to open uploaded file")
			return
		}
		defer file.Close()

		if err := h.sources.Save(header.Filename, file); err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Success("File uploaded: " + header.Filename)
		h.refreshSources(sse)
		h.publish("sources", "created", header.Filename)
	}), nil
}

func (h *Handler) DeleteSource(ctx context.Context, input *SourceInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		if err := h.sources.Delete(input.Name); err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Success("Deleted: " + input.Name)
		h.refreshSources(sse)
		h.publish("sources", "deleted", input.Name)
	}), nil
}
