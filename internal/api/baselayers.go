package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoform/internal/baselayer"
	"github.com/joeblew999/geoform/internal/featurestore"
	"github.com/joeblew999/geoform/internal/service"
)

type PresetNameInput struct {
	Name string `path:"name" pattern:"^[a-z0-9_-]+$" doc:"Preset name" example:"swisstopo"`
}

type CreatePresetInput struct {
	Body service.Preset
}

type PutPresetInput struct {
	PresetNameInput
	Body baselayer.Definition
}

type PresetOutput struct {
	Body service.Preset
}

type SourceNameInput struct {
	Name string `path:"name" doc:"Source file name" example:"sites.geojson"`
}

type SourceImportInput struct {
	Name       string `path:"name" doc:"Source file name" example:"sites.geojson"`
	Collection string `query:"collection" required:"true" pattern:"^[A-Za-z0-9_-]{1,64}$" doc:"Collection to import into"`
}

// RegisterBaseLayers registers the base layer preset routes and the
// listings of the tiles and sources directories.
func (h *APIHandler) RegisterBaseLayers(api huma.API) {
	tags := huma.OperationTags("baselayers")
	huma.Get(api, "/api/v1/baselayers", h.ListPresets, tags)
	huma.Get(api, "/api/v1/baselayers/{name}", h.GetPreset, tags)
	huma.Register(api, huma.Operation{
		OperationID:   "create-preset",
		Method:        "POST",
		Path:          "/api/v1/baselayers",
		Summary:       "Create a base layer preset",
		Tags:          []string{"baselayers"},
		DefaultStatus: 201,
	}, h.CreatePreset)
	huma.Put(api, "/api/v1/baselayers/{name}", h.PutPreset, tags)
	huma.Delete(api, "/api/v1/baselayers/{name}", h.DeletePreset, tags)

	huma.Get(api, "/api/v1/tiles", h.ListTiles, huma.OperationTags("files"))
	huma.Get(api, "/api/v1/sources", h.ListSources, huma.OperationTags("files"))
	huma.Post(api, "/api/v1/sources/{name}/import", h.ImportSource, huma.OperationTags("files"))
	huma.Delete(api, "/api/v1/sources/{name}", h.DeleteSource, huma.OperationTags("files"))
}

func (h *APIHandler) ListPresets(ctx context.Context, input *struct{}) (*struct{ Body []service.Preset }, error) {
	return &struct{ Body []service.Preset }{Body: h.svc.Presets.List()}, nil
}

func (h *APIHandler) GetPreset(ctx context.Context, input *PresetNameInput) (*PresetOutput, error) {
	def, ok := h.svc.Presets.Preset(input.Name)
	if !ok {
		return nil, huma.Error404NotFound("preset not found: " + input.Name)
	}
	return &PresetOutput{Body: service.Preset{Name: input.Name, Definition: def}}, nil
}

func (h *APIHandler) CreatePreset(ctx context.Context, input *CreatePresetInput) (*PresetOutput, error) {
	p, err := h.svc.Presets.Create(input.Body)
	if err != nil {
		return nil, statusError(err)
	}
	h.publish("baselayers", "created", p.Name)
	return &PresetOutput{Body: p}, nil
}

func (h *APIHandler) PutPreset(ctx context.Context, input *PutPresetInput) (*PresetOutput, error) {
	p, err := h.svc.Presets.Put(service.Preset{Name: input.Name, Definition: input.Body})
	if err != nil {
		return nil, statusError(err)
	}
	h.publish("baselayers", "changed", p.Name)
	return &PresetOutput{Body: p}, nil
}

func (h *APIHandler) DeletePreset(ctx context.Context, input *PresetNameInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Presets.Delete(input.Name); err != nil {
		return nil, statusError(err)
	}
	h.publish("baselayers", "deleted", input.Name)
	return message("preset deleted: " + input.Name), nil
}

func (h *APIHandler) ListTiles(ctx context.Context, input *struct{}) (*struct{ Body []service.TileFile }, error) {
	files, err := h.svc.Tiles.List()
	if err != nil {
		return nil, statusError(err)
	}
	return &struct{ Body []service.TileFile }{Body: files}, nil
}

func (h *APIHandler) ListSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	files, err := h.svc.Sources.List()
	if err != nil {
		return nil, statusError(err)
	}
	return &struct{ Body []service.SourceFile }{Body: files}, nil
}

// ImportSource loads a GeoJSON file from the sources directory into a
// collection.
func (h *APIHandler) ImportSource(ctx context.Context, input *SourceImportInput) (*struct{ Body ImportBody }, error) {
	s, err := h.store()
	if err != nil {
		return nil, err
	}
	data, err := h.svc.Sources.Read(input.Name)
	if err != nil {
		return nil, statusError(err)
	}
	n, err := s.Import(ctx, input.Collection, data)
	if err != nil {
		return nil, statusError(err)
	}
	h.changed("changed", input.Collection)
	h.svc.Logger.Info("source imported", "source", input.Name, "collection", input.Collection, "features", n)
	return &struct{ Body ImportBody }{Body: ImportBody{
		Collection: input.Collection,
		Imported:   n,
		URL:        featurestore.Path(input.Collection),
	}}, nil
}

func (h *APIHandler) DeleteSource(ctx context.Context, input *SourceNameInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Sources.Delete(input.Name); err != nil {
		return nil, statusError(err)
	}
	h.publish("sources", "deleted", input.Name)
	return message("source deleted: " + input.Name), nil
}
