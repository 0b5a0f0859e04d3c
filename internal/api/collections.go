package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/geoform/internal/featurestore"
	"github.com/joeblew999/geoform/internal/humastar"
)

const geoJSONType = "application/geo+json"

type CollectionInput struct {
	Name string `path:"name" pattern:"^[A-Za-z0-9_-]{1,64}$" doc:"Collection name" example:"sites"`
}

type CollectionFeaturesInput struct {
	CollectionInput
	BBox     []float64 `query:"bbox" doc:"Keep features intersecting minx,miny,maxx,maxy"`
	Simplify float64   `query:"simplify" minimum:"0" doc:"Douglas-Peucker tolerance in data units, 0 serves geometries as stored"`
}

type CollectionItemsInput struct {
	CollectionInput
	Offset int       `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int       `query:"limit" minimum:"1" maximum:"1000" default:"100" doc:"Page size"`
	BBox   []float64 `query:"bbox" doc:"Keep features intersecting minx,miny,maxx,maxy"`
}

type CollectionItemInput struct {
	CollectionInput
	ID int64 `path:"id" doc:"Feature id"`
}

type ImportInput struct {
	CollectionInput
	RawBody []byte `contentType:"application/geo+json" doc:"GeoJSON FeatureCollection"`
}

type ImportBody struct {
	Collection string `json:"collection" doc:"Collection name"`
	Imported   int    `json:"imported" doc:"Features added"`
	URL        string `json:"url" doc:"FeatureCollection URL usable as a map url option"`
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// RegisterCollections registers the feature collection routes. They answer
// 503 when the feature store is unavailable.
func (h *APIHandler) RegisterCollections(api huma.API) {
	tags := huma.OperationTags("collections")
	huma.Get(api, "/api/v1/collections", h.ListCollections, tags)
	huma.Get(api, "/api/v1/collections/{name}/features", h.GetFeatureCollection, tags)
	huma.Get(api, "/api/v1/collections/{name}/items", h.ListItems, tags)
	huma.Get(api, "/api/v1/collections/{name}/items/{id}", h.GetItem, tags)
	huma.Register(api, huma.Operation{
		OperationID:   "import-collection",
		Method:        "POST",
		Path:          "/api/v1/collections/{name}/features",
		Summary:       "Import features into a collection",
		Tags:          []string{"collections"},
		DefaultStatus: 201,
	}, h.ImportCollection)
	huma.Delete(api, "/api/v1/collections/{name}", h.DropCollection, tags)
}

func (h *APIHandler) store() (*featurestore.Store, error) {
	if h.svc.Features == nil {
		return nil, huma.Error503ServiceUnavailable("feature store unavailable")
	}
	return h.svc.Features, nil
}

// changed drops cached collections and tells subscribers about it.
func (h *APIHandler) changed(action, name string) {
	if h.svc.Invalidate != nil {
		h.svc.Invalidate()
	}
	h.publish("collections", action, name)
}

func parseBBox(v []float64) (*orb.Bound, error) {
	if len(v) == 0 {
		return nil, nil
	}
	if len(v) != 4 || v[0] > v[2] || v[1] > v[3] {
		return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("bbox must be minx,miny,maxx,maxy, got %v", v))
	}
	return &orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

func (h *APIHandler) ListCollections(ctx context.Context, input *struct{}) (*struct{ Body []featurestore.Collection }, error) {
	s, err := h.store()
	if err != nil {
		return nil, err
	}
	cols, err := s.Collections(ctx)
	if err != nil {
		return nil, statusError(err)
	}
	return &struct{ Body []featurestore.Collection }{Body: cols}, nil
}

// GetFeatureCollection serves a collection in the shape read-only maps load.
func (h *APIHandler) GetFeatureCollection(ctx context.Context, input *CollectionFeaturesInput) (*GeoJSONOutput, error) {
	s, err := h.store()
	if err != nil {
		return nil, err
	}
	bbox, err := parseBBox(input.BBox)
	if err != nil {
		return nil, err
	}
	fc, err := s.FeatureCollection(ctx, input.Name, bbox)
	if err != nil {
		return nil, statusError(err)
	}
	if input.Simplify > 0 {
		simplifier := simplify.DouglasPeucker(input.Simplify)
		for _, f := range fc.Features {
			if f.Geometry != nil {
				f.Geometry = simplifier.Simplify(f.Geometry)
			}
		}
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, statusError(err)
	}
	return &GeoJSONOutput{ContentType: geoJSONType, Body: data}, nil
}

func (h *APIHandler) ListItems(ctx context.Context, input *CollectionItemsInput) (*struct {
	Body humastar.PageBody[*geojson.Feature]
}, error) {
	s, err := h.store()
	if err != nil {
		return nil, err
	}
	bbox, err := parseBBox(input.BBox)
	if err != nil {
		return nil, err
	}
	features, total, err := s.List(ctx, input.Name, featurestore.ListOptions{
		Offset: input.Offset,
		Limit:  input.Limit,
		BBox:   bbox,
	})
	if err != nil {
		return nil, statusError(err)
	}
	return &struct {
		Body humastar.PageBody[*geojson.Feature]
	}{Body: humastar.PageBody[*geojson.Feature]{
		Total:  total,
		Offset: input.Offset,
		Limit:  input.Limit,
		Data:   features,
	}}, nil
}

func (h *APIHandler) GetItem(ctx context.Context, input *CollectionItemInput) (*GeoJSONOutput, error) {
	s, err := h.store()
	if err != nil {
		return nil, err
	}
	f, err := s.Get(ctx, input.Name, input.ID)
	if err != nil {
		return nil, statusError(err)
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, statusError(err)
	}
	return &GeoJSONOutput{ContentType: geoJSONType, Body: data}, nil
}

func (h *APIHandler) ImportCollection(ctx context.Context, input *ImportInput) (*struct{ Body ImportBody }, error) {
	s, err := h.store()
	if err != nil {
		return nil, err
	}
	n, err := s.Import(ctx, input.Name, input.RawBody)
	if err != nil {
		return nil, statusError(err)
	}
	h.changed("changed", input.Name)
	h.svc.Logger.Info("collection imported", "collection", input.Name, "features", n)
	return &struct{ Body ImportBody }{Body: ImportBody{
		Collection: input.Name,
		Imported:   n,
		URL:        featurestore.Path(input.Name),
	}}, nil
}

func (h *APIHandler) DropCollection(ctx context.Context, input *CollectionInput) (*struct{ Body MessageBody }, error) {
	s, err := h.store()
	if err != nil {
		return nil, err
	}
	n, err := s.Drop(ctx, input.Name)
	if err != nil {
		return nil, statusError(err)
	}
	if n == 0 {
		return nil, huma.Error404NotFound("collection not found: " + input.Name)
	}
	h.changed("deleted", input.Name)
	return message(fmt.Sprintf("dropped %d features", n)), nil
}
