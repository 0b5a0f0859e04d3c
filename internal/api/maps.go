package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geoform/internal/humastar"
	"github.com/joeblew999/geoform/internal/widget"
)

type MapIDInput struct {
	ID string `path:"id" format:"uuid" doc:"Map handle id"`
}

type CreateMapInput struct {
	Body struct {
		Target  string         `json:"target" required:"true" minLength:"1" doc:"Id of the map container" example:"sites-map"`
		Options widget.Options `json:"options,omitempty" doc:"Map options"`
	}
}

type GetMapInput struct {
	MapIDInput
	Wait bool `query:"wait" doc:"Block until the feature collection has loaded or failed"`
}

// MapBody is a map snapshot with its action links.
type MapBody struct {
	widget.MapState
}

var mapActions = []humastar.ActionDef{
	{Rel: "pointer", Pattern: "/api/v1/maps/%s/pointer", Method: http.MethodPost, Title: "Move the pointer", Schema: "#/components/schemas/PixelBody"},
	{Rel: "click", Pattern: "/api/v1/maps/%s/click", Method: http.MethodPost, Title: "Open the feature under the pointer", Schema: "#/components/schemas/PixelBody"},
	{Rel: "locate", Pattern: "/api/v1/maps/%s/locate", Method: http.MethodPost, Title: "Report a position", Schema: "#/components/schemas/LocateBody"},
	{Rel: "close", Pattern: "/api/v1/maps/%s", Method: http.MethodDelete, Title: "Close the map"},
}

func (b MapBody) Actions() []humastar.Action {
	actions := humastar.ActionsFor(b.ID, mapActions)
	if !b.Loaded && b.Error == "" {
		actions = append(actions, humastar.Action{Rel: "wait", Href: "/api/v1/maps/" + b.ID + "?wait=true", Method: http.MethodGet, Title: "Wait for the features"})
	}
	return actions
}

type MapOutput struct {
	Body MapBody
}

// PixelBody is a pointer position in viewport pixels, origin top left.
type PixelBody struct {
	X        float64 `json:"x" doc:"Pixel column"`
	Y        float64 `json:"y" doc:"Pixel row"`
	Dragging bool    `json:"dragging,omitempty" doc:"Pointer moved while a button is held"`
}

type PointerInput struct {
	MapIDInput
	Body PixelBody
}

type HoverBody struct {
	Hovering bool             `json:"hovering" doc:"A feature is under the pointer"`
	Changed  bool             `json:"changed" doc:"The highlighted feature changed"`
	Feature  *geojson.Feature `json:"feature,omitempty" doc:"Highlighted feature"`
	Classes  []string         `json:"classes" doc:"Classes of the map container"`
}

type ClickBody struct {
	URL   string `json:"url,omitempty" doc:"Where the browser should navigate"`
	Found bool   `json:"found" doc:"A feature with a url was clicked"`
}

type MapLocateInput struct {
	MapIDInput
	Body LocateBody
}

// RegisterMaps registers the read-only map routes.
func (h *APIHandler) RegisterMaps(api huma.API) {
	tags := huma.OperationTags("maps")
	huma.Get(api, "/api/v1/maps", h.ListMaps, tags)
	huma.Register(api, huma.Operation{
		OperationID:   "create-map",
		Method:        http.MethodPost,
		Path:          "/api/v1/maps",
		Summary:       "Create a read-only map",
		Description:   "Features at options.url load in the background; poll the map or pass wait=true.",
		Tags:          []string{"maps"},
		DefaultStatus: http.StatusCreated,
	}, h.CreateMap)
	huma.Get(api, "/api/v1/maps/{id}", h.GetMap, tags)
	huma.Delete(api, "/api/v1/maps/{id}", h.DeleteMap, tags)
	huma.Post(api, "/api/v1/maps/{id}/pointer", h.PointerMove, tags)
	huma.Post(api, "/api/v1/maps/{id}/click", h.Click, tags)
	huma.Post(api, "/api/v1/maps/{id}/locate", h.LocateMap, tags)
}

func (h *APIHandler) mapHandle(id string) (*widget.MapHandle, error) {
	m, ok := h.svc.Widgets.Map(id)
	if !ok {
		return nil, huma.Error404NotFound("map " + id + " not found")
	}
	return m, nil
}

func (h *APIHandler) ListMaps(ctx context.Context, input *struct{}) (*struct{ Body []string }, error) {
	return &struct{ Body []string }{Body: h.svc.Widgets.MapIDs()}, nil
}

func (h *APIHandler) CreateMap(ctx context.Context, input *CreateMapInput) (*MapOutput, error) {
	m, err := h.svc.Widgets.InitReadOnlyMap(ctx, input.Body.Target, input.Body.Options)
	if err != nil {
		return nil, statusError(err)
	}
	return &MapOutput{Body: MapBody{m.Snapshot()}}, nil
}

func (h *APIHandler) GetMap(ctx context.Context, input *GetMapInput) (*MapOutput, error) {
	m, err := h.mapHandle(input.ID)
	if err != nil {
		return nil, err
	}
	if input.Wait {
		// Load failures are reported in the snapshot.
		if _, err := m.Wait(ctx); err != nil && ctx.Err() != nil {
			return nil, huma.Error504GatewayTimeout("waiting for features", err)
		}
	}
	return &MapOutput{Body: MapBody{m.Snapshot()}}, nil
}

func (h *APIHandler) DeleteMap(ctx context.Context, input *MapIDInput) (*struct{ Body MessageBody }, error) {
	if !h.svc.Widgets.CloseMap(input.ID) {
		return nil, huma.Error404NotFound("map " + input.ID + " not found")
	}
	return message("Map closed"), nil
}

func (h *APIHandler) PointerMove(ctx context.Context, input *PointerInput) (*struct{ Body HoverBody }, error) {
	m, err := h.mapHandle(input.ID)
	if err != nil {
		return nil, err
	}
	hv := m.PointerMove(orb.Point{input.Body.X, input.Body.Y}, input.Body.Dragging)
	return &struct{ Body HoverBody }{Body: HoverBody{
		Hovering: hv.Hovering,
		Changed:  hv.Changed,
		Feature:  hv.Feature,
		Classes:  m.Map().Classes(),
	}}, nil
}

func (h *APIHandler) Click(ctx context.Context, input *PointerInput) (*struct{ Body ClickBody }, error) {
	m, err := h.mapHandle(input.ID)
	if err != nil {
		return nil, err
	}
	url, ok := m.Click(orb.Point{input.Body.X, input.Body.Y})
	return &struct{ Body ClickBody }{Body: ClickBody{URL: url, Found: ok}}, nil
}

func (h *APIHandler) LocateMap(ctx context.Context, input *MapLocateInput) (*MapOutput, error) {
	m, err := h.mapHandle(input.ID)
	if err != nil {
		return nil, err
	}
	if err := m.Locate(input.Body.Lon, input.Body.Lat, input.Body.Accuracy); err != nil {
		return nil, statusError(err)
	}
	return &MapOutput{Body: MapBody{m.Snapshot()}}, nil
}
