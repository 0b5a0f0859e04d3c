package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
)

// ProjectionBody describes a registered projection.
type ProjectionBody struct {
	Code       string     `json:"code" doc:"CRS code" example:"EPSG:2056"`
	Definition string     `json:"definition,omitempty" doc:"proj4 definition"`
	Family     string     `json:"family" doc:"Projection family" example:"somerc"`
	Units      string     `json:"units,omitempty" doc:"Map units"`
	Extent     [4]float64 `json:"extent" doc:"Validity extent [minx, miny, maxx, maxy]"`
}

type ProjectionCodeInput struct {
	Code string `path:"code" pattern:"^[A-Za-z]+:[0-9A-Za-z_.-]+$" doc:"CRS code" example:"EPSG:2056"`
}

type RegisterProjectionInput struct {
	ProjectionCodeInput
	Body struct {
		Definition string    `json:"definition" required:"true" minLength:"1" doc:"proj4 definition" example:"+proj=somerc +lat_0=46.9524055555556 +lon_0=7.43958333333333 +k_0=1 +x_0=2600000 +y_0=1200000 +ellps=bessel +units=m +no_defs"`
		Extent     []float64 `json:"extent,omitempty" minItems:"4" maxItems:"4" doc:"Validity extent, required for families whose extent cannot be derived"`
	}
}

type IconBody struct {
	URL string `json:"url" doc:"Icon forced on widgets created from now on; empty clears it" example:"/static/pin.png"`
}

// RegisterProjections registers the projection and item icon routes.
func (h *APIHandler) RegisterProjections(api huma.API) {
	tags := huma.OperationTags("projections")
	huma.Get(api, "/api/v1/projections", h.ListProjections, tags)
	huma.Get(api, "/api/v1/projections/{code}", h.GetProjection, tags)
	huma.Put(api, "/api/v1/projections/{code}", h.RegisterProjection, tags)
	huma.Get(api, "/api/v1/icon", h.GetIcon, tags)
	huma.Put(api, "/api/v1/icon", h.SetIcon, tags)
}

func (h *APIHandler) projection(code string) (ProjectionBody, error) {
	p, err := h.svc.Widgets.Projections().Get(code)
	if err != nil {
		return ProjectionBody{}, err
	}
	return ProjectionBody{
		Code:       p.Code,
		Definition: p.Definition,
		Family:     string(p.Family),
		Units:      p.Units,
		Extent:     [4]float64{p.Extent.Min[0], p.Extent.Min[1], p.Extent.Max[0], p.Extent.Max[1]},
	}, nil
}

func (h *APIHandler) ListProjections(ctx context.Context, input *struct{}) (*struct{ Body []ProjectionBody }, error) {
	codes := h.svc.Widgets.Projections().Codes()
	out := make([]ProjectionBody, 0, len(codes))
	for _, code := range codes {
		p, err := h.projection(code)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return &struct{ Body []ProjectionBody }{Body: out}, nil
}

func (h *APIHandler) GetProjection(ctx context.Context, input *ProjectionCodeInput) (*struct{ Body ProjectionBody }, error) {
	p, err := h.projection(input.Code)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return &struct{ Body ProjectionBody }{Body: p}, nil
}

func (h *APIHandler) RegisterProjection(ctx context.Context, input *RegisterProjectionInput) (*struct{ Body ProjectionBody }, error) {
	reg := h.svc.Widgets.Projections()
	if err := h.svc.Widgets.RegisterProjection(input.Code, input.Body.Definition); err != nil {
		return nil, statusError(err)
	}
	if e := input.Body.Extent; len(e) == 4 {
		b := orb.Bound{Min: orb.Point{e[0], e[1]}, Max: orb.Point{e[2], e[3]}}
		if err := reg.SetExtent(input.Code, b); err != nil {
			return nil, statusError(err)
		}
	}
	p, err := h.projection(input.Code)
	if err != nil {
		return nil, statusError(err)
	}
	return &struct{ Body ProjectionBody }{Body: p}, nil
}

func (h *APIHandler) GetIcon(ctx context.Context, input *struct{}) (*struct{ Body IconBody }, error) {
	return &struct{ Body IconBody }{Body: IconBody{URL: h.svc.Widgets.ItemIcon()}}, nil
}

func (h *APIHandler) SetIcon(ctx context.Context, input *struct{ Body IconBody }) (*struct{ Body IconBody }, error) {
	h.svc.Widgets.SetItemIcon(input.Body.URL)
	return &struct{ Body IconBody }{Body: IconBody{URL: h.svc.Widgets.ItemIcon()}}, nil
}
