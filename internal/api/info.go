package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoform/internal/db"
)

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

type InfoBody struct {
	Name        string   `json:"name" doc:"Service name"`
	Version     string   `json:"version" doc:"Service version"`
	DataDir     string   `json:"data_dir" doc:"Data directory path"`
	DB          bool     `json:"db" doc:"Whether the feature store is available"`
	Tables      []string `json:"tables,omitempty" doc:"DuckDB tables"`
	Widgets     int      `json:"widgets" doc:"Initialized editable widgets"`
	Maps        int      `json:"maps" doc:"Open read-only maps"`
	Projections []string `json:"projections" doc:"Registered projection codes"`
	ItemIcon    string   `json:"itemIcon,omitempty" doc:"Icon forced on widgets created from now on"`
}

// RegisterHealth registers the health and info routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
	huma.Register(api, huma.Operation{
		OperationID: "get-info",
		Method:      http.MethodGet,
		Path:        "/api/v1/info",
		Summary:     "Server and registry summary",
		Tags:        []string{"health"},
	}, h.GetInfo)
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: h.svc.Version}}, nil
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	m := h.svc.Widgets
	body := InfoBody{
		Name:        "geoform",
		Version:     h.svc.Version,
		DataDir:     h.svc.DataDir,
		DB:          h.svc.Features != nil,
		Widgets:     m.Registry().Len(),
		Maps:        len(m.MapIDs()),
		Projections: m.Projections().Codes(),
		ItemIcon:    m.ItemIcon(),
	}
	if h.svc.DB != nil {
		tables, err := db.Tables(ctx, h.svc.DB)
		if err != nil {
			h.svc.Logger.Warn("list tables", "error", err)
		}
		body.Tables = tables
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
