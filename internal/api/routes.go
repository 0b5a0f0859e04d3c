// Package api defines the Huma REST routes of the geoform server.
package api

import (
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoform/internal/baselayer"
	"github.com/joeblew999/geoform/internal/controls"
	"github.com/joeblew999/geoform/internal/featurestore"
	"github.com/joeblew999/geoform/internal/geocodec"
	"github.com/joeblew999/geoform/internal/interaction"
	"github.com/joeblew999/geoform/internal/mapview"
	"github.com/joeblew999/geoform/internal/projection"
	"github.com/joeblew999/geoform/internal/service"
	"github.com/joeblew999/geoform/internal/widget"
)

// Services holds the dependencies of the API handlers. Features and DB are
// nil when DuckDB could not be opened.
type Services struct {
	Widgets  *widget.Manager
	Presets  *service.PresetService
	Sources  *service.SourceService
	Tiles    *service.TileService
	Features *featurestore.Store
	DB       *sql.DB
	Logger   *slog.Logger

	// Invalidate drops cached feature collections after a collection
	// changes.
	Invalidate func()

	DataDir string
	Version string
}

// APIHandler holds all REST API handlers.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	if svc.Logger == nil {
		svc.Logger = slog.Default()
	}
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST route.
func RegisterRoutes(api huma.API, svc *Services) {
	h := NewAPIHandler(svc)
	h.RegisterHealth(api)
	h.RegisterWidgets(api)
	h.RegisterMaps(api)
	h.RegisterProjections(api)
	h.RegisterCollections(api)
	h.RegisterBaseLayers(api)
}

func (h *APIHandler) publish(resource, action, id string) {
	h.svc.Widgets.Bus().Publish(service.Event{Resource: resource, Action: action, ID: id})
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

func message(msg string) *struct{ Body MessageBody } {
	return &struct{ Body MessageBody }{Body: MessageBody{Message: msg}}
}

// statusError maps domain errors onto HTTP errors.
func statusError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, geocodec.ErrMalformedGeometry),
		errors.Is(err, interaction.ErrGeometryKind),
		errors.Is(err, projection.ErrInvalidDefinition),
		errors.Is(err, projection.ErrUnknownProjection),
		errors.Is(err, projection.ErrUnsupportedProjection),
		errors.Is(err, baselayer.ErrInvalidDefinition),
		errors.Is(err, mapview.ErrInvalidExtent),
		errors.Is(err, featurestore.ErrCollectionName),
		errors.Is(err, service.ErrPresetName),
		errors.Is(err, service.ErrFileName):
		return huma.Error422UnprocessableEntity(err.Error(), err)
	case errors.Is(err, interaction.ErrInvalidTransition),
		errors.Is(err, controls.ErrDisabled),
		errors.Is(err, widget.ErrReadOnly),
		errors.Is(err, mapview.ErrSourceFull),
		errors.Is(err, mapview.ErrGeolocationDisabled),
		errors.Is(err, mapview.ErrNoPosition),
		errors.Is(err, service.ErrPresetExists):
		return huma.Error409Conflict(err.Error(), err)
	case errors.Is(err, controls.ErrUnknownAction),
		errors.Is(err, featurestore.ErrNotFound),
		errors.Is(err, service.ErrPresetNotFound),
		errors.Is(err, fs.ErrNotExist):
		return huma.Error404NotFound(err.Error(), err)
	case errors.Is(err, widget.ErrFetch):
		return huma.Error502BadGateway(err.Error(), err)
	}
	return huma.Error500InternalServerError(err.Error(), err)
}
