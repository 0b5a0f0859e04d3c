package editor

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geoform/internal/baselayer"
	"github.com/joeblew999/geoform/internal/logger"
	"github.com/joeblew999/geoform/internal/mapview"
	"github.com/joeblew999/geoform/internal/projection"
	"github.com/joeblew999/geoform/internal/service"
	"github.com/joeblew999/geoform/internal/templates"
	"github.com/joeblew999/geoform/internal/widget"
)

const sites = `{"type":"FeatureCollection","features":[
	{"type":"Feature","geometry":{"type":"Point","coordinates":[1000,1000]},"properties":{"url":"/sites/a"}},
	{"type":"Feature","geometry":{"type":"Point","coordinates":[500000,300000]},"properties":{}}
]}`

func newEditor(t *testing.T) (humatest.TestAPI, *widget.Manager) {
	t.Helper()
	dir := t.TempDir()
	renderer, err := templates.New("")
	require.NoError(t, err)
	presets, err := service.NewPresetService(dir)
	require.NoError(t, err)

	mgr := widget.NewManager(widget.Config{
		Projections: projection.NewRegistry(),
		Fetcher: widget.FetcherFunc(func(context.Context, string) ([]byte, error) {
			return []byte(sites), nil
		}),
		Logger: logger.Discard(),
	})
	h := New(Config{
		Renderer: renderer,
		Logger:   logger.Discard(),
		Widgets:  mgr,
		Presets:  presets,
		Sources:  service.NewSourceService(dir),
		Tiles:    service.NewTileService(dir),
	})
	_, api := humatest.New(t)
	h.RegisterRoutes(api)
	return api, mgr
}

func initWidget(t *testing.T, mgr *widget.Manager) {
	t.Helper()
	require.NoError(t, mgr.InitEditableWidget("geom", widget.Options{
		BaseLayers: []baselayer.Definition{{Type: baselayer.TypeOSM}},
		View:       mapview.ViewOptions{Center: []float64{0, 0}, Zoom: 2},
	}, widget.Definition{Point: true}))
}

func TestWidgetFragment(t *testing.T) {
	api, mgr := newEditor(t)
	require.Equal(t, http.StatusNotFound, api.Get("/api/v1/editor/widgets/geom").Code)

	initWidget(t, mgr)
	resp := api.Get("/api/v1/editor/widgets/geom?into=%23form-geom")
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	require.Contains(t, body, "event: datastar-patch-elements")
	require.Contains(t, body, "selector #form-geom")
	require.Contains(t, body, `id="widget_geom"`)
	require.Contains(t, body, `id="map_geom"`)
	require.Contains(t, body, `id="panel_geom"`)
	require.Contains(t, body, `type="hidden" id="geom"`)
	require.Contains(t, body, `"state":"empty"`)
}

func TestInitWidget(t *testing.T) {
	api, mgr := newEditor(t)

	resp := api.Put("/api/v1/editor/widgets/line", map[string]any{
		"options":    map[string]any{"view": map[string]any{"zoom": 3}},
		"definition": `{"line":true,"drawLineTooltip":"Draw the route"}`,
	})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "Draw the route")

	w, ok := mgr.Widget("line")
	require.True(t, ok)
	require.True(t, w.Definition().Line)

	resp = api.Put("/api/v1/editor/widgets/bad", map[string]any{
		"options": map[string]any{"view": map[string]any{"projection": "EPSG:31370"}},
	})
	require.Contains(t, resp.Body.String(), `"error"`)
	_, ok = mgr.Widget("bad")
	require.False(t, ok)
}

func TestSignals_MalformedBody(t *testing.T) {
	api, mgr := newEditor(t)
	initWidget(t, mgr)

	resp := api.Put("/api/v1/editor/widgets/other", strings.NewReader("{"))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	_, ok := mgr.Widget("other")
	require.False(t, ok)

	for _, path := range []string{
		"/api/v1/editor/widgets/geom/press/draw",
		"/api/v1/editor/maps",
	} {
		resp := api.Post(path, strings.NewReader("{"))
		require.Equal(t, http.StatusBadRequest, resp.Code, path)
		require.Contains(t, resp.Body.String(), "Invalid request data", path)
	}
	w, ok := mgr.Widget("geom")
	require.True(t, ok)
	require.Equal(t, "empty", w.State().String())
}

func TestPressAndDraw(t *testing.T) {
	api, mgr := newEditor(t)
	initWidget(t, mgr)

	resp := api.Post("/api/v1/editor/widgets/geom/press/draw")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"state":"drawing"`)

	resp = api.Post("/api/v1/editor/widgets/geom/drawend", map[string]any{
		"geometry": map[string]any{"type": "LineString", "coordinates": [][]float64{{0, 0}, {1, 1}}},
	})
	require.Contains(t, resp.Body.String(), `"error"`)
	require.Contains(t, resp.Body.String(), `"state":"drawing"`)

	resp = api.Post("/api/v1/editor/widgets/geom/drawend", map[string]any{
		"geometry": map[string]any{"type": "Point", "coordinates": []float64{10, 20}},
	})
	body := resp.Body.String()
	require.NotContains(t, body, `"error"`)
	require.Contains(t, body, `"state":"editing"`)

	w, _ := mgr.Widget("geom")
	require.JSONEq(t, `{"type":"Point","coordinates":[10,20]}`, w.Value())

	// A geometry sent as a JSON string is accepted too.
	resp = api.Post("/api/v1/editor/widgets/geom/modifyend", map[string]any{
		"geometry": `{"type":"Point","coordinates":[30,40]}`,
	})
	require.NotContains(t, resp.Body.String(), `"error"`)
	require.JSONEq(t, `{"type":"Point","coordinates":[30,40]}`, w.Value())

	require.Equal(t, http.StatusBadRequest, api.Post("/api/v1/editor/widgets/geom/modifyend", map[string]any{}).Code)

	resp = api.Post("/api/v1/editor/widgets/geom/press/clear")
	require.Contains(t, resp.Body.String(), `"state":"empty"`)
	require.Empty(t, w.Value())
}

func TestPressLocateWithPosition(t *testing.T) {
	api, mgr := newEditor(t)
	initWidget(t, mgr)

	resp := api.Post("/api/v1/editor/widgets/geom/press/locate", map[string]any{"lon": 7.44, "lat": 46.95})
	require.NotContains(t, resp.Body.String(), `"error"`)

	w, _ := mgr.Widget("geom")
	require.NotZero(t, w.Map().View().Center()[0])
}

func TestReadOnlyMap_PointerAndClick(t *testing.T) {
	api, mgr := newEditor(t)

	m, err := mgr.InitReadOnlyMap(context.Background(), "sites", widget.Options{
		URL:  "/api/v1/collections/sites/features",
		View: mapview.ViewOptions{Center: []float64{0, 0}, Zoom: 10},
	})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = m.Wait(ctx)
	require.NoError(t, err)

	px := m.Map().View().PixelFromCoordinate(orb.Point{1000, 1000})
	base := "/api/v1/editor/maps/" + m.ID()

	resp := api.Post(base+"/pointer", map[string]any{"x": px[0], "y": px[1]})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"hovering":true`)
	require.Contains(t, resp.Body.String(), "hovering")

	// No change, nothing to send.
	resp = api.Post(base+"/pointer", map[string]any{"x": px[0], "y": px[1]})
	require.NotContains(t, resp.Body.String(), "datastar-patch")

	resp = api.Post(base+"/click", map[string]any{"x": px[0], "y": px[1]})
	require.Contains(t, resp.Body.String(), "/sites/a")

	resp = api.Post(base+"/click", map[string]any{"x": 0, "y": 0})
	require.NotContains(t, resp.Body.String(), "/sites/a")

	require.Equal(t, http.StatusOK, api.Post(base+"/focus").Code)
	require.Equal(t, http.StatusOK, api.Post(base+"/blur").Code)
}

func TestCreateMap(t *testing.T) {
	api, _ := newEditor(t)

	resp := api.Post("/api/v1/editor/maps", map[string]any{
		"target":  "sites",
		"options": map[string]any{"url": "/api/v1/collections/sites/features", "fit_source": true},
	})
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	require.Contains(t, body, `"mapId"`)
	require.Equal(t, 2, strings.Count(body, `id="sites"`), "map is sent before and after loading")
	require.Contains(t, body, "/sites/a")

	require.Equal(t, http.StatusBadRequest, api.Post("/api/v1/editor/maps", map[string]any{}).Code)
}

func TestLists(t *testing.T) {
	api, _ := newEditor(t)

	resp := api.Get("/api/v1/editor/collections")
	require.Contains(t, resp.Body.String(), "Feature store unavailable")

	resp = api.Get("/api/v1/editor/baselayers/select")
	require.Contains(t, resp.Body.String(), "selector #baselayer-select")
	require.Contains(t, resp.Body.String(), `value="osm"`)

	resp = api.Get("/api/v1/editor/tiles")
	require.Contains(t, resp.Body.String(), "No PMTiles found")

	resp = api.Get("/api/v1/editor/sources")
	require.Contains(t, resp.Body.String(), "No source files")

	require.Equal(t, http.StatusServiceUnavailable, api.Delete("/api/v1/editor/collections/sites").Code)
}

func TestDeletePreset(t *testing.T) {
	api, mgr := newEditor(t)
	events := mgr.Bus().Subscribe("baselayers")

	resp := api.Delete("/api/v1/editor/baselayers/osm")
	require.Contains(t, resp.Body.String(), "preset-osm")

	select {
	case e := <-events:
		require.Equal(t, "deleted", e.Action)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}

	resp = api.Delete("/api/v1/editor/baselayers/osm")
	require.Contains(t, resp.Body.String(), `"error"`)
}
