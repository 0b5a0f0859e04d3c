package humastar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geoform/internal/templates"
)

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"x": 12.5, "dragging": true, "geometry": {"type":"Point","coordinates":[1,2]}, "raw": "{\"a\":1}"}`))
	require.NoError(t, err)
	require.InDelta(t, 12.5, s.Float("x"), 1e-9)
	require.True(t, s.Bool("dragging"))
	require.True(t, s.Has("geometry"))
	require.False(t, s.Has("y"))
	require.JSONEq(t, `{"type":"Point","coordinates":[1,2]}`, string(s.JSON("geometry")))
	require.Equal(t, `{"a":1}`, string(s.JSON("raw")))
	require.Nil(t, s.JSON("missing"))

	empty, err := ParseSignals(nil)
	require.NoError(t, err)
	require.Empty(t, empty)

	_, err = (&SignalsInput{RawBody: []byte("{")}).MustParse()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadRequest, se.GetStatus())

	_, err = MustParseSignals([]byte(`[1,2]`))
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadRequest, se.GetStatus())
	require.Contains(t, se.Error(), "Invalid request data")
}

func TestPageBody_Links(t *testing.T) {
	p := PageBody[int]{Total: 25, Offset: 10, Limit: 10}
	require.Equal(t, []string{
		`</c?offset=0&limit=10>; rel="first"`,
		`</c?offset=0&limit=10>; rel="prev"`,
		`</c?offset=20&limit=10>; rel="next"`,
		`</c?offset=20&limit=10>; rel="last"`,
	}, p.PaginationLinks("/c"))

	require.Equal(t, []string{
		`</c?offset=0&limit=5>; rel="first"`,
		`</c?offset=0&limit=5>; rel="last"`,
	}, PageBody[int]{Limit: 5}.PaginationLinks("/c"))
	require.Nil(t, PageBody[int]{}.PaginationLinks("/c"))
}

func TestActionsFor(t *testing.T) {
	defs := []ActionDef{
		{Rel: "draw", Pattern: "/w/%s/draw", Method: http.MethodPost},
		{Rel: "clear", Pattern: "/w/%s/clear", Method: http.MethodPost, Title: "Clear", When: func(id string) bool { return id == "full" }},
	}
	require.Len(t, ActionsFor("empty", defs), 1)

	actions := ActionsFor("full", defs)
	require.Len(t, actions, 2)
	require.Equal(t, `</w/full/clear>; rel="clear"; method="POST"; title="Clear"`, actions[1].LinkHeader())
}

type thing struct {
	ID string `json:"id"`
}

func (thing) Actions() []Action {
	return []Action{{Rel: "delete", Href: "/things/1", Method: http.MethodDelete}}
}

func newAPI(t *testing.T) (*http.ServeMux, huma.API) {
	t.Helper()
	mux := http.NewServeMux()
	return mux, humago.New(mux, huma.DefaultConfig("test", "1.0.0"))
}

func TestLinks_Derive(t *testing.T) {
	_, api := newAPI(t)
	huma.Get(api, "/health", func(ctx context.Context, _ *struct{}) (*struct{}, error) { return nil, nil }, huma.OperationTags("health"))
	huma.Get(api, "/things", func(ctx context.Context, _ *struct{}) (*struct{ Body []thing }, error) {
		return &struct{ Body []thing }{}, nil
	}, huma.OperationTags("things"))
	huma.Get(api, "/things/{id}", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{ Body thing }, error) {
		return &struct{ Body thing }{Body: thing{ID: in.ID}}, nil
	}, huma.OperationTags("things"))
	huma.Get(api, "/editor/things", func(ctx context.Context, _ *struct{}) (*struct{}, error) { return nil, nil }, huma.OperationTags("editor"))

	links := NewLinks()
	links.Derive(api)
	require.Contains(t, links.Root(), `</things>; rel="things"`)
	require.Contains(t, links.For("/things"), `</things/{id}>; rel="item"`)
	require.Contains(t, links.For("/things/{id}"), `</things>; rel="collection"`)
	require.Empty(t, links.For("/editor/things"))

	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, links.Transformer())
	mux2 := http.NewServeMux()
	api2 := humago.New(mux2, cfg)
	huma.Get(api2, "/things/{id}", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{ Body thing }, error) {
		return &struct{ Body thing }{Body: thing{ID: in.ID}}, nil
	}, huma.OperationTags("things"))

	rec := httptest.NewRecorder()
	mux2.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	got := strings.Join(rec.Header().Values("Link"), "\n")
	require.Contains(t, got, `</things>; rel="collection"`)
	require.Contains(t, got, `</things/7>; rel="self"`)
	require.Contains(t, got, `</things/1>; rel="delete"; method="DELETE"`)
}

func TestHandler_Stream(t *testing.T) {
	r, err := templates.New("")
	require.NoError(t, err)
	h := Handler{Renderer: r}

	mux, api := newAPI(t)
	huma.Post(api, "/panel", func(ctx context.Context, in *SignalsInput) (*huma.StreamResponse, error) {
		signals, err := in.MustParse()
		if err != nil {
			return nil, err
		}
		return h.Stream(func(sse SSE) {
			sse.Replace(h.Render("hidden-input", map[string]any{"ID": "geom", "Value": signals.String("value")}), "#geom")
			sse.Success("saved")
			sse.Navigate("/sites/a")
		}), nil
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/panel", strings.NewReader(`{"value":"x"}`)))
	body := rec.Body.String()
	require.Contains(t, body, "event: datastar-patch-elements")
	require.Contains(t, body, `value="x"`)
	require.Contains(t, body, "event: datastar-patch-signals")
	require.Contains(t, body, "/sites/a")
}
