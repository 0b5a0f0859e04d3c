package templates

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geoform/internal/logger"
)

type button struct {
	Action  string
	Tooltip string
	Enabled bool
	Active  bool
}

func TestEmbedded_ControlPanel(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)
	require.True(t, r.Has("widget"))
	require.True(t, r.Has("control-panel"))

	html, err := r.Render("control-panel", map[string]any{
		"ID":   "geom",
		"Base": "/api/v1/editor/widgets/geom",
		"Buttons": []button{
			{Action: "draw", Tooltip: "Draw a point", Enabled: false},
			{Action: "modify", Enabled: true, Active: true},
		},
	})
	require.NoError(t, err)
	require.Contains(t, html, `id="panel_geom"`)
	require.Contains(t, html, `title="Draw a point" disabled`)
	require.Contains(t, html, `class="geoform-modify active"`)
	require.Contains(t, html, `press`)
}

func TestEmbedded_HiddenInputEscapesValue(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)

	html, err := r.Render("hidden-input", map[string]any{
		"ID":    "geom",
		"Value": `{"type":"Point","coordinates":[1,1]}`,
	})
	require.NoError(t, err)
	require.Equal(t, `<input type="hidden" id="geom" name="geom" value="{&#34;type&#34;:&#34;Point&#34;,&#34;coordinates&#34;:[1,1]}">`, html)
}

func TestRender_UnknownTemplate(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)
	_, err = r.Render("nope", nil)
	require.Error(t, err)
	require.False(t, r.Has("nope"))
}

func TestDirAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.html")
	require.NoError(t, os.WriteFile(path, []byte(`{{define "greeting"}}hello {{.}}{{end}}`), 0o644))

	r, err := New(dir)
	require.NoError(t, err)
	out, err := r.Render("greeting", "map")
	require.NoError(t, err)
	require.Equal(t, "hello map", out)

	require.NoError(t, os.WriteFile(path, []byte(`{{define "greeting"}}bye {{.}}{{end}}`), 0o644))
	require.NoError(t, r.Reload())
	out, _ = r.Render("greeting", "map")
	require.Equal(t, "bye map", out)

	// A broken edit keeps the last good set.
	require.NoError(t, os.WriteFile(path, []byte(`{{define "greeting"}}{{.`), 0o644))
	require.Error(t, r.Reload())
	out, _ = r.Render("greeting", "map")
	require.Equal(t, "bye map", out)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.html")
	require.NoError(t, os.WriteFile(path, []byte(`{{define "greeting"}}v1{{end}}`), 0o644))

	r, err := New(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan error, 4)
	require.NoError(t, r.Watch(ctx, 10*time.Millisecond, logger.Discard(), func(err error) { reloaded <- err }))

	require.NoError(t, os.WriteFile(path, []byte(`{{define "greeting"}}v2{{end}}`), 0o644))
	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}
	out, err := r.Render("greeting", nil)
	require.NoError(t, err)
	require.Equal(t, "v2", out)

	embeddedR, err := New("")
	require.NoError(t, err)
	require.ErrorIs(t, embeddedR.Watch(ctx, 0, logger.Discard(), nil), ErrEmbedded)
}
