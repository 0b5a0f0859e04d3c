package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geoform/internal/baselayer"
	"github.com/joeblew999/geoform/internal/logger"
	"github.com/joeblew999/geoform/internal/projection"
	"github.com/joeblew999/geoform/internal/service"
	"github.com/joeblew999/geoform/internal/widget"
)

const sample = `
projections:
  - code: EPSG:2056
    definition: +proj=somerc +lat_0=46.95240555555556 +lon_0=7.439583333333333 +k_0=1 +x_0=2600000 +y_0=1200000 +ellps=bessel +units=m +no_defs
    extent: [2485071.58, 1074261.72, 2837119.8, 1299941.79]
itemIcon: /static/pin.png
baselayers:
  swisstopo:
    type: xyz
    name: swisstopo
    url: https://wmts.geo.admin.ch/1.0.0/ch.swisstopo.pixelkarte-farbe/default/current/3857/{z}/{x}/{y}.jpeg
    attributions: ["&copy; swisstopo"]
`

func setup(t *testing.T) (*widget.Manager, *service.PresetService) {
	t.Helper()
	presets, err := service.NewPresetService(t.TempDir())
	require.NoError(t, err)
	mgr := widget.NewManager(widget.Config{Projections: projection.NewRegistry(), Logger: logger.Discard()})
	return mgr, presets
}

func TestDecodeAndApply(t *testing.T) {
	cfg, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, cfg.Projections, 1)

	mgr, presets := setup(t)
	require.NoError(t, cfg.Apply(mgr, presets))

	p, err := mgr.Projections().Get("EPSG:2056")
	require.NoError(t, err)
	require.InDelta(t, 2837119.8, p.Extent.Max[0], 1e-6)
	require.Equal(t, "/static/pin.png", mgr.ItemIcon())

	def, ok := presets.Preset("swisstopo")
	require.True(t, ok)
	require.Equal(t, baselayer.TypeXYZ, def.Type)
	require.Equal(t, []string{"&copy; swisstopo"}, def.Attributions)
}

func TestDecode_UnknownKey(t *testing.T) {
	_, err := Decode(strings.NewReader("projection: []\n"))
	require.Error(t, err)
}

func TestLoad_Missing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "geoform.yaml"))
	require.NoError(t, err)
	require.Empty(t, cfg.Projections)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	require.Empty(t, cfg.BaseLayers)
}

func TestApply_Failures(t *testing.T) {
	mgr, presets := setup(t)

	cfg := &File{Projections: []Projection{{Code: "EPSG:9999", Definition: "proj=merc"}}}
	require.ErrorIs(t, cfg.Apply(mgr, presets), projection.ErrInvalidDefinition)

	cfg = &File{Projections: []Projection{{Code: "EPSG:3395", Definition: "+proj=merc +datum=WGS84 +units=m", Extent: []float64{1, 2}}}}
	require.ErrorContains(t, cfg.Apply(mgr, presets), "extent needs 4 values")

	cfg = &File{BaseLayers: map[string]baselayer.Definition{"Bad Name": {Type: baselayer.TypeOSM}}}
	require.ErrorIs(t, cfg.Apply(mgr, presets), service.ErrPresetName)
}
