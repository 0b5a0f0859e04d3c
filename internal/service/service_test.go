package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geoform/internal/baselayer"
	"github.com/joeblew999/geoform/internal/geocodec"
	"github.com/joeblew999/geoform/internal/pmtiles"
)

func TestEventBus_Filter(t *testing.T) {
	b := NewEventBus()
	all := b.Subscribe()
	maps := b.Subscribe("maps")
	require.Equal(t, 2, b.Subscribers())

	b.Publish(Event{Resource: "widgets", Action: "created", ID: "w1"})
	b.Publish(Event{Resource: "maps", Action: "loaded", ID: "m1"})

	require.Equal(t, "w1", (<-all).ID)
	require.Equal(t, "m1", (<-all).ID)

	select {
	case ev := <-maps:
		require.Equal(t, Event{Resource: "maps", Action: "loaded", ID: "m1"}, ev)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	require.Empty(t, maps)

	b.Unsubscribe(maps)
	b.Unsubscribe(maps)
	_, open := <-maps
	require.False(t, open)
	require.Equal(t, 1, b.Subscribers())
}

func TestEventBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewEventBus()
	ch := b.Subscribe()
	for i := 0; i < 100; i++ {
		b.Publish(Event{Resource: "widgets", Action: "changed"})
	}
	require.Len(t, ch, cap(ch))
}

func TestPresetService_CRUD(t *testing.T) {
	dir := t.TempDir()
	s, err := NewPresetService(dir)
	require.NoError(t, err)

	def, ok := s.Preset("osm")
	require.True(t, ok)
	require.Equal(t, baselayer.TypeOSM, def.Type)

	topo := Preset{Name: "swisstopo", Definition: baselayer.Definition{
		Type: baselayer.TypeXYZ, URL: "https://wmts.geo.admin.ch/{z}/{x}/{y}.jpeg", MaxZoom: 18,
	}}
	_, err = s.Create(topo)
	require.NoError(t, err)
	_, err = s.Create(topo)
	require.ErrorIs(t, err, ErrPresetExists)

	_, err = s.Create(Preset{Name: "Bad Name"})
	require.ErrorIs(t, err, ErrPresetName)
	_, err = s.Create(Preset{Name: "chain", Definition: baselayer.Definition{Preset: "osm"}})
	require.ErrorIs(t, err, baselayer.ErrInvalidDefinition)

	names := []string{}
	for _, p := range s.List() {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{"osm", "swisstopo"}, names)

	// Presets survive a restart.
	reloaded, err := NewPresetService(dir)
	require.NoError(t, err)
	got, ok := reloaded.Preset("swisstopo")
	require.True(t, ok)
	require.Equal(t, 18, got.MaxZoom)

	topo.Definition.MaxZoom = 17
	_, err = reloaded.Put(topo)
	require.NoError(t, err)
	got, _ = reloaded.Preset("swisstopo")
	require.Equal(t, 17, got.MaxZoom)

	require.NoError(t, reloaded.Delete("swisstopo"))
	require.ErrorIs(t, reloaded.Delete("swisstopo"), ErrPresetNotFound)
}

func TestPresetService_FeedsFactory(t *testing.T) {
	s, err := NewPresetService(t.TempDir())
	require.NoError(t, err)

	f := &baselayer.Factory{Presets: s}
	l, err := f.Build(baselayer.Definition{Preset: "osm", Opacity: 0.4})
	require.NoError(t, err)
	require.Equal(t, "OpenStreetMap", l.Name())
	require.InDelta(t, 0.4, l.Opacity(), 1e-9)
}

func TestPresetService_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "baselayers.json"), []byte("{"), 0o644))
	_, err := NewPresetService(dir)
	require.Error(t, err)
}

func TestSourceService(t *testing.T) {
	dir := t.TempDir()
	s := NewSourceService(dir)

	files, err := s.List()
	require.NoError(t, err)
	require.Empty(t, files)

	require.NoError(t, os.MkdirAll(s.SourcesDir(), 0o755))
	fc := []byte(`{"type":"FeatureCollection","features":[]}`)
	require.NoError(t, os.WriteFile(filepath.Join(s.SourcesDir(), "sites.geojson"), fc, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.SourcesDir(), "notes.txt"), []byte("x"), 0o644))

	files, err = s.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "sites.geojson", files[0].Name)
	require.Equal(t, "GeoJSON", files[0].FileType)
	require.EqualValues(t, len(fc), files[0].Bytes)

	body, err := s.Read("sites.geojson")
	require.NoError(t, err)
	require.Equal(t, fc, body)

	_, err = s.Read("../baselayers.json")
	require.ErrorIs(t, err, ErrFileName)
	_, err = s.Read("notes.txt")
	require.ErrorIs(t, err, ErrFileName)
}

func TestSourceService_SaveAndDelete(t *testing.T) {
	s := NewSourceService(t.TempDir())

	fc := `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}]}`
	require.NoError(t, s.Save("upload.geojson", strings.NewReader(fc)))

	files, err := s.List()
	require.NoError(t, err)
	require.Len(t, files, 1)

	require.ErrorIs(t, s.Save("bad.geojson", strings.NewReader(`{"type":"Point"}`)), geocodec.ErrMalformedGeometry)
	require.ErrorIs(t, s.Save("x.parquet", strings.NewReader(fc)), ErrFileName)
	require.ErrorIs(t, s.Save("../x.geojson", strings.NewReader(fc)), ErrFileName)

	require.NoError(t, s.Delete("upload.geojson"))
	require.ErrorIs(t, s.Delete("upload.geojson"), os.ErrNotExist)
}

func TestTileService(t *testing.T) {
	dir := t.TempDir()
	s := NewTileService(dir)
	require.NoError(t, os.MkdirAll(s.TilesDir(), 0o755))

	h := pmtiles.Header{TileType: pmtiles.Png, MinZoom: 2, MaxZoom: 9, MinLonE7: -10_000_000, MaxLonE7: 10_000_000, MinLatE7: -5_000_000, MaxLatE7: 5_000_000}
	require.NoError(t, os.WriteFile(filepath.Join(s.TilesDir(), "base.pmtiles"), h.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.TilesDir(), "broken.pmtiles"), []byte("nope"), 0o644))

	files, err := s.List()
	require.NoError(t, err)
	require.Len(t, files, 2)

	require.Equal(t, "base.pmtiles", files[0].Name)
	require.Equal(t, "png", files[0].TileType)
	require.Equal(t, 2, files[0].MinZoom)
	require.Equal(t, 9, files[0].MaxZoom)
	require.InDelta(t, -1.0, files[0].Bounds[0], 1e-9)
	require.Empty(t, files[0].Error)

	require.Equal(t, "broken.pmtiles", files[1].Name)
	require.NotEmpty(t, files[1].Error)
}

func TestFormatSize(t *testing.T) {
	require.Equal(t, "512 B", formatSize(512))
	require.Equal(t, "1.5 KB", formatSize(1536))
	require.Equal(t, "2.0 MB", formatSize(2<<20))
}
