package pmtiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeader_RoundTrip(t *testing.T) {
	h := Header{
		SpecVersion:     3,
		RootOffset:      127,
		RootLength:      42,
		TileType:        Png,
		TileCompression: NoCompression,
		MinZoom:         2,
		MaxZoom:         14,
		MinLonE7:        59_000_000,
		MinLatE7:        458_000_000,
		MaxLonE7:        105_000_000,
		MaxLatE7:        478_000_000,
		CenterZoom:      8,
		CenterLonE7:     82_000_000,
		CenterLatE7:     468_000_000,
		Clustered:       true,
	}

	got, err := ParseHeader(h.Bytes())
	require.NoError(t, err)
	require.Equal(t, h, got)

	b := got.Bound()
	require.InDelta(t, 5.9, b.Min[0], 1e-9)
	require.InDelta(t, 47.8, b.Max[1], 1e-9)
	require.InDelta(t, 8.2, got.Center()[0], 1e-9)
}

func TestParseHeader_Errors(t *testing.T) {
	_, err := ParseHeader([]byte("PMTiles"))
	require.ErrorIs(t, err, ErrShortHeader)

	_, err = ParseHeader(make([]byte, HeaderLen))
	require.ErrorIs(t, err, ErrNotPMTiles)
}

func TestReadHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swiss.pmtiles")
	require.NoError(t, os.WriteFile(path, Header{TileType: Mvt, MaxZoom: 12}.Bytes(), 0o644))

	h, err := ReadHeader(path)
	require.NoError(t, err)
	require.Equal(t, Mvt, h.TileType)
	require.Equal(t, uint8(12), h.MaxZoom)

	short := filepath.Join(dir, "short.pmtiles")
	require.NoError(t, os.WriteFile(short, []byte("PMTiles\x03"), 0o644))
	_, err = ReadHeader(short)
	require.ErrorIs(t, err, ErrShortHeader)

	_, err = ReadHeader(filepath.Join(dir, "missing.pmtiles"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestTileType(t *testing.T) {
	require.Equal(t, "mvt", Mvt.String())
	require.False(t, Mvt.Raster())
	require.True(t, Webp.Raster())
	require.Equal(t, "unknown", TileType(42).String())
}
