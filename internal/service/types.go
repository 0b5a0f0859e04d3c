// Package service holds the file-backed stores of the geoform server: base
// layer presets, GeoJSON source files, PMTiles archives and the change bus.
package service

import "github.com/joeblew999/geoform/internal/baselayer"

// Preset is a named base layer definition that map options can reference
// with {"preset": "<name>"}.
type Preset struct {
	Name       string               `json:"name" required:"true" minLength:"1" maxLength:"100" pattern:"^[a-z0-9_-]+$" doc:"Preset name" example:"swisstopo"`
	Definition baselayer.Definition `json:"definition" doc:"Base layer definition"`
}

// SourceFile is a GeoJSON file that can be imported into the feature store.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"sites.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	Bytes    int64  `json:"bytes" doc:"File size in bytes"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}

// TileFile is a PMTiles archive usable as a base layer.
type TileFile struct {
	Name     string     `json:"name" doc:"PMTiles file name" example:"basemap.pmtiles"`
	Size     string     `json:"size" doc:"Human-readable file size" example:"5.4 MB"`
	TileType string     `json:"tileType,omitempty" doc:"Tile format" example:"png"`
	MinZoom  int        `json:"minZoom" doc:"Lowest zoom in the archive"`
	MaxZoom  int        `json:"maxZoom" doc:"Highest zoom in the archive"`
	Bounds   [4]float64 `json:"bounds" doc:"Archive extent [minLon, minLat, maxLon, maxLat]"`
	Error    string     `json:"error,omitempty" doc:"Why the header could not be read"`
}
