// Package baselayer builds the non-editable background layers of a map from
// declarative definitions.
package baselayer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/geoform/internal/pmtiles"
)

// Layer types.
const (
	TypeOSM     = "osm"
	TypeXYZ     = "xyz"
	TypePMTiles = "pmtiles"
)

const (
	osmURL         = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	osmAttribution = `&#169; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors.`

	defaultMaxZoom = 19
)

// ErrInvalidDefinition is returned for definitions the factory cannot build.
var ErrInvalidDefinition = errors.New("invalid base layer definition")

// Definition declares one base layer.
type Definition struct {
	Type         string   `json:"type,omitempty" yaml:"type" enum:"osm,xyz,pmtiles" doc:"Layer type" example:"osm"`
	Name         string   `json:"name,omitempty" yaml:"name" doc:"Display name" example:"OpenStreetMap"`
	Preset       string   `json:"preset,omitempty" yaml:"preset" doc:"Name of a stored preset to start from"`
	URL          string   `json:"url,omitempty" yaml:"url" doc:"Tile URL template with {z}, {x}, {y} or {-y}"`
	File         string   `json:"file,omitempty" yaml:"file" doc:"PMTiles archive in the tiles directory"`
	Attributions []string `json:"attributions,omitempty" yaml:"attributions" doc:"Attribution HTML snippets"`
	MinZoom      int      `json:"minZoom,omitempty" yaml:"minZoom" minimum:"0" maximum:"30" doc:"Minimum zoom"`
	MaxZoom      int      `json:"maxZoom,omitempty" yaml:"maxZoom" minimum:"0" maximum:"30" doc:"Maximum zoom"`
	Opacity      float64  `json:"opacity,omitempty" yaml:"opacity" minimum:"0" maximum:"1" doc:"Layer opacity (0-1), 0 means opaque"`
	Hidden       bool     `json:"hidden,omitempty" yaml:"hidden" doc:"Start with the layer hidden"`
}

// Layer is a built base layer.
type Layer struct {
	name         string
	kind         string
	url          string
	attributions []string
	minZoom      int
	maxZoom      int
	opacity      float64
	visible      bool
	bound        orb.Bound
	format       string
}

func (l *Layer) Name() string           { return l.name }
func (l *Layer) Kind() string           { return l.kind }
func (l *Layer) Visible() bool          { return l.visible }
func (l *Layer) Opacity() float64       { return l.opacity }
func (l *Layer) Attributions() []string { return l.attributions }
func (l *Layer) URL() string            { return l.url }
func (l *Layer) Format() string         { return l.format }

// ZoomRange returns the zoom levels tiles exist for.
func (l *Layer) ZoomRange() (min, max int) { return l.minZoom, l.maxZoom }

// Bound returns the lon/lat extent covered by the layer. Zero means the world.
func (l *Layer) Bound() orb.Bound { return l.bound }

// SetVisible shows or hides the layer.
func (l *Layer) SetVisible(v bool) { l.visible = v }

// TileURL returns the URL of tile t, or "" when t is outside the zoom range.
// PMTiles layers return the archive source URL for the client protocol.
func (l *Layer) TileURL(t maptile.Tile) string {
	z := int(t.Z)
	if z < l.minZoom || z > l.maxZoom {
		return ""
	}
	if l.kind == TypePMTiles {
		return "pmtiles://" + l.url
	}
	flipped := (uint32(1) << t.Z) - 1 - t.Y
	return strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(t.Y), 10),
		"{-y}", strconv.FormatUint(uint64(flipped), 10),
	).Replace(l.url)
}

// PresetSource resolves named definitions.
type PresetSource interface {
	Preset(name string) (Definition, bool)
}

// Factory builds layers. TilesDir and TilesURL locate PMTiles archives on
// disk and as served by the HTTP server.
type Factory struct {
	TilesDir string
	TilesURL string
	Presets  PresetSource
}

// Build creates a layer from def, after merging its preset if it names one.
func (f *Factory) Build(def Definition) (*Layer, error) {
	def, err := f.resolve(def)
	if err != nil {
		return nil, err
	}

	l := &Layer{
		name:         def.Name,
		kind:         def.Type,
		url:          def.URL,
		attributions: def.Attributions,
		minZoom:      def.MinZoom,
		maxZoom:      def.MaxZoom,
		opacity:      def.Opacity,
		visible:      !def.Hidden,
	}
	if l.opacity == 0 {
		l.opacity = 1
	}

	switch def.Type {
	case TypeOSM:
		if l.url == "" {
			l.url = osmURL
		}
		if len(l.attributions) == 0 {
			l.attributions = []string{osmAttribution}
		}
		if l.name == "" {
			l.name = "OpenStreetMap"
		}
		l.format = "png"
	case TypeXYZ:
		if l.url == "" {
			return nil, fmt.Errorf("%w: xyz layer %q without url", ErrInvalidDefinition, def.Name)
		}
		if !strings.Contains(l.url, "{z}") || !strings.Contains(l.url, "{x}") ||
			!(strings.Contains(l.url, "{y}") || strings.Contains(l.url, "{-y}")) {
			return nil, fmt.Errorf("%w: url %q needs {z}, {x} and {y} or {-y}", ErrInvalidDefinition, l.url)
		}
		l.format = strings.TrimPrefix(filepath.Ext(strings.SplitN(l.url, "?", 2)[0]), ".")
	case TypePMTiles:
		if err := f.applyArchive(l, def); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidDefinition, def.Type)
	}

	if l.maxZoom == 0 {
		l.maxZoom = defaultMaxZoom
	}
	if l.minZoom > l.maxZoom {
		return nil, fmt.Errorf("%w: minZoom %d > maxZoom %d", ErrInvalidDefinition, l.minZoom, l.maxZoom)
	}
	if l.name == "" {
		l.name = def.Type
	}
	return l, nil
}

// BuildAll builds defs in order.
func (f *Factory) BuildAll(defs []Definition) ([]*Layer, error) {
	layers := make([]*Layer, 0, len(defs))
	for i, def := range defs {
		l, err := f.Build(def)
		if err != nil {
			return nil, fmt.Errorf("baselayers[%d]: %w", i, err)
		}
		layers = append(layers, l)
	}
	return layers, nil
}

func (f *Factory) resolve(def Definition) (Definition, error) {
	if def.Preset == "" {
		return def, nil
	}
	if f.Presets == nil {
		return def, fmt.Errorf("%w: preset %q with no preset store", ErrInvalidDefinition, def.Preset)
	}
	base, ok := f.Presets.Preset(def.Preset)
	if !ok {
		return def, fmt.Errorf("%w: unknown preset %q", ErrInvalidDefinition, def.Preset)
	}

	// Fields set on the definition override the preset.
	if def.Type != "" {
		base.Type = def.Type
	}
	if def.Name != "" {
		base.Name = def.Name
	}
	if def.URL != "" {
		base.URL = def.URL
	}
	if def.File != "" {
		base.File = def.File
	}
	if len(def.Attributions) > 0 {
		base.Attributions = def.Attributions
	}
	if def.MinZoom != 0 {
		base.MinZoom = def.MinZoom
	}
	if def.MaxZoom != 0 {
		base.MaxZoom = def.MaxZoom
	}
	if def.Opacity != 0 {
		base.Opacity = def.Opacity
	}
	base.Hidden = base.Hidden || def.Hidden
	base.Preset = ""
	return base, nil
}

func (f *Factory) applyArchive(l *Layer, def Definition) error {
	if def.File == "" {
		return fmt.Errorf("%w: pmtiles layer %q without file", ErrInvalidDefinition, def.Name)
	}
	if strings.ContainsAny(def.File, `/\`) || strings.Contains(def.File, "..") {
		return fmt.Errorf("%w: invalid file name %q", ErrInvalidDefinition, def.File)
	}

	h, err := pmtiles.ReadHeader(filepath.Join(f.TilesDir, def.File))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	if l.url == "" {
		l.url = strings.TrimSuffix(f.TilesURL, "/") + "/" + def.File
	}
	if def.MinZoom == 0 {
		l.minZoom = int(h.MinZoom)
	}
	if def.MaxZoom == 0 {
		l.maxZoom = int(h.MaxZoom)
	}
	l.bound = h.Bound()
	l.format = h.TileType.String()
	if l.name == "" {
		l.name = strings.TrimSuffix(def.File, filepath.Ext(def.File))
	}
	return nil
}
