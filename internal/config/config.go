// Package config reads the YAML startup file: projections, the item icon
// and base layer presets, applied before any widget is created.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/geoform/internal/baselayer"
	"github.com/joeblew999/geoform/internal/service"
	"github.com/joeblew999/geoform/internal/widget"
)

// Projection declares a CRS to register.
type Projection struct {
	Code       string    `yaml:"code"`
	Definition string    `yaml:"definition"`
	Extent     []float64 `yaml:"extent,omitempty"`
}

// File is the startup configuration.
type File struct {
	Projections []Projection                    `yaml:"projections"`
	ItemIcon    string                          `yaml:"itemIcon"`
	BaseLayers  map[string]baselayer.Definition `yaml:"baselayers"`
}

// Load reads path. A missing file is an empty configuration.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &File{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a configuration, rejecting unknown keys.
func Decode(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var cfg File
	if len(bytes.TrimSpace(data)) == 0 {
		return &cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Apply registers the projections, stores the presets and sets the item
// icon. It stops at the first failure.
func (c *File) Apply(mgr *widget.Manager, presets *service.PresetService) error {
	for _, p := range c.Projections {
		if err := mgr.RegisterProjection(p.Code, p.Definition); err != nil {
			return fmt.Errorf("config: projection %s: %w", p.Code, err)
		}
		if len(p.Extent) == 0 {
			continue
		}
		if len(p.Extent) != 4 {
			return fmt.Errorf("config: projection %s: extent needs 4 values, got %d", p.Code, len(p.Extent))
		}
		b := orb.Bound{Min: orb.Point{p.Extent[0], p.Extent[1]}, Max: orb.Point{p.Extent[2], p.Extent[3]}}
		if err := mgr.Projections().SetExtent(p.Code, b); err != nil {
			return fmt.Errorf("config: projection %s: %w", p.Code, err)
		}
	}
	for name, def := range c.BaseLayers {
		if _, err := presets.Put(service.Preset{Name: name, Definition: def}); err != nil {
			return fmt.Errorf("config: base layer %s: %w", name, err)
		}
	}
	if c.ItemIcon != "" {
		mgr.SetItemIcon(c.ItemIcon)
	}
	return nil
}
