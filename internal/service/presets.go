package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/joeblew999/geoform/internal/baselayer"
)

var (
	ErrPresetNotFound = errors.New("preset not found")
	ErrPresetExists   = errors.New("preset already exists")
	ErrPresetName     = errors.New("invalid preset name")
)

var presetName = regexp.MustCompile(`^[a-z0-9_-]+$`)

// PresetService stores base layer presets in <dataDir>/baselayers.json. The
// built-in "osm" preset is always present and can be overridden.
type PresetService struct {
	dataDir string
	presets map[string]baselayer.Definition
	mu      sync.RWMutex
}

// NewPresetService loads the stored presets. A missing file starts with the
// built-ins only.
func NewPresetService(dataDir string) (*PresetService, error) {
	s := &PresetService{
		dataDir: dataDir,
		presets: builtinPresets(),
	}
	if err := s.loadFromDisk(); err != nil {
		return nil, err
	}
	return s, nil
}

func builtinPresets() map[string]baselayer.Definition {
	return map[string]baselayer.Definition{
		"osm": {Type: baselayer.TypeOSM, Name: "OpenStreetMap"},
	}
}

// Preset implements baselayer.PresetSource.
func (s *PresetService) Preset(name string) (baselayer.Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.presets[name]
	return def, ok
}

// List returns the presets sorted by name.
func (s *PresetService) List() []Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Preset, 0, len(s.presets))
	for name, def := range s.presets {
		out = append(out, Preset{Name: name, Definition: def})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Create adds a preset. Definitions may not chain to other presets.
func (s *PresetService) Create(p Preset) (Preset, error) {
	if err := validatePreset(p); err != nil {
		return Preset{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.presets[p.Name]; exists {
		return Preset{}, fmt.Errorf("%w: %q", ErrPresetExists, p.Name)
	}
	s.presets[p.Name] = p.Definition
	if err := s.saveToDisk(); err != nil {
		delete(s.presets, p.Name)
		return Preset{}, err
	}
	return p, nil
}

// Put creates or replaces a preset.
func (s *PresetService) Put(p Preset) (Preset, error) {
	if err := validatePreset(p); err != nil {
		return Preset{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.presets[p.Name]
	s.presets[p.Name] = p.Definition
	if err := s.saveToDisk(); err != nil {
		if had {
			s.presets[p.Name] = prev
		} else {
			delete(s.presets, p.Name)
		}
		return Preset{}, err
	}
	return p, nil
}

// Delete removes a preset.
func (s *PresetService) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, exists := s.presets[name]
	if !exists {
		return fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}
	delete(s.presets, name)
	if err := s.saveToDisk(); err != nil {
		s.presets[name] = def
		return err
	}
	return nil
}

func validatePreset(p Preset) error {
	if !presetName.MatchString(p.Name) {
		return fmt.Errorf("%w: %q", ErrPresetName, p.Name)
	}
	if p.Definition.Preset != "" {
		return fmt.Errorf("%w: preset %q refers to preset %q", baselayer.ErrInvalidDefinition, p.Name, p.Definition.Preset)
	}
	return nil
}

func (s *PresetService) configFile() string {
	return filepath.Join(s.dataDir, "baselayers.json")
}

func (s *PresetService) loadFromDisk() error {
	data, err := os.ReadFile(s.configFile())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var stored map[string]baselayer.Definition
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("%s: %w", s.configFile(), err)
	}
	for name, def := range stored {
		s.presets[name] = def
	}
	return nil
}

func (s *PresetService) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.presets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.configFile(), data, 0o644)
}
