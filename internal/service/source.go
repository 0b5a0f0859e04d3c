package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joeblew999/geoform/internal/geocodec"
)

// ErrFileName is returned for names that are not plain file names.
var ErrFileName = errors.New("invalid file name")

// MaxSourceSize bounds uploaded source files.
const MaxSourceSize = 50 << 20

// SourceService manages the GeoJSON files in <dataDir>/sources.
type SourceService struct {
	sourcesDir string
}

func NewSourceService(dataDir string) *SourceService {
	return &SourceService{
		sourcesDir: filepath.Join(dataDir, "sources"),
	}
}

var sourceTypes = map[string]string{
	".geojson": "GeoJSON",
	".json":    "GeoJSON",
}

// List returns the importable source files sorted by name.
func (s *SourceService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileType, ok := sourceTypes[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, SourceFile{
			Name:     entry.Name(),
			Size:     formatSize(info.Size()),
			Bytes:    info.Size(),
			FileType: fileType,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Read returns the content of a source file.
func (s *SourceService) Read(name string) ([]byte, error) {
	if err := checkSourceName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(s.sourcesDir, name))
}

// Save stores an uploaded source after checking it is a valid GeoJSON
// FeatureCollection. An existing file of the same name is replaced.
func (s *SourceService) Save(name string, r io.Reader) error {
	if err := checkSourceName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceSize+1))
	if err != nil {
		return err
	}
	if len(data) > MaxSourceSize {
		return fmt.Errorf("%w: %q is larger than %s", ErrFileName, name, formatSize(MaxSourceSize))
	}
	if _, err := geocodec.DecodeFeatureCollection(data); err != nil {
		return err
	}
	if err := os.MkdirAll(s.sourcesDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.sourcesDir, name), data, 0o644)
}

// Delete removes a source file.
func (s *SourceService) Delete(name string) error {
	if err := checkSourceName(name); err != nil {
		return err
	}
	return os.Remove(filepath.Join(s.sourcesDir, name))
}

func (s *SourceService) SourcesDir() string {
	return s.sourcesDir
}

func checkFileName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrFileName, name)
	}
	return nil
}

func checkSourceName(name string) error {
	if err := checkFileName(name); err != nil {
		return err
	}
	if _, ok := sourceTypes[strings.ToLower(filepath.Ext(name))]; !ok {
		return fmt.Errorf("%w: %q is not GeoJSON", ErrFileName, name)
	}
	return nil
}
