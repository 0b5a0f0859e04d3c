package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joeblew999/geoform/internal/pmtiles"
)

// TileService lists the PMTiles archives in <dataDir>/tiles.
type TileService struct {
	tilesDir string
}

func NewTileService(dataDir string) *TileService {
	return &TileService{
		tilesDir: filepath.Join(dataDir, "tiles"),
	}
}

// List returns the archives with their header metadata. Archives whose
// header cannot be read are listed with Error set.
func (s *TileService) List() ([]TileFile, error) {
	entries, err := os.ReadDir(s.tilesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TileFile{}, nil
		}
		return nil, err
	}

	files := []TileFile{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pmtiles" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		tf := TileFile{Name: entry.Name(), Size: formatSize(info.Size())}
		h, err := pmtiles.ReadHeader(filepath.Join(s.tilesDir, entry.Name()))
		if err != nil {
			tf.Error = err.Error()
		} else {
			b := h.Bound()
			tf.TileType = h.TileType.String()
			tf.MinZoom, tf.MaxZoom = int(h.MinZoom), int(h.MaxZoom)
			tf.Bounds = [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
		}
		files = append(files, tf)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// TilesDir returns the directory served under /tiles/.
func (s *TileService) TilesDir() string {
	return s.tilesDir
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
