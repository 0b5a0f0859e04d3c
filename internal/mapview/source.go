package mapview

import (
	"errors"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrSourceFull is returned when adding a feature would exceed the limit.
var ErrSourceFull = errors.New("vector source is full")

// VectorSource is the mutable set of features of one vector layer.
type VectorSource struct {
	mu       sync.RWMutex
	features []*geojson.Feature
	limit    int
	revision uint64
}

// NewVectorSource creates an empty, unlimited source.
func NewVectorSource() *VectorSource {
	return &VectorSource{}
}

// SetLimit caps the number of features. Zero means unlimited.
func (s *VectorSource) SetLimit(n int) {
	s.mu.Lock()
	s.limit = n
	s.mu.Unlock()
}

// Limit returns the feature cap, or 0.
func (s *VectorSource) Limit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limit
}

// AddFeature adds f. It fails with ErrSourceFull when the limit is reached.
func (s *VectorSource) AddFeature(f *geojson.Feature) error {
	return s.AddFeatures([]*geojson.Feature{f})
}

// AddFeatures adds all of fs or none of them.
func (s *VectorSource) AddFeatures(fs []*geojson.Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && len(s.features)+len(fs) > s.limit {
		return ErrSourceFull
	}
	s.features = append(s.features, fs...)
	s.revision++
	return nil
}

// RemoveFeature removes f and reports whether it was present.
func (s *VectorSource) RemoveFeature(f *geojson.Feature) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, g := range s.features {
		if g == f {
			s.features = append(s.features[:i], s.features[i+1:]...)
			s.revision++
			return true
		}
	}
	return false
}

// SetGeometry replaces the geometry of f, which must be in the source.
func (s *VectorSource) SetGeometry(f *geojson.Feature, g orb.Geometry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.features {
		if h == f {
			f.Geometry = g
			s.revision++
			return true
		}
	}
	return false
}

// Clear removes every feature.
func (s *VectorSource) Clear() {
	s.mu.Lock()
	if len(s.features) > 0 {
		s.features = nil
		s.revision++
	}
	s.mu.Unlock()
}

// Features returns a copy of the feature list in insertion order.
func (s *VectorSource) Features() []*geojson.Feature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*geojson.Feature, len(s.features))
	copy(out, s.features)
	return out
}

func (s *VectorSource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.features)
}

// Revision increments on every change.
func (s *VectorSource) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Extent returns the bound of every feature with a geometry. ok is false
// when there is none.
func (s *VectorSource) Extent() (b orb.Bound, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.features {
		if f.Geometry == nil {
			continue
		}
		if !ok {
			b, ok = f.Geometry.Bound(), true
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b, ok
}
