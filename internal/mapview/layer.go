package mapview

import (
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geoform/internal/style"
)

// Layer is anything stacked in a map. Base layers are built by the
// baselayer package.
type Layer interface {
	Name() string
	Visible() bool
}

// VectorLayer renders a VectorSource with a style function.
type VectorLayer struct {
	source   *VectorSource
	mu       sync.RWMutex
	style    style.Func
	revision atomic.Uint64
}

// NewVectorLayer creates a layer over source drawn with the default style.
func NewVectorLayer(source *VectorSource) *VectorLayer {
	return &VectorLayer{source: source, style: style.ForContext(nil)}
}

func (l *VectorLayer) Name() string          { return "vector" }
func (l *VectorLayer) Visible() bool         { return true }
func (l *VectorLayer) Source() *VectorSource { return l.source }

// SetStyle replaces the style function and schedules a repaint.
func (l *VectorLayer) SetStyle(fn style.Func) {
	l.mu.Lock()
	l.style = fn
	l.mu.Unlock()
	l.Changed()
}

// StyleFor evaluates the style function for f.
func (l *VectorLayer) StyleFor(f *geojson.Feature) style.Spec {
	l.mu.RLock()
	fn := l.style
	l.mu.RUnlock()
	return fn(f)
}

// Changed schedules a repaint.
func (l *VectorLayer) Changed() { l.revision.Add(1) }

// Revision counts repaint requests, plus changes to the source.
func (l *VectorLayer) Revision() uint64 {
	return l.revision.Load() + l.source.Revision()
}
