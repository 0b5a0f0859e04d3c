// Package projection keeps the process-wide table of coordinate reference
// systems known to geoform and builds coordinate transforms between them.
//
// Entries are added and never removed. Registering the same code twice with
// the same definition is a no-op; a different definition replaces the old
// one (last write wins) and Register reports that it did so.
package projection

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Codes registered by NewRegistry.
const (
	EPSG4326 = "EPSG:4326"
	EPSG3857 = "EPSG:3857"
)

const (
	def4326 = "+proj=longlat +datum=WGS84 +no_defs"
	def3857 = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +wktext +no_defs"
)

var (
	// ErrUnknownProjection is returned when a CRS code is used before it was registered.
	ErrUnknownProjection = errors.New("unknown projection")
	// ErrInvalidDefinition is returned for proj4 strings that cannot be parsed.
	ErrInvalidDefinition = errors.New("invalid projection definition")
	// ErrUnsupportedProjection is returned when a transform is requested for a
	// projection family geoform has no implementation for.
	ErrUnsupportedProjection = errors.New("unsupported projection")
)

// UnknownProjectionError names the CRS code that was not registered.
type UnknownProjectionError struct {
	Code string
}

func (e *UnknownProjectionError) Error() string {
	return fmt.Sprintf("unknown projection %q", e.Code)
}

func (e *UnknownProjectionError) Unwrap() error { return ErrUnknownProjection }

// Registry maps CRS codes to parsed projections. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Projection
}

// NewRegistry returns a registry preloaded with EPSG:4326 and EPSG:3857.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]*Projection)}
	for code, def := range map[string]string{EPSG4326: def4326, EPSG3857: def3857} {
		p, err := parseDefinition(code, def)
		if err != nil {
			panic(err)
		}
		r.defs[code] = p
	}
	return r
}

// Default is the process-wide registry.
var Default = NewRegistry()

// Register is shorthand for Default.Register.
func Register(code, def string) (bool, error) {
	return Default.Register(code, def)
}

// Register adds or replaces the definition for code.
// replaced is true when an existing, different definition was overwritten.
func (r *Registry) Register(code, def string) (replaced bool, err error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, fmt.Errorf("%w: empty code", ErrInvalidDefinition)
	}
	def = strings.TrimSpace(def)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.defs[code]; ok && existing.Definition == def {
		return false, nil
	}

	p, err := parseDefinition(code, def)
	if err != nil {
		return false, err
	}

	_, replaced = r.defs[code]
	if replaced && !r.defs[code].Extent.IsZero() && p.Extent.IsZero() {
		// Keep an extent set through SetExtent across redefinitions.
		p.Extent = r.defs[code].Extent
	}
	r.defs[code] = p
	return replaced, nil
}

// Get returns the projection registered for code.
func (r *Registry) Get(code string) (*Projection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.defs[code]
	if !ok {
		return nil, &UnknownProjectionError{Code: code}
	}
	return p, nil
}

// Has reports whether code is registered.
func (r *Registry) Has(code string) bool {
	_, err := r.Get(code)
	return err == nil
}

// SetExtent sets the validity extent of a registered projection, for
// families whose extent cannot be derived from the definition.
func (r *Registry) SetExtent(code string, extent orb.Bound) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.defs[code]
	if !ok {
		return &UnknownProjectionError{Code: code}
	}
	cp := *p
	cp.Extent = extent
	r.defs[code] = &cp
	return nil
}

// Codes returns the registered codes in sorted order.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.defs))
	for code := range r.defs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Transform returns a point transform from one CRS to another.
func (r *Registry) Transform(from, to string) (orb.Projection, error) {
	src, err := r.Get(from)
	if err != nil {
		return nil, err
	}
	dst, err := r.Get(to)
	if err != nil {
		return nil, err
	}
	if src.Code == dst.Code || src.Definition == dst.Definition {
		return func(p orb.Point) orb.Point { return p }, nil
	}
	if !src.Transformable() {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedProjection, src.Code, src.Family)
	}
	if !dst.Transformable() {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedProjection, dst.Code, dst.Family)
	}

	inv, fwd := src.inverse, dst.forward
	return func(p orb.Point) orb.Point { return fwd(inv(p)) }, nil
}

// TransformGeometry returns a transformed copy of g. The input is not modified.
func (r *Registry) TransformGeometry(g orb.Geometry, from, to string) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	if from == to {
		if _, err := r.Get(from); err != nil {
			return nil, err
		}
		return orb.Clone(g), nil
	}
	fn, err := r.Transform(from, to)
	if err != nil {
		return nil, err
	}
	return project.Geometry(orb.Clone(g), fn), nil
}
