// Package style picks the paint used for each vector feature on repaint.
//
// The decision reads a RenderContext that the map's pointer handler mutates
// between repaints, so Resolve must be called per feature per repaint and
// its results never cached.
package style

import (
	"sync"

	"github.com/paulmach/orb/geojson"
)

// Variant names the branch of the decision rule that produced a Spec.
type Variant string

const (
	VariantIcon    Variant = "icon"
	VariantHovered Variant = "hovered"
	VariantDefault Variant = "default"
)

// DefaultOpacity is the opacity of non-hovered features on read-only maps.
const DefaultOpacity = 0.5

// Spec is the paint for one feature.
type Spec struct {
	Variant     Variant `json:"variant"`
	Icon        string  `json:"icon,omitempty"`
	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Radius      float64 `json:"radius,omitempty"`
	Opacity     float64 `json:"opacity"`
}

var (
	defaultSpec = Spec{
		Variant:     VariantDefault,
		Fill:        "rgba(255, 255, 255, 0.4)",
		Stroke:      "#3399cc",
		StrokeWidth: 1.25,
		Radius:      5,
	}
	hoveredSpec = Spec{
		Variant:     VariantHovered,
		Fill:        "rgba(255, 255, 255, 0.6)",
		Stroke:      "#ff6600",
		StrokeWidth: 3,
		Radius:      7,
		Opacity:     1,
	}
)

// RenderContext is the mutable state shared by a map's pointer handler and
// its style function. Its lifetime is that of the map instance.
type RenderContext struct {
	mu        sync.RWMutex
	hovered   *geojson.Feature
	fixedIcon string
	opacity   float64
}

// NewRenderContext returns a context rendering non-hovered features at opacity.
func NewRenderContext(opacity float64) *RenderContext {
	return &RenderContext{opacity: opacity}
}

// NewIconContext returns a context that always renders icon.
func NewIconContext(icon string) *RenderContext {
	return &RenderContext{fixedIcon: icon, opacity: 1}
}

// SetHovered records the feature under the pointer (nil for none) and
// reports whether it changed.
func (c *RenderContext) SetHovered(f *geojson.Feature) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := c.hovered != f
	c.hovered = f
	return changed
}

// Hovered returns the feature under the pointer, if any.
func (c *RenderContext) Hovered() *geojson.Feature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hovered
}

// SetFixedIcon forces every feature to render with icon. Empty clears it.
func (c *RenderContext) SetFixedIcon(icon string) {
	c.mu.Lock()
	c.fixedIcon = icon
	c.mu.Unlock()
}

// FixedIcon returns the icon override, or "".
func (c *RenderContext) FixedIcon() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fixedIcon
}

// Opacity returns the opacity of non-hovered features.
func (c *RenderContext) Opacity() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opacity
}

// Resolve returns the paint for f given the context at call time.
//
//  1. a fixed icon wins for every feature, at full opacity;
//  2. the hovered feature gets the hovered variant, at full opacity;
//  3. everything else gets the default variant at the context opacity.
func Resolve(f *geojson.Feature, ctx *RenderContext) Spec {
	if ctx == nil {
		s := defaultSpec
		s.Opacity = 1
		return s
	}

	ctx.mu.RLock()
	icon, hovered, opacity := ctx.fixedIcon, ctx.hovered, ctx.opacity
	ctx.mu.RUnlock()

	switch {
	case icon != "":
		return Spec{Variant: VariantIcon, Icon: icon, Opacity: 1}
	case f != nil && f == hovered:
		return hoveredSpec
	default:
		s := defaultSpec
		s.Opacity = opacity
		return s
	}
}

// Func is a layer style function.
type Func func(f *geojson.Feature) Spec

// ForContext binds Resolve to ctx.
func ForContext(ctx *RenderContext) Func {
	return func(f *geojson.Feature) Spec {
		return Resolve(f, ctx)
	}
}
