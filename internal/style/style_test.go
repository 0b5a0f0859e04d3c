package style

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"
)

func TestResolve_HoverThenLeave(t *testing.T) {
	ctx := NewRenderContext(DefaultOpacity)
	f := geojson.NewFeature(orb.Point{1, 1})
	g := geojson.NewFeature(orb.Point{2, 2})

	require.Equal(t, VariantDefault, Resolve(f, ctx).Variant)
	require.Equal(t, DefaultOpacity, Resolve(f, ctx).Opacity)

	require.True(t, ctx.SetHovered(f))
	require.Equal(t, VariantHovered, Resolve(f, ctx).Variant)
	require.Equal(t, 1.0, Resolve(f, ctx).Opacity)
	require.Equal(t, VariantDefault, Resolve(g, ctx).Variant)

	require.True(t, ctx.SetHovered(nil))
	require.Nil(t, ctx.Hovered())
	require.Equal(t, VariantDefault, Resolve(f, ctx).Variant)
}

func TestResolve_SetHoveredReportsChange(t *testing.T) {
	ctx := NewRenderContext(1)
	f := geojson.NewFeature(orb.Point{1, 1})

	require.False(t, ctx.SetHovered(nil))
	require.True(t, ctx.SetHovered(f))
	require.False(t, ctx.SetHovered(f))
}

func TestResolve_FixedIconOverridesHover(t *testing.T) {
	ctx := NewIconContext("/static/marker.png")
	f := geojson.NewFeature(orb.Point{1, 1})
	ctx.SetHovered(f)

	s := Resolve(f, ctx)
	require.Equal(t, VariantIcon, s.Variant)
	require.Equal(t, "/static/marker.png", s.Icon)
	require.Equal(t, 1.0, s.Opacity)

	ctx.SetFixedIcon("")
	require.Equal(t, VariantHovered, Resolve(f, ctx).Variant)
}

func TestResolve_NilFeatureNeverHovered(t *testing.T) {
	ctx := NewRenderContext(0.3)
	s := Resolve(nil, ctx)
	require.Equal(t, VariantDefault, s.Variant)
	require.Equal(t, 0.3, s.Opacity)
}

func TestForContext_ReadsLiveContext(t *testing.T) {
	ctx := NewRenderContext(0.5)
	fn := ForContext(ctx)
	f := geojson.NewFeature(orb.Point{1, 1})

	require.Equal(t, VariantDefault, fn(f).Variant)
	ctx.SetHovered(f)
	require.Equal(t, VariantHovered, fn(f).Variant)
}
