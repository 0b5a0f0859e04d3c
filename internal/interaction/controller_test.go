package interaction

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/joeblew999/geoform/internal/geocodec"
	"github.com/joeblew999/geoform/internal/mapview"
)

func newController(t *testing.T, kind geocodec.Kind, multi bool) (*Controller, *mapview.VectorSource, *FieldSink) {
	t.Helper()
	src := mapview.NewVectorSource()
	sink := NewFieldSink("")
	c, err := New(Config{Source: src, Sink: sink, Kind: kind, Multi: multi})
	require.NoError(t, err)
	return c, src, sink
}

func TestController_DrawPointThenClear(t *testing.T) {
	c, src, sink := newController(t, geocodec.KindPoint, false)
	require.Equal(t, Empty, c.State())

	require.NoError(t, c.StartDraw())
	require.Equal(t, Drawing, c.State())
	require.Equal(t, Interactions{Draw: true}, c.Interactions())

	require.NoError(t, c.CompleteDraw(orb.Point{1, 1}))
	require.Equal(t, Editing, c.State())
	require.Equal(t, Interactions{Modify: true}, c.Interactions())
	require.JSONEq(t, `{"type":"Point","coordinates":[1,1]}`, sink.Value())
	require.Equal(t, 1, src.Len())

	require.NoError(t, c.Clear())
	require.Equal(t, Empty, c.State())
	require.Empty(t, sink.Value())
	require.Zero(t, src.Len())
	require.Equal(t, Interactions{}, c.Interactions())
}

func TestController_ClearIdempotentFromEmpty(t *testing.T) {
	c, _, sink := newController(t, geocodec.KindPolygon, false)
	require.NoError(t, c.Clear())
	require.NoError(t, c.Clear())
	require.Equal(t, Empty, c.State())
	require.Zero(t, sink.Writes())
}

func TestController_RejectsSecondFeature(t *testing.T) {
	c, src, _ := newController(t, geocodec.KindPoint, false)
	require.NoError(t, c.StartDraw())
	require.NoError(t, c.CompleteDraw(orb.Point{1, 1}))

	err := c.StartDraw()
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorIs(t, err, ErrFeatureExists)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	require.Equal(t, Editing, te.From)
	require.Equal(t, 1, src.Len())
}

func TestController_InvalidTransitions(t *testing.T) {
	c, _, _ := newController(t, geocodec.KindLineString, false)

	require.ErrorIs(t, c.CompleteDraw(orb.LineString{{0, 0}, {1, 1}}), ErrInvalidTransition)
	require.ErrorIs(t, c.Modify(orb.LineString{{0, 0}, {1, 1}}), ErrInvalidTransition)
	require.ErrorIs(t, c.AbortDraw(), ErrInvalidTransition)
	require.ErrorIs(t, c.SetModifyActive(true), ErrInvalidTransition)

	require.NoError(t, c.StartDraw())
	require.ErrorIs(t, c.StartDraw(), ErrInvalidTransition)
}

func TestController_GeometryKindChecked(t *testing.T) {
	c, src, sink := newController(t, geocodec.KindLineString, false)
	require.NoError(t, c.StartDraw())

	require.ErrorIs(t, c.CompleteDraw(orb.Point{1, 1}), ErrGeometryKind)
	require.ErrorIs(t, c.CompleteDraw(nil), ErrGeometryKind)
	require.Equal(t, Drawing, c.State())
	require.Zero(t, src.Len())
	require.Zero(t, sink.Writes())

	require.NoError(t, c.CompleteDraw(orb.LineString{{0, 0}, {1, 1}}))
	require.ErrorIs(t, c.Modify(orb.MultiLineString{{{0, 0}, {1, 1}}}), ErrGeometryKind)
}

func TestController_ModifyWritesEveryChange(t *testing.T) {
	c, src, sink := newController(t, geocodec.KindLineString, false)
	require.NoError(t, c.StartDraw())
	require.NoError(t, c.CompleteDraw(orb.LineString{{0, 0}, {1, 1}}))

	for i := 2; i < 5; i++ {
		line := orb.LineString{{0, 0}, {float64(i), float64(i)}}
		require.NoError(t, c.Modify(line))

		got, err := geocodec.DecodeGeometry([]byte(sink.Value()))
		require.NoError(t, err)
		require.True(t, orb.Equal(line, got))
		require.True(t, orb.Equal(line, src.Features()[0].Geometry))
	}
	require.Equal(t, 4, sink.Writes())
}

func TestController_ModifyRejectedWhileToggledOff(t *testing.T) {
	c, src, sink := newController(t, geocodec.KindLineString, false)
	require.NoError(t, c.StartDraw())
	require.NoError(t, c.CompleteDraw(orb.LineString{{0, 0}, {1, 1}}))
	require.NoError(t, c.SetModifyActive(false))

	err := c.Modify(orb.LineString{{0, 0}, {5, 5}})
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorIs(t, err, ErrModifyInactive)
	require.JSONEq(t, `{"type":"LineString","coordinates":[[0,0],[1,1]]}`, sink.Value())
	require.True(t, orb.Equal(orb.LineString{{0, 0}, {1, 1}}, src.Features()[0].Geometry))
	require.Equal(t, 1, sink.Writes())

	require.NoError(t, c.SetModifyActive(true))
	require.NoError(t, c.Modify(orb.LineString{{0, 0}, {5, 5}}))
	require.Equal(t, 2, sink.Writes())
}

func TestController_DegenerateGeometryRejected(t *testing.T) {
	c, src, sink := newController(t, geocodec.KindLineString, false)
	require.NoError(t, c.StartDraw())

	err := c.CompleteDraw(orb.LineString{{1, 1}})
	require.ErrorIs(t, err, geocodec.ErrMalformedGeometry)
	require.Equal(t, Drawing, c.State())
	require.Zero(t, src.Len())
	require.Zero(t, sink.Writes())
	require.Empty(t, c.Value())

	require.NoError(t, c.CompleteDraw(orb.LineString{{0, 0}, {1, 1}}))
	before := sink.Value()
	require.ErrorIs(t, c.Modify(orb.LineString{{0, 0}, {math.NaN(), 1}}), geocodec.ErrMalformedGeometry)
	require.Equal(t, before, sink.Value())
	require.Equal(t, Editing, c.State())
	require.True(t, orb.Equal(orb.LineString{{0, 0}, {1, 1}}, src.Features()[0].Geometry))
}

func TestController_OpenRingRejected(t *testing.T) {
	c, src, sink := newController(t, geocodec.KindPolygon, false)
	require.NoError(t, c.StartDraw())

	open := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}
	require.ErrorIs(t, c.CompleteDraw(open), geocodec.ErrMalformedGeometry)
	require.Zero(t, src.Len())
	require.Zero(t, sink.Writes())
}

func TestController_AbortDraw(t *testing.T) {
	c, _, _ := newController(t, geocodec.KindPoint, false)
	require.NoError(t, c.StartDraw())
	require.NoError(t, c.AbortDraw())
	require.Equal(t, Empty, c.State())
	require.Equal(t, Interactions{}, c.Interactions())
}

func TestController_ModifyToggle(t *testing.T) {
	var changes []Change
	src := mapview.NewVectorSource()
	c, err := New(Config{
		Source:   src,
		Sink:     NewFieldSink(""),
		Kind:     geocodec.KindPoint,
		OnChange: func(ch Change) { changes = append(changes, ch) },
	})
	require.NoError(t, err)

	require.NoError(t, c.StartDraw())
	require.NoError(t, c.CompleteDraw(orb.Point{3, 4}))
	require.NoError(t, c.SetModifyActive(false))
	require.NoError(t, c.SetModifyActive(false))
	require.Equal(t, Interactions{}, c.Interactions())

	require.Len(t, changes, 3)
	require.Equal(t, Drawing, changes[0].State)
	require.Equal(t, Editing, changes[1].State)
	require.JSONEq(t, `{"type":"Point","coordinates":[3,4]}`, changes[1].Value)
	require.False(t, changes[2].Interactions.Modify)
}

func TestController_MultiAppendsParts(t *testing.T) {
	c, src, sink := newController(t, geocodec.KindPoint, true)

	require.NoError(t, c.StartDraw())
	require.NoError(t, c.CompleteDraw(orb.Point{1, 1}))
	require.NoError(t, c.StartDraw())
	require.NoError(t, c.CompleteDraw(orb.Point{2, 2}))
	require.NoError(t, c.StartDraw())
	require.NoError(t, c.CompleteDraw(orb.MultiPoint{{3, 3}, {4, 4}}))

	require.Equal(t, 1, src.Len())
	require.Equal(t, orb.MultiPoint{{1, 1}, {2, 2}, {3, 3}, {4, 4}}, c.Geometry())
	require.JSONEq(t, `{"type":"MultiPoint","coordinates":[[1,1],[2,2],[3,3],[4,4]]}`, sink.Value())

	// Aborting a draw keeps the existing parts.
	require.NoError(t, c.StartDraw())
	require.NoError(t, c.AbortDraw())
	require.Equal(t, Editing, c.State())
	require.Len(t, c.Geometry(), 4)
}

func TestController_StartsEditingWithExistingGeometry(t *testing.T) {
	src := mapview.NewVectorSource()
	require.NoError(t, src.AddFeature(geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})))

	c, err := New(Config{Source: src, Sink: NewFieldSink(""), Kind: geocodec.KindPolygon})
	require.NoError(t, err)
	require.Equal(t, Editing, c.State())
	require.NotEmpty(t, c.Value())
	require.Equal(t, 1, src.Limit())

	_, err = New(Config{Source: src, Sink: NewFieldSink(""), Kind: geocodec.KindPoint})
	require.ErrorIs(t, err, ErrGeometryKind)
}

func TestController_ConfigErrors(t *testing.T) {
	_, err := New(Config{Source: mapview.NewVectorSource(), Sink: NewFieldSink(""), Kind: "GeometryCollection"})
	require.ErrorIs(t, err, ErrGeometryKind)

	_, err = New(Config{Kind: geocodec.KindPoint})
	require.Error(t, err)
}

func TestController_SinkFailureLeavesStateUntouched(t *testing.T) {
	src := mapview.NewVectorSource()
	failing := SinkFunc(func(string) error { return errors.New("field gone") })
	c, err := New(Config{Source: src, Sink: failing, Kind: geocodec.KindPoint})
	require.NoError(t, err)

	require.NoError(t, c.StartDraw())
	require.ErrorContains(t, c.CompleteDraw(orb.Point{1, 1}), "field gone")
	require.Equal(t, Drawing, c.State())
	require.Zero(t, src.Len())
	require.Empty(t, c.Value())
}

func TestController_StateString(t *testing.T) {
	require.Equal(t, "empty", Empty.String())
	require.Equal(t, "drawing", Drawing.String())
	require.Equal(t, "editing", Editing.String())
	require.Equal(t, "State(7)", State(7).String())
}

func genPart(t *rapid.T, kind geocodec.Kind) orb.Geometry {
	coord := func(label string) float64 {
		return float64(rapid.IntRange(-1000, 1000).Draw(t, label))
	}
	switch kind {
	case geocodec.KindPoint:
		return orb.Point{coord("x"), coord("y")}
	case geocodec.KindLineString:
		return orb.LineString{{coord("x0"), coord("y0")}, {coord("x1"), coord("y1")}}
	default:
		x, y := coord("x"), coord("y")
		return orb.Polygon{{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y}}}
	}
}

// Any sequence of operations keeps at most one feature in the source, and
// the sink decodes to the feature's geometry after every committed edit.
func TestProperty_SingleFeatureAndSinkInSync(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		kind := rapid.SampledFrom([]geocodec.Kind{
			geocodec.KindPoint, geocodec.KindLineString, geocodec.KindPolygon,
		}).Draw(rt, "kind")
		multi := rapid.Bool().Draw(rt, "multi")

		src := mapview.NewVectorSource()
		sink := NewFieldSink("")
		c, err := New(Config{Source: src, Sink: sink, Kind: kind, Multi: multi})
		require.NoError(rt, err)

		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 5).Draw(rt, "op") {
			case 0:
				_ = c.StartDraw()
			case 1:
				_ = c.CompleteDraw(genPart(rt, kind))
			case 2:
				_ = c.AbortDraw()
			case 3:
				g := genPart(rt, kind)
				if multi {
					g = appendParts(nil, g)
				}
				_ = c.Modify(g)
			case 4:
				_ = c.SetModifyActive(rapid.Bool().Draw(rt, "active"))
			case 5:
				require.NoError(rt, c.Clear())
			}

			require.LessOrEqual(rt, src.Len(), 1)

			g := c.Geometry()
			if g == nil {
				require.Empty(rt, sink.Value())
				require.Zero(rt, src.Len())
				continue
			}
			require.NotEqual(rt, Empty, c.State())
			decoded, err := geocodec.DecodeGeometry([]byte(sink.Value()))
			require.NoError(rt, err)
			require.True(rt, orb.Equal(g, decoded))
			require.Equal(rt, c.Value(), sink.Value())
		}
	})
}
