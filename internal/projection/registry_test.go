package projection

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

const def2056 = "+proj=somerc +lat_0=46.95240555555556 +lon_0=7.439583333333333 +k_0=1 +x_0=2600000 +y_0=1200000 +ellps=bessel +towgs84=674.374,15.056,405.346,0,0,0,0 +units=m +no_defs"

func TestNewRegistry_Builtins(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, []string{EPSG3857, EPSG4326}, r.Codes())

	p, err := r.Get(EPSG3857)
	require.NoError(t, err)
	require.Equal(t, Mercator, p.Family)
	require.InDelta(t, 20037508.342789244, p.Extent.Max[0], 1e-3)
	require.InDelta(t, 20037508.342789244, p.Extent.Max[1], 1)
}

func TestRegister_Idempotent(t *testing.T) {
	r := NewRegistry()

	replaced, err := r.Register("EPSG:2056", def2056)
	require.NoError(t, err)
	require.False(t, replaced)

	replaced, err = r.Register("EPSG:2056", def2056)
	require.NoError(t, err)
	require.False(t, replaced, "same definition twice must not count as a replacement")

	require.Len(t, r.Codes(), 3)
}

func TestRegister_LastWriteWins(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register("EPSG:3395", "+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs")
	require.NoError(t, err)

	replaced, err := r.Register("EPSG:3395", "+proj=longlat +datum=WGS84 +no_defs")
	require.NoError(t, err)
	require.True(t, replaced)

	p, err := r.Get("EPSG:3395")
	require.NoError(t, err)
	require.Equal(t, LongLat, p.Family)
}

func TestRegister_InvalidDefinition(t *testing.T) {
	r := NewRegistry()

	for _, def := range []string{"", "proj=merc", "+units=m", "+proj=merc +k=abc"} {
		_, err := r.Register("EPSG:9999", def)
		require.ErrorIs(t, err, ErrInvalidDefinition, def)
	}
	require.False(t, r.Has("EPSG:9999"))
}

func TestGet_Unknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("EPSG:31370")
	require.ErrorIs(t, err, ErrUnknownProjection)

	var upe *UnknownProjectionError
	require.True(t, errors.As(err, &upe))
	require.Equal(t, "EPSG:31370", upe.Code)
}

func TestTransform_WebMercatorRoundTrip(t *testing.T) {
	r := NewRegistry()

	fwd, err := r.Transform(EPSG4326, EPSG3857)
	require.NoError(t, err)
	inv, err := r.Transform(EPSG3857, EPSG4326)
	require.NoError(t, err)

	p := fwd(orb.Point{180, 0})
	require.InDelta(t, 20037508.342789244, p[0], 1e-6)
	require.InDelta(t, 0, p[1], 1e-6)

	back := inv(fwd(orb.Point{6.6, 46.5}))
	require.InDelta(t, 6.6, back[0], 1e-9)
	require.InDelta(t, 46.5, back[1], 1e-9)
}

func TestTransform_EllipsoidalMercator(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("EPSG:3395", "+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs")
	require.NoError(t, err)

	fwd, err := r.Transform(EPSG4326, "EPSG:3395")
	require.NoError(t, err)
	inv, err := r.Transform("EPSG:3395", EPSG4326)
	require.NoError(t, err)

	// World Mercator northing differs from the spherical one at mid latitudes.
	p := fwd(orb.Point{10, 45})
	require.InDelta(t, 1113194.9079, p[0], 1e-3)
	require.InDelta(t, 5591295.9185, p[1], 1)

	back := inv(p)
	require.InDelta(t, 10, back[0], 1e-9)
	require.InDelta(t, 45, back[1], 1e-9)
}

func TestTransform_Unsupported(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("ESRI:102003", "+proj=aea +lat_1=29.5 +lat_2=45.5 +lat_0=37.5 +lon_0=-96 +x_0=0 +y_0=0 +datum=NAD83 +units=m +no_defs")
	require.NoError(t, err)

	_, err = r.Transform(EPSG4326, "ESRI:102003")
	require.ErrorIs(t, err, ErrUnsupportedProjection)

	_, err = r.Transform("ESRI:102003", "ESRI:102003")
	require.NoError(t, err, "identity transforms work for any registered code")
}

func TestTransform_SwissGrid(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("EPSG:2056", def2056)
	require.NoError(t, err)
	p, err := r.Get("EPSG:2056")
	require.NoError(t, err)
	require.Equal(t, SwissObliqueMercator, p.Family)
	require.Equal(t, "m", p.Units)

	fwd, err := r.Transform(EPSG4326, "EPSG:2056")
	require.NoError(t, err)
	inv, err := r.Transform("EPSG:2056", EPSG4326)
	require.NoError(t, err)

	// The old Bern observatory is the LV95 false origin.
	xy := fwd(orb.Point{7.438637, 46.951081})
	require.InDelta(t, 2600000, xy[0], 1)
	require.InDelta(t, 1200000, xy[1], 1)

	xy = fwd(orb.Point{8.54, 47.37})
	require.InDelta(t, 2683186.29, xy[0], 0.05)
	require.InDelta(t, 1247156.74, xy[1], 0.05)

	back := inv(xy)
	require.InDelta(t, 8.54, back[0], 1e-7)
	require.InDelta(t, 47.37, back[1], 1e-7)
}

func TestTransform_SwissGridWithoutDatumShift(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("CH1903+", "+proj=somerc +lat_0=46.95240555555556 +lon_0=7.439583333333333 +k_0=1 +x_0=2600000 +y_0=1200000 +ellps=bessel +units=m +no_defs")
	require.NoError(t, err)

	fwd, err := r.Transform(EPSG4326, "CH1903+")
	require.NoError(t, err)
	xy := fwd(orb.Point{7.439583333333333, 46.95240555555556})
	require.InDelta(t, 2600000, xy[0], 1e-6)
	require.InDelta(t, 1200000, xy[1], 1e-6)
}

func TestTransform_UTM(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("EPSG:32632", "+proj=utm +zone=32 +datum=WGS84 +units=m +no_defs")
	require.NoError(t, err)

	fwd, err := r.Transform(EPSG4326, "EPSG:32632")
	require.NoError(t, err)
	inv, err := r.Transform("EPSG:32632", EPSG4326)
	require.NoError(t, err)

	xy := fwd(orb.Point{9, 45})
	require.InDelta(t, 500000, xy[0], 1e-6)
	require.InDelta(t, 4982950.4002, xy[1], 1e-3)

	xy = fwd(orb.Point{11, 50})
	require.InDelta(t, 643329.12, xy[0], 0.01)
	require.InDelta(t, 5540547.37, xy[1], 0.01)

	back := inv(xy)
	require.InDelta(t, 11, back[0], 1e-8)
	require.InDelta(t, 50, back[1], 1e-8)

	_, err = r.Register("EPSG:32732", "+proj=utm +zone=32 +south +datum=WGS84 +units=m +no_defs")
	require.NoError(t, err)
	south, err := r.Transform(EPSG4326, "EPSG:32732")
	require.NoError(t, err)
	require.InDelta(t, 10000000-4982950.4002, south(orb.Point{9, -45})[1], 1e-3)

	_, err = r.Register("EPSG:9999", "+proj=utm +datum=WGS84")
	require.ErrorIs(t, err, ErrInvalidDefinition, "utm needs a zone")
}

func TestTransform_TransverseMercatorMatchesUTM(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("UTM32", "+proj=utm +zone=32 +datum=WGS84")
	require.NoError(t, err)
	_, err = r.Register("TM9", "+proj=tmerc +lat_0=0 +lon_0=9 +k=0.9996 +x_0=500000 +y_0=0 +ellps=WGS84 +units=m")
	require.NoError(t, err)

	a, err := r.Transform(EPSG4326, "UTM32")
	require.NoError(t, err)
	b, err := r.Transform(EPSG4326, "TM9")
	require.NoError(t, err)
	for _, pt := range []orb.Point{{6, 44}, {9, 0}, {12, 60}} {
		require.InDelta(t, a(pt)[0], b(pt)[0], 1e-6)
		require.InDelta(t, a(pt)[1], b(pt)[1], 1e-6)
	}

	between, err := r.Transform("UTM32", "TM9")
	require.NoError(t, err)
	xy := between(orb.Point{643329.12, 5540547.37})
	require.InDelta(t, 643329.12, xy[0], 1e-4)
	require.InDelta(t, 5540547.37, xy[1], 1e-4)
}

func TestTransform_LambertConformal(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("EPSG:2154", "+proj=lcc +lat_0=46.5 +lon_0=3 +lat_1=49 +lat_2=44 +x_0=700000 +y_0=6600000 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs")
	require.NoError(t, err)

	fwd, err := r.Transform(EPSG4326, "EPSG:2154")
	require.NoError(t, err)
	inv, err := r.Transform("EPSG:2154", EPSG4326)
	require.NoError(t, err)

	xy := fwd(orb.Point{3, 46.5})
	require.InDelta(t, 700000, xy[0], 1e-6)
	require.InDelta(t, 6600000, xy[1], 1e-6)

	xy = fwd(orb.Point{2.35, 48.85})
	require.InDelta(t, 652301.56, xy[0], 0.01)
	require.InDelta(t, 6861302.73, xy[1], 0.01)

	back := inv(xy)
	require.InDelta(t, 2.35, back[0], 1e-9)
	require.InDelta(t, 48.85, back[1], 1e-9)
}

func TestTransform_AcrossProjectedSystems(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("EPSG:2056", def2056)
	require.NoError(t, err)
	_, err = r.Register("EPSG:32632", "+proj=utm +zone=32 +datum=WGS84 +units=m +no_defs")
	require.NoError(t, err)

	ls := orb.LineString{{2683186.29, 1247156.74}, {2600000, 1200000}}
	utm, err := r.TransformGeometry(ls, "EPSG:2056", "EPSG:32632")
	require.NoError(t, err)
	back, err := r.TransformGeometry(utm, "EPSG:32632", "EPSG:2056")
	require.NoError(t, err)
	for i, pt := range back.(orb.LineString) {
		require.InDelta(t, ls[i][0], pt[0], 0.01)
		require.InDelta(t, ls[i][1], pt[1], 0.01)
	}
}

func TestHelmert_Parse(t *testing.T) {
	h, err := parseHelmert("674.374,15.056,405.346")
	require.NoError(t, err)
	require.Equal(t, 674.374, h.tx)
	require.False(t, h.zero())

	h, err = parseHelmert("0,0,0,0,0,0,0")
	require.NoError(t, err)
	require.True(t, h.zero())

	_, err = parseHelmert("1,2")
	require.Error(t, err)
	_, err = parseHelmert("1,2,x")
	require.Error(t, err)
}

func TestTransformGeometry_DoesNotMutateInput(t *testing.T) {
	r := NewRegistry()
	ls := orb.LineString{{0, 0}, {10, 10}}

	out, err := r.TransformGeometry(ls, EPSG4326, EPSG3857)
	require.NoError(t, err)
	require.Equal(t, orb.LineString{{0, 0}, {10, 10}}, ls)
	require.Greater(t, out.(orb.LineString)[1][0], 1e6)

	_, err = r.TransformGeometry(ls, EPSG4326, "EPSG:1")
	require.ErrorIs(t, err, ErrUnknownProjection)
}

func TestSetExtent(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("EPSG:2056", def2056)
	require.NoError(t, err)

	p, err := r.Get("EPSG:2056")
	require.NoError(t, err)
	require.True(t, p.Extent.IsZero())

	ext := orb.Bound{Min: orb.Point{2420000, 1030000}, Max: orb.Point{2900000, 1350000}}
	require.NoError(t, r.SetExtent("EPSG:2056", ext))

	p, err = r.Get("EPSG:2056")
	require.NoError(t, err)
	require.Equal(t, ext, p.Extent)

	require.ErrorIs(t, r.SetExtent("EPSG:1", ext), ErrUnknownProjection)
}

func TestRegister_Concurrent(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Register("EPSG:2056", def2056)
			require.NoError(t, err)
			_, err = r.Get("EPSG:2056")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, r.Codes(), 3)
}

func TestMercatorInverse_Converges(t *testing.T) {
	m := mercator{a: wgs84A, e: math.Sqrt(2/wgs84Rf - 1/(wgs84Rf*wgs84Rf)), k0: 1}
	for _, lat := range []float64{-80, -45, 0, 12.5, 60, 84} {
		back := m.inverse(m.forward(orb.Point{33, lat}))
		require.InDelta(t, lat, back[1], 1e-9)
	}
}
