package projection

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ellipsoids maps +ellps names to semi-major axis and inverse flattening.
var ellipsoids = map[string][2]float64{
	"WGS84":     {wgs84A, wgs84Rf},
	"GRS80":     {6378137, 298.257222101},
	"bessel":    {6377397.155, 299.1528128},
	"intl":      {6378388, 297},
	"clrk66":    {6378206.4, 294.9786982139},
	"clrk80ign": {6378249.2, 293.4660212936269},
	"krass":     {6378245, 298.3},
	"airy":      {6377563.396, 299.3249646},
	"sphere":    {6370997, 0},
}

// datumEllipsoids maps the +datum names whose shift to WGS84 is zero.
var datumEllipsoids = map[string]string{
	"WGS84": "WGS84",
	"NAD83": "GRS80",
}

// helmert is a +towgs84 datum shift in the position vector convention:
// translations in metres, rotations in radians, scale as a factor offset.
type helmert struct {
	tx, ty, tz float64
	rx, ry, rz float64
	s          float64
}

func parseHelmert(raw string) (helmert, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 && len(parts) != 7 {
		return helmert{}, fmt.Errorf("+towgs84 needs 3 or 7 values, got %d", len(parts))
	}
	var v [7]float64
	for i, s := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return helmert{}, fmt.Errorf("+towgs84=%q", raw)
		}
		v[i] = f
	}
	const arcsec = deg / 3600
	return helmert{
		tx: v[0], ty: v[1], tz: v[2],
		rx: v[3] * arcsec, ry: v[4] * arcsec, rz: v[5] * arcsec,
		s: v[6] * 1e-6,
	}, nil
}

func (h helmert) zero() bool {
	return h == helmert{}
}

// apply shifts a geocentric position towards WGS84. The inverse is the
// same shift with every parameter negated, exact to well under a
// millimetre for the small rotations datum shifts use.
func (h helmert) apply(x, y, z float64) (float64, float64, float64) {
	k := 1 + h.s
	return h.tx + k*(x-h.rz*y+h.ry*z),
		h.ty + k*(h.rz*x+y-h.rx*z),
		h.tz + k*(-h.ry*x+h.rx*y+z)
}

func (h helmert) inverse() helmert {
	return helmert{-h.tx, -h.ty, -h.tz, -h.rx, -h.ry, -h.rz, -h.s}
}

type ellipsoid struct{ a, e float64 }

var wgs84 = ellipsoid{a: wgs84A, e: math.Sqrt(2/wgs84Rf - 1/(wgs84Rf*wgs84Rf))}

func (el ellipsoid) toGeocentric(lam, phi float64) (x, y, z float64) {
	es := el.e * el.e
	sin := math.Sin(phi)
	n := el.a / math.Sqrt(1-es*sin*sin)
	return n * math.Cos(phi) * math.Cos(lam), n * math.Cos(phi) * math.Sin(lam), n * (1 - es) * sin
}

func (el ellipsoid) fromGeocentric(x, y, z float64) (lam, phi float64) {
	es := el.e * el.e
	p := math.Hypot(x, y)
	lam = math.Atan2(y, x)
	phi = math.Atan2(z, p*(1-es))
	for range 10 {
		sin := math.Sin(phi)
		n := el.a / math.Sqrt(1-es*sin*sin)
		h := p/math.Cos(phi) - n
		phi = math.Atan2(z, p*(1-es*n/(n+h)))
	}
	return lam, phi
}

// shift moves a lon/lat degree position from one ellipsoid to another
// through geocentric coordinates.
func shift(pt orb.Point, from, to ellipsoid, h helmert) orb.Point {
	x, y, z := from.toGeocentric(pt[0]*deg, pt[1]*deg)
	lam, phi := to.fromGeocentric(h.apply(x, y, z))
	return orb.Point{lam / deg, phi / deg}
}

// applyDatum wraps forward and inverse with the +towgs84 shift so both
// sides of every transform are WGS84 lon/lat.
func (p *Projection) applyDatum() error {
	raw, ok := p.params["towgs84"]
	if !ok {
		return nil
	}
	h, err := parseHelmert(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, p.Code, err)
	}
	if h.zero() {
		return nil
	}
	a, e, err := p.ellipsoid()
	if err != nil {
		return err
	}
	local := ellipsoid{a: a, e: e}
	back := h.inverse()

	fwd, inv := p.forward, p.inverse
	p.forward = func(pt orb.Point) orb.Point { return fwd(shift(pt, wgs84, local, back)) }
	p.inverse = func(pt orb.Point) orb.Point { return shift(inv(pt), local, wgs84, h) }
	return nil
}
