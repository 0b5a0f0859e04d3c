package projection

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Family is the projection method named by the +proj parameter.
type Family string

const (
	LongLat              Family = "longlat"
	Mercator             Family = "merc"
	TransverseMercator   Family = "tmerc"
	UTM                  Family = "utm"
	SwissObliqueMercator Family = "somerc"
	LambertConformal     Family = "lcc"
)

const (
	wgs84A  = 6378137.0
	wgs84Rf = 298.257223563

	// maxMercatorLat is the latitude at which spherical web mercator becomes square.
	maxMercatorLat = 85.0511287798066
)

// Projection is a parsed proj4 definition registered under a CRS code.
type Projection struct {
	Code       string
	Definition string
	Family     Family
	Units      string
	Extent     orb.Bound

	params map[string]string

	// forward maps WGS84 lon/lat degrees to projected coordinates, inverse
	// the reverse. Both are nil for families without a transform
	// implementation.
	forward orb.Projection
	inverse orb.Projection
}

// Transformable reports whether coordinates can be moved in and out of this CRS.
func (p *Projection) Transformable() bool {
	return p.forward != nil && p.inverse != nil
}

// Param returns a raw proj4 parameter value.
func (p *Projection) Param(key string) (string, bool) {
	v, ok := p.params[key]
	return v, ok
}

// parseDefinition parses a proj4 definition string such as
// "+proj=merc +a=6378137 +b=6378137 +units=m +no_defs".
func parseDefinition(code, def string) (*Projection, error) {
	params := map[string]string{}
	for _, tok := range strings.Fields(def) {
		if !strings.HasPrefix(tok, "+") {
			return nil, fmt.Errorf("%w: %s: unexpected token %q", ErrInvalidDefinition, code, tok)
		}
		tok = strings.TrimPrefix(tok, "+")
		key, value, _ := strings.Cut(tok, "=")
		if key == "" {
			return nil, fmt.Errorf("%w: %s: empty parameter", ErrInvalidDefinition, code)
		}
		params[key] = value
	}

	name, ok := params["proj"]
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %s: missing +proj", ErrInvalidDefinition, code)
	}

	p := &Projection{
		Code:       code,
		Definition: def,
		Family:     Family(name),
		Units:      params["units"],
		params:     params,
	}

	var err error
	switch p.Family {
	case "latlong", "lonlat", "latlon":
		p.Family = LongLat
		fallthrough
	case LongLat:
		p.Units = "degrees"
		p.forward = func(pt orb.Point) orb.Point { return pt }
		p.inverse = func(pt orb.Point) orb.Point { return pt }
		p.Extent = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}
	case Mercator:
		err = p.setupMercator()
	case TransverseMercator, UTM:
		err = p.setupTransverseMercator()
	case SwissObliqueMercator:
		err = p.setupSwissObliqueMercator()
	case LambertConformal:
		err = p.setupLambertConformal()
	}
	if err != nil {
		return nil, err
	}
	if p.Transformable() {
		if p.Family != LongLat && p.Units == "" {
			p.Units = "m"
		}
		if err := p.applyDatum(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Projection) float(key string, def float64) (float64, error) {
	v, ok := p.params[key]
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: +%s=%q", ErrInvalidDefinition, p.Code, key, v)
	}
	return f, nil
}

// ellipsoid returns the semi-major axis and eccentricity declared by the definition.
func (p *Projection) ellipsoid() (a, e float64, err error) {
	if r, ok := p.params["R"]; ok {
		a, err = strconv.ParseFloat(r, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %s: +R=%q", ErrInvalidDefinition, p.Code, r)
		}
		return a, 0, nil
	}

	a, rf := wgs84A, wgs84Rf
	name := p.params["ellps"]
	if name == "" {
		name = datumEllipsoids[p.params["datum"]]
	}
	if ell, ok := ellipsoids[name]; ok {
		a, rf = ell[0], ell[1]
	}
	// Unknown ellipsoids fall back to WGS84 unless +a/+b say otherwise.

	if a, err = p.float("a", a); err != nil {
		return 0, 0, err
	}
	if b, ok := p.params["b"]; ok {
		bv, err := strconv.ParseFloat(b, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %s: +b=%q", ErrInvalidDefinition, p.Code, b)
		}
		if bv == a {
			return a, 0, nil
		}
		f := (a - bv) / a
		return a, math.Sqrt(2*f - f*f), nil
	}
	if rf, err = p.float("rf", rf); err != nil {
		return 0, 0, err
	}
	if rf == 0 {
		return a, 0, nil
	}
	f := 1 / rf
	return a, math.Sqrt(2*f - f*f), nil
}

// scale returns +k_0, or its alias +k.
func (p *Projection) scale() (float64, error) {
	k0, err := p.float("k_0", 1)
	if err != nil {
		return 0, err
	}
	if k, ok := p.params["k"]; ok {
		if k0, err = strconv.ParseFloat(k, 64); err != nil {
			return 0, fmt.Errorf("%w: %s: +k=%q", ErrInvalidDefinition, p.Code, k)
		}
	}
	return k0, nil
}

// origin returns +lon_0, +lat_0 in degrees and the false easting and northing.
func (p *Projection) origin() (lon0, lat0, x0, y0 float64, err error) {
	if lon0, err = p.float("lon_0", 0); err != nil {
		return
	}
	if lat0, err = p.float("lat_0", 0); err != nil {
		return
	}
	if x0, err = p.float("x_0", 0); err != nil {
		return
	}
	y0, err = p.float("y_0", 0)
	return
}

func (p *Projection) setupMercator() error {
	a, e, err := p.ellipsoid()
	if err != nil {
		return err
	}
	lon0, _, x0, y0, err := p.origin()
	if err != nil {
		return err
	}
	k0, err := p.scale()
	if err != nil {
		return err
	}
	latTS, err := p.float("lat_ts", 0)
	if err != nil {
		return err
	}
	if latTS != 0 {
		phi := latTS * math.Pi / 180
		sin := math.Sin(phi)
		k0 = math.Cos(phi) / math.Sqrt(1-e*e*sin*sin)
	}

	if a == wgs84A && e == 0 && k0 == 1 && lon0 == 0 && x0 == 0 && y0 == 0 {
		p.forward = project.WGS84.ToMercator
		p.inverse = project.Mercator.ToWGS84
	} else {
		m := mercator{a: a, e: e, k0: k0, lon0: lon0 * math.Pi / 180, x0: x0, y0: y0}
		p.forward = m.forward
		p.inverse = m.inverse
	}

	lo := p.forward(orb.Point{-180, -maxMercatorLat})
	hi := p.forward(orb.Point{180, maxMercatorLat})
	p.Extent = orb.Bound{Min: lo, Max: hi}
	return nil
}

// mercator is the (possibly ellipsoidal) normal Mercator projection.
type mercator struct {
	a, e, k0 float64
	lon0     float64
	x0, y0   float64
}

func (m mercator) forward(pt orb.Point) orb.Point {
	lam := pt[0] * math.Pi / 180
	phi := pt[1] * math.Pi / 180
	x := m.x0 + m.a*m.k0*(lam-m.lon0)

	sin := math.Sin(phi)
	y := math.Log(math.Tan(math.Pi/4 + phi/2))
	if m.e != 0 {
		y += m.e / 2 * math.Log((1-m.e*sin)/(1+m.e*sin))
	}
	return orb.Point{x, m.y0 + m.a*m.k0*y}
}

func (m mercator) inverse(pt orb.Point) orb.Point {
	lam := (pt[0]-m.x0)/(m.a*m.k0) + m.lon0
	t := math.Exp(-(pt[1] - m.y0) / (m.a * m.k0))

	phi := math.Pi/2 - 2*math.Atan(t)
	if m.e != 0 {
		for range 15 {
			sin := math.Sin(phi)
			next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-m.e*sin)/(1+m.e*sin), m.e/2))
			if math.Abs(next-phi) < 1e-12 {
				phi = next
				break
			}
			phi = next
		}
	}
	return orb.Point{lam * 180 / math.Pi, phi * 180 / math.Pi}
}
