package projection

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
)

const deg = math.Pi / 180

// mapping projects geodetic radians on the definition's ellipsoid to
// projected units and back.
type mapping interface {
	project(lam, phi float64) (x, y float64)
	unproject(x, y float64) (lam, phi float64)
}

func (p *Projection) use(m mapping) {
	p.forward = func(pt orb.Point) orb.Point {
		x, y := m.project(pt[0]*deg, pt[1]*deg)
		return orb.Point{x, y}
	}
	p.inverse = func(pt orb.Point) orb.Point {
		lam, phi := m.unproject(pt[0], pt[1])
		return orb.Point{lam / deg, phi / deg}
	}
}

// transverseMercator uses the Krüger series to fourth order in n, good to
// well under a millimetre within a few thousand kilometres of the central
// meridian.
type transverseMercator struct {
	e, k0, lon0 float64
	x0, y0      float64
	// rect is the rectifying radius A, m0 the scaled meridian arc at lat_0.
	rect, m0 float64

	alpha, beta, delta [4]float64
}

func (p *Projection) setupTransverseMercator() error {
	a, e, err := p.ellipsoid()
	if err != nil {
		return err
	}
	lon0, lat0, x0, y0, err := p.origin()
	if err != nil {
		return err
	}
	k0, err := p.scale()
	if err != nil {
		return err
	}

	if p.Family == UTM {
		zone, err := strconv.Atoi(p.params["zone"])
		if err != nil || zone < 1 || zone > 60 {
			return fmt.Errorf("%w: %s: +zone=%q", ErrInvalidDefinition, p.Code, p.params["zone"])
		}
		lon0, lat0 = float64(zone-1)*6-180+3, 0
		k0, x0, y0 = 0.9996, 500000, 0
		if _, south := p.params["south"]; south {
			y0 = 10000000
		}
	}

	p.use(newTransverseMercator(a, e, k0, lon0*deg, lat0*deg, x0, y0))
	return nil
}

func newTransverseMercator(a, e, k0, lon0, lat0, x0, y0 float64) *transverseMercator {
	f := 1 - math.Sqrt(1-e*e)
	n := f / (2 - f)
	n2, n3, n4 := n*n, n*n*n, n*n*n*n

	t := &transverseMercator{
		e: e, k0: k0, lon0: lon0, x0: x0, y0: y0,
		rect: a / (1 + n) * (1 + n2/4 + n4/64),
		alpha: [4]float64{
			n/2 - 2*n2/3 + 5*n3/16 + 41*n4/180,
			13*n2/48 - 3*n3/5 + 557*n4/1440,
			61*n3/240 - 103*n4/140,
			49561 * n4 / 161280,
		},
		beta: [4]float64{
			n/2 - 2*n2/3 + 37*n3/96 - n4/360,
			n2/48 + n3/15 - 437*n4/1440,
			17*n3/480 - 37*n4/840,
			4397 * n4 / 161280,
		},
		delta: [4]float64{
			2*n - 2*n2/3 - 2*n3 + 116*n4/45,
			7*n2/3 - 8*n3/5 - 227*n4/45,
			56*n3/15 - 136*n4/35,
			4279 * n4 / 630,
		},
	}
	chi := math.Atan(conformalTan(e, lat0))
	xi := chi
	for j, al := range t.alpha {
		xi += al * math.Sin(float64(2*(j+1))*chi)
	}
	t.m0 = k0 * t.rect * xi
	return t
}

// conformalTan returns tan of the conformal latitude of phi.
func conformalTan(e, phi float64) float64 {
	s := math.Sin(phi)
	return math.Sinh(math.Atanh(s) - e*math.Atanh(e*s))
}

func (t *transverseMercator) project(lam, phi float64) (float64, float64) {
	tc := conformalTan(t.e, phi)
	dl := lam - t.lon0
	xiP := math.Atan2(tc, math.Cos(dl))
	etaP := math.Atanh(math.Sin(dl) / math.Sqrt(1+tc*tc))

	xi, eta := xiP, etaP
	for j, al := range t.alpha {
		k := float64(2 * (j + 1))
		xi += al * math.Sin(k*xiP) * math.Cosh(k*etaP)
		eta += al * math.Cos(k*xiP) * math.Sinh(k*etaP)
	}
	return t.x0 + t.k0*t.rect*eta, t.y0 + t.k0*t.rect*xi - t.m0
}

func (t *transverseMercator) unproject(x, y float64) (float64, float64) {
	xi := (y - t.y0 + t.m0) / (t.k0 * t.rect)
	eta := (x - t.x0) / (t.k0 * t.rect)

	xiP, etaP := xi, eta
	for j, be := range t.beta {
		k := float64(2 * (j + 1))
		xiP -= be * math.Sin(k*xi) * math.Cosh(k*eta)
		etaP -= be * math.Cos(k*xi) * math.Sinh(k*eta)
	}
	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))
	lam := t.lon0 + math.Atan2(math.Sinh(etaP), math.Cos(xiP))

	phi := chi
	for j, de := range t.delta {
		phi += de * math.Sin(float64(2*(j+1))*chi)
	}
	return lam, phi
}

// swissObliqueMercator is the oblique conformal cylinder used by the Swiss
// CH1903 and CH1903+ grids: a Gauss sphere rotated onto the projection
// centre, then a normal Mercator.
type swissObliqueMercator struct {
	a, e, c      float64
	sinP0, cosP0 float64
	k, kR        float64
	lon0, x0, y0 float64
}

func (p *Projection) setupSwissObliqueMercator() error {
	a, e, err := p.ellipsoid()
	if err != nil {
		return err
	}
	lon0, lat0, x0, y0, err := p.origin()
	if err != nil {
		return err
	}
	k0, err := p.scale()
	if err != nil {
		return err
	}

	phi0 := lat0 * deg
	es := e * e
	cp := math.Cos(phi0) * math.Cos(phi0)
	c := math.Sqrt(1 + es*cp*cp/(1-es))
	sinP0 := math.Sin(phi0) / c
	phiP0 := math.Asin(sinP0)
	sp := e * math.Sin(phi0)

	p.use(&swissObliqueMercator{
		a: a, e: e, c: c,
		sinP0: sinP0,
		cosP0: math.Cos(phiP0),
		k: math.Log(math.Tan(math.Pi/4+phiP0/2)) -
			c*(math.Log(math.Tan(math.Pi/4+phi0/2))-e/2*math.Log((1+sp)/(1-sp))),
		kR:   k0 * math.Sqrt(1-es) / (1 - sp*sp),
		lon0: lon0 * deg,
		x0:   x0,
		y0:   y0,
	})
	return nil
}

func (s *swissObliqueMercator) project(lam, phi float64) (float64, float64) {
	sp := s.e * math.Sin(phi)
	phiP := 2*math.Atan(math.Exp(s.c*(math.Log(math.Tan(math.Pi/4+phi/2))-s.e/2*math.Log((1+sp)/(1-sp)))+s.k)) - math.Pi/2
	lamP := s.c * (lam - s.lon0)
	cp := math.Cos(phiP)
	phiPP := math.Asin(s.cosP0*math.Sin(phiP) - s.sinP0*cp*math.Cos(lamP))
	lamPP := math.Asin(cp * math.Sin(lamP) / math.Cos(phiPP))
	return s.x0 + s.a*s.kR*lamPP, s.y0 + s.a*s.kR*math.Log(math.Tan(math.Pi/4+phiPP/2))
}

func (s *swissObliqueMercator) unproject(x, y float64) (float64, float64) {
	x, y = (x-s.x0)/s.a, (y-s.y0)/s.a
	phiPP := 2 * (math.Atan(math.Exp(y/s.kR)) - math.Pi/4)
	lamPP := x / s.kR
	cp := math.Cos(phiPP)
	phiP := math.Asin(s.cosP0*math.Sin(phiPP) + s.sinP0*cp*math.Cos(lamPP))
	lamP := math.Asin(cp * math.Sin(lamPP) / math.Cos(phiP))

	con := (s.k - math.Log(math.Tan(math.Pi/4+phiP/2))) / s.c
	phi := phiP
	for range 15 {
		esp := s.e * math.Sin(phi)
		d := (con + math.Log(math.Tan(math.Pi/4+phi/2)) - s.e/2*math.Log((1+esp)/(1-esp))) *
			(1 - esp*esp) * math.Cos(phi) / (1 - s.e*s.e)
		phi -= d
		if math.Abs(d) < 1e-12 {
			break
		}
	}
	return lamP/s.c + s.lon0, phi
}

// lambertConformal is the Lambert conformal conic with one (+lat_1) or two
// (+lat_1, +lat_2) standard parallels.
type lambertConformal struct {
	a, e, k0     float64
	n, c, rho0   float64
	lon0, x0, y0 float64
}

func (p *Projection) setupLambertConformal() error {
	a, e, err := p.ellipsoid()
	if err != nil {
		return err
	}
	lon0, lat0, x0, y0, err := p.origin()
	if err != nil {
		return err
	}
	k0, err := p.scale()
	if err != nil {
		return err
	}
	lat1, err := p.float("lat_1", lat0)
	if err != nil {
		return err
	}
	lat2, err := p.float("lat_2", lat1)
	if err != nil {
		return err
	}
	phi0, phi1, phi2 := lat0*deg, lat1*deg, lat2*deg
	if math.Abs(phi1+phi2) < 1e-10 {
		return fmt.Errorf("%w: %s: standard parallels on opposite sides of the equator", ErrInvalidDefinition, p.Code)
	}

	es := e * e
	sin1 := math.Sin(phi1)
	n := sin1
	m1 := msfn(sin1, math.Cos(phi1), es)
	t1 := tsfn(phi1, e)
	if math.Abs(phi1-phi2) >= 1e-10 {
		n = math.Log(m1/msfn(math.Sin(phi2), math.Cos(phi2), es)) / math.Log(t1/tsfn(phi2, e))
	}
	c := m1 * math.Pow(t1, -n) / n
	var rho0 float64
	if math.Abs(math.Abs(phi0)-math.Pi/2) >= 1e-10 {
		rho0 = c * math.Pow(tsfn(phi0, e), n)
	}

	p.use(&lambertConformal{a: a, e: e, k0: k0, n: n, c: c, rho0: rho0, lon0: lon0 * deg, x0: x0, y0: y0})
	return nil
}

func msfn(sin, cos, es float64) float64 {
	return cos / math.Sqrt(1-es*sin*sin)
}

func tsfn(phi, e float64) float64 {
	s := math.Sin(phi)
	return math.Tan((math.Pi/2-phi)/2) / math.Pow((1-e*s)/(1+e*s), e/2)
}

func (l *lambertConformal) project(lam, phi float64) (float64, float64) {
	var rho float64
	if math.Abs(math.Abs(phi)-math.Pi/2) >= 1e-10 {
		rho = l.c * math.Pow(tsfn(phi, l.e), l.n)
	}
	theta := (lam - l.lon0) * l.n
	s := l.a * l.k0
	return l.x0 + s*rho*math.Sin(theta), l.y0 + s*(l.rho0-rho*math.Cos(theta))
}

func (l *lambertConformal) unproject(x, y float64) (float64, float64) {
	s := l.a * l.k0
	x = (x - l.x0) / s
	y = l.rho0 - (y-l.y0)/s
	rho := math.Hypot(x, y)
	if rho == 0 {
		if l.n > 0 {
			return l.lon0, math.Pi / 2
		}
		return l.lon0, -math.Pi / 2
	}
	if l.n < 0 {
		rho, x, y = -rho, -x, -y
	}
	ts := math.Pow(rho/l.c, 1/l.n)
	return math.Atan2(x, y)/l.n + l.lon0, latitudeFromTs(ts, l.e)
}

// latitudeFromTs inverts tsfn by fixed-point iteration.
func latitudeFromTs(ts, e float64) float64 {
	phi := math.Pi/2 - 2*math.Atan(ts)
	for range 15 {
		con := e * math.Sin(phi)
		d := math.Pi/2 - 2*math.Atan(ts*math.Pow((1-con)/(1+con), e/2)) - phi
		phi += d
		if math.Abs(d) < 1e-12 {
			break
		}
	}
	return phi
}
