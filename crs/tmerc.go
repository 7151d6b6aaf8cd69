package crs

import (
	"math"

	"github.com/wroge/wgs84"
)

func etrs89UTM(zone int) wgs84.ProjectedReferenceSystem {
	lon0 := float64(zone*6 - 183)
	return wgs84.ProjectedReferenceSystem{
		Datum:      wgs84.ETRS89(),
		Projection: transverseMercator{lon0: lon0, k0: 0.9996, falseE: 500000},
		Area: wgs84.AreaFunc(func(lon, lat float64) bool {
			return lon >= lon0-3 && lon <= lon0+3 && lat >= 0 && lat <= 84
		}),
	}
}

// transverseMercator is the Krüger series to fourth order in n. It plugs into
// the wgs84 reference systems, which handle datums and geographic axes.
type transverseMercator struct {
	lon0           float64
	k0             float64
	falseE, falseN float64
}

type krugerSeries struct {
	k0A                float64
	e                  float64
	alpha, beta, delta [4]float64
}

func newKrugerSeries(s wgs84.Spheroid, k0 float64) krugerSeries {
	f := 1 / s.Fi()
	n := f / (2 - f)
	n2, n3, n4 := n*n, n*n*n, n*n*n*n

	return krugerSeries{
		k0A: k0 * s.A() / (1 + n) * (1 + n2/4 + n4/64),
		e:   2 * math.Sqrt(n) / (1 + n),
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
}

func (tm transverseMercator) FromLonLat(lon, lat float64, s wgs84.Spheroid) (east, north float64) {
	k := newKrugerSeries(s, tm.k0)

	phi := lat * math.Pi / 180
	lam := (lon - tm.lon0) * math.Pi / 180

	sinPhi := math.Sin(phi)
	t := math.Sinh(math.Atanh(sinPhi) - k.e*math.Atanh(k.e*sinPhi))
	xi := math.Atan2(t, math.Cos(lam))
	eta := math.Atanh(math.Sin(lam) / math.Sqrt(1+t*t))

	x, y := eta, xi
	for j, a := range k.alpha {
		m := 2 * float64(j+1)
		x += a * math.Cos(m*xi) * math.Sinh(m*eta)
		y += a * math.Sin(m*xi) * math.Cosh(m*eta)
	}

	return tm.falseE + k.k0A*x, tm.falseN + k.k0A*y
}

func (tm transverseMercator) ToLonLat(east, north float64, s wgs84.Spheroid) (lon, lat float64) {
	k := newKrugerSeries(s, tm.k0)

	xi := (north - tm.falseN) / k.k0A
	eta := (east - tm.falseE) / k.k0A

	xp, ep := xi, eta
	for j, b := range k.beta {
		m := 2 * float64(j+1)
		xp -= b * math.Sin(m*xi) * math.Cosh(m*eta)
		ep -= b * math.Cos(m*xi) * math.Sinh(m*eta)
	}

	chi := math.Asin(math.Sin(xp) / math.Cosh(ep))
	phi := chi
	for j, d := range k.delta {
		phi += d * math.Sin(2*float64(j+1)*chi)
	}
	lam := math.Atan2(math.Sinh(ep), math.Cos(xp))

	return tm.lon0 + lam*180/math.Pi, phi * 180 / math.Pi
}
