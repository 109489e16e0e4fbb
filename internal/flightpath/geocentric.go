package flightpath

import "math"

// EquatorialRadiusM is the WGS-84 semi-major axis, also used as the sphere
// radius by the spherical model.
const EquatorialRadiusM = 6378137.0

// WGS-84 first eccentricity squared.
const wgs84E2 = 6.69437999014e-3

// EarthModel selects how geodetic coordinates map to Cartesian.
type EarthModel int

const (
	Spherical EarthModel = iota
	WGS84
)

// ParseEarthModel accepts "spherical" (or "") and "wgs84".
func ParseEarthModel(s string) (EarthModel, bool) {
	switch s {
	case "", "spherical":
		return Spherical, true
	case "wgs84":
		return WGS84, true
	default:
		return Spherical, false
	}
}

func (m EarthModel) String() string {
	if m == WGS84 {
		return "wgs84"
	}
	return "spherical"
}

type vec3 struct{ x, y, z float64 }

func (v vec3) sub(o vec3) vec3 { return vec3{v.x - o.x, v.y - o.y, v.z - o.z} }
func (v vec3) length() float64 { return math.Sqrt(v.x*v.x + v.y*v.y + v.z*v.z) }

// rotateZ rotates v by angle about the vertical (polar) axis.
func (v vec3) rotateZ(angle float64) vec3 {
	s, c := math.Sincos(angle)
	return vec3{v.x*c - v.y*s, v.x*s + v.y*c, v.z}
}

// rotateY rotates v by angle about the Y axis.
func (v vec3) rotateY(angle float64) vec3 {
	s, c := math.Sincos(angle)
	return vec3{v.x*c + v.z*s, v.y, -v.x*s + v.z*c}
}

// toCartesian converts latitude/longitude (radians) and altitude (meters)
// to Earth-centered coordinates.
func toCartesian(model EarthModel, lat, lon, alt float64) vec3 {
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	if model == WGS84 {
		n := EquatorialRadiusM / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		return vec3{
			(n + alt) * cosLat * cosLon,
			(n + alt) * cosLat * sinLon,
			(n*(1-wgs84E2) + alt) * sinLat,
		}
	}

	r := EquatorialRadiusM + alt
	return vec3{
		r * cosLat * cosLon,
		r * cosLat * sinLon,
		r * sinLat,
	}
}
