package geo

import "math"

const (
	// CircleSteps is the number of perimeter samples in a generated circle ring
	CircleSteps = 64
	// KmPerDegree approximates the length of one degree of latitude in kilometers
	KmPerDegree = 111.0
)

// Point is a [longitude, latitude] pair in degrees
type Point [2]float64

// Lon returns the longitude component
func (p Point) Lon() float64 { return p[0] }

// Lat returns the latitude component
func (p Point) Lat() float64 { return p[1] }

// Ring is an ordered sequence of points. A closed ring repeats its first point at the end.
type Ring []Point

// Polygon is a sequence of linear rings; the first ring is the outer boundary
type Polygon []Ring

// CirclePolygon approximates a circle of radiusMeters around center as a closed ring.
// It uses an equirectangular approximation (1 degree of latitude ~ 111 km) and scales
// longitude offsets by 1/cos(latitude) so the ring keeps roughly the same physical radius
// in both directions. The ring holds CircleSteps samples plus a closing point.
//
// No validation is performed: callers must reject radiusMeters <= 0 beforehand.
// A zero radius yields the center repeated CircleSteps+1 times.
func CirclePolygon(center Point, radiusMeters float64) Polygon {
	radiusKm := radiusMeters / 1000
	latOffset := radiusKm / KmPerDegree
	lonOffset := radiusKm / (KmPerDegree * math.Cos(center.Lat()*math.Pi/180))

	ring := make(Ring, 0, CircleSteps+1)
	for i := 0; i < CircleSteps; i++ {
		angle := float64(i) / CircleSteps * (math.Pi * 2)
		ring = append(ring, Point{
			center.Lon() + math.Sin(angle)*lonOffset,
			center.Lat() + math.Cos(angle)*latOffset,
		})
	}
	ring = append(ring, ring[0])
	return Polygon{ring}
}

// Clone returns a deep copy of the polygon. A nil polygon stays nil.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	for i, ring := range p {
		if ring == nil {
			continue
		}
		out[i] = make(Ring, len(ring))
		copy(out[i], ring)
	}
	return out
}

// OuterRing returns the first ring, or nil when the polygon has none
func (p Polygon) OuterRing() Ring {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}

// IsClosed reports whether the ring has at least two points and ends where it starts
func (r Ring) IsClosed() bool {
	return len(r) >= 2 && r[0] == r[len(r)-1]
}

// ApproxCenter returns an approximate center for the polygon: the first point of its
// outer ring. Legacy polygons carry no explicit center, so this is what editors anchor on.
func (p Polygon) ApproxCenter() (Point, bool) {
	outer := p.OuterRing()
	if len(outer) == 0 {
		return Point{}, false
	}
	return outer[0], true
}
