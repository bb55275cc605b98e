package geo

import (
	"math"
	"testing"
)

func TestCirclePolygon_Closure(t *testing.T) {
	tests := []struct {
		name   string
		center Point
		radius float64
	}{
		{"equator", Point{0, 0}, 1000},
		{"southern", Point{-48.0, -10.0}, 500},
		{"high latitude", Point{25.0, 70.0}, 2500},
		{"tiny radius", Point{10, 10}, 0.5},
		{"large radius", Point{-120, 45}, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			polygon := CirclePolygon(tt.center, tt.radius)
			if len(polygon) != 1 {
				t.Fatalf("expected 1 ring, got %d", len(polygon))
			}
			ring := polygon[0]
			if len(ring) != CircleSteps+1 {
				t.Fatalf("expected %d points, got %d", CircleSteps+1, len(ring))
			}
			if ring[0] != ring[len(ring)-1] {
				t.Errorf("ring not closed: first %v, last %v", ring[0], ring[len(ring)-1])
			}
		})
	}
}

func TestCirclePolygon_Radius(t *testing.T) {
	center := Point{-48.0, -10.0}
	polygon := CirclePolygon(center, 500)
	ring := polygon[0]

	// First sample sits due north of the center
	wantLat := center.Lat() + 0.5/KmPerDegree
	if math.Abs(ring[0].Lat()-wantLat) > 1e-12 {
		t.Errorf("first sample latitude = %v, want %v", ring[0].Lat(), wantLat)
	}
	if math.Abs(ring[0].Lon()-center.Lon()) > 1e-12 {
		t.Errorf("first sample longitude = %v, want %v", ring[0].Lon(), center.Lon())
	}

	// Quarter turn sits due east, scaled by 1/cos(lat)
	east := ring[CircleSteps/4]
	wantLon := center.Lon() + 0.5/(KmPerDegree*math.Cos(center.Lat()*math.Pi/180))
	if math.Abs(east.Lon()-wantLon) > 1e-9 {
		t.Errorf("east sample longitude = %v, want %v", east.Lon(), wantLon)
	}

	// Every sample stays within the bounding box implied by the projection
	for i, p := range ring {
		if math.Abs(p.Lat()-center.Lat()) > 0.5/KmPerDegree+1e-12 {
			t.Errorf("point %d latitude %v outside radius", i, p.Lat())
		}
	}
}

func TestCirclePolygon_ZeroRadius(t *testing.T) {
	center := Point{3, 4}
	ring := CirclePolygon(center, 0)[0]
	for i, p := range ring {
		if p != center {
			t.Fatalf("point %d = %v, want degenerate center %v", i, p, center)
		}
	}
}

func TestPolygonClone(t *testing.T) {
	original := Polygon{{{0, 0}, {0, 1}, {1, 1}, {0, 0}}}
	clone := original.Clone()
	clone[0][0] = Point{9, 9}

	if original[0][0] != (Point{0, 0}) {
		t.Errorf("clone aliases original ring: %v", original[0][0])
	}
	if Polygon(nil).Clone() != nil {
		t.Error("expected nil clone for nil polygon")
	}
}

func TestRingIsClosed(t *testing.T) {
	tests := []struct {
		name string
		ring Ring
		want bool
	}{
		{"closed triangle", Ring{{0, 0}, {0, 1}, {1, 1}, {0, 0}}, true},
		{"open", Ring{{0, 0}, {0, 1}, {1, 1}}, false},
		{"single point", Ring{{0, 0}}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ring.IsClosed(); got != tt.want {
				t.Errorf("IsClosed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApproxCenter(t *testing.T) {
	polygon := Polygon{{{5, 6}, {7, 8}, {5, 6}}}
	center, ok := polygon.ApproxCenter()
	if !ok || center != (Point{5, 6}) {
		t.Errorf("ApproxCenter() = %v, %v; want [5 6], true", center, ok)
	}

	if _, ok := (Polygon{}).ApproxCenter(); ok {
		t.Error("expected no center for empty polygon")
	}
}
