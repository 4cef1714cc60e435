package geometry

import (
	"math"
	"testing"
)

func square(size float64) Polygon {
	return Polygon{Vertices: []Point{
		{X: 0, Y: 0}, {X: size, Y: 0}, {X: size, Y: size}, {X: 0, Y: size},
	}}
}

func TestPolygonContains(t *testing.T) {
	// Arrange
	poly := square(10)

	cases := []struct {
		name string
		pt   Point
		want bool
	}{
		{"center", Point{X: 5, Y: 5}, true},
		{"outside", Point{X: 15, Y: 5}, false},
		{"on edge", Point{X: 10, Y: 5}, true},
		{"on vertex", Point{X: 0, Y: 0}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			got := poly.Contains(tc.pt)

			// Assert
			if got != tc.want {
				t.Errorf("Contains(%+v) = %v, want %v", tc.pt, got, tc.want)
			}
		})
	}
}

func TestPolygonContains_Concave(t *testing.T) {
	// Arrange: a U shape; the notch is outside.
	poly := Polygon{Vertices: []Point{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10},
		{X: 7, Y: 10}, {X: 7, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 10}, {X: 0, Y: 10},
	}}

	// Act / Assert
	if poly.Contains(Point{X: 5, Y: 7}) {
		t.Error("notch interior should be outside the polygon")
	}
	if !poly.Contains(Point{X: 1.5, Y: 7}) {
		t.Error("left arm should be inside the polygon")
	}
}

func TestPolygonArea(t *testing.T) {
	// Arrange
	poly := square(10)

	// Act
	got := poly.Area()

	// Assert
	if math.Abs(got-100) > 1e-9 {
		t.Errorf("expected area 100, got %v", got)
	}
}

func TestPolygonBounds(t *testing.T) {
	// Arrange
	poly := Polygon{Vertices: []Point{{X: 2, Y: 3}, {X: 8, Y: 1}, {X: 5, Y: 9}}}

	// Act
	bounds := poly.Bounds()

	// Assert
	if bounds.X != 2 || bounds.Y != 1 || bounds.Width != 6 || bounds.Height != 8 {
		t.Errorf("unexpected bounds %+v", bounds)
	}
}
