package geometry

import "math"

// Point is a position in image-pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is a straight wall-like span between two points.
type Segment struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Circle is a center point plus radius.
type Circle struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
}

// Polygon is an ordered ring of vertices. It is not required to be convex.
type Polygon struct {
	Vertices []Point `json:"vertices"`
}

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// Dist returns the euclidean distance between two points.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// AngleTo returns the angle of the ray from p toward q, in radians.
func (p Point) AngleTo(q Point) float64 {
	return math.Atan2(q.Y-p.Y, q.X-p.X)
}

// Length returns the segment's euclidean length.
func (s Segment) Length() float64 {
	return s.A.Dist(s.B)
}

// Midpoint returns the segment's center point.
func (s Segment) Midpoint() Point {
	return Point{X: (s.A.X + s.B.X) / 2, Y: (s.A.Y + s.B.Y) / 2}
}

// Contains reports whether pt lies inside the rectangle (inclusive edges).
func (r Rect) Contains(pt Point) bool {
	return pt.X >= r.X && pt.X <= r.X+r.Width && pt.Y >= r.Y && pt.Y <= r.Y+r.Height
}

// Contains reports whether pt lies inside or on the circle.
func (c Circle) Contains(pt Point) bool {
	return c.Center.Dist(pt) <= c.Radius
}
