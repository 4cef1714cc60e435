package geometry

import "math"

// Contains reports whether pt lies inside the polygon, using the even-odd
// crossing rule. Points exactly on an edge count as inside.
func (p Polygon) Contains(pt Point) bool {
	n := len(p.Vertices)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := p.Vertices[i], p.Vertices[j]
		if onSegment(pt, Segment{A: a, B: b}) {
			return true
		}
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			xCross := (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y) + a.X
			if pt.X < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Area returns the unsigned area enclosed by the polygon.
func (p Polygon) Area() float64 {
	n := len(p.Vertices)
	if n < 3 {
		return 0
	}
	sum := 0.0
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := p.Vertices[j], p.Vertices[i]
		sum += a.X*b.Y - b.X*a.Y
		j = i
	}
	return math.Abs(sum) / 2
}

// Bounds returns the polygon's axis-aligned bounding rectangle.
func (p Polygon) Bounds() Rect {
	if len(p.Vertices) == 0 {
		return Rect{}
	}
	minX, minY := p.Vertices[0].X, p.Vertices[0].Y
	maxX, maxY := minX, minY
	for _, v := range p.Vertices[1:] {
		minX = math.Min(minX, v.X)
		minY = math.Min(minY, v.Y)
		maxX = math.Max(maxX, v.X)
		maxY = math.Max(maxY, v.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func onSegment(pt Point, seg Segment) bool {
	cross := (seg.B.X-seg.A.X)*(pt.Y-seg.A.Y) - (seg.B.Y-seg.A.Y)*(pt.X-seg.A.X)
	if math.Abs(cross) > 1e-9*math.Max(1, seg.Length()) {
		return false
	}
	dot := (pt.X-seg.A.X)*(seg.B.X-seg.A.X) + (pt.Y-seg.A.Y)*(seg.B.Y-seg.A.Y)
	if dot < 0 {
		return false
	}
	return dot <= seg.Length()*seg.Length()
}
