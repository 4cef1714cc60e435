package geometry

import "math"

// RayHit describes where a ray first touched a segment.
type RayHit struct {
	Point Point
	// T is the distance along the ray from its origin to the hit point.
	T float64
}

// CastRay intersects the ray origin+t*dir (t >= 0) with seg and returns the
// hit, if any. dir does not need to be normalized, but T is reported in units
// of |dir|, so callers casting with unit vectors get pixel distances back.
func CastRay(origin, dir Point, seg Segment) (RayHit, bool) {
	// Ray: origin + t*dir. Segment: seg.A + u*(seg.B - seg.A), u in [0,1].
	sd := seg.B.Sub(seg.A)
	denom := dir.X*sd.Y - dir.Y*sd.X
	if math.Abs(denom) < 1e-12 {
		return RayHit{}, false // parallel
	}
	diff := seg.A.Sub(origin)
	t := (diff.X*sd.Y - diff.Y*sd.X) / denom
	u := (diff.X*dir.Y - diff.Y*dir.X) / denom
	if t < 0 || u < 0 || u > 1 {
		return RayHit{}, false
	}
	return RayHit{Point: origin.Add(dir.Scale(t)), T: t}, true
}

// DistTo returns the shortest distance from pt to any point on the segment.
func (s Segment) DistTo(pt Point) float64 {
	d := s.B.Sub(s.A)
	lenSq := d.X*d.X + d.Y*d.Y
	if lenSq == 0 {
		return s.A.Dist(pt)
	}
	t := ((pt.X-s.A.X)*d.X + (pt.Y-s.A.Y)*d.Y) / lenSq
	t = math.Max(0, math.Min(1, t))
	return s.A.Add(d.Scale(t)).Dist(pt)
}

// NearestHit casts a ray against every segment and returns the closest hit
// beyond minT. minT lets an observer standing exactly on a wall look past it.
func NearestHit(origin, dir Point, segments []Segment, minT float64) (RayHit, bool) {
	best := RayHit{T: math.Inf(1)}
	found := false
	for _, seg := range segments {
		hit, ok := CastRay(origin, dir, seg)
		if !ok || hit.T <= minT {
			continue
		}
		if hit.T < best.T {
			best = hit
			found = true
		}
	}
	return best, found
}
