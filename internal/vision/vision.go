// Package vision computes visibility polygons by radial ray-casting against
// opaque segments. The result is the set of points an observer can see,
// clipped to a maximum range circle.
package vision

import (
	"math"
	"sort"

	"github.com/ostrand/battlemap-engine/internal/geometry"
)

const (
	// angleEpsilon nudges rays to either side of each endpoint so a ray that
	// grazes a corner still finds the wall behind it.
	angleEpsilon = 1e-4
	// wallSkin is the minimum hit distance. An observer standing exactly on
	// a segment treats it as non-blocking from that side.
	wallSkin = 1e-6
	// arcSteps is the count of evenly spaced fallback rays approximating the
	// range circle where no segment is hit.
	arcSteps = 32
)

// Compute returns the visibility polygon for an observer at origin, limited
// to maxRange, against the given opaque segments. Vertices come back ordered
// by angle, forming a closed ring around the origin.
func Compute(origin geometry.Point, maxRange float64, segments []geometry.Segment) geometry.Polygon {
	if maxRange <= 0 {
		return geometry.Polygon{}
	}

	relevant := pruneSegments(origin, maxRange, segments)
	angles := candidateAngles(origin, relevant)

	verts := make([]geometry.Point, 0, len(angles))
	for _, angle := range angles {
		dir := geometry.Point{X: math.Cos(angle), Y: math.Sin(angle)}
		hit, ok := geometry.NearestHit(origin, dir, relevant, wallSkin)
		if ok && hit.T <= maxRange {
			verts = appendVertex(verts, hit.Point)
			continue
		}
		verts = appendVertex(verts, origin.Add(dir.Scale(maxRange)))
	}
	return geometry.Polygon{Vertices: verts}
}

// pruneSegments keeps only segments that can affect sight within range.
func pruneSegments(origin geometry.Point, maxRange float64, segments []geometry.Segment) []geometry.Segment {
	out := make([]geometry.Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.DistTo(origin) <= maxRange {
			out = append(out, seg)
		}
	}
	return out
}

// candidateAngles builds the sorted sweep list: each endpoint angle plus a
// nudge to either side, and an even fan to trace the range circle.
func candidateAngles(origin geometry.Point, segments []geometry.Segment) []float64 {
	angles := make([]float64, 0, len(segments)*6+arcSteps)
	for _, seg := range segments {
		for _, pt := range []geometry.Point{seg.A, seg.B} {
			a := origin.AngleTo(pt)
			angles = append(angles, a-angleEpsilon, a, a+angleEpsilon)
		}
	}
	for i := 0; i < arcSteps; i++ {
		angles = append(angles, -math.Pi+2*math.Pi*float64(i)/arcSteps)
	}
	sort.Float64s(angles)
	return angles
}

// appendVertex skips vertices that coincide with the previous one so shared
// wall endpoints do not produce polygon seams.
func appendVertex(verts []geometry.Point, pt geometry.Point) []geometry.Point {
	if n := len(verts); n > 0 && verts[n-1].Dist(pt) < 1e-7 {
		return verts
	}
	return append(verts, pt)
}
