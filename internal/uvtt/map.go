package uvtt

import (
	"github.com/ostrand/battlemap-engine/internal/geometry"
)

// Defaults applied when optional UVTT fields are absent. Values follow what
// mainstream map-authoring tools emit.
const (
	DefaultPixelsPerGrid = 70
	DefaultMapSize       = 25.0
	DefaultLightRange    = 5.0
	DefaultIntensity     = 1.0
	DefaultColor         = "ffffffff"
)

// Portal is a wall-like segment whose opacity toggles during play.
type Portal struct {
	ID           string
	Segment      geometry.Segment
	Position     geometry.Point
	Rotation     float64
	Closed       bool
	Freestanding bool
}

// BakedLight is a static light source authored into the map document.
type BakedLight struct {
	Position  geometry.Point
	RangePx   float64
	Intensity float64
	Color     string
	Shadows   bool
}

// Map is the validated in-memory form of a map document. All coordinates are
// image pixels; the document's grid-unit values are converted on load.
type Map struct {
	PixelsPerGrid int
	WidthPx       float64
	HeightPx      float64
	Walls         []geometry.Segment
	Portals       []Portal
	Lights        []BakedLight
	BakedLighting bool
	AmbientColor  string
	// ImageRef carries the document's embedded image untouched. Rendering is
	// the presentation layer's concern.
	ImageRef string
}

// Bounds returns the map's pixel rectangle.
func (m *Map) Bounds() geometry.Rect {
	return geometry.Rect{Width: m.WidthPx, Height: m.HeightPx}
}

// GridToPixels converts a grid-unit distance to pixels.
func (m *Map) GridToPixels(units float64) float64 {
	return units * float64(m.PixelsPerGrid)
}

// OpaqueSegments returns every sight-blocking segment for the given portal
// states: all walls plus every closed portal. Open portals are transparent.
func (m *Map) OpaqueSegments(openPortals map[string]bool) []geometry.Segment {
	out := make([]geometry.Segment, 0, len(m.Walls)+len(m.Portals))
	out = append(out, m.Walls...)
	for _, p := range m.Portals {
		if openPortals[p.ID] {
			continue
		}
		out = append(out, p.Segment)
	}
	return out
}
