// Package light aggregates per-source visibility polygons into a lit-area
// description with bright and dim intensity bands.
package light

import (
	"github.com/ostrand/battlemap-engine/internal/geometry"
	"github.com/ostrand/battlemap-engine/internal/vision"
)

// FeetPerGrid is the tabletop convention: one grid square spans five feet.
const FeetPerGrid = 5.0

// AmbientLevel is a map-wide illumination floor.
type AmbientLevel string

const (
	AmbientNone   AmbientLevel = "none"
	AmbientDim    AmbientLevel = "dim"
	AmbientBright AmbientLevel = "bright"
)

// Level is the intensity of a single band.
type Level string

const (
	LevelBright Level = "bright"
	LevelDim    Level = "dim"
)

// Source is a dynamic light on a map.
type Source struct {
	ID             string
	Name           string
	Position       geometry.Point
	BrightRadiusFt float64
	DimRadiusFt    float64
	Color          string
	Enabled        bool
	// TokenID links a carried light to its carrier; the session moves the
	// light whenever the token moves.
	TokenID string
}

// Band is one light's contribution at one intensity. Dim bands cover the
// full dim radius, so a light's bright and dim bands overlap; overlaps are
// additive for intensity only and never double-reveal fog.
type Band struct {
	LightID string          `json:"lightId"`
	Level   Level           `json:"level"`
	Color   string          `json:"color"`
	Area    geometry.Polygon `json:"area"`
}

// Field is the combined lit-area description for a map.
type Field struct {
	Ambient AmbientLevel `json:"ambient"`
	Bands   []Band       `json:"bands"`
}

// Lit reports whether pt is illuminated at any intensity.
func (f Field) Lit(pt geometry.Point) bool {
	if f.Ambient == AmbientBright || f.Ambient == AmbientDim {
		return true
	}
	for _, b := range f.Bands {
		if b.Area.Contains(pt) {
			return true
		}
	}
	return false
}

// ComputeFunc resolves the visibility polygon for one observer at one
// radius. Callers can cache computations keyed by observer id.
type ComputeFunc func(observerID string, pos geometry.Point, radiusPx float64) geometry.Polygon

// Aggregate computes the illumination field for the given sources against
// the current opaque segment set. pixelsPerGrid converts the tabletop
// feet radii into map pixels. An ambient level of bright or dim bypasses
// the per-light union entirely.
func Aggregate(ambient AmbientLevel, sources []Source, opaque []geometry.Segment, pixelsPerGrid int) Field {
	return AggregateWith(ambient, sources, pixelsPerGrid,
		func(_ string, pos geometry.Point, radiusPx float64) geometry.Polygon {
			return vision.Compute(pos, radiusPx, opaque)
		})
}

// AggregateWith is Aggregate with an injected visibility computation, so a
// session can reuse cached polygons across recomputations.
func AggregateWith(ambient AmbientLevel, sources []Source, pixelsPerGrid int, compute ComputeFunc) Field {
	field := Field{Ambient: ambient}
	if ambient == AmbientBright || ambient == AmbientDim {
		return field
	}
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		brightPx := FeetToPixels(src.BrightRadiusFt, pixelsPerGrid)
		dimPx := FeetToPixels(src.DimRadiusFt, pixelsPerGrid)
		if dimPx < brightPx {
			dimPx = brightPx
		}
		if brightPx > 0 {
			area := compute(src.ID, src.Position, brightPx)
			field.Bands = append(field.Bands, Band{LightID: src.ID, Level: LevelBright, Color: src.Color, Area: area})
		}
		if dimPx > brightPx {
			area := compute(src.ID, src.Position, dimPx)
			field.Bands = append(field.Bands, Band{LightID: src.ID, Level: LevelDim, Color: src.Color, Area: area})
		}
	}
	return field
}

// FeetToPixels converts a distance in feet to image pixels.
func FeetToPixels(feet float64, pixelsPerGrid int) float64 {
	return feet / FeetPerGrid * float64(pixelsPerGrid)
}

// PixelsToFeet converts an image-pixel distance to feet.
func PixelsToFeet(px float64, pixelsPerGrid int) float64 {
	return px / float64(pixelsPerGrid) * FeetPerGrid
}
