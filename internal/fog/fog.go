// Package fog owns the durable record of what has been shown to players,
// decoupled from instantaneous light. Revealed areas only shrink through an
// explicit hide or reset; light changes never un-reveal them.
package fog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ostrand/battlemap-engine/internal/geometry"
)

// ErrNotFound is returned when hiding an area that does not exist.
var ErrNotFound = errors.New("fog area not found")

// Shape discriminates the region representations a reveal can use.
type Shape string

const (
	ShapeRect    Shape = "rect"
	ShapeCircle  Shape = "circle"
	ShapePolygon Shape = "polygon"
)

// Region is a revealable map region in pixel coordinates.
type Region struct {
	Shape   Shape            `json:"shape"`
	Rect    geometry.Rect    `json:"rect,omitempty"`
	Circle  geometry.Circle  `json:"circle,omitempty"`
	Polygon geometry.Polygon `json:"polygon,omitempty"`
}

// Contains reports whether pt falls inside the region.
func (r Region) Contains(pt geometry.Point) bool {
	switch r.Shape {
	case ShapeRect:
		return r.Rect.Contains(pt)
	case ShapeCircle:
		return r.Circle.Contains(pt)
	case ShapePolygon:
		return r.Polygon.Contains(pt)
	}
	return false
}

// RectRegion builds a rectangular region.
func RectRegion(x, y, width, height float64) Region {
	return Region{Shape: ShapeRect, Rect: geometry.Rect{X: x, Y: y, Width: width, Height: height}}
}

// CircleRegion builds a circular region.
func CircleRegion(cx, cy, radius float64) Region {
	return Region{Shape: ShapeCircle, Circle: geometry.Circle{Center: geometry.Point{X: cx, Y: cy}, Radius: radius}}
}

// PolygonRegion builds a polygonal region.
func PolygonRegion(vertices []geometry.Point) Region {
	return Region{Shape: ShapePolygon, Polygon: geometry.Polygon{Vertices: vertices}}
}

// Area is one persisted revealed region, independently addressable for hide.
type Area struct {
	ID        string    `json:"id"`
	MapID     string    `json:"mapId"`
	Region    Region    `json:"region"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the durable backing for revealed areas. Every write must be
// committed before it returns.
type Store interface {
	InsertArea(ctx context.Context, area Area) error
	DeleteArea(ctx context.Context, areaID string) error
	DeleteAreasForMap(ctx context.Context, mapID string) (int, error)
	ListAreas(ctx context.Context, mapID string) ([]Area, error)
}

// Service applies reveal/hide semantics on top of a Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Reveal adds a region to the map's revealed set. Revealing an already
// revealed region is a no-op in effect; the store keeps the extra row, which
// is harmless because rows are unioned on read.
func (s *Service) Reveal(ctx context.Context, mapID string, region Region) (Area, error) {
	area := Area{
		ID:        uuid.NewString(),
		MapID:     mapID,
		Region:    region,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertArea(ctx, area); err != nil {
		return Area{}, fmt.Errorf("persist reveal: %w", err)
	}
	return area, nil
}

// RevealAll reveals the full map rectangle.
func (s *Service) RevealAll(ctx context.Context, mapID string, width, height float64) (Area, error) {
	return s.Reveal(ctx, mapID, RectRegion(0, 0, width, height))
}

// Hide removes one previously revealed area. This is the only path by which
// fog grows back, short of a full reset.
func (s *Service) Hide(ctx context.Context, areaID string) error {
	if err := s.store.DeleteArea(ctx, areaID); err != nil {
		return fmt.Errorf("persist hide: %w", err)
	}
	return nil
}

// Reset clears every revealed area for a map and returns how many were
// removed. DM-explicit, so it is allowed to shrink the revealed set.
func (s *Service) Reset(ctx context.Context, mapID string) (int, error) {
	n, err := s.store.DeleteAreasForMap(ctx, mapID)
	if err != nil {
		return 0, fmt.Errorf("reset fog: %w", err)
	}
	return n, nil
}

// State returns the full revealed-region set for a map.
func (s *Service) State(ctx context.Context, mapID string) ([]Area, error) {
	areas, err := s.store.ListAreas(ctx, mapID)
	if err != nil {
		return nil, fmt.Errorf("list fog areas: %w", err)
	}
	return areas, nil
}

// Revealed reports whether pt falls inside the union of the given areas.
func Revealed(areas []Area, pt geometry.Point) bool {
	for _, a := range areas {
		if a.Region.Contains(pt) {
			return true
		}
	}
	return false
}
