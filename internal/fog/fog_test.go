package fog

import (
	"context"
	"errors"
	"testing"

	"github.com/ostrand/battlemap-engine/internal/geometry"
)

// memStore is an in-memory Store for exercising the service without a
// database.
type memStore struct {
	areas []Area
}

func (m *memStore) InsertArea(_ context.Context, area Area) error {
	m.areas = append(m.areas, area)
	return nil
}

func (m *memStore) DeleteArea(_ context.Context, areaID string) error {
	for i, a := range m.areas {
		if a.ID == areaID {
			m.areas = append(m.areas[:i], m.areas[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) DeleteAreasForMap(_ context.Context, mapID string) (int, error) {
	kept := m.areas[:0]
	removed := 0
	for _, a := range m.areas {
		if a.MapID == mapID {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	m.areas = kept
	return removed, nil
}

func (m *memStore) ListAreas(_ context.Context, mapID string) ([]Area, error) {
	var out []Area
	for _, a := range m.areas {
		if a.MapID == mapID {
			out = append(out, a)
		}
	}
	return out, nil
}

func TestRegionContains(t *testing.T) {
	cases := []struct {
		name   string
		region Region
		pt     geometry.Point
		want   bool
	}{
		{"rect inside", RectRegion(0, 0, 10, 10), geometry.Point{X: 5, Y: 5}, true},
		{"rect outside", RectRegion(0, 0, 10, 10), geometry.Point{X: 15, Y: 5}, false},
		{"circle inside", CircleRegion(0, 0, 5), geometry.Point{X: 3, Y: 0}, true},
		{"circle outside", CircleRegion(0, 0, 5), geometry.Point{X: 6, Y: 0}, false},
		{"polygon inside", PolygonRegion([]geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 5, Y: 10}}), geometry.Point{X: 5, Y: 3}, true},
		{"polygon outside", PolygonRegion([]geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 5, Y: 10}}), geometry.Point{X: 0, Y: 10}, false},
		{"unknown shape", Region{Shape: "blob"}, geometry.Point{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.region.Contains(tc.pt); got != tc.want {
				t.Errorf("Contains(%+v) = %v, want %v", tc.pt, got, tc.want)
			}
		})
	}
}

func TestServiceReveal(t *testing.T) {
	// Arrange
	store := &memStore{}
	svc := NewService(store)
	ctx := context.Background()

	// Act
	area, err := svc.Reveal(ctx, "map-1", RectRegion(0, 0, 100, 100))

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if area.ID == "" {
		t.Error("expected a generated area id")
	}
	if area.MapID != "map-1" {
		t.Errorf("expected map-1, got %q", area.MapID)
	}
	if len(store.areas) != 1 {
		t.Fatalf("expected 1 persisted area, got %d", len(store.areas))
	}
}

func TestServiceReveal_DuplicateIsHarmless(t *testing.T) {
	// Arrange: revealing the same region twice keeps both rows; the union
	// membership check is unchanged.
	store := &memStore{}
	svc := NewService(store)
	ctx := context.Background()
	region := CircleRegion(50, 50, 20)

	// Act
	first, err := svc.Reveal(ctx, "map-1", region)
	if err != nil {
		t.Fatalf("first reveal: %v", err)
	}
	second, err := svc.Reveal(ctx, "map-1", region)
	if err != nil {
		t.Fatalf("second reveal: %v", err)
	}

	// Assert
	if first.ID == second.ID {
		t.Error("each reveal should get its own id")
	}
	areas, _ := svc.State(ctx, "map-1")
	pt := geometry.Point{X: 50, Y: 50}
	if !Revealed(areas, pt) {
		t.Error("center should be revealed")
	}
	// Hiding one duplicate leaves the other revealing the same region.
	if err := svc.Hide(ctx, first.ID); err != nil {
		t.Fatalf("hide: %v", err)
	}
	areas, _ = svc.State(ctx, "map-1")
	if !Revealed(areas, pt) {
		t.Error("center should still be revealed by the remaining duplicate")
	}
}

func TestServiceHide_UnknownArea(t *testing.T) {
	// Arrange
	svc := NewService(&memStore{})

	// Act
	err := svc.Hide(context.Background(), "nope")

	// Assert
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceHide_ShrinksOnlyTheNamedArea(t *testing.T) {
	// Arrange: two disjoint reveals.
	store := &memStore{}
	svc := NewService(store)
	ctx := context.Background()
	west, _ := svc.Reveal(ctx, "map-1", RectRegion(0, 0, 50, 50))
	_, _ = svc.Reveal(ctx, "map-1", RectRegion(100, 100, 50, 50))

	// Act
	if err := svc.Hide(ctx, west.ID); err != nil {
		t.Fatalf("hide: %v", err)
	}

	// Assert
	areas, _ := svc.State(ctx, "map-1")
	if Revealed(areas, geometry.Point{X: 25, Y: 25}) {
		t.Error("the hidden area should no longer reveal its region")
	}
	if !Revealed(areas, geometry.Point{X: 125, Y: 125}) {
		t.Error("the other area should be untouched")
	}
}

func TestServiceRevealAll(t *testing.T) {
	// Arrange
	store := &memStore{}
	svc := NewService(store)
	ctx := context.Background()

	// Act
	_, err := svc.RevealAll(ctx, "map-1", 700, 700)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	areas, _ := svc.State(ctx, "map-1")
	for _, pt := range []geometry.Point{{X: 0, Y: 0}, {X: 350, Y: 350}, {X: 699, Y: 699}} {
		if !Revealed(areas, pt) {
			t.Errorf("point %+v should be revealed by reveal-all", pt)
		}
	}
	if Revealed(areas, geometry.Point{X: 800, Y: 350}) {
		t.Error("points outside the map rectangle stay fogged")
	}
}

func TestServiceReset(t *testing.T) {
	// Arrange
	store := &memStore{}
	svc := NewService(store)
	ctx := context.Background()
	_, _ = svc.Reveal(ctx, "map-1", RectRegion(0, 0, 10, 10))
	_, _ = svc.Reveal(ctx, "map-1", CircleRegion(50, 50, 5))
	_, _ = svc.Reveal(ctx, "map-2", RectRegion(0, 0, 10, 10))

	// Act
	n, err := svc.Reset(ctx, "map-1")

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed areas, got %d", n)
	}
	remaining, _ := svc.State(ctx, "map-2")
	if len(remaining) != 1 {
		t.Errorf("reset must not touch other maps, got %d areas", len(remaining))
	}
}
