package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/ostrand/battlemap-engine/internal/display"
	"github.com/ostrand/battlemap-engine/internal/fog"
	"github.com/ostrand/battlemap-engine/internal/storage/sqlite"
	"github.com/ostrand/battlemap-engine/internal/uvtt"
)

func newManagerFixture(t *testing.T) (*Manager, *sqlite.Store) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	dir := t.TempDir()
	store, err := sqlite.Open(filepath.Join(dir, "manager.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	doc := []byte(`{
		"resolution": {"pixels_per_grid": 70, "map_size": {"x": 10, "y": 10}},
		"line_of_sight": [[{"x": 0, "y": 0}, {"x": 10, "y": 0}]]
	}`)
	if err := os.WriteFile(filepath.Join(dir, "dungeon.uvtt"), doc, 0o644); err != nil {
		t.Fatalf("writing map fixture: %v", err)
	}
	// The record stores a relative path; the manager resolves it against the
	// configured map directory.
	if _, err := store.CreateMap(context.Background(), sqlite.MapRecord{
		ID:         "map-1",
		Name:       "Test Dungeon",
		UVTTPath:   "dungeon.uvtt",
		FogEnabled: true,
	}); err != nil {
		t.Fatalf("creating map: %v", err)
	}

	manager := NewManager(log, store, uvtt.NewLoader(log), fog.NewService(store),
		display.NewSynchronizer(log), NopNotifier{}, dir)
	return manager, store
}

func TestManagerOpen(t *testing.T) {
	// Arrange
	manager, _ := newManagerFixture(t)
	ctx := context.Background()

	// Act
	sess, err := manager.Open(ctx, "map-1")

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.MapID() != "map-1" {
		t.Errorf("expected map-1, got %q", sess.MapID())
	}
	if len(sess.ListWalls()) != 1 {
		t.Errorf("expected the document wall to load, got %d walls", len(sess.ListWalls()))
	}

	// Opening again returns the same session.
	again, err := manager.Open(ctx, "map-1")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if again != sess {
		t.Error("expected the same session instance on reopen")
	}
}

func TestManagerOpen_UnknownMap(t *testing.T) {
	// Arrange
	manager, _ := newManagerFixture(t)

	// Act
	_, err := manager.Open(context.Background(), "map-99")

	// Assert
	if !errors.Is(err, sqlite.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManagerClose(t *testing.T) {
	// Arrange
	manager, _ := newManagerFixture(t)
	ctx := context.Background()
	sess, err := manager.Open(ctx, "map-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := sess.OpenDisplay(ctx); err != nil {
		t.Fatalf("opening display: %v", err)
	}

	// Act
	manager.Close("map-1")

	// Assert: the session and its display are gone; reopen builds fresh.
	if _, ok := manager.Get("map-1"); ok {
		t.Error("session should be dropped after close")
	}
	fresh, err := manager.Open(ctx, "map-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if fresh == sess {
		t.Error("expected a fresh session after close")
	}
}

func TestManagerClose_Unknown(t *testing.T) {
	// Closing an unopened map is a no-op.
	manager, _ := newManagerFixture(t)
	manager.Close("map-99")
}
