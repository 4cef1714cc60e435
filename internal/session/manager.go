package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ostrand/battlemap-engine/internal/display"
	"github.com/ostrand/battlemap-engine/internal/fog"
	"github.com/ostrand/battlemap-engine/internal/storage/sqlite"
	"github.com/ostrand/battlemap-engine/internal/uvtt"
)

// Manager opens and tracks map sessions, one per map at a time.
type Manager struct {
	log      logrus.FieldLogger
	store    *sqlite.Store
	loader   *uvtt.Loader
	fogSvc   *fog.Service
	displays *display.Synchronizer
	notifier Notifier
	// mapDir anchors relative UVTT paths from map records.
	mapDir string

	mu       sync.Mutex
	sessions map[string]*MapSession
}

func NewManager(log logrus.FieldLogger, store *sqlite.Store, loader *uvtt.Loader, fogSvc *fog.Service, displays *display.Synchronizer, notifier Notifier, mapDir string) *Manager {
	return &Manager{
		log:      log,
		store:    store,
		loader:   loader,
		fogSvc:   fogSvc,
		displays: displays,
		notifier: notifier,
		mapDir:   mapDir,
		sessions: make(map[string]*MapSession),
	}
}

// Open returns the existing session for a map or loads one: map record, map
// document, persisted portal/light/token/fog state.
func (m *Manager) Open(ctx context.Context, mapID string) (*MapSession, error) {
	m.mu.Lock()
	if sess, ok := m.sessions[mapID]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	rec, err := m.store.GetMap(ctx, mapID)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	path := rec.UVTTPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.mapDir, path)
	}
	doc, err := m.loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	sess, err := New(ctx, Config{
		Log:          m.log,
		MapID:        mapID,
		Doc:          doc,
		AmbientLevel: rec.AmbientLevel,
		FogEnabled:   rec.FogEnabled,
		Store:        m.store,
		Fog:          m.fogSvc,
		Displays:     m.displays,
		Notifier:     m.notifier,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[mapID]; ok {
		return existing, nil
	}
	m.sessions[mapID] = sess
	m.log.WithField("map", mapID).Info("map session opened")
	return sess, nil
}

// Get returns an already open session, if any.
func (m *Manager) Get(mapID string) (*MapSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[mapID]
	return sess, ok
}

// Close drops a session and closes its display if one is open. Switching
// maps goes through here so no stale frame can reach the old surface.
func (m *Manager) Close(mapID string) {
	m.mu.Lock()
	sess, ok := m.sessions[mapID]
	if ok {
		delete(m.sessions, mapID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	if err := sess.CloseDisplay(); err != nil && !errors.Is(err, display.ErrSessionClosed) {
		m.log.WithError(err).WithField("map", mapID).Warn("closing display failed")
	}
	m.log.WithField("map", mapID).Info("map session closed")
}
