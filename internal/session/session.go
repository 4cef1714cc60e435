// Package session owns the per-map play state and the synchronous
// recomputation pipeline: every state-changing command persists its effect,
// recomputes visibility and illumination, filters tokens, and pushes one
// complete frame to the player display.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ostrand/battlemap-engine/internal/display"
	"github.com/ostrand/battlemap-engine/internal/fog"
	"github.com/ostrand/battlemap-engine/internal/geometry"
	"github.com/ostrand/battlemap-engine/internal/light"
	"github.com/ostrand/battlemap-engine/internal/protocol"
	"github.com/ostrand/battlemap-engine/internal/token"
	"github.com/ostrand/battlemap-engine/internal/uvtt"
	"github.com/ostrand/battlemap-engine/internal/vision"
)

// visKey keys cached visibility polygons. The wall version expires entries
// when portals toggle; the position fields expire an observer's entries when
// it moves.
type visKey struct {
	observer string
	version  uint64
	pos      geometry.Point
	radiusPx float64
}

// MapSession is the single-writer owner of one map's play state.
type MapSession struct {
	log      logrus.FieldLogger
	mapID    string
	doc      *uvtt.Map
	ambient  light.AmbientLevel
	fogOn    bool
	store    Store
	fogSvc   *fog.Service
	displays *display.Synchronizer
	notifier Notifier

	// baked holds the document-authored lights, fixed for the session's
	// lifetime; dynamic lights live in the store.
	baked []light.Source

	mu         sync.Mutex
	portalOpen map[string]bool
	lights     []light.Source
	tokens     []token.Token
	// wallVersion increments on every portal toggle; cached visibility
	// polygons are keyed by (observer id, version) and expire with it.
	wallVersion uint64
	visCache    map[visKey]geometry.Polygon
}

// Config carries everything a map session needs at construction.
type Config struct {
	Log          logrus.FieldLogger
	MapID        string
	Doc          *uvtt.Map
	AmbientLevel light.AmbientLevel
	FogEnabled   bool
	Store        Store
	Fog          *fog.Service
	Displays     *display.Synchronizer
	Notifier     Notifier
}

// New builds a session, loading persisted portal states, lights, and tokens.
func New(ctx context.Context, cfg Config) (*MapSession, error) {
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	s := &MapSession{
		log:        cfg.Log.WithField("map", cfg.MapID),
		mapID:      cfg.MapID,
		doc:        cfg.Doc,
		ambient:    cfg.AmbientLevel,
		fogOn:      cfg.FogEnabled,
		store:      cfg.Store,
		fogSvc:     cfg.Fog,
		displays:   cfg.Displays,
		notifier:   cfg.Notifier,
		portalOpen: make(map[string]bool),
		visCache:   make(map[visKey]geometry.Polygon),
	}

	for _, p := range cfg.Doc.Portals {
		s.portalOpen[p.ID] = !p.Closed
	}
	for i, bl := range cfg.Doc.Lights {
		rangeFt := light.PixelsToFeet(bl.RangePx, cfg.Doc.PixelsPerGrid)
		s.baked = append(s.baked, light.Source{
			ID:             fmt.Sprintf("baked-%d", i),
			Name:           "Map Light",
			Position:       bl.Position,
			BrightRadiusFt: rangeFt,
			DimRadiusFt:    rangeFt,
			Color:          bl.Color,
			Enabled:        true,
		})
	}
	overrides, err := cfg.Store.PortalStates(ctx, cfg.MapID)
	if err != nil {
		return nil, fmt.Errorf("load portal states: %w", err)
	}
	for id, open := range overrides {
		s.portalOpen[id] = open
	}

	if s.lights, err = cfg.Store.ListLights(ctx, cfg.MapID); err != nil {
		return nil, fmt.Errorf("load lights: %w", err)
	}
	if s.tokens, err = cfg.Store.ListTokens(ctx, cfg.MapID); err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}
	return s, nil
}

// MapID returns the session's map id.
func (s *MapSession) MapID() string { return s.mapID }

// Doc returns the loaded map document.
func (s *MapSession) Doc() *uvtt.Map { return s.doc }

// ListWalls returns the map's wall segments.
func (s *MapSession) ListWalls() []geometry.Segment {
	return s.doc.Walls
}

// ListPortals returns the map's portals with their current open state.
func (s *MapSession) ListPortals() []protocol.PortalLite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portalsLocked()
}

func (s *MapSession) portalsLocked() []protocol.PortalLite {
	out := make([]protocol.PortalLite, 0, len(s.doc.Portals))
	for _, p := range s.doc.Portals {
		out = append(out, protocol.PortalLite{ID: p.ID, Segment: p.Segment, Open: s.portalOpen[p.ID]})
	}
	return out
}

// ListLights returns the map's dynamic light sources.
func (s *MapSession) ListLights() []light.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]light.Source, len(s.lights))
	copy(out, s.lights)
	return out
}

// ListTokens returns every token, hidden ones included; this is the DM view.
func (s *MapSession) ListTokens() []token.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]token.Token, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// TogglePortal flips a portal between opaque and transparent, persists the
// new state, and pushes a recomputed frame.
func (s *MapSession) TogglePortal(ctx context.Context, portalID string) (bool, error) {
	s.mu.Lock()
	if _, ok := s.portalOpen[portalID]; !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("unknown portal %q", portalID)
	}
	open := !s.portalOpen[portalID]
	s.mu.Unlock()

	if err := s.store.SetPortalOpen(ctx, s.mapID, portalID, open); err != nil {
		return false, fmt.Errorf("toggle portal: %w", err)
	}

	s.mu.Lock()
	s.portalOpen[portalID] = open
	s.wallVersion++
	s.mu.Unlock()

	s.notifier.Notify(s.mapID, "PortalStateChanged", protocol.PortalStateChanged{PortalID: portalID, Open: open})
	s.pushFrame(ctx)
	return open, nil
}

// MoveToken moves a token, drags any carried lights along, and pushes a
// recomputed frame. Every durable write lands before memory changes, so a
// failed move leaves the in-memory state untouched.
func (s *MapSession) MoveToken(ctx context.Context, tokenID string, pos geometry.Point) error {
	s.mu.Lock()
	known := false
	for i := range s.tokens {
		if s.tokens[i].ID == tokenID {
			known = true
			break
		}
	}
	var carried []string
	for i := range s.lights {
		if s.lights[i].TokenID == tokenID {
			carried = append(carried, s.lights[i].ID)
		}
	}
	s.mu.Unlock()
	if !known {
		return fmt.Errorf("unknown token %q", tokenID)
	}

	if err := s.store.UpdateTokenPosition(ctx, tokenID, pos); err != nil {
		return fmt.Errorf("move token: %w", err)
	}
	for _, lightID := range carried {
		if err := s.store.MoveLight(ctx, lightID, pos); err != nil {
			return fmt.Errorf("move carried light: %w", err)
		}
	}

	s.mu.Lock()
	var moved token.Token
	for i := range s.tokens {
		if s.tokens[i].ID == tokenID {
			s.tokens[i].Position = pos
			moved = s.tokens[i]
			break
		}
	}
	for i := range s.lights {
		if s.lights[i].TokenID == tokenID {
			s.lights[i].Position = pos
		}
	}
	s.mu.Unlock()

	s.notifier.Notify(s.mapID, "TokenUpdated", protocol.TokenUpdated{Token: protocol.TokenWire(moved)})
	s.pushFrame(ctx)
	return nil
}

// AddToken places a token on the map.
func (s *MapSession) AddToken(ctx context.Context, tok token.Token) (token.Token, error) {
	if tok.ID == "" {
		tok.ID = uuid.NewString()
	}
	tok.MapID = s.mapID
	if tok.Size == "" {
		tok.Size = token.SizeMedium
	}
	if tok.Vision == "" {
		tok.Vision = token.VisionNone
	}
	if err := s.store.InsertToken(ctx, tok); err != nil {
		return token.Token{}, fmt.Errorf("add token: %w", err)
	}

	s.mu.Lock()
	s.tokens = append(s.tokens, tok)
	s.mu.Unlock()

	s.notifier.Notify(s.mapID, "TokenUpdated", protocol.TokenUpdated{Token: protocol.TokenWire(tok)})
	s.pushFrame(ctx)
	return tok, nil
}

// RemoveToken deletes a token from the map.
func (s *MapSession) RemoveToken(ctx context.Context, tokenID string) error {
	if err := s.store.DeleteToken(ctx, tokenID); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}

	s.mu.Lock()
	for i := range s.tokens {
		if s.tokens[i].ID == tokenID {
			s.tokens = append(s.tokens[:i], s.tokens[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notifier.Notify(s.mapID, "TokenRemoved", protocol.TokenRemoved{TokenID: tokenID})
	s.pushFrame(ctx)
	return nil
}

// SetTokenHidden flips a token's DM-only visibility flag.
func (s *MapSession) SetTokenHidden(ctx context.Context, tokenID string, hidden bool) error {
	if err := s.store.SetTokenHidden(ctx, tokenID, hidden); err != nil {
		return fmt.Errorf("set token hidden: %w", err)
	}

	s.mu.Lock()
	var updated *token.Token
	for i := range s.tokens {
		if s.tokens[i].ID == tokenID {
			s.tokens[i].Hidden = hidden
			updated = &s.tokens[i]
			break
		}
	}
	s.mu.Unlock()

	if updated != nil {
		s.notifier.Notify(s.mapID, "TokenUpdated", protocol.TokenUpdated{Token: protocol.TokenWire(*updated)})
	}
	s.pushFrame(ctx)
	return nil
}

// AddLight places a dynamic light source on the map.
func (s *MapSession) AddLight(ctx context.Context, src light.Source) (light.Source, error) {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if err := s.store.InsertLight(ctx, s.mapID, src); err != nil {
		return light.Source{}, fmt.Errorf("add light: %w", err)
	}

	s.mu.Lock()
	s.lights = append(s.lights, src)
	s.mu.Unlock()

	s.notifier.Notify(s.mapID, "LightChanged", protocol.LightChanged{LightID: src.ID, Enabled: src.Enabled})
	s.pushFrame(ctx)
	return src, nil
}

// RemoveLight deletes a light source.
func (s *MapSession) RemoveLight(ctx context.Context, lightID string) error {
	if err := s.store.DeleteLight(ctx, lightID); err != nil {
		return fmt.Errorf("remove light: %w", err)
	}

	s.mu.Lock()
	for i := range s.lights {
		if s.lights[i].ID == lightID {
			s.lights = append(s.lights[:i], s.lights[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notifier.Notify(s.mapID, "LightChanged", protocol.LightChanged{LightID: lightID, Enabled: false})
	s.pushFrame(ctx)
	return nil
}

// ToggleLight flips a light's enabled flag and pushes a recomputed frame.
func (s *MapSession) ToggleLight(ctx context.Context, lightID string) (bool, error) {
	s.mu.Lock()
	var enabled *bool
	for i := range s.lights {
		if s.lights[i].ID == lightID {
			v := !s.lights[i].Enabled
			enabled = &v
			break
		}
	}
	s.mu.Unlock()
	if enabled == nil {
		return false, fmt.Errorf("unknown light %q", lightID)
	}

	if err := s.SetLightEnabled(ctx, lightID, *enabled); err != nil {
		return false, err
	}
	return *enabled, nil
}

// SetLightEnabled sets a light's enabled flag explicitly.
func (s *MapSession) SetLightEnabled(ctx context.Context, lightID string, enabled bool) error {
	if err := s.store.SetLightEnabled(ctx, lightID, enabled); err != nil {
		return fmt.Errorf("set light enabled: %w", err)
	}

	s.mu.Lock()
	for i := range s.lights {
		if s.lights[i].ID == lightID {
			s.lights[i].Enabled = enabled
			break
		}
	}
	s.mu.Unlock()

	s.notifier.Notify(s.mapID, "LightChanged", protocol.LightChanged{LightID: lightID, Enabled: enabled})
	s.pushFrame(ctx)
	return nil
}

// Reveal persists a newly revealed fog region. The write must land before
// anything is acknowledged or shown; a failed reveal changes nothing.
func (s *MapSession) Reveal(ctx context.Context, region fog.Region) (fog.Area, error) {
	area, err := s.fogSvc.Reveal(ctx, s.mapID, region)
	if err != nil {
		return fog.Area{}, err
	}
	s.notifier.Notify(s.mapID, "FogRevealed", protocol.FogRevealed{AreaID: area.ID})
	s.pushFrame(ctx)
	return area, nil
}

// RevealAll reveals the entire map rectangle.
func (s *MapSession) RevealAll(ctx context.Context) (fog.Area, error) {
	area, err := s.fogSvc.RevealAll(ctx, s.mapID, s.doc.WidthPx, s.doc.HeightPx)
	if err != nil {
		return fog.Area{}, err
	}
	s.notifier.Notify(s.mapID, "FogRevealed", protocol.FogRevealed{AreaID: area.ID})
	s.pushFrame(ctx)
	return area, nil
}

// Hide removes one previously revealed area.
func (s *MapSession) Hide(ctx context.Context, areaID string) error {
	if err := s.fogSvc.Hide(ctx, areaID); err != nil {
		return err
	}
	s.notifier.Notify(s.mapID, "FogHidden", protocol.FogHidden{AreaID: areaID})
	s.pushFrame(ctx)
	return nil
}

// ResetFog clears the map's entire revealed set.
func (s *MapSession) ResetFog(ctx context.Context) (int, error) {
	n, err := s.fogSvc.Reset(ctx, s.mapID)
	if err != nil {
		return 0, err
	}
	s.pushFrame(ctx)
	return n, nil
}

// OpenDisplay opens the player display for this map and pushes the first
// frame.
func (s *MapSession) OpenDisplay(ctx context.Context) (*display.Session, error) {
	sess, err := s.displays.Open(s.mapID)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(s.mapID, "DisplayOpened", protocol.DisplayOpened{MapID: s.mapID})
	s.pushFrame(ctx)
	return sess, nil
}

// CloseDisplay tears the player display down, cancelling pending frames.
func (s *MapSession) CloseDisplay() error {
	if err := s.displays.Close(s.mapID); err != nil {
		return err
	}
	s.notifier.Notify(s.mapID, "DisplayClosed", protocol.DisplayClosed{MapID: s.mapID})
	return nil
}

// SetBlackout toggles the display-layer blackout override.
func (s *MapSession) SetBlackout(blackout bool) error {
	if err := s.displays.SetBlackout(s.mapID, blackout); err != nil {
		return err
	}
	s.notifier.Notify(s.mapID, "BlackoutChanged", protocol.BlackoutChanged{Blackout: blackout})
	return nil
}

// Illumination computes the current lit-area field from every enabled light
// and every sighted token, reusing cached visibility polygons while the
// wall/portal configuration is unchanged.
func (s *MapSession) Illumination() light.Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.illuminationLocked()
}

func (s *MapSession) illuminationLocked() light.Field {
	sources := make([]light.Source, 0, len(s.baked)+len(s.lights)+len(s.tokens))
	sources = append(sources, s.baked...)
	sources = append(sources, s.lights...)
	for _, tok := range s.tokens {
		if src, ok := token.VisionSource(tok); ok {
			sources = append(sources, src)
		}
	}
	opaque := s.doc.OpaqueSegments(s.portalOpen)
	version := s.wallVersion
	return light.AggregateWith(s.ambient, sources, s.doc.PixelsPerGrid,
		func(observerID string, pos geometry.Point, radiusPx float64) geometry.Polygon {
			key := visKey{observer: observerID, version: version, pos: pos, radiusPx: radiusPx}
			if poly, ok := s.visCache[key]; ok {
				return poly
			}
			poly := vision.Compute(pos, radiusPx, opaque)
			s.visCache[key] = poly
			return poly
		})
}

// TokenVisibility answers the DM-side "what can this token see" query.
func (s *MapSession) TokenVisibility(tokenID string) (geometry.Polygon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tok := range s.tokens {
		if tok.ID != tokenID {
			continue
		}
		src, ok := token.VisionSource(tok)
		if !ok {
			return geometry.Polygon{}, fmt.Errorf("token %q has no vision", tokenID)
		}
		radiusPx := light.FeetToPixels(src.DimRadiusFt, s.doc.PixelsPerGrid)
		opaque := s.doc.OpaqueSegments(s.portalOpen)
		return vision.Compute(tok.Position, radiusPx, opaque), nil
	}
	return geometry.Polygon{}, fmt.Errorf("unknown token %q", tokenID)
}

// Frame composes the complete player-facing frame from current state.
func (s *MapSession) Frame(ctx context.Context) (*protocol.Frame, error) {
	areas, err := s.fogSvc.State(ctx, s.mapID)
	if err != nil {
		return nil, fmt.Errorf("compose frame: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fogOn {
		// Fog disabled reads as the whole map revealed.
		areas = []fog.Area{{
			ID:     "fog-disabled",
			MapID:  s.mapID,
			Region: fog.RectRegion(0, 0, s.doc.WidthPx, s.doc.HeightPx),
		}}
	}

	field := s.illuminationLocked()
	visible := token.FilterVisible(s.tokens, field, areas)
	wire := make([]protocol.TokenLite, 0, len(visible))
	for _, tok := range visible {
		wire = append(wire, protocol.TokenWire(tok))
	}

	return &protocol.Frame{
		MapID:         s.mapID,
		MapWidth:      s.doc.WidthPx,
		MapHeight:     s.doc.HeightPx,
		PixelsPerGrid: s.doc.PixelsPerGrid,
		ImageRef:      s.doc.ImageRef,
		Illumination:  field,
		RevealedAreas: areas,
		Tokens:        wire,
		Portals:       s.portalsLocked(),
	}, nil
}

// pushFrame recomputes and delivers a frame if a display is open. Delivery
// failure is logged and left for the next push; DM-side state is already
// committed.
func (s *MapSession) pushFrame(ctx context.Context) {
	s.mu.Lock()
	if len(s.visCache) > 4096 {
		s.visCache = make(map[visKey]geometry.Polygon)
	}
	s.mu.Unlock()

	frame, err := s.Frame(ctx)
	if err != nil {
		s.log.WithError(err).Error("frame composition failed")
		return
	}
	if err := s.displays.PushFrame(s.mapID, frame); err != nil {
		if !errors.Is(err, display.ErrSessionClosed) {
			s.log.WithError(err).Warn("frame delivery failed")
		}
	}
}
