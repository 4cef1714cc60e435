// Package display pushes composed frames to the player-facing presentation
// surface and owns the per-map display session state machine:
// Closed -> Open -> (Blackout <-> Showing) -> Closed.
package display

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ostrand/battlemap-engine/internal/protocol"
)

// ErrSessionOpen is returned when opening a display for a map that already
// has one.
var ErrSessionOpen = errors.New("display session already open for map")

// ErrSessionClosed is returned when pushing to a map without an open session.
var ErrSessionClosed = errors.New("no open display session for map")

// State names a display session's position in its lifecycle.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateShowing  State = "showing"
	StateBlackout State = "blackout"
)

// Session is one open player display for one map.
type Session struct {
	mapID  string
	hub    *Hub
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	seq       uint64
	lastFrame *protocol.Frame
}

// MapID returns the map this session displays.
func (s *Session) MapID() string { return s.mapID }

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Hub exposes the session's connection hub for attaching surfaces.
func (s *Session) Hub() *Hub { return s.hub }

// Synchronizer owns every open display session, at most one per map.
type Synchronizer struct {
	log logrus.FieldLogger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSynchronizer(log logrus.FieldLogger) *Synchronizer {
	return &Synchronizer{
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Open transitions a map's display from Closed to Open. A second open for
// the same map fails with ErrSessionOpen.
func (d *Synchronizer) Open(mapID string) (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.sessions[mapID]; exists {
		return nil, ErrSessionOpen
	}
	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		mapID:  mapID,
		hub:    NewHub(),
		ctx:    ctx,
		cancel: cancel,
		state:  StateOpen,
	}
	d.sessions[mapID] = sess
	d.log.WithField("map", mapID).Info("display session opened")
	return sess, nil
}

// Get returns the open session for a map, if any.
func (d *Synchronizer) Get(mapID string) (*Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sess, ok := d.sessions[mapID]
	return sess, ok
}

// Close tears a session down. Pending deliveries are cancelled immediately;
// no queued frame for a closed session is ever applied.
func (d *Synchronizer) Close(mapID string) error {
	d.mu.Lock()
	sess, ok := d.sessions[mapID]
	if ok {
		delete(d.sessions, mapID)
	}
	d.mu.Unlock()
	if !ok {
		return ErrSessionClosed
	}

	sess.cancel()
	sess.mu.Lock()
	sess.state = StateClosed
	sess.mu.Unlock()

	envelope := protocol.FrameEnvelope{
		Sequence: sess.nextSeq(),
		MapID:    mapID,
		Type:     protocol.FrameTypeClose,
	}
	// Best-effort goodbye over a fresh context; the session context is gone.
	if data, err := json.Marshal(envelope); err == nil {
		sess.hub.Broadcast(context.Background(), data)
	}
	sess.hub.CloseAll()
	d.log.WithField("map", mapID).Info("display session closed")
	return nil
}

// PushFrame sends one complete frame to the map's presentation surface.
// While blacked out, the frame is retained but an empty blackout scene is
// what actually goes over the wire. Delivery failures are reported, never
// rolled back: the DM-side state stays authoritative.
func (d *Synchronizer) PushFrame(mapID string, frame *protocol.Frame) error {
	sess, ok := d.Get(mapID)
	if !ok {
		return ErrSessionClosed
	}

	sess.mu.Lock()
	sess.lastFrame = frame
	blackout := sess.state == StateBlackout
	if !blackout {
		sess.state = StateShowing
	}
	sess.mu.Unlock()

	out := frame
	if blackout {
		out = blackoutFrame(mapID)
	}
	return sess.deliver(protocol.FrameTypePush, out, d.log)
}

// SetBlackout toggles the display-layer override. Turning blackout off
// replays the retained frame without recomputation.
func (d *Synchronizer) SetBlackout(mapID string, blackout bool) error {
	sess, ok := d.Get(mapID)
	if !ok {
		return ErrSessionClosed
	}

	sess.mu.Lock()
	var replay *protocol.Frame
	if blackout {
		sess.state = StateBlackout
	} else {
		if sess.state == StateBlackout {
			sess.state = StateShowing
		}
		replay = sess.lastFrame
	}
	sess.mu.Unlock()

	if blackout {
		return sess.deliver(protocol.FrameTypeBlackout, blackoutFrame(mapID), d.log)
	}
	if replay == nil {
		replay = &protocol.Frame{MapID: mapID}
	}
	return sess.deliver(protocol.FrameTypePush, replay, d.log)
}

// Replay writes the session's retained frame to a single newly attached
// connection, so a late-joining surface catches up without re-broadcasting
// to everyone else. While blacked out the blackout scene goes out instead.
// With nothing retained yet there is nothing to send.
func (s *Session) Replay(ctx context.Context, conn *websocket.Conn) error {
	s.mu.Lock()
	frame := s.lastFrame
	blackout := s.state == StateBlackout
	s.mu.Unlock()

	if blackout {
		frame = blackoutFrame(s.mapID)
	}
	if frame == nil {
		return nil
	}

	envelope := protocol.FrameEnvelope{
		Sequence: s.nextSeq(),
		MapID:    s.mapID,
		Type:     protocol.FrameTypePush,
		Frame:    frame,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("replay frame: %w", err)
	}
	return nil
}

func (s *Session) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *Session) deliver(frameType string, frame *protocol.Frame, log logrus.FieldLogger) error {
	envelope := protocol.FrameEnvelope{
		Sequence: s.nextSeq(),
		MapID:    s.mapID,
		Type:     frameType,
		Frame:    frame,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if failed := s.hub.Broadcast(s.ctx, data); failed > 0 {
		log.WithFields(logrus.Fields{
			"map":    s.mapID,
			"seq":    envelope.Sequence,
			"failed": failed,
		}).Warn("frame delivery failed for some surfaces")
		return fmt.Errorf("deliver frame: %d surfaces unreachable", failed)
	}
	return nil
}

func blackoutFrame(mapID string) *protocol.Frame {
	return &protocol.Frame{MapID: mapID, Blackout: true}
}
