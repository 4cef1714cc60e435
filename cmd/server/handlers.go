package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ostrand/battlemap-engine/internal/display"
	"github.com/ostrand/battlemap-engine/internal/fog"
	"github.com/ostrand/battlemap-engine/internal/geometry"
	"github.com/ostrand/battlemap-engine/internal/protocol"
	"github.com/ostrand/battlemap-engine/internal/session"
)

type server struct {
	log      logrus.FieldLogger
	manager  *session.Manager
	displays *display.Synchronizer
	notifier *DMNotifier
}

// handleControlSocket serves the DM client: intents in, patches out.
func (s *server) handleControlSocket(w http.ResponseWriter, r *http.Request) {
	mapID := r.PathValue("mapID")
	sess, err := s.manager.Open(r.Context(), mapID)
	if err != nil {
		s.log.WithError(err).WithField("map", mapID).Error("opening map session failed")
		http.Error(w, "map unavailable", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("control socket accept failed")
		return
	}
	s.notifier.Add(conn)
	defer func() {
		s.notifier.Remove(conn)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var intent protocol.IntentEnvelope
		if err := json.Unmarshal(data, &intent); err != nil {
			s.log.WithError(err).Warn("malformed intent")
			continue
		}
		if err := s.dispatchIntent(ctx, sess, intent); err != nil {
			s.log.WithError(err).WithField("type", intent.Type).Warn("intent failed")
		}
	}
}

func (s *server) dispatchIntent(ctx context.Context, sess *session.MapSession, intent protocol.IntentEnvelope) error {
	switch intent.Type {
	case "RequestTogglePortal":
		var req protocol.RequestTogglePortal
		if err := json.Unmarshal(intent.Payload, &req); err != nil {
			return err
		}
		_, err := sess.TogglePortal(ctx, req.PortalID)
		return err

	case "RequestMoveToken":
		var req protocol.RequestMoveToken
		if err := json.Unmarshal(intent.Payload, &req); err != nil {
			return err
		}
		return sess.MoveToken(ctx, req.TokenID, pointOf(req.X, req.Y))

	case "RequestToggleLight":
		var req protocol.RequestToggleLight
		if err := json.Unmarshal(intent.Payload, &req); err != nil {
			return err
		}
		_, err := sess.ToggleLight(ctx, req.LightID)
		return err

	case "RequestReveal":
		var req protocol.RequestReveal
		if err := json.Unmarshal(intent.Payload, &req); err != nil {
			return err
		}
		region, err := regionOf(req)
		if err != nil {
			return err
		}
		_, err = sess.Reveal(ctx, region)
		return err

	case "RequestHide":
		var req protocol.RequestHide
		if err := json.Unmarshal(intent.Payload, &req); err != nil {
			return err
		}
		return sess.Hide(ctx, req.AreaID)

	case "RequestRevealAll":
		_, err := sess.RevealAll(ctx)
		return err

	case "RequestResetFog":
		_, err := sess.ResetFog(ctx)
		return err

	case "RequestSetBlackout":
		var req protocol.RequestSetBlackout
		if err := json.Unmarshal(intent.Payload, &req); err != nil {
			return err
		}
		return sess.SetBlackout(req.Blackout)

	case "RequestOpenDisplay":
		_, err := sess.OpenDisplay(ctx)
		if errors.Is(err, display.ErrSessionOpen) {
			return nil // already open; idempotent from the DM's seat
		}
		return err

	case "RequestCloseDisplay":
		return sess.CloseDisplay()

	default:
		return errors.New("unknown intent type " + intent.Type)
	}
}

// handleDisplaySocket attaches a presentation surface to an open display
// session and replays the current frame so a late-joining surface is never
// blank.
func (s *server) handleDisplaySocket(w http.ResponseWriter, r *http.Request) {
	mapID := r.PathValue("mapID")
	dispSess, ok := s.displays.Get(mapID)
	if !ok {
		http.Error(w, "no open display session", http.StatusConflict)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("display socket accept failed")
		return
	}
	dispSess.Hub().Add(conn)
	defer func() {
		dispSess.Hub().Remove(conn)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	// Catch the late joiner up from the retained frame; the other surfaces
	// see nothing.
	if err := dispSess.Replay(r.Context(), conn); err != nil {
		s.log.WithError(err).WithField("map", mapID).Warn("frame replay failed")
	}

	// The surface only listens; drain until it disconnects or the session
	// context ends.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func pointOf(x, y float64) geometry.Point {
	return geometry.Point{X: x, Y: y}
}

func regionOf(req protocol.RequestReveal) (fog.Region, error) {
	switch req.Shape {
	case string(fog.ShapeRect):
		return fog.RectRegion(req.X, req.Y, req.Width, req.Height), nil
	case string(fog.ShapeCircle):
		return fog.CircleRegion(req.CenterX, req.CenterY, req.Radius), nil
	default:
		return fog.Region{}, errors.New("unsupported reveal shape " + req.Shape)
	}
}
