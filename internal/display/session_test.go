package display

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ostrand/battlemap-engine/internal/protocol"
)

func testSynchronizer() *Synchronizer {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewSynchronizer(log)
}

func TestOpen(t *testing.T) {
	// Arrange
	displays := testSynchronizer()

	// Act
	sess, err := displays.Open("map-1")

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.State() != StateOpen {
		t.Errorf("expected state open, got %v", sess.State())
	}
	if sess.MapID() != "map-1" {
		t.Errorf("expected map-1, got %q", sess.MapID())
	}
}

func TestOpen_SecondOpenFails(t *testing.T) {
	// Arrange
	displays := testSynchronizer()
	if _, err := displays.Open("map-1"); err != nil {
		t.Fatalf("first open: %v", err)
	}

	// Act
	_, err := displays.Open("map-1")

	// Assert
	if !errors.Is(err, ErrSessionOpen) {
		t.Errorf("expected ErrSessionOpen, got %v", err)
	}
	// A different map is unaffected.
	if _, err := displays.Open("map-2"); err != nil {
		t.Errorf("opening another map should succeed, got %v", err)
	}
}

func TestPushFrame_TransitionsToShowing(t *testing.T) {
	// Arrange
	displays := testSynchronizer()
	sess, _ := displays.Open("map-1")

	// Act
	err := displays.PushFrame("map-1", &protocol.Frame{MapID: "map-1"})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.State() != StateShowing {
		t.Errorf("expected state showing, got %v", sess.State())
	}
}

func TestPushFrame_NoOpenSession(t *testing.T) {
	// Act
	err := testSynchronizer().PushFrame("map-1", &protocol.Frame{MapID: "map-1"})

	// Assert
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSetBlackout_HoldsStateAcrossPushes(t *testing.T) {
	// Arrange
	displays := testSynchronizer()
	sess, _ := displays.Open("map-1")
	if err := displays.PushFrame("map-1", &protocol.Frame{MapID: "map-1"}); err != nil {
		t.Fatalf("push: %v", err)
	}

	// Act: blackout, then push a fresh frame while blacked out.
	if err := displays.SetBlackout("map-1", true); err != nil {
		t.Fatalf("blackout on: %v", err)
	}
	if err := displays.PushFrame("map-1", &protocol.Frame{MapID: "map-1"}); err != nil {
		t.Fatalf("push during blackout: %v", err)
	}

	// Assert: pushes do not lift the blackout.
	if sess.State() != StateBlackout {
		t.Errorf("expected state blackout, got %v", sess.State())
	}

	// Act: lift the blackout.
	if err := displays.SetBlackout("map-1", false); err != nil {
		t.Fatalf("blackout off: %v", err)
	}

	// Assert
	if sess.State() != StateShowing {
		t.Errorf("expected state showing after blackout lifts, got %v", sess.State())
	}
}

func TestSetBlackout_RetainsLastFrameForReplay(t *testing.T) {
	// Arrange: the frame pushed during blackout is the one retained.
	displays := testSynchronizer()
	sess, _ := displays.Open("map-1")
	if err := displays.SetBlackout("map-1", true); err != nil {
		t.Fatalf("blackout on: %v", err)
	}
	frame := &protocol.Frame{MapID: "map-1", PixelsPerGrid: 70}
	if err := displays.PushFrame("map-1", frame); err != nil {
		t.Fatalf("push during blackout: %v", err)
	}

	// Act
	if err := displays.SetBlackout("map-1", false); err != nil {
		t.Fatalf("blackout off: %v", err)
	}

	// Assert
	sess.mu.Lock()
	retained := sess.lastFrame
	sess.mu.Unlock()
	if retained != frame {
		t.Error("expected the frame pushed during blackout to be retained")
	}
}

func TestSetBlackout_NoOpenSession(t *testing.T) {
	// Act
	err := testSynchronizer().SetBlackout("map-1", true)

	// Assert
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestClose(t *testing.T) {
	// Arrange
	displays := testSynchronizer()
	sess, _ := displays.Open("map-1")

	// Act
	err := displays.Close("map-1")

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.State() != StateClosed {
		t.Errorf("expected state closed, got %v", sess.State())
	}
	if _, ok := displays.Get("map-1"); ok {
		t.Error("closed session should be gone from the synchronizer")
	}
	// The session context is cancelled so pending deliveries stop.
	select {
	case <-sess.ctx.Done():
	default:
		t.Error("expected the session context to be cancelled")
	}
	// Reopening after close works.
	if _, err := displays.Open("map-1"); err != nil {
		t.Errorf("reopen after close should succeed, got %v", err)
	}
}

func TestClose_NoOpenSession(t *testing.T) {
	// Act
	err := testSynchronizer().Close("map-1")

	// Assert
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

// attachSurface dials a real websocket pair and registers the server side
// with the hub, returning both ends.
func attachSurface(t *testing.T, hub *Hub) (server, client *websocket.Conn) {
	t.Helper()
	accepted := make(chan *websocket.Conn, 1)
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		accepted <- conn
		<-done
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	client, _, err := websocket.Dial(ctx, srv.URL, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dialing surface: %v", err)
	}
	server = <-accepted
	hub.Add(server)

	t.Cleanup(func() {
		client.Close(websocket.StatusNormalClosure, "")
		server.Close(websocket.StatusNormalClosure, "")
		close(done)
		srv.Close()
	})
	return server, client
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.FrameEnvelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	var envelope protocol.FrameEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	return envelope
}

func TestReplay_CatchesUpLateSurfaceOnly(t *testing.T) {
	// Arrange: one surface attached, one frame already on the wire.
	displays := testSynchronizer()
	sess, _ := displays.Open("map-1")
	_, first := attachSurface(t, sess.Hub())
	if err := displays.PushFrame("map-1", &protocol.Frame{MapID: "map-1", PixelsPerGrid: 70}); err != nil {
		t.Fatalf("push: %v", err)
	}
	readEnvelope(t, first)

	// Act: a second surface attaches and gets caught up.
	serverSecond, second := attachSurface(t, sess.Hub())
	if err := sess.Replay(context.Background(), serverSecond); err != nil {
		t.Fatalf("replay: %v", err)
	}

	// Assert: the late joiner sees the retained frame.
	envelope := readEnvelope(t, second)
	if envelope.Type != protocol.FrameTypePush {
		t.Errorf("expected a push frame, got %q", envelope.Type)
	}
	if envelope.Frame == nil || envelope.Frame.PixelsPerGrid != 70 {
		t.Errorf("expected the retained frame, got %+v", envelope.Frame)
	}
	// The first surface gets nothing and the session state is untouched.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, _, err := first.Read(ctx); err == nil {
		t.Error("replay must not re-broadcast to already attached surfaces")
	}
	if sess.State() != StateShowing {
		t.Errorf("expected state showing, got %v", sess.State())
	}
}

func TestReplay_BlackoutSendsBlackoutScene(t *testing.T) {
	// Arrange: a frame is retained but the display is blacked out.
	displays := testSynchronizer()
	sess, _ := displays.Open("map-1")
	if err := displays.PushFrame("map-1", &protocol.Frame{MapID: "map-1", PixelsPerGrid: 70}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := displays.SetBlackout("map-1", true); err != nil {
		t.Fatalf("blackout: %v", err)
	}
	serverConn, client := attachSurface(t, sess.Hub())

	// Act
	if err := sess.Replay(context.Background(), serverConn); err != nil {
		t.Fatalf("replay: %v", err)
	}

	// Assert: the late joiner sees the blackout scene, not the real frame.
	envelope := readEnvelope(t, client)
	if envelope.Frame == nil || !envelope.Frame.Blackout {
		t.Errorf("expected a blackout scene, got %+v", envelope.Frame)
	}
}

func TestReplay_NothingRetained(t *testing.T) {
	// Arrange: a freshly opened session with no frame pushed yet.
	displays := testSynchronizer()
	sess, _ := displays.Open("map-1")

	// Act / Assert: nothing to send, nothing to write.
	if err := sess.Replay(context.Background(), nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSessionSequenceIsMonotonic(t *testing.T) {
	// Arrange
	sess := &Session{mapID: "map-1"}

	// Act / Assert
	var prev uint64
	for i := 0; i < 10; i++ {
		seq := sess.nextSeq()
		if seq <= prev {
			t.Fatalf("sequence went backwards: %d after %d", seq, prev)
		}
		prev = seq
	}
}
