package main

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ostrand/battlemap-engine/internal/protocol"
)

// SequenceGenerator hands out monotonic patch sequence numbers.
type SequenceGenerator struct {
	counter uint64
}

func (sg *SequenceGenerator) Next() uint64 {
	return atomic.AddUint64(&sg.counter, 1)
}

func (sg *SequenceGenerator) Current() uint64 {
	return atomic.LoadUint64(&sg.counter)
}

// DMNotifier broadcasts typed change notifications to connected DM clients
// wrapped in sequence-numbered patch envelopes.
type DMNotifier struct {
	log      logrus.FieldLogger
	sequence *SequenceGenerator

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewDMNotifier(log logrus.FieldLogger) *DMNotifier {
	return &DMNotifier{
		log:      log,
		sequence: &SequenceGenerator{},
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

func (n *DMNotifier) Add(conn *websocket.Conn) {
	n.mu.Lock()
	n.clients[conn] = struct{}{}
	n.mu.Unlock()
}

func (n *DMNotifier) Remove(conn *websocket.Conn) {
	n.mu.Lock()
	delete(n.clients, conn)
	n.mu.Unlock()
}

// Notify implements session.Notifier.
func (n *DMNotifier) Notify(mapID, eventType string, payload any) {
	envelope := protocol.PatchEnvelope{
		Sequence: n.sequence.Next(),
		MapID:    mapID,
		Type:     eventType,
		Payload:  payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		n.log.WithError(err).WithField("type", eventType).Error("marshal patch failed")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for conn := range n.clients {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			delete(n.clients, conn)
		}
	}
}
