package protocol

import (
	"github.com/ostrand/battlemap-engine/internal/fog"
	"github.com/ostrand/battlemap-engine/internal/geometry"
	"github.com/ostrand/battlemap-engine/internal/light"
	"github.com/ostrand/battlemap-engine/internal/token"
)

// PortalLite is the wire form of a portal.
type PortalLite struct {
	ID      string           `json:"id"`
	Segment geometry.Segment `json:"segment"`
	Open    bool             `json:"open"`
}

// TokenLite is the wire form of a token as shown to players.
type TokenLite struct {
	ID           string         `json:"id"`
	Position     geometry.Point `json:"position"`
	Size         token.Size     `json:"size"`
	Label        string         `json:"label,omitempty"`
	FactionColor string         `json:"factionColor,omitempty"`
	CharacterRef string         `json:"characterRef,omitempty"`
}

// Frame is one complete, self-describing player-display update. No raw
// pixels cross this boundary; the presentation layer renders from geometry.
type Frame struct {
	MapID         string       `json:"mapId"`
	MapWidth      float64      `json:"mapWidth"`
	MapHeight     float64      `json:"mapHeight"`
	PixelsPerGrid int          `json:"pixelsPerGrid"`
	ImageRef      string       `json:"imageRef,omitempty"`
	Blackout      bool         `json:"blackout"`
	Illumination  light.Field  `json:"illumination"`
	RevealedAreas []fog.Area   `json:"revealedAreas"`
	Tokens        []TokenLite  `json:"tokens"`
	Portals       []PortalLite `json:"portals"`
}

// FrameEnvelope wraps a frame with the sequence number that gates
// display-side application: a frame older than the last applied one is
// dropped, never shown.
type FrameEnvelope struct {
	Sequence uint64 `json:"seq"`
	MapID    string `json:"mapId"`
	Type     string `json:"type"`
	Frame    *Frame `json:"frame,omitempty"`
}

const (
	FrameTypePush     = "push_frame"
	FrameTypeBlackout = "set_blackout"
	FrameTypeClose    = "close_display"
)

// TokenWire converts a token to its player-facing wire form.
func TokenWire(tok token.Token) TokenLite {
	return TokenLite{
		ID:           tok.ID,
		Position:     tok.Position,
		Size:         tok.Size,
		Label:        tok.Label,
		FactionColor: tok.FactionColor,
		CharacterRef: tok.CharacterRef,
	}
}
