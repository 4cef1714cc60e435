package protocol

import "encoding/json"

// IntentEnvelope wraps one DM-client request.
type IntentEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type RequestTogglePortal struct {
	PortalID string `json:"portalId"`
}

type RequestMoveToken struct {
	TokenID string  `json:"tokenId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

type RequestToggleLight struct {
	LightID string `json:"lightId"`
}

type RequestReveal struct {
	Shape   string  `json:"shape"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
	CenterX float64 `json:"centerX,omitempty"`
	CenterY float64 `json:"centerY,omitempty"`
	Radius  float64 `json:"radius,omitempty"`
}

type RequestHide struct {
	AreaID string `json:"areaId"`
}

type RequestRevealAll struct{}

type RequestResetFog struct{}

type RequestSetBlackout struct {
	Blackout bool `json:"blackout"`
}

type RequestOpenDisplay struct{}

type RequestCloseDisplay struct{}
