package protocol

// PatchEnvelope carries one typed change notification to the DM client. The
// map id lets a client subscribed to several maps route each patch.
type PatchEnvelope struct {
	Sequence uint64 `json:"seq"`
	MapID    string `json:"mapId"`
	Type     string `json:"type"`
	Payload  any    `json:"payload"`
}

type PortalStateChanged struct {
	PortalID string `json:"portalId"`
	Open     bool   `json:"open"`
}

type TokenUpdated struct {
	Token TokenLite `json:"token"`
}

type TokenRemoved struct {
	TokenID string `json:"tokenId"`
}

type LightChanged struct {
	LightID string `json:"lightId"`
	Enabled bool   `json:"enabled"`
}

type FogRevealed struct {
	AreaID string `json:"areaId"`
}

type FogHidden struct {
	AreaID string `json:"areaId"`
}

type BlackoutChanged struct {
	Blackout bool `json:"blackout"`
}

type DisplayOpened struct {
	MapID string `json:"mapId"`
}

type DisplayClosed struct {
	MapID string `json:"mapId"`
}
