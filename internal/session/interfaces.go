package session

import (
	"context"

	"github.com/ostrand/battlemap-engine/internal/geometry"
	"github.com/ostrand/battlemap-engine/internal/light"
	"github.com/ostrand/battlemap-engine/internal/token"
)

// Store is the persistence surface a map session needs. *sqlite.Store
// satisfies it.
type Store interface {
	SetPortalOpen(ctx context.Context, mapID, portalID string, open bool) error
	PortalStates(ctx context.Context, mapID string) (map[string]bool, error)

	ListLights(ctx context.Context, mapID string) ([]light.Source, error)
	InsertLight(ctx context.Context, mapID string, src light.Source) error
	SetLightEnabled(ctx context.Context, lightID string, enabled bool) error
	MoveLight(ctx context.Context, lightID string, pos geometry.Point) error
	DeleteLight(ctx context.Context, lightID string) error

	ListTokens(ctx context.Context, mapID string) ([]token.Token, error)
	InsertToken(ctx context.Context, tok token.Token) error
	UpdateTokenPosition(ctx context.Context, tokenID string, pos geometry.Point) error
	SetTokenHidden(ctx context.Context, tokenID string, hidden bool) error
	DeleteToken(ctx context.Context, tokenID string) error
}

// Notifier delivers typed change notifications to the DM client, tagged with
// the originating map so clients watching several maps can filter. The
// display surface gets complete frames instead; this channel is DM-side only.
type Notifier interface {
	Notify(mapID, eventType string, payload any)
}

// NopNotifier discards notifications; useful for tests and headless use.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string, any) {}

var _ Notifier = NopNotifier{}
