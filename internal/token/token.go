// Package token tracks token positions, vision capability, and the
// visible/hidden flag that gates what the player display shows.
package token

import (
	"github.com/ostrand/battlemap-engine/internal/fog"
	"github.com/ostrand/battlemap-engine/internal/geometry"
	"github.com/ostrand/battlemap-engine/internal/light"
)

// Vision is a token's sight capability.
type Vision string

const (
	VisionNone       Vision = "none"
	VisionNormal     Vision = "normal"
	VisionDarkvision Vision = "darkvision"
)

// Size is a 5e size category.
type Size string

const (
	SizeTiny   Size = "tiny"
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
	SizeHuge   Size = "huge"
)

// Token is a playing piece on a map.
type Token struct {
	ID            string         `json:"id"`
	MapID         string         `json:"mapId"`
	Position      geometry.Point `json:"position"`
	Size          Size           `json:"size"`
	Vision        Vision         `json:"vision"`
	VisionRangeFt float64        `json:"visionRangeFt"`
	// Hidden keeps the token off the player display regardless of light.
	Hidden       bool   `json:"hidden"`
	Label        string `json:"label,omitempty"`
	FactionColor string `json:"factionColor,omitempty"`
	// CharacterRef links to a character or monster record owned by the
	// surrounding CRUD layer; display metadata only.
	CharacterRef string `json:"characterRef,omitempty"`
}

// PlayerVisible reports whether the token should appear on the player-facing
// display: not hidden, and positioned inside the union of current
// illumination and persisted fog reveal.
func PlayerVisible(tok Token, lit light.Field, revealed []fog.Area) bool {
	if tok.Hidden {
		return false
	}
	return lit.Lit(tok.Position) || fog.Revealed(revealed, tok.Position)
}

// FilterVisible returns the tokens that pass PlayerVisible, in input order.
func FilterVisible(tokens []Token, lit light.Field, revealed []fog.Area) []Token {
	out := make([]Token, 0, len(tokens))
	for _, tok := range tokens {
		if PlayerVisible(tok, lit, revealed) {
			out = append(out, tok)
		}
	}
	return out
}

// VisionSource converts a sighted token into a light-style observer source
// so its sight line can feed fog-purpose illumination queries. The second
// return is false for tokens without vision.
func VisionSource(tok Token) (light.Source, bool) {
	if tok.Vision == VisionNone || tok.VisionRangeFt <= 0 {
		return light.Source{}, false
	}
	src := light.Source{
		ID:       "vision-" + tok.ID,
		Name:     "vision",
		Position: tok.Position,
		Enabled:  true,
		TokenID:  tok.ID,
	}
	switch tok.Vision {
	case VisionDarkvision:
		// Darkvision reads as dim light out to its full range.
		src.DimRadiusFt = tok.VisionRangeFt
	default:
		src.BrightRadiusFt = tok.VisionRangeFt
		src.DimRadiusFt = tok.VisionRangeFt
	}
	return src, true
}
