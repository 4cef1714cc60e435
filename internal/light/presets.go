package light

import "github.com/ostrand/battlemap-engine/internal/geometry"

// Common light source presets.
const (
	TorchBrightFt = 20
	TorchDimFt    = 40
	TorchColor    = "#FFAA00"

	LanternBrightFt = 30
	LanternDimFt    = 60
	LanternColor    = "#FFD700"

	CandleBrightFt = 5
	CandleDimFt    = 10
	CandleColor    = "#FFCC66"

	LightSpellBrightFt = 20
	LightSpellDimFt    = 40
	LightSpellColor    = "#FFFFFF"

	DaylightBrightFt = 60
	DaylightDimFt    = 120
	DaylightColor    = "#FFFFEE"
)

// Torch returns a torch-shaped source at the given position.
func Torch(id string, pos geometry.Point) Source {
	return Source{
		ID:             id,
		Name:           "Torch",
		Position:       pos,
		BrightRadiusFt: TorchBrightFt,
		DimRadiusFt:    TorchDimFt,
		Color:          TorchColor,
		Enabled:        true,
	}
}

// Lantern returns a lantern-shaped source at the given position.
func Lantern(id string, pos geometry.Point) Source {
	return Source{
		ID:             id,
		Name:           "Lantern",
		Position:       pos,
		BrightRadiusFt: LanternBrightFt,
		DimRadiusFt:    LanternDimFt,
		Color:          LanternColor,
		Enabled:        true,
	}
}

// Candle returns a candle-shaped source at the given position.
func Candle(id string, pos geometry.Point) Source {
	return Source{
		ID:             id,
		Name:           "Candle",
		Position:       pos,
		BrightRadiusFt: CandleBrightFt,
		DimRadiusFt:    CandleDimFt,
		Color:          CandleColor,
		Enabled:        true,
	}
}

// LightSpell returns a light-cantrip source at the given position.
func LightSpell(id string, pos geometry.Point) Source {
	return Source{
		ID:             id,
		Name:           "Light",
		Position:       pos,
		BrightRadiusFt: LightSpellBrightFt,
		DimRadiusFt:    LightSpellDimFt,
		Color:          LightSpellColor,
		Enabled:        true,
	}
}

// Daylight returns a daylight-spell source at the given position.
func Daylight(id string, pos geometry.Point) Source {
	return Source{
		ID:             id,
		Name:           "Daylight",
		Position:       pos,
		BrightRadiusFt: DaylightBrightFt,
		DimRadiusFt:    DaylightDimFt,
		Color:          DaylightColor,
		Enabled:        true,
	}
}
