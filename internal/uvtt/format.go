package uvtt

import "fmt"

// FormatError reports a map document that cannot be loaded.
type FormatError struct {
	Field   string
	Message string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Field, e.Message)
}

// document mirrors the Universal VTT JSON layout. Optional sections are
// pointers so absence can be told apart from emptiness.
type document struct {
	Resolution  *resolution  `json:"resolution"`
	LineOfSight [][]point    `json:"line_of_sight"`
	Portals     []portal     `json:"portals"`
	Lights      []light      `json:"lights"`
	Environment *environment `json:"environment"`
	Image       string       `json:"image,omitempty"`
}

type resolution struct {
	PixelsPerGrid int     `json:"pixels_per_grid"`
	MapSize       mapSize `json:"map_size"`
}

type mapSize struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type portal struct {
	Position     point    `json:"position"`
	Bounds       []point  `json:"bounds"`
	Rotation     float64  `json:"rotation"`
	Closed       *bool    `json:"closed"`
	Freestanding bool     `json:"freestanding"`
}

type light struct {
	Position  point    `json:"position"`
	Range     *float64 `json:"range"`
	Intensity *float64 `json:"intensity"`
	Color     string   `json:"color"`
	Shadows   *bool    `json:"shadows"`
}

type environment struct {
	BakedLighting bool   `json:"baked_lighting"`
	AmbientLight  string `json:"ambient_light"`
}
