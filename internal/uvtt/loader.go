package uvtt

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ostrand/battlemap-engine/internal/geometry"
)

// Loader parses Universal VTT documents into the internal map model.
type Loader struct {
	log logrus.FieldLogger
}

func NewLoader(log logrus.FieldLogger) *Loader {
	return &Loader{log: log}
}

// LoadFile reads and parses a map document from disk.
func (l *Loader) LoadFile(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map file: %w", err)
	}
	return l.Parse(data)
}

// Parse validates a serialized map document and converts its grid-unit
// geometry to image pixels. Degenerate wall segments are dropped with a
// warning; structural problems fail with a FormatError.
func (l *Loader) Parse(data []byte) (*Map, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Field: "document", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if doc.LineOfSight == nil {
		return nil, &FormatError{Field: "line_of_sight", Message: "missing wall geometry"}
	}

	ppg := DefaultPixelsPerGrid
	sizeX, sizeY := DefaultMapSize, DefaultMapSize
	if doc.Resolution != nil {
		if doc.Resolution.PixelsPerGrid > 0 {
			ppg = doc.Resolution.PixelsPerGrid
		}
		if doc.Resolution.MapSize.X > 0 {
			sizeX = doc.Resolution.MapSize.X
		}
		if doc.Resolution.MapSize.Y > 0 {
			sizeY = doc.Resolution.MapSize.Y
		}
	}
	scale := float64(ppg)

	m := &Map{
		PixelsPerGrid: ppg,
		WidthPx:       sizeX * scale,
		HeightPx:      sizeY * scale,
		AmbientColor:  DefaultColor,
		ImageRef:      doc.Image,
	}

	for i, polyline := range doc.LineOfSight {
		for j := 0; j+1 < len(polyline); j++ {
			a := geometry.Point{X: polyline[j].X * scale, Y: polyline[j].Y * scale}
			b := geometry.Point{X: polyline[j+1].X * scale, Y: polyline[j+1].Y * scale}
			seg := geometry.Segment{A: a, B: b}
			if seg.Length() == 0 {
				l.log.WithFields(logrus.Fields{
					"polyline": i,
					"index":    j,
				}).Warn("dropping zero-length wall segment")
				continue
			}
			m.Walls = append(m.Walls, seg)
		}
	}

	for i, p := range doc.Portals {
		if len(p.Bounds) < 2 {
			l.log.WithField("portal", i).Warn("dropping portal without bounds pair")
			continue
		}
		seg := geometry.Segment{
			A: geometry.Point{X: p.Bounds[0].X * scale, Y: p.Bounds[0].Y * scale},
			B: geometry.Point{X: p.Bounds[1].X * scale, Y: p.Bounds[1].Y * scale},
		}
		if seg.Length() == 0 {
			l.log.WithField("portal", i).Warn("dropping zero-length portal")
			continue
		}
		closed := true
		if p.Closed != nil {
			closed = *p.Closed
		}
		m.Portals = append(m.Portals, Portal{
			ID:           fmt.Sprintf("portal-%d", i),
			Segment:      seg,
			Position:     geometry.Point{X: p.Position.X * scale, Y: p.Position.Y * scale},
			Rotation:     p.Rotation,
			Closed:       closed,
			Freestanding: p.Freestanding,
		})
	}

	for i, lt := range doc.Lights {
		rng := DefaultLightRange
		if lt.Range != nil {
			rng = *lt.Range
		}
		if rng < 0 {
			return nil, &FormatError{
				Field:   "lights",
				Message: fmt.Sprintf("light %d has negative range %v", i, rng),
			}
		}
		intensity := DefaultIntensity
		if lt.Intensity != nil {
			intensity = *lt.Intensity
		}
		color := lt.Color
		if color == "" {
			color = DefaultColor
		}
		shadows := true
		if lt.Shadows != nil {
			shadows = *lt.Shadows
		}
		m.Lights = append(m.Lights, BakedLight{
			Position:  geometry.Point{X: lt.Position.X * scale, Y: lt.Position.Y * scale},
			RangePx:   rng * scale,
			Intensity: intensity,
			Color:     color,
			Shadows:   shadows,
		})
	}

	if doc.Environment != nil {
		m.BakedLighting = doc.Environment.BakedLighting
		if doc.Environment.AmbientLight != "" {
			m.AmbientColor = doc.Environment.AmbientLight
		}
	}

	return m, nil
}

// Document re-serializes the map's geometry back into UVTT form, converting
// pixels back to grid units. Cosmetic fields already defaulted on load keep
// their defaulted values.
func (m *Map) Document() ([]byte, error) {
	scale := float64(m.PixelsPerGrid)
	doc := document{
		Resolution: &resolution{
			PixelsPerGrid: m.PixelsPerGrid,
			MapSize:       mapSize{X: m.WidthPx / scale, Y: m.HeightPx / scale},
		},
		LineOfSight: make([][]point, 0, len(m.Walls)),
		Environment: &environment{
			BakedLighting: m.BakedLighting,
			AmbientLight:  m.AmbientColor,
		},
		Image: m.ImageRef,
	}
	for _, w := range m.Walls {
		doc.LineOfSight = append(doc.LineOfSight, []point{
			{X: w.A.X / scale, Y: w.A.Y / scale},
			{X: w.B.X / scale, Y: w.B.Y / scale},
		})
	}
	for _, p := range m.Portals {
		closed := p.Closed
		doc.Portals = append(doc.Portals, portal{
			Position:     point{X: p.Position.X / scale, Y: p.Position.Y / scale},
			Bounds:       []point{{X: p.Segment.A.X / scale, Y: p.Segment.A.Y / scale}, {X: p.Segment.B.X / scale, Y: p.Segment.B.Y / scale}},
			Rotation:     p.Rotation,
			Closed:       &closed,
			Freestanding: p.Freestanding,
		})
	}
	for _, lt := range m.Lights {
		rng := lt.RangePx / scale
		intensity := lt.Intensity
		shadows := lt.Shadows
		doc.Lights = append(doc.Lights, light{
			Position:  point{X: lt.Position.X / scale, Y: lt.Position.Y / scale},
			Range:     &rng,
			Intensity: &intensity,
			Color:     lt.Color,
			Shadows:   &shadows,
		})
	}
	return json.Marshal(doc)
}
