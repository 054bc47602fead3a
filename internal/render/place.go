package render

import (
	"image"
	"image/color"
	"math"

	"photomark/internal/models"
)

const (
	shadowOffset = 2
	shadowAlpha  = 128
)

// Place resolves a position to the top-left pixel of a text box of size
// text inside an image of size bounds.
func Place(p models.Position, bounds, text image.Point) image.Point {
	return image.Point{
		X: p.X.Resolve(bounds.X, text.X),
		Y: p.Y.Resolve(bounds.Y, text.Y),
	}
}

// Stroke is one pass of the text at a point and color.
type Stroke struct {
	At    image.Point
	Color color.NRGBA
}

// Strokes returns the passes drawn for a watermark at at, back to front.
func Strokes(s models.WatermarkSettings, at image.Point) []Stroke {
	alpha := s.Alpha()
	var out []Stroke

	switch s.Style {
	case models.StyleShadow:
		out = append(out, Stroke{
			At:    at.Add(image.Pt(shadowOffset, shadowOffset)),
			Color: color.NRGBA{A: shadowAlpha},
		})
	case models.StyleOutline:
		oc := color.NRGBA{R: s.OutlineColor.R, G: s.OutlineColor.G, B: s.OutlineColor.B, A: alpha}
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				out = append(out, Stroke{At: at.Add(image.Pt(dx, dy)), Color: oc})
			}
		}
	}

	out = append(out, Stroke{
		At:    at,
		Color: color.NRGBA{R: s.TextColor.R, G: s.TextColor.G, B: s.TextColor.B, A: alpha},
	})
	return out
}

// Reposition moves cur by a preview-space delta scaled to source pixels and
// clamps the result to [0, limit] on each axis.
func Reposition(cur, delta image.Point, scaleX, scaleY float64, limit image.Point) image.Point {
	next := image.Point{
		X: cur.X + int(math.Round(float64(delta.X)*scaleX)),
		Y: cur.Y + int(math.Round(float64(delta.Y)*scaleY)),
	}
	return image.Point{X: clamp(next.X, limit.X), Y: clamp(next.Y, limit.Y)}
}

func clamp(v, max int) int {
	if max < 0 {
		max = 0
	}
	if v > max {
		v = max
	}
	if v < 0 {
		v = 0
	}
	return v
}
