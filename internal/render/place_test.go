package render_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"photomark/internal/models"
	"photomark/internal/render"
)

func TestReposition(t *testing.T) {
	limit := image.Pt(300, 200)

	cases := []struct {
		name   string
		cur    image.Point
		delta  image.Point
		sx, sy float64
		want   image.Point
	}{
		{"scaled", image.Pt(10, 10), image.Pt(5, 4), 2, 2.5, image.Pt(20, 20)},
		{"clamp low", image.Pt(10, 10), image.Pt(-50, -50), 1, 1, image.Pt(0, 0)},
		{"clamp high", image.Pt(290, 190), image.Pt(40, 40), 1, 1, image.Pt(300, 200)},
		{"no move", image.Pt(42, 24), image.Pt(0, 0), 3, 3, image.Pt(42, 24)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, render.Reposition(tc.cur, tc.delta, tc.sx, tc.sy, limit))
		})
	}
}

func TestRepositionTextWiderThanImage(t *testing.T) {
	got := render.Reposition(image.Pt(5, 5), image.Pt(10, 10), 1, 1, image.Pt(-20, -3))
	assert.Equal(t, image.Pt(0, 0), got)
}

func TestDragResolvesAlignmentFirst(t *testing.T) {
	e := render.NewEngine(nil)
	s := models.DefaultSettings()
	s.Position = models.Position{X: models.FarEdge(), Y: models.FarEdge()}

	imageSize := image.Pt(800, 600)
	box := e.Measure(s, "drag")
	start := render.Place(s.Position, imageSize, box)

	got := e.Drag(imageSize, image.Pt(400, 300), s, "drag", image.Pt(-10, -10))
	assert.Equal(t, models.AbsolutePosition(start.X-20, start.Y-20), got)

	// Dragging past the far edge stops at W - tw.
	got = e.Drag(imageSize, image.Pt(400, 300), s, "drag", image.Pt(100, 100))
	assert.Equal(t, models.AbsolutePosition(800-box.X, 600-box.Y), got)
}
