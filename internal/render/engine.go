// Package render composites text watermarks onto images.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"photomark/internal/metadata"
	"photomark/internal/models"
)

// ErrDecode marks a source image that could not be read or decoded.
var ErrDecode = errors.New("decode source image")

// Result is a finalized watermark render.
type Result struct {
	Image  image.Image
	Format models.Format
	// Metadata is the EXIF payload to attach on write. Always nil for
	// formats that do not carry metadata, empty when none was found.
	Metadata []byte
}

type Engine struct {
	resolver FontResolver
	fonts    fontCache
}

func NewEngine(resolver FontResolver) *Engine {
	return &Engine{resolver: resolver}
}

// Render watermarks the image file at path. The file is read in full and
// closed before decoding; the source is never modified.
func (e *Engine) Render(path, text string, s models.WatermarkSettings, target models.Format) (*Result, error) {
	const op = "render.Render"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}
	payload := metadata.Extract(data)

	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w: %v", op, path, ErrDecode, err)
	}
	return e.RenderImage(src, payload, text, s, target), nil
}

// RenderImage watermarks an already decoded image. payload is the source's
// metadata block, if any.
func (e *Engine) RenderImage(src image.Image, payload []byte, text string, s models.WatermarkSettings, target models.Format) *Result {
	base := imaging.Clone(src)
	size := base.Bounds().Size()

	face := e.face(s)
	ink, box := measure(face, text)
	at := Place(s.Position, size, box)

	overlay := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	if mask := coverage(face, ink, box, text); mask != nil {
		for _, st := range Strokes(s, at) {
			paint(overlay, mask, st)
		}
	}

	out := imaging.Overlay(base, overlay, image.Pt(0, 0), 1.0)
	return finalize(out, payload, target)
}

// Measure returns the tight ink size of text rendered with s's font.
func (e *Engine) Measure(s models.WatermarkSettings, text string) image.Point {
	_, box := measure(e.face(s), text)
	return box
}

// Drag moves the watermark by a delta measured on a preview of previewSize
// pixels and returns the new absolute position in source pixels. Alignment
// modes are resolved first so dragging always starts where the text is drawn.
func (e *Engine) Drag(imageSize, previewSize image.Point, s models.WatermarkSettings, text string, delta image.Point) models.Position {
	box := e.Measure(s, text)
	cur := Place(s.Position, imageSize, box)

	scaleX, scaleY := 1.0, 1.0
	if previewSize.X > 0 {
		scaleX = float64(imageSize.X) / float64(previewSize.X)
	}
	if previewSize.Y > 0 {
		scaleY = float64(imageSize.Y) / float64(previewSize.Y)
	}

	p := Reposition(cur, delta, scaleX, scaleY, imageSize.Sub(box))
	return models.AbsolutePosition(p.X, p.Y)
}

// face loads the requested font, falling back to the embedded one. Font
// problems never fail a render.
func (e *Engine) face(s models.WatermarkSettings) font.Face {
	size := s.FontSize
	if size <= 0 {
		size = models.DefaultSettings().FontSize
	}
	if e.resolver != nil {
		path, err := e.resolver.Resolve(s.Font)
		if err == nil {
			f, err := e.fonts.load(path)
			if err == nil {
				return newFace(f, size)
			}
			slog.Debug("load font, using fallback", "font", s.Font, "path", path, "error", err)
		} else {
			slog.Debug("resolve font, using fallback", "font", s.Font, "error", err)
		}
	}
	return fallbackFace(size)
}

// measure returns the ink bounds relative to the dot and the whole-pixel box
// covering them.
func measure(face font.Face, text string) (fixed.Rectangle26_6, image.Point) {
	ink, _ := font.BoundString(face, text)
	box := image.Point{
		X: ink.Max.X.Ceil() - ink.Min.X.Floor(),
		Y: ink.Max.Y.Ceil() - ink.Min.Y.Floor(),
	}
	if box.X < 0 || box.Y < 0 {
		return fixed.Rectangle26_6{}, image.Point{}
	}
	return ink, box
}

// coverage rasterizes text once into a box-sized mask whose top-left is the
// ink box's top-left.
func coverage(face font.Face, ink fixed.Rectangle26_6, box image.Point, text string) *image.Alpha {
	if box.X == 0 || box.Y == 0 {
		return nil
	}
	mask := image.NewAlpha(image.Rect(0, 0, box.X, box.Y))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(-ink.Min.X.Floor()),
			Y: fixed.I(-ink.Min.Y.Floor()),
		},
	}
	d.DrawString(text)
	return mask
}

// paint moves dst toward the stroke color by the mask coverage, weighting
// color by alpha so straight color survives at glyph edges. Later strokes
// replace earlier ones instead of stacking alpha.
func paint(dst *image.NRGBA, mask *image.Alpha, st Stroke) {
	ink := [4]uint32{uint32(st.Color.R), uint32(st.Color.G), uint32(st.Color.B), uint32(st.Color.A)}
	r := mask.Bounds().Add(st.At).Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m := uint32(mask.AlphaAt(x-st.At.X, y-st.At.Y).A)
			if m == 0 {
				continue
			}
			i := dst.PixOffset(x, y)
			px := dst.Pix[i : i+4 : i+4]
			da := uint32(px[3]) * (255 - m)
			sa := ink[3] * m
			a := da + sa
			if a == 0 {
				px[0], px[1], px[2], px[3] = 0, 0, 0, 0
				continue
			}
			for k := 0; k < 3; k++ {
				px[k] = uint8((uint32(px[k])*da + ink[k]*sa + a/2) / a)
			}
			px[3] = uint8((a + 127) / 255)
		}
	}
}

func finalize(img *image.NRGBA, payload []byte, target models.Format) *Result {
	if target.KeepsAlpha() {
		return &Result{Image: img, Format: target}
	}
	if payload == nil {
		payload = []byte{}
	}
	return &Result{Image: flatten(img), Format: target, Metadata: payload}
}

// flatten drops the alpha channel, keeping straight color values.
func flatten(img *image.NRGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xFF
	}
	return out
}
