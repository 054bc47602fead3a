// Package testutil builds image fixtures for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

const (
	tagExifIFDPointer   = 0x8769
	tagDateTimeOriginal = 0x9003
	typeASCII           = 2
	typeLong            = 4
)

// ExifPayload returns an APP1 body ("Exif\0\0" + big-endian TIFF) holding a
// single DateTimeOriginal entry.
func ExifPayload(dateTime string) []byte {
	value := append([]byte(dateTime), 0)

	const (
		ifd0Offset = 8
		ifdSize    = 2 + 12 + 4
		exifOffset = ifd0Offset + ifdSize
		dataOffset = exifOffset + ifdSize
	)

	var b bytes.Buffer
	be := binary.BigEndian
	b.WriteString("Exif\x00\x00")
	b.WriteString("MM\x00\x2A")
	binary.Write(&b, be, uint32(ifd0Offset))

	// IFD0: pointer to the Exif sub-IFD.
	binary.Write(&b, be, uint16(1))
	binary.Write(&b, be, uint16(tagExifIFDPointer))
	binary.Write(&b, be, uint16(typeLong))
	binary.Write(&b, be, uint32(1))
	binary.Write(&b, be, uint32(exifOffset))
	binary.Write(&b, be, uint32(0))

	// Exif IFD: DateTimeOriginal stored out of line.
	binary.Write(&b, be, uint16(1))
	binary.Write(&b, be, uint16(tagDateTimeOriginal))
	binary.Write(&b, be, uint16(typeASCII))
	binary.Write(&b, be, uint32(len(value)))
	binary.Write(&b, be, uint32(dataOffset))
	binary.Write(&b, be, uint32(0))

	b.Write(value)
	return b.Bytes()
}

// Gradient returns a w x h opaque test image.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: 255})
		}
	}
	return img
}

// Filled returns a w x h image filled with c.
func Filled(w, h int, c color.NRGBA) *image.NRGBA {
	return imaging.New(w, h, c)
}

// WriteJPEG encodes img as JPEG into dir/name, attaching payload as an APP1
// segment when it is non-empty.
func WriteJPEG(t testing.TB, dir, name string, img image.Image, payload []byte) string {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	data := buf.Bytes()
	if len(payload) > 0 {
		seg := []byte{0xFF, 0xE1, 0, 0}
		binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
		out := append([]byte{}, data[:2]...)
		out = append(out, seg...)
		out = append(out, payload...)
		data = append(out, data[2:]...)
	}
	return write(t, dir, name, data)
}

// WritePNG encodes img as PNG into dir/name.
func WritePNG(t testing.TB, dir, name string, img image.Image) string {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return write(t, dir, name, buf.Bytes())
}

func write(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
