package metadata_test

import (
	"bytes"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photomark/internal/metadata"
	"photomark/internal/testutil"
)

func TestReadCaptureDate(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteJPEG(t, dir, "photo.jpg", testutil.Gradient(32, 24), testutil.ExifPayload("2024:03:15 10:00:00"))

	date, ok := metadata.ReadCaptureDate(path)
	require.True(t, ok)
	assert.Equal(t, "2024.03.15", date)
}

func TestReadCaptureDateAbsent(t *testing.T) {
	dir := t.TempDir()

	plain := testutil.WriteJPEG(t, dir, "plain.jpg", testutil.Gradient(16, 16), nil)
	_, ok := metadata.ReadCaptureDate(plain)
	assert.False(t, ok)

	pngPath := testutil.WritePNG(t, dir, "image.png", testutil.Gradient(16, 16))
	_, ok = metadata.ReadCaptureDate(pngPath)
	assert.False(t, ok)

	_, ok = metadata.ReadCaptureDate(dir + "/missing.jpg")
	assert.False(t, ok)
}

func TestCaptureDateCorruptPayload(t *testing.T) {
	_, ok := metadata.CaptureDate([]byte("Exif\x00\x00garbage"))
	assert.False(t, ok)

	_, ok = metadata.CaptureDate(nil)
	assert.False(t, ok)
}

func TestFormatDate(t *testing.T) {
	date, ok := metadata.FormatDate("2019:12:01 23:59:59\x00")
	require.True(t, ok)
	assert.Equal(t, "2019.12.01", date)

	_, ok = metadata.FormatDate("  ")
	assert.False(t, ok)
}

func TestExtractAndAttach(t *testing.T) {
	payload := testutil.ExifPayload("2021:07:04 08:30:00")

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testutil.Gradient(20, 20), nil))
	assert.Nil(t, metadata.Extract(buf.Bytes()))

	withExif, err := metadata.Attach(buf.Bytes(), payload)
	require.NoError(t, err)
	assert.Equal(t, payload, metadata.Extract(withExif))

	// The stream is still decodable.
	_, err = jpeg.Decode(bytes.NewReader(withExif))
	require.NoError(t, err)

	date, ok := metadata.CaptureDate(metadata.Extract(withExif))
	require.True(t, ok)
	assert.Equal(t, "2021.07.04", date)
}

func TestAttachEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testutil.Gradient(8, 8), nil))

	out, err := metadata.Attach(buf.Bytes(), nil)
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), out)
}

func TestAttachRejects(t *testing.T) {
	_, err := metadata.Attach([]byte("\x89PNG"), []byte("Exif\x00\x00"))
	assert.ErrorIs(t, err, metadata.ErrNotJPEG)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testutil.Gradient(8, 8), nil))
	_, err = metadata.Attach(buf.Bytes(), make([]byte, 70000))
	assert.ErrorIs(t, err, metadata.ErrPayloadTooLarge)
}

func TestExtractAfterJFIFSegment(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testutil.Gradient(24, 16), nil))
	plain := buf.Bytes()

	app0 := []byte{0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00}
	jfif := append(append(append([]byte(nil), plain[:2]...), app0...), plain[2:]...)
	assert.Nil(t, metadata.Extract(jfif))

	payload := testutil.ExifPayload("2022:11:30 18:00:00")
	withExif, err := metadata.Attach(jfif, payload)
	require.NoError(t, err)
	assert.Equal(t, payload, metadata.Extract(withExif))
	assert.True(t, bytes.Contains(withExif, app0))

	_, err = jpeg.Decode(bytes.NewReader(withExif))
	require.NoError(t, err)
}
