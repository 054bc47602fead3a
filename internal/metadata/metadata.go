// Package metadata reads and carries the EXIF block of JPEG files. The block
// is handled as an opaque payload; only the original capture date is ever
// interpreted.
package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	"github.com/rwcarlsen/goexif/exif"
)

var (
	ErrNotJPEG         = errors.New("not a jpeg stream")
	ErrPayloadTooLarge = errors.New("metadata payload exceeds segment size")
)

// maxSegmentBody is the largest body that fits the 16-bit segment length.
const maxSegmentBody = 0xFFFF - 2

var exifHeader = []byte("Exif\x00\x00")

// ReadCaptureDate returns the original capture date of the image at path as
// YYYY.MM.DD. Missing or unreadable metadata is reported as false.
func ReadCaptureDate(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("capture date: read file", "path", path, "error", err)
		return "", false
	}
	return CaptureDate(Extract(data))
}

// CaptureDate decodes DateTimeOriginal from an EXIF payload.
func CaptureDate(payload []byte) (string, bool) {
	if len(payload) <= len(exifHeader) || !bytes.HasPrefix(payload, exifHeader) {
		return "", false
	}

	x, err := exif.Decode(bytes.NewReader(payload[len(exifHeader):]))
	if err != nil {
		slog.Debug("capture date: decode exif", "error", err)
		return "", false
	}
	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return "", false
	}
	raw, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	return FormatDate(raw)
}

// FormatDate turns an EXIF timestamp ("2024:03:15 10:00:00") into "2024.03.15".
func FormatDate(raw string) (string, bool) {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if raw == "" {
		return "", false
	}
	date := strings.SplitN(raw, " ", 2)[0]
	return strings.ReplaceAll(date, ":", "."), true
}

// Extract returns a copy of the EXIF APP1 body ("Exif\0\0" + TIFF) of a
// JPEG stream, or nil when there is none.
func Extract(data []byte) []byte {
	sl, err := parseSegments(data)
	if err != nil {
		slog.Debug("extract exif: parse segments", "error", err)
		return nil
	}
	_, seg, err := sl.FindExif()
	if err != nil || !bytes.HasPrefix(seg.Data, exifHeader) {
		return nil
	}
	return append([]byte(nil), seg.Data...)
}

// Attach inserts payload as an APP1 segment directly after the SOI marker
// of an encoded JPEG. An empty payload returns the stream unchanged.
func Attach(jpegData, payload []byte) ([]byte, error) {
	const op = "metadata.Attach"

	if !isJPEG(jpegData) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotJPEG)
	}
	if len(payload) == 0 {
		return jpegData, nil
	}
	if len(payload) > maxSegmentBody {
		return nil, fmt.Errorf("%s: %d bytes: %w", op, len(payload), ErrPayloadTooLarge)
	}

	sl, err := parseSegments(jpegData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	segs := sl.Segments()
	out := make([]*jpegstructure.Segment, 0, len(segs)+1)
	out = append(out, segs[0], &jpegstructure.Segment{
		MarkerId:   jpegstructure.MARKER_APP1,
		MarkerName: "APP1",
		Data:       payload,
	})
	out = append(out, segs[1:]...)

	var buf bytes.Buffer
	buf.Grow(len(jpegData) + len(payload) + 4)
	if err := jpegstructure.NewSegmentList(out).Write(&buf); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return buf.Bytes(), nil
}

func parseSegments(data []byte) (*jpegstructure.SegmentList, error) {
	if !isJPEG(data) {
		return nil, ErrNotJPEG
	}
	mc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, err
	}
	sl, ok := mc.(*jpegstructure.SegmentList)
	if !ok || len(sl.Segments()) == 0 {
		return nil, ErrNotJPEG
	}
	return sl, nil
}

func isJPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
}
