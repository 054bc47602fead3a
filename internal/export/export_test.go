package export_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photomark/internal/export"
	"photomark/internal/metadata"
	"photomark/internal/models"
	"photomark/internal/render"
	"photomark/internal/testutil"
	"photomark/internal/workset"
)

type settingsMap map[string]models.WatermarkSettings

func (m settingsMap) Lookup(path string) (models.WatermarkSettings, bool) {
	ws, ok := m[path]
	return ws, ok
}

type recordingReporter struct {
	mu       sync.Mutex
	batches  []uuid.UUID
	outcomes []export.Outcome
}

func (r *recordingReporter) Report(_ context.Context, batch uuid.UUID, o export.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
	r.outcomes = append(r.outcomes, o)
	return nil
}

func newPipeline(r export.Reporter) *export.Pipeline {
	return export.New(render.NewEngine(render.DirResolver{}), r)
}

func withText(text string) models.WatermarkSettings {
	ws := models.DefaultSettings()
	ws.Text = text
	return ws
}

func assets(paths ...string) []*workset.Asset {
	out := make([]*workset.Asset, len(paths))
	for i, p := range paths {
		out[i] = workset.NewAsset(p)
	}
	return out
}

func TestExportCaptureDateKeepsMetadata(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")
	payload := testutil.ExifPayload("2024:03:15 10:20:30")
	src := testutil.WriteJPEG(t, in, "photo.jpg", testutil.Gradient(200, 120), payload)

	rep := &recordingReporter{}
	report, err := newPipeline(rep).ExportAll(context.Background(), assets(src),
		settingsMap{src: withText(models.CaptureDateText)},
		export.Options{OutputDir: out, Format: models.FormatJPEG, Naming: models.NamingKeep})
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded())

	written := filepath.Join(out, "photo.jpg")
	assert.Equal(t, written, report.Outcomes[0].Output)
	assert.Equal(t, "2024.03.15", report.Outcomes[0].Text)

	// The sentinel draws exactly what the literal date draws.
	want, err := render.NewEngine(render.DirResolver{}).Render(src, "2024.03.15", withText("2024.03.15"), models.FormatPNG)
	require.NoError(t, err)
	pngReport, err := newPipeline(nil).ExportAll(context.Background(), assets(src),
		settingsMap{src: withText(models.CaptureDateText)},
		export.Options{OutputDir: filepath.Join(t.TempDir(), "png"), Format: models.FormatPNG})
	require.NoError(t, err)
	require.Equal(t, 1, pngReport.Succeeded())
	got, err := imaging.Open(pngReport.Outcomes[0].Output)
	require.NoError(t, err)
	assert.Equal(t, imaging.Clone(want.Image), imaging.Clone(got))

	data, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.Equal(t, payload, metadata.Extract(data))

	date, ok := metadata.ReadCaptureDate(written)
	require.True(t, ok)
	assert.Equal(t, "2024.03.15", date)

	require.Len(t, rep.outcomes, 1)
	assert.Equal(t, report.ID, rep.batches[0])
}

func TestExportRejectsInputDir(t *testing.T) {
	in := t.TempDir()
	src := testutil.WriteJPEG(t, in, "photo.jpg", testutil.Gradient(40, 40), nil)
	before, err := os.ReadDir(in)
	require.NoError(t, err)

	_, err = newPipeline(nil).ExportAll(context.Background(), assets(src),
		settingsMap{src: withText("x")},
		export.Options{OutputDir: in + string(filepath.Separator) + ".", Format: models.FormatJPEG})
	assert.ErrorIs(t, err, export.ErrOutputConflict)

	after, err := os.ReadDir(in)
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))
}

func TestExportRequiresOutputDir(t *testing.T) {
	_, err := newPipeline(nil).ExportAll(context.Background(), nil, settingsMap{},
		export.Options{OutputDir: "  ", Format: models.FormatPNG})
	assert.ErrorIs(t, err, export.ErrNoOutputDir)
}

func TestExportPrefixedPNG(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")
	src := testutil.WriteJPEG(t, in, "photo.jpg", testutil.Gradient(80, 60), testutil.ExifPayload("2024:03:15 10:20:30"))

	report, err := newPipeline(nil).ExportAll(context.Background(), assets(src),
		settingsMap{src: withText("hi")},
		export.Options{OutputDir: out, Format: models.FormatPNG, Naming: models.NamingPrefix, NamingText: "wm_"})
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded())

	written := filepath.Join(out, "wm_photo.png")
	_, err = os.Stat(written)
	require.NoError(t, err)
	_, ok := metadata.ReadCaptureDate(written)
	assert.False(t, ok)
}

func TestExportContinuesPastFailures(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")
	broken := filepath.Join(in, "broken.jpg")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0644))
	empty := testutil.WriteJPEG(t, in, "empty.jpg", testutil.Gradient(40, 40), nil)
	nodate := testutil.WriteJPEG(t, in, "nodate.jpg", testutil.Gradient(40, 40), nil)
	good := testutil.WritePNG(t, in, "good.png", testutil.Gradient(40, 40))

	store := settingsMap{
		broken: withText("x"),
		empty:  withText(""),
		nodate: withText(models.CaptureDateText),
		good:   withText("ok"),
	}
	report, err := newPipeline(nil).ExportAll(context.Background(), assets(broken, empty, nodate, good), store,
		export.Options{OutputDir: out, Format: models.FormatJPEG, Naming: models.NamingSuffix, NamingText: "_wm"})
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, export.StatusFailed, report.Outcomes[0].Status)
	assert.ErrorIs(t, report.Outcomes[0].Err, render.ErrDecode)
	assert.Equal(t, export.StatusSkipped, report.Outcomes[1].Status)
	assert.ErrorIs(t, report.Outcomes[1].Err, export.ErrEmptyText)
	assert.Equal(t, export.StatusSkipped, report.Outcomes[2].Status)
	assert.Equal(t, export.StatusWritten, report.Outcomes[3].Status)
	assert.Equal(t, filepath.Join(out, "good_wm.jpg"), report.Outcomes[3].Output)

	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, 2, report.Skipped())
	assert.Equal(t, 1, report.Failed())
	assert.Contains(t, report.Summary(), "broken.jpg")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		rule models.NamingRule
		text string
		f    models.Format
		want string
	}{
		{models.NamingKeep, "ignored", models.FormatJPEG, "IMG_01.jpg"},
		{models.NamingPrefix, "wm_", models.FormatPNG, "wm_IMG_01.png"},
		{models.NamingSuffix, "_final", models.FormatJPEG, "IMG_01_final.jpg"},
	}
	for _, tt := range tests {
		t.Run(string(tt.rule), func(t *testing.T) {
			assert.Equal(t, tt.want, export.OutputName("/in/IMG_01.JPG", tt.f, tt.rule, tt.text))
		})
	}
}
