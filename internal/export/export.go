// Package export writes watermarked copies of a working set.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"photomark/internal/metadata"
	"photomark/internal/models"
	"photomark/internal/render"
	"photomark/internal/workset"
)

var (
	ErrNoOutputDir    = errors.New("no output directory configured")
	ErrOutputConflict = errors.New("output directory is the same as an input directory")
	ErrEmptyText      = errors.New("watermark text is empty")
)

const defaultJPEGQuality = 95

type Status string

const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

type Outcome struct {
	Source string
	Output string
	// Text is the watermark drawn, after capture date substitution.
	Text   string
	Status Status
	Err    error
}

type BatchReport struct {
	ID        uuid.UUID
	OutputDir string
	Format    models.Format
	Outcomes  []Outcome
}

func (r *BatchReport) count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

func (r *BatchReport) Succeeded() int { return r.count(StatusWritten) }
func (r *BatchReport) Skipped() int   { return r.count(StatusSkipped) }
func (r *BatchReport) Failed() int    { return r.count(StatusFailed) }

// Summary renders a one-line count followed by one line per failure.
func (r *BatchReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d written, %d skipped, %d failed (output: %s)", r.Succeeded(), r.Skipped(), r.Failed(), r.OutputDir)
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			fmt.Fprintf(&b, "\n  %s: %v", filepath.Base(o.Source), o.Err)
		}
	}
	return b.String()
}

// SettingsSource provides per-image settings without creating them.
type SettingsSource interface {
	Lookup(path string) (models.WatermarkSettings, bool)
}

// Reporter receives every outcome as it is recorded.
type Reporter interface {
	Report(ctx context.Context, batch uuid.UUID, o Outcome) error
}

type Options struct {
	OutputDir   string
	Format      models.Format
	Naming      models.NamingRule
	NamingText  string
	JPEGQuality int
}

type Pipeline struct {
	engine   *render.Engine
	reporter Reporter
}

// New creates a pipeline. reporter may be nil.
func New(engine *render.Engine, reporter Reporter) *Pipeline {
	return &Pipeline{engine: engine, reporter: reporter}
}

// ExportAll renders and writes every asset in order. Problems with a single
// image are recorded in the report; only the output directory preconditions
// fail the whole batch, and they are checked before anything is written.
func (p *Pipeline) ExportAll(ctx context.Context, assets []*workset.Asset, store SettingsSource, opts Options) (*BatchReport, error) {
	const op = "export.ExportAll"

	if err := CheckOutputDir(opts.OutputDir, assets); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	format, err := models.ParseFormat(string(opts.Format))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts.Format = format
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = defaultJPEGQuality
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	report := &BatchReport{ID: uuid.New(), OutputDir: opts.OutputDir, Format: opts.Format}
	slog.Info("export started", "batch", report.ID, "images", len(assets), "output", opts.OutputDir, "format", opts.Format)

	for _, a := range assets {
		o := p.exportOne(a, store, opts)
		switch o.Status {
		case StatusWritten:
			slog.Info("exported", "source", a.Path, "output", o.Output)
		case StatusSkipped:
			slog.Info("skipped", "source", a.Path, "reason", o.Err)
		default:
			slog.Warn("export failed", "source", a.Path, "error", o.Err)
		}
		report.Outcomes = append(report.Outcomes, o)

		if p.reporter != nil {
			if err := p.reporter.Report(ctx, report.ID, o); err != nil {
				slog.Warn("report outcome", "batch", report.ID, "source", a.Path, "error", err)
			}
		}
	}

	slog.Info("export finished", "batch", report.ID,
		"written", report.Succeeded(), "skipped", report.Skipped(), "failed", report.Failed())
	return report, nil
}

func (p *Pipeline) exportOne(a *workset.Asset, store SettingsSource, opts Options) (o Outcome) {
	o = Outcome{Source: a.Path}
	defer func() {
		if r := recover(); r != nil {
			o.Status = StatusFailed
			o.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	ws, ok := store.Lookup(a.Path)
	text, err := watermarkText(a, ws, ok)
	if err != nil {
		o.Status, o.Err = StatusSkipped, err
		return o
	}
	o.Text = text

	res, err := p.engine.Render(a.Path, text, ws, opts.Format)
	if err != nil {
		o.Status, o.Err = StatusFailed, err
		return o
	}

	out := filepath.Join(opts.OutputDir, OutputName(a.Path, opts.Format, opts.Naming, opts.NamingText))
	if err := write(out, res, opts.JPEGQuality); err != nil {
		o.Status, o.Err = StatusFailed, err
		return o
	}
	o.Status, o.Output = StatusWritten, out
	return o
}

// watermarkText resolves the text to draw, substituting the capture date for
// the sentinel.
func watermarkText(a *workset.Asset, ws models.WatermarkSettings, ok bool) (string, error) {
	if !ok || ws.Text == "" {
		return "", ErrEmptyText
	}
	if ws.Text != models.CaptureDateText {
		return ws.Text, nil
	}
	date, found := a.CaptureDate()
	if !found || date == "" {
		return "", fmt.Errorf("no capture date: %w", ErrEmptyText)
	}
	return date, nil
}

// OutputName builds the output file name for source.
func OutputName(source string, f models.Format, rule models.NamingRule, text string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	switch rule {
	case models.NamingPrefix:
		base = text + base
	case models.NamingSuffix:
		base = base + text
	}
	return base + f.Ext()
}

// CheckOutputDir fails when no directory is set or it is the directory of
// any asset.
func CheckOutputDir(outputDir string, assets []*workset.Asset) error {
	if strings.TrimSpace(outputDir) == "" {
		return ErrNoOutputDir
	}
	out := normalize(outputDir)
	for _, a := range assets {
		if normalize(filepath.Dir(a.Path)) == out {
			return fmt.Errorf("%s: %w", outputDir, ErrOutputConflict)
		}
	}
	return nil
}

func normalize(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

func write(path string, res *render.Result, quality int) error {
	const op = "export.write"

	var buf bytes.Buffer
	var data []byte
	switch res.Format {
	case models.FormatPNG:
		if err := imaging.Encode(&buf, res.Image, imaging.PNG); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		data = buf.Bytes()
	default:
		if err := imaging.Encode(&buf, res.Image, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		data = buf.Bytes()
		if res.Format.CarriesMetadata() && len(res.Metadata) > 0 {
			withMeta, err := metadata.Attach(data, res.Metadata)
			if err != nil {
				slog.Warn("metadata not attached", "output", path, "error", err)
			} else {
				data = withMeta
			}
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
