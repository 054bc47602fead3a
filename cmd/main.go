package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photomark/internal/export"
	"photomark/internal/models"
	"photomark/internal/notify"
	"photomark/internal/render"
	"photomark/internal/server"
	"photomark/internal/settings"
	"photomark/internal/storage"
	"photomark/internal/workset"
)

const usage = `usage:
  photomark serve [-config config.yaml]
  photomark export [-config config.yaml] [-out dir] [-format jpg|png] [-naming keep|prefix|suffix] [-text affix] inputs...`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "export":
		err = runExport(ctx, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	l := slog.LevelInfo
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

// app holds the components shared by both commands.
type app struct {
	cfg      *models.Config
	store    *settings.Store
	engine   *render.Engine
	fonts    render.DirResolver
	pipeline *export.Pipeline
	closers  []func() error
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := models.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.LogLevel)

	a := &app{cfg: cfg, fonts: render.DirResolver{Dirs: cfg.FontDirs}}

	var backend settings.Backend
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		backend = pg
		slog.Info("templates stored in postgres")
	} else {
		backend = storage.NewDocument(cfg.SettingsPath)
		slog.Info("templates stored in document", "path", cfg.SettingsPath)
	}

	a.store, err = settings.Open(ctx, backend)
	if err != nil {
		a.close()
		return nil, err
	}
	if err := a.store.EnsureDefaultTemplate(ctx); err != nil {
		slog.Warn("default template not saved", "error", err)
	}

	a.engine = render.NewEngine(a.fonts)

	var reporter export.Reporter
	if cfg.KafkaBroker != "" {
		k := notify.NewKafka(cfg.KafkaBroker, cfg.KafkaTopic)
		a.closers = append(a.closers, k.Close)
		reporter = k
		slog.Info("export events enabled", "broker", cfg.KafkaBroker, "topic", cfg.KafkaTopic)
	}
	a.pipeline = export.New(a.engine, reporter)
	return a, nil
}

// captureSession saves the settings of the active image, or the startup
// settings when none is active, for the next run.
func (a *app) captureSession(fallback models.WatermarkSettings) {
	ws := fallback
	if path, ok := a.store.Active(); ok {
		ws = a.store.Get(path)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.CaptureSession(ctx, ws); err != nil {
		slog.Warn("session not saved", "error", err)
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close", "error", err)
		}
	}
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.close()
	startup := a.store.ResolveStartupSettings()
	defer a.captureSession(startup)

	srv := server.NewServer(a.cfg, server.Deps{
		Store:    a.store,
		Engine:   a.engine,
		Set:      workset.NewSet(a.store, a.cfg.PreviewSize),
		Pipeline: a.pipeline,
		Fonts:    a.fonts,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "config file")
	out := fs.String("out", "", "output directory (default <input>_watermarked)")
	format := fs.String("format", "", "output format: jpg or png")
	naming := fs.String("naming", "", "naming rule: keep, prefix or suffix")
	text := fs.String("text", "", "prefix or suffix text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("export: no inputs given")
	}

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.close()

	opts, err := exportOptions(a.cfg, *out, *format, *naming, *text)
	if err != nil {
		return err
	}

	paths, inputDir, err := workset.Collect(fs.Args())
	if err != nil {
		return err
	}
	set := workset.NewSet(a.store, a.cfg.PreviewSize)
	set.Replace(paths, inputDir)
	if opts.OutputDir == "" {
		opts.OutputDir = workset.DefaultOutputDir(inputDir)
	}

	startup := a.store.ResolveStartupSettings()
	defer a.captureSession(startup)
	for _, p := range paths {
		a.store.Set(p, startup)
	}

	report, err := a.pipeline.ExportAll(ctx, set.Assets(), a.store, opts)
	if err != nil {
		return err
	}
	fmt.Println(report.Summary())
	if report.Failed() > 0 {
		return fmt.Errorf("export: %d of %d images failed", report.Failed(), len(report.Outcomes))
	}
	return nil
}

// exportOptions overlays command line flags on the configured output.
func exportOptions(cfg *models.Config, out, format, naming, text string) (export.Options, error) {
	if out == "" {
		out = cfg.Output.Dir
	}
	if format == "" {
		format = cfg.Output.Format
	}
	if naming == "" {
		naming = cfg.Output.Naming
	}
	if text == "" {
		text = cfg.Output.NamingText
	}

	f, err := models.ParseFormat(format)
	if err != nil {
		return export.Options{}, err
	}
	rule, err := models.ParseNamingRule(naming)
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{
		OutputDir:   out,
		Format:      f,
		Naming:      rule,
		NamingText:  text,
		JPEGQuality: cfg.JPEGQuality,
	}, nil
}
