// Package server exposes the watermark workflow as a local HTTP API.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"

	"photomark/internal/export"
	"photomark/internal/models"
	"photomark/internal/render"
	"photomark/internal/settings"
	"photomark/internal/workset"
)

// FontLister lists font names available for selection.
type FontLister interface {
	Names() []string
}

type Deps struct {
	Store    *settings.Store
	Engine   *render.Engine
	Set      *workset.Set
	Pipeline *export.Pipeline
	Fonts    FontLister
}

type Server struct {
	cfg    *models.Config
	deps   Deps
	router *gin.Engine
	http   *http.Server
	gate   *previewGate
}

func NewServer(cfg *models.Config, deps Deps) *Server {
	r := gin.Default()

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: r,
		gate:   newPreviewGate(),
	}
	s.http = &http.Server{Addr: cfg.ServerAddr, Handler: r}

	r.POST("/workset", s.handleReplaceWorkset)
	r.GET("/workset", s.handleGetWorkset)

	r.GET("/settings", s.handleGetSettings)
	r.GET("/settings/startup", s.handleStartupSettings)
	r.PUT("/settings", s.handlePutSettings)
	r.POST("/settings/capture-date", s.handleCaptureDate)

	r.GET("/preview", s.handlePreview)
	r.POST("/drag", s.handleDrag)
	r.POST("/position", s.handlePosition)
	r.GET("/fonts", s.handleFonts)

	r.GET("/templates", s.handleListTemplates)
	r.GET("/templates/:name", s.handleGetTemplate)
	r.PUT("/templates/:name", s.handlePutTemplate)
	r.DELETE("/templates/:name", s.handleDeleteTemplate)
	r.POST("/templates/:name/apply", s.handleApplyTemplate)

	r.POST("/export", s.handleExport)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.cfg.ServerAddr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type worksetRequest struct {
	Inputs []string `json:"inputs" binding:"required"`
}

type assetView struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type worksetView struct {
	InputDir  string      `json:"input_dir"`
	OutputDir string      `json:"output_dir"`
	Assets    []assetView `json:"assets"`
}

func (s *Server) worksetView() worksetView {
	v := worksetView{
		InputDir:  s.deps.Set.InputDir(),
		OutputDir: s.cfg.Output.Dir,
		Assets:    []assetView{},
	}
	if v.OutputDir == "" {
		v.OutputDir = workset.DefaultOutputDir(v.InputDir)
	}
	for _, a := range s.deps.Set.Assets() {
		v.Assets = append(v.Assets, assetView{Path: a.Path, Name: a.Name()})
	}
	return v
}

func (s *Server) handleReplaceWorkset(c *gin.Context) {
	const op = "server.handleReplaceWorkset"

	var req worksetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	paths, inputDir, err := workset.Collect(req.Inputs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	s.deps.Set.Replace(paths, inputDir)
	s.gate.prune(paths)
	if _, ok := s.deps.Store.Active(); !ok {
		s.deps.Store.SetActive(paths[0])
	}
	c.JSON(http.StatusOK, s.worksetView())
}

func (s *Server) handleGetWorkset(c *gin.Context) {
	c.JSON(http.StatusOK, s.worksetView())
}

// asset resolves the path query parameter against the working set.
func (s *Server) asset(c *gin.Context, op string) (*workset.Asset, bool) {
	path := c.Query("path")
	a, ok := s.deps.Set.Lookup(path)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%s: %q is not in the working set", op, path)})
		return nil, false
	}
	return a, true
}

func (s *Server) handleGetSettings(c *gin.Context) {
	const op = "server.handleGetSettings"

	a, ok := s.asset(c, op)
	if !ok {
		return
	}
	s.deps.Store.SetActive(a.Path)
	c.JSON(http.StatusOK, newSettingsBody(s.deps.Store.Get(a.Path)))
}

// handleStartupSettings returns the settings restored at launch: the last
// session, else the default template, else the built-in defaults.
func (s *Server) handleStartupSettings(c *gin.Context) {
	c.JSON(http.StatusOK, newSettingsBody(s.deps.Store.ResolveStartupSettings()))
}

func (s *Server) handlePutSettings(c *gin.Context) {
	const op = "server.handlePutSettings"

	a, ok := s.asset(c, op)
	if !ok {
		return
	}
	ws, ok := bindSettings(c, op)
	if !ok {
		return
	}
	s.deps.Store.Set(a.Path, ws)
	s.deps.Store.SetActive(a.Path)
	c.JSON(http.StatusOK, newSettingsBody(ws))
}

func (s *Server) handleCaptureDate(c *gin.Context) {
	const op = "server.handleCaptureDate"

	a, ok := s.asset(c, op)
	if !ok {
		return
	}
	date, found := a.CaptureDate()
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%s: %s has no capture date", op, a.Name())})
		return
	}
	ws := s.deps.Store.Get(a.Path)
	ws.Text = date
	s.deps.Store.Set(a.Path, ws)
	c.JSON(http.StatusOK, newSettingsBody(ws))
}

// displayText is the text drawn for a; the capture date sentinel becomes the
// asset's date, or nothing when it has none.
func displayText(a *workset.Asset, ws models.WatermarkSettings) string {
	if ws.Text != models.CaptureDateText {
		return ws.Text
	}
	date, _ := a.CaptureDate()
	return date
}

func (s *Server) handlePreview(c *gin.Context) {
	const op = "server.handlePreview"

	a, ok := s.asset(c, op)
	if !ok {
		return
	}
	release, current := s.gate.enter(a.Path)
	if !current {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("%s: superseded by a newer preview", op)})
		return
	}
	defer release()

	ws := s.deps.Store.Get(a.Path)
	res, err := s.deps.Engine.Render(a.Path, displayText(a, ws), ws, models.FormatPNG)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	size := s.cfg.PreviewSize
	scaled := imaging.Fit(res.Image, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, scaled, imaging.PNG); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.Header("X-Image-Width", strconv.Itoa(res.Image.Bounds().Dx()))
	c.Header("X-Image-Height", strconv.Itoa(res.Image.Bounds().Dy()))
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

type dragRequest struct {
	Path     string `json:"path" binding:"required"`
	DX       int    `json:"dx"`
	DY       int    `json:"dy"`
	PreviewW int    `json:"preview_w"`
	PreviewH int    `json:"preview_h"`
}

func (s *Server) handleDrag(c *gin.Context) {
	const op = "server.handleDrag"

	var req dragRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	a, ok := s.deps.Set.Lookup(req.Path)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%s: %q is not in the working set", op, req.Path)})
		return
	}
	size, err := a.Size()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	ws := s.deps.Store.Get(a.Path)
	ws.Position = s.deps.Engine.Drag(size, image.Pt(req.PreviewW, req.PreviewH), ws, displayText(a, ws), image.Pt(req.DX, req.DY))
	s.deps.Store.Set(a.Path, ws)
	c.JSON(http.StatusOK, newSettingsBody(ws))
}

type positionRequest struct {
	Preset string `json:"preset" binding:"required"`
}

func (s *Server) handlePosition(c *gin.Context) {
	const op = "server.handlePosition"

	a, ok := s.asset(c, op)
	if !ok {
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	pos, ok := models.PresetPosition(req.Preset)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: unknown preset %q", op, req.Preset)})
		return
	}

	ws := s.deps.Store.Get(a.Path)
	ws.Position = pos
	s.deps.Store.Set(a.Path, ws)
	c.JSON(http.StatusOK, newSettingsBody(ws))
}

func (s *Server) handleFonts(c *gin.Context) {
	names := []string{}
	if s.deps.Fonts != nil {
		names = append(names, s.deps.Fonts.Names()...)
	}
	c.JSON(http.StatusOK, gin.H{"fonts": names})
}

func (s *Server) handleListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": s.deps.Store.Templates()})
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	const op = "server.handleGetTemplate"

	ws, err := s.deps.Store.LoadTemplate(c.Param("name"))
	if err != nil {
		c.JSON(templateStatus(err), gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.JSON(http.StatusOK, newSettingsBody(ws))
}

func (s *Server) handlePutTemplate(c *gin.Context) {
	const op = "server.handlePutTemplate"

	name := c.Param("name")
	ws, ok := bindSettings(c, op)
	if !ok {
		return
	}
	if s.deps.Store.HasTemplate(name) && c.Query("overwrite") != "true" {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("%s: template %q exists", op, name)})
		return
	}
	if err := s.deps.Store.SaveTemplate(c.Request.Context(), name, ws); err != nil {
		c.JSON(templateStatus(err), gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": s.deps.Store.Templates()})
}

func (s *Server) handleDeleteTemplate(c *gin.Context) {
	const op = "server.handleDeleteTemplate"

	if err := s.deps.Store.DeleteTemplate(c.Request.Context(), c.Param("name")); err != nil {
		c.JSON(templateStatus(err), gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleApplyTemplate(c *gin.Context) {
	const op = "server.handleApplyTemplate"

	a, ok := s.asset(c, op)
	if !ok {
		return
	}
	ws, err := s.deps.Store.ApplyTemplate(a.Path, c.Param("name"))
	if err != nil {
		c.JSON(templateStatus(err), gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.JSON(http.StatusOK, newSettingsBody(ws))
}

func templateStatus(err error) int {
	switch {
	case errors.Is(err, settings.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, settings.ErrNameReserved):
		return http.StatusForbidden
	case errors.Is(err, settings.ErrInvalidName):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type exportRequest struct {
	OutputDir  string `json:"output_dir"`
	Format     string `json:"format"`
	Naming     string `json:"naming"`
	NamingText string `json:"naming_text"`
}

type outcomeView struct {
	Source string `json:"source"`
	Output string `json:"output,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleExport(c *gin.Context) {
	const op = "server.handleExport"

	req := exportRequest{
		OutputDir:  s.cfg.Output.Dir,
		Format:     s.cfg.Output.Format,
		Naming:     s.cfg.Output.Naming,
		NamingText: s.cfg.Output.NamingText,
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	if req.OutputDir == "" {
		req.OutputDir = workset.DefaultOutputDir(s.deps.Set.InputDir())
	}
	format, err := models.ParseFormat(req.Format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	naming, err := models.ParseNamingRule(req.Naming)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	report, err := s.deps.Pipeline.ExportAll(c.Request.Context(), s.deps.Set.Assets(), s.deps.Store, export.Options{
		OutputDir:   req.OutputDir,
		Format:      format,
		Naming:      naming,
		NamingText:  req.NamingText,
		JPEGQuality: s.cfg.JPEGQuality,
	})
	switch {
	case errors.Is(err, export.ErrNoOutputDir):
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	case errors.Is(err, export.ErrOutputConflict):
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	outcomes := make([]outcomeView, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		v := outcomeView{Source: o.Source, Output: o.Output, Status: string(o.Status)}
		if o.Err != nil {
			v.Error = o.Err.Error()
		}
		outcomes = append(outcomes, v)
	}
	c.JSON(http.StatusOK, gin.H{
		"batch":      report.ID.String(),
		"output_dir": report.OutputDir,
		"written":    report.Succeeded(),
		"skipped":    report.Skipped(),
		"failed":     report.Failed(),
		"summary":    report.Summary(),
		"outcomes":   outcomes,
	})
}
