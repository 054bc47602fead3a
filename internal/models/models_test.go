package models_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photomark/internal/models"
)

func TestAxisLegacyEncoding(t *testing.T) {
	tests := []struct {
		legacy int
		want   models.Axis
		back   int
	}{
		{0, models.Absolute(0), 0},
		{25, models.Absolute(25), 25},
		{-1, models.Center(), -1},
		{-2, models.FarEdge(), -2},
		{-7, models.Absolute(0), 0},
	}
	for _, tt := range tests {
		got := models.AxisFromLegacy(tt.legacy)
		assert.Equal(t, tt.want, got, "legacy %d", tt.legacy)
		assert.Equal(t, tt.back, got.Legacy(), "legacy %d", tt.legacy)
	}
}

func TestAxisResolve(t *testing.T) {
	assert.Equal(t, 10, models.Absolute(10).Resolve(200, 50))
	assert.Equal(t, 75, models.Center().Resolve(200, 50))
	assert.Equal(t, 140, models.FarEdge().Resolve(200, 50))
	// Text wider than the image: center rounds toward negative infinity.
	assert.Equal(t, -3, models.Center().Resolve(10, 15))
	assert.Equal(t, -15, models.FarEdge().Resolve(10, 15))
}

func TestParseAxis(t *testing.T) {
	for _, a := range []models.Axis{models.Absolute(42), models.Center(), models.FarEdge()} {
		got, err := models.ParseAxis(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}
	_, err := models.ParseAxis("-3")
	assert.Error(t, err)
	_, err = models.ParseAxis("left")
	assert.Error(t, err)
}

func TestPresetPosition(t *testing.T) {
	p, ok := models.PresetPosition(models.PresetBottomRight)
	require.True(t, ok)
	assert.Equal(t, models.Position{X: models.FarEdge(), Y: models.FarEdge()}, p)

	p, ok = models.PresetPosition(models.PresetTop)
	require.True(t, ok)
	assert.Equal(t, models.Position{X: models.Center(), Y: models.Absolute(10)}, p)

	_, ok = models.PresetPosition("middle-ish")
	assert.False(t, ok)
}

func TestParseColor(t *testing.T) {
	c, err := models.ParseColor(" 10, 20 ,30")
	require.NoError(t, err)
	assert.Equal(t, models.Color{R: 10, G: 20, B: 30}, c)
	assert.Equal(t, "10,20,30", c.String())

	c, err = models.ParseColor("#FF8000")
	require.NoError(t, err)
	assert.Equal(t, models.Color{R: 255, G: 128, B: 0}, c)

	for _, bad := range []string{"", "1,2", "1,2,256", "a,b,c", "#zzz"} {
		_, err := models.ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestSettingsAlpha(t *testing.T) {
	s := models.DefaultSettings()
	assert.Equal(t, uint8(204), s.Alpha())
	s.AlphaPercent = 100
	assert.Equal(t, uint8(255), s.Alpha())
	s.AlphaPercent = 0
	assert.Equal(t, uint8(0), s.Alpha())
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, models.DefaultSettings().Validate())
	assert.NoError(t, models.DefaultTemplateSettings().Validate())

	s := models.DefaultSettings()
	s.FontSize = 0
	assert.Error(t, s.Validate())

	s = models.DefaultSettings()
	s.AlphaPercent = 120
	assert.Error(t, s.Validate())

	s = models.DefaultSettings()
	s.Style = "glow"
	assert.Error(t, s.Validate())
}

func TestParseFormatAndNaming(t *testing.T) {
	f, err := models.ParseFormat("JPEG")
	require.NoError(t, err)
	assert.Equal(t, models.FormatJPEG, f)
	assert.Equal(t, ".jpg", f.Ext())
	assert.True(t, f.CarriesMetadata())
	assert.False(t, f.KeepsAlpha())

	_, err = models.ParseFormat("gif")
	assert.Error(t, err)

	r, err := models.ParseNamingRule("")
	require.NoError(t, err)
	assert.Equal(t, models.NamingKeep, r)
	_, err = models.ParseNamingRule("replace")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := models.LoadConfig(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, models.DefaultConfig(), cfg)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_addr: ":9090"
jpeg_quality: 80
output:
  format: png
  naming: suffix
  naming_text: _wm
`), 0644))
	cfg, err = models.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, 80, cfg.JPEGQuality)
	assert.Equal(t, 400, cfg.PreviewSize)
	assert.Equal(t, "png", cfg.Output.Format)
	assert.Equal(t, "_wm", cfg.Output.NamingText)

	require.NoError(t, os.WriteFile(path, []byte("jpeg_quality: 0\n"), 0644))
	_, err = models.LoadConfig(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("kafka_broker: localhost:9092\nkafka_topic: \"\"\n"), 0644))
	_, err = models.LoadConfig(path)
	assert.Error(t, err)
}
