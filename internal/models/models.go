package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	// CaptureDateText is substituted with the image's capture date at render time.
	CaptureDateText = "{capture-date}"

	DefaultTemplateName = "Default (bottom-right shadow)"
	// LastSessionKey is the template slot used to restore settings across
	// restarts. It is never listed to users.
	LastSessionKey = "__last_session__"

	// EdgeMargin is the gap kept between far-edge aligned text and the border.
	EdgeMargin = 10
)

type Style string

const (
	StyleNone    Style = "none"
	StyleShadow  Style = "shadow"
	StyleOutline Style = "outline"
)

func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case StyleNone, "":
		return StyleNone, nil
	case StyleShadow:
		return StyleShadow, nil
	case StyleOutline:
		return StyleOutline, nil
	}
	return "", fmt.Errorf("unknown style %q", s)
}

type Color struct {
	R, G, B uint8
}

var (
	White = Color{R: 255, G: 255, B: 255}
	Black = Color{}
)

// String renders the color as "r,g,b".
func (c Color) String() string {
	return fmt.Sprintf("%d,%d,%d", c.R, c.G, c.B)
}

// ParseColor accepts "r,g,b" triples or hex notation ("#rrggbb").
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return Color{}, fmt.Errorf("parse color %q: %w", s, err)
		}
		r, g, b := c.RGB255()
		return Color{R: r, G: g, B: b}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Color{}, fmt.Errorf("parse color %q: want r,g,b", s)
	}
	var rgb [3]uint8
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return Color{}, fmt.Errorf("parse color %q: component %q out of range", s, p)
		}
		rgb[i] = uint8(n)
	}
	return Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}

type WatermarkSettings struct {
	Text         string
	Font         string
	FontSize     int
	TextColor    Color
	OutlineColor Color
	AlphaPercent float64
	Style        Style
	Position     Position
}

// DefaultSettings is the one place settings are built from nothing.
func DefaultSettings() WatermarkSettings {
	return WatermarkSettings{
		Text:         "",
		Font:         "Arial",
		FontSize:     36,
		TextColor:    White,
		OutlineColor: Black,
		AlphaPercent: 80,
		Style:        StyleNone,
		Position:     AbsolutePosition(10, 10),
	}
}

// DefaultTemplateSettings is the preset stored under DefaultTemplateName.
func DefaultTemplateSettings() WatermarkSettings {
	s := DefaultSettings()
	s.Text = "© Your Name"
	s.FontSize = 24
	s.Style = StyleShadow
	s.Position = Position{X: FarEdge(), Y: FarEdge()}
	return s
}

// Alpha converts AlphaPercent to an 8-bit alpha, clamped to [0, 255].
func (s WatermarkSettings) Alpha() uint8 {
	a := int(s.AlphaPercent * 255 / 100)
	if a < 0 {
		return 0
	}
	if a > 255 {
		return 255
	}
	return uint8(a)
}

func (s WatermarkSettings) Validate() error {
	if s.FontSize <= 0 {
		return fmt.Errorf("font size must be positive, got %d", s.FontSize)
	}
	if s.AlphaPercent < 0 || s.AlphaPercent > 100 {
		return fmt.Errorf("alpha must be in [0, 100], got %v", s.AlphaPercent)
	}
	if _, err := ParseStyle(string(s.Style)); err != nil {
		return err
	}
	return nil
}

type Format string

const (
	FormatJPEG Format = "jpg"
	FormatPNG  Format = "png"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

func (f Format) Ext() string { return "." + string(f) }

// KeepsAlpha reports whether the format stores the RGBA result as is.
func (f Format) KeepsAlpha() bool { return f == FormatPNG }

// CarriesMetadata reports whether EXIF payloads are attached on write.
func (f Format) CarriesMetadata() bool { return f == FormatJPEG }

type NamingRule string

const (
	NamingKeep   NamingRule = "keep"
	NamingPrefix NamingRule = "prefix"
	NamingSuffix NamingRule = "suffix"
)

func ParseNamingRule(s string) (NamingRule, error) {
	switch NamingRule(strings.ToLower(strings.TrimSpace(s))) {
	case NamingKeep, "":
		return NamingKeep, nil
	case NamingPrefix:
		return NamingPrefix, nil
	case NamingSuffix:
		return NamingSuffix, nil
	}
	return "", fmt.Errorf("unknown naming rule %q", s)
}
