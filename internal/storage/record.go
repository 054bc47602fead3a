package storage

import (
	"fmt"

	"photomark/internal/models"
)

// record is the stored form of a WatermarkSettings. Positions use the
// legacy integer encoding (-1 center, -2 right/bottom). Pointer fields are
// optional in older documents.
type record struct {
	Text         string   `json:"text"`
	FontName     string   `json:"font_name"`
	FontSize     int      `json:"font_size"`
	TextColor    string   `json:"text_color"`
	OutlineColor string   `json:"outline_color"`
	Alpha        *float64 `json:"alpha"`
	Style        string   `json:"style"`
	PosX         *int     `json:"pos_x"`
	PosY         *int     `json:"pos_y"`
}

func toRecord(ws models.WatermarkSettings) record {
	alpha := ws.AlphaPercent
	x, y := ws.Position.X.Legacy(), ws.Position.Y.Legacy()
	return record{
		Text:         ws.Text,
		FontName:     ws.Font,
		FontSize:     ws.FontSize,
		TextColor:    ws.TextColor.String(),
		OutlineColor: ws.OutlineColor.String(),
		Alpha:        &alpha,
		Style:        string(ws.Style),
		PosX:         &x,
		PosY:         &y,
	}
}

// settings converts a record, filling fields missing from older documents
// with defaults.
func (r record) settings() (models.WatermarkSettings, error) {
	ws := models.DefaultSettings()
	ws.Text = r.Text
	if r.FontName != "" {
		ws.Font = r.FontName
	}
	if r.FontSize > 0 {
		ws.FontSize = r.FontSize
	}

	var err error
	if r.TextColor != "" {
		if ws.TextColor, err = models.ParseColor(r.TextColor); err != nil {
			return ws, err
		}
	}
	if r.OutlineColor != "" {
		if ws.OutlineColor, err = models.ParseColor(r.OutlineColor); err != nil {
			return ws, err
		}
	}
	if ws.Style, err = models.ParseStyle(r.Style); err != nil {
		return ws, err
	}
	if r.Alpha != nil {
		if *r.Alpha < 0 || *r.Alpha > 100 {
			return ws, fmt.Errorf("alpha %v out of range", *r.Alpha)
		}
		ws.AlphaPercent = *r.Alpha
	}
	if r.PosX != nil {
		ws.Position.X = models.AxisFromLegacy(*r.PosX)
	}
	if r.PosY != nil {
		ws.Position.Y = models.AxisFromLegacy(*r.PosY)
	}
	return ws, nil
}
