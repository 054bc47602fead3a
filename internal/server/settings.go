package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"photomark/internal/models"
)

type positionBody struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// settingsBody is the HTTP form of models.WatermarkSettings. Colors use
// "r,g,b" or "#rrggbb"; position axes are an offset, "center" or "far-edge".
type settingsBody struct {
	Text         string       `json:"text"`
	Font         string       `json:"font"`
	FontSize     int          `json:"font_size"`
	TextColor    string       `json:"text_color"`
	OutlineColor string       `json:"outline_color"`
	Alpha        float64      `json:"alpha"`
	Style        string       `json:"style"`
	Position     positionBody `json:"position"`
}

func newSettingsBody(ws models.WatermarkSettings) settingsBody {
	return settingsBody{
		Text:         ws.Text,
		Font:         ws.Font,
		FontSize:     ws.FontSize,
		TextColor:    ws.TextColor.String(),
		OutlineColor: ws.OutlineColor.String(),
		Alpha:        ws.AlphaPercent,
		Style:        string(ws.Style),
		Position:     positionBody{X: ws.Position.X.String(), Y: ws.Position.Y.String()},
	}
}

// settings converts the body, starting from defaults for omitted fields.
func (b settingsBody) settings() (models.WatermarkSettings, error) {
	ws := models.DefaultSettings()
	ws.Text = b.Text
	if b.Font != "" {
		ws.Font = b.Font
	}
	if b.FontSize != 0 {
		ws.FontSize = b.FontSize
	}
	ws.AlphaPercent = b.Alpha

	var err error
	if b.TextColor != "" {
		if ws.TextColor, err = models.ParseColor(b.TextColor); err != nil {
			return ws, err
		}
	}
	if b.OutlineColor != "" {
		if ws.OutlineColor, err = models.ParseColor(b.OutlineColor); err != nil {
			return ws, err
		}
	}
	if ws.Style, err = models.ParseStyle(b.Style); err != nil {
		return ws, err
	}
	if b.Position.X != "" {
		if ws.Position.X, err = models.ParseAxis(b.Position.X); err != nil {
			return ws, err
		}
	}
	if b.Position.Y != "" {
		if ws.Position.Y, err = models.ParseAxis(b.Position.Y); err != nil {
			return ws, err
		}
	}
	return ws, ws.Validate()
}

func bindSettings(c *gin.Context, op string) (models.WatermarkSettings, bool) {
	body := newSettingsBody(models.DefaultSettings())
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return models.WatermarkSettings{}, false
	}
	ws, err := body.settings()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return models.WatermarkSettings{}, false
	}
	return ws, true
}
