package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"photomark/internal/models"
	"photomark/internal/settings"
)

// Document keeps all templates in one JSON file.
type Document struct {
	path string
}

func NewDocument(path string) *Document {
	return &Document{path: path}
}

func (d *Document) Path() string { return d.path }

// Load reads the document. A missing file is an empty document; malformed
// content is reported as settings.ErrCorrupt.
func (d *Document) Load(_ context.Context) (map[string]models.WatermarkSettings, error) {
	const op = "storage.Document.Load"

	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("settings document not found, starting empty", "path", d.path)
			return map[string]models.WatermarkSettings{}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var records map[string]record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, settings.ErrCorrupt, err)
	}

	out := make(map[string]models.WatermarkSettings, len(records))
	for name, r := range records {
		ws, err := r.settings()
		if err != nil {
			return nil, fmt.Errorf("%s: template %q: %w: %v", op, name, settings.ErrCorrupt, err)
		}
		out[name] = ws
	}
	return out, nil
}

// Save replaces the document atomically.
func (d *Document) Save(_ context.Context, templates map[string]models.WatermarkSettings) error {
	const op = "storage.Document.Save"

	records := make(map[string]record, len(templates))
	for name, ws := range templates {
		records[name] = toRecord(ws)
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tmp, err := os.CreateTemp(dir, ".templates-*.json")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
