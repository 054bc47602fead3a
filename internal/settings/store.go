// Package settings owns per-image watermark settings and named templates.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"photomark/internal/models"
)

var (
	ErrNameReserved     = errors.New("template name is reserved")
	ErrInvalidName      = errors.New("template name is empty")
	ErrTemplateNotFound = errors.New("template not found")
	// ErrCorrupt is returned by a Backend whose stored document is malformed.
	ErrCorrupt = errors.New("settings document is corrupt")
)

// Backend persists the template document.
type Backend interface {
	Load(ctx context.Context) (map[string]models.WatermarkSettings, error)
	Save(ctx context.Context, templates map[string]models.WatermarkSettings) error
}

// Store holds per-image overrides keyed by path and the template document.
// All methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	backend   Backend
	images    map[string]models.WatermarkSettings
	templates map[string]models.WatermarkSettings
	active    string
}

// Open loads the template document from backend. A corrupt document is
// replaced by an empty one; other backend errors are returned.
func Open(ctx context.Context, backend Backend) (*Store, error) {
	const op = "settings.Open"

	templates, err := backend.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		slog.Warn("settings document is corrupt, starting empty", "error", err)
		templates = nil
	}
	if templates == nil {
		templates = make(map[string]models.WatermarkSettings)
	}

	return &Store{
		backend:   backend,
		images:    make(map[string]models.WatermarkSettings),
		templates: templates,
	}, nil
}

// Get returns the settings for path, creating defaults for a new path.
func (s *Store) Get(path string) models.WatermarkSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.images[path]
	if !ok {
		ws = models.DefaultSettings()
		s.images[path] = ws
	}
	return ws
}

// Lookup returns the settings for path without creating them.
func (s *Store) Lookup(path string) (models.WatermarkSettings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.images[path]
	return ws, ok
}

// Set replaces the settings for path. It never touches templates.
func (s *Store) Set(path string, ws models.WatermarkSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.images[path] = ws
}

// Prune drops entries for paths not in keep and creates defaults for new ones.
func (s *Store) Prune(keep []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]bool, len(keep))
	for _, p := range keep {
		want[p] = true
		if _, ok := s.images[p]; !ok {
			s.images[p] = models.DefaultSettings()
		}
	}
	for p := range s.images {
		if !want[p] {
			delete(s.images, p)
		}
	}
	if !want[s.active] {
		s.active = ""
	}
}

func (s *Store) SetActive(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = path
}

func (s *Store) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active, s.active != ""
}

// HasTemplate reports whether a user-visible template exists, so callers
// can confirm an overwrite before SaveTemplate.
func (s *Store) HasTemplate(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == models.LastSessionKey {
		return false
	}
	_, ok := s.templates[name]
	return ok
}

// SaveTemplate stores ws under name, overwriting an existing template.
func (s *Store) SaveTemplate(ctx context.Context, name string, ws models.WatermarkSettings) error {
	const op = "settings.SaveTemplate"

	if err := checkName(name); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.templates[name]
	s.templates[name] = ws
	if err := s.persist(ctx); err != nil {
		if existed {
			s.templates[name] = prev
		} else {
			delete(s.templates, name)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) LoadTemplate(name string) (models.WatermarkSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == models.LastSessionKey {
		return models.WatermarkSettings{}, fmt.Errorf("%q: %w", name, ErrTemplateNotFound)
	}
	ws, ok := s.templates[name]
	if !ok {
		return models.WatermarkSettings{}, fmt.Errorf("%q: %w", name, ErrTemplateNotFound)
	}
	return ws, nil
}

// ApplyTemplate copies a template into the settings for path.
func (s *Store) ApplyTemplate(path, name string) (models.WatermarkSettings, error) {
	ws, err := s.LoadTemplate(name)
	if err != nil {
		return models.WatermarkSettings{}, err
	}
	s.Set(path, ws)
	return ws, nil
}

func (s *Store) DeleteTemplate(ctx context.Context, name string) error {
	const op = "settings.DeleteTemplate"

	if name == models.LastSessionKey {
		return fmt.Errorf("%s: %w", op, ErrNameReserved)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.templates[name]
	if !ok {
		return fmt.Errorf("%s: %q: %w", op, name, ErrTemplateNotFound)
	}
	delete(s.templates, name)
	if err := s.persist(ctx); err != nil {
		s.templates[name] = prev
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Templates lists user-visible template names, sorted.
func (s *Store) Templates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		if name != models.LastSessionKey {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// EnsureDefaultTemplate creates and persists the built-in template if it is
// absent. It is a no-op otherwise.
func (s *Store) EnsureDefaultTemplate(ctx context.Context) error {
	const op = "settings.EnsureDefaultTemplate"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[models.DefaultTemplateName]; ok {
		return nil
	}
	slog.Info("creating default template", "name", models.DefaultTemplateName)
	s.templates[models.DefaultTemplateName] = models.DefaultTemplateSettings()
	if err := s.persist(ctx); err != nil {
		delete(s.templates, models.DefaultTemplateName)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CaptureSession stores ws in the last-session slot and persists it.
func (s *Store) CaptureSession(ctx context.Context, ws models.WatermarkSettings) error {
	const op = "settings.CaptureSession"

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.templates[models.LastSessionKey]
	s.templates[models.LastSessionKey] = ws
	if err := s.persist(ctx); err != nil {
		if existed {
			s.templates[models.LastSessionKey] = prev
		} else {
			delete(s.templates, models.LastSessionKey)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ResolveStartupSettings picks the last session, then the default template,
// then the built-in defaults.
func (s *Store) ResolveStartupSettings() models.WatermarkSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ws, ok := s.templates[models.LastSessionKey]; ok {
		slog.Debug("startup settings from last session")
		return ws
	}
	if ws, ok := s.templates[models.DefaultTemplateName]; ok {
		slog.Debug("startup settings from default template")
		return ws
	}
	return models.DefaultSettings()
}

// persist writes a copy of the template document. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) error {
	doc := make(map[string]models.WatermarkSettings, len(s.templates))
	for k, v := range s.templates {
		doc[k] = v
	}
	return s.backend.Save(ctx, doc)
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if name == models.LastSessionKey {
		return ErrNameReserved
	}
	return nil
}
