package render

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

// ErrFontNotFound is returned when no font file matches a name.
var ErrFontNotFound = errors.New("font not found")

// FontResolver maps a logical font name to a font file path.
type FontResolver interface {
	Resolve(name string) (string, error)
}

// DirResolver looks fonts up by file name in a set of directories.
type DirResolver struct {
	Dirs []string
}

var fontExts = map[string]bool{".ttf": true}

// Resolve returns the first <name>.ttf found under Dirs, matching the name
// case-insensitively. A name that is itself an existing file resolves to
// that file.
func (r DirResolver) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrFontNotFound
	}
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		return name, nil
	}

	var found string
	r.walk(func(path, base string) bool {
		if strings.EqualFold(base, name) {
			found = path
			return false
		}
		return true
	})
	if found == "" {
		return "", fmt.Errorf("%q: %w", name, ErrFontNotFound)
	}
	return found, nil
}

// Names lists the distinct font names available under Dirs, sorted.
func (r DirResolver) Names() []string {
	seen := map[string]bool{}
	r.walk(func(_, base string) bool {
		seen[base] = true
		return true
	})
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r DirResolver) walk(visit func(path, base string) bool) {
	stop := errors.New("stop")
	for _, dir := range r.Dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable entries are skipped; font dirs are best effort.
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			ext := filepath.Ext(path)
			if !fontExts[strings.ToLower(ext)] {
				return nil
			}
			if !visit(path, strings.TrimSuffix(d.Name(), ext)) {
				return stop
			}
			return nil
		})
		if err == stop {
			return
		}
	}
}

var (
	fallbackOnce sync.Once
	fallbackFont *truetype.Font
)

// fallbackFace returns the embedded Go Regular font at size, or the fixed
// 7x13 bitmap face if that cannot be parsed.
func fallbackFace(size int) font.Face {
	fallbackOnce.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			slog.Warn("parse embedded font", "error", err)
			return
		}
		fallbackFont = f
	})
	if fallbackFont == nil {
		return basicfont.Face7x13
	}
	return newFace(fallbackFont, size)
}

func newFace(f *truetype.Font, size int) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// fontCache holds parsed font files keyed by path.
type fontCache struct {
	mu    sync.Mutex
	fonts map[string]*truetype.Font
}

func (c *fontCache) load(path string) (*truetype.Font, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.fonts[path]; ok {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, err
	}
	if c.fonts == nil {
		c.fonts = make(map[string]*truetype.Font)
	}
	c.fonts[path] = f
	return f, nil
}
