// Package workset tracks the ordered set of images loaded for preview and
// export.
package workset

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"photomark/internal/metadata"
)

// PreviewSize is the default bound on the longest edge of cached previews.
const PreviewSize = 400

var ErrNoImages = errors.New("no supported images found")

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Supported reports whether path has a supported image extension.
func Supported(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// Collect expands inputs into image paths. Files are kept when supported;
// directories contribute their supported files, non-recursively and sorted.
// inputDir is the one directory all images share, or empty.
func Collect(inputs []string) (paths []string, inputDir string, err error) {
	const op = "workset.Collect"

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
		if !info.IsDir() {
			if Supported(in) {
				paths = append(paths, in)
			}
			continue
		}

		entries, err := os.ReadDir(in)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
		var names []string
		for _, e := range entries {
			if e.Type().IsRegular() && Supported(e.Name()) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			paths = append(paths, filepath.Join(in, n))
		}
	}
	if len(paths) == 0 {
		return nil, "", fmt.Errorf("%s: %w", op, ErrNoImages)
	}
	return paths, commonDir(paths), nil
}

// DefaultOutputDir proposes <inputDir>/<name>_watermarked.
func DefaultOutputDir(inputDir string) string {
	if inputDir == "" {
		return ""
	}
	clean := filepath.Clean(inputDir)
	return filepath.Join(clean, filepath.Base(clean)+"_watermarked")
}

func commonDir(paths []string) string {
	dir := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		if filepath.Dir(p) != dir {
			return ""
		}
	}
	return dir
}

// Asset is one image of the working set. Preview and capture date are
// computed on first use and cached.
type Asset struct {
	Path string

	limit       int
	mu          sync.Mutex
	preview     image.Image
	size        image.Point
	dateChecked bool
	date        string
	hasDate     bool
}

func NewAsset(path string) *Asset {
	return &Asset{Path: path, limit: PreviewSize}
}

func (a *Asset) Name() string { return filepath.Base(a.Path) }

// Preview returns the image scaled to fit the preview bound on its longest
// edge.
func (a *Asset) Preview() (image.Image, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.preview != nil {
		return a.preview, nil
	}
	src, err := imaging.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("workset.Preview: %w", err)
	}
	a.size = src.Bounds().Size()
	a.preview = imaging.Fit(src, a.limit, a.limit, imaging.Lanczos)
	return a.preview, nil
}

// Size returns the source dimensions, decoding the image if needed.
func (a *Asset) Size() (image.Point, error) {
	if _, err := a.Preview(); err != nil {
		return image.Point{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size, nil
}

// CaptureDate returns the cached capture date, reading metadata once.
func (a *Asset) CaptureDate() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.dateChecked {
		a.date, a.hasDate = metadata.ReadCaptureDate(a.Path)
		a.dateChecked = true
	}
	return a.date, a.hasDate
}

// Pruner is told which paths remain after the set changes.
type Pruner interface {
	Prune(keep []string)
}

// Set is the current ordered working set.
type Set struct {
	mu          sync.Mutex
	assets      []*Asset
	byPath      map[string]*Asset
	inputDir    string
	pruner      Pruner
	previewSize int
}

// NewSet creates an empty set. previewSize <= 0 selects PreviewSize.
func NewSet(pruner Pruner, previewSize int) *Set {
	if previewSize <= 0 {
		previewSize = PreviewSize
	}
	return &Set{byPath: make(map[string]*Asset), pruner: pruner, previewSize: previewSize}
}

// Replace swaps the working set. Assets already present keep their caches.
func (s *Set) Replace(paths []string, inputDir string) {
	s.mu.Lock()
	next := make([]*Asset, 0, len(paths))
	byPath := make(map[string]*Asset, len(paths))
	for _, p := range paths {
		if _, dup := byPath[p]; dup {
			continue
		}
		a, ok := s.byPath[p]
		if !ok {
			a = &Asset{Path: p, limit: s.previewSize}
		}
		next = append(next, a)
		byPath[p] = a
	}
	s.assets = next
	s.byPath = byPath
	s.inputDir = inputDir
	keep := s.pathsLocked()
	s.mu.Unlock()

	if s.pruner != nil {
		s.pruner.Prune(keep)
	}
}

func (s *Set) Assets() []*Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Asset(nil), s.assets...)
}

func (s *Set) Lookup(path string) (*Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byPath[path]
	return a, ok
}

func (s *Set) InputDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputDir
}

func (s *Set) pathsLocked() []string {
	out := make([]string, len(s.assets))
	for i, a := range s.assets {
		out[i] = a.Path
	}
	return out
}
