package vision

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nfnt/resize"
	"github.com/vcaesar/imgo"
)

// Template is a named reference image.
type Template struct {
	Name  string
	Image image.Image
}

func (t Template) Size() (int, int) {
	b := t.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Store holds the reference templates, keyed by file stem. It is immutable
// once loaded.
type Store struct {
	dir       string
	templates map[string]Template
}

func NewStore(templates ...Template) *Store {
	s := &Store{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		s.templates[t.Name] = t
	}
	return s
}

// LoadStore reads every png/jpg in dir. Templates are rescaled when scale != 1.
// Unreadable files are logged and skipped.
func LoadStore(dir string, scale float64, logger *slog.Logger) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading reference images directory %s: %w", dir, err)
	}

	s := NewStore()
	s.dir = dir
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
			continue
		}

		path := filepath.Join(dir, e.Name())
		img, err := imgo.Read(path)
		if err != nil {
			logger.Warn("Skipping unreadable reference image", slog.String("file", path), slog.Any("error", err))
			continue
		}
		if scale > 0 && scale != 1 {
			img = scaleImage(img, scale)
		}

		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		s.templates[name] = Template{Name: name, Image: img}
	}

	logger.Info("Reference images loaded", slog.Int("count", len(s.templates)), slog.String("dir", dir))

	return s, nil
}

func scaleImage(img image.Image, scale float64) image.Image {
	b := img.Bounds()
	w := uint(float64(b.Dx()) * scale)
	h := uint(float64(b.Dy()) * scale)
	if w == 0 || h == 0 {
		return img
	}
	return resize.Resize(w, h, img, resize.Bicubic)
}

func (s *Store) Get(name string) (Template, bool) {
	t, found := s.templates[name]
	return t, found
}

func (s *Store) Len() int {
	return len(s.templates)
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Names() []string {
	names := make([]string, 0, len(s.templates))
	for n := range s.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// saveImage writes img as <dir>/<name>.png.
func saveImage(dir, name string, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, name+".png")
	if err := imgo.Save(path, img); err != nil {
		return "", fmt.Errorf("error saving %s: %w", path, err)
	}
	return path, nil
}
