package render

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontLoader finds font families by file name under a set of directories.
// A family that cannot be located falls back to Go Regular, and if that
// cannot be parsed either, to a fixed bitmap face. Lookups never fail.
//
// Parsed fonts are cached and shared; faces are not, since an opentype face
// keeps per-call buffers. Callers close faces they get from Face.
type FontLoader struct {
	dirs   []string
	logger *zap.Logger

	indexOnce sync.Once
	index     map[string]string

	mu     sync.Mutex
	parsed map[string]*opentype.Font

	fallbackOnce sync.Once
	fallback     *opentype.Font
}

// NewFontLoader indexes dirs lazily on first use. logger may be nil.
func NewFontLoader(dirs []string, logger *zap.Logger) *FontLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	clean := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d = strings.TrimSpace(d); d != "" {
			clean = append(clean, d)
		}
	}
	return &FontLoader{dirs: clean, logger: logger, parsed: map[string]*opentype.Font{}}
}

// Face returns a face for family at size pixels.
func (l *FontLoader) Face(family string, size int) font.Face {
	if size <= 0 {
		size = 40
	}
	f := l.lookup(family)
	if f == nil {
		f = l.goRegular()
	}
	if f == nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: float64(size), DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		l.logger.Warn("font face creation failed", zap.String("family", family), zap.Error(err))
		return basicfont.Face7x13
	}
	return face
}

func (l *FontLoader) lookup(family string) *opentype.Font {
	key := familyKey(family)
	if key == "" {
		return nil
	}
	l.indexOnce.Do(l.buildIndex)
	path, ok := l.index[key]
	if !ok {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.parsed[path]; ok {
		return f
	}
	data, err := os.ReadFile(path)
	if err != nil {
		l.logger.Warn("font read failed", zap.String("path", path), zap.Error(err))
		l.parsed[path] = nil
		return nil
	}
	f, err := opentype.Parse(data)
	if err != nil {
		l.logger.Warn("font parse failed", zap.String("path", path), zap.Error(err))
		f = nil
	}
	l.parsed[path] = f
	return f
}

func (l *FontLoader) buildIndex() {
	l.index = map[string]string{}
	for _, dir := range l.dirs {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Missing or unreadable directories are skipped.
				return nil
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".ttf" && ext != ".otf" {
				return nil
			}
			key := familyKey(strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())))
			if _, seen := l.index[key]; !seen {
				l.index[key] = path
			}
			return nil
		})
	}
	l.logger.Debug("font index built", zap.Int("fonts", len(l.index)), zap.Strings("dirs", l.dirs))
}

func (l *FontLoader) goRegular() *opentype.Font {
	l.fallbackOnce.Do(func() {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			l.logger.Error("fallback font parse failed", zap.Error(err))
			return
		}
		l.fallback = f
	})
	return l.fallback
}

// familyKey folds "Open Sans", "open-sans.ttf" and "OpenSans" together.
func familyKey(family string) string {
	s := strings.ToLower(strings.TrimSpace(family))
	s = strings.TrimSuffix(strings.TrimSuffix(s, ".ttf"), ".otf")
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, s)
}
