package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/caption"
)

// bundled maps each caption family to the Go font that stands in for it
// until a real face is registered.
var bundled = map[caption.FontFamily][]byte{
	caption.FontImpact:     gobold.TTF,
	caption.FontAnton:      gomedium.TTF,
	caption.FontArial:      goregular.TTF,
	caption.FontComicSans:  goitalic.TTF,
	caption.FontCourierNew: gomono.TTF,
	caption.FontGeorgia:    gomediumitalic.TTF,
}

// EmojiFamily is the file stem LoadDir recognises as the emoji font.
const EmojiFamily = "emoji"

// FontBook resolves caption font families to parsed fonts. It is safe for
// concurrent use.
type FontBook struct {
	mu       sync.RWMutex
	faces    map[caption.FontFamily]*sfnt.Font
	emoji    *sfnt.Font
	fallback *sfnt.Font
}

// NewFontBook returns a book preloaded with the bundled Go fonts.
func NewFontBook() *FontBook {
	b := &FontBook{faces: make(map[caption.FontFamily]*sfnt.Font, len(bundled))}
	for fam, ttf := range bundled {
		f, err := sfnt.Parse(ttf)
		if err != nil {
			// The bundled fonts are compiled in; a parse failure is a build defect.
			panic(fmt.Sprintf("render: bundled font %s: %v", fam, err))
		}
		b.faces[fam] = f
	}
	b.fallback = b.faces[caption.FontArial]
	return b
}

// Register replaces the face used for family with the given TrueType or
// OpenType data.
func (b *FontBook) Register(family caption.FontFamily, data []byte) error {
	if !family.Valid() {
		return &ResourceError{Op: "font", Ref: string(family), Err: errors.New("unknown font family")}
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return &ResourceError{Op: "font", Ref: string(family), Err: err}
	}
	b.mu.Lock()
	b.faces[family] = f
	b.mu.Unlock()
	return nil
}

// RegisterEmoji installs an outline emoji font used for emoji stickers.
// Bitmap-only colour fonts carry no outlines and fall back to placeholders.
func (b *FontBook) RegisterEmoji(data []byte) error {
	f, err := sfnt.Parse(data)
	if err != nil {
		return &ResourceError{Op: "font", Ref: EmojiFamily, Err: err}
	}
	b.mu.Lock()
	b.emoji = f
	b.mu.Unlock()
	return nil
}

// LoadDir registers every .ttf or .otf file in dir whose name, without the
// extension, matches a caption family ("Comic Sans MS.ttf") or EmojiFamily.
// Other files are skipped. It returns the number of fonts registered.
func (b *FontBook) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, &ResourceError{Op: "font", Ref: dir, Err: err}
	}
	n := 0
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, &ResourceError{Op: "font", Ref: e.Name(), Err: err}
		}
		if strings.EqualFold(stem, EmojiFamily) {
			if err := b.RegisterEmoji(data); err != nil {
				return n, err
			}
			n++
			continue
		}
		fam, ok := familyByName(stem)
		if !ok {
			ggmeme.Logger().Debug("render: skipping font file", "file", e.Name())
			continue
		}
		if err := b.Register(fam, data); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Face returns the font for family, or the fallback face when the family
// is unknown.
func (b *FontBook) Face(family caption.FontFamily) *sfnt.Font {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if f, ok := b.faces[family]; ok {
		return f
	}
	return b.fallback
}

// Emoji returns the registered emoji font, or nil.
func (b *FontBook) Emoji() *sfnt.Font {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.emoji
}

func familyByName(name string) (caption.FontFamily, bool) {
	for _, f := range caption.FontFamilies {
		if strings.EqualFold(string(f), name) {
			return f, true
		}
	}
	return "", false
}
