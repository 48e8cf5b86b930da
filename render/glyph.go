package render

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/gg"
)

// face is a font at one pixel size with a private sfnt buffer. It is not
// safe for concurrent use.
type face struct {
	font *sfnt.Font
	buf  *sfnt.Buffer
	ppem fixed.Int26_6
	size float64
}

func newFace(f *sfnt.Font, size float64) *face {
	return &face{font: f, buf: new(sfnt.Buffer), ppem: fixed.Int26_6(size * 64), size: size}
}

func fromFixed(v fixed.Int26_6) float64 { return float64(v) / 64 }

// metrics returns ascent, descent and line height in pixels.
func (f *face) metrics() (ascent, descent, height float64) {
	m, err := f.font.Metrics(f.buf, f.ppem, font.HintingNone)
	if err != nil {
		return f.size * 0.8, f.size * 0.2, f.size * 1.2
	}
	return fromFixed(m.Ascent), fromFixed(m.Descent), fromFixed(m.Height)
}

// has reports whether every rune of s except joiners and variation
// selectors maps to a real glyph.
func (f *face) has(s string) bool {
	for _, r := range s {
		if ignorable(r) {
			continue
		}
		idx, err := f.font.GlyphIndex(f.buf, r)
		if err != nil || idx == 0 {
			return false
		}
	}
	return true
}

func ignorable(r rune) bool {
	return r == '\u200d' || (r >= '\ufe00' && r <= '\ufe0f')
}

// glyphs maps s to glyph indices, dropping ignorable runes. Missing
// glyphs map to index 0, which draws the font's notdef box.
func (f *face) glyphs(s string) []sfnt.GlyphIndex {
	out := make([]sfnt.GlyphIndex, 0, len(s))
	for _, r := range s {
		if ignorable(r) {
			continue
		}
		if r == '\u00a0' {
			r = ' '
		}
		idx, err := f.font.GlyphIndex(f.buf, r)
		if err != nil {
			idx = 0
		}
		out = append(out, idx)
	}
	return out
}

// advance measures s on a straight baseline including kerning.
func (f *face) advance(s string) float64 {
	var x fixed.Int26_6
	prev := sfnt.GlyphIndex(0)
	for i, g := range f.glyphs(s) {
		if i > 0 {
			if k, err := f.font.Kern(f.buf, prev, g, f.ppem, font.HintingNone); err == nil {
				x += k
			}
		}
		if a, err := f.font.GlyphAdvance(f.buf, g, f.ppem, font.HintingNone); err == nil {
			x += a
		}
		prev = g
	}
	return fromFixed(x)
}

// appendRun adds the outlines of s to the current path of dc with the pen
// starting at (x, y) on the baseline. Coordinates go through the context
// transform. It returns the advance.
func (f *face) appendRun(dc *gg.Context, s string, x, y float64) float64 {
	pen := x
	prev := sfnt.GlyphIndex(0)
	for i, g := range f.glyphs(s) {
		if i > 0 {
			if k, err := f.font.Kern(f.buf, prev, g, f.ppem, font.HintingNone); err == nil {
				pen += fromFixed(k)
			}
		}
		f.appendGlyph(dc, g, pen, y)
		if a, err := f.font.GlyphAdvance(f.buf, g, f.ppem, font.HintingNone); err == nil {
			pen += fromFixed(a)
		}
		prev = g
	}
	return pen - x
}

func (f *face) appendGlyph(dc *gg.Context, g sfnt.GlyphIndex, x, y float64) {
	segs, err := f.font.LoadGlyph(f.buf, g, f.ppem, nil)
	if err != nil {
		return
	}
	pt := func(p fixed.Point26_6) (float64, float64) {
		return x + fromFixed(p.X), y + fromFixed(p.Y)
	}
	open := false
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			if open {
				dc.ClosePath()
			}
			dc.MoveTo(pt(s.Args[0]))
			open = true
		case sfnt.SegmentOpLineTo:
			dc.LineTo(pt(s.Args[0]))
		case sfnt.SegmentOpQuadTo:
			cx, cy := pt(s.Args[0])
			px, py := pt(s.Args[1])
			dc.QuadraticTo(cx, cy, px, py)
		case sfnt.SegmentOpCubeTo:
			c1x, c1y := pt(s.Args[0])
			c2x, c2y := pt(s.Args[1])
			px, py := pt(s.Args[2])
			dc.CubicTo(c1x, c1y, c2x, c2y, px, py)
		}
	}
	if open {
		dc.ClosePath()
	}
}

// wrap breaks text into lines no wider than width, splitting on spaces.
// Explicit newlines always break. A single word wider than width gets a
// line of its own.
func (f *face) wrap(text string, width float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if f.advance(candidate) <= width {
				line = candidate
				continue
			}
			lines = append(lines, line)
			line = w
		}
		lines = append(lines, line)
	}
	return lines
}
