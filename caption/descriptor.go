package caption

import (
	"math"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/graphemes"
	"github.com/gogpu/gg"
	"golang.org/x/text/unicode/norm"
)

// Outline widths in image pixels.
const (
	DefaultOutlineWidth = 2
	HeavyOutlineWidth   = 4
)

// Arc geometry: each glyph turns ArcStepDegrees per position away from the
// midpoint and rises ArcLiftPerStep pixels per position.
const (
	ArcStepDegrees = 6.0
	ArcLiftPerStep = 2.0
)

// nbsp replaces whitespace glyphs in arc layouts so they keep their advance.
const nbsp = "\u00a0"

// GradientStops is the fixed left-to-right fill of the gradient effect:
// pink, violet, cyan, amber.
var GradientStops = []gg.ColorStop{
	{Offset: 0, Color: MustParseColor("#ec4899")},
	{Offset: 1.0 / 3, Color: MustParseColor("#8b5cf6")},
	{Offset: 2.0 / 3, Color: MustParseColor("#06b6d4")},
	{Offset: 1, Color: MustParseColor("#f59e0b")},
}

// GlyphPlacement positions one glyph of an arc layout relative to its
// natural position on a straight baseline.
type GlyphPlacement struct {
	Text     string  // a single grapheme cluster; whitespace is NBSP
	Rotation float64 // degrees, clockwise positive
	OffsetY  float64 // pixels, negative is up
}

// Descriptor is the render description of one caption.
type Descriptor struct {
	Text       string
	FontFamily FontFamily
	FontSize   float64

	// Fill is the flat glyph colour. It is transparent when Gradient is set.
	Fill gg.RGBA

	// Gradient, when non-nil, is painted left to right across the caption
	// box and clipped to the glyph shapes.
	Gradient []gg.ColorStop

	Outline        gg.RGBA
	OutlineWidth   float64
	OutlineOffsets []gg.Point

	// Glyphs is non-nil for the arc effect; the renderer places each glyph
	// independently instead of drawing Text as one run.
	Glyphs []GlyphPlacement

	// Animated marks the shake effect. It is a live-preview hint only and
	// does not change the exported raster.
	Animated bool
}

// RenderDescriptor maps a caption to its render description.
// It has no side effects. The caption is normalized first, so out-of-range
// font sizes are clamped; unparsable colours yield a *StyleError.
func RenderDescriptor(c Caption) (Descriptor, error) {
	c = c.Normalize()
	if !c.FontFamily.Valid() {
		return Descriptor{}, &StyleError{Field: "fontFamily", Value: string(c.FontFamily), Reason: "unknown font family"}
	}
	if !c.Effect.Valid() {
		return Descriptor{}, &StyleError{Field: "effect", Value: string(c.Effect), Reason: "unknown effect"}
	}
	fill, err := ParseColor(c.Color)
	if err != nil {
		return Descriptor{}, &StyleError{Field: "color", Value: c.Color, Reason: err.Error()}
	}
	outline, err := ParseColor(c.OutlineColor)
	if err != nil {
		return Descriptor{}, &StyleError{Field: "outlineColor", Value: c.OutlineColor, Reason: err.Error()}
	}

	width := float64(DefaultOutlineWidth)
	if c.Effect == EffectOutline {
		width = HeavyOutlineWidth
	}

	desc := Descriptor{
		Text:           norm.NFC.String(c.Text),
		FontFamily:     c.FontFamily,
		FontSize:       float64(c.FontSize),
		Fill:           fill,
		Outline:        outline,
		OutlineWidth:   width,
		OutlineOffsets: OutlineOffsets(width),
	}

	switch c.Effect {
	case EffectGradient:
		desc.Fill = gg.Transparent
		desc.Gradient = append([]gg.ColorStop(nil), GradientStops...)
	case EffectArc:
		desc.Glyphs = ArcLayout(desc.Text)
	case EffectShake:
		desc.Animated = true
	}
	return desc, nil
}

// OutlineOffsets returns the eight offsets used to approximate a stroke of
// the given width: the four cardinal directions at full width followed by
// the four diagonals at half width.
func OutlineOffsets(width float64) []gg.Point {
	h := width / 2
	return []gg.Point{
		{X: width, Y: 0}, {X: -width, Y: 0}, {X: 0, Y: width}, {X: 0, Y: -width},
		{X: h, Y: h}, {X: -h, Y: h}, {X: h, Y: -h}, {X: -h, Y: -h},
	}
}

// ArcLayout splits text into grapheme clusters and places glyph i, at
// distance d = i - (N-1)/2 from the midpoint, rotated by 6°·d and lifted by
// 2·|d| pixels, so the ends of the line curl upward.
func ArcLayout(text string) []GlyphPlacement {
	clusters := Graphemes(text)
	if len(clusters) == 0 {
		return []GlyphPlacement{}
	}
	mid := float64(len(clusters)-1) / 2
	out := make([]GlyphPlacement, len(clusters))
	for i, g := range clusters {
		d := float64(i) - mid
		if isSpace(g) {
			g = nbsp
		}
		out[i] = GlyphPlacement{
			Text:     g,
			Rotation: ArcStepDegrees * d,
			OffsetY:  -ArcLiftPerStep * math.Abs(d),
		}
	}
	return out
}

// Graphemes splits text into user-perceived characters.
func Graphemes(text string) []string {
	var out []string
	seg := graphemes.FromString(text)
	for seg.Next() {
		out = append(out, seg.Value())
	}
	return out
}

func isSpace(g string) bool {
	return strings.TrimFunc(g, unicode.IsSpace) == ""
}
