package caption

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gogpu/ggmeme"
)

// Font size limits in image pixels.
const (
	MinFontSize = 10
	MaxFontSize = 50

	// DefaultFontSize is the size given to newly created captions.
	DefaultFontSize = 32
)

// Effect is a named text-rendering treatment.
type Effect string

// Supported effects.
const (
	EffectNone     Effect = "none"
	EffectArc      Effect = "arc"
	EffectShake    Effect = "shake"
	EffectOutline  Effect = "outline"
	EffectGradient Effect = "gradient"
)

// Effects lists every supported effect in display order.
var Effects = []Effect{EffectNone, EffectArc, EffectShake, EffectOutline, EffectGradient}

// Valid reports whether e is one of the supported effects.
func (e Effect) Valid() bool {
	for _, v := range Effects {
		if e == v {
			return true
		}
	}
	return false
}

// FontFamily is one of the fixed set of caption fonts.
type FontFamily string

// Supported font families.
const (
	FontImpact     FontFamily = "Impact"
	FontAnton      FontFamily = "Anton"
	FontArial      FontFamily = "Arial"
	FontComicSans  FontFamily = "Comic Sans MS"
	FontCourierNew FontFamily = "Courier New"
	FontGeorgia    FontFamily = "Georgia"
)

// FontFamilies lists every supported family in display order.
var FontFamilies = []FontFamily{FontImpact, FontAnton, FontArial, FontComicSans, FontCourierNew, FontGeorgia}

// Valid reports whether f is one of the supported families.
func (f FontFamily) Valid() bool {
	for _, v := range FontFamilies {
		if f == v {
			return true
		}
	}
	return false
}

// Caption is the content and style of one text layer.
type Caption struct {
	Text         string     `json:"text"`
	Color        string     `json:"color"`
	OutlineColor string     `json:"outlineColor"`
	FontFamily   FontFamily `json:"fontFamily"`
	FontSize     int        `json:"fontSize"`
	Effect       Effect     `json:"effect"`
}

// Default returns the style given to a freshly added caption:
// white Impact with a black outline and no effect.
func Default() Caption {
	return Caption{
		Color:        "#ffffff",
		OutlineColor: "#000000",
		FontFamily:   FontImpact,
		FontSize:     DefaultFontSize,
		Effect:       EffectNone,
	}
}

// ClampFontSize clamps n to [MinFontSize, MaxFontSize].
func ClampFontSize(n int) int {
	if n < MinFontSize {
		return MinFontSize
	}
	if n > MaxFontSize {
		return MaxFontSize
	}
	return n
}

// Normalize returns c with the font size clamped and empty style fields
// replaced by their defaults. Text is never modified.
func (c Caption) Normalize() Caption {
	d := Default()
	if c.Color == "" {
		c.Color = d.Color
	}
	if c.OutlineColor == "" {
		c.OutlineColor = d.OutlineColor
	}
	if c.FontFamily == "" {
		c.FontFamily = d.FontFamily
	}
	if c.Effect == "" {
		c.Effect = d.Effect
	}
	if c.FontSize == 0 {
		c.FontSize = d.FontSize
	}
	c.FontSize = ClampFontSize(c.FontSize)
	return c
}

// Validate checks that every style field holds a supported value.
// It does not clamp; use Normalize for lenient input.
func (c Caption) Validate() error {
	if !c.FontFamily.Valid() {
		return &StyleError{Field: "fontFamily", Value: string(c.FontFamily), Reason: "unknown font family"}
	}
	if c.FontSize < MinFontSize || c.FontSize > MaxFontSize {
		return &StyleError{
			Field:  "fontSize",
			Value:  fmt.Sprint(c.FontSize),
			Reason: fmt.Sprintf("must be within [%d, %d]", MinFontSize, MaxFontSize),
		}
	}
	if !c.Effect.Valid() {
		return &StyleError{Field: "effect", Value: string(c.Effect), Reason: "unknown effect"}
	}
	if _, err := ParseColor(c.Color); err != nil {
		return &StyleError{Field: "color", Value: c.Color, Reason: err.Error()}
	}
	if _, err := ParseColor(c.OutlineColor); err != nil {
		return &StyleError{Field: "outlineColor", Value: c.OutlineColor, Reason: err.Error()}
	}
	return nil
}

// StyleError reports an out-of-range or unknown caption style value.
type StyleError struct {
	Field  string
	Value  string
	Reason string
}

func (e *StyleError) Error() string {
	return fmt.Sprintf("caption: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Is classifies StyleError as a validation error.
func (e *StyleError) Is(target error) bool {
	return target == ggmeme.ErrValidation
}

// Uppercase returns text in upper case using Unicode case mapping, the
// traditional look of Impact meme captions.
func Uppercase(text string) string {
	return cases.Upper(language.Und).String(text)
}
