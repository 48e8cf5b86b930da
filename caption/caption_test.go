package caption

import (
	"errors"
	"testing"

	"github.com/gogpu/ggmeme"
)

func TestClampFontSize(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-5, MinFontSize},
		{9, MinFontSize},
		{10, 10},
		{32, 32},
		{50, 50},
		{51, MaxFontSize},
		{400, MaxFontSize},
	}
	for _, tt := range tests {
		if got := ClampFontSize(tt.in); got != tt.want {
			t.Errorf("ClampFontSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestNormalize(t *testing.T) {
	c := Caption{Text: "  keep me  ", FontSize: 99}.Normalize()
	if c.Text != "  keep me  " {
		t.Errorf("Normalize changed text to %q", c.Text)
	}
	if c.FontSize != MaxFontSize {
		t.Errorf("FontSize = %d, want %d", c.FontSize, MaxFontSize)
	}
	if c.FontFamily != FontImpact || c.Effect != EffectNone {
		t.Errorf("defaults not applied: %+v", c)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Caption)
		field string
	}{
		{"font", func(c *Caption) { c.FontFamily = "Papyrus" }, "fontFamily"},
		{"size low", func(c *Caption) { c.FontSize = 9 }, "fontSize"},
		{"size high", func(c *Caption) { c.FontSize = 51 }, "fontSize"},
		{"effect", func(c *Caption) { c.Effect = "wobble" }, "effect"},
		{"color", func(c *Caption) { c.Color = "#12345" }, "color"},
		{"outline", func(c *Caption) { c.OutlineColor = "notacolor" }, "outlineColor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.edit(&c)
			err := c.Validate()
			var se *StyleError
			if !errors.As(err, &se) {
				t.Fatalf("Validate() = %v, want *StyleError", err)
			}
			if se.Field != tt.field {
				t.Errorf("Field = %q, want %q", se.Field, tt.field)
			}
			if !errors.Is(err, ggmeme.ErrValidation) {
				t.Error("StyleError should classify as ErrValidation")
			}
		})
	}
}

func TestPresetApplyTouchesOnlyStyle(t *testing.T) {
	c := Default()
	c.Text = "one does not simply"
	c.Effect = EffectArc

	p, ok := PresetByName("Neon")
	if !ok {
		t.Fatal("Neon preset missing")
	}
	got := p.Apply(c)
	if got.Text != c.Text || got.Effect != c.Effect {
		t.Errorf("preset changed text/effect: %+v", got)
	}
	if got.FontFamily != p.FontFamily || got.FontSize != p.FontSize ||
		got.Color != p.Color || got.OutlineColor != p.OutlineColor {
		t.Errorf("preset fields not applied: %+v", got)
	}
}

func TestPresetsValid(t *testing.T) {
	for _, p := range Presets {
		if err := p.Apply(Default()).Validate(); err != nil {
			t.Errorf("preset %q invalid: %v", p.Name, err)
		}
	}
	if _, ok := PresetByName("nope"); ok {
		t.Error("PresetByName(nope) should fail")
	}
}

func TestUppercase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"one does not simply", "ONE DOES NOT SIMPLY"},
		{"straße", "STRASSE"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Uppercase(tt.in); got != tt.want {
			t.Errorf("Uppercase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
