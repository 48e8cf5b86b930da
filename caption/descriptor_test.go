package caption

import (
	"math"
	"reflect"
	"testing"

	"github.com/gogpu/gg"
)

func TestArcLayoutABCDE(t *testing.T) {
	glyphs := ArcLayout("ABCDE")
	wantRot := []float64{-12, -6, 0, 6, 12}
	wantY := []float64{-4, -2, 0, -2, -4}
	if len(glyphs) != 5 {
		t.Fatalf("len = %d, want 5", len(glyphs))
	}
	for i, g := range glyphs {
		if g.Text != string("ABCDE"[i]) {
			t.Errorf("glyph %d text = %q", i, g.Text)
		}
		if g.Rotation != wantRot[i] {
			t.Errorf("glyph %d rotation = %v, want %v", i, g.Rotation, wantRot[i])
		}
		if g.OffsetY != wantY[i] {
			t.Errorf("glyph %d offsetY = %v, want %v", i, g.OffsetY, wantY[i])
		}
	}
}

func TestArcLayoutEvenCount(t *testing.T) {
	glyphs := ArcLayout("ABCD")
	want := []float64{-9, -3, 3, 9}
	for i, g := range glyphs {
		if g.Rotation != want[i] {
			t.Errorf("glyph %d rotation = %v, want %v", i, g.Rotation, want[i])
		}
	}
	if glyphs[0].OffsetY != -3 || glyphs[1].OffsetY != -1 {
		t.Errorf("offsets = %v, %v", glyphs[0].OffsetY, glyphs[1].OffsetY)
	}
}

func TestArcLayoutPreservesWhitespace(t *testing.T) {
	glyphs := ArcLayout("A B")
	if len(glyphs) != 3 {
		t.Fatalf("len = %d, want 3", len(glyphs))
	}
	if glyphs[1].Text != "\u00a0" {
		t.Errorf("space became %q, want NBSP", glyphs[1].Text)
	}
}

func TestArcLayoutGraphemeClusters(t *testing.T) {
	// Family emoji joined with ZWJ is one user-perceived character.
	glyphs := ArcLayout("a\U0001F468\u200d\U0001F469\u200d\U0001F467b")
	if len(glyphs) != 3 {
		t.Fatalf("len = %d, want 3 clusters", len(glyphs))
	}
	if glyphs[1].Rotation != 0 {
		t.Errorf("middle cluster rotation = %v", glyphs[1].Rotation)
	}
}

func TestArcLayoutEmpty(t *testing.T) {
	if got := ArcLayout(""); len(got) != 0 {
		t.Errorf("ArcLayout(\"\") = %v", got)
	}
}

func TestOutlineOffsets(t *testing.T) {
	got := OutlineOffsets(4)
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
	for i, p := range got[:4] {
		if math.Hypot(p.X, p.Y) != 4 {
			t.Errorf("cardinal %d = %+v, want length 4", i, p)
		}
	}
	for i, p := range got[4:] {
		if math.Abs(p.X) != 2 || math.Abs(p.Y) != 2 {
			t.Errorf("diagonal %d = %+v, want half width", i, p)
		}
	}
}

func TestRenderDescriptorOutlineWidth(t *testing.T) {
	tests := []struct {
		effect Effect
		want   float64
	}{
		{EffectNone, DefaultOutlineWidth},
		{EffectShake, DefaultOutlineWidth},
		{EffectArc, DefaultOutlineWidth},
		{EffectGradient, DefaultOutlineWidth},
		{EffectOutline, HeavyOutlineWidth},
	}
	for _, tt := range tests {
		c := Default()
		c.Text = "hi"
		c.Effect = tt.effect
		desc, err := RenderDescriptor(c)
		if err != nil {
			t.Fatalf("%s: %v", tt.effect, err)
		}
		if desc.OutlineWidth != tt.want {
			t.Errorf("%s: OutlineWidth = %v, want %v", tt.effect, desc.OutlineWidth, tt.want)
		}
		if len(desc.OutlineOffsets) != 8 {
			t.Errorf("%s: %d offsets, want 8", tt.effect, len(desc.OutlineOffsets))
		}
	}
}

func TestRenderDescriptorGradient(t *testing.T) {
	c := Default()
	c.Effect = EffectGradient
	desc, err := RenderDescriptor(c)
	if err != nil {
		t.Fatal(err)
	}
	if desc.Fill != gg.Transparent {
		t.Errorf("gradient fill = %+v, want transparent", desc.Fill)
	}
	if !reflect.DeepEqual(desc.Gradient, GradientStops) {
		t.Errorf("gradient stops = %+v", desc.Gradient)
	}
	// The descriptor must not alias the package-level stops.
	desc.Gradient[0].Offset = 0.5
	if GradientStops[0].Offset != 0 {
		t.Error("RenderDescriptor leaked GradientStops")
	}
}

func TestRenderDescriptorEffects(t *testing.T) {
	c := Default()
	c.Text = "ABCDE"

	c.Effect = EffectArc
	desc, err := RenderDescriptor(c)
	if err != nil {
		t.Fatal(err)
	}
	if len(desc.Glyphs) != 5 {
		t.Errorf("arc glyphs = %d, want 5", len(desc.Glyphs))
	}

	c.Effect = EffectShake
	desc, _ = RenderDescriptor(c)
	if !desc.Animated || desc.Glyphs != nil || desc.Gradient != nil {
		t.Errorf("shake desc = %+v", desc)
	}

	c.Effect = EffectNone
	desc, _ = RenderDescriptor(c)
	if desc.Animated || desc.Glyphs != nil {
		t.Errorf("none desc = %+v", desc)
	}
}

func TestRenderDescriptorPure(t *testing.T) {
	c := Default()
	c.Text = "same"
	c.Effect = EffectArc
	a, err := RenderDescriptor(c)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := RenderDescriptor(c)
	if !reflect.DeepEqual(a, b) {
		t.Error("RenderDescriptor is not deterministic")
	}
}

func TestRenderDescriptorClampsAndRejects(t *testing.T) {
	c := Default()
	c.FontSize = 200
	desc, err := RenderDescriptor(c)
	if err != nil {
		t.Fatal(err)
	}
	if desc.FontSize != MaxFontSize {
		t.Errorf("FontSize = %v, want %v", desc.FontSize, MaxFontSize)
	}

	c.Color = "???"
	if _, err := RenderDescriptor(c); err == nil {
		t.Error("bad colour should fail")
	}
}
