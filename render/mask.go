package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/gogpu/gg"

	"github.com/gogpu/ggmeme/composition"
)

// coverage rasterizes white paths over one region of the output and turns
// the result into an alpha mask. Paths are given in output coordinates.
type coverage struct {
	dc   *gg.Context
	rect image.Rectangle
}

func newCoverage(r image.Rectangle) *coverage {
	dc := gg.NewContext(r.Dx(), r.Dy())
	dc.SetRGB(1, 1, 1)
	dc.Translate(-float64(r.Min.X), -float64(r.Min.Y))
	return &coverage{dc: dc, rect: r}
}

func (c *coverage) close() { _ = c.dc.Close() }

// fill fills the current path into the mask.
func (c *coverage) fill() error {
	if err := c.dc.Fill(); err != nil {
		return &ResourceError{Op: "fill", Err: err}
	}
	return nil
}

func (c *coverage) alpha() *image.Alpha {
	img := c.dc.Image()
	a := image.NewAlpha(image.Rect(0, 0, c.rect.Dx(), c.rect.Dy()))
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*c.rect.Dx() {
		for i := range a.Pix {
			a.Pix[i] = rgba.Pix[i*4+3]
		}
		return a
	}
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			_, _, _, al := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			a.Pix[y*a.Stride+x] = uint8(al >> 8)
		}
	}
	return a
}

// paint composites src through the mask onto dst.
func (c *coverage) paint(dst draw.Image, src image.Image) {
	draw.DrawMask(dst, c.rect, src, c.rect.Min, c.alpha(), image.Point{}, draw.Over)
}

// region converts a layer box, grown by pad on every side, to whole pixels
// clipped to bounds.
func region(r composition.Rect, pad float64, bounds image.Rectangle) image.Rectangle {
	out := image.Rect(
		int(math.Floor(r.X-pad)), int(math.Floor(r.Y-pad)),
		int(math.Ceil(r.X+r.Width+pad)), int(math.Ceil(r.Y+r.Height+pad)),
	)
	return out.Intersect(bounds)
}

// gradientImage is an unbounded image sampling a linear gradient at pixel
// centres.
type gradientImage struct {
	brush *gg.LinearGradientBrush
}

func newGradient(stops []gg.ColorStop, x0, x1 float64) gradientImage {
	b := gg.NewLinearGradientBrush(x0, 0, x1, 0)
	for _, s := range stops {
		b.AddColorStop(s.Offset, s.Color)
	}
	return gradientImage{brush: b}
}

func (g gradientImage) ColorModel() color.Model { return color.NRGBAModel }

func (g gradientImage) Bounds() image.Rectangle {
	return image.Rectangle{Min: image.Point{X: -1e9, Y: -1e9}, Max: image.Point{X: 1e9, Y: 1e9}}
}

func (g gradientImage) At(x, y int) color.Color {
	return g.brush.ColorAt(float64(x)+0.5, float64(y)+0.5).Color()
}

func uniform(c gg.RGBA) *image.Uniform {
	return image.NewUniform(c.Color())
}
