package render

import (
	"fmt"
	"image"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/gg"

	"github.com/gogpu/ggmeme"
)

// DefaultAdjustedFileName names single-image exports of images that were
// not uploaded under a name.
const DefaultAdjustedFileName = "edited-image.png"

// Template is a fixed output size for single-image exports.
type Template struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Templates lists the supported output sizes.
var Templates = []Template{
	{Name: "story", Width: 1080, Height: 1920},
	{Name: "square", Width: 1080, Height: 1080},
	{Name: "landscape", Width: 1920, Height: 1080},
	{Name: "banner", Width: 1500, Height: 500},
}

// TemplateByName looks a template up by name.
func TemplateByName(name string) (Template, bool) {
	for _, t := range Templates {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

// Adjustments are the edits of the standalone image editor.
type Adjustments struct {
	// Brightness, Contrast and Saturation are percentages; 100 keeps the
	// image unchanged.
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`

	Rotation float64 `json:"rotation"` // degrees, clockwise positive
	Zoom     float64 `json:"zoom"`     // uniform scale, 1 keeps the fit size
	OffsetX  float64 `json:"offsetX"`  // pan in output pixels
	OffsetY  float64 `json:"offsetY"`
	FlipH    bool    `json:"flipH"`
	FlipV    bool    `json:"flipV"`
}

// DefaultAdjustments returns the identity adjustment.
func DefaultAdjustments() Adjustments {
	return Adjustments{Brightness: 100, Contrast: 100, Saturation: 100, Zoom: 1}
}

// Validate rejects non-finite values, negative filter percentages and a
// zoom that is not strictly positive.
func (a Adjustments) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"brightness", a.Brightness}, {"contrast", a.Contrast}, {"saturation", a.Saturation},
		{"rotation", a.Rotation}, {"zoom", a.Zoom}, {"offsetX", a.OffsetX}, {"offsetY", a.OffsetY},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &AdjustmentError{Field: f.name, Reason: "must be finite"}
		}
	}
	switch {
	case a.Brightness < 0:
		return &AdjustmentError{Field: "brightness", Reason: "must not be negative"}
	case a.Contrast < 0:
		return &AdjustmentError{Field: "contrast", Reason: "must not be negative"}
	case a.Saturation < 0:
		return &AdjustmentError{Field: "saturation", Reason: "must not be negative"}
	case a.Zoom <= 0:
		return &AdjustmentError{Field: "zoom", Reason: "must be positive"}
	}
	return nil
}

// FitScale is the factor that fits a srcW×srcH image inside dstW×dstH
// while keeping its aspect ratio.
func FitScale(srcW, srcH, dstW, dstH int) float64 {
	if srcW <= 0 || srcH <= 0 {
		return 0
	}
	return math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
}

// AdjustMatrix maps source pixel coordinates to output coordinates. Read
// from the output side it translates to the canvas centre plus the pan
// offset, flips, rotates, zooms, applies the fit scale and finally
// centres the source image on the origin.
func AdjustMatrix(t Template, src image.Rectangle, a Adjustments) gg.Matrix {
	fit := FitScale(src.Dx(), src.Dy(), t.Width, t.Height) * a.Zoom
	fx, fy := 1.0, 1.0
	if a.FlipH {
		fx = -1
	}
	if a.FlipV {
		fy = -1
	}
	cx := float64(src.Min.X) + float64(src.Dx())/2
	cy := float64(src.Min.Y) + float64(src.Dy())/2
	return gg.Translate(float64(t.Width)/2+a.OffsetX, float64(t.Height)/2+a.OffsetY).
		Multiply(gg.Scale(fx, fy)).
		Multiply(gg.Rotate(a.Rotation * math.Pi / 180)).
		Multiply(gg.Scale(fit, fit)).
		Multiply(gg.Translate(-cx, -cy))
}

// RenderAdjusted draws src onto a transparent canvas of the template size
// with the adjustments applied.
func RenderAdjusted(src image.Image, t Template, a Adjustments) (*image.RGBA, error) {
	if t.Width <= 0 || t.Height <= 0 {
		return nil, &AdjustmentError{Field: "template", Reason: fmt.Sprintf("invalid size %dx%d", t.Width, t.Height)}
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if src == nil || src.Bounds().Empty() {
		return nil, &ResourceError{Op: "decode", Err: fmt.Errorf("empty source image")}
	}
	dst := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	m := AdjustMatrix(t, src.Bounds(), a)
	draw.BiLinear.Transform(dst, f64.Aff3{m.A, m.B, m.C, m.D, m.E, m.F}, src, src.Bounds(), draw.Over, nil)
	applyFilter(dst, a.Brightness/100, a.Contrast/100, a.Saturation/100)
	return dst, nil
}

// ExportAdjusted renders src and writes it to w as PNG. It returns the
// download name, DefaultAdjustedFileName when imageName is empty.
func ExportAdjusted(src image.Image, t Template, a Adjustments, imageName string, w io.Writer) (string, error) {
	img, err := RenderAdjusted(src, t, a)
	if err != nil {
		return "", err
	}
	if err := writePNG(w, img); err != nil {
		return "", err
	}
	name := AdjustedFileName(imageName)
	ggmeme.Logger().Debug("render: exported adjusted image", "file", name, "template", t.Name)
	return name, nil
}

// AdjustedFileName derives the download name of a single-image export.
func AdjustedFileName(imageName string) string {
	if s := slug(imageName); s != "" {
		return s + "-edited.png"
	}
	return DefaultAdjustedFileName
}

// applyFilter applies brightness, contrast and saturation in that order
// to every painted pixel, using the CSS filter function definitions.
func applyFilter(img *image.RGBA, brightness, contrast, saturation float64) {
	if brightness == 1 && contrast == 1 && saturation == 1 {
		return
	}
	s := saturation
	sat := [3][3]float64{
		{0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s},
	}
	for i := 0; i+3 < len(img.Pix); i += 4 {
		a := img.Pix[i+3]
		if a == 0 {
			continue
		}
		af := float64(a) / 255
		var c [3]float64
		for k := 0; k < 3; k++ {
			v := float64(img.Pix[i+k]) / 255 / af // unpremultiply
			v = unit(v * brightness)
			c[k] = unit((v-0.5)*contrast + 0.5)
		}
		for k := 0; k < 3; k++ {
			v := sat[k][0]*c[0] + sat[k][1]*c[1] + sat[k][2]*c[2]
			img.Pix[i+k] = uint8(math.Round(unit(v) * af * 255))
		}
	}
}

func unit(v float64) float64 { return math.Min(math.Max(v, 0), 1) }
