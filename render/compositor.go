package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strings"
	"unicode"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/gg"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/caption"
	"github.com/gogpu/ggmeme/composition"
)

// Text layout constants in image pixels.
const (
	textPadding = 4
	emojiScale  = 0.8
)

var (
	emojiInk       = gg.Black
	placeholderInk = gg.Hex("#9ca3af")
)

// Compositor rasterizes scenes. It is safe for concurrent use.
type Compositor struct {
	fonts  *FontBook
	loader ImageLoader
}

// NewCompositor returns a compositor drawing text with fonts and resolving
// image references through loader.
func NewCompositor(fonts *FontBook, loader ImageLoader) *Compositor {
	if fonts == nil {
		fonts = NewFontBook()
	}
	return &Compositor{fonts: fonts, loader: loader}
}

// Export renders snap and writes it to w as PNG. The PNG is fully encoded
// before the first byte is written, so a failed export writes nothing.
// It returns the download file name derived from the image name.
func (c *Compositor) Export(ctx context.Context, snap composition.Snapshot, w io.Writer) (string, error) {
	scene, err := BuildScene(snap)
	if err != nil {
		return "", err
	}
	img, err := c.Rasterize(ctx, scene)
	if err != nil {
		return "", err
	}
	if err := writePNG(w, img); err != nil {
		return "", err
	}
	name := FileName(snap.Image.Name)
	ggmeme.Logger().Debug("render: exported composition",
		"file", name, "layers", len(scene.Nodes), "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return name, nil
}

// Rasterize draws scene onto a new image: the base image first, then each
// node in order.
func (c *Compositor) Rasterize(ctx context.Context, scene Scene) (*image.RGBA, error) {
	if scene.Base == "" {
		return nil, &ResourceError{Op: "load", Err: errors.New("no base image")}
	}
	if c.loader == nil {
		return nil, &ResourceError{Op: "load", Ref: scene.Base, Err: errors.New("no image loader")}
	}
	base, err := c.loader.Load(ctx, scene.Base)
	if err != nil {
		return nil, asResource("load", scene.Base, err)
	}
	w, h := scene.Width, scene.Height
	if w <= 0 || h <= 0 {
		w, h = base.Bounds().Dx(), base.Bounds().Dy()
	}
	if w <= 0 || h <= 0 {
		return nil, &ResourceError{Op: "decode", Ref: scene.Base, Err: errors.New("empty image")}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if base.Bounds().Dx() == w && base.Bounds().Dy() == h {
		draw.Draw(dst, dst.Bounds(), base, base.Bounds().Min, draw.Src)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), base, base.Bounds(), xdraw.Src, nil)
	}

	for _, n := range scene.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch n.Kind {
		case NodeText:
			err = c.drawText(dst, n)
		case NodeEmoji:
			err = c.drawEmoji(dst, n)
		case NodeImage:
			err = c.drawImage(ctx, dst, n)
		}
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func (c *Compositor) drawText(dst *image.RGBA, n Node) error {
	desc := n.Text
	if strings.TrimSpace(desc.Text) == "" {
		return nil
	}
	fc := newFace(c.fonts.Face(desc.FontFamily), desc.FontSize)
	// Captions may overflow their box; arc glyphs also lean out of it.
	r := region(n.Bounds, desc.FontSize+desc.OutlineWidth, dst.Bounds())
	if r.Empty() {
		return nil
	}
	layout := func(dc *gg.Context) {
		if desc.Glyphs != nil {
			layoutArc(dc, fc, desc.Glyphs, n.Bounds)
		} else {
			layoutLines(dc, fc, desc.Text, n.Bounds)
		}
	}

	if desc.Outline.A > 0 && len(desc.OutlineOffsets) > 0 {
		cov := newCoverage(r)
		defer cov.close()
		for _, off := range desc.OutlineOffsets {
			cov.dc.Push()
			cov.dc.Translate(off.X, off.Y)
			layout(cov.dc)
			cov.dc.Pop()
			if err := cov.fill(); err != nil {
				return err
			}
		}
		cov.paint(dst, uniform(desc.Outline))
	}

	var src image.Image
	switch {
	case desc.Gradient != nil:
		src = newGradient(desc.Gradient, n.Bounds.X, n.Bounds.X+n.Bounds.Width)
	case desc.Fill.A > 0:
		src = uniform(desc.Fill)
	default:
		return nil
	}
	cov := newCoverage(r)
	defer cov.close()
	layout(cov.dc)
	if err := cov.fill(); err != nil {
		return err
	}
	cov.paint(dst, src)
	return nil
}

// layoutLines wraps text to the box width and centres the block in the box.
func layoutLines(dc *gg.Context, fc *face, text string, box composition.Rect) {
	lines := fc.wrap(text, math.Max(box.Width-2*textPadding, 1))
	asc, desc, lh := fc.metrics()
	lh = math.Max(lh, asc+desc)
	top := box.Y + (box.Height-lh*float64(len(lines)))/2
	lead := (lh - (asc + desc)) / 2
	for i, line := range lines {
		if line == "" {
			continue
		}
		x := box.X + (box.Width-fc.advance(line))/2
		y := top + float64(i)*lh + lead + asc
		fc.appendRun(dc, line, x, y)
	}
}

// layoutArc places each glyph on one centred line, rotated about its own
// centre and lifted by its offset.
func layoutArc(dc *gg.Context, fc *face, glyphs []caption.GlyphPlacement, box composition.Rect) {
	widths := make([]float64, len(glyphs))
	total := 0.0
	for i, g := range glyphs {
		widths[i] = fc.advance(g.Text)
		total += widths[i]
	}
	asc, desc, _ := fc.metrics()
	baseline := box.Y + (box.Height-(asc+desc))/2 + asc
	x := box.X + (box.Width-total)/2
	for i, g := range glyphs {
		half := widths[i] / 2
		dc.Push()
		dc.Translate(x+half, baseline+g.OffsetY)
		dc.Rotate(g.Rotation * math.Pi / 180)
		fc.appendRun(dc, g.Text, -half, 0)
		dc.Pop()
		x += widths[i]
	}
}

func (c *Compositor) drawEmoji(dst *image.RGBA, n Node) error {
	r := region(n.Bounds, 1, dst.Bounds())
	if r.Empty() {
		return nil
	}
	size := n.Bounds.Width
	cov := newCoverage(r)
	defer cov.close()

	var fc *face
	for _, f := range []*face{c.emojiFace(size * emojiScale), newFace(c.fonts.Face(caption.FontArial), size*emojiScale)} {
		if f != nil && f.has(n.Emoji) {
			fc = f
			break
		}
	}
	ink := emojiInk
	if fc != nil {
		asc, desc, _ := fc.metrics()
		x := n.Bounds.X + (size-fc.advance(n.Emoji))/2
		y := n.Bounds.Y + (size-(asc+desc))/2 + asc
		fc.appendRun(cov.dc, n.Emoji, x, y)
	} else {
		// No outline font carries this glyph.
		ink = placeholderInk
		cov.dc.DrawCircle(n.Bounds.X+size/2, n.Bounds.Y+size/2, size*0.4)
	}
	if err := cov.fill(); err != nil {
		return err
	}
	cov.paint(dst, uniform(ink))
	return nil
}

func (c *Compositor) emojiFace(size float64) *face {
	f := c.fonts.Emoji()
	if f == nil {
		return nil
	}
	return newFace(f, size)
}

// drawImage fits the sticker image inside its square, keeping its aspect
// ratio.
func (c *Compositor) drawImage(ctx context.Context, dst *image.RGBA, n Node) error {
	src, err := c.loader.Load(ctx, n.Source)
	if err != nil {
		return asResource("load", n.Source, err)
	}
	sw, sh := float64(src.Bounds().Dx()), float64(src.Bounds().Dy())
	if sw == 0 || sh == 0 {
		return nil
	}
	s := n.Bounds.Width
	k := math.Min(s/sw, s/sh)
	dw, dh := sw*k, sh*k
	x := n.Bounds.X + (s-dw)/2
	y := n.Bounds.Y + (s-dh)/2
	r := image.Rect(int(math.Round(x)), int(math.Round(y)), int(math.Round(x+dw)), int(math.Round(y+dh)))
	xdraw.CatmullRom.Scale(dst, r, src, src.Bounds(), xdraw.Over, nil)
	return nil
}

func asResource(op, ref string, err error) error {
	var re *ResourceError
	if errors.As(err, &re) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ResourceError{Op: op, Ref: ref, Err: err}
}

func writePNG(w io.Writer, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return &ResourceError{Op: "encode", Err: err}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// FileName derives the download name of a composition export from the
// image name: "Distracted Boyfriend.jpg" becomes
// "distracted-boyfriend-meme.png".
func FileName(imageName string) string {
	if s := slug(imageName); s != "" {
		return s + "-meme.png"
	}
	return "meme.png"
}

func slug(name string) string {
	name = strings.TrimSuffix(name, extOf(name))
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func extOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || len(name)-i > 5 {
		return ""
	}
	return name[i:]
}
