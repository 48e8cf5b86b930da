// Command memedemo renders a meme offline from a remix token or a
// composition JSON file. Without either it renders a built-in demo.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"image"
	"image/draw"
	"log"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gogpu/gg"

	"github.com/gogpu/ggmeme/caption"
	"github.com/gogpu/ggmeme/composition"
	"github.com/gogpu/ggmeme/remix"
	"github.com/gogpu/ggmeme/render"
)

// demoRef names the generated background of the built-in demo.
const demoRef = "demo:background"

func main() {
	var (
		token   = flag.String("token", "", "remix token or share link")
		compIn  = flag.String("composition", "", "composition JSON file")
		images  = flag.String("images", ".", "directory for relative image references")
		fonts   = flag.String("fonts", "", "directory of extra TTF fonts named after font families")
		remote  = flag.Bool("remote", true, "fetch http(s) image references")
		output  = flag.String("output", "", "output file (default: suggested meme file name)")
		width   = flag.Int("width", 800, "demo image width")
		height  = flag.Int("height", 600, "demo image height")
		timeout = flag.Duration("timeout", 30*time.Second, "render timeout")
	)
	flag.Parse()

	snap, err := loadSnapshot(*token, *compIn, *width, *height)
	if err != nil {
		log.Fatalf("Failed to load composition: %v", err)
	}

	book := render.NewFontBook()
	if *fonts != "" {
		n, err := book.LoadDir(*fonts)
		if err != nil {
			log.Fatalf("Failed to load fonts: %v", err)
		}
		log.Printf("Loaded %d fonts from %s\n", n, *fonts)
	}

	loader := render.SchemeLoader{Local: render.FileLoader{Root: *images}}
	if *remote {
		loader.Remote = render.HTTPLoader{Client: &http.Client{Timeout: *timeout}}
	}
	var src render.ImageLoader = loader
	if snap.Image.Ref == demoRef {
		src = render.MapLoader{demoRef: demoBackground(*width, *height)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var buf bytes.Buffer
	name, err := render.NewCompositor(book, src).Export(ctx, snap, &buf)
	if err != nil {
		log.Fatalf("Failed to render: %v", err)
	}
	if *output == "" {
		*output = name
	}
	if err := os.WriteFile(*output, buf.Bytes(), 0o644); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	log.Printf("Meme saved to %s (%dx%d, %d layers)\n", *output, snap.Image.Width, snap.Image.Height,
		len(snap.TextLayers)+len(snap.Stickers))
}

func loadSnapshot(token, path string, w, h int) (composition.Snapshot, error) {
	switch {
	case token != "":
		if t, ok := remix.FromURL(token); ok {
			token = t
		}
		return remix.Decode(strings.TrimSpace(token))
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return composition.Snapshot{}, err
		}
		var snap composition.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return composition.Snapshot{}, err
		}
		return snap, composition.Validate(snap)
	}
	return demoSnapshot(w, h)
}

// demoSnapshot builds a two-caption meme with a sticker over the generated
// background.
func demoSnapshot(w, h int) (composition.Snapshot, error) {
	c := composition.New(composition.Image{Ref: demoRef, Name: "ggmeme demo", Width: w, Height: h})
	lines := []struct {
		text   string
		effect caption.Effect
	}{
		{"when the render", caption.EffectArc},
		{"is pure go", caption.EffectGradient},
	}
	for _, l := range lines {
		id := c.AddTextLayer()
		cp := caption.Default()
		cp.Text = l.text
		cp.Effect = l.effect
		cp.FontSize = caption.MaxFontSize
		if err := c.UpdateCaption(id, cp); err != nil {
			return composition.Snapshot{}, err
		}
	}
	size := float64(min(w, h)) / 5
	if _, err := c.AddSticker(composition.StickerParams{
		Kind: composition.StickerEmoji, Emoji: "🔥",
		X: float64(w) - size*1.5, Y: float64(h)/2 - size/2, Size: size,
	}); err != nil {
		return composition.Snapshot{}, err
	}
	return c.Snapshot(), nil
}

// demoBackground draws a vertical gradient with a ring of rotated squares.
func demoBackground(w, h int) image.Image {
	dc := gg.NewContext(w, h)
	defer dc.Close()

	steps := 100
	for i := range steps {
		t := float64(i) / float64(steps)
		dc.SetColor(gg.RGB(0.1+t*0.4, 0.2+t*0.3, 0.4+t*0.2))
		dc.DrawRectangle(0, float64(h)*t, float64(w), float64(h)/float64(steps)+1)
		_ = dc.Fill()
	}

	cx, cy := float64(w)/2, float64(h)/2
	r := float64(min(w, h)) / 4
	for i := range 8 {
		angle := float64(i) * math.Pi / 4
		dc.Push()
		dc.Translate(cx+r*math.Cos(angle), cy+r*math.Sin(angle))
		dc.Rotate(angle)
		dc.SetColor(gg.HSL(float64(i)*45, 0.8, 0.6))
		dc.DrawRectangle(-r/6, -r/6, r/3, r/3)
		_ = dc.Fill()
		dc.Pop()
	}

	img := dc.Image()
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
