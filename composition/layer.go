package composition

import (
	"math"

	"github.com/gogpu/ggmeme/caption"
)

// ID is a stable opaque layer identifier. IDs are assigned at creation and
// never reused within a composition.
type ID string

// Kind tells text layers and sticker layers apart in a Ref.
type Kind string

// Layer kinds.
const (
	KindText    Kind = "text"
	KindSticker Kind = "sticker"
)

// Ref references one layer, or nothing when zero.
type Ref struct {
	Kind Kind `json:"kind,omitempty"`
	ID   ID   `json:"id,omitempty"`
}

// TextRef returns a reference to the text layer id.
func TextRef(id ID) Ref { return Ref{Kind: KindText, ID: id} }

// StickerRef returns a reference to the sticker layer id.
func StickerRef(id ID) Ref { return Ref{Kind: KindSticker, ID: id} }

// IsZero reports whether r references nothing.
func (r Ref) IsZero() bool { return r.ID == "" }

// Rect is an axis-aligned box in image pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point lies inside r (edges included).
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Valid reports whether every field is finite and the size strictly positive.
func (r Rect) Valid() bool {
	return finite(r.X) && finite(r.Y) && finite(r.Width) && finite(r.Height) &&
		r.Width > 0 && r.Height > 0
}

// Image references the base picture of a composition.
type Image struct {
	Ref    string `json:"ref"`
	Name   string `json:"name,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// TextLayer is a positioned caption.
type TextLayer struct {
	ID           ID  `json:"id"`
	CaptionIndex int `json:"captionIndex"`
	Rect
	ZIndex  int             `json:"zIndex"`
	Locked  bool            `json:"locked"`
	Caption caption.Caption `json:"caption"`

	// Seq records creation order and breaks zIndex ties.
	Seq uint64 `json:"seq"`
}

// StickerKind selects which sticker source field is populated.
type StickerKind string

// Sticker kinds.
const (
	StickerEmoji StickerKind = "emoji"
	StickerImage StickerKind = "image"
)

// StickerLayer is a square, aspect-locked emoji or image overlay.
type StickerLayer struct {
	ID          ID          `json:"id"`
	Kind        StickerKind `json:"kind"`
	Emoji       string      `json:"emoji,omitempty"`
	ImageSource string      `json:"imageSource,omitempty"`
	X           float64     `json:"x"`
	Y           float64     `json:"y"`
	Size        float64     `json:"size"`
	ZIndex      int         `json:"zIndex"`
	Locked      bool        `json:"locked"`
	Seq         uint64      `json:"seq"`
}

// Bounds returns the sticker's square bounding box.
func (s StickerLayer) Bounds() Rect {
	return Rect{X: s.X, Y: s.Y, Width: s.Size, Height: s.Size}
}

// StickerParams describes a sticker to add. A zero Size selects
// DefaultStickerSize centred on the base image.
type StickerParams struct {
	Kind        StickerKind `json:"kind"`
	Emoji       string      `json:"emoji,omitempty"`
	ImageSource string      `json:"imageSource,omitempty"`
	X           float64     `json:"x,omitempty"`
	Y           float64     `json:"y,omitempty"`
	Size        float64     `json:"size,omitempty"`
}

// DefaultStickerSize is the edge length of a sticker added without a size.
const DefaultStickerSize = 96

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validSticker(kind StickerKind, emoji, src string) string {
	switch kind {
	case StickerEmoji:
		if emoji == "" {
			return "emoji sticker without glyph"
		}
		if src != "" {
			return "emoji sticker with image source"
		}
	case StickerImage:
		if src == "" {
			return "image sticker without source"
		}
		if emoji != "" {
			return "image sticker with emoji"
		}
	default:
		return "unknown sticker kind " + string(kind)
	}
	return ""
}
