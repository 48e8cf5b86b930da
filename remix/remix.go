// Package remix encodes compositions into URL-safe share tokens and
// rebuilds compositions from them.
//
// A token is the unpadded base64url encoding of a compact JSON payload
// with version 1. Decoding validates the payload structurally and then
// against the composition invariants; failures are reported as
// *composition.InvalidImportError and never touch an existing composition.
package remix

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/caption"
	"github.com/gogpu/ggmeme/composition"
)

// Version is the payload version written and accepted.
const Version = 1

// Param is the query parameter carrying a token in share links.
const Param = "remix"

// MaxTokenLen bounds the accepted token length.
const MaxTokenLen = 256 << 10

type payload struct {
	Version      int                         `json:"version"`
	ImageURL     string                      `json:"imageUrl"`
	ImageName    string                      `json:"imageName"`
	Width        int                         `json:"width,omitempty"`
	Height       int                         `json:"height,omitempty"`
	CaptionCount int                         `json:"captionCount"`
	Captions     *[]string                   `json:"captions"`
	Styles       *[]caption.Caption          `json:"styles"`
	TextLayers   *[]textLayer                `json:"textLayers"`
	Stickers     *[]composition.StickerLayer `json:"stickers"`
}

// textLayer is a text layer without its caption; text and style travel in
// the parallel captions and styles arrays, indexed by caption index.
type textLayer struct {
	ID           composition.ID `json:"id"`
	CaptionIndex int            `json:"captionIndex"`
	X            float64        `json:"x"`
	Y            float64        `json:"y"`
	Width        float64        `json:"width"`
	Height       float64        `json:"height"`
	ZIndex       int            `json:"zIndex"`
	Locked       bool           `json:"locked,omitempty"`
	Seq          uint64         `json:"seq,omitempty"`
}

// Encode serializes the layers of snap into a token. The selection is not
// part of a share.
func Encode(snap composition.Snapshot) (string, error) {
	n := len(snap.TextLayers)
	captions := make([]string, n)
	styles := make([]caption.Caption, n)
	layers := make([]textLayer, 0, n)
	for _, t := range snap.TextLayers {
		if t.CaptionIndex < 0 || t.CaptionIndex >= n {
			return "", &composition.InvalidImportError{Reason: fmt.Sprintf("caption index %d out of range", t.CaptionIndex)}
		}
		style := t.Caption
		captions[t.CaptionIndex] = style.Text
		style.Text = ""
		styles[t.CaptionIndex] = style
		layers = append(layers, textLayer{
			ID: t.ID, CaptionIndex: t.CaptionIndex,
			X: t.X, Y: t.Y, Width: t.Width, Height: t.Height,
			ZIndex: t.ZIndex, Locked: t.Locked, Seq: t.Seq,
		})
	}
	stickers := append([]composition.StickerLayer{}, snap.Stickers...)
	p := payload{
		Version:      Version,
		ImageURL:     snap.Image.Ref,
		ImageName:    snap.Image.Name,
		Width:        snap.Image.Width,
		Height:       snap.Image.Height,
		CaptionCount: n,
		Captions:     &captions,
		Styles:       &styles,
		TextLayers:   &layers,
		Stickers:     &stickers,
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("remix: encode: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode rebuilds a snapshot from token and validates it.
func Decode(token string) (composition.Snapshot, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return composition.Snapshot{}, invalid("empty token")
	}
	if len(token) > MaxTokenLen {
		return composition.Snapshot{}, invalid("token too long")
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return composition.Snapshot{}, invalid("not base64url: " + err.Error())
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return composition.Snapshot{}, invalid("malformed payload: " + err.Error())
	}
	if p.Version != Version {
		return composition.Snapshot{}, invalid(fmt.Sprintf("unsupported version %d", p.Version))
	}
	switch {
	case p.Captions == nil:
		return composition.Snapshot{}, invalid("missing captions")
	case p.Styles == nil:
		return composition.Snapshot{}, invalid("missing styles")
	case p.TextLayers == nil:
		return composition.Snapshot{}, invalid("missing textLayers")
	case p.Stickers == nil:
		return composition.Snapshot{}, invalid("missing stickers")
	}
	captions, styles, layers := *p.Captions, *p.Styles, *p.TextLayers
	if len(captions) != p.CaptionCount || len(styles) != p.CaptionCount || len(layers) != p.CaptionCount {
		return composition.Snapshot{}, invalid(fmt.Sprintf(
			"caption count %d does not match %d captions, %d styles, %d layers",
			p.CaptionCount, len(captions), len(styles), len(layers)))
	}

	snap := composition.Snapshot{
		Image:      composition.Image{Ref: p.ImageURL, Name: p.ImageName, Width: p.Width, Height: p.Height},
		TextLayers: make([]composition.TextLayer, 0, len(layers)),
		Stickers:   append([]composition.StickerLayer{}, *p.Stickers...),
	}
	for _, l := range layers {
		if l.CaptionIndex < 0 || l.CaptionIndex >= len(captions) {
			return composition.Snapshot{}, invalid(fmt.Sprintf("caption index %d out of range", l.CaptionIndex))
		}
		c := styles[l.CaptionIndex]
		c.Text = captions[l.CaptionIndex]
		snap.TextLayers = append(snap.TextLayers, composition.TextLayer{
			ID:           l.ID,
			CaptionIndex: l.CaptionIndex,
			Rect:         composition.Rect{X: l.X, Y: l.Y, Width: l.Width, Height: l.Height},
			ZIndex:       l.ZIndex,
			Locked:       l.Locked,
			Caption:      c,
			Seq:          l.Seq,
		})
	}
	if err := composition.Validate(snap); err != nil {
		return composition.Snapshot{}, err
	}
	return snap, nil
}

// Apply decodes token and atomically replaces the layers of comp. On any
// error comp is unchanged.
func Apply(comp *composition.Composition, token string) error {
	snap, err := Decode(token)
	if err != nil {
		ggmeme.Logger().Debug("remix: rejected token", "err", err)
		return err
	}
	return comp.ReplaceAll(snap)
}

// Link returns base with the token set as the remix query parameter.
func Link(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("remix: base URL: %w", err)
	}
	q := u.Query()
	q.Set(Param, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FromURL extracts the remix token from a share link.
func FromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	tok := u.Query().Get(Param)
	return tok, tok != ""
}

func invalid(reason string) error {
	return &composition.InvalidImportError{Reason: reason}
}
