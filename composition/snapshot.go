package composition

import (
	"fmt"
	"sort"
)

// Snapshot is a serializable deep copy of a composition.
type Snapshot struct {
	Image      Image          `json:"image"`
	TextLayers []TextLayer    `json:"textLayers"`
	Stickers   []StickerLayer `json:"stickers"`
	Selection  Ref            `json:"selection"`
}

// Clone returns a copy that shares no slices with s.
func (s Snapshot) Clone() Snapshot {
	s.TextLayers = append([]TextLayer(nil), s.TextLayers...)
	s.Stickers = append([]StickerLayer(nil), s.Stickers...)
	return s
}

// PaintOrder returns every layer from bottom to top: ascending zIndex, ties
// broken by creation order.
func (s Snapshot) PaintOrder() []Ref {
	type entry struct {
		ref Ref
		z   int
		seq uint64
	}
	entries := make([]entry, 0, len(s.TextLayers)+len(s.Stickers))
	for _, t := range s.TextLayers {
		entries = append(entries, entry{TextRef(t.ID), t.ZIndex, t.Seq})
	}
	for _, st := range s.Stickers {
		entries = append(entries, entry{StickerRef(st.ID), st.ZIndex, st.Seq})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.z != b.z {
			return a.z < b.z
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		return a.ref.ID < b.ref.ID
	})
	refs := make([]Ref, len(entries))
	for i, e := range entries {
		refs[i] = e.ref
	}
	return refs
}

// Text returns the text layer id from the snapshot.
func (s Snapshot) Text(id ID) (TextLayer, bool) {
	for _, t := range s.TextLayers {
		if t.ID == id {
			return t, true
		}
	}
	return TextLayer{}, false
}

// Sticker returns the sticker id from the snapshot.
func (s Snapshot) Sticker(id ID) (StickerLayer, bool) {
	for _, st := range s.Stickers {
		if st.ID == id {
			return st, true
		}
	}
	return StickerLayer{}, false
}

// Validate checks s against the composition invariants and returns an
// *InvalidImportError describing the first violation.
func Validate(s Snapshot) error {
	if s.Image.Ref == "" {
		return &InvalidImportError{Reason: "missing image reference"}
	}
	if s.Image.Width < 0 || s.Image.Height < 0 {
		return &InvalidImportError{Reason: "negative image size"}
	}

	seen := make(map[ID]Kind, len(s.TextLayers)+len(s.Stickers))
	indices := make([]bool, len(s.TextLayers))
	for _, t := range s.TextLayers {
		if t.ID == "" {
			return &InvalidImportError{Reason: "text layer without id"}
		}
		if _, dup := seen[t.ID]; dup {
			return &InvalidImportError{Reason: fmt.Sprintf("duplicate layer id %q", t.ID)}
		}
		seen[t.ID] = KindText
		if t.CaptionIndex < 0 || t.CaptionIndex >= len(indices) || indices[t.CaptionIndex] {
			return &InvalidImportError{Reason: fmt.Sprintf("caption index %d out of sequence", t.CaptionIndex)}
		}
		indices[t.CaptionIndex] = true
		if !t.Rect.Valid() {
			return &InvalidImportError{Reason: fmt.Sprintf("text layer %q has invalid geometry", t.ID)}
		}
		if err := t.Caption.Validate(); err != nil {
			return &InvalidImportError{Reason: fmt.Sprintf("text layer %q: %v", t.ID, err)}
		}
	}
	for _, st := range s.Stickers {
		if st.ID == "" {
			return &InvalidImportError{Reason: "sticker without id"}
		}
		if _, dup := seen[st.ID]; dup {
			return &InvalidImportError{Reason: fmt.Sprintf("duplicate layer id %q", st.ID)}
		}
		seen[st.ID] = KindSticker
		if reason := validSticker(st.Kind, st.Emoji, st.ImageSource); reason != "" {
			return &InvalidImportError{Reason: fmt.Sprintf("sticker %q: %s", st.ID, reason)}
		}
		if !st.Bounds().Valid() {
			return &InvalidImportError{Reason: fmt.Sprintf("sticker %q has invalid geometry", st.ID)}
		}
	}
	if !s.Selection.IsZero() {
		if kind, ok := seen[s.Selection.ID]; !ok || kind != s.Selection.Kind {
			return &InvalidImportError{Reason: "selection references a missing layer"}
		}
	}
	return nil
}
