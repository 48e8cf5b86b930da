// Package composition holds the authoritative layer model of one meme:
// a base image, text caption layers and sticker layers.
//
// Every mutation keeps these invariants:
//   - layer ids are unique across text and sticker layers
//   - caption indices are exactly 0..n-1
//   - geometry is finite with strictly positive sizes
//   - the selection never references a removed layer
//   - locked layers ignore geometry updates
//
// Geometry updates on locked or absent layers are silent no-ops: they
// return false, change nothing and raise no error.
package composition

import (
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/caption"
)

// Option configures a Composition.
type Option func(*Composition)

// WithIDGenerator replaces the default UUID generator. The generator must
// never return the same value twice.
func WithIDGenerator(fn func() ID) Option {
	return func(c *Composition) { c.newID = fn }
}

// Composition is the editable state of one meme. It is safe for concurrent
// use; observers are notified after the lock is released.
type Composition struct {
	mu        sync.Mutex
	image     Image
	texts     []TextLayer // ordered by CaptionIndex
	stickers  []StickerLayer
	selection Ref
	seq       uint64
	newID     func() ID

	observers map[uint64]func(Event)
	nextObs   uint64
}

// New creates an empty composition over img.
func New(img Image, opts ...Option) *Composition {
	c := &Composition{
		image:     img,
		newID:     func() ID { return ID(uuid.NewString()) },
		observers: make(map[uint64]func(Event)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Image returns the base image reference.
func (c *Composition) Image() Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.image
}

// AddTextLayer appends a caption slot and returns its id.
func (c *Composition) AddTextLayer() ID {
	// InsertTextLayer clamps the position to the end of the list.
	return c.InsertTextLayer(math.MaxInt32)
}

// InsertTextLayer inserts a caption slot after the caption at afterIndex
// (-1 inserts first) and reindexes the captions that follow it. The new
// layer is placed on top of the z-stack.
func (c *Composition) InsertTextLayer(afterIndex int) ID {
	c.mu.Lock()
	pos := afterIndex + 1
	if pos < 0 {
		pos = 0
	}
	if pos > len(c.texts) {
		pos = len(c.texts)
	}
	l := TextLayer{
		ID:      c.freshID(),
		Rect:    defaultTextRect(c.image, pos),
		ZIndex:  c.maxZ() + 1,
		Caption: caption.Default(),
		Seq:     c.nextSeq(),
	}
	c.texts = append(c.texts, TextLayer{})
	copy(c.texts[pos+1:], c.texts[pos:])
	c.texts[pos] = l
	c.reindex()
	ev := c.textEvent(EventLayerAdded, l.ID)
	c.mu.Unlock()

	c.emit(ev)
	return l.ID
}

// RemoveTextLayer deletes a caption and reindexes the remaining ones.
// A selection pointing at the removed layer is cleared.
func (c *Composition) RemoveTextLayer(id ID) bool {
	c.mu.Lock()
	i := c.textIndex(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	c.texts = append(c.texts[:i], c.texts[i+1:]...)
	c.reindex()
	events := []Event{{Kind: EventLayerRemoved, Ref: TextRef(id)}}
	if c.selection.ID == id {
		c.selection = Ref{}
		events = append(events, Event{Kind: EventSelectionChanged})
	}
	c.mu.Unlock()

	c.emit(events...)
	return true
}

// UpdateTextGeometry moves and resizes a text layer. It is a no-op that
// returns false when the layer is absent, locked or r is not a valid box.
func (c *Composition) UpdateTextGeometry(id ID, r Rect) bool {
	c.mu.Lock()
	i := c.textIndex(id)
	if reason := rejectGeometry(i >= 0 && c.texts[i].Locked, i >= 0, r.Valid()); reason != "" {
		c.mu.Unlock()
		ggmeme.Logger().Debug("composition: text geometry rejected", "id", id, "reason", reason)
		return false
	}
	c.texts[i].Rect = r
	ev := c.textEvent(EventLayerChanged, id)
	c.mu.Unlock()

	c.emit(ev)
	return true
}

// UpdateCaption replaces the caption of a text layer. Locked layers accept
// caption changes; only their geometry is frozen.
func (c *Composition) UpdateCaption(id ID, cp caption.Caption) error {
	cp = cp.Normalize()
	if err := cp.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	i := c.textIndex(id)
	if i < 0 {
		c.mu.Unlock()
		return ErrLayerNotFound
	}
	c.texts[i].Caption = cp
	ev := c.textEvent(EventLayerChanged, id)
	c.mu.Unlock()

	c.emit(ev)
	return nil
}

// ApplyPreset overwrites the font family, size and colours of a caption.
func (c *Composition) ApplyPreset(id ID, p caption.Preset) error {
	c.mu.Lock()
	i := c.textIndex(id)
	if i < 0 {
		c.mu.Unlock()
		return ErrLayerNotFound
	}
	cp := p.Apply(c.texts[i].Caption).Normalize()
	if err := cp.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.texts[i].Caption = cp
	ev := c.textEvent(EventLayerChanged, id)
	c.mu.Unlock()

	c.emit(ev)
	return nil
}

// AddSticker adds a sticker on top of the z-stack and returns its id.
func (c *Composition) AddSticker(p StickerParams) (ID, error) {
	if reason := validSticker(p.Kind, p.Emoji, p.ImageSource); reason != "" {
		return "", &InvalidLayerError{Reason: reason}
	}
	c.mu.Lock()
	if p.Size == 0 {
		p.Size = DefaultStickerSize
		p.X = float64(c.image.Width)/2 - p.Size/2
		p.Y = float64(c.image.Height)/2 - p.Size/2
		if p.X < 0 {
			p.X = 0
		}
		if p.Y < 0 {
			p.Y = 0
		}
	}
	if !(Rect{X: p.X, Y: p.Y, Width: p.Size, Height: p.Size}).Valid() {
		c.mu.Unlock()
		return "", &InvalidLayerError{Reason: "sticker geometry must be finite with positive size"}
	}
	s := StickerLayer{
		ID:          c.freshID(),
		Kind:        p.Kind,
		Emoji:       p.Emoji,
		ImageSource: p.ImageSource,
		X:           p.X,
		Y:           p.Y,
		Size:        p.Size,
		ZIndex:      c.maxZ() + 1,
		Seq:         c.nextSeq(),
	}
	c.stickers = append(c.stickers, s)
	ev := c.stickerEvent(EventLayerAdded, s.ID)
	c.mu.Unlock()

	c.emit(ev)
	return s.ID, nil
}

// RemoveSticker deletes a sticker, clearing a selection that points at it.
func (c *Composition) RemoveSticker(id ID) bool {
	c.mu.Lock()
	i := c.stickerIndex(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	c.stickers = append(c.stickers[:i], c.stickers[i+1:]...)
	events := []Event{{Kind: EventLayerRemoved, Ref: StickerRef(id)}}
	if c.selection.ID == id {
		c.selection = Ref{}
		events = append(events, Event{Kind: EventSelectionChanged})
	}
	c.mu.Unlock()

	c.emit(events...)
	return true
}

// ClearStickers removes every sticker and returns how many were removed.
func (c *Composition) ClearStickers() int {
	c.mu.Lock()
	n := len(c.stickers)
	events := make([]Event, 0, n+1)
	for _, s := range c.stickers {
		events = append(events, Event{Kind: EventLayerRemoved, Ref: StickerRef(s.ID)})
	}
	c.stickers = nil
	if c.selection.Kind == KindSticker {
		c.selection = Ref{}
		events = append(events, Event{Kind: EventSelectionChanged})
	}
	c.mu.Unlock()

	c.emit(events...)
	return n
}

// UpdateStickerGeometry moves and resizes a sticker. It is a no-op that
// returns false when the sticker is absent, locked or the geometry invalid.
func (c *Composition) UpdateStickerGeometry(id ID, x, y, size float64) bool {
	c.mu.Lock()
	i := c.stickerIndex(id)
	valid := Rect{X: x, Y: y, Width: size, Height: size}.Valid()
	if reason := rejectGeometry(i >= 0 && c.stickers[i].Locked, i >= 0, valid); reason != "" {
		c.mu.Unlock()
		ggmeme.Logger().Debug("composition: sticker geometry rejected", "id", id, "reason", reason)
		return false
	}
	c.stickers[i].X, c.stickers[i].Y, c.stickers[i].Size = x, y, size
	ev := c.stickerEvent(EventLayerChanged, id)
	c.mu.Unlock()

	c.emit(ev)
	return true
}

// SetLocked locks or unlocks any layer.
func (c *Composition) SetLocked(id ID, locked bool) bool {
	c.mu.Lock()
	var ev Event
	if i := c.textIndex(id); i >= 0 {
		c.texts[i].Locked = locked
		ev = c.textEvent(EventLayerChanged, id)
	} else if i := c.stickerIndex(id); i >= 0 {
		c.stickers[i].Locked = locked
		ev = c.stickerEvent(EventLayerChanged, id)
	} else {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	c.emit(ev)
	return true
}

// BringToFront moves a layer above every other layer.
func (c *Composition) BringToFront(id ID) bool {
	c.mu.Lock()
	var ev Event
	z := c.maxZ() + 1
	if i := c.textIndex(id); i >= 0 {
		c.texts[i].ZIndex = z
		ev = c.textEvent(EventLayerChanged, id)
	} else if i := c.stickerIndex(id); i >= 0 {
		c.stickers[i].ZIndex = z
		ev = c.stickerEvent(EventLayerChanged, id)
	} else {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	c.emit(ev)
	return true
}

// Select sets the selection. The zero Ref clears it. Selecting a layer
// that does not exist leaves the selection unchanged and returns false.
func (c *Composition) Select(ref Ref) bool {
	c.mu.Lock()
	if !ref.IsZero() && !c.exists(ref) {
		c.mu.Unlock()
		return false
	}
	changed := c.selection != ref
	c.selection = ref
	c.mu.Unlock()

	if changed {
		c.emit(Event{Kind: EventSelectionChanged, Ref: ref})
	}
	return true
}

// Selection returns the selected layer, or the zero Ref.
func (c *Composition) Selection() Ref {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// ReplaceAll atomically swaps in the layers of s. The snapshot is validated
// first; on failure the composition is untouched and an
// *InvalidImportError is returned.
func (c *Composition) ReplaceAll(s Snapshot) error {
	if err := Validate(s); err != nil {
		return err
	}
	s = s.Clone()
	sort.SliceStable(s.TextLayers, func(i, j int) bool {
		return s.TextLayers[i].CaptionIndex < s.TextLayers[j].CaptionIndex
	})

	c.mu.Lock()
	c.image = s.Image
	c.texts = s.TextLayers
	c.stickers = s.Stickers
	c.selection = s.Selection
	c.seq = 0
	for _, t := range c.texts {
		c.seq = max(c.seq, t.Seq)
	}
	for _, st := range c.stickers {
		c.seq = max(c.seq, st.Seq)
	}
	c.mu.Unlock()

	c.emit(Event{Kind: EventReplaced})
	return nil
}

// Reset discards every layer and installs a new base image.
func (c *Composition) Reset(img Image) {
	c.mu.Lock()
	c.image = img
	c.texts = nil
	c.stickers = nil
	c.selection = Ref{}
	c.mu.Unlock()

	ggmeme.Logger().Info("composition: reset", "image", img.Name)
	c.emit(Event{Kind: EventReset})
}

// TextLayer returns a copy of the text layer id.
func (c *Composition) TextLayer(id ID) (TextLayer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.textIndex(id); i >= 0 {
		return c.texts[i], true
	}
	return TextLayer{}, false
}

// Sticker returns a copy of the sticker id.
func (c *Composition) Sticker(id ID) (StickerLayer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.stickerIndex(id); i >= 0 {
		return c.stickers[i], true
	}
	return StickerLayer{}, false
}

// Snapshot returns a deep copy of the current state.
func (c *Composition) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Image:      c.image,
		TextLayers: append([]TextLayer(nil), c.texts...),
		Stickers:   append([]StickerLayer(nil), c.stickers...),
		Selection:  c.selection,
	}
}

// PaintOrder returns every layer from bottom to top.
func (c *Composition) PaintOrder() []Ref {
	return c.Snapshot().PaintOrder()
}

func rejectGeometry(locked, found, valid bool) string {
	switch {
	case !found:
		return "absent"
	case locked:
		return "locked"
	case !valid:
		return "invalid geometry"
	}
	return ""
}

func (c *Composition) freshID() ID {
	for {
		id := c.newID()
		if id != "" && !c.exists(TextRef(id)) && !c.exists(StickerRef(id)) {
			return id
		}
	}
}

func (c *Composition) nextSeq() uint64 {
	c.seq++
	return c.seq
}

func (c *Composition) maxZ() int {
	z := 0
	for _, t := range c.texts {
		z = max(z, t.ZIndex)
	}
	for _, s := range c.stickers {
		z = max(z, s.ZIndex)
	}
	return z
}

func (c *Composition) reindex() {
	for i := range c.texts {
		c.texts[i].CaptionIndex = i
	}
}

func (c *Composition) textIndex(id ID) int {
	for i := range c.texts {
		if c.texts[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Composition) stickerIndex(id ID) int {
	for i := range c.stickers {
		if c.stickers[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Composition) exists(ref Ref) bool {
	switch ref.Kind {
	case KindText:
		return c.textIndex(ref.ID) >= 0
	case KindSticker:
		return c.stickerIndex(ref.ID) >= 0
	}
	return false
}

// defaultTextRect lays caption slots out top, bottom, then down the middle.
func defaultTextRect(img Image, index int) Rect {
	w, h := float64(img.Width), float64(img.Height)
	if w <= 0 || h <= 0 {
		w, h = 600, 600
	}
	r := Rect{X: w * 0.05, Width: w * 0.9, Height: max(h*0.15, 40)}
	if r.Height > h {
		r.Height = h
	}
	margin := h * 0.03
	switch index {
	case 0:
		r.Y = margin
	case 1:
		r.Y = h - r.Height - margin
	default:
		r.Y = (h-r.Height)/2 + float64(index-2)*r.Height*0.5
	}
	r.Y = min(max(r.Y, 0), h-r.Height)
	return r
}
