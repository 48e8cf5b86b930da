package composition

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/caption"
)

func seqIDs() func() ID {
	n := 0
	return func() ID {
		n++
		return ID(fmt.Sprintf("L%d", n))
	}
}

func newTestComposition() *Composition {
	return New(Image{Ref: "base.png", Name: "base", Width: 800, Height: 600}, WithIDGenerator(seqIDs()))
}

func assertContiguous(t *testing.T, c *Composition) {
	t.Helper()
	s := c.Snapshot()
	for i, l := range s.TextLayers {
		if l.CaptionIndex != i {
			t.Fatalf("text layer %d has CaptionIndex %d", i, l.CaptionIndex)
		}
	}
	if err := Validate(s); err != nil {
		t.Fatalf("invariants broken: %v", err)
	}
}

func TestAddTextLayerAssignsIndexAndZ(t *testing.T) {
	c := newTestComposition()
	a := c.AddTextLayer()
	b := c.AddTextLayer()

	la, _ := c.TextLayer(a)
	lb, _ := c.TextLayer(b)
	if la.CaptionIndex != 0 || lb.CaptionIndex != 1 {
		t.Errorf("indices = %d, %d", la.CaptionIndex, lb.CaptionIndex)
	}
	if lb.ZIndex != la.ZIndex+1 {
		t.Errorf("zIndex = %d, %d; want consecutive", la.ZIndex, lb.ZIndex)
	}
	if la.Y >= lb.Y {
		t.Errorf("first caption should sit above the second: %v vs %v", la.Y, lb.Y)
	}
	if la.Caption != caption.Default() {
		t.Errorf("new caption = %+v", la.Caption)
	}
}

func TestInsertTextLayerReindexes(t *testing.T) {
	c := newTestComposition()
	a := c.AddTextLayer()
	b := c.AddTextLayer()
	mid := c.InsertTextLayer(0)

	order := []ID{a, mid, b}
	for i, id := range order {
		l, ok := c.TextLayer(id)
		if !ok || l.CaptionIndex != i {
			t.Errorf("layer %s index = %d, want %d", id, l.CaptionIndex, i)
		}
	}
	first := c.InsertTextLayer(-1)
	if l, _ := c.TextLayer(first); l.CaptionIndex != 0 {
		t.Errorf("InsertTextLayer(-1) index = %d", l.CaptionIndex)
	}
	assertContiguous(t, c)
}

func TestCaptionIndicesStayContiguous(t *testing.T) {
	c := newTestComposition()
	rng := rand.New(rand.NewSource(7))
	var ids []ID
	for step := 0; step < 200; step++ {
		if len(ids) == 0 || rng.Intn(3) > 0 {
			ids = append(ids, c.InsertTextLayer(rng.Intn(len(ids)+1)-1))
		} else {
			i := rng.Intn(len(ids))
			if !c.RemoveTextLayer(ids[i]) {
				t.Fatalf("remove %s failed", ids[i])
			}
			ids = append(ids[:i], ids[i+1:]...)
		}
		assertContiguous(t, c)
	}
}

func TestRemoveSelectedClearsSelection(t *testing.T) {
	c := newTestComposition()
	a := c.AddTextLayer()
	b := c.AddTextLayer()
	s, _ := c.AddSticker(StickerParams{Kind: StickerEmoji, Emoji: "🔥"})

	c.Select(TextRef(a))
	c.RemoveTextLayer(b)
	if c.Selection() != TextRef(a) {
		t.Errorf("removing unselected layer changed selection to %+v", c.Selection())
	}
	c.RemoveSticker(s)
	if c.Selection() != TextRef(a) {
		t.Errorf("removing unselected sticker changed selection to %+v", c.Selection())
	}
	c.RemoveTextLayer(a)
	if !c.Selection().IsZero() {
		t.Errorf("selection = %+v after removing selected layer", c.Selection())
	}

	s2, _ := c.AddSticker(StickerParams{Kind: StickerEmoji, Emoji: "😂"})
	c.Select(StickerRef(s2))
	c.RemoveSticker(s2)
	if !c.Selection().IsZero() {
		t.Errorf("selection = %+v after removing selected sticker", c.Selection())
	}
}

func TestGeometryGuards(t *testing.T) {
	c := newTestComposition()
	txt := c.AddTextLayer()
	st, err := c.AddSticker(StickerParams{Kind: StickerImage, ImageSource: "doge.png", X: 10, Y: 10, Size: 50})
	if err != nil {
		t.Fatal(err)
	}
	c.SetLocked(txt, true)
	c.SetLocked(st, true)

	before := c.Snapshot()
	if c.UpdateTextGeometry(txt, Rect{X: 1, Y: 1, Width: 10, Height: 10}) {
		t.Error("locked text layer accepted geometry")
	}
	if c.UpdateStickerGeometry(st, 0, 0, 10) {
		t.Error("locked sticker accepted geometry")
	}
	if c.UpdateTextGeometry("missing", Rect{Width: 1, Height: 1}) {
		t.Error("absent text layer accepted geometry")
	}
	if c.UpdateStickerGeometry("missing", 0, 0, 1) {
		t.Error("absent sticker accepted geometry")
	}
	if !reflect.DeepEqual(before, c.Snapshot()) {
		t.Error("rejected updates mutated the composition")
	}

	c.SetLocked(txt, false)
	c.SetLocked(st, false)
	for _, bad := range []Rect{
		{Width: 0, Height: 5},
		{Width: 5, Height: -1},
		{X: math.NaN(), Width: 5, Height: 5},
		{Y: math.Inf(1), Width: 5, Height: 5},
	} {
		if c.UpdateTextGeometry(txt, bad) {
			t.Errorf("invalid rect %+v accepted", bad)
		}
	}
	if c.UpdateStickerGeometry(st, 0, 0, 0) {
		t.Error("zero sticker size accepted")
	}

	r := Rect{X: 5, Y: 6, Width: 70, Height: 80}
	if !c.UpdateTextGeometry(txt, r) {
		t.Fatal("unlocked update rejected")
	}
	if l, _ := c.TextLayer(txt); l.Rect != r {
		t.Errorf("rect = %+v, want %+v", l.Rect, r)
	}
	if !c.UpdateStickerGeometry(st, 1, 2, 3) {
		t.Fatal("unlocked sticker update rejected")
	}
}

func TestLockedCaptionStillStyleable(t *testing.T) {
	c := newTestComposition()
	id := c.AddTextLayer()
	c.SetLocked(id, true)

	p, _ := caption.PresetByName("Retro")
	if err := c.ApplyPreset(id, p); err != nil {
		t.Fatal(err)
	}
	l, _ := c.TextLayer(id)
	if l.Caption.FontFamily != p.FontFamily {
		t.Errorf("preset not applied to locked layer")
	}

	bad := l.Caption
	bad.Effect = "sparkle"
	if err := c.UpdateCaption(id, bad); !errors.Is(err, ggmeme.ErrValidation) {
		t.Errorf("UpdateCaption(bad) = %v", err)
	}
	if err := c.UpdateCaption("nope", caption.Default()); !errors.Is(err, ErrLayerNotFound) {
		t.Errorf("UpdateCaption(missing) = %v", err)
	}
}

func TestApplyPresetKeepsConcurrentText(t *testing.T) {
	c := newTestComposition()
	id := c.AddTextLayer()
	presets := []caption.Preset{}
	for _, name := range []string{"Neon", "Retro", "Minimal"} {
		p, _ := caption.PresetByName(name)
		presets = append(presets, p)
	}

	const n = 200
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range n {
			l, _ := c.TextLayer(id)
			cp := l.Caption
			cp.Text = fmt.Sprintf("text %d", i)
			if err := c.UpdateCaption(id, cp); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := range n {
			if err := c.ApplyPreset(id, presets[i%len(presets)]); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	wg.Wait()

	l, _ := c.TextLayer(id)
	if want := fmt.Sprintf("text %d", n-1); l.Caption.Text != want {
		t.Errorf("text = %q, want %q", l.Caption.Text, want)
	}
}

func TestAddStickerValidation(t *testing.T) {
	c := newTestComposition()
	tests := []StickerParams{
		{Kind: StickerEmoji},
		{Kind: StickerEmoji, Emoji: "🐸", ImageSource: "x.png"},
		{Kind: StickerImage},
		{Kind: StickerImage, ImageSource: "x.png", Emoji: "🐸"},
		{Kind: "gif", ImageSource: "x.gif"},
		{Kind: StickerEmoji, Emoji: "🐸", Size: -4},
	}
	for _, p := range tests {
		if _, err := c.AddSticker(p); !errors.Is(err, ggmeme.ErrValidation) {
			t.Errorf("AddSticker(%+v) = %v, want validation error", p, err)
		}
	}
	if n := len(c.Snapshot().Stickers); n != 0 {
		t.Errorf("%d stickers added by invalid params", n)
	}

	id, err := c.AddSticker(StickerParams{Kind: StickerEmoji, Emoji: "🐸"})
	if err != nil {
		t.Fatal(err)
	}
	s, _ := c.Sticker(id)
	if s.Size != DefaultStickerSize || s.X != 400-DefaultStickerSize/2 {
		t.Errorf("default placement = %+v", s)
	}
}

func TestIDsUniqueAcrossKinds(t *testing.T) {
	// A generator that repeats itself must not produce colliding ids.
	calls := 0
	gen := func() ID {
		calls++
		return ID(fmt.Sprint(calls / 2))
	}
	c := New(Image{Ref: "x"}, WithIDGenerator(gen))
	seen := map[ID]bool{}
	for i := 0; i < 5; i++ {
		t1 := c.AddTextLayer()
		s1, _ := c.AddSticker(StickerParams{Kind: StickerEmoji, Emoji: "x"})
		for _, id := range []ID{t1, s1} {
			if seen[id] {
				t.Fatalf("id %q reused", id)
			}
			seen[id] = true
		}
	}
}

func TestSelect(t *testing.T) {
	c := newTestComposition()
	id := c.AddTextLayer()
	if !c.Select(TextRef(id)) {
		t.Fatal("Select existing failed")
	}
	if c.Select(StickerRef(id)) {
		t.Error("Select with wrong kind succeeded")
	}
	if c.Select(TextRef("ghost")) {
		t.Error("Select missing succeeded")
	}
	if c.Selection() != TextRef(id) {
		t.Errorf("selection = %+v", c.Selection())
	}
	c.Select(Ref{})
	if !c.Selection().IsZero() {
		t.Error("zero ref should clear selection")
	}
}

func TestPaintOrder(t *testing.T) {
	c := newTestComposition()
	a := c.AddTextLayer()
	s, _ := c.AddSticker(StickerParams{Kind: StickerEmoji, Emoji: "✨"})
	b := c.AddTextLayer()

	want := []Ref{TextRef(a), StickerRef(s), TextRef(b)}
	if got := c.PaintOrder(); !reflect.DeepEqual(got, want) {
		t.Errorf("PaintOrder = %v, want %v", got, want)
	}

	c.BringToFront(a)
	want = []Ref{StickerRef(s), TextRef(b), TextRef(a)}
	if got := c.PaintOrder(); !reflect.DeepEqual(got, want) {
		t.Errorf("after BringToFront = %v, want %v", got, want)
	}
	if l, _ := c.TextLayer(a); l.CaptionIndex != 0 {
		t.Error("BringToFront changed caption index")
	}
}

func TestPaintOrderTiesByCreation(t *testing.T) {
	s := Snapshot{
		Image: Image{Ref: "x"},
		TextLayers: []TextLayer{
			{ID: "late", CaptionIndex: 0, Rect: Rect{Width: 1, Height: 1}, ZIndex: 1, Seq: 9, Caption: caption.Default()},
		},
		Stickers: []StickerLayer{
			{ID: "early", Kind: StickerEmoji, Emoji: "x", Size: 1, ZIndex: 1, Seq: 2},
		},
	}
	want := []Ref{StickerRef("early"), TextRef("late")}
	if got := s.PaintOrder(); !reflect.DeepEqual(got, want) {
		t.Errorf("PaintOrder = %v, want %v", got, want)
	}
}

func TestReplaceAll(t *testing.T) {
	src := newTestComposition()
	a := src.AddTextLayer()
	src.AddTextLayer()
	src.AddSticker(StickerParams{Kind: StickerEmoji, Emoji: "🎉"})
	src.Select(TextRef(a))
	snap := src.Snapshot()

	dst := New(Image{Ref: "other"})
	dst.AddTextLayer()
	if err := dst.ReplaceAll(snap); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(dst.Snapshot(), snap) {
		t.Errorf("ReplaceAll result differs:\n got %+v\nwant %+v", dst.Snapshot(), snap)
	}

	// New layers continue the creation sequence.
	id := dst.AddTextLayer()
	l, _ := dst.TextLayer(id)
	for _, other := range snap.TextLayers {
		if l.Seq <= other.Seq {
			t.Errorf("seq %d not after imported %d", l.Seq, other.Seq)
		}
	}
}

func TestReplaceAllRejectsInvalid(t *testing.T) {
	base := func() Snapshot {
		c := newTestComposition()
		c.AddTextLayer()
		c.AddTextLayer()
		c.AddSticker(StickerParams{Kind: StickerEmoji, Emoji: "x"})
		return c.Snapshot()
	}
	tests := []struct {
		name string
		edit func(*Snapshot)
	}{
		{"no image", func(s *Snapshot) { s.Image.Ref = "" }},
		{"dup id", func(s *Snapshot) { s.Stickers[0].ID = s.TextLayers[0].ID }},
		{"gap", func(s *Snapshot) { s.TextLayers[1].CaptionIndex = 2 }},
		{"dup index", func(s *Snapshot) { s.TextLayers[1].CaptionIndex = 0 }},
		{"zero width", func(s *Snapshot) { s.TextLayers[0].Width = 0 }},
		{"nan", func(s *Snapshot) { s.Stickers[0].X = math.NaN() }},
		{"bad caption", func(s *Snapshot) { s.TextLayers[0].Caption.FontSize = 99 }},
		{"sticker kind", func(s *Snapshot) { s.Stickers[0].ImageSource = "y.png" }},
		{"dangling selection", func(s *Snapshot) { s.Selection = TextRef("ghost") }},
		{"empty id", func(s *Snapshot) { s.TextLayers[0].ID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestComposition()
			c.AddTextLayer()
			before := c.Snapshot()

			s := base()
			tt.edit(&s)
			err := c.ReplaceAll(s)
			var ie *InvalidImportError
			if !errors.As(err, &ie) {
				t.Fatalf("ReplaceAll = %v, want *InvalidImportError", err)
			}
			if !reflect.DeepEqual(before, c.Snapshot()) {
				t.Error("failed ReplaceAll mutated the composition")
			}
		})
	}
}

func TestReset(t *testing.T) {
	c := newTestComposition()
	id := c.AddTextLayer()
	c.AddSticker(StickerParams{Kind: StickerEmoji, Emoji: "x"})
	c.Select(TextRef(id))

	img := Image{Ref: "new.png", Width: 10, Height: 10}
	c.Reset(img)
	s := c.Snapshot()
	if len(s.TextLayers) != 0 || len(s.Stickers) != 0 || !s.Selection.IsZero() || s.Image != img {
		t.Errorf("Reset left state behind: %+v", s)
	}
}

func TestClearStickers(t *testing.T) {
	c := newTestComposition()
	txt := c.AddTextLayer()
	s, _ := c.AddSticker(StickerParams{Kind: StickerEmoji, Emoji: "a"})
	c.AddSticker(StickerParams{Kind: StickerEmoji, Emoji: "b"})
	c.Select(StickerRef(s))

	if n := c.ClearStickers(); n != 2 {
		t.Errorf("ClearStickers = %d", n)
	}
	if !c.Selection().IsZero() {
		t.Error("sticker selection not cleared")
	}
	if _, ok := c.TextLayer(txt); !ok {
		t.Error("ClearStickers removed a text layer")
	}
}

func TestSubscribe(t *testing.T) {
	c := newTestComposition()
	var got []Event
	cancel := c.Subscribe(func(ev Event) {
		// Observers may read the composition.
		_ = c.Snapshot()
		got = append(got, ev)
	})

	id := c.AddTextLayer()
	c.UpdateTextGeometry(id, Rect{X: 1, Y: 2, Width: 30, Height: 40})
	c.Select(TextRef(id))
	c.RemoveTextLayer(id)

	kinds := []EventKind{EventLayerAdded, EventLayerChanged, EventSelectionChanged, EventLayerRemoved, EventSelectionChanged}
	if len(got) != len(kinds) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(kinds), got)
	}
	for i, k := range kinds {
		if got[i].Kind != k {
			t.Errorf("event %d = %s, want %s", i, got[i].Kind, k)
		}
	}
	if got[1].Text == nil || got[1].Text.Rect.Width != 30 {
		t.Errorf("changed event should carry the updated record: %+v", got[1].Text)
	}

	cancel()
	c.AddTextLayer()
	if len(got) != len(kinds) {
		t.Error("cancelled observer still notified")
	}
}
