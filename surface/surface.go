package surface

import (
	"math"

	"github.com/gogpu/gg"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/composition"
)

// State is the selection state of the surface.
type State int

const (
	// Idle means nothing is selected.
	Idle State = iota
	// Selected means one layer is selected.
	Selected
)

func (s State) String() string {
	if s == Selected {
		return "selected"
	}
	return "idle"
}

type gesture int

const (
	gestureNone gesture = iota
	gestureDrag
	gestureResize
)

// Option configures a Surface.
type Option func(*Surface)

// WithModality sets the input modality. The default is Precise.
func WithModality(m Modality) Option {
	return func(s *Surface) { s.modality = m }
}

// WithGrid enables grid snapping with the given cell size.
func WithGrid(size float64) Option {
	return func(s *Surface) { s.SetGrid(size) }
}

// WithBounds overrides the canvas size, which otherwise follows the base
// image of the composition.
func WithBounds(w, h float64) Option {
	return func(s *Surface) { s.SetBounds(w, h) }
}

// Surface maps pointer gestures onto a composition.
type Surface struct {
	comp     *composition.Composition
	modality Modality
	w, h     float64
	grid     float64
	fixed    bool // bounds set explicitly

	exporting bool
	gesture   gesture
	target    composition.Ref
	start     gg.Point
	origin    composition.Rect

	cancel func()
}

// New attaches a surface to comp.
func New(comp *composition.Composition, opts ...Option) *Surface {
	s := &Surface{comp: comp}
	img := comp.Image()
	s.w, s.h = float64(img.Width), float64(img.Height)
	for _, o := range opts {
		o(s)
	}
	s.cancel = comp.Subscribe(s.observe)
	return s
}

// Close detaches the surface from its composition.
func (s *Surface) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Surface) observe(ev composition.Event) {
	switch ev.Kind {
	case composition.EventReset, composition.EventReplaced:
		s.endGesture()
		if !s.fixed {
			img := s.comp.Image()
			s.w, s.h = float64(img.Width), float64(img.Height)
		}
	case composition.EventLayerRemoved:
		if ev.Ref == s.target {
			s.endGesture()
		}
	}
}

// Modality returns the active input modality.
func (s *Surface) Modality() Modality { return s.modality }

// SetModality switches the input modality, for example when the client
// reports new capabilities.
func (s *Surface) SetModality(m Modality) { s.modality = m }

// SetGrid sets the snapping cell size. Zero or a negative size disables
// snapping.
func (s *Surface) SetGrid(size float64) {
	if size < 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		size = 0
	}
	s.grid = size
}

// Grid returns the snapping cell size, zero when snapping is off.
func (s *Surface) Grid() float64 { return s.grid }

// SetBounds sets the canvas size that drags and resizes are clamped to.
func (s *Surface) SetBounds(w, h float64) {
	s.w, s.h = w, h
	s.fixed = true
}

// Bounds returns the canvas size.
func (s *Surface) Bounds() (w, h float64) { return s.w, s.h }

// State reports whether a layer is selected.
func (s *Surface) State() State {
	if s.comp.Selection().IsZero() {
		return Idle
	}
	return Selected
}

// Exporting reports whether export mode is on.
func (s *Surface) Exporting() bool { return s.exporting }

// SetExporting toggles export mode. Turning it on abandons any gesture in
// progress.
func (s *Surface) SetExporting(on bool) {
	s.exporting = on
	if on {
		s.endGesture()
	}
}

// ClearSelection deselects the current layer.
func (s *Surface) ClearSelection() {
	s.endGesture()
	s.comp.Select(composition.Ref{})
}

// CanManipulate reports whether ref may be dragged or resized right now.
func (s *Surface) CanManipulate(ref composition.Ref) bool {
	if s.exporting {
		return false
	}
	_, locked, ok := s.geometry(s.comp.Snapshot(), ref)
	return ok && !locked
}

// HitTest returns the topmost layer whose bounds contain p.
func (s *Surface) HitTest(p gg.Point) (composition.Ref, bool) {
	return hitTest(s.comp.Snapshot(), p)
}

func hitTest(snap composition.Snapshot, p gg.Point) (composition.Ref, bool) {
	order := snap.PaintOrder()
	for i := len(order) - 1; i >= 0; i-- {
		var r composition.Rect
		switch order[i].Kind {
		case composition.KindText:
			t, _ := snap.Text(order[i].ID)
			r = t.Rect
		case composition.KindSticker:
			st, _ := snap.Sticker(order[i].ID)
			r = st.Bounds()
		}
		if r.Contains(p.X, p.Y) {
			return order[i], true
		}
	}
	return composition.Ref{}, false
}

// PointerDown starts a gesture at p and returns the selection afterwards.
// A press on the resize handle of the selected layer starts a resize; a
// press on a layer selects it and starts a drag; a press anywhere else
// clears the selection. Input is ignored while exporting.
func (s *Surface) PointerDown(p gg.Point) composition.Ref {
	if s.exporting {
		return s.comp.Selection()
	}
	s.endGesture()
	snap := s.comp.Snapshot()

	if sel := snap.Selection; !sel.IsZero() {
		r, locked, ok := s.geometry(snap, sel)
		if ok && !locked && s.handleRect(r).Contains(p.X, p.Y) {
			s.begin(gestureResize, sel, p, r)
			return sel
		}
	}

	ref, ok := hitTest(snap, p)
	if !ok {
		s.comp.Select(composition.Ref{})
		return composition.Ref{}
	}
	s.comp.Select(ref)
	if r, locked, _ := s.geometry(snap, ref); !locked {
		s.begin(gestureDrag, ref, p, r)
	}
	return ref
}

// PointerMove continues the active gesture and reports whether the
// composition changed.
func (s *Surface) PointerMove(p gg.Point) bool {
	if s.exporting || s.gesture == gestureNone {
		return false
	}
	d := p.Sub(s.start)
	switch s.gesture {
	case gestureDrag:
		return s.drag(d)
	case gestureResize:
		return s.resize(d)
	}
	return false
}

// PointerUp ends the active gesture.
func (s *Surface) PointerUp(p gg.Point) bool {
	changed := s.PointerMove(p)
	s.endGesture()
	return changed
}

// Cancel abandons the active gesture without further updates.
func (s *Surface) Cancel() { s.endGesture() }

func (s *Surface) begin(g gesture, ref composition.Ref, p gg.Point, r composition.Rect) {
	s.gesture, s.target, s.start, s.origin = g, ref, p, r
}

func (s *Surface) endGesture() {
	s.gesture = gestureNone
	s.target = composition.Ref{}
}

func (s *Surface) drag(d gg.Point) bool {
	o := s.origin
	x := clamp(s.snap(o.X+d.X), 0, s.w-o.Width)
	y := clamp(s.snap(o.Y+d.Y), 0, s.h-o.Height)

	if s.target.Kind == composition.KindSticker {
		return s.comp.UpdateStickerGeometry(s.target.ID, x, y, o.Width)
	}
	return s.comp.UpdateTextGeometry(s.target.ID, composition.Rect{X: x, Y: y, Width: o.Width, Height: o.Height})
}

func (s *Surface) resize(d gg.Point) bool {
	o := s.origin
	if s.target.Kind == composition.KindSticker {
		// Stickers grow uniformly by the larger of the two deltas.
		size := s.snap(o.Width + math.Max(d.X, d.Y))
		size = math.Min(size, math.Min(s.w-o.X, s.h-o.Y))
		size = math.Max(size, s.modality.MinStickerSize())
		return s.comp.UpdateStickerGeometry(s.target.ID, o.X, o.Y, size)
	}
	minW, minH := s.modality.MinTextSize()
	w := math.Max(math.Min(s.snap(o.Width+d.X), s.w-o.X), minW)
	h := math.Max(math.Min(s.snap(o.Height+d.Y), s.h-o.Y), minH)
	return s.comp.UpdateTextGeometry(s.target.ID, composition.Rect{X: o.X, Y: o.Y, Width: w, Height: h})
}

func (s *Surface) snap(v float64) float64 {
	if s.grid <= 0 {
		return v
	}
	return math.Round(v/s.grid) * s.grid
}

// clamp keeps v in [lo, hi]; when the range is empty lo wins so an
// oversized layer stays pinned to the top-left corner.
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func (s *Surface) geometry(snap composition.Snapshot, ref composition.Ref) (composition.Rect, bool, bool) {
	switch ref.Kind {
	case composition.KindText:
		if t, ok := snap.Text(ref.ID); ok {
			return t.Rect, t.Locked, true
		}
	case composition.KindSticker:
		if st, ok := snap.Sticker(ref.ID); ok {
			return st.Bounds(), st.Locked, true
		}
	}
	ggmeme.Logger().Debug("surface: unknown layer", "ref", ref.ID)
	return composition.Rect{}, false, false
}

// handleRect centres the resize handle on the bottom-right corner of r.
func (s *Surface) handleRect(r composition.Rect) composition.Rect {
	hs := s.modality.HandleSize()
	return composition.Rect{X: r.X + r.Width - hs/2, Y: r.Y + r.Height - hs/2, Width: hs, Height: hs}
}

// Chrome is the editor decoration drawn around the selected layer.
type Chrome struct {
	// Visible is false when nothing may be drawn.
	Visible bool             `json:"visible"`
	Ref     composition.Ref  `json:"ref"`
	Outline composition.Rect `json:"outline"`
	// Handle is the resize handle, nil for locked layers.
	Handle *composition.Rect `json:"handle,omitempty"`
}

// Chrome returns the decoration for the current selection. It is empty
// while exporting or when nothing is selected.
func (s *Surface) Chrome() Chrome {
	if s.exporting {
		return Chrome{}
	}
	snap := s.comp.Snapshot()
	if snap.Selection.IsZero() {
		return Chrome{}
	}
	r, locked, ok := s.geometry(snap, snap.Selection)
	if !ok {
		return Chrome{}
	}
	c := Chrome{Visible: true, Ref: snap.Selection, Outline: r}
	if !locked {
		h := s.handleRect(r)
		c.Handle = &h
	}
	return c
}
