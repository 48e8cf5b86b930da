package composition

import "slices"

// EventKind names a change notification.
type EventKind string

// Event kinds.
const (
	EventLayerAdded       EventKind = "layer-added"
	EventLayerRemoved     EventKind = "layer-removed"
	EventLayerChanged     EventKind = "layer-changed"
	EventSelectionChanged EventKind = "selection-changed"
	EventReplaced         EventKind = "replaced"
	EventReset            EventKind = "reset"
)

// Event is delivered to observers after a successful mutation. For added
// and changed layers it carries a copy of the full updated record.
type Event struct {
	Kind    EventKind
	Ref     Ref
	Text    *TextLayer
	Sticker *StickerLayer
}

// Subscribe registers fn for change notifications and returns a function
// that cancels the subscription. fn runs on the mutating goroutine after the
// composition lock has been released, so it may read the composition.
func (c *Composition) Subscribe(fn func(Event)) (cancel func()) {
	c.mu.Lock()
	c.nextObs++
	key := c.nextObs
	c.observers[key] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, key)
		c.mu.Unlock()
	}
}

func (c *Composition) emit(events ...Event) {
	c.mu.Lock()
	keys := make([]uint64, 0, len(c.observers))
	for k := range c.observers {
		keys = append(keys, k)
	}
	fns := make([]func(Event), 0, len(keys))
	// Deliver in subscription order.
	slices.Sort(keys)
	for _, k := range keys {
		fns = append(fns, c.observers[k])
	}
	c.mu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// textEvent builds an event carrying a copy of text layer id.
// The caller holds c.mu.
func (c *Composition) textEvent(kind EventKind, id ID) Event {
	ev := Event{Kind: kind, Ref: TextRef(id)}
	if i := c.textIndex(id); i >= 0 {
		l := c.texts[i]
		ev.Text = &l
	}
	return ev
}

// stickerEvent builds an event carrying a copy of sticker id.
// The caller holds c.mu.
func (c *Composition) stickerEvent(kind EventKind, id ID) Event {
	ev := Event{Kind: kind, Ref: StickerRef(id)}
	if i := c.stickerIndex(id); i >= 0 {
		s := c.stickers[i]
		ev.Sticker = &s
	}
	return ev
}
