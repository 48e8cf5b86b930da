package studio

import (
	"context"
	"errors"
	"sync"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/api"
)

// ErrSuperseded is returned by a gallery load whose response arrived after
// a newer load had started. Its result was discarded.
var ErrSuperseded = errors.New("studio: superseded by a newer request")

// GalleryView selects which memes a gallery lists.
type GalleryView int

const (
	// ViewPublic lists published memes.
	ViewPublic GalleryView = iota
	// ViewOwn lists the signed-in user's memes.
	ViewOwn
)

// Gallery is a list of backend memes. Each load takes a generation number;
// a response is stored only if no newer load started in the meantime.
type Gallery struct {
	client *api.Client

	mu      sync.Mutex
	gen     uint64
	loading bool
	view    GalleryView
	items   []api.Meme
	message string
}

// NewGallery returns an empty gallery reading from client.
func NewGallery(client *api.Client) *Gallery {
	return &Gallery{client: client}
}

// GalleryState is a point-in-time view of a gallery.
type GalleryState struct {
	View    GalleryView
	Loading bool
	Items   []api.Meme
	Message string // user-visible error of the last load
}

// State returns the current contents.
func (g *Gallery) State() GalleryState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GalleryState{
		View:    g.view,
		Loading: g.loading,
		Items:   append([]api.Meme(nil), g.items...),
		Message: g.message,
	}
}

// Load fetches the given view. A limit of zero uses the backend default
// and is ignored for ViewOwn.
func (g *Gallery) Load(ctx context.Context, view GalleryView, limit int) ([]api.Meme, error) {
	if g.client == nil {
		return nil, ErrNoBackend
	}
	g.mu.Lock()
	g.gen++
	gen := g.gen
	g.loading = true
	g.mu.Unlock()

	var items []api.Meme
	var err error
	switch view {
	case ViewOwn:
		items, err = g.client.Memes(ctx)
	default:
		items, err = g.client.PublicMemes(ctx, limit)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen {
		ggmeme.Logger().Debug("studio: gallery response superseded", "gen", gen, "current", g.gen)
		return nil, ErrSuperseded
	}
	g.loading = false
	g.view = view
	if err != nil {
		g.message = api.Message(err)
		return nil, err
	}
	g.items, g.message = items, ""
	return append([]api.Meme(nil), items...), nil
}

// Remove deletes one of the user's memes and drops it from the list.
func (g *Gallery) Remove(ctx context.Context, id string) error {
	if g.client == nil {
		return ErrNoBackend
	}
	if _, err := g.client.DeleteMeme(ctx, id); err != nil {
		g.mu.Lock()
		g.message = api.Message(err)
		g.mu.Unlock()
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	kept := g.items[:0:0]
	for _, m := range g.items {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	g.items, g.message = kept, ""
	return nil
}
