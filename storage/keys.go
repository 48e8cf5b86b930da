package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Ring sizes of the persisted lists.
const (
	PaletteSize     = 12
	RecentMemesSize = 8
)

// Palette is the list of recently used caption colours, most recent first.
type Palette struct {
	store Store
	mu    sync.Mutex
}

// NewPalette returns the palette kept in s.
func NewPalette(s Store) *Palette { return &Palette{store: s} }

// Colors returns the saved colours.
func (p *Palette) Colors(ctx context.Context) ([]string, error) {
	var colors []string
	if _, err := GetJSON(ctx, p.store, KeyPalette, &colors); err != nil {
		return nil, err
	}
	return colors, nil
}

// Add moves color to the front of the palette, dropping a case-insensitive
// duplicate and the oldest entry beyond PaletteSize. Empty colours are
// ignored.
func (p *Palette) Add(ctx context.Context, color string) ([]string, error) {
	color = strings.TrimSpace(color)
	p.mu.Lock()
	defer p.mu.Unlock()
	colors, err := p.Colors(ctx)
	if err != nil {
		return nil, err
	}
	if color == "" {
		return colors, nil
	}
	out := []string{color}
	for _, c := range colors {
		if !strings.EqualFold(c, color) && len(out) < PaletteSize {
			out = append(out, c)
		}
	}
	return out, PutJSON(ctx, p.store, KeyPalette, out)
}

// RecentMeme is one entry of the recently used memes list.
type RecentMeme struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	BoxCount int    `json:"box_count"`
}

// Transient reports whether the meme points at a blob reference that only
// lives as long as the session that created it.
func (m RecentMeme) Transient() bool {
	return strings.HasPrefix(m.URL, "blob:")
}

// RecentMemes is a most-recent-first list capped at RecentMemesSize.
// Transient entries are kept in memory but never persisted.
type RecentMemes struct {
	store  Store
	mu     sync.Mutex
	loaded bool
	items  []RecentMeme
}

// NewRecentMemes returns the recent memes list kept in s.
func NewRecentMemes(s Store) *RecentMemes { return &RecentMemes{store: s} }

func (r *RecentMemes) load(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	var items []RecentMeme
	if _, err := GetJSON(ctx, r.store, KeyRecentMemes, &items); err != nil {
		return err
	}
	r.items, r.loaded = items, true
	return nil
}

// List returns the current entries.
func (r *RecentMemes) List(ctx context.Context) ([]RecentMeme, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return append([]RecentMeme(nil), r.items...), nil
}

// Add puts m at the front, replacing an entry with the same ID.
func (r *RecentMemes) Add(ctx context.Context, m RecentMeme) ([]RecentMeme, error) {
	if m.ID == "" {
		return nil, errors.New("storage: recent meme without id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	items := []RecentMeme{m}
	for _, it := range r.items {
		if it.ID != m.ID && len(items) < RecentMemesSize {
			items = append(items, it)
		}
	}
	r.items = items

	persist := make([]RecentMeme, 0, len(items))
	for _, it := range items {
		if !it.Transient() {
			persist = append(persist, it)
		}
	}
	return append([]RecentMeme(nil), items...), PutJSON(ctx, r.store, KeyRecentMemes, persist)
}

// AuthToken is the persisted bearer token of the signed-in user.
type AuthToken struct {
	store Store
}

// NewAuthToken returns the token slot kept in s.
func NewAuthToken(s Store) AuthToken { return AuthToken{store: s} }

// Token returns the saved token, or "" when signed out.
func (a AuthToken) Token(ctx context.Context) (string, error) {
	v, err := a.store.Get(ctx, KeyAuthToken)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return string(v), err
}

// Set saves token. An empty token signs out.
func (a AuthToken) Set(ctx context.Context, token string) error {
	if token == "" {
		return a.Clear(ctx)
	}
	return a.store.Put(ctx, KeyAuthToken, []byte(token))
}

// Clear removes the saved token.
func (a AuthToken) Clear(ctx context.Context) error {
	return a.store.Delete(ctx, KeyAuthToken)
}
