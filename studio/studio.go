// Package studio ties the editing packages together into sessions: one
// Composition and Surface per open editor, backed by shared persistence,
// the engagement ledger, a compositor and an optional backend client.
//
// Uploaded images live under blob references that a session revokes when
// they are superseded or when the session closes, so a session never holds
// more than one.
package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/api"
	"github.com/gogpu/ggmeme/ledger"
	"github.com/gogpu/ggmeme/render"
	"github.com/gogpu/ggmeme/storage"
	"github.com/gogpu/ggmeme/surface"
)

var (
	// ErrNoBackend is returned by operations that need the backend when the
	// studio runs without one.
	ErrNoBackend = fmt.Errorf("studio: no backend configured: %w", ggmeme.ErrNetwork)

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("studio: session closed")

	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("studio: session not found")
)

// DefaultMaxUpload bounds an uploaded image when Options leaves it zero.
const DefaultMaxUpload = 10 << 20

// Options configures new sessions.
type Options struct {
	Modality      surface.Modality
	Grid          float64
	AutoUppercase bool
	ShareURL      string // page that consumes ?remix= tokens
	MaxUpload     int64  // bytes
}

// Studio owns the resources shared by all sessions.
type Studio struct {
	opts       Options
	ledger     *ledger.Ledger
	recent     *storage.RecentMemes
	palette    *storage.Palette
	token      storage.AuthToken
	blobs      *Blobs
	loader     render.ImageLoader
	compositor *render.Compositor
	client     *api.Client

	mu       sync.Mutex
	sessions map[string]*Session
}

// Deps are the collaborators of a Studio. Store is required; a nil Fonts
// uses the bundled fonts, a nil Images resolves only uploads and a nil
// Client disables backend operations.
type Deps struct {
	Store  storage.Store
	Fonts  *render.FontBook
	Images render.ImageLoader
	Client *api.Client
	Ledger []ledger.Option
}

// New returns a studio.
func New(deps Deps, opts Options) *Studio {
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}
	blobs := NewBlobs()
	loader := blobs.Loader(deps.Images)
	return &Studio{
		opts:       opts,
		ledger:     ledger.New(deps.Store, deps.Ledger...),
		recent:     storage.NewRecentMemes(deps.Store),
		palette:    storage.NewPalette(deps.Store),
		token:      storage.NewAuthToken(deps.Store),
		blobs:      blobs,
		loader:     loader,
		compositor: render.NewCompositor(deps.Fonts, loader),
		client:     deps.Client,
		sessions:   make(map[string]*Session),
	}
}

// Ledger returns the engagement ledger.
func (s *Studio) Ledger() *ledger.Ledger { return s.ledger }

// RecentMemes returns the recently used memes list.
func (s *Studio) RecentMemes() *storage.RecentMemes { return s.recent }

// Palette returns the saved colour palette.
func (s *Studio) Palette() *storage.Palette { return s.palette }

// AuthToken returns the persisted bearer token.
func (s *Studio) AuthToken() storage.AuthToken { return s.token }

// Blobs returns the upload registry.
func (s *Studio) Blobs() *Blobs { return s.blobs }

// Loader returns the image loader used for rendering.
func (s *Studio) Loader() render.ImageLoader { return s.loader }

// Client returns the backend client, or nil.
func (s *Studio) Client() *api.Client { return s.client }

// Options returns the session defaults.
func (s *Studio) Options() Options { return s.opts }

// Open starts a new session and records a visit in the ledger.
func (s *Studio) Open(ctx context.Context, opts ...surface.Option) (*Session, error) {
	sess := newSession(s, uuid.NewString(), opts...)
	if _, err := s.ledger.RecordSession(ctx); err != nil {
		ggmeme.Logger().Warn("studio: ledger session", "err", err)
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	ggmeme.Logger().Info("studio: session opened", "session", sess.id, "open", n)
	return sess, nil
}

// Session returns the open session with the given id.
func (s *Studio) Session(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// CloseSession closes and forgets session id.
func (s *Studio) CloseSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.Close()
	return nil
}

// Close closes every open session.
func (s *Studio) Close() {
	s.mu.Lock()
	open := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range open {
		sess.Close()
	}
}

// Login signs in against the backend and persists the token.
func (s *Studio) Login(ctx context.Context, email, password string) (api.User, error) {
	if s.client == nil {
		return api.User{}, ErrNoBackend
	}
	sess, err := s.client.Login(ctx, email, password)
	if err != nil {
		return api.User{}, err
	}
	if err := s.token.Set(ctx, sess.Token); err != nil {
		return api.User{}, fmt.Errorf("studio: store token: %w", err)
	}
	return sess.User, nil
}

// Logout forgets the persisted token.
func (s *Studio) Logout(ctx context.Context) error {
	return s.token.Clear(ctx)
}
