package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"path"
	"sync"

	"github.com/gogpu/gg"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/api"
	"github.com/gogpu/ggmeme/caption"
	"github.com/gogpu/ggmeme/composition"
	"github.com/gogpu/ggmeme/ledger"
	"github.com/gogpu/ggmeme/remix"
	"github.com/gogpu/ggmeme/render"
	"github.com/gogpu/ggmeme/storage"
	"github.com/gogpu/ggmeme/surface"
)

// DefaultBoxCount is the number of caption slots for a meme without one.
const DefaultBoxCount = 2

// Session is one open editor. Its methods are safe for concurrent use.
type Session struct {
	id     string
	studio *Studio

	mu     sync.Mutex
	comp   *composition.Composition
	surf   *surface.Surface
	blob   string // live upload reference, if any
	closed bool
}

func newSession(st *Studio, id string, opts ...surface.Option) *Session {
	comp := composition.New(composition.Image{})
	base := []surface.Option{surface.WithModality(st.opts.Modality), surface.WithGrid(st.opts.Grid)}
	return &Session{
		id:     id,
		studio: st,
		comp:   comp,
		surf:   surface.New(comp, append(base, opts...)...),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current composition.
func (s *Session) Snapshot() composition.Snapshot { return s.comp.Snapshot() }

// Subscribe registers fn for composition events.
func (s *Session) Subscribe(fn func(composition.Event)) (cancel func()) {
	return s.comp.Subscribe(fn)
}

// Edit runs fn with exclusive access to the composition. Gestures in
// progress see the result through the surface's subscription.
func (s *Session) Edit(fn func(*composition.Composition) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return fn(s.comp)
}

// Close releases the session's upload and detaches the surface. Calling it
// again has no effect.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.releaseBlob()
	s.surf.Close()
	ggmeme.Logger().Info("studio: session closed", "session", s.id)
}

// releaseBlob revokes the live upload. Callers hold s.mu.
func (s *Session) releaseBlob() {
	if s.blob == "" {
		return
	}
	s.studio.blobs.Revoke(s.blob)
	s.blob = ""
}

// LoadImage starts a new composition over the meme's image with one
// caption slot per template box, and remembers the meme as recently used.
func (s *Session) LoadImage(ctx context.Context, m storage.RecentMeme) (composition.Snapshot, error) {
	if m.URL == "" {
		return composition.Snapshot{}, fmt.Errorf("studio: meme %q has no image: %w", m.Name, ggmeme.ErrValidation)
	}
	img, err := s.studio.loader.Load(ctx, m.URL)
	if err != nil {
		return composition.Snapshot{}, err
	}
	if m.ID == "" {
		m.ID = m.URL
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return composition.Snapshot{}, ErrSessionClosed
	}
	if s.blob != m.URL {
		s.releaseBlob()
	}
	s.reset(m.URL, m.Name, img.Bounds(), m.BoxCount)
	snap := s.comp.Snapshot()
	s.mu.Unlock()

	if _, err := s.studio.recent.Add(ctx, m); err != nil {
		ggmeme.Logger().Warn("studio: recent memes", "err", err)
	}
	return snap, nil
}

// UploadImage decodes an uploaded file and starts a new composition over
// it. The previous upload is revoked before the new reference is created.
func (s *Session) UploadImage(ctx context.Context, name string, r io.Reader) (composition.Snapshot, error) {
	limit := s.studio.opts.MaxUpload
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return composition.Snapshot{}, &render.ResourceError{Op: "upload", Ref: name, Err: err}
	}
	if int64(len(data)) > limit {
		return composition.Snapshot{}, fmt.Errorf("studio: upload exceeds %d bytes: %w", limit, ggmeme.ErrValidation)
	}
	img, _, err := render.Decode(bytes.NewReader(data))
	if err != nil {
		return composition.Snapshot{}, err
	}
	name = path.Base(name)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return composition.Snapshot{}, ErrSessionClosed
	}
	s.releaseBlob()
	s.blob = s.studio.blobs.Create(img)
	s.reset(s.blob, name, img.Bounds(), DefaultBoxCount)
	ref := s.blob
	snap := s.comp.Snapshot()
	s.mu.Unlock()

	m := storage.RecentMeme{ID: ref, Name: name, URL: ref, Source: "upload", BoxCount: DefaultBoxCount}
	if _, err := s.studio.recent.Add(ctx, m); err != nil {
		ggmeme.Logger().Warn("studio: recent memes", "err", err)
	}
	return snap, nil
}

// reset installs a new base image with n empty captions. Callers hold s.mu.
func (s *Session) reset(ref, name string, b image.Rectangle, n int) {
	if n <= 0 {
		n = DefaultBoxCount
	}
	s.comp.Reset(composition.Image{Ref: ref, Name: name, Width: b.Dx(), Height: b.Dy()})
	for range n {
		s.comp.AddTextLayer()
	}
}

// UpdateCaption changes the text and style of a caption, upper-casing the
// text when the studio is configured to, and counts an edit.
func (s *Session) UpdateCaption(ctx context.Context, id composition.ID, cp caption.Caption) (composition.TextLayer, error) {
	if s.studio.opts.AutoUppercase {
		cp.Text = caption.Uppercase(cp.Text)
	}
	var layer composition.TextLayer
	err := s.Edit(func(c *composition.Composition) error {
		if err := c.UpdateCaption(id, cp); err != nil {
			return err
		}
		layer, _ = c.TextLayer(id)
		return nil
	})
	if err != nil {
		return composition.TextLayer{}, err
	}
	s.remember(ctx, layer.Caption)
	s.record(ctx, ledger.ActionEdit)
	return layer, nil
}

// ApplyPreset applies the named preset to a caption.
func (s *Session) ApplyPreset(ctx context.Context, id composition.ID, name string) (composition.TextLayer, error) {
	p, ok := caption.PresetByName(name)
	if !ok {
		return composition.TextLayer{}, fmt.Errorf("studio: unknown preset %q: %w", name, ggmeme.ErrValidation)
	}
	var layer composition.TextLayer
	err := s.Edit(func(c *composition.Composition) error {
		if err := c.ApplyPreset(id, p); err != nil {
			return err
		}
		layer, _ = c.TextLayer(id)
		return nil
	})
	if err != nil {
		return composition.TextLayer{}, err
	}
	s.record(ctx, ledger.ActionEdit)
	return layer, nil
}

// remember adds the caption colours to the saved palette.
func (s *Session) remember(ctx context.Context, cp caption.Caption) {
	for _, c := range []string{cp.OutlineColor, cp.Color} {
		if _, err := s.studio.palette.Add(ctx, c); err != nil {
			ggmeme.Logger().Warn("studio: palette", "err", err)
			return
		}
	}
}

// PointerDown forwards a pointer press to the surface.
func (s *Session) PointerDown(p gg.Point) composition.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surf.PointerDown(p)
}

// PointerMove forwards pointer motion to the surface.
func (s *Session) PointerMove(p gg.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surf.PointerMove(p)
}

// PointerUp forwards a pointer release to the surface.
func (s *Session) PointerUp(p gg.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surf.PointerUp(p)
}

// ClearSelection deselects the current layer.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surf.ClearSelection()
}

// SetModality switches the input modality.
func (s *Session) SetModality(m surface.Modality) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surf.SetModality(m)
}

// Chrome returns the selection decoration.
func (s *Session) Chrome() surface.Chrome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surf.Chrome()
}

// Export renders the meme as PNG to w with the editor chrome hidden and
// counts a download. It returns the suggested file name.
func (s *Session) Export(ctx context.Context, w io.Writer) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	s.surf.SetExporting(true)
	snap := s.comp.Snapshot()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.surf.SetExporting(false)
		s.mu.Unlock()
	}()

	name, err := s.studio.compositor.Export(ctx, snap, w)
	if err != nil {
		return "", err
	}
	s.record(ctx, ledger.ActionDownload)
	return name, nil
}

// ExportAdjusted renders the base image alone into template t and counts a
// download.
func (s *Session) ExportAdjusted(ctx context.Context, t render.Template, a render.Adjustments, w io.Writer) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	img := s.comp.Image()
	s.mu.Unlock()
	if img.Ref == "" {
		return "", &render.ResourceError{Op: "adjust", Err: render.ErrImageNotFound}
	}
	src, err := s.studio.loader.Load(ctx, img.Ref)
	if err != nil {
		return "", err
	}
	name, err := render.ExportAdjusted(src, t, a, img.Name, w)
	if err != nil {
		return "", err
	}
	s.record(ctx, ledger.ActionDownload)
	return name, nil
}

// ShareToken encodes the composition and returns the token with its share
// link, counting a share.
func (s *Session) ShareToken(ctx context.Context) (token, link string, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", "", ErrSessionClosed
	}
	snap := s.comp.Snapshot()
	s.mu.Unlock()
	token, err = remix.Encode(snap)
	if err != nil {
		return "", "", err
	}
	link, err = remix.Link(s.studio.opts.ShareURL, token)
	if err != nil {
		return "", "", err
	}
	s.record(ctx, ledger.ActionShare)
	return token, link, nil
}

// Remix replaces the composition with the one encoded in token. Tokens
// that carry no image size get it from the loaded base image. On error
// the composition is unchanged.
func (s *Session) Remix(ctx context.Context, token string) (composition.Snapshot, error) {
	snap, err := remix.Decode(token)
	if err != nil {
		return composition.Snapshot{}, err
	}
	if snap.Image.Width == 0 || snap.Image.Height == 0 {
		img, err := s.studio.loader.Load(ctx, snap.Image.Ref)
		if err != nil {
			return composition.Snapshot{}, err
		}
		b := img.Bounds()
		snap.Image.Width, snap.Image.Height = b.Dx(), b.Dy()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return composition.Snapshot{}, ErrSessionClosed
	}
	if err := s.comp.ReplaceAll(snap); err != nil {
		return composition.Snapshot{}, err
	}
	if s.blob != "" && s.blob != snap.Image.Ref {
		s.releaseBlob()
	}
	return s.comp.Snapshot(), nil
}

// SaveInput describes a meme saved to the backend.
type SaveInput struct {
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	Public            bool     `json:"public"`
	GeneratedImageURL string   `json:"generatedImageUrl,omitempty"`
}

// Save stores the meme on the backend with its remix token as payload and
// counts a save. Uploaded base images are not sent.
func (s *Session) Save(ctx context.Context, in SaveInput) (string, error) {
	client := s.studio.client
	if client == nil {
		return "", ErrNoBackend
	}
	snap := s.comp.Snapshot()
	token, err := remix.Encode(snap)
	if err != nil {
		return "", err
	}
	payload, _ := json.Marshal(token)
	src := snap.Image.Ref
	if IsBlob(src) {
		src = ""
	}
	id, err := client.CreateMeme(ctx, api.MemeInput{
		Title:             in.Title,
		Description:       in.Description,
		SourceImageURL:    src,
		GeneratedImageURL: in.GeneratedImageURL,
		Payload:           payload,
		Tags:              in.Tags,
		IsPublic:          &in.Public,
	})
	if err != nil {
		return "", err
	}
	s.record(ctx, ledger.ActionSave)
	return id, nil
}

// record counts an action. Ledger failures never fail the action itself.
func (s *Session) record(ctx context.Context, a ledger.Action) {
	if _, err := s.studio.ledger.RecordAction(ctx, a); err != nil {
		ggmeme.Logger().Warn("studio: ledger", "action", a, "err", err)
	}
}
