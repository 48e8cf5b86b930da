package studio

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gg"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/api"
	"github.com/gogpu/ggmeme/caption"
	"github.com/gogpu/ggmeme/composition"
	"github.com/gogpu/ggmeme/ledger"
	"github.com/gogpu/ggmeme/render"
	"github.com/gogpu/ggmeme/storage"
)

var testDay = time.Date(2026, 5, 2, 15, 0, 0, 0, time.UTC)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h, color.RGBA{G: 200, A: 255})); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fixture struct {
	studio *Studio
	store  *storage.Memory
}

func newFixture(t *testing.T, opts Options, client *api.Client) *fixture {
	t.Helper()
	store := storage.NewMemory()
	st := New(Deps{
		Store:  store,
		Images: render.MapLoader{"templates/drake.png": solid(200, 100, color.White)},
		Client: client,
		Ledger: []ledger.Option{ledger.WithClock(func() time.Time { return testDay })},
	}, opts)
	t.Cleanup(st.Close)
	return &fixture{studio: st, store: store}
}

func (f *fixture) open(t *testing.T) *Session {
	t.Helper()
	s, err := f.studio.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func (f *fixture) totals(t *testing.T) map[ledger.Action]int {
	t.Helper()
	snap, err := f.studio.Ledger().ReadSnapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return snap.ActionTotals
}

func TestSessions(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	s := f.open(t)
	got, err := f.studio.Session(s.ID())
	if err != nil || got != s {
		t.Fatalf("Session(%q) = %v, %v", s.ID(), got, err)
	}
	if err := f.studio.CloseSession(s.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.studio.Session(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("closed session still listed: %v", err)
	}
	if err := f.studio.CloseSession(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second close = %v", err)
	}
	if err := s.Edit(func(*composition.Composition) error { return nil }); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Edit after close = %v", err)
	}
}

func TestUploadRevokesPrevious(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	s := f.open(t)
	ctx := context.Background()
	blobs := f.studio.Blobs()

	first, err := s.UploadImage(ctx, "cat.png", bytes.NewReader(pngBytes(t, 40, 30)))
	if err != nil {
		t.Fatal(err)
	}
	if !IsBlob(first.Image.Ref) || first.Image.Width != 40 || first.Image.Height != 30 {
		t.Fatalf("image = %+v", first.Image)
	}
	if len(first.TextLayers) != DefaultBoxCount {
		t.Errorf("%d captions, want %d", len(first.TextLayers), DefaultBoxCount)
	}

	second, err := s.UploadImage(ctx, "dir/dog.png", bytes.NewReader(pngBytes(t, 20, 20)))
	if err != nil {
		t.Fatal(err)
	}
	if blobs.Len() != 1 {
		t.Errorf("%d live blobs, want 1", blobs.Len())
	}
	if _, err := blobs.Load(ctx, first.Image.Ref); !errors.Is(err, render.ErrImageNotFound) {
		t.Error("superseded upload still loadable")
	}
	if second.Image.Name != "dog.png" {
		t.Errorf("name = %q", second.Image.Name)
	}

	s.Close()
	s.Close()
	if blobs.Len() != 0 {
		t.Errorf("%d live blobs after close", blobs.Len())
	}
}

func TestLoadImageReleasesUpload(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	s := f.open(t)
	ctx := context.Background()

	if _, err := s.UploadImage(ctx, "mine.png", bytes.NewReader(pngBytes(t, 10, 10))); err != nil {
		t.Fatal(err)
	}
	snap, err := s.LoadImage(ctx, storage.RecentMeme{ID: "181913649", Name: "Drake", URL: "templates/drake.png", BoxCount: 3})
	if err != nil {
		t.Fatal(err)
	}
	if f.studio.Blobs().Len() != 0 {
		t.Error("upload not revoked when a template replaced it")
	}
	if len(snap.TextLayers) != 3 || snap.Image.Width != 200 {
		t.Errorf("snapshot = %+v", snap)
	}

	list, _ := f.studio.RecentMemes().List(ctx)
	if len(list) != 2 || list[0].ID != "181913649" || !list[1].Transient() {
		t.Errorf("recent = %+v", list)
	}
	var persisted []storage.RecentMeme
	if _, err := storage.GetJSON(ctx, f.store, storage.KeyRecentMemes, &persisted); err != nil {
		t.Fatal(err)
	}
	if len(persisted) != 1 || persisted[0].ID != "181913649" {
		t.Errorf("persisted = %+v", persisted)
	}

	if _, err := s.LoadImage(ctx, storage.RecentMeme{Name: "gone", URL: "templates/gone.png"}); !errors.Is(err, ggmeme.ErrResource) {
		t.Errorf("missing template: err = %v", err)
	}
	if _, err := s.LoadImage(ctx, storage.RecentMeme{Name: "empty"}); !errors.Is(err, ggmeme.ErrValidation) {
		t.Errorf("empty URL: err = %v", err)
	}
}

func TestUploadRejects(t *testing.T) {
	f := newFixture(t, Options{MaxUpload: 64}, nil)
	s := f.open(t)
	ctx := context.Background()

	if _, err := s.UploadImage(ctx, "big.png", bytes.NewReader(make([]byte, 65))); !errors.Is(err, ggmeme.ErrValidation) {
		t.Errorf("oversized: err = %v", err)
	}
	if _, err := s.UploadImage(ctx, "notes.txt", strings.NewReader("hello")); !errors.Is(err, ggmeme.ErrResource) {
		t.Errorf("undecodable: err = %v", err)
	}
	if f.studio.Blobs().Len() != 0 {
		t.Error("failed upload created a blob")
	}
}

func TestExportRecordsDownload(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	s := f.open(t)
	ctx := context.Background()
	snap, err := s.LoadImage(ctx, storage.RecentMeme{ID: "d", Name: "Drake", URL: "templates/drake.png"})
	if err != nil {
		t.Fatal(err)
	}
	s.Edit(func(c *composition.Composition) error {
		c.Select(composition.TextRef(snap.TextLayers[0].ID))
		return nil
	})

	var buf bytes.Buffer
	name, err := s.Export(ctx, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if name != "drake-meme.png" {
		t.Errorf("name = %q", name)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 100 {
		t.Errorf("bounds = %v", img.Bounds())
	}
	if !s.Chrome().Visible {
		t.Error("chrome stays hidden after export")
	}
	if got := f.totals(t)[ledger.ActionDownload]; got != 1 {
		t.Errorf("downloads = %d, want 1", got)
	}
}

func TestExportFailureRecordsNothing(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	s := f.open(t)
	var buf bytes.Buffer
	if _, err := s.Export(context.Background(), &buf); err == nil {
		t.Fatal("export without image succeeded")
	}
	if buf.Len() != 0 {
		t.Error("failed export wrote output")
	}
	if got := f.totals(t)[ledger.ActionDownload]; got != 0 {
		t.Errorf("downloads = %d, want 0", got)
	}
}

func TestExportAdjusted(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	s := f.open(t)
	ctx := context.Background()
	if _, err := s.UploadImage(ctx, "Holiday Pic.png", bytes.NewReader(pngBytes(t, 50, 100))); err != nil {
		t.Fatal(err)
	}
	tmpl, _ := render.TemplateByName("square")
	var buf bytes.Buffer
	name, err := s.ExportAdjusted(ctx, tmpl, render.DefaultAdjustments(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if name != "holiday-pic-edited.png" {
		t.Errorf("name = %q", name)
	}
	cfg, err := png.DecodeConfig(&buf)
	if err != nil || cfg.Width != tmpl.Width || cfg.Height != tmpl.Height {
		t.Errorf("config = %+v, %v", cfg, err)
	}
	if got := f.totals(t)[ledger.ActionDownload]; got != 1 {
		t.Errorf("downloads = %d", got)
	}
}

func TestUpdateCaption(t *testing.T) {
	f := newFixture(t, Options{AutoUppercase: true}, nil)
	s := f.open(t)
	ctx := context.Background()
	snap, _ := s.LoadImage(ctx, storage.RecentMeme{ID: "d", URL: "templates/drake.png"})
	id := snap.TextLayers[0].ID

	cp := caption.Default()
	cp.Text = "one does not simply"
	cp.Color = "#facc15"
	layer, err := s.UpdateCaption(ctx, id, cp)
	if err != nil {
		t.Fatal(err)
	}
	if layer.Caption.Text != "ONE DOES NOT SIMPLY" {
		t.Errorf("text = %q", layer.Caption.Text)
	}
	colors, _ := f.studio.Palette().Colors(ctx)
	if len(colors) != 2 || colors[0] != "#facc15" {
		t.Errorf("palette = %v", colors)
	}

	cp.FontFamily = "Wingdings"
	if _, err := s.UpdateCaption(ctx, id, cp); !errors.Is(err, ggmeme.ErrValidation) {
		t.Errorf("bad font: err = %v", err)
	}
	if _, err := s.ApplyPreset(ctx, id, "Neon"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApplyPreset(ctx, id, "Vaporwave"); !errors.Is(err, ggmeme.ErrValidation) {
		t.Errorf("unknown preset: err = %v", err)
	}
	if got := f.totals(t)[ledger.ActionEdit]; got != 2 {
		t.Errorf("edits = %d, want 2", got)
	}
}

func TestShareAndRemix(t *testing.T) {
	f := newFixture(t, Options{ShareURL: "https://memes.example/create"}, nil)
	ctx := context.Background()
	a := f.open(t)
	snap, _ := a.LoadImage(ctx, storage.RecentMeme{ID: "d", URL: "templates/drake.png"})
	cp := caption.Default()
	cp.Text = "remix me"
	if _, err := a.UpdateCaption(ctx, snap.TextLayers[1].ID, cp); err != nil {
		t.Fatal(err)
	}

	token, link, err := a.ShareToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(link, "https://memes.example/create?remix=") {
		t.Errorf("link = %q", link)
	}
	if got := f.totals(t)[ledger.ActionShare]; got != 1 {
		t.Errorf("shares = %d", got)
	}

	b := f.open(t)
	got, err := b.Remix(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if got.TextLayers[1].Caption.Text != "remix me" || got.Image.Ref != "templates/drake.png" {
		t.Errorf("remixed = %+v", got)
	}

	before := b.Snapshot()
	if _, err := b.Remix(ctx, token[:len(token)-4]); !errors.Is(err, ggmeme.ErrValidation) {
		t.Errorf("tampered token: err = %v", err)
	}
	after := b.Snapshot()
	if len(after.TextLayers) != len(before.TextLayers) || after.TextLayers[1].Caption.Text != "remix me" {
		t.Error("failed remix changed the composition")
	}
}

func TestRemixReleasesUpload(t *testing.T) {
	f := newFixture(t, Options{ShareURL: "https://memes.example/create"}, nil)
	ctx := context.Background()
	src := f.open(t)
	src.LoadImage(ctx, storage.RecentMeme{ID: "d", URL: "templates/drake.png"})
	token, _, _ := src.ShareToken(ctx)

	s := f.open(t)
	if _, err := s.UploadImage(ctx, "x.png", bytes.NewReader(pngBytes(t, 8, 8))); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Remix(ctx, token); err != nil {
		t.Fatal(err)
	}
	if f.studio.Blobs().Len() != 0 {
		t.Error("upload kept after remix replaced it")
	}
}

// editToken rewrites the JSON payload of a share token.
func editToken(t *testing.T, token string, fn func(map[string]any)) string {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	fn(m)
	raw, err = json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func TestRemixWithoutImageSize(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	src := f.open(t)
	snap, _ := src.LoadImage(ctx, storage.RecentMeme{ID: "d", URL: "templates/drake.png"})
	id := snap.TextLayers[0].ID
	err := src.Edit(func(c *composition.Composition) error {
		c.RemoveTextLayer(snap.TextLayers[1].ID)
		c.UpdateTextGeometry(id, composition.Rect{X: 50, Y: 20, Width: 80, Height: 30})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	token, _, err := src.ShareToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	token = editToken(t, token, func(m map[string]any) {
		delete(m, "width")
		delete(m, "height")
	})

	s := f.open(t)
	got, err := s.Remix(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if got.Image.Width != 200 || got.Image.Height != 100 {
		t.Fatalf("image = %dx%d, want 200x100", got.Image.Width, got.Image.Height)
	}
	if ref := s.PointerDown(gg.Pt(60, 30)); ref != composition.TextRef(id) {
		t.Fatalf("PointerDown hit %v", ref)
	}
	s.PointerMove(gg.Pt(70, 35))
	s.PointerUp(gg.Pt(70, 35))
	l, _ := s.Snapshot().Text(id)
	if l.X != 60 || l.Y != 25 {
		t.Errorf("after drag at %v,%v, want 60,25", l.X, l.Y)
	}

	missing := editToken(t, token, func(m map[string]any) { m["imageUrl"] = "templates/gone.png" })
	before := s.Snapshot()
	if _, err := s.Remix(ctx, missing); err == nil {
		t.Fatal("remix of an unloadable image succeeded")
	}
	if after := s.Snapshot(); after.Image != before.Image || len(after.TextLayers) != len(before.TextLayers) {
		t.Errorf("failed remix changed the composition: %+v", after.Image)
	}
}

func TestClosedSessionRefusesOutput(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	s := f.open(t)
	s.LoadImage(ctx, storage.RecentMeme{ID: "d", URL: "templates/drake.png"})
	s.Close()
	if _, _, err := s.ShareToken(ctx); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("ShareToken after close = %v", err)
	}
	sq, _ := render.TemplateByName("square")
	if _, err := s.ExportAdjusted(ctx, sq, render.DefaultAdjustments(), io.Discard); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("ExportAdjusted after close = %v", err)
	}
	if got := f.totals(t); got[ledger.ActionShare] != 0 || got[ledger.ActionDownload] != 0 {
		t.Errorf("closed session counted actions: %v", got)
	}
}

func TestPointerDrag(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	s := f.open(t)
	s.LoadImage(context.Background(), storage.RecentMeme{ID: "d", URL: "templates/drake.png"})
	var id composition.ID
	err := s.Edit(func(c *composition.Composition) error {
		var err error
		id, err = c.AddSticker(composition.StickerParams{Kind: composition.StickerEmoji, Emoji: "😂", X: 20, Y: 20, Size: 30})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	if ref := s.PointerDown(gg.Pt(35, 35)); ref != composition.StickerRef(id) {
		t.Fatalf("PointerDown hit %v", ref)
	}
	s.PointerMove(gg.Pt(45, 40))
	s.PointerUp(gg.Pt(45, 40))
	st, _ := s.Snapshot().Sticker(id)
	if st.X != 30 || st.Y != 25 {
		t.Errorf("sticker at %v,%v, want 30,25", st.X, st.Y)
	}
	if c := s.Chrome(); !c.Visible || c.Ref != composition.StickerRef(id) {
		t.Errorf("chrome = %+v", c)
	}
	s.ClearSelection()
	if s.Chrome().Visible {
		t.Error("chrome visible without selection")
	}
}

func TestSaveWithoutBackend(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	s := f.open(t)
	if _, err := s.Save(context.Background(), SaveInput{Title: "x"}); !errors.Is(err, ErrNoBackend) {
		t.Errorf("err = %v", err)
	}
	if _, err := NewGallery(nil).Load(context.Background(), ViewPublic, 0); !errors.Is(err, ErrNoBackend) {
		t.Errorf("gallery err = %v", err)
	}
	if err := NewModeration(nil).Approve(context.Background(), "m"); !errors.Is(err, ErrNoBackend) {
		t.Errorf("moderation err = %v", err)
	}
}

func newBackend(t *testing.T, h http.HandlerFunc) *api.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := api.New(srv.URL, api.WithHTTPClient(srv.Client()), api.WithTokenSource(api.StaticToken("tok")))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSave(t *testing.T) {
	var body map[string]any
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		io.WriteString(w, `{"ok":true,"id":"m1"}`)
	})
	f := newFixture(t, Options{}, client)
	s := f.open(t)
	ctx := context.Background()
	if _, err := s.UploadImage(ctx, "u.png", bytes.NewReader(pngBytes(t, 10, 10))); err != nil {
		t.Fatal(err)
	}
	id, err := s.Save(ctx, SaveInput{Title: "Mine", Public: true})
	if err != nil || id != "m1" {
		t.Fatalf("Save = %q, %v", id, err)
	}
	if _, has := body["source_image_url"]; has {
		t.Error("blob reference sent to backend")
	}
	token, _ := body["payload"].(string)
	if token == "" {
		t.Fatalf("payload = %v", body["payload"])
	}
	if f.totals(t)[ledger.ActionSave] != 1 {
		t.Error("save not counted")
	}
}

func TestGallerySupersededResponse(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") == "1" {
			once.Do(func() { close(arrived) })
			<-release
			io.WriteString(w, `{"ok":true,"items":[{"id":"stale"}]}`)
			return
		}
		io.WriteString(w, `{"ok":true,"items":[{"id":"fresh"}]}`)
	})
	g := NewGallery(client)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := g.Load(ctx, ViewPublic, 1)
		done <- err
	}()
	<-arrived
	items, err := g.Load(ctx, ViewPublic, 2)
	if err != nil || len(items) != 1 || items[0].ID != "fresh" {
		t.Fatalf("newer load = %+v, %v", items, err)
	}
	close(release)
	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Errorf("stale load err = %v, want ErrSuperseded", err)
	}
	st := g.State()
	if len(st.Items) != 1 || st.Items[0].ID != "fresh" || st.Loading {
		t.Errorf("state = %+v", st)
	}
}

func TestGalleryErrorAndRemove(t *testing.T) {
	fail := true
	var mu sync.Mutex
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodDelete:
			io.WriteString(w, `{"ok":true,"deleted":true}`)
		case fail:
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"ok":false,"error":"backend down"}`)
		default:
			io.WriteString(w, `{"ok":true,"items":[{"id":"a"},{"id":"b"}]}`)
		}
	})
	g := NewGallery(client)
	ctx := context.Background()

	if _, err := g.Load(ctx, ViewOwn, 0); err == nil {
		t.Fatal("want error")
	}
	if st := g.State(); st.Message != "backend down" {
		t.Errorf("message = %q", st.Message)
	}
	mu.Lock()
	fail = false
	mu.Unlock()
	if _, err := g.Load(ctx, ViewOwn, 0); err != nil {
		t.Fatal(err)
	}
	if err := g.Remove(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	st := g.State()
	if len(st.Items) != 1 || st.Items[0].ID != "b" || st.Message != "" || st.View != ViewOwn {
		t.Errorf("state = %+v", st)
	}
}

func TestModeration(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		io.WriteString(w, `{"ok":true}`)
	})
	m := NewModeration(client)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"unknown reason", func() error { return m.Report(ctx, "m1", "boring", "") }},
		{"other without details", func() error { return m.Report(ctx, "m1", "other", " ") }},
		{"reject without reason", func() error { return m.Reject(ctx, "m1", "") }},
	}
	for _, tt := range tests {
		if err := tt.call(); !errors.Is(err, ggmeme.ErrValidation) {
			t.Errorf("%s: err = %v", tt.name, err)
		}
	}

	if err := m.Report(ctx, "m1", "spam", ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Resolve(ctx, api.Report{ID: "r1", MemeID: "m1", Reason: "spam"}, true, "gone"); err != nil {
		t.Fatal(err)
	}
	want := []string{"POST /memes/m1/report", "POST /moderation/memes/m1", "POST /moderation/reports/r1"}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("requests = %v, want %v", paths, want)
	}
}
