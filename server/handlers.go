package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gogpu/gg"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/caption"
	"github.com/gogpu/ggmeme/composition"
	"github.com/gogpu/ggmeme/ledger"
	"github.com/gogpu/ggmeme/remix"
	"github.com/gogpu/ggmeme/render"
	"github.com/gogpu/ggmeme/storage"
	"github.com/gogpu/ggmeme/studio"
	"github.com/gogpu/ggmeme/surface"
)

// maxJSON bounds a JSON request body.
const maxJSON = 1 << 20

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *studio.Session)

// withSession resolves the {sessionID} URL parameter.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.studio.Session(chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		h(w, r, sess)
	}
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSON))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("server: malformed request body: %v: %w", err, ggmeme.ErrValidation)
	}
	return nil
}

func layerID(r *http.Request) composition.ID {
	return composition.ID(chi.URLParam(r, "layerID"))
}

func sessionView(sess *studio.Session) map[string]any {
	return map[string]any{
		"id":       sess.ID(),
		"snapshot": sess.Snapshot(),
		"chrome":   sess.Chrome(),
	}
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{"presets": caption.Presets})
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{"templates": render.Templates})
}

type openRequest struct {
	Capabilities *surface.Capabilities `json:"capabilities,omitempty"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	var opts []surface.Option
	if req.Capabilities != nil {
		opts = append(opts, surface.WithModality(surface.DetectModality(*req.Capabilities)))
	}
	sess, err := s.studio.Open(r.Context(), opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, sessionView(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request, sess *studio.Session) {
	writeOK(w, sessionView(sess))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.studio.CloseSession(chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleLoadImage(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var m storage.RecentMeme
	if err := decode(r, &m); err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := sess.LoadImage(r.Context(), m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"snapshot": snap})
}

// formFile opens the named multipart file of r.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, string, error) {
	limit := s.studio.Options().MaxUpload
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, "", fmt.Errorf("server: multipart form: %v: %w", err, ggmeme.ErrValidation)
	}
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("server: form file %q: %v: %w", field, err, ggmeme.ErrValidation)
	}
	return f, hdr.Filename, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	f, name, err := s.formFile(w, r, "file")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()
	snap, err := sess.UploadImage(r.Context(), name, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"snapshot": snap})
}

// edit runs fn on the session composition and answers with the snapshot.
func edit(w http.ResponseWriter, r *http.Request, sess *studio.Session, fn func(*composition.Composition) (map[string]any, error)) {
	var out map[string]any
	err := sess.Edit(func(c *composition.Composition) error {
		var err error
		out, err = fn(c)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = map[string]any{}
	}
	out["snapshot"] = sess.Snapshot()
	writeOK(w, out)
}

type addTextRequest struct {
	AfterIndex *int `json:"afterIndex,omitempty"`
}

func (s *Server) handleAddText(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var req addTextRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	edit(w, r, sess, func(c *composition.Composition) (map[string]any, error) {
		var id composition.ID
		if req.AfterIndex != nil {
			id = c.InsertTextLayer(*req.AfterIndex)
		} else {
			id = c.AddTextLayer()
		}
		return map[string]any{"layer": id}, nil
	})
}

func (s *Server) handleUpdateCaption(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var cp caption.Caption
	if err := decode(r, &cp); err != nil {
		writeError(w, r, err)
		return
	}
	layer, err := sess.UpdateCaption(r.Context(), layerID(r), cp)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"layer": layer})
}

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	layer, err := sess.ApplyPreset(r.Context(), layerID(r), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"layer": layer})
}

// Geometry updates on locked or missing layers are no-ops and answer with
// changed=false.
func (s *Server) handleTextGeometry(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var rect composition.Rect
	if err := decode(r, &rect); err != nil {
		writeError(w, r, err)
		return
	}
	edit(w, r, sess, func(c *composition.Composition) (map[string]any, error) {
		return map[string]any{"changed": c.UpdateTextGeometry(layerID(r), rect)}, nil
	})
}

func (s *Server) handleRemoveText(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	edit(w, r, sess, func(c *composition.Composition) (map[string]any, error) {
		if !c.RemoveTextLayer(layerID(r)) {
			return nil, composition.ErrLayerNotFound
		}
		return nil, nil
	})
}

func (s *Server) handleAddSticker(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var p composition.StickerParams
	if err := decode(r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	edit(w, r, sess, func(c *composition.Composition) (map[string]any, error) {
		id, err := c.AddSticker(p)
		if err != nil {
			return nil, err
		}
		return map[string]any{"layer": id}, nil
	})
}

func (s *Server) handleStickerGeometry(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var req struct {
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
		Size float64 `json:"size"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	edit(w, r, sess, func(c *composition.Composition) (map[string]any, error) {
		return map[string]any{"changed": c.UpdateStickerGeometry(layerID(r), req.X, req.Y, req.Size)}, nil
	})
}

func (s *Server) handleRemoveSticker(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	edit(w, r, sess, func(c *composition.Composition) (map[string]any, error) {
		if !c.RemoveSticker(layerID(r)) {
			return nil, composition.ErrLayerNotFound
		}
		return nil, nil
	})
}

func (s *Server) handleClearStickers(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	edit(w, r, sess, func(c *composition.Composition) (map[string]any, error) {
		return map[string]any{"removed": c.ClearStickers()}, nil
	})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var req struct {
		Locked bool `json:"locked"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	edit(w, r, sess, func(c *composition.Composition) (map[string]any, error) {
		return map[string]any{"changed": c.SetLocked(layerID(r), req.Locked)}, nil
	})
}

func (s *Server) handleFront(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	edit(w, r, sess, func(c *composition.Composition) (map[string]any, error) {
		if !c.BringToFront(layerID(r)) {
			return nil, composition.ErrLayerNotFound
		}
		return nil, nil
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var ref composition.Ref
	if err := decode(r, &ref); err != nil {
		writeError(w, r, err)
		return
	}
	edit(w, r, sess, func(c *composition.Composition) (map[string]any, error) {
		return map[string]any{"changed": c.Select(ref)}, nil
	})
}

type pointerRequest struct {
	Type string  `json:"type"` // down | move | up
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var req pointerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p := gg.Pt(req.X, req.Y)
	out := map[string]any{}
	switch req.Type {
	case "down":
		out["target"] = sess.PointerDown(p)
	case "move":
		out["changed"] = sess.PointerMove(p)
	case "up":
		out["changed"] = sess.PointerUp(p)
	default:
		writeError(w, r, fmt.Errorf("server: unknown pointer event %q: %w", req.Type, ggmeme.ErrValidation))
		return
	}
	out["chrome"] = sess.Chrome()
	out["snapshot"] = sess.Snapshot()
	writeOK(w, out)
}

// writePNG answers with an attachment produced by export.
func writePNG(w http.ResponseWriter, r *http.Request, export func(io.Writer) (string, error)) {
	var buf bytes.Buffer
	name, err := export(&buf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	writePNG(w, r, func(out io.Writer) (string, error) {
		return sess.Export(r.Context(), out)
	})
}

type adjustRequest struct {
	Template    string              `json:"template"`
	Adjustments *render.Adjustments `json:"adjustments,omitempty"`
}

func (req adjustRequest) resolve() (render.Template, render.Adjustments, error) {
	t, ok := render.TemplateByName(req.Template)
	if !ok {
		return render.Template{}, render.Adjustments{}, fmt.Errorf("server: unknown template %q: %w", req.Template, ggmeme.ErrValidation)
	}
	a := render.DefaultAdjustments()
	if req.Adjustments != nil {
		a = *req.Adjustments
	}
	return t, a, nil
}

func (s *Server) handleSessionAdjust(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var req adjustRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, a, err := req.resolve()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePNG(w, r, func(out io.Writer) (string, error) {
		return sess.ExportAdjusted(r.Context(), t, a, out)
	})
}

// handleAdjust is the standalone image editor: a multipart form with the
// image in "file" and the template and adjustments as JSON in "options".
func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	f, filename, err := s.formFile(w, r, "file")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()
	var req adjustRequest
	if err := json.Unmarshal([]byte(r.FormValue("options")), &req); err != nil {
		writeError(w, r, fmt.Errorf("server: options: %v: %w", err, ggmeme.ErrValidation))
		return
	}
	t, a, err := req.resolve()
	if err != nil {
		writeError(w, r, err)
		return
	}
	src, _, err := render.Decode(f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePNG(w, r, func(out io.Writer) (string, error) {
		name, err := render.ExportAdjusted(src, t, a, filename, out)
		if err == nil {
			s.record(r.Context(), ledger.ActionDownload)
		}
		return name, err
	})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	token, link, err := sess.ShareToken(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"token": token, "link": link})
}

type remixRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleRemix(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var req remixRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := sess.Remix(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"snapshot": snap})
}

// handleRemixNew opens a session pre-populated from a share token. The
// token is validated before a session is created.
func (s *Server) handleRemixNew(w http.ResponseWriter, r *http.Request) {
	var req remixRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := remix.Decode(req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.studio.Open(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := sess.Remix(r.Context(), req.Token); err != nil {
		if cerr := s.studio.CloseSession(sess.ID()); cerr != nil {
			ggmeme.Logger().Warn("server: close remix session", "session", sess.ID(), "err", cerr)
		}
		writeError(w, r, err)
		return
	}
	writeOK(w, sessionView(sess))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var in studio.SaveInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := sess.Save(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"id": id})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	snap, err := s.studio.Ledger().ReadSnapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"ledger": snap})
}

func (s *Server) handleLedgerAction(w http.ResponseWriter, r *http.Request) {
	snap, err := s.studio.Ledger().RecordAction(r.Context(), ledger.Action(chi.URLParam(r, "action")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"ledger": snap})
}

func (s *Server) record(ctx context.Context, a ledger.Action) {
	if _, err := s.studio.Ledger().RecordAction(ctx, a); err != nil {
		ggmeme.Logger().Warn("server: ledger", "action", a, "err", err)
	}
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	list, err := s.studio.RecentMemes().List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"items": list})
}

func (s *Server) handlePalette(w http.ResponseWriter, r *http.Request) {
	colors, err := s.studio.Palette().Colors(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"colors": colors})
}
