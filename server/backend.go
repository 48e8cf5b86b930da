package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/api"
	"github.com/gogpu/ggmeme/studio"
)

// Handlers in this file proxy the backend through the studio's client.

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.studio.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.studio.Logout(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	view := studio.ViewPublic
	switch v := r.URL.Query().Get("view"); v {
	case "", "public":
	case "own":
		view = studio.ViewOwn
	default:
		writeError(w, r, fmt.Errorf("server: unknown gallery view %q: %w", v, ggmeme.ErrValidation))
		return
	}
	items, err := s.gallery.Load(r.Context(), view, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"items": items})
}

func (s *Server) handleGalleryRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.gallery.Remove(r.Context(), chi.URLParam(r, "memeID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason  string `json:"reason"`
		Details string `json:"details"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.moderation.Report(r.Context(), chi.URLParam(r, "memeID"), req.Reason, req.Details); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleModerationQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.moderation.Queue(r.Context(), r.URL.Query().Get("status"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"items": items})
}

func (s *Server) handleModerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "memeID")
	var err error
	switch req.Status {
	case api.StatusApproved:
		err = s.moderation.Approve(r.Context(), id)
	case api.StatusRejected:
		err = s.moderation.Reject(r.Context(), id, req.Reason)
	default:
		err = fmt.Errorf("server: unknown status %q: %w", req.Status, ggmeme.ErrValidation)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	items, err := s.moderation.Reports(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"items": items})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"` // resolve | dismiss
		MemeID string `json:"memeId"`
		Reason string `json:"reason"`
		Reject bool   `json:"reject"`
		Note   string `json:"note"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "reportID")
	var err error
	switch req.Action {
	case "resolve":
		err = s.moderation.Resolve(r.Context(), api.Report{ID: id, MemeID: req.MemeID, Reason: req.Reason}, req.Reject, req.Note)
	case "dismiss":
		err = s.moderation.Dismiss(r.Context(), id, req.Note)
	default:
		err = fmt.Errorf("server: unknown review action %q: %w", req.Action, ggmeme.ErrValidation)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	items, err := s.moderation.Blacklist(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"items": items})
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Term   string `json:"term"`
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.moderation.Block(r.Context(), req.Term, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"id": id})
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	if err := s.moderation.Unblock(r.Context(), chi.URLParam(r, "entryID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}
