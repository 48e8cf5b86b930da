// Package server exposes a studio over HTTP for a browser front-end.
//
// Every JSON response uses the backend's envelope: {"ok": true, ...data}
// on success and {"ok": false, "error": "..."} on failure. Exports answer
// with the PNG itself.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/studio"
)

var errNotFound = errors.New("server: not found")

// Server routes HTTP requests to a studio.
type Server struct {
	studio     *studio.Studio
	gallery    *studio.Gallery
	moderation *studio.Moderation
	router     chi.Router
}

// New returns a server for st.
func New(st *studio.Studio) *Server {
	s := &Server{
		studio:     st,
		gallery:    studio.NewGallery(st.Client()),
		moderation: studio.NewModeration(st.Client()),
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w, map[string]any{"version": ggmeme.Version})
	})
	r.Get("/presets", s.handlePresets)
	r.Get("/templates", s.handleTemplates)
	r.Post("/adjust", s.handleAdjust)
	r.Post("/remix", s.handleRemixNew)

	r.Get("/ledger", s.handleLedger)
	r.Post("/ledger/{action}", s.handleLedgerAction)
	r.Get("/recent", s.handleRecent)
	r.Get("/palette", s.handlePalette)

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)
	r.Get("/gallery", s.handleGallery)
	r.Delete("/gallery/{memeID}", s.handleGalleryRemove)
	r.Post("/memes/{memeID}/report", s.handleReport)

	r.Route("/moderation", func(r chi.Router) {
		r.Get("/memes", s.handleModerationQueue)
		r.Post("/memes/{memeID}", s.handleModerate)
		r.Get("/reports", s.handleReports)
		r.Post("/reports/{reportID}", s.handleReview)
		r.Get("/blacklist", s.handleBlacklist)
		r.Post("/blacklist", s.handleBlock)
		r.Delete("/blacklist/{entryID}", s.handleUnblock)
	})

	r.Post("/sessions", s.handleOpen)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.withSession(s.handleGetSession))
		r.Delete("/", s.handleCloseSession)
		r.Post("/image", s.withSession(s.handleLoadImage))
		r.Post("/upload", s.withSession(s.handleUpload))

		r.Post("/text", s.withSession(s.handleAddText))
		r.Put("/text/{layerID}", s.withSession(s.handleUpdateCaption))
		r.Put("/text/{layerID}/geometry", s.withSession(s.handleTextGeometry))
		r.Post("/text/{layerID}/preset", s.withSession(s.handlePreset))
		r.Delete("/text/{layerID}", s.withSession(s.handleRemoveText))

		r.Post("/stickers", s.withSession(s.handleAddSticker))
		r.Put("/stickers/{layerID}", s.withSession(s.handleStickerGeometry))
		r.Delete("/stickers/{layerID}", s.withSession(s.handleRemoveSticker))
		r.Delete("/stickers", s.withSession(s.handleClearStickers))

		r.Post("/layers/{kind}/{layerID}/lock", s.withSession(s.handleLock))
		r.Post("/layers/{kind}/{layerID}/front", s.withSession(s.handleFront))
		r.Post("/select", s.withSession(s.handleSelect))
		r.Post("/pointer", s.withSession(s.handlePointer))

		r.Post("/export", s.withSession(s.handleExport))
		r.Post("/adjust", s.withSession(s.handleSessionAdjust))
		r.Get("/share", s.withSession(s.handleShare))
		r.Post("/remix", s.withSession(s.handleRemix))
		r.Post("/save", s.withSession(s.handleSave))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errNotFound)
	})
	return r
}

// requestLogger logs each request at debug level through the ggmeme logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		ggmeme.Logger().LogAttrs(r.Context(), slog.LevelDebug, "server: request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	ggmeme.Logger().Info("server: listening", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	ggmeme.Logger().Info("server: stopped")
	return nil
}
