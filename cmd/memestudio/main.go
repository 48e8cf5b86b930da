// Command memestudio serves the meme editor API over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/api"
	"github.com/gogpu/ggmeme/internal/config"
	"github.com/gogpu/ggmeme/render"
	"github.com/gogpu/ggmeme/server"
	"github.com/gogpu/ggmeme/storage"
	"github.com/gogpu/ggmeme/studio"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "YAML config file (defaults when empty)")
		listen  = flag.String("listen", "", "listen address, overrides the config")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	ggmeme.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	logger := ggmeme.Logger()

	store, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	fonts := render.NewFontBook()
	if cfg.Images.FontDir != "" {
		n, err := fonts.LoadDir(cfg.Images.FontDir)
		if err != nil {
			return err
		}
		logger.Info("memestudio: fonts loaded", "dir", cfg.Images.FontDir, "count", n)
	}

	images := render.SchemeLoader{Local: render.FileLoader{Root: cfg.Images.Root}}
	if cfg.Images.AllowRemote {
		images.Remote = render.HTTPLoader{Client: &http.Client{Timeout: cfg.RequestTimeout}}
	}

	var client *api.Client
	if cfg.BackendURL != "" {
		client, err = api.New(cfg.BackendURL,
			api.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
			api.WithTokenSource(storage.NewAuthToken(store)),
		)
		if err != nil {
			return err
		}
	} else {
		logger.Info("memestudio: no backend_url, saving and galleries disabled")
	}

	modality, _, err := cfg.Modality()
	if err != nil {
		return err
	}
	st := studio.New(studio.Deps{
		Store:  store,
		Fonts:  fonts,
		Images: images,
		Client: client,
	}, studio.Options{
		Modality:      modality,
		Grid:          cfg.Editor.Grid,
		AutoUppercase: cfg.Editor.AutoUppercase,
		ShareURL:      cfg.ShareURL,
		MaxUpload:     cfg.MaxUploadBytes(),
	})
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.ListenAndServe(ctx, cfg.Listen, server.New(st))
}
