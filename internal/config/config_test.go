package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/ggmeme/surface"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memestudio.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
backend_url: https://api.memes.example
request_timeout: 3s
log_level: debug
editor:
  modality: touch
  grid: 10
  auto_uppercase: true
images:
  font_dir: /usr/share/fonts/meme
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9090" || cfg.BackendURL != "https://api.memes.example" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.DBPath != "ggmeme.db" || cfg.Images.Root != "images" || !cfg.Images.AllowRemote {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if lvl, _ := cfg.SlogLevel(); lvl != slog.LevelDebug {
		t.Errorf("SlogLevel = %v", lvl)
	}
	if m, fixed, _ := cfg.Modality(); m != surface.Touch || !fixed {
		t.Errorf("Modality = %v, %v", m, fixed)
	}
	if !cfg.Editor.AutoUppercase || cfg.Editor.Grid != 10 {
		t.Errorf("editor = %+v", cfg.Editor)
	}
	if cfg.MaxUploadBytes() != 10<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes())
	}
}

func TestAutoModality(t *testing.T) {
	m, fixed, err := Default().Modality()
	if err != nil || fixed || m != surface.Precise {
		t.Errorf("Modality = %v, %v, %v", m, fixed, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"no db", func(c *Config) { c.DBPath = "" }, "db_path"},
		{"bad backend", func(c *Config) { c.BackendURL = "ftp://x" }, "backend_url"},
		{"bad share", func(c *Config) { c.ShareURL = "/create" }, "share_url"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad modality", func(c *Config) { c.Editor.Modality = "stylus" }, "editor.modality"},
		{"negative grid", func(c *Config) { c.Editor.Grid = -1 }, "editor.grid"},
		{"no upload", func(c *Config) { c.Images.MaxUploadMB = 0 }, "max_upload_mb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file: want error")
	}
	if _, err := Load(writeConfig(t, "listen: [")); err == nil {
		t.Error("malformed yaml: want error")
	}
	if _, err := Load(writeConfig(t, "request_timeout: -1s")); err == nil {
		t.Error("invalid value: want error")
	}
}
