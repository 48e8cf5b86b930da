// Package config loads the memestudio YAML configuration.
package config

import (
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/ggmeme/surface"
)

// Config holds the full memestudio configuration.
type Config struct {
	Listen         string        `yaml:"listen"`
	DBPath         string        `yaml:"db_path"`
	BackendURL     string        `yaml:"backend_url"`
	ShareURL       string        `yaml:"share_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LogLevel       string        `yaml:"log_level"`
	Editor         EditorConfig  `yaml:"editor"`
	Images         ImagesConfig  `yaml:"images"`
}

// EditorConfig configures new editing sessions.
type EditorConfig struct {
	Modality      string  `yaml:"modality"` // auto | precise | touch
	Grid          float64 `yaml:"grid"`     // 0 disables snapping
	AutoUppercase bool    `yaml:"auto_uppercase"`
}

// ImagesConfig configures image and font resolution.
type ImagesConfig struct {
	Root        string `yaml:"root"`         // directory for relative image refs
	AllowRemote bool   `yaml:"allow_remote"` // fetch http(s) refs
	FontDir     string `yaml:"font_dir"`     // extra TTFs named after font families
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// Default returns sane defaults.
func Default() *Config {
	return &Config{
		Listen:         ":8080",
		DBPath:         "ggmeme.db",
		ShareURL:       "http://localhost:8080/create",
		RequestTimeout: 15 * time.Second,
		LogLevel:       "info",
		Editor: EditorConfig{
			Modality: "auto",
		},
		Images: ImagesConfig{
			Root:        "images",
			AllowRemote: true,
			MaxUploadMB: 10,
		},
	}
}

// Load reads a YAML config file and returns Default merged with it.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.BackendURL != "" {
		if err := httpURL(c.BackendURL); err != nil {
			return fmt.Errorf("backend_url: %w", err)
		}
	}
	if err := httpURL(c.ShareURL); err != nil {
		return fmt.Errorf("share_url: %w", err)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be > 0")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if _, _, err := c.Modality(); err != nil {
		return err
	}
	if g := c.Editor.Grid; g < 0 || math.IsNaN(g) || math.IsInf(g, 0) {
		return fmt.Errorf("editor.grid must be >= 0")
	}
	if c.Images.MaxUploadMB <= 0 {
		return fmt.Errorf("images.max_upload_mb must be > 0")
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Modality returns the configured input modality. auto reports false and
// leaves detection to the client's capabilities.
func (c *Config) Modality() (m surface.Modality, fixed bool, err error) {
	if c.Editor.Modality == "" || c.Editor.Modality == "auto" {
		return surface.Precise, false, nil
	}
	m, ok := surface.ParseModality(c.Editor.Modality)
	if !ok {
		return 0, false, fmt.Errorf("editor.modality: unknown modality %q (use auto, precise or touch)", c.Editor.Modality)
	}
	return m, true, nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 { return int64(c.Images.MaxUploadMB) << 20 }

func httpURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) URL", raw)
	}
	return nil
}
