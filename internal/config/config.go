package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/textanchor/internal/layout"
	"github.com/dgallion1/textanchor/internal/overlay"
)

type Config struct {
	Port string

	// Annotation store
	DatabasePath string

	// Auth
	APIKey string

	// Layout
	FontSize       float64
	LineHeight     float64
	ContainerWidth float64

	// Overlay
	HoverTolerance float64
	ControlWidth   float64
	ControlHeight  float64

	// Session state
	SessionTTL time.Duration

	// Upload limits
	MaxUploadBytes int64

	LogLevel slog.Level
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		DatabasePath: envOr("DATABASE_PATH", "textanchor.db"),

		APIKey: os.Getenv("API_KEY"),

		FontSize:       envFloat("FONT_SIZE", 16),
		LineHeight:     envFloat("LINE_HEIGHT", 20),
		ContainerWidth: envFloat("CONTAINER_WIDTH", 640),

		HoverTolerance: envFloat("HOVER_TOLERANCE", 2),
		ControlWidth:   envFloat("CONTROL_WIDTH", 40),
		ControlHeight:  envFloat("CONTROL_HEIGHT", 16),

		SessionTTL: envDuration("SESSION_TTL", 1*time.Hour),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 5242880), // 5MB

		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if cfg.FontSize <= 0 {
		cfg.FontSize = 16
	}
	if cfg.LineHeight <= 0 {
		cfg.LineHeight = 20
	}
	if cfg.ContainerWidth <= 0 {
		cfg.ContainerWidth = 640
	}
	if cfg.HoverTolerance < 0 {
		cfg.HoverTolerance = 2
	}
	if cfg.ControlWidth <= 0 {
		cfg.ControlWidth = 40
	}
	if cfg.ControlHeight <= 0 {
		cfg.ControlHeight = 16
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5242880
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
}

// Layout returns the layout options for content roots.
func (c Config) Layout() layout.Options {
	return layout.Options{
		FontSize:   c.FontSize,
		LineHeight: c.LineHeight,
		Width:      c.ContainerWidth,
	}
}

// Overlay returns the overlay rendering and hit-test options.
func (c Config) Overlay() overlay.Options {
	opts := overlay.DefaultOptions()
	opts.HoverTolerance = c.HoverTolerance
	opts.ControlWidth = c.ControlWidth
	opts.ControlHeight = c.ControlHeight
	return opts
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(strings.TrimSpace(v))); err == nil {
			return l
		}
	}
	return fallback
}
