package config

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/cropkit/internal/log"
	"github.com/menta2k/cropkit/pkg/render"
	"github.com/menta2k/cropkit/pkg/selection"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CROPKIT_"

// Config holds the application configuration
type Config struct {
	Display   DisplayConfig   `yaml:"display"`
	Selection SelectionConfig `yaml:"selection"`
	Render    RenderConfig    `yaml:"render"`
	Output    OutputConfig    `yaml:"output"`
	Suggest   SuggestConfig   `yaml:"suggest"`
	Log       LogConfig       `yaml:"log"`
}

// DisplayConfig controls how large the crop canvas may get
type DisplayConfig struct {
	MaxWidth          float64 `yaml:"max_width"`
	MaxHeight         float64 `yaml:"max_height"`
	ContainerFraction float64 `yaml:"container_fraction"`
	WindowFraction    float64 `yaml:"window_fraction"`
	// Used by headless runs that have no real container
	ContainerWidth float64 `yaml:"container_width"`
	WindowHeight   float64 `yaml:"window_height"`
}

// SelectionConfig holds selection defaults
type SelectionConfig struct {
	MinExtent float64 `yaml:"min_extent"`
	Ratio     string  `yaml:"ratio"`
}

// RenderConfig holds the overlay look
type RenderConfig struct {
	OverlayAlpha     uint8  `yaml:"overlay_alpha"`
	BorderColor      string `yaml:"border_color"`
	BorderWidth      int    `yaml:"border_width"`
	Dash             []int  `yaml:"dash"`
	PreviewMaxExtent int    `yaml:"preview_max_extent"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	Suffix       string `yaml:"suffix"`
	Overwrite    bool   `yaml:"overwrite"`
	JPEGQuality  int    `yaml:"jpeg_quality"`
	WebPLossless bool   `yaml:"webp_lossless"`
}

// SuggestConfig selects and configures the selection suggester
type SuggestConfig struct {
	Backend     string        `yaml:"backend"` // smartcrop, faces, ollama or llamacpp
	Model       string        `yaml:"model"`
	OllamaURL   string        `yaml:"ollama_url"`
	LlamaCppURL string        `yaml:"llamacpp_url"`
	SendFormat  string        `yaml:"send_format"`
	SendSize    int           `yaml:"send_size"`
	SendQuality int           `yaml:"send_quality"`
	Zoom        float64       `yaml:"zoom"`
	Timeout     time.Duration `yaml:"timeout"`

	// pigo cascade used by the faces backend
	CascadeFile    string  `yaml:"cascade_file"`
	FaceConfidence float64 `yaml:"face_confidence"`
}

// LogConfig holds logging output settings
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Debug      bool   `yaml:"debug"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Display: DisplayConfig{
			MaxWidth:          1200,
			MaxHeight:         800,
			ContainerFraction: 0.65,
			WindowFraction:    0.75,
			ContainerWidth:    1920,
			WindowHeight:      1080,
		},
		Selection: SelectionConfig{
			MinExtent: selection.DefaultMinExtent,
			Ratio:     "free",
		},
		Render: RenderConfig{
			OverlayAlpha:     128,
			BorderColor:      "#667eea",
			BorderWidth:      2,
			Dash:             []int{5, 5},
			PreviewMaxExtent: 180,
		},
		Output: OutputConfig{
			Dir:         "",
			Suffix:      "_cropped",
			JPEGQuality: 95,
		},
		Suggest: SuggestConfig{
			Backend:     "smartcrop",
			Model:       "openbmb/minicpm-v4.5",
			OllamaURL:   "http://localhost:11435/api/chat",
			LlamaCppURL: "http://localhost:8080",
			SendFormat:  "jpg",
			SendSize:    1536,
			SendQuality: 85,
			Zoom:        1.0,
			Timeout:     5 * time.Minute,

			FaceConfidence: 10,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 2,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Load reads filename when it exists, falls back to defaults otherwise, then
// applies environment overrides and validates.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			if cfg, err = LoadFromFile(filename); err != nil {
				return nil, err
			}
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides values from CROPKIT_* variables found through lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	var err error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok && err == nil {
			var b bool
			if b, err = strconv.ParseBool(v); err != nil {
				err = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && err == nil {
			var n int
			if n, err = strconv.Atoi(v); err != nil {
				err = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
				return
			}
			*dst = n
		}
	}

	str("OUTPUT_DIR", &c.Output.Dir)
	str("OUTPUT_SUFFIX", &c.Output.Suffix)
	boolean("OUTPUT_OVERWRITE", &c.Output.Overwrite)
	integer("JPEG_QUALITY", &c.Output.JPEGQuality)
	str("RATIO", &c.Selection.Ratio)
	str("SUGGEST_BACKEND", &c.Suggest.Backend)
	str("SUGGEST_MODEL", &c.Suggest.Model)
	str("OLLAMA_URL", &c.Suggest.OllamaURL)
	str("LLAMACPP_URL", &c.Suggest.LlamaCppURL)
	str("CASCADE_FILE", &c.Suggest.CascadeFile)
	str("LOG_FILE", &c.Log.File)
	boolean("DEBUG", &c.Log.Debug)
	return err
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Display.MaxWidth <= 0 || c.Display.MaxHeight <= 0 {
		return fmt.Errorf("display.max_width and display.max_height must be positive")
	}
	if c.Display.ContainerFraction <= 0 || c.Display.ContainerFraction > 1 {
		return fmt.Errorf("display.container_fraction must be in (0, 1]")
	}
	if c.Display.WindowFraction <= 0 || c.Display.WindowFraction > 1 {
		return fmt.Errorf("display.window_fraction must be in (0, 1]")
	}
	if c.Selection.MinExtent <= 0 {
		return fmt.Errorf("selection.min_extent must be positive")
	}
	if _, err := selection.ParseRatio(c.Selection.Ratio); err != nil {
		return fmt.Errorf("selection.ratio: %w", err)
	}
	if _, err := ParseHexColor(c.Render.BorderColor); err != nil {
		return fmt.Errorf("render.border_color: %w", err)
	}
	if c.Render.BorderWidth < 1 {
		return fmt.Errorf("render.border_width must be positive")
	}
	if c.Render.PreviewMaxExtent < 1 {
		return fmt.Errorf("render.preview_max_extent must be positive")
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpeg_quality must be between 1 and 100")
	}
	switch strings.ToLower(c.Suggest.Backend) {
	case "smartcrop", "ollama", "llamacpp":
	case "faces":
		if c.Suggest.CascadeFile == "" {
			return fmt.Errorf("suggest.cascade_file is required for the faces backend")
		}
	default:
		return fmt.Errorf("suggest.backend must be smartcrop, faces, ollama or llamacpp")
	}
	if c.Suggest.Zoom <= 0 || c.Suggest.Zoom > 1 {
		return fmt.Errorf("suggest.zoom must be in (0, 1]")
	}
	return nil
}

// ParseHexColor parses #rgb or #rrggbb into an opaque color
func ParseHexColor(s string) (color.NRGBA, error) {
	c := color.NRGBA{A: 0xff}
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")

	var err error
	switch len(s) {
	case 6:
		_, err = fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B)
	case 3:
		_, err = fmt.Sscanf(s, "%1x%1x%1x", &c.R, &c.G, &c.B)
		c.R *= 17
		c.G *= 17
		c.B *= 17
	default:
		err = fmt.Errorf("invalid length")
	}
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return c, nil
}

// RenderStyle converts the render section into a pipeline style. Call it on a
// validated config; a bad border color falls back to the default.
func (c *Config) RenderStyle() render.Style {
	style := render.DefaultStyle()
	style.OverlayColor.A = c.Render.OverlayAlpha
	if bc, err := ParseHexColor(c.Render.BorderColor); err == nil {
		style.BorderColor = bc
	}
	style.BorderWidth = c.Render.BorderWidth
	style.Dash = c.Render.Dash
	style.PreviewMaxExtent = c.Render.PreviewMaxExtent
	style.MinExtent = c.Selection.MinExtent
	return style
}

// LogOptions converts the log section for log.Setup
func (c *Config) LogOptions() log.Options {
	return log.Options{
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
		Debug:      c.Log.Debug,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./cropkit.yaml"
	}
	return filepath.Join(home, ".config", "cropkit", "config.yaml")
}
