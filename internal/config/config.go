package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/tile-curator/pkg/caption"
	"github.com/menta2k/tile-curator/pkg/filter"
	"github.com/menta2k/tile-curator/pkg/tiler"
	"github.com/menta2k/tile-curator/pkg/types"
)

// EnvPrefix prefixes every environment override, e.g. TILE_CURATOR_TILE_WIDTH
const EnvPrefix = "TILE_CURATOR_"

// Config holds the application configuration
type Config struct {
	TileWidth     int     `yaml:"tile_width" env:"TILE_WIDTH" validate:"gte=0"`
	TileHeight    int     `yaml:"tile_height" env:"TILE_HEIGHT" validate:"gte=0"`
	OverlapPx     int     `yaml:"overlap_px" env:"OVERLAP_PX" validate:"gte=0"`
	OverlapRatio  float64 `yaml:"overlap_ratio" env:"OVERLAP_RATIO" validate:"gte=0,lt=1"`
	TilesPerImage int     `yaml:"tiles_per_image" env:"TILES_PER_IMAGE" validate:"gte=0"`

	CaptionText    string `yaml:"caption_text" env:"CAPTION_TEXT"`
	CaptionIndex   int    `yaml:"caption_index" env:"CAPTION_INDEX" validate:"gte=-1"` // -1: use caption_text
	CaptionLibrary string `yaml:"caption_library" env:"CAPTION_LIBRARY"`
	EmptyCaption   string `yaml:"empty_caption" env:"EMPTY_CAPTION" validate:"oneof=skip write"`

	SourceFolder       string `yaml:"source_folder" env:"SOURCE_FOLDER"`
	OutputFolder       string `yaml:"output_folder" env:"OUTPUT_FOLDER"`
	SkipFolder         string `yaml:"skip_folder" env:"SKIP_FOLDER"`
	OutputFormat       string `yaml:"output_format" env:"OUTPUT_FORMAT" validate:"oneof=source jpg jpeg png webp bmp tif tiff gif"`
	Quality            int    `yaml:"quality" env:"QUALITY" validate:"gte=1,lte=100"`
	RequireEmptyOutput bool   `yaml:"require_empty_output" env:"REQUIRE_EMPTY_OUTPUT"`

	Filter   FilterConfig   `yaml:"filter" envPrefix:"FILTER_"`
	Detector DetectorConfig `yaml:"detector" envPrefix:"DETECTOR_"`
	Logging  LoggingConfig  `yaml:"logging" envPrefix:"LOG_"`
}

// FilterConfig holds configuration for the background-tile filter
type FilterConfig struct {
	Enabled    bool   `yaml:"enabled" env:"ENABLED"`
	OnError    string `yaml:"on_error" env:"ON_ERROR" validate:"oneof=keep skip"`
	OverlayDir string `yaml:"overlay_dir" env:"OVERLAY_DIR"`
}

// DetectorConfig selects the face detection backend. An empty URL selects
// the backend's default address.
type DetectorConfig struct {
	Backend string `yaml:"backend" env:"BACKEND" validate:"oneof=insightface ollama llamacpp"`
	URL     string `yaml:"url" env:"URL" validate:"omitempty,url"`
	Model   string `yaml:"model" env:"MODEL"`
}

// LoggingConfig holds configuration for the logger
type LoggingConfig struct {
	Level    string `yaml:"level" env:"LEVEL" validate:"oneof=trace debug info warn warning error"`
	File     string `yaml:"file" env:"FILE"`
	NoColors bool   `yaml:"no_colors" env:"NO_COLORS"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		TileWidth:      1024,
		TileHeight:     1024,
		OverlapPx:      128,
		CaptionIndex:   -1,
		CaptionLibrary: caption.DefaultLibraryFile,
		EmptyCaption:   string(caption.SkipEmpty),
		OutputFormat:   "source",
		Quality:        95,
		Filter: FilterConfig{
			OnError: string(filter.KeepOnError),
		},
		Detector: DetectorConfig{
			Backend: "insightface",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// Load builds the configuration from defaults, the YAML file at filename if
// it exists, a .env file in the working directory and the environment, in
// increasing order of precedence. An empty filename skips the file.
func Load(filename string) (*Config, error) {
	config := Default()
	if filename != "" {
		loaded, err := LoadFromFile(filename)
		switch {
		case err == nil:
			config = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from TILE_CURATOR_* environment variables
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
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

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", tiler.ErrInvalidConfiguration, err)
	}

	if c.OverlapPx > 0 && c.OverlapRatio > 0 {
		return fmt.Errorf("%w: overlap_px and overlap_ratio are mutually exclusive", tiler.ErrInvalidConfiguration)
	}
	if c.CaptionIndex >= 0 && c.CaptionText != "" {
		return fmt.Errorf("%w: caption_text and caption_index are mutually exclusive", tiler.ErrInvalidConfiguration)
	}
	if c.Filter.Enabled && c.SkipFolder == "" {
		return fmt.Errorf("%w: filter.enabled requires skip_folder", tiler.ErrInvalidConfiguration)
	}
	if c.Detector.Backend != "insightface" && c.Detector.Model == "" && c.Filter.Enabled {
		return fmt.Errorf("%w: detector.model is required for the %s backend", tiler.ErrInvalidConfiguration, c.Detector.Backend)
	}

	return c.Tiling().Validate()
}

// Tiling returns the tile geometry configuration
func (c *Config) Tiling() tiler.Config {
	overlap := tiler.OverlapPixels(c.OverlapPx)
	if c.OverlapRatio > 0 {
		overlap = tiler.OverlapFraction(c.OverlapRatio)
	}
	return tiler.Config{
		TileWidth:     c.TileWidth,
		TileHeight:    c.TileHeight,
		Overlap:       overlap,
		TilesPerImage: c.TilesPerImage,
	}
}

// CaptionSource returns the caption applied to every tile
func (c *Config) CaptionSource() caption.Source {
	if c.CaptionIndex >= 0 {
		return caption.FromLibrary(c.CaptionIndex)
	}
	return caption.Literal(c.CaptionText)
}

// EncodeOptions returns how tiles are written
func (c *Config) EncodeOptions() types.EncodeOptions {
	return types.EncodeOptions{Format: c.OutputFormat, Quality: c.Quality}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "tile-curator", "config.yaml")
}
