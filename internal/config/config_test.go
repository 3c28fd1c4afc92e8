package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/tile-curator/pkg/tiler"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestDefaultDetectorURLIsBackendNeutral(t *testing.T) {
	// each backend applies its own default address
	if url := Default().Detector.URL; url != "" {
		t.Errorf("default detector URL = %q, want empty", url)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"overlap equals tile", func(c *Config) { c.OverlapPx = c.TileWidth }},
		{"both overlaps", func(c *Config) { c.OverlapRatio = 0.1 }},
		{"ratio one", func(c *Config) { c.OverlapPx = 0; c.OverlapRatio = 1 }},
		{"bad format", func(c *Config) { c.OutputFormat = "heic" }},
		{"bad quality", func(c *Config) { c.Quality = 0 }},
		{"bad empty policy", func(c *Config) { c.EmptyCaption = "maybe" }},
		{"caption text and index", func(c *Config) { c.CaptionText = "x"; c.CaptionIndex = 0 }},
		{"filter without skip folder", func(c *Config) { c.Filter.Enabled = true }},
		{"unknown backend", func(c *Config) { c.Detector.Backend = "mtcnn" }},
		{"llm backend without model", func(c *Config) {
			c.Filter.Enabled = true
			c.SkipFolder = "skip"
			c.Detector.Backend = "ollama"
		}},
		{"bad error policy", func(c *Config) { c.Filter.OnError = "drop" }},
		{"zero tile", func(c *Config) { c.TileWidth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			if err := c.Validate(); !errors.Is(err, tiler.ErrInvalidConfiguration) {
				t.Errorf("Validate() = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")
	c := Default()
	c.TileWidth = 512
	c.TileHeight = 768
	c.OverlapPx = 0
	c.OverlapRatio = 0.25
	c.Filter.Enabled = true
	c.SkipFolder = "/data/skip"
	c.Detector.Backend = "ollama"
	c.Detector.Model = "llava"

	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if *loaded != *c {
		t.Errorf("loaded config differs:\n got %+v\nwant %+v", loaded, c)
	}
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("tile_width: 256\nfilter:\n  enabled: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.TileWidth != 256 || c.TileHeight != 1024 || !c.Filter.Enabled || c.Filter.OnError != "keep" {
		t.Errorf("unexpected config %+v", c)
	}
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("tile_width: [\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TILE_CURATOR_TILE_WIDTH", "640")
	t.Setenv("TILE_CURATOR_FILTER_ENABLED", "true")
	t.Setenv("TILE_CURATOR_DETECTOR_URL", "http://faces:8000")
	t.Setenv("TILE_CURATOR_LOG_LEVEL", "debug")

	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.TileWidth != 640 || !c.Filter.Enabled || c.Detector.URL != "http://faces:8000" || c.Logging.Level != "debug" {
		t.Errorf("environment not applied: %+v", c)
	}
	if c.TileHeight != 1024 {
		t.Errorf("unset variables must keep defaults, got %d", c.TileHeight)
	}
}

func TestTilingAndCaptionSource(t *testing.T) {
	c := Default()
	c.OverlapPx = 0
	c.OverlapRatio = 0.5
	tc := c.Tiling()
	if tc.Overlap.Fraction != 0.5 || tc.Overlap.Pixels != 0 {
		t.Errorf("unexpected overlap %+v", tc.Overlap)
	}
	if c.CaptionSource().IsLibrary() {
		t.Error("default caption source should be literal")
	}
	c.CaptionIndex = 2
	if !c.CaptionSource().IsLibrary() {
		t.Error("caption_index should select the library")
	}
	if c.EncodeOptions().Quality != 95 {
		t.Error("quality not carried into encode options")
	}
}
