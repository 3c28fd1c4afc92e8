package tilecurator

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/menta2k/tile-curator/internal/config"
	"github.com/menta2k/tile-curator/internal/utils"
	"github.com/menta2k/tile-curator/pkg/batch"
	"github.com/menta2k/tile-curator/pkg/detection"
	"github.com/menta2k/tile-curator/pkg/insightface"
	"github.com/menta2k/tile-curator/pkg/processing"
	"github.com/menta2k/tile-curator/pkg/tiler"
	"github.com/menta2k/tile-curator/pkg/types"
)

// createTestImage creates a gradient test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	return img
}

// runDuringDetect starts a tiling run from inside face detection
type runDuringDetect struct {
	c   *Curator
	err error
}

func (r *runDuringDetect) DetectFaces(ctx context.Context, img image.Image) ([]types.Face, error) {
	if r.err == nil {
		_, r.err = r.c.Run(ctx, nil)
	}
	return nil, nil
}

type noFaces struct{}

func (noFaces) DetectFaces(ctx context.Context, img image.Image) ([]types.Face, error) {
	return nil, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.SourceFolder = filepath.Join(dir, "src")
	cfg.OutputFolder = filepath.Join(dir, "tiles")
	cfg.SkipFolder = filepath.Join(dir, "skip")
	cfg.CaptionLibrary = filepath.Join(dir, "Unified_Caps.txt")
	cfg.TileWidth, cfg.TileHeight, cfg.OverlapPx = 64, 64, 16
	cfg.OutputFormat = "png"
	cfg.CaptionText = "a test pattern"

	if err := utils.EnsureDir(cfg.SourceFolder); err != nil {
		t.Fatal(err)
	}
	p := processing.NewProcessor()
	// 100x100 gives x/y starts {0, 36}: 4 tiles
	for _, name := range []string{"one.png", "two.png"} {
		if err := p.SaveImage(createTestImage(100, 100), filepath.Join(cfg.SourceFolder, name), types.EncodeOptions{Format: "png"}); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func newCurator(t *testing.T, cfg *config.Config) *Curator {
	t.Helper()
	log, _ := test.NewNullLogger()
	c, err := New(cfg, log)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestRun(t *testing.T) {
	c := newCurator(t, testConfig(t))
	rep, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep.Status != batch.StateCompleted || rep.TilesWritten != 8 || rep.CaptionsWritten != 8 {
		t.Errorf("unexpected report %+v", rep)
	}
	if c.State() != batch.StateCompleted {
		t.Errorf("unexpected state %v", c.State())
	}
}

func TestRunWithFilter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Filter.Enabled = true
	c := newCurator(t, cfg).WithDetector(noFaces{})

	rep, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if rep.TilesSkipped != 8 {
		t.Errorf("expected every tile skipped, got %+v", rep)
	}
	if !utils.FileExists(filepath.Join(cfg.SkipFolder, "one_0.png")) || !utils.FileExists(filepath.Join(cfg.SkipFolder, "one_0.txt")) {
		t.Error("tile pair not in skip folder")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.OverlapPx = cfg.TileWidth
	if _, err := New(cfg, nil); !errors.Is(err, tiler.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestNewDetector(t *testing.T) {
	d, err := NewDetector(config.DetectorConfig{Backend: "insightface"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(*insightface.Client); !ok {
		t.Errorf("expected insightface client, got %T", d)
	}

	for _, backend := range []string{"ollama", "llamacpp"} {
		d, err := NewDetector(config.DetectorConfig{Backend: backend, Model: "llava"})
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if _, ok := d.(*detection.Detector); !ok {
			t.Errorf("%s: expected vision detector, got %T", backend, d)
		}
	}

	if _, err := NewDetector(config.DetectorConfig{Backend: "mtcnn"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestDetectorURLFollowsBackend(t *testing.T) {
	tests := []struct {
		backend string
		want    string
	}{
		{"insightface", DefaultInsightFaceURL},
		{"ollama", DefaultOllamaURL},
		{"llamacpp", DefaultLlamaCppURL},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.Detector.Backend = tt.backend
		if got := DetectorURL(cfg.Detector); got != tt.want {
			t.Errorf("%s: DetectorURL = %q, want %q", tt.backend, got, tt.want)
		}
	}

	cfg := config.Default()
	cfg.Detector.Backend = "ollama"
	cfg.Detector.URL = "http://gpu-box:11434"
	if got := DetectorURL(cfg.Detector); got != "http://gpu-box:11434" {
		t.Errorf("explicit URL not kept: %q", got)
	}
}

func TestFilterTilesStandalone(t *testing.T) {
	cfg := testConfig(t)
	c := newCurator(t, cfg).WithDetector(noFaces{})
	if _, err := c.Run(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	var seen int
	res, err := c.FilterTiles(context.Background(), func(i, total int, name string) { seen++ })
	if err != nil {
		t.Fatalf("FilterTiles failed: %v", err)
	}
	if res.Moved != 8 || seen != 8 {
		t.Errorf("unexpected result %+v, %d callbacks", res, seen)
	}
}

func TestRunRejectedWhileFilterTiles(t *testing.T) {
	cfg := testConfig(t)
	c := newCurator(t, cfg)
	if _, err := c.Run(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	det := &runDuringDetect{c: c}
	c.WithDetector(det)
	res, err := c.FilterTiles(context.Background(), nil)
	if err != nil {
		t.Fatalf("FilterTiles failed: %v", err)
	}
	if !errors.Is(det.err, batch.ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress for a run during filtering, got %v", det.err)
	}
	if res.Moved != 8 {
		t.Errorf("unexpected filter result %+v", res)
	}
	if c.State() != batch.StateCompleted {
		t.Errorf("rejected run must not change state, got %v", c.State())
	}
}

func TestPrepareAndZip(t *testing.T) {
	cfg := testConfig(t)
	c := newCurator(t, cfg)

	// 100 is not 64 + k*48, so both sources are set aside
	incompatible := filepath.Join(t.TempDir(), "incompatible")
	res, err := c.FilterIncompatible(context.Background(), incompatible)
	if err != nil || res.Affected != 2 {
		t.Fatalf("FilterIncompatible = %+v, %v", res, err)
	}

	cropped := filepath.Join(t.TempDir(), "cropped")
	res, err = c.AutoCrop(context.Background(), incompatible, cropped)
	if err != nil || res.Affected != 2 {
		t.Fatalf("AutoCrop = %+v, %v", res, err)
	}

	cfg.SourceFolder = cropped
	rep, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	// 64x64 crops give one tile each
	if rep.TilesWritten != 2 {
		t.Errorf("expected 2 tiles, got %d", rep.TilesWritten)
	}

	path, n, err := c.Zip()
	if err != nil || n != 4 || !utils.FileExists(path) {
		t.Errorf("Zip = %s, %d, %v", path, n, err)
	}
}

func TestLibraryCaption(t *testing.T) {
	cfg := testConfig(t)
	cfg.CaptionText = ""
	cfg.CaptionIndex = 0
	c := newCurator(t, cfg)
	if err := c.Library().Add("from the library"); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Run(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if !utils.FileExists(filepath.Join(cfg.OutputFolder, "two_3.txt")) {
		t.Error("expected library caption written")
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Error("version mismatch")
	}
}
