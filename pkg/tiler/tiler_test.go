package tiler

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/menta2k/tile-curator/pkg/cancel"
	"github.com/menta2k/tile-curator/pkg/processing"
	"github.com/menta2k/tile-curator/pkg/types"
)

// createTestImage creates an image whose pixels encode their own coordinates
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 64, 255})
		}
	}
	return img
}

func newTestTiler() (*Tiler, *test.Hook) {
	log, hook := test.NewNullLogger()
	return New(types.EncodeOptions{Format: "png"}, log), hook
}

func TestTileImageWritesUniformTiles(t *testing.T) {
	tl, _ := newTestTiler()
	out := t.TempDir()
	src := SourceImage{Path: "/in/scene.jpg", Width: 1000, Height: 1000}

	var seen []Tile
	res, err := tl.TileImage(src, createTestImage(1000, 1000),
		Config{TileWidth: 512, TileHeight: 512, Overlap: OverlapPixels(64)}, out, cancel.New(),
		func(tile Tile) { seen = append(seen, tile) })
	if err != nil {
		t.Fatalf("TileImage failed: %v", err)
	}
	if len(res.Tiles) != 9 || len(seen) != 9 || res.Errors != 0 {
		t.Fatalf("Expected 9 tiles and no errors, got %d tiles, %d callbacks, %d errors", len(res.Tiles), len(seen), res.Errors)
	}

	p := processing.NewProcessor()
	for _, tile := range res.Tiles {
		if filepath.Dir(tile.Path) != out {
			t.Errorf("tile written outside output dir: %s", tile.Path)
		}
		img, err := p.LoadImage(tile.Path)
		if err != nil {
			t.Fatalf("cannot load tile %s: %v", tile.Path, err)
		}
		if img.Bounds().Dx() != 512 || img.Bounds().Dy() != 512 {
			t.Errorf("tile %s is %dx%d", tile.Path, img.Bounds().Dx(), img.Bounds().Dy())
		}
	}

	// Last tile starts at (488, 488): its top-left pixel carries those coordinates
	last, err := p.LoadImage(filepath.Join(out, "scene_8.png"))
	if err != nil {
		t.Fatalf("missing last tile: %v", err)
	}
	r, g, _, _ := last.At(0, 0).RGBA()
	if r>>8 != 488%256 || g>>8 != 488%256 {
		t.Errorf("last tile origin pixel = (%d,%d), want (%d,%d)", r>>8, g>>8, 488%256, 488%256)
	}
}

func TestTileImageSmallSource(t *testing.T) {
	tl, _ := newTestTiler()
	out := t.TempDir()
	src := SourceImage{Path: "small.png", Width: 400, Height: 400}

	res, err := tl.TileImage(src, createTestImage(400, 400),
		Config{TileWidth: 512, TileHeight: 512, Overlap: OverlapPixels(64)}, out, nil, nil)
	if err != nil {
		t.Fatalf("TileImage failed: %v", err)
	}
	if len(res.Tiles) != 1 {
		t.Fatalf("Expected 1 tile, got %d", len(res.Tiles))
	}
	img, err := processing.NewProcessor().LoadImage(res.Tiles[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 400 {
		t.Errorf("Expected 400x400 tile, got %v", img.Bounds())
	}
}

func TestTileImageStopsBetweenTiles(t *testing.T) {
	tl, _ := newTestTiler()
	out := t.TempDir()
	tok := cancel.New()
	src := SourceImage{Path: "big.png", Width: 1000, Height: 1000}

	res, err := tl.TileImage(src, createTestImage(1000, 1000),
		Config{TileWidth: 512, TileHeight: 512, Overlap: OverlapPixels(64)}, out, tok,
		func(tile Tile) {
			if tile.Spec.Index == 2 {
				tok.Request()
			}
		})
	if err != nil {
		t.Fatalf("TileImage failed: %v", err)
	}
	if !res.Stopped {
		t.Error("Expected stopped result")
	}
	if len(res.Tiles) != 3 {
		t.Errorf("Expected 3 tiles before stop, got %d", len(res.Tiles))
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 3 {
		t.Errorf("Expected 3 files on disk, got %d", len(entries))
	}
}

func TestTileImageWriteFailureIsNonFatal(t *testing.T) {
	tl, hook := newTestTiler()
	src := SourceImage{Path: "x.png", Width: 100, Height: 100}

	res, err := tl.TileImage(src, createTestImage(100, 100),
		Config{TileWidth: 50, TileHeight: 50}, filepath.Join(t.TempDir(), "missing"), nil, nil)
	if err != nil {
		t.Fatalf("per-tile failures must not be returned as errors: %v", err)
	}
	if res.Errors != 4 || len(res.Tiles) != 0 {
		t.Errorf("Expected 4 errors and no tiles, got %d errors, %d tiles", res.Errors, len(res.Tiles))
	}
	if len(hook.Entries) != 4 || hook.LastEntry().Level != logrus.ErrorLevel {
		t.Errorf("Expected 4 error log entries, got %d", len(hook.Entries))
	}
}

func TestTileImageInvalidConfig(t *testing.T) {
	tl, _ := newTestTiler()
	src := SourceImage{Path: "x.png", Width: 100, Height: 100}
	if _, err := tl.TileImage(src, createTestImage(100, 100),
		Config{TileWidth: 50, TileHeight: 50, Overlap: OverlapPixels(50)}, t.TempDir(), nil, nil); err == nil {
		t.Error("Expected configuration error")
	}
}

func TestLoad(t *testing.T) {
	tl, _ := newTestTiler()
	path := filepath.Join(t.TempDir(), "src.png")
	if err := processing.NewProcessor().SaveImage(createTestImage(30, 20), path, types.EncodeOptions{Format: "png"}); err != nil {
		t.Fatal(err)
	}
	src, img, err := tl.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if src.Width != 30 || src.Height != 20 || src.Format != "png" || img == nil {
		t.Errorf("unexpected source %+v", src)
	}
}
