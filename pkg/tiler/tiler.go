package tiler

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/tile-curator/internal/utils"
	"github.com/menta2k/tile-curator/pkg/cancel"
	"github.com/menta2k/tile-curator/pkg/processing"
	"github.com/menta2k/tile-curator/pkg/types"
)

// SourceImage is a decodable raster file used as tiling input
type SourceImage struct {
	Path   string
	Width  int
	Height int
	Format string
}

// Tile is a tile that was written to disk
type Tile struct {
	Spec TileSpec
	Path string
}

// Result summarizes the tiling of one source image
type Result struct {
	Tiles   []Tile
	Errors  int
	Stopped bool
}

// Tiler cuts source images into tiles and writes them
type Tiler struct {
	processor *processing.Processor
	encode    types.EncodeOptions
	log       logrus.FieldLogger
}

// New creates a Tiler writing tiles with the given encoding options
func New(encode types.EncodeOptions, log logrus.FieldLogger) *Tiler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tiler{
		processor: processing.NewProcessor(),
		encode:    encode,
		log:       log,
	}
}

// Load decodes a source image and describes it
func (t *Tiler) Load(path string) (SourceImage, image.Image, error) {
	img, err := t.processor.LoadImage(path)
	if err != nil {
		return SourceImage{}, nil, err
	}
	b := img.Bounds()
	return SourceImage{
		Path:   path,
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: utils.GetFileExtension(path),
	}, img, nil
}

// TileImage writes every tile of img into outDir. A tile that fails to crop or
// save is logged and counted, and the next one is attempted. The token is
// checked before each tile; a stop leaves already written tiles in place.
// onTile, if set, runs after each successful write.
func (t *Tiler) TileImage(src SourceImage, img image.Image, cfg Config, outDir string, tok *cancel.Token, onTile func(Tile)) (Result, error) {
	specs, err := Grid(src.Width, src.Height, cfg)
	if err != nil {
		return Result{}, err
	}

	ext := processing.ResolveExtension(t.encode.Format, src.Path)
	opts := t.encode
	opts.Format = ext

	var res Result
	for _, spec := range specs {
		if tok.Stopped() {
			res.Stopped = true
			return res, nil
		}

		path := filepath.Join(outDir, utils.TileFilename(src.Path, spec.Index, ext))
		if err := t.writeTile(img, spec, path, opts); err != nil {
			res.Errors++
			t.log.WithFields(logrus.Fields{
				"file":  filepath.Base(src.Path),
				"tile":  spec.Index,
				"error": err.Error(),
			}).Error("failed to write tile")
			continue
		}

		tile := Tile{Spec: spec, Path: path}
		res.Tiles = append(res.Tiles, tile)
		if onTile != nil {
			onTile(tile)
		}
	}
	return res, nil
}

func (t *Tiler) writeTile(img image.Image, spec TileSpec, path string, opts types.EncodeOptions) error {
	// Grid works in a zero-based grid; decoded images may not start at the origin
	rect := spec.Rect.Add(img.Bounds().Min)
	if !rect.In(img.Bounds()) {
		return fmt.Errorf("tile %v outside image bounds %v", rect, img.Bounds())
	}
	cropped := imaging.Crop(img, rect)
	return t.processor.SaveImage(cropped, path, opts)
}
