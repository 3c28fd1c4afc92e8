// Package prepare readies a source folder for tiling: it sets aside images
// whose size does not tile evenly and center-crops them to a size that does.
package prepare

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/tile-curator/internal/utils"
	"github.com/menta2k/tile-curator/pkg/cancel"
	"github.com/menta2k/tile-curator/pkg/processing"
	"github.com/menta2k/tile-curator/pkg/tiler"
	"github.com/menta2k/tile-curator/pkg/types"
)

// Result counts what a preparation pass did
type Result struct {
	Scanned  int
	Affected int
	Errors   int
	Stopped  bool
}

// Preparer moves and crops source images
type Preparer struct {
	processor *processing.Processor
	log       logrus.FieldLogger
}

// New creates a Preparer
func New(log logrus.FieldLogger) *Preparer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Preparer{processor: processing.NewProcessor(), log: log}
}

// geometry holds the fixed tile size and step per axis
type geometry struct {
	tw, th, sx, sy int
}

func newGeometry(cfg tiler.Config) (geometry, error) {
	if cfg.TilesPerImage > 0 {
		return geometry{}, fmt.Errorf("%w: preparation needs a fixed tile size", tiler.ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return geometry{}, err
	}
	sx, _ := tiler.Step(cfg.TileWidth, cfg.Overlap)
	sy, _ := tiler.Step(cfg.TileHeight, cfg.Overlap)
	return geometry{tw: cfg.TileWidth, th: cfg.TileHeight, sx: sx, sy: sy}, nil
}

func (g geometry) compatible(w, h int) bool {
	return tiler.Tileable(w, g.tw, g.sx) && tiler.Tileable(h, g.th, g.sy)
}

func (g geometry) recommended(w, h int) (int, int) {
	if w < g.tw || h < g.th {
		return w, h
	}
	return tiler.RecommendedLength(w, g.tw, g.sx), tiler.RecommendedLength(h, g.th, g.sy)
}

// FilterIncompatible moves every image of srcDir that is smaller than a tile,
// or whose size leaves a shifted last tile, into incompatibleDir and writes a
// note with the recommended crop size next to it.
func (p *Preparer) FilterIncompatible(srcDir, incompatibleDir string, cfg tiler.Config, tok *cancel.Token) (Result, error) {
	var res Result
	g, err := newGeometry(cfg)
	if err != nil {
		return res, err
	}
	files, err := utils.ListImageFiles(srcDir)
	if err != nil {
		return res, fmt.Errorf("read input folder: %w", err)
	}
	if err := utils.EnsureDir(incompatibleDir); err != nil {
		return res, fmt.Errorf("create incompatible folder: %w", err)
	}

	for _, path := range files {
		if tok.Stopped() {
			res.Stopped = true
			return res, nil
		}
		res.Scanned++
		name := filepath.Base(path)

		imgCfg, _, err := p.processor.DecodeConfig(path)
		if err != nil {
			res.Errors++
			p.log.WithFields(logrus.Fields{"file": name, "error": err.Error()}).Error("failed to read image size")
			continue
		}
		if g.compatible(imgCfg.Width, imgCfg.Height) {
			continue
		}

		dst := filepath.Join(incompatibleDir, name)
		if err := utils.MoveFile(path, dst); err != nil {
			res.Errors++
			p.log.WithFields(logrus.Fields{"file": name, "error": err.Error()}).Error("failed to move image")
			continue
		}
		res.Affected++

		rw, rh := g.recommended(imgCfg.Width, imgCfg.Height)
		p.log.WithFields(logrus.Fields{
			"file":        name,
			"size":        fmt.Sprintf("%dx%d", imgCfg.Width, imgCfg.Height),
			"recommended": fmt.Sprintf("%dx%d", rw, rh),
		}).Info("moved incompatible image")
		if err := writeNote(dst, rw, rh); err != nil {
			res.Errors++
			p.log.WithFields(logrus.Fields{"file": name, "error": err.Error()}).Error("failed to write crop note")
		}
	}
	return res, nil
}

func writeNote(imagePath string, w, h int) error {
	note := fmt.Sprintf("Recommended crop size: %d x %d\n"+
		"Manually crop (preferably center-crop) to these dimensions for 1:1 tiling.\n"+
		"If that removes important areas, consider a manual approach.\n", w, h)
	return os.WriteFile(utils.CaptionPath(imagePath), []byte(note), 0644)
}

// AutoCrop center-crops every image of srcDir to its recommended size and
// writes the result under the same name into croppedDir, which must be empty
// or absent. Images smaller than a tile are copied unchanged.
func (p *Preparer) AutoCrop(srcDir, croppedDir string, cfg tiler.Config, encode types.EncodeOptions, tok *cancel.Token) (Result, error) {
	var res Result
	g, err := newGeometry(cfg)
	if err != nil {
		return res, err
	}
	files, err := utils.ListImageFiles(srcDir)
	if err != nil {
		return res, fmt.Errorf("read incompatible folder: %w", err)
	}
	if utils.DirExists(croppedDir) {
		empty, err := utils.IsDirEmpty(croppedDir)
		if err != nil {
			return res, err
		}
		if !empty {
			return res, fmt.Errorf("cropped folder is not empty: %s", croppedDir)
		}
	}
	if err := utils.EnsureDir(croppedDir); err != nil {
		return res, fmt.Errorf("create cropped folder: %w", err)
	}

	for _, path := range files {
		if tok.Stopped() {
			res.Stopped = true
			return res, nil
		}
		res.Scanned++
		name := filepath.Base(path)

		img, err := p.processor.LoadImage(path)
		if err != nil {
			res.Errors++
			p.log.WithFields(logrus.Fields{"file": name, "error": err.Error()}).Error("failed to load image")
			continue
		}
		w, h := g.recommended(img.Bounds().Dx(), img.Bounds().Dy())
		cropped := imaging.CropCenter(img, w, h)

		opts := encode
		opts.Format = utils.GetFileExtension(path)
		if err := p.processor.SaveImage(cropped, filepath.Join(croppedDir, name), opts); err != nil {
			res.Errors++
			p.log.WithFields(logrus.Fields{"file": name, "error": err.Error()}).Error("failed to save cropped image")
			continue
		}
		res.Affected++
		p.log.WithFields(logrus.Fields{"file": name, "size": fmt.Sprintf("%dx%d", w, h)}).Debug("cropped image")
	}
	return res, nil
}
