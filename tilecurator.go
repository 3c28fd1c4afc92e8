// Package tilecurator prepares image datasets for fine-tuning generative models.
//
// Source images are cut into overlapping tiles of a fixed size, every tile gets
// a caption file with the same base name, and tiles without a confidently
// detected face can be moved into a separate folder together with their
// captions.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		tilecurator "github.com/menta2k/tile-curator"
//		"github.com/menta2k/tile-curator/internal/config"
//	)
//
//	func main() {
//		cfg := config.Default()
//		cfg.SourceFolder = "./photos"
//		cfg.OutputFolder = "./tiles"
//		cfg.TileWidth, cfg.TileHeight, cfg.OverlapPx = 512, 512, 64
//		cfg.CaptionText = "a photo of a street"
//
//		curator, err := tilecurator.New(cfg, nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		report, err := curator.Run(context.Background(), nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(report.Summary())
//	}
//
// The package ties together the components under pkg/:
//
// 1. Tiler (pkg/tiler): tile geometry, cropping and encoding
// 2. Caption (pkg/caption): caption files and the caption library
// 3. Filter (pkg/filter): background-tile filtering by face detection
// 4. Batch (pkg/batch): the cancellable run over a source folder
//
// Face detection is pluggable: an InsightFace server (pkg/insightface) or a
// vision language model served by Ollama (pkg/ollama) or llama.cpp (pkg/llamacpp).
package tilecurator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/tile-curator/internal/config"
	"github.com/menta2k/tile-curator/pkg/batch"
	"github.com/menta2k/tile-curator/pkg/caption"
	"github.com/menta2k/tile-curator/pkg/cancel"
	"github.com/menta2k/tile-curator/pkg/detection"
	"github.com/menta2k/tile-curator/pkg/export"
	"github.com/menta2k/tile-curator/pkg/filter"
	"github.com/menta2k/tile-curator/pkg/insightface"
	"github.com/menta2k/tile-curator/pkg/llamacpp"
	"github.com/menta2k/tile-curator/pkg/ollama"
	"github.com/menta2k/tile-curator/pkg/prepare"
)

// Version of the tile curator
const Version = "1.0.0"

// Default detector addresses, used when the configuration leaves the URL empty
const (
	DefaultInsightFaceURL = "http://localhost:8000"
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultLlamaCppURL    = "http://localhost:8080"
)

// Curator runs the pipeline stages configured by a config.Config
type Curator struct {
	cfg          *config.Config
	log          logrus.FieldLogger
	library      *caption.Library
	detector     detection.FaceDetector
	orchestrator *batch.Orchestrator
}

// New validates cfg and creates a Curator. The face detector is only built
// when the background filter is enabled; see Detector for on-demand use.
func New(cfg *config.Config, log logrus.FieldLogger) (*Curator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	library, err := caption.OpenLibrary(cfg.CaptionLibrary)
	if err != nil {
		return nil, err
	}

	c := &Curator{
		cfg:          cfg,
		log:          log,
		library:      library,
		orchestrator: batch.New(log),
	}
	if cfg.Filter.Enabled {
		if c.detector, err = NewDetector(cfg.Detector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// DetectorURL returns the address the configured backend is reached at
func DetectorURL(cfg config.DetectorConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	switch cfg.Backend {
	case "ollama":
		return DefaultOllamaURL
	case "llamacpp":
		return DefaultLlamaCppURL
	}
	return DefaultInsightFaceURL
}

// NewDetector creates the face detector selected by cfg.Backend
func NewDetector(cfg config.DetectorConfig) (detection.FaceDetector, error) {
	url := DetectorURL(cfg)
	switch cfg.Backend {
	case "insightface":
		return insightface.NewClient(url), nil
	case "ollama":
		client, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return detection.NewDetector(client, cfg.Model), nil
	case "llamacpp":
		client, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return detection.NewDetector(client, cfg.Model), nil
	}
	return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
}

// WithDetector replaces the face detector
func (c *Curator) WithDetector(d detection.FaceDetector) *Curator {
	c.detector = d
	return c
}

// Detector returns the face detector, building it from the configuration if needed
func (c *Curator) Detector() (detection.FaceDetector, error) {
	if c.detector == nil {
		d, err := NewDetector(c.cfg.Detector)
		if err != nil {
			return nil, err
		}
		c.detector = d
	}
	return c.detector, nil
}

// Library returns the caption library
func (c *Curator) Library() *caption.Library {
	return c.library
}

// Options returns the batch options described by the configuration
func (c *Curator) Options() batch.Options {
	// both policies were checked by cfg.Validate
	empty, _ := caption.ParseEmptyPolicy(c.cfg.EmptyCaption)
	onError, _ := filter.ParseErrorPolicy(c.cfg.Filter.OnError)

	opts := batch.Options{
		SourceDir:          c.cfg.SourceFolder,
		OutputDir:          c.cfg.OutputFolder,
		Tiling:             c.cfg.Tiling(),
		Encode:             c.cfg.EncodeOptions(),
		Caption:            c.cfg.CaptionSource(),
		Library:            c.library,
		EmptyCaption:       empty,
		RequireEmptyOutput: c.cfg.RequireEmptyOutput,
	}
	if c.cfg.Filter.Enabled {
		opts.Filter = &batch.FilterOptions{
			SkipDir:    c.cfg.SkipFolder,
			Detector:   c.detector,
			OnError:    onError,
			OverlayDir: c.cfg.Filter.OverlayDir,
		}
	}
	return opts
}

// Run tiles the source folder and, if enabled, filters the result
func (c *Curator) Run(ctx context.Context, obs batch.Observer) (batch.Report, error) {
	return c.orchestrator.Run(ctx, c.Options(), obs)
}

// State returns the state of the current or last tiling run
func (c *Curator) State() batch.State {
	return c.orchestrator.State()
}

// RequestStop asks whatever stage is running to stop
func (c *Curator) RequestStop() {
	c.orchestrator.RequestStop()
}

// FilterTiles runs the background-tile filter on the output folder on its own.
// It fails with batch.ErrRunInProgress while another stage is running.
func (c *Curator) FilterTiles(ctx context.Context, onTile func(index, total int, name string)) (filter.Result, error) {
	if c.cfg.SkipFolder == "" {
		return filter.Result{}, fmt.Errorf("skip folder is not configured")
	}
	d, err := c.Detector()
	if err != nil {
		return filter.Result{}, err
	}
	onError, _ := filter.ParseErrorPolicy(c.cfg.Filter.OnError)
	return c.orchestrator.RunFilter(ctx, c.cfg.OutputFolder, batch.FilterOptions{
		SkipDir:    c.cfg.SkipFolder,
		Detector:   d,
		OnError:    onError,
		OverlayDir: c.cfg.Filter.OverlayDir,
	}, onTile)
}

// FilterIncompatible moves source images that do not tile evenly into dir
func (c *Curator) FilterIncompatible(ctx context.Context, dir string) (prepare.Result, error) {
	var res prepare.Result
	err := c.orchestrator.Exclusive(ctx, func(tok *cancel.Token) error {
		var err error
		res, err = prepare.New(c.log).FilterIncompatible(c.cfg.SourceFolder, dir, c.cfg.Tiling(), tok)
		return err
	})
	return res, err
}

// AutoCrop center-crops the images of srcDir into dstDir so they tile evenly
func (c *Curator) AutoCrop(ctx context.Context, srcDir, dstDir string) (prepare.Result, error) {
	var res prepare.Result
	err := c.orchestrator.Exclusive(ctx, func(tok *cancel.Token) error {
		var err error
		res, err = prepare.New(c.log).AutoCrop(srcDir, dstDir, c.cfg.Tiling(), c.cfg.EncodeOptions(), tok)
		return err
	})
	return res, err
}

// Zip archives the output folder
func (c *Curator) Zip() (string, int, error) {
	return export.Zip(c.cfg.OutputFolder)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
