// Package filter moves tiles without a confidently detected face, together
// with their captions, out of a tile folder.
package filter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/tile-curator/internal/utils"
	"github.com/menta2k/tile-curator/pkg/cancel"
	"github.com/menta2k/tile-curator/pkg/detection"
	"github.com/menta2k/tile-curator/pkg/processing"
	"github.com/menta2k/tile-curator/pkg/types"
)

// FaceConfidenceThreshold is the minimum confidence of at least one face for a tile to be kept
const FaceConfidenceThreshold = 0.7

// StoppedMessage is reported when a run ends on a stop request
const StoppedMessage = "Process stopped by user."

// ErrTileFolderMissing is returned when the tile folder does not exist
var ErrTileFolderMissing = errors.New("tile folder does not exist")

// ErrorPolicy decides what happens to a tile whose detection failed
type ErrorPolicy string

const (
	// KeepOnError leaves the tile in place
	KeepOnError ErrorPolicy = "keep"
	// SkipOnError moves the tile to the skip folder
	SkipOnError ErrorPolicy = "skip"
)

// ParseErrorPolicy converts a configuration value to an ErrorPolicy
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(s) {
	case "", KeepOnError:
		return KeepOnError, nil
	case SkipOnError:
		return SkipOnError, nil
	}
	return "", fmt.Errorf("unknown detector error policy %q", s)
}

// Status is the outcome of a filter run
type Status string

const (
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
)

// Result counts what a filter run did
type Result struct {
	Status  Status
	Scanned int
	Moved   int
	Kept    int
	Errors  int
}

// Summary returns a one-line human readable description of the result
func (r Result) Summary(skipDir string) string {
	if r.Status == StatusStopped {
		return fmt.Sprintf("%s Moved %d tiles to %s before stopping (%d errors).", StoppedMessage, r.Moved, skipDir, r.Errors)
	}
	return fmt.Sprintf("Moved %d background-heavy tiles to %s. Kept %d, errors %d.", r.Moved, skipDir, r.Kept, r.Errors)
}

// Options configures a Filter
type Options struct {
	OnError ErrorPolicy
	// OverlayDir, when set, receives a copy of every scanned tile with the detected faces drawn on it
	OverlayDir string
	// OnTile is called before each tile is examined, with a zero-based index
	OnTile func(index, total int, name string)
	Log    logrus.FieldLogger
}

// Filter runs face detection over a tile folder
type Filter struct {
	detector  detection.FaceDetector
	processor *processing.Processor
	opts      Options
	log       logrus.FieldLogger
}

// New creates a filter using detector
func New(detector detection.FaceDetector, opts Options) *Filter {
	if opts.OnError == "" {
		opts.OnError = KeepOnError
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Filter{
		detector:  detector,
		processor: processing.NewProcessor(),
		opts:      opts,
		log:       log,
	}
}

// Run examines every image in tileDir. Tiles where no face reaches
// FaceConfidenceThreshold are moved, with their caption, into skipDir.
// A stop request ends the run before the next tile; moved tiles stay moved.
func (f *Filter) Run(ctx context.Context, tileDir, skipDir string, tok *cancel.Token) (Result, error) {
	res := Result{Status: StatusCompleted}

	if !utils.DirExists(tileDir) {
		return res, fmt.Errorf("%w: %s", ErrTileFolderMissing, tileDir)
	}
	if err := utils.EnsureDir(skipDir); err != nil {
		return res, fmt.Errorf("create skip folder: %w", err)
	}
	if f.opts.OverlayDir != "" {
		if err := utils.EnsureDir(f.opts.OverlayDir); err != nil {
			return res, fmt.Errorf("create overlay folder: %w", err)
		}
	}

	files, err := utils.ListImageFiles(tileDir)
	if err != nil {
		return res, fmt.Errorf("list tiles: %w", err)
	}

	for i, path := range files {
		if tok.Stopped() {
			res.Status = StatusStopped
			return res, nil
		}
		name := filepath.Base(path)
		if f.opts.OnTile != nil {
			f.opts.OnTile(i, len(files), name)
		}
		res.Scanned++
		log := f.log.WithField("file", name)

		skip, err := f.examine(ctx, path)
		if err != nil {
			res.Errors++
			log.WithError(err).Warn("face detection failed")
			skip = f.opts.OnError == SkipOnError
		}
		if !skip {
			res.Kept++
			continue
		}

		if err := f.movePair(path, skipDir, log); err != nil {
			res.Errors++
			res.Kept++
			continue
		}
		res.Moved++
	}
	return res, nil
}

// examine reports whether the tile at path should be skipped
func (f *Filter) examine(ctx context.Context, path string) (bool, error) {
	img, err := f.processor.LoadImage(path)
	if err != nil {
		return false, err
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return false, fmt.Errorf("empty image")
	}

	faces, err := f.detector.DetectFaces(ctx, img)
	if err != nil {
		return false, err
	}
	if f.opts.OverlayDir != "" {
		f.writeOverlay(img, faces, path)
	}

	confidence := types.MaxConfidence(faces)
	f.log.WithFields(logrus.Fields{
		"file":       filepath.Base(path),
		"faces":      len(faces),
		"confidence": confidence,
	}).Debug("tile examined")
	return confidence < FaceConfidenceThreshold, nil
}

func (f *Filter) writeOverlay(img image.Image, faces []types.Face, path string) {
	overlay := f.processor.CreateFaceOverlay(img, faces, FaceConfidenceThreshold)
	out := filepath.Join(f.opts.OverlayDir, utils.BaseName(path)+"_faces.png")
	if err := f.processor.SaveImage(overlay, out, types.EncodeOptions{Format: "png"}); err != nil {
		f.log.WithError(err).WithField("file", filepath.Base(path)).Warn("failed to write face overlay")
	}
}

// movePair moves a tile and its caption into dir. If the caption cannot be
// moved the tile is moved back so the pair stays together.
func (f *Filter) movePair(tilePath, dir string, log logrus.FieldLogger) error {
	tileDst := filepath.Join(dir, filepath.Base(tilePath))
	if err := utils.MoveFile(tilePath, tileDst); err != nil {
		log.WithError(err).Error("failed to move tile")
		return err
	}

	captionPath := utils.CaptionPath(tilePath)
	if !utils.FileExists(captionPath) {
		return nil
	}
	captionDst := filepath.Join(dir, filepath.Base(captionPath))
	if err := utils.MoveFile(captionPath, captionDst); err != nil {
		log.WithError(err).Error("failed to move caption, restoring tile")
		if rbErr := utils.MoveFile(tileDst, tilePath); rbErr != nil {
			log.WithError(rbErr).Error("failed to restore tile")
			return fmt.Errorf("move caption: %w (restore tile: %v)", err, rbErr)
		}
		return fmt.Errorf("move caption: %w", err)
	}
	return nil
}
