// Package batch drives a tiling run over a folder of source images.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/tile-curator/internal/utils"
	"github.com/menta2k/tile-curator/pkg/caption"
	"github.com/menta2k/tile-curator/pkg/cancel"
	"github.com/menta2k/tile-curator/pkg/detection"
	"github.com/menta2k/tile-curator/pkg/filter"
	"github.com/menta2k/tile-curator/pkg/tiler"
	"github.com/menta2k/tile-curator/pkg/types"
)

// ErrRunInProgress is returned by Run while another run is active
var ErrRunInProgress = errors.New("a run is already in progress")

// ErrOutputNotEmpty is returned when an empty output folder is required and it is not
var ErrOutputNotEmpty = errors.New("output folder is not empty")

// FilterOptions enables the background-tile filter after tiling
type FilterOptions struct {
	SkipDir    string
	Detector   detection.FaceDetector
	OnError    filter.ErrorPolicy
	OverlayDir string
}

// Options describes a single run
type Options struct {
	SourceDir string
	OutputDir string

	Tiling tiler.Config
	Encode types.EncodeOptions

	Caption      caption.Source
	Library      *caption.Library
	EmptyCaption caption.EmptyPolicy

	// RequireEmptyOutput refuses to start when OutputDir has entries
	RequireEmptyOutput bool

	// Filter, when set, runs the background-tile filter on OutputDir after tiling completes
	Filter *FilterOptions
}

// Orchestrator runs one stage at a time, a tiling run or a standalone
// stage on the same folders, and can be asked to stop it
type Orchestrator struct {
	// mu guards running together with the token reset at the start of a stage
	mu      sync.Mutex
	running bool
	state   atomic.Int32
	token   *cancel.Token
	log     logrus.FieldLogger
}

// New creates an idle orchestrator
func New(log logrus.FieldLogger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		token: cancel.New(),
		log:   log,
	}
}

// State returns the state of the current or last run
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// RequestStop asks the active stage to stop after the item it is working on.
// It has no effect when nothing is running.
func (o *Orchestrator) RequestStop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		o.token.Request()
	}
}

// begin takes the in-flight guard and returns the freshly reset token
func (o *Orchestrator) begin() (*cancel.Token, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil, ErrRunInProgress
	}
	o.token.Reset()
	o.running = true
	return o.token, nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

// Exclusive runs fn while holding the guard that Run takes, so no tiling run
// can start while fn works on the folders. fn receives the stage's stop token;
// cancelling ctx requests a stop.
func (o *Orchestrator) Exclusive(ctx context.Context, fn func(tok *cancel.Token) error) error {
	tok, err := o.begin()
	if err != nil {
		return err
	}
	defer o.end()

	stopOnCancel := context.AfterFunc(ctx, tok.Request)
	defer stopOnCancel()
	if ctx.Err() != nil {
		tok.Request()
	}
	return fn(tok)
}

// RunFilter runs the background-tile filter on tileDir on its own, under the
// same guard as Run. onTile may be nil.
func (o *Orchestrator) RunFilter(ctx context.Context, tileDir string, opts FilterOptions, onTile func(index, total int, name string)) (filter.Result, error) {
	if opts.Detector == nil {
		return filter.Result{}, fmt.Errorf("%w: background filter without a face detector", tiler.ErrInvalidConfiguration)
	}
	if opts.SkipDir == "" {
		return filter.Result{}, fmt.Errorf("%w: background filter without a skip folder", tiler.ErrInvalidConfiguration)
	}

	var res filter.Result
	err := o.Exclusive(ctx, func(tok *cancel.Token) error {
		var err error
		res, err = newFilter(opts, onTile, o.log).Run(ctx, tileDir, opts.SkipDir, tok)
		return err
	})
	return res, err
}

// Run tiles every image of opts.SourceDir into opts.OutputDir. Configuration
// problems found before anything is written end the run as StateFailed and
// are returned as an error. Per-image problems are logged and counted.
// Cancelling ctx has the same effect as RequestStop.
func (o *Orchestrator) Run(ctx context.Context, opts Options, obs Observer) (Report, error) {
	if _, err := o.begin(); err != nil {
		return Report{Status: o.State()}, err
	}
	defer o.end()

	o.state.Store(int32(StateRunning))
	stopOnCancel := context.AfterFunc(ctx, o.token.Request)
	defer stopOnCancel()
	if ctx.Err() != nil {
		o.token.Request()
	}

	started := time.Now()
	report := Report{RunID: uuid.NewString(), Status: StateRunning}
	log := o.log.WithField("run_id", report.RunID)

	finish := func(status State, err error) (Report, error) {
		report.Status = status
		report.Err = err
		report.Duration = time.Since(started)
		o.state.Store(int32(status))
		if obs != nil {
			obs.OnDone(report)
		}
		log.WithFields(logrus.Fields{
			"status":   status.String(),
			"files":    report.FilesProcessed,
			"tiles":    report.TilesWritten,
			"skipped":  report.TilesSkipped,
			"errors":   report.Errors + report.FilterErrors,
			"duration": report.Duration.Round(time.Millisecond).String(),
		}).Info("run finished")
		return report, err
	}

	files, text, err := prepare(opts)
	if err != nil {
		log.WithError(err).Error("run configuration rejected")
		return finish(StateFailed, err)
	}
	report.FilesTotal = len(files)
	log.WithFields(logrus.Fields{
		"source": opts.SourceDir,
		"output": opts.OutputDir,
		"files":  len(files),
	}).Info("run started")

	t := tiler.New(opts.Encode, log)
	writer := caption.NewWriter(opts.EmptyCaption)

	for i, path := range files {
		if o.token.Stopped() {
			return finish(StateStopped, nil)
		}
		name := filepath.Base(path)
		if obs != nil {
			obs.OnProgress(Progress{Index: i + 1, Total: len(files), Filename: name})
		}

		src, img, err := t.Load(path)
		if err != nil {
			report.Errors++
			log.WithFields(logrus.Fields{"file": name, "error": err.Error()}).Error("failed to load image")
			continue
		}

		res, err := t.TileImage(src, img, opts.Tiling, opts.OutputDir, o.token, func(tile tiler.Tile) {
			written, err := writer.Write(tile.Path, text)
			if err != nil {
				report.Errors++
				log.WithFields(logrus.Fields{"file": filepath.Base(tile.Path), "error": err.Error()}).Error("failed to write caption")
				return
			}
			if written {
				report.CaptionsWritten++
			}
		})
		if err != nil {
			report.Errors++
			log.WithFields(logrus.Fields{"file": name, "error": err.Error()}).Error("failed to tile image")
			continue
		}

		// a stop before the first tile leaves the image untouched
		if len(res.Tiles) > 0 || res.Errors > 0 {
			report.FilesProcessed++
		}
		report.TilesWritten += len(res.Tiles)
		report.Errors += res.Errors
		if res.Stopped {
			return finish(StateStopped, nil)
		}
	}

	if opts.Filter != nil {
		if o.token.Stopped() {
			return finish(StateStopped, nil)
		}
		fres, err := o.runFilter(ctx, opts, log)
		report.FilterRan = true
		report.TilesScanned = fres.Scanned
		report.TilesSkipped = fres.Moved
		report.FilterErrors = fres.Errors
		if err != nil {
			report.FilterErrors++
			log.WithError(err).Error("background filter failed")
		}
		if fres.Status == filter.StatusStopped {
			return finish(StateStopped, nil)
		}
	}

	return finish(StateCompleted, nil)
}

func (o *Orchestrator) runFilter(ctx context.Context, opts Options, log logrus.FieldLogger) (filter.Result, error) {
	return newFilter(*opts.Filter, nil, log).Run(ctx, opts.OutputDir, opts.Filter.SkipDir, o.token)
}

func newFilter(opts FilterOptions, onTile func(index, total int, name string), log logrus.FieldLogger) *filter.Filter {
	return filter.New(opts.Detector, filter.Options{
		OnError:    opts.OnError,
		OverlayDir: opts.OverlayDir,
		OnTile:     onTile,
		Log:        log,
	})
}

// prepare validates a run before anything is written and returns the sorted
// source files and the resolved caption.
func prepare(opts Options) ([]string, string, error) {
	if err := opts.Tiling.Validate(); err != nil {
		return nil, "", err
	}
	if opts.SourceDir == "" || opts.OutputDir == "" {
		return nil, "", fmt.Errorf("%w: source and output folders are required", tiler.ErrInvalidConfiguration)
	}
	if filepath.Clean(opts.SourceDir) == filepath.Clean(opts.OutputDir) {
		return nil, "", fmt.Errorf("%w: output folder must differ from source folder", tiler.ErrInvalidConfiguration)
	}
	if opts.Filter != nil && opts.Filter.Detector == nil {
		return nil, "", fmt.Errorf("%w: background filter enabled without a face detector", tiler.ErrInvalidConfiguration)
	}
	if opts.Filter != nil && opts.Filter.SkipDir == "" {
		return nil, "", fmt.Errorf("%w: background filter enabled without a skip folder", tiler.ErrInvalidConfiguration)
	}

	text, err := opts.Caption.Resolve(opts.Library)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", tiler.ErrInvalidConfiguration, err)
	}

	files, err := utils.ListImageFiles(opts.SourceDir)
	if err != nil {
		return nil, "", fmt.Errorf("read source folder: %w", err)
	}

	if opts.RequireEmptyOutput && utils.DirExists(opts.OutputDir) {
		empty, err := utils.IsDirEmpty(opts.OutputDir)
		if err != nil {
			return nil, "", fmt.Errorf("read output folder: %w", err)
		}
		if !empty {
			return nil, "", fmt.Errorf("%w: %s", ErrOutputNotEmpty, opts.OutputDir)
		}
	}
	if err := utils.EnsureDir(opts.OutputDir); err != nil {
		return nil, "", fmt.Errorf("create output folder: %w", err)
	}
	return files, text, nil
}
