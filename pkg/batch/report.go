package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/menta2k/tile-curator/pkg/filter"
)

// Progress describes the image a run is working on. Index is 1-based.
type Progress struct {
	Index    int
	Total    int
	Filename string
}

// Observer receives progress from a run. OnDone is called exactly once per
// run that was allowed to start, including failed ones.
type Observer interface {
	OnProgress(Progress)
	OnDone(Report)
}

// Report is the outcome of a run
type Report struct {
	RunID           string
	Status          State
	FilesTotal      int
	FilesProcessed  int
	TilesWritten    int
	CaptionsWritten int
	Errors          int

	FilterRan    bool
	TilesScanned int
	TilesSkipped int
	FilterErrors int

	Duration time.Duration
	// Err holds the configuration error of a failed run
	Err error
}

// Summary returns the terminal status line of the run
func (r Report) Summary() string {
	if r.Status == StateFailed {
		return fmt.Sprintf("Run failed: %v", r.Err)
	}

	var sb strings.Builder
	if r.Status == StateStopped {
		sb.WriteString(filter.StoppedMessage + " ")
	}
	fmt.Fprintf(&sb, "Processed %d/%d files, %d tiles created", r.FilesProcessed, r.FilesTotal, r.TilesWritten)
	if r.FilterRan {
		fmt.Fprintf(&sb, ", %d tiles moved to the background folder", r.TilesSkipped)
	}
	fmt.Fprintf(&sb, ", %d errors.", r.Errors+r.FilterErrors)
	return sb.String()
}
