// Package caption keeps every emitted tile paired with its caption text file
// and manages the library of reusable captions.
package caption

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/menta2k/tile-curator/internal/utils"
)

// EmptyPolicy decides what happens when the caption for a tile is empty
type EmptyPolicy string

const (
	// SkipEmpty writes no caption file for an empty caption
	SkipEmpty EmptyPolicy = "skip"
	// WriteEmpty writes an empty caption file
	WriteEmpty EmptyPolicy = "write"
)

// ParseEmptyPolicy converts a configuration value to an EmptyPolicy
func ParseEmptyPolicy(s string) (EmptyPolicy, error) {
	switch EmptyPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SkipEmpty:
		return SkipEmpty, nil
	case WriteEmpty:
		return WriteEmpty, nil
	}
	return "", fmt.Errorf("unknown empty caption policy %q", s)
}

// Writer writes caption artifacts next to tile artifacts
type Writer struct {
	empty EmptyPolicy
}

// NewWriter creates a caption writer with the given empty-caption policy
func NewWriter(empty EmptyPolicy) *Writer {
	if empty == "" {
		empty = SkipEmpty
	}
	return &Writer{empty: empty}
}

// Write stores caption in the sibling .txt of tilePath, replacing any previous
// content. It reports whether a file was written. Under SkipEmpty an empty
// caption removes a caption left by an earlier run.
func (w *Writer) Write(tilePath, caption string) (bool, error) {
	path := utils.CaptionPath(tilePath)
	if caption == "" && w.empty == SkipEmpty {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("remove stale caption %s: %w", path, err)
		}
		return false, nil
	}
	if err := os.WriteFile(path, []byte(caption), 0644); err != nil {
		return false, fmt.Errorf("write caption %s: %w", path, err)
	}
	return true, nil
}
