package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/tile-curator/internal/config"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// This is appropriate for flags defined in init() - errors indicate programming bugs.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt gets an int flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetFloat64 gets a float64 flag value or panics if the flag doesn't exist.
func mustGetFloat64(cmd *cobra.Command, name string) float64 {
	val, err := cmd.Flags().GetFloat64(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// changed reports whether the flag exists on cmd and was set on the command line
func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func addFolderFlags(cmd *cobra.Command) {
	cmd.Flags().String("source", "", "Source image folder")
	cmd.Flags().String("output", "", "Output folder for tiles and captions")
	cmd.Flags().String("skip", "", "Folder for tiles without faces")
}

func addTilingFlags(cmd *cobra.Command) {
	cmd.Flags().Int("tile-size", 0, "Square tile size in pixels (sets width and height)")
	cmd.Flags().Int("tile-width", 0, "Tile width in pixels")
	cmd.Flags().Int("tile-height", 0, "Tile height in pixels")
	cmd.Flags().Int("overlap", 0, "Overlap between neighbouring tiles in pixels")
	cmd.Flags().Float64("overlap-ratio", 0, "Overlap as a fraction of the tile size (replaces --overlap)")
	cmd.Flags().Int("tiles-per-image", 0, "Derive a square tile size giving about N tiles per image")
	cmd.Flags().String("format", "", "Tile format: source, jpg, png, webp, bmp, tif or gif")
	cmd.Flags().Int("quality", 0, "JPEG/WebP quality (1-100)")
}

func addDetectorFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", "", "Face detector backend: insightface, ollama or llamacpp")
	cmd.Flags().String("detector-url", "", "Face detector base URL")
	cmd.Flags().String("model", "", "Vision model name for ollama or llamacpp")
	cmd.Flags().String("on-error", "", "What to do with a tile the detector fails on: keep or skip")
	cmd.Flags().String("overlay-dir", "", "Write face overlay images into this folder")
}

// applyFlags copies every flag set on the command line into cfg
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	strs := map[string]*string{
		"source":       &cfg.SourceFolder,
		"output":       &cfg.OutputFolder,
		"skip":         &cfg.SkipFolder,
		"format":       &cfg.OutputFormat,
		"caption":      &cfg.CaptionText,
		"empty":        &cfg.EmptyCaption,
		"backend":      &cfg.Detector.Backend,
		"detector-url": &cfg.Detector.URL,
		"model":        &cfg.Detector.Model,
		"on-error":     &cfg.Filter.OnError,
		"overlay-dir":  &cfg.Filter.OverlayDir,
	}
	for name, dst := range strs {
		if changed(cmd, name) {
			*dst = mustGetString(cmd, name)
		}
	}

	ints := map[string]*int{
		"tile-width":      &cfg.TileWidth,
		"tile-height":     &cfg.TileHeight,
		"tiles-per-image": &cfg.TilesPerImage,
		"quality":         &cfg.Quality,
		"caption-index":   &cfg.CaptionIndex,
	}
	for name, dst := range ints {
		if changed(cmd, name) {
			*dst = mustGetInt(cmd, name)
		}
	}

	if changed(cmd, "tile-size") {
		size := mustGetInt(cmd, "tile-size")
		cfg.TileWidth, cfg.TileHeight = size, size
	}
	if changed(cmd, "overlap") {
		cfg.OverlapPx = mustGetInt(cmd, "overlap")
		cfg.OverlapRatio = 0
	}
	if changed(cmd, "overlap-ratio") {
		cfg.OverlapRatio = mustGetFloat64(cmd, "overlap-ratio")
		cfg.OverlapPx = 0
	}
	if changed(cmd, "caption") {
		cfg.CaptionIndex = -1
	}
	if changed(cmd, "filter") {
		cfg.Filter.Enabled = mustGetBool(cmd, "filter")
	}
	if changed(cmd, "require-empty") {
		cfg.RequireEmptyOutput = mustGetBool(cmd, "require-empty")
	}
}
