package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Check source images against the tile geometry",
	Long: `Move source images whose size does not tile evenly with the configured
tile size and overlap into another folder. A note with the recommended crop
size is written next to every moved image.

Examples:
  tile-curator prepare --source ./raw --incompatible ./raw_incompatible --tile-size 1024 --overlap 128`,
	Args: cobra.NoArgs,
	RunE: runPrepare,
}

var autocropCmd = &cobra.Command{
	Use:   "autocrop",
	Short: "Center-crop images to the nearest size that tiles evenly",
	Long: `Center-crop every image of the source folder to the largest size that
tiles evenly and write the result into an empty folder.

Examples:
  tile-curator autocrop --source ./raw_incompatible --cropped ./raw_cropped --tile-size 1024 --overlap 128`,
	Args: cobra.NoArgs,
	RunE: runAutoCrop,
}

func init() {
	addFolderFlags(prepareCmd)
	addTilingFlags(prepareCmd)
	prepareCmd.Flags().String("incompatible", "", "Folder for images that do not tile evenly (required)")
	_ = prepareCmd.MarkFlagRequired("incompatible")
	rootCmd.AddCommand(prepareCmd)

	addFolderFlags(autocropCmd)
	addTilingFlags(autocropCmd)
	autocropCmd.Flags().String("cropped", "", "Empty folder for the cropped images (required)")
	_ = autocropCmd.MarkFlagRequired("cropped")
	rootCmd.AddCommand(autocropCmd)
}

func runPrepare(cmd *cobra.Command, args []string) error {
	curator, err := newCurator()
	if err != nil {
		return err
	}
	defer stopOnSignal(curator)()

	dir := mustGetString(cmd, "incompatible")
	res, err := curator.FilterIncompatible(cmd.Context(), dir)
	if err != nil {
		return err
	}
	fmt.Printf("Checked %d images, moved %d incompatible images to %s, %d errors.\n", res.Scanned, res.Affected, dir, res.Errors)
	if res.Stopped {
		fmt.Println("Stopped before all images were checked.")
	}
	return nil
}

func runAutoCrop(cmd *cobra.Command, args []string) error {
	curator, err := newCurator()
	if err != nil {
		return err
	}
	defer stopOnSignal(curator)()

	dir := mustGetString(cmd, "cropped")
	res, err := curator.AutoCrop(cmd.Context(), cfg.SourceFolder, dir)
	if err != nil {
		return err
	}
	fmt.Printf("Cropped %d of %d images into %s, %d errors.\n", res.Affected, res.Scanned, dir, res.Errors)
	if res.Stopped {
		fmt.Println("Stopped before all images were cropped.")
	}
	return nil
}
