package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/menta2k/tile-curator/pkg/batch"
)

var tileCmd = &cobra.Command{
	Use:   "tile",
	Short: "Tile and caption every image of the source folder",
	Long: `Cut every image of the source folder into tiles in the output folder and
write the configured caption next to each tile. With --filter, tiles whose
best face detection is below the confidence threshold are moved to the
skip folder afterwards.

Examples:
  tile-curator tile --source ./raw --output ./tiles --tile-size 1024 --overlap 128 --caption "photo of sks person"
  tile-curator tile --source ./raw --output ./tiles --caption-index 0 --filter --skip ./background`,
	Args: cobra.NoArgs,
	RunE: runTile,
}

func init() {
	addFolderFlags(tileCmd)
	addTilingFlags(tileCmd)
	addDetectorFlags(tileCmd)
	tileCmd.Flags().String("caption", "", "Caption text written for every tile")
	tileCmd.Flags().Int("caption-index", -1, "Use caption N of the caption library")
	tileCmd.Flags().String("empty", "", "Empty caption handling: skip or write")
	tileCmd.Flags().Bool("filter", false, "Move tiles without faces to the skip folder after tiling")
	tileCmd.Flags().Bool("require-empty", false, "Refuse to run when the output folder is not empty")
	tileCmd.Flags().Bool("no-progress", false, "Disable the progress bar")
	rootCmd.AddCommand(tileCmd)
}

func runTile(cmd *cobra.Command, args []string) error {
	curator, err := newCurator()
	if err != nil {
		return err
	}
	defer stopOnSignal(curator)()

	var obs batch.Observer
	if !mustGetBool(cmd, "no-progress") {
		obs = &barObserver{}
	}

	report, err := curator.Run(cmd.Context(), obs)
	if report.Status.Terminal() {
		fmt.Println(report.Summary())
	}
	return err
}

// barObserver renders batch progress on a terminal progress bar
type barObserver struct {
	bar *progressbar.ProgressBar
}

func (o *barObserver) OnProgress(p batch.Progress) {
	if o.bar == nil {
		o.bar = progressbar.NewOptions(p.Total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Tiling"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}
	o.bar.Describe(p.Filename)
	_ = o.bar.Set(p.Index - 1)
}

func (o *barObserver) OnDone(r batch.Report) {
	if o.bar == nil {
		return
	}
	_ = o.bar.Set(r.FilesProcessed)
	fmt.Fprintln(os.Stderr)
}
