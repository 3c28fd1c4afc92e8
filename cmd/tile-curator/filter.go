package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Move tiles without faces from the output folder to the skip folder",
	Long: `Run face detection on every tile of the output folder. A tile whose most
confident face is below the threshold is moved together with its caption
file to the skip folder.

Examples:
  tile-curator filter --output ./tiles --skip ./background
  tile-curator filter --output ./tiles --skip ./background --backend ollama --model qwen2.5vl:7b`,
	Args: cobra.NoArgs,
	RunE: runFilter,
}

func init() {
	addFolderFlags(filterCmd)
	addDetectorFlags(filterCmd)
	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, args []string) error {
	curator, err := newCurator()
	if err != nil {
		return err
	}
	defer stopOnSignal(curator)()

	var bar *progressbar.ProgressBar
	res, err := curator.FilterTiles(cmd.Context(), func(index, total int, name string) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("Detecting faces"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("tiles"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionFullWidth(),
			)
		}
		bar.Describe(name)
		_ = bar.Set(index)
	})
	if bar != nil {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}
	fmt.Println(res.Summary(cfg.SkipFolder))
	return nil
}
