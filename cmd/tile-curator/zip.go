package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/menta2k/tile-curator/internal/utils"
)

var zipCmd = &cobra.Command{
	Use:   "zip",
	Short: "Archive the output folder for download",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		curator, err := newCurator()
		if err != nil {
			return err
		}
		path, n, err := curator.Zip()
		if err != nil {
			return err
		}
		size := "unknown size"
		if info, err := os.Stat(path); err == nil {
			size = utils.FormatFileSize(info.Size())
		}
		fmt.Printf("Wrote %d files to %s (%s)\n", n, path, size)
		return nil
	},
}

func init() {
	zipCmd.Flags().String("output", "", "Folder to archive")
	rootCmd.AddCommand(zipCmd)
}
