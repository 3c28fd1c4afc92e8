package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var captionsCmd = &cobra.Command{
	Use:   "captions",
	Short: "Manage the caption library",
}

var captionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored captions, most recently used first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		curator, err := newCurator()
		if err != nil {
			return err
		}
		lib := curator.Library()
		captions := lib.Captions()
		if len(captions) == 0 {
			fmt.Printf("No captions in %s\n", lib.Path())
			return nil
		}
		for i, c := range captions {
			fmt.Printf("%3d  %s\n", i, c)
		}
		return nil
	},
}

var captionsAddCmd = &cobra.Command{
	Use:   "add <caption>...",
	Short: "Store a caption at the top of the library",
	Long: `Store a caption at the top of the library. Arguments are joined with
spaces; an existing identical caption is moved to the top.

Examples:
  tile-curator captions add "photo of sks person, outdoors"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		curator, err := newCurator()
		if err != nil {
			return err
		}
		lib := curator.Library()
		if err := lib.Add(strings.Join(args, " ")); err != nil {
			return err
		}
		fmt.Printf("Saved caption to %s\n", lib.Path())
		return nil
	},
}

func init() {
	captionsCmd.AddCommand(captionsListCmd)
	captionsCmd.AddCommand(captionsAddCmd)
	rootCmd.AddCommand(captionsCmd)
}
