package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	tilecurator "github.com/menta2k/tile-curator"
	"github.com/menta2k/tile-curator/internal/config"
	"github.com/menta2k/tile-curator/internal/logging"
	"github.com/menta2k/tile-curator/internal/utils"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tile-curator",
	Short: "Cut image folders into captioned training tiles",
	Long: `Tile Curator cuts every image of a source folder into overlapping tiles,
writes a caption file next to each tile and can move tiles without a
confident face detection into a separate background folder.

Settings come from a YAML config file, a .env file, TILE_CURATOR_*
environment variables and command line flags, in increasing precedence.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.GetConfigPath(), "Config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this rotating file")
	rootCmd.PersistentFlags().Bool("no-colors", false, "Disable colored log output")
}

func setup(cmd *cobra.Command, args []string) error {
	if changed(cmd, "config") && !utils.FileExists(cfgFile) {
		return fmt.Errorf("config file %s not found", cfgFile)
	}

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	if changed(cmd, "log-level") {
		cfg.Logging.Level = mustGetString(cmd, "log-level")
	}
	if changed(cmd, "log-file") {
		cfg.Logging.File = mustGetString(cmd, "log-file")
	}
	if changed(cmd, "no-colors") {
		cfg.Logging.NoColors = mustGetBool(cmd, "no-colors")
	}

	logger, err = logging.New(cfg.Logging)
	return err
}

func newCurator() (*tilecurator.Curator, error) {
	return tilecurator.New(cfg, logger)
}

// stopOnSignal asks c to stop on the first SIGINT or SIGTERM. The stage
// finishes its current item; a second signal kills the process.
func stopOnSignal(c *tilecurator.Curator) func() {
	ctx, stopNotify := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	stopAfter := context.AfterFunc(ctx, func() {
		logger.Warn("stop requested, finishing current item")
		c.RequestStop()
		stopNotify()
	})
	return func() {
		stopAfter()
		stopNotify()
	}
}
