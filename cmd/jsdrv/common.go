package main

import (
	"context"

	"github.com/spf13/cobra"

	jsdrv "github.com/jetperch/joulescope-driver-sub001"
	"github.com/jetperch/joulescope-driver-sub001/internal/logging"
)

func loggerFromFlags(cmd *cobra.Command) *logging.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	cfg := logging.DefaultConfig()
	if verbose {
		cfg.Level = logging.LevelDebug
	}
	return logging.NewLogger(cfg)
}

func openDriver(ctx context.Context, cmd *cobra.Command) (*jsdrv.Driver, error) {
	return jsdrv.Open(ctx, &jsdrv.Options{Logger: loggerFromFlags(cmd)})
}
