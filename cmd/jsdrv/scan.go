package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for attached instruments and print what is found",
	Long: `scan opens the driver, runs one immediate scan pass, and prints
the serial number of every instrument currently attached.

Example:
  jsdrv scan`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, err := openDriver(ctx, cmd)
	if err != nil {
		return fmt.Errorf("open driver: %w", err)
	}
	defer d.Close()

	d.Rescan(ctx)

	devices := d.Devices()
	if len(devices) == 0 {
		fmt.Println("no instruments found")
		return nil
	}
	for _, serial := range devices {
		fmt.Printf("%s\n", serial)
	}
	return nil
}
