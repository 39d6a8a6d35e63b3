// Command jsdrv is a thin CLI wrapper over the driver package: scan for
// attached instruments, watch for hotplug events, or print every
// message published under one device's topic prefix.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jsdrv",
	Short: "jsdrv - host-side driver CLI for power-measurement instruments",
	Long: `jsdrv talks to attached power-measurement instruments over USB:
it scans for devices, watches for hotplug arrival and departure, and
streams samples from a device's signals.`,
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}
