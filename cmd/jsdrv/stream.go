package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jetperch/joulescope-driver-sub001/internal/pubsub"
	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
)

var streamCmd = &cobra.Command{
	Use:   "stream <device-prefix>",
	Short: "Print every published message under a device's topic prefix",
	Long: `stream subscribes under a device's topic prefix (e.g.
u/js220/SN0123456) and prints each published message as it arrives:
settings changes, memory responses, and sample windows published to a
signal's !data topic. It runs until interrupted.

Example:
  jsdrv stream u/js220/SN0123456`,
	Args: cobra.ExactArgs(1),
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, err := openDriver(ctx, cmd)
	if err != nil {
		return fmt.Errorf("open driver: %w", err)
	}
	defer d.Close()

	prefix := args[0]
	identity := uintptr(1)
	sub := &pubsub.Subscriber{
		Identity: identity,
		Flags:    pubsub.FlagPub,
		Callback: func(msg *queue.Message) {
			fmt.Printf("%s %s\n", msg.Topic.String(), formatValue(msg.Value))
		},
	}
	if err := d.Subscribe(prefix, sub); err != nil {
		return fmt.Errorf("subscribe %s: %w", prefix, err)
	}
	defer d.UnsubscribeAll(identity)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

func formatValue(v queue.Value) string {
	if b, ok := v.Bin(); ok {
		return fmt.Sprintf("<%d bytes>", len(b))
	}
	if s, ok := v.Str(); ok {
		return s
	}
	if f, ok := v.Float(); ok {
		return fmt.Sprintf("%g", f)
	}
	if n, ok := v.Int(); ok {
		return fmt.Sprintf("%d", n)
	}
	if n, ok := v.Uint(); ok {
		return fmt.Sprintf("%d", n)
	}
	return "<null>"
}
