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

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Watch for instrument arrival and departure",
	Long: `open subscribes to the device-add/device-remove broadcast topic
and prints one line per event: any instrument already attached is
reported immediately, then the command blocks and reports arrivals and
departures as they happen until interrupted.

Example:
  jsdrv open`,
	RunE: runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, err := openDriver(ctx, cmd)
	if err != nil {
		return fmt.Errorf("open driver: %w", err)
	}
	defer d.Close()

	identity := uintptr(1)
	sub := &pubsub.Subscriber{
		Identity: identity,
		Flags:    pubsub.FlagPub | pubsub.FlagRetain,
		Callback: func(msg *queue.Message) {
			s, _ := msg.Value.Str()
			switch msg.Topic.String() {
			case "@/!add":
				fmt.Printf("+ %s\n", s)
			case "@/!remove":
				fmt.Printf("- %s\n", s)
			}
		},
	}
	if err := d.Subscribe("@", sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer d.UnsubscribeAll(identity)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}
