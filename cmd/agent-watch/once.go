package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marcin-skalski/agent-watch/internal/event"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single detection cycle and print its events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runOnce(ctx, configPath, cmd.OutOrStdout())
	},
}

func runOnce(ctx context.Context, path string, out io.Writer) error {
	a, err := newApp(path, false)
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.daemon.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("run cycle: %w", err)
	}
	printEvents(out, events)
	return nil
}

func printEvents(out io.Writer, events []event.Event) {
	if len(events) == 0 {
		fmt.Fprintln(out, "no transitions")
		return
	}
	for _, e := range events {
		fmt.Fprintf(out, "%s  %-26s %s\n", e.Time().Format("15:04:05"), event.Name(e), e.String())
	}
}
