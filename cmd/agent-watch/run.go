package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/marcin-skalski/agent-watch/internal/config"
	"github.com/marcin-skalski/agent-watch/internal/tui"
)

var noTUI bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor continuously until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Auto-detect TUI capability
		enableTUI := !noTUI && os.Getenv("AGENT_WATCH_TUI") != "0" &&
			isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
		return runDaemon(cmd.Context(), configPath, enableTUI)
	},
}

func init() {
	runCmd.Flags().BoolVar(&noTUI, "no-tui", false, "disable TUI mode")
}

func runDaemon(parent context.Context, path string, enableTUI bool) error {
	a, err := newApp(path, enableTUI)
	if err != nil {
		return err
	}
	defer a.Close()

	unlock, err := acquireLock(a.cfg.Workdir)
	if err != nil {
		return err
	}
	defer unlock()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := config.Watch(ctx, path, a.logger, a.daemon.Reload); err != nil {
			a.logger.Warn("config watch disabled", "err", err)
		}
	}()

	a.daemon.Start(ctx)
	defer a.daemon.Stop()

	if !enableTUI {
		a.logger.Info("agent-watch running (headless)", "config", path)
		<-ctx.Done()
		a.logger.Info("shutting down")
		return nil
	}

	a.logger.Info("agent-watch running", "config", path)
	if err := tui.Run(ctx, a.daemon, a.daemon, a.cfg.TUI.RefreshInterval); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// acquireLock ensures a single monitoring process per workdir.
func acquireLock(workdir string) (func(), error) {
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	lockPath := filepath.Join(workdir, "agent-watch.lock")

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("another agent-watch is already running (lock %s)", lockPath)
	}
	return func() { _ = fl.Unlock() }, nil
}
