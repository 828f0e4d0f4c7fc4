package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/marcin-skalski/agent-watch/internal/config"
	"github.com/marcin-skalski/agent-watch/internal/daemon"
	"github.com/marcin-skalski/agent-watch/internal/editor"
	"github.com/marcin-skalski/agent-watch/internal/github"
	"github.com/marcin-skalski/agent-watch/internal/logging"
	"github.com/marcin-skalski/agent-watch/internal/notify"
	"github.com/marcin-skalski/agent-watch/internal/remote"
	"github.com/marcin-skalski/agent-watch/internal/window"
)

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
	daemon *daemon.Daemon
}

// newApp loads the config and wires every component.
func newApp(path string, isTUI bool) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.Setup(cfg.LogFile, cfg.Log.Level, isTUI)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	gh := github.NewClient(github.Options{
		BaseURL:           cfg.GitHub.APIURL,
		Timeout:           cfg.GitHub.Timeout,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
	}, logger)
	gh.Configure(cfg.GitHub.Token)

	rt := remote.New(gh, remote.Options{
		Repositories:     cfg.Repos,
		Timeout:          cfg.SessionTimeout,
		AssigneePatterns: cfg.Heuristics.AssigneePatterns,
	}, logger)

	// A nil interface, not a typed nil, when editor polling is off.
	var et daemon.EditorTracker
	if cfg.EditorEnabled() {
		src := window.NewSource(window.Options{ProcessNames: cfg.Editor.ProcessNames}, logger)
		et = editor.New(src, editor.Options{
			WindowIndicators:  cfg.Heuristics.WindowIndicators,
			ElementIndicators: cfg.Heuristics.ElementIndicators,
			Descriptions:      cfg.Heuristics.Descriptions,
		}, logger)
	}

	sinks := notify.Fanout{notify.NewLog(logger)}
	if cfg.DesktopNotifications() {
		sinks = append(sinks, notify.NewDesktop("agent-watch"))
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		closer: closer,
		daemon: daemon.New(cfg, gh, rt, et, sinks, logger),
	}, nil
}

func (a *app) Close() error {
	return a.closer.Close()
}
