package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(TokenEnv, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval)
	}
	if cfg.SessionTimeout != time.Hour {
		t.Errorf("SessionTimeout = %v, want 1h", cfg.SessionTimeout)
	}
	if cfg.GitHub.Timeout != 30*time.Second {
		t.Errorf("GitHub.Timeout = %v, want 30s", cfg.GitHub.Timeout)
	}
	if cfg.GitHub.APIURL != "https://api.github.com" {
		t.Errorf("GitHub.APIURL = %q", cfg.GitHub.APIURL)
	}
	if cfg.GitHub.RequestsPerSecond != 5 {
		t.Errorf("GitHub.RequestsPerSecond = %v, want 5", cfg.GitHub.RequestsPerSecond)
	}
	if len(cfg.Repos) != 0 || cfg.GitHub.Token != "" {
		t.Errorf("repos = %v, token = %q, want empty", cfg.Repos, cfg.GitHub.Token)
	}
	if !slices.Equal(cfg.Heuristics.AssigneePatterns, []string{"bot", "agent", "copilot"}) {
		t.Errorf("AssigneePatterns = %v", cfg.Heuristics.AssigneePatterns)
	}
	wantElements := []string{"agent mode", "tool invocation:", "thinking", "run_in_terminal"}
	if !slices.Equal(cfg.Heuristics.ElementIndicators, wantElements) {
		t.Errorf("ElementIndicators = %v, want %v", cfg.Heuristics.ElementIndicators, wantElements)
	}
	if !cfg.EditorEnabled() || !cfg.DesktopNotifications() {
		t.Error("editor polling and desktop notifications should default on")
	}
	if cfg.Log.Level != "info" || cfg.TUI.RefreshInterval != time.Second {
		t.Errorf("Log.Level = %q, TUI.RefreshInterval = %v", cfg.Log.Level, cfg.TUI.RefreshInterval)
	}
	if !strings.HasSuffix(cfg.LogFile, filepath.Join("agent-watch", "logs", "agent-watch.log")) {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")
	path := writeConfig(t, t.TempDir(), `
repos:
  - org/repo
  - org/other
github:
  token: from-file
  api_url: https://ghe.example.com/api/v3
  timeout: 10s
poll_interval: 2s
session_timeout: 30m
heuristics:
  assignee_patterns: [devin]
  descriptions:
    thinking: Pondering
editor:
  enabled: false
notify:
  desktop: false
workdir: /var/lib/agent-watch
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !slices.Equal(cfg.Repos, []string{"org/repo", "org/other"}) {
		t.Errorf("Repos = %v", cfg.Repos)
	}
	if cfg.GitHub.Token != "from-file" {
		t.Errorf("Token = %q, file should win over env", cfg.GitHub.Token)
	}
	if cfg.GitHub.Timeout != 10*time.Second || cfg.PollInterval != 2*time.Second || cfg.SessionTimeout != 30*time.Minute {
		t.Errorf("durations = %v, %v, %v", cfg.GitHub.Timeout, cfg.PollInterval, cfg.SessionTimeout)
	}
	if !slices.Equal(cfg.Heuristics.AssigneePatterns, []string{"devin"}) {
		t.Errorf("AssigneePatterns = %v", cfg.Heuristics.AssigneePatterns)
	}
	if got := cfg.Heuristics.Descriptions["thinking"]; got != "Pondering" {
		t.Errorf("descriptions[thinking] = %q, want override", got)
	}
	if got := cfg.Heuristics.Descriptions["Agent mode"]; got != "Agent mode active" {
		t.Errorf("descriptions[Agent mode] = %q, want default kept", got)
	}
	if cfg.EditorEnabled() || cfg.DesktopNotifications() {
		t.Error("explicit false should disable editor polling and desktop notifications")
	}
	if cfg.LogFile != "/var/lib/agent-watch/logs/agent-watch.log" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
}

func TestLoadBareSeconds(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "poll_interval: 5\nsession_timeout: 3600\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval)
	}
	if cfg.SessionTimeout != time.Hour {
		t.Errorf("SessionTimeout = %v, want 1h", cfg.SessionTimeout)
	}
}

func TestTokenFromEnv(t *testing.T) {
	t.Setenv(TokenEnv, "secret")
	path := writeConfig(t, t.TempDir(), "repos: [org/repo]\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GitHub.Token != "secret" {
		t.Errorf("Token = %q, want value of %s", cfg.GitHub.Token, TokenEnv)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad yaml", "repos: [", "parse config"},
		{"bad interval", "poll_interval: soon", "poll_interval"},
		{"zero interval", "poll_interval: 0s", "must be positive"},
		{"zero bare interval", "poll_interval: 0", "must be positive"},
		{"negative bare timeout", "session_timeout: -5", "must be positive"},
		{"bad session timeout", "session_timeout: -1m", "session_timeout"},
		{"repo without owner", "repos: [repo]", "not owner/name"},
		{"repo with extra segment", "repos: [a/b/c]", "not owner/name"},
		{"duplicate repo", "repos: [a/b, a/b]", "duplicate"},
		{"bad api url", "github:\n  api_url: ftp://x", "api_url"},
		{"negative rate", "github:\n  requests_per_second: -1", "requests_per_second"},
		{"bad level", "log:\n  level: loud", "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.PollInterval != 5*time.Second || cfg.GitHub.APIURL == "" {
		t.Errorf("Default() = %+v", cfg)
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "repos: [org/one]\n")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, logger, func(c *Config) { got <- c })
	}()

	// Give the watcher time to register before editing.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, "repos: [org/one, org/two]\n")

	select {
	case cfg := <-got:
		if !slices.Equal(cfg.Repos, []string{"org/one", "org/two"}) {
			t.Errorf("reloaded Repos = %v", cfg.Repos)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
