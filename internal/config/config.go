package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marcin-skalski/agent-watch/internal/editor"
	"github.com/marcin-skalski/agent-watch/internal/github"
	"github.com/marcin-skalski/agent-watch/internal/remote"
	"github.com/marcin-skalski/agent-watch/internal/window"
)

// TokenEnv is read when github.token is not set in the file.
const TokenEnv = "GITHUB_TOKEN"

type Config struct {
	Repos             []string         `yaml:"repos"`
	GitHub            GitHubConfig     `yaml:"github"`
	PollInterval      time.Duration    `yaml:"-"`
	RawInterval       string           `yaml:"poll_interval"`
	SessionTimeout    time.Duration    `yaml:"-"`
	RawSessionTimeout string           `yaml:"session_timeout"`
	Heuristics        HeuristicsConfig `yaml:"heuristics"`
	Editor            EditorConfig     `yaml:"editor"`
	Notify            NotifyConfig     `yaml:"notify"`
	Workdir           string           `yaml:"workdir"`
	LogFile           string           `yaml:"log_file"`
	Log               LogConfig        `yaml:"log"`
	TUI               TUIConfig        `yaml:"tui"`
}

type GitHubConfig struct {
	Token             string        `yaml:"token"`
	APIURL            string        `yaml:"api_url"`
	Timeout           time.Duration `yaml:"-"`
	RawTimeout        string        `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type HeuristicsConfig struct {
	AssigneePatterns  []string          `yaml:"assignee_patterns"`
	WindowIndicators  []string          `yaml:"window_indicators"`
	ElementIndicators []string          `yaml:"element_indicators"`
	Descriptions      map[string]string `yaml:"descriptions"`
}

type EditorConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	ProcessNames []string `yaml:"process_names"`
}

type NotifyConfig struct {
	Desktop *bool `yaml:"desktop,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"-"`
	RawInterval     string        `yaml:"refresh_interval"`
}

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	var cfg Config
	// Defaults always parse.
	_ = cfg.setDefaults()
	return &cfg
}

// parseDuration accepts Go durations ("90s", "1h") and bare integers,
// which are read as seconds.
func parseDuration(key, raw, def string) (time.Duration, string, error) {
	if raw == "" {
		raw = def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, convErr := strconv.Atoi(strings.TrimSpace(raw))
		if convErr != nil {
			return 0, raw, fmt.Errorf("parse %s %q: %w", key, raw, err)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, raw, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, raw, nil
}

func (c *Config) setDefaults() error {
	var err error
	if c.PollInterval, c.RawInterval, err = parseDuration("poll_interval", c.RawInterval, "5s"); err != nil {
		return err
	}
	if c.SessionTimeout, c.RawSessionTimeout, err = parseDuration("session_timeout", c.RawSessionTimeout, remote.DefaultTimeout.String()); err != nil {
		return err
	}
	if c.GitHub.Timeout, c.GitHub.RawTimeout, err = parseDuration("github.timeout", c.GitHub.RawTimeout, github.DefaultTimeout.String()); err != nil {
		return err
	}
	if c.TUI.RefreshInterval, c.TUI.RawInterval, err = parseDuration("tui.refresh_interval", c.TUI.RawInterval, "1s"); err != nil {
		return err
	}

	if c.GitHub.Token == "" {
		c.GitHub.Token = os.Getenv(TokenEnv)
	}
	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = github.DefaultBaseURL
	}
	if c.GitHub.RequestsPerSecond == 0 {
		c.GitHub.RequestsPerSecond = 5
	}

	if c.Heuristics.AssigneePatterns == nil {
		c.Heuristics.AssigneePatterns = slices.Clone(remote.DefaultAssigneePatterns)
	}
	if c.Heuristics.WindowIndicators == nil {
		c.Heuristics.WindowIndicators = slices.Clone(editor.DefaultWindowIndicators)
	}
	if c.Heuristics.ElementIndicators == nil {
		c.Heuristics.ElementIndicators = make([]string, len(c.Heuristics.WindowIndicators))
		for i, ind := range c.Heuristics.WindowIndicators {
			c.Heuristics.ElementIndicators[i] = strings.ToLower(ind)
		}
	}
	descriptions := maps.Clone(editor.DefaultDescriptions)
	maps.Copy(descriptions, c.Heuristics.Descriptions)
	c.Heuristics.Descriptions = descriptions

	if c.Editor.Enabled == nil {
		defaultTrue := true
		c.Editor.Enabled = &defaultTrue
	}
	if len(c.Editor.ProcessNames) == 0 {
		c.Editor.ProcessNames = slices.Clone(window.DefaultProcessNames)
	}
	if c.Notify.Desktop == nil {
		defaultTrue := true
		c.Notify.Desktop = &defaultTrue
	}

	if c.Workdir == "" {
		c.Workdir = filepath.Join(os.TempDir(), "agent-watch")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.Workdir, "logs", "agent-watch.log")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	return nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Repos))
	for i, r := range c.Repos {
		owner, name, ok := strings.Cut(r, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("repos[%d]: %q is not owner/name", i, r)
		}
		if seen[r] {
			return fmt.Errorf("repos[%d]: duplicate repository %q", i, r)
		}
		seen[r] = true
	}

	u, err := url.Parse(c.GitHub.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("github.api_url: invalid url %q", c.GitHub.APIURL)
	}
	if c.GitHub.RequestsPerSecond < 0 {
		return fmt.Errorf("github.requests_per_second must not be negative, got %v", c.GitHub.RequestsPerSecond)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (debug|info|warn|error)", c.Log.Level)
	}
	return nil
}

// EditorEnabled reports whether local window polling is on.
func (c *Config) EditorEnabled() bool {
	return c.Editor.Enabled == nil || *c.Editor.Enabled
}

// DesktopNotifications reports whether events raise desktop notifications.
func (c *Config) DesktopNotifications() bool {
	return c.Notify.Desktop == nil || *c.Notify.Desktop
}
