// Package editor detects agent activity in local editor windows.
package editor

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/marcin-skalski/agent-watch/internal/event"
	"github.com/marcin-skalski/agent-watch/internal/window"
)

// FallbackDescription is used when the matched indicator has no mapping.
const FallbackDescription = "Processing request"

var DefaultWindowIndicators = []string{"Agent mode", "Tool invocation:", "thinking", "run_in_terminal"}

// DefaultElementIndicators are matched against lower-cased element titles.
var DefaultElementIndicators = []string{"agent mode", "tool invocation:", "thinking", "run_in_terminal"}

var DefaultDescriptions = map[string]string{
	"Agent mode":       "Agent mode active",
	"Tool invocation:": "Running a tool",
	"thinking":         "Thinking",
	"run_in_terminal":  "Running a terminal command",
	"agent mode":       "Agent mode active",
	"tool invocation:": "Running a tool",
}

// Source is the local activity data the tracker polls.
type Source interface {
	ListEditorWindows(ctx context.Context) []window.Snapshot
	ElevatedAccessGranted(ctx context.Context) bool
	ElementTitles(ctx context.Context, w window.Snapshot) []string
}

type Options struct {
	WindowIndicators  []string
	ElementIndicators []string
	Descriptions      map[string]string
	Now               func() time.Time
}

type Tracker struct {
	src               Source
	logger            *slog.Logger
	windowIndicators  []string
	elementIndicators []string
	descriptions      map[string]string
	now               func() time.Time

	mu             sync.Mutex
	wasAgentActive bool
	description    string
}

func New(src Source, opts Options, logger *slog.Logger) *Tracker {
	t := &Tracker{
		src:               src,
		logger:            logger.With("tracker", "editor"),
		windowIndicators:  slices.Clone(opts.WindowIndicators),
		elementIndicators: slices.Clone(opts.ElementIndicators),
		descriptions:      maps.Clone(opts.Descriptions),
		now:               opts.Now,
	}
	if t.windowIndicators == nil {
		t.windowIndicators = slices.Clone(DefaultWindowIndicators)
	}
	if t.elementIndicators == nil {
		t.elementIndicators = slices.Clone(DefaultElementIndicators)
	}
	if t.descriptions == nil {
		t.descriptions = maps.Clone(DefaultDescriptions)
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// Poll inspects the editor windows once and returns an event when agent
// activity started or stopped since the previous poll.
func (t *Tracker) Poll(ctx context.Context) (event.Event, bool) {
	active, keyword := t.detect(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	if ctx.Err() != nil {
		return nil, false
	}

	was := t.wasAgentActive
	t.wasAgentActive = active

	switch {
	case active && !was:
		t.description = t.describe(keyword)
		t.logger.Info("editor agent started", "indicator", keyword, "description", t.description)
		return event.EditorStarted{At: t.now()}, true
	case !active && was:
		desc := t.description
		t.description = ""
		t.logger.Info("editor agent stopped", "description", desc)
		return event.EditorStopped{At: t.now(), TaskDescription: desc}, true
	case active:
		t.description = t.describe(keyword)
	}
	return nil, false
}

// detect returns whether any editor window shows agent activity and the
// indicator that matched first.
func (t *Tracker) detect(ctx context.Context) (bool, string) {
	wins := t.src.ListEditorWindows(ctx)
	for _, w := range wins {
		if kw, ok := firstMatch(w.Title, t.windowIndicators); ok {
			return true, kw
		}
	}

	if len(wins) == 0 || len(t.elementIndicators) == 0 || !t.src.ElevatedAccessGranted(ctx) {
		return false, ""
	}
	for _, w := range wins {
		for _, title := range t.src.ElementTitles(ctx, w) {
			if kw, ok := firstMatch(strings.ToLower(title), t.elementIndicators); ok {
				return true, kw
			}
		}
	}
	return false, ""
}

func firstMatch(s string, indicators []string) (string, bool) {
	for _, ind := range indicators {
		if ind != "" && strings.Contains(s, ind) {
			return ind, true
		}
	}
	return "", false
}

func (t *Tracker) describe(keyword string) string {
	if d, ok := t.descriptions[keyword]; ok && d != "" {
		return d
	}
	return FallbackDescription
}

// Active reports the last observed state and its task description.
func (t *Tracker) Active() (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wasAgentActive, t.description
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wasAgentActive = false
	t.description = ""
}
