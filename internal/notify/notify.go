// Package notify delivers transition events to their consumers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/marcin-skalski/agent-watch/internal/event"
)

// Sink consumes transition events.
type Sink interface {
	Send(ctx context.Context, e event.Event) error
}

// Format renders the title and body of a user-facing notification.
func Format(e event.Event) (title, message string) {
	switch e := e.(type) {
	case event.EditorStarted:
		return "Agent started", "The editor agent is working"
	case event.EditorStopped:
		if e.TaskDescription == "" {
			return "Agent finished", "The editor agent is idle"
		}
		return "Agent finished", e.TaskDescription
	case event.RemoteSessionCompleted:
		return "Agent session completed", fmt.Sprintf("%s#%d", e.Repository, e.IssueNumber)
	case event.PullRequestCreated:
		return "Draft pull request opened", fmt.Sprintf("%s #%d", e.Repository, e.PRNumber)
	case event.PollFailed:
		return "GitHub polling failed", fmt.Sprintf("%s: %s", e.Repository, e.Kind)
	default:
		return "agent-watch", e.String()
	}
}

// Desktop shows events as native desktop notifications.
type Desktop struct {
	notify func(title, message string, icon any) error
}

func NewDesktop(appName string) *Desktop {
	if appName != "" {
		beeep.AppName = appName
	}
	return &Desktop{notify: beeep.Notify}
}

func (d *Desktop) Send(ctx context.Context, e event.Event) error {
	title, msg := Format(e)
	if err := d.notify(title, msg, ""); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}

// Log writes one structured record per event.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("sink", "log")}
}

func (l *Log) Send(ctx context.Context, e event.Event) error {
	attrs := []any{"event", event.Name(e)}
	switch e := e.(type) {
	case event.EditorStopped:
		attrs = append(attrs, "description", e.TaskDescription)
	case event.RemoteSessionCompleted:
		attrs = append(attrs, "repo", e.Repository, "issue", e.IssueNumber)
	case event.PullRequestCreated:
		attrs = append(attrs, "repo", e.Repository, "pr", e.PRNumber)
	case event.PollFailed:
		attrs = append(attrs, "repo", e.Repository, "kind", e.Kind, "err", e.Err)
	}
	l.logger.InfoContext(ctx, "transition", attrs...)
	return nil
}

const DefaultRecorderSize = 50

// Recorder keeps the most recent events for the status view.
type Recorder struct {
	mu     sync.Mutex
	size   int
	events []event.Event
}

func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = DefaultRecorderSize
	}
	return &Recorder{size: size}
}

func (r *Recorder) Send(ctx context.Context, e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if over := len(r.events) - r.size; over > 0 {
		r.events = slices.Delete(r.events, 0, over)
	}
	return nil
}

// Events returns the recorded events, oldest first.
func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Fanout forwards every event to all sinks, even when some fail.
type Fanout []Sink

func (f Fanout) Send(ctx context.Context, e event.Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
