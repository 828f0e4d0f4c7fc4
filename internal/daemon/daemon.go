package daemon

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcin-skalski/agent-watch/internal/config"
	"github.com/marcin-skalski/agent-watch/internal/event"
	"github.com/marcin-skalski/agent-watch/internal/notify"
	"github.com/marcin-skalski/agent-watch/internal/remote"
	"github.com/marcin-skalski/agent-watch/internal/tui"
)

// ErrRunning is returned by RunOnce while the scheduler loop is active.
var ErrRunning = errors.New("monitoring already running")

const statusInterval = time.Minute

type RemoteTracker interface {
	Poll(ctx context.Context) ([]event.Event, error)
	Reset()
	SetRepositories(repos []string)
	Repositories() []string
	Sessions() []remote.Session
}

type EditorTracker interface {
	Poll(ctx context.Context) (event.Event, bool)
	Active() (bool, string)
	Reset()
}

// TokenConfigurer is the part of the GitHub client that follows config
// reloads.
type TokenConfigurer interface {
	Configure(token string)
	Configured() bool
}

// Daemon schedules editor and remote polls and forwards the resulting
// events to its sink.
type Daemon struct {
	gh       TokenConfigurer
	remote   RemoteTracker
	editor   EditorTracker
	sink     notify.Sink
	recorder *notify.Recorder
	logger   *slog.Logger

	// lifecycleMu serializes Start, Stop and RunOnce.
	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	running     atomic.Bool

	inflight   sync.WaitGroup
	intervalCh chan time.Duration

	mu       sync.Mutex
	interval time.Duration
	lastPoll time.Time
}

// New wires a scheduler. et may be nil when editor polling is disabled.
func New(cfg *config.Config, gh TokenConfigurer, rt RemoteTracker, et EditorTracker, sink notify.Sink, logger *slog.Logger) *Daemon {
	rec := notify.NewRecorder(notify.DefaultRecorderSize)
	sinks := notify.Fanout{rec}
	if sink != nil {
		sinks = append(sinks, sink)
	}
	return &Daemon{
		gh:         gh,
		remote:     rt,
		editor:     et,
		sink:       sinks,
		recorder:   rec,
		logger:     logger,
		intervalCh: make(chan time.Duration, 1),
		interval:   cfg.PollInterval,
	}
}

// Start launches the polling loop. The first cycle runs immediately.
func (d *Daemon) Start(ctx context.Context) {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()

	if d.cancel != nil {
		d.logger.Warn("monitoring already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running.Store(true)

	d.mu.Lock()
	interval := d.interval
	d.mu.Unlock()

	d.logger.Info("monitoring started", "poll_interval", interval, "repos", len(d.remote.Repositories()))
	go d.run(runCtx, d.done, interval)
}

// Stop cancels the loop, waits for in-flight polls and clears all session
// state.
func (d *Daemon) Stop() {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()

	if d.cancel == nil {
		d.logger.Warn("monitoring not running")
		return
	}

	d.cancel()
	<-d.done
	d.inflight.Wait()
	d.cancel = nil
	d.done = nil

	d.remote.Reset()
	if d.editor != nil {
		d.editor.Reset()
	}
	d.running.Store(false)
	d.logger.Info("monitoring stopped")
}

func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Toggle stops a running scheduler or starts a stopped one.
func (d *Daemon) Toggle(ctx context.Context) {
	if d.Running() {
		d.Stop()
		return
	}
	d.Start(ctx)
}

// RunOnce performs a single synchronous cycle and returns its events after
// they have been dispatched.
func (d *Daemon) RunOnce(ctx context.Context) ([]event.Event, error) {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()

	if d.cancel != nil {
		return nil, ErrRunning
	}

	var events []event.Event
	if d.editor != nil {
		if ev, ok := d.editor.Poll(ctx); ok {
			events = append(events, ev)
		}
	}
	remoteEvents, err := d.remote.Poll(ctx)
	if err != nil {
		return nil, err
	}
	events = append(events, remoteEvents...)
	d.markPolled()

	d.dispatch(ctx, events)
	return events, nil
}

// Reload applies a new config to the running scheduler: repository list,
// token and poll interval.
func (d *Daemon) Reload(cfg *config.Config) {
	d.gh.Configure(cfg.GitHub.Token)
	d.remote.SetRepositories(cfg.Repos)

	d.mu.Lock()
	changed := cfg.PollInterval != d.interval
	d.interval = cfg.PollInterval
	d.mu.Unlock()

	if changed {
		// Drop a pending, not yet applied interval.
		select {
		case <-d.intervalCh:
		default:
		}
		select {
		case d.intervalCh <- cfg.PollInterval:
		default:
		}
	}

	d.logger.Info("config applied", "repos", len(cfg.Repos), "poll_interval", cfg.PollInterval,
		"github_configured", d.gh.Configured())
}

type remoteResult struct {
	events []event.Event
	err    error
}

// cycle is the run loop's private state. Only the loop goroutine touches it.
type cycle struct {
	results chan remoteResult
	busy    bool

	// held are editor events of ticks that ran while a remote poll was in
	// flight; they are dispatched after that poll's events.
	held []event.Event
}

func (d *Daemon) run(ctx context.Context, done chan struct{}, interval time.Duration) {
	defer close(done)

	c := &cycle{results: make(chan remoteResult, 1)}
	d.tick(ctx, c)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statusTicker := time.NewTicker(statusInterval)
	defer statusTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(c.held) > 0 {
				d.logger.Debug("dropping held editor events", "count", len(c.held))
			}
			return
		case iv := <-d.intervalCh:
			d.logger.Info("poll interval changed", "poll_interval", iv)
			ticker.Reset(iv)
		case <-ticker.C:
			d.tick(ctx, c)
		case res := <-c.results:
			d.finishRemote(ctx, c, res)
		case <-statusTicker.C:
			d.logSessionStatus()
		}
	}
}

// tick polls the editor synchronously and starts a remote poll unless the
// previous one is still in flight.
func (d *Daemon) tick(ctx context.Context, c *cycle) {
	if d.editor != nil {
		if ev, ok := d.editor.Poll(ctx); ok {
			if c.busy {
				c.held = append(c.held, ev)
			} else {
				d.dispatch(ctx, []event.Event{ev})
			}
		}
	}

	if c.busy {
		d.logger.Debug("remote poll still in flight, skipping")
		return
	}

	c.busy = true
	results := c.results
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		events, err := d.remote.Poll(ctx)
		results <- remoteResult{events: events, err: err}
	}()
}

// finishRemote dispatches a remote poll's events, then the editor events
// held back while it ran.
func (d *Daemon) finishRemote(ctx context.Context, c *cycle, res remoteResult) {
	c.busy = false
	if res.err != nil {
		d.logger.Debug("remote poll discarded", "err", res.err)
	} else {
		d.markPolled()
		d.dispatch(ctx, res.events)
	}
	held := c.held
	c.held = nil
	d.dispatch(ctx, held)
}

func (d *Daemon) dispatch(ctx context.Context, events []event.Event) {
	for _, e := range events {
		if err := d.sink.Send(ctx, e); err != nil {
			d.logger.Warn("deliver event failed", "event", event.Name(e), "err", err)
		}
	}
}

func (d *Daemon) markPolled() {
	d.mu.Lock()
	d.lastPoll = time.Now()
	d.mu.Unlock()
}

func (d *Daemon) logSessionStatus() {
	sessions := d.remote.Sessions()
	if len(sessions) == 0 {
		return
	}

	d.logger.Info("active agent sessions", "count", len(sessions))
	for _, s := range sessions {
		d.logger.Info("  session",
			"repo", s.Repository,
			"issue", s.IssueNumber,
			"eyes", s.HasEyesReaction,
			"draft_pr", s.HasDraftPR,
			"age", time.Since(s.StartTime).Round(time.Second))
	}
}

// GetSnapshot returns the status view model.
func (d *Daemon) GetSnapshot() tui.Snapshot {
	now := time.Now()

	d.mu.Lock()
	interval, lastPoll := d.interval, d.lastPoll
	d.mu.Unlock()

	snap := tui.Snapshot{
		Timestamp:        now,
		Running:          d.Running(),
		PollInterval:     interval,
		LastPoll:         lastPoll,
		GitHubConfigured: d.gh.Configured(),
		Repos:            slices.Clone(d.remote.Repositories()),
	}

	if d.editor != nil {
		active, desc := d.editor.Active()
		snap.Editor = tui.EditorState{Enabled: true, Active: active, Description: desc}
	}

	for _, s := range d.remote.Sessions() {
		snap.Sessions = append(snap.Sessions, tui.SessionState{
			Repository:      s.Repository,
			IssueNumber:     s.IssueNumber,
			Age:             now.Sub(s.StartTime).Round(time.Second),
			HasEyesReaction: s.HasEyesReaction,
			HasDraftPR:      s.HasDraftPR,
		})
	}

	recent := d.recorder.Events()
	for i := len(recent) - 1; i >= 0; i-- {
		e := recent[i]
		snap.Recent = append(snap.Recent, tui.EventState{At: e.Time(), Name: event.Name(e), Text: e.String()})
	}

	return snap
}
