// Package remote infers agent sessions from GitHub issues and pull requests.
package remote

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marcin-skalski/agent-watch/internal/event"
	"github.com/marcin-skalski/agent-watch/internal/github"
)

const (
	DefaultTimeout     = 3600 * time.Second
	DefaultConcurrency = 4
)

// DefaultAssigneePatterns are matched as case-sensitive substrings of the
// issue assignee login.
var DefaultAssigneePatterns = []string{"bot", "agent", "copilot"}

// DataSource is the repository data the tracker polls.
type DataSource interface {
	FetchOpenIssues(ctx context.Context, repository string) ([]github.Issue, error)
	FetchPullRequest(ctx context.Context, url string) (*github.PullRequest, error)
	Configured() bool
}

type Options struct {
	Repositories     []string
	Timeout          time.Duration
	AssigneePatterns []string
	// Concurrency bounds parallel repository fetches.
	Concurrency int
	Now         func() time.Time
}

// Tracker keeps one Session per candidate issue across polls. All session
// state is mutated under mu, after the network work for a cycle is done.
type Tracker struct {
	ds               DataSource
	logger           *slog.Logger
	timeout          time.Duration
	assigneePatterns []string
	concurrency      int
	now              func() time.Time

	mu          sync.Mutex
	repos       []string
	sessions    map[Key]Session
	lastFailure map[string]ErrorKind
	warnedIdle  bool
}

func New(ds DataSource, opts Options, logger *slog.Logger) *Tracker {
	t := &Tracker{
		ds:               ds,
		logger:           logger.With("tracker", "remote"),
		timeout:          opts.Timeout,
		assigneePatterns: slices.Clone(opts.AssigneePatterns),
		concurrency:      opts.Concurrency,
		now:              opts.Now,
		repos:            slices.Clone(opts.Repositories),
		sessions:         make(map[Key]Session),
		lastFailure:      make(map[string]ErrorKind),
	}
	if t.timeout <= 0 {
		t.timeout = DefaultTimeout
	}
	if t.assigneePatterns == nil {
		t.assigneePatterns = slices.Clone(DefaultAssigneePatterns)
	}
	if t.concurrency <= 0 {
		t.concurrency = DefaultConcurrency
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

type candidate struct {
	issue github.Issue
	pr    *github.PullRequest
	prErr error
}

type repoResult struct {
	repo       string
	candidates []candidate
	err        error
}

// Poll runs one cycle: fetch every repository, update sessions, then sweep
// for completed and expired sessions. Fetch failures are logged and reported
// as PollFailed events; they never fail the poll. The only error returned is
// the context's, in which case results are discarded.
func (t *Tracker) Poll(ctx context.Context) ([]event.Event, error) {
	repos := t.Repositories()
	if !t.ready(repos) {
		return nil, nil
	}

	results := t.fetchAll(ctx, repos)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		t.logger.Debug("discarding poll results", "err", err)
		return nil, err
	}

	now := t.now()
	var events []event.Event
	for _, res := range results {
		// Removed by SetRepositories while the fetch was in flight.
		if !slices.Contains(t.repos, res.repo) {
			continue
		}
		events = append(events, t.apply(res, now)...)
	}
	events = append(events, t.sweep(now, repos)...)
	return events, nil
}

// ready reports whether there is anything to poll, warning once per
// unconfigured stretch.
func (t *Tracker) ready(repos []string) bool {
	var reason string
	switch {
	case len(repos) == 0:
		reason = "no repositories configured"
	case !t.ds.Configured():
		reason = "no GitHub token configured"
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if reason == "" {
		t.warnedIdle = false
		return true
	}
	if !t.warnedIdle {
		t.logger.Warn("remote tracking disabled", "reason", reason)
		t.warnedIdle = true
	}
	return false
}

func (t *Tracker) fetchAll(ctx context.Context, repos []string) []repoResult {
	results := make([]repoResult, len(repos))

	var g errgroup.Group
	g.SetLimit(t.concurrency)
	for i, repo := range repos {
		g.Go(func() error {
			results[i] = t.fetchRepo(ctx, repo)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (t *Tracker) fetchRepo(ctx context.Context, repo string) repoResult {
	res := repoResult{repo: repo}

	issues, err := t.ds.FetchOpenIssues(ctx, repo)
	if err != nil {
		res.err = err
		return res
	}

	for _, is := range issues {
		if !t.isCandidate(is) {
			continue
		}
		c := candidate{issue: is}
		if is.PullRequestURL != "" {
			c.pr, c.prErr = t.ds.FetchPullRequest(ctx, is.PullRequestURL)
		}
		res.candidates = append(res.candidates, c)
	}

	t.logger.Debug("polled repo", "repo", repo, "open_issues", len(issues), "candidates", len(res.candidates))
	return res
}

func (t *Tracker) isCandidate(is github.Issue) bool {
	if is.EyesReactionCount > 0 {
		return true
	}
	if is.AssigneeLogin == "" {
		return false
	}
	for _, p := range t.assigneePatterns {
		if strings.Contains(is.AssigneeLogin, p) {
			return true
		}
	}
	return false
}

// apply folds one repository's fetch result into the session map.
// Caller must hold t.mu.
func (t *Tracker) apply(res repoResult, now time.Time) []event.Event {
	if res.err != nil {
		return t.recordFailure(res.repo, res.err, now)
	}
	delete(t.lastFailure, res.repo)

	var events []event.Event
	for _, c := range res.candidates {
		key := Key{Repository: res.repo, IssueNumber: c.issue.Number}

		s, ok := t.sessions[key]
		if ok {
			s.HasEyesReaction = c.issue.EyesReactionCount > 0
		} else {
			s = Session{
				Repository:      res.repo,
				IssueNumber:     c.issue.Number,
				StartTime:       now,
				HasEyesReaction: c.issue.EyesReactionCount > 0,
			}
			t.logger.Info("tracking agent session", "repo", res.repo, "issue", c.issue.Number,
				"eyes", s.HasEyesReaction, "assignee", c.issue.AssigneeLogin)
		}

		switch {
		case c.prErr != nil:
			t.logger.Warn("fetch pull request failed", "repo", res.repo, "issue", c.issue.Number,
				"kind", Classify(c.prErr), "err", c.prErr)
		case c.pr != nil:
			var ev event.Event
			s, ev = advancePR(s, *c.pr, now)
			if ev != nil {
				t.logger.Info("draft pull request detected", "repo", res.repo, "issue", c.issue.Number, "pr", c.pr.Number)
				events = append(events, ev)
			}
		}

		t.sessions[key] = s
	}
	return events
}

// recordFailure logs a repository failure and returns a PollFailed event
// when the failure kind differs from the previous cycle's.
// Caller must hold t.mu.
func (t *Tracker) recordFailure(repo string, err error, now time.Time) []event.Event {
	kind := Classify(err)
	if kind == KindAuth {
		t.logger.Error("github rejected the token; update github.token or GITHUB_TOKEN", "repo", repo, "err", err)
	} else {
		t.logger.Warn("poll repo failed", "repo", repo, "kind", kind, "err", err)
	}

	if prev, ok := t.lastFailure[repo]; ok && prev == kind {
		return nil
	}
	t.lastFailure[repo] = kind
	return []event.Event{event.PollFailed{
		At:         now,
		Repository: repo,
		Kind:       string(kind),
		Err:        err,
	}}
}

// sweep removes completed and expired sessions, emitting one
// RemoteSessionCompleted per removal in repository order then issue number.
// Caller must hold t.mu.
func (t *Tracker) sweep(now time.Time, repos []string) []event.Event {
	var done []Session
	for _, s := range t.sessions {
		if s.IsCompleted || s.expired(now, t.timeout) {
			done = append(done, s)
		}
	}
	if len(done) == 0 {
		return nil
	}
	sortSessions(done, repos)

	events := make([]event.Event, 0, len(done))
	for _, s := range done {
		reason := "ready_for_review"
		if !s.IsCompleted {
			reason = "timeout"
		}
		t.logger.Info("agent session completed", "repo", s.Repository, "issue", s.IssueNumber,
			"reason", reason, "duration", now.Sub(s.StartTime).Round(time.Second))

		delete(t.sessions, s.key())
		events = append(events, event.RemoteSessionCompleted{
			At:          now,
			Repository:  s.Repository,
			IssueNumber: s.IssueNumber,
		})
	}
	return events
}

// Reset drops every tracked session.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.sessions)
	clear(t.lastFailure)
	t.warnedIdle = false
}

// SetRepositories replaces the monitored repository list and drops the
// sessions of repositories no longer listed.
func (t *Tracker) SetRepositories(repos []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.repos = slices.Clone(repos)

	for key := range t.sessions {
		if !slices.Contains(repos, key.Repository) {
			t.logger.Info("dropping session of unmonitored repo", "repo", key.Repository, "issue", key.IssueNumber)
			delete(t.sessions, key)
		}
	}
	for repo := range t.lastFailure {
		if !slices.Contains(repos, repo) {
			delete(t.lastFailure, repo)
		}
	}
}

func (t *Tracker) Repositories() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.repos)
}

// Sessions returns a copy of the tracked sessions in display order.
func (t *Tracker) Sessions() []Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	sortSessions(out, t.repos)
	return out
}

// sortSessions orders by configured repository position, then repository
// name for unlisted ones, then issue number.
func sortSessions(ss []Session, repos []string) {
	pos := make(map[string]int, len(repos))
	for i, r := range repos {
		pos[r] = i
	}
	rank := func(repo string) int {
		if i, ok := pos[repo]; ok {
			return i
		}
		return len(repos)
	}

	slices.SortFunc(ss, func(a, b Session) int {
		if ra, rb := rank(a.Repository), rank(b.Repository); ra != rb {
			return ra - rb
		}
		if c := strings.Compare(a.Repository, b.Repository); c != 0 {
			return c
		}
		return a.IssueNumber - b.IssueNumber
	})
}
