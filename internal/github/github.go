package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v69/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.github.com"
	DefaultTimeout = 30 * time.Second

	userAgent = "agent-watch"
	pageSize  = 100
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client fetches issue and pull-request snapshots from the GitHub REST API.
// It must be given a token with Configure before any fetch succeeds.
type Client struct {
	logger  *slog.Logger
	baseURL string
	apiURL  *url.URL
	timeout time.Duration
	limiter *rate.Limiter

	mu  sync.RWMutex
	api *gh.Client
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	apiURL, err := url.Parse(baseURL + "/")
	if err != nil {
		logger.Warn("invalid github api url, using default", "url", baseURL, "err", err)
		baseURL = DefaultBaseURL
		apiURL, _ = url.Parse(DefaultBaseURL + "/")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(1, int(opts.RequestsPerSecond))
	}

	return &Client{
		logger:  logger,
		baseURL: baseURL,
		apiURL:  apiURL,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Issue is the subset of an open GitHub issue the trackers look at.
type Issue struct {
	ID                int64
	Number            int
	State             string
	AssigneeLogin     string
	EyesReactionCount int
	PullRequestURL    string
}

// PullRequest is the subset of a pull request the trackers look at.
type PullRequest struct {
	Number  int
	State   string
	IsDraft bool
}

// Configure installs the API token. An empty token unconfigures the client.
func (c *Client) Configure(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token == "" {
		c.api = nil
		return
	}

	hc := &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   http.DefaultTransport,
		},
	}
	api := gh.NewClient(hc)
	api.BaseURL = c.apiURL
	api.UserAgent = userAgent
	c.api = api
}

// Configured reports whether a token has been installed.
func (c *Client) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.api != nil
}

// FetchOpenIssues lists open issues for an "owner/name" repository, in API
// response order.
func (c *Client) FetchOpenIssues(ctx context.Context, repository string) ([]Issue, error) {
	owner, name, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRepository, repository)
	}

	api, err := c.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("list issues %s: %w", repository, err)
	}

	raw, _, err := api.Issues.ListByRepo(ctx, owner, name, &gh.IssueListByRepoOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: pageSize},
	})
	if err != nil {
		return nil, fmt.Errorf("list issues %s: %w", repository, classify(err))
	}

	issues := make([]Issue, 0, len(raw))
	for _, r := range raw {
		is := Issue{
			ID:                r.GetID(),
			Number:            r.GetNumber(),
			State:             r.GetState(),
			AssigneeLogin:     r.GetAssignee().GetLogin(),
			EyesReactionCount: r.GetReactions().GetEyes(),
			PullRequestURL:    r.GetPullRequestLinks().GetURL(),
		}
		if is.AssigneeLogin == "" && len(r.Assignees) > 0 {
			is.AssigneeLogin = r.Assignees[0].GetLogin()
		}
		issues = append(issues, is)
	}

	c.logger.Debug("fetched issues", "repo", repository, "count", len(issues))
	return issues, nil
}

// FetchPullRequest fetches a pull request by its API URL. Only URLs under
// the configured API base are followed so the token never leaves that host.
func (c *Client) FetchPullRequest(ctx context.Context, prURL string) (*PullRequest, error) {
	owner, name, number, ok := c.parsePullURL(prURL)
	if !ok {
		return nil, fmt.Errorf("%w: pull request url %q outside %s", ErrInvalidResponse, prURL, c.baseURL)
	}

	api, err := c.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("get pull request %s: %w", prURL, err)
	}

	pr, _, err := api.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return nil, fmt.Errorf("get pull request %s: %w", prURL, classify(err))
	}

	return &PullRequest{
		Number:  pr.GetNumber(),
		State:   pr.GetState(),
		IsDraft: pr.GetDraft(),
	}, nil
}

// parsePullURL splits {base}/repos/{owner}/{name}/pulls/{number}.
func (c *Client) parsePullURL(prURL string) (owner, name string, number int, ok bool) {
	rest, found := strings.CutPrefix(prURL, c.baseURL+"/")
	if !found {
		return "", "", 0, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 5 || parts[0] != "repos" || parts[3] != "pulls" || parts[1] == "" || parts[2] == "" {
		return "", "", 0, false
	}
	n, err := strconv.Atoi(parts[4])
	if err != nil || n <= 0 {
		return "", "", 0, false
	}
	return parts[1], parts[2], n, true
}

// acquire returns the configured API client once the limiter admits a call.
func (c *Client) acquire(ctx context.Context) (*gh.Client, error) {
	c.mu.RLock()
	api := c.api
	c.mu.RUnlock()
	if api == nil {
		return nil, ErrNotConfigured
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return api, nil
}
