package tui

import "time"

type Snapshot struct {
	Timestamp        time.Time
	Running          bool
	PollInterval     time.Duration
	LastPoll         time.Time
	GitHubConfigured bool
	Repos            []string
	Editor           EditorState
	Sessions         []SessionState
	Recent           []EventState
}

type EditorState struct {
	Enabled     bool
	Active      bool
	Description string
}

type SessionState struct {
	Repository      string
	IssueNumber     int
	Age             time.Duration
	HasEyesReaction bool
	HasDraftPR      bool
}

type EventState struct {
	At   time.Time
	Name string // editor_started|editor_stopped|remote_session_completed|pull_request_created|poll_failed
	Text string
}
