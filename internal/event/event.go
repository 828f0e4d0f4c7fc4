// Package event defines the transitions emitted by the trackers.
package event

import (
	"fmt"
	"time"
)

// Event is one detected transition. The concrete types below are the only
// implementations.
type Event interface {
	// Time returns when the transition was detected.
	Time() time.Time
	// String returns a short human-readable summary.
	String() string

	isEvent()
}

// EditorStarted fires when the local editor agent goes from idle to busy.
type EditorStarted struct {
	At time.Time
}

// EditorStopped fires when the local editor agent goes from busy to idle.
type EditorStopped struct {
	At              time.Time
	TaskDescription string
}

// RemoteSessionCompleted fires when a tracked issue session completes or
// expires.
type RemoteSessionCompleted struct {
	At          time.Time
	Repository  string
	IssueNumber int
}

// PullRequestCreated fires the first time a draft PR is seen for a session.
type PullRequestCreated struct {
	At         time.Time
	Repository string
	PRNumber   int
}

// PollFailed reports a repository fetch failure worth surfacing to the user.
type PollFailed struct {
	At         time.Time
	Repository string
	Kind       string
	Err        error
}

func (e EditorStarted) Time() time.Time          { return e.At }
func (e EditorStopped) Time() time.Time          { return e.At }
func (e RemoteSessionCompleted) Time() time.Time { return e.At }
func (e PullRequestCreated) Time() time.Time     { return e.At }
func (e PollFailed) Time() time.Time             { return e.At }

func (EditorStarted) isEvent()          {}
func (EditorStopped) isEvent()          {}
func (RemoteSessionCompleted) isEvent() {}
func (PullRequestCreated) isEvent()     {}
func (PollFailed) isEvent()             {}

func (e EditorStarted) String() string {
	return "editor agent started"
}

func (e EditorStopped) String() string {
	if e.TaskDescription == "" {
		return "editor agent stopped"
	}
	return "editor agent stopped: " + e.TaskDescription
}

func (e RemoteSessionCompleted) String() string {
	return fmt.Sprintf("%s#%d session completed", e.Repository, e.IssueNumber)
}

func (e PullRequestCreated) String() string {
	return fmt.Sprintf("%s draft PR #%d created", e.Repository, e.PRNumber)
}

func (e PollFailed) String() string {
	return fmt.Sprintf("%s poll failed (%s): %v", e.Repository, e.Kind, e.Err)
}

// Name returns a stable identifier for the event type, used in logs.
func Name(e Event) string {
	switch e.(type) {
	case EditorStarted:
		return "editor_started"
	case EditorStopped:
		return "editor_stopped"
	case RemoteSessionCompleted:
		return "remote_session_completed"
	case PullRequestCreated:
		return "pull_request_created"
	case PollFailed:
		return "poll_failed"
	default:
		return "unknown"
	}
}
