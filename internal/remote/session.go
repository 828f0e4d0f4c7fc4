package remote

import (
	"errors"
	"time"

	"github.com/marcin-skalski/agent-watch/internal/event"
	"github.com/marcin-skalski/agent-watch/internal/github"
)

// Key identifies a session: one issue in one repository.
type Key struct {
	Repository  string
	IssueNumber int
}

// Session is the tracked lifetime of one issue's agent-assisted work.
type Session struct {
	Repository      string
	IssueNumber     int
	StartTime       time.Time
	HasEyesReaction bool
	HasDraftPR      bool
	IsCompleted     bool
}

func (s Session) key() Key {
	return Key{Repository: s.Repository, IssueNumber: s.IssueNumber}
}

// expired reports whether a never-engaged session has outlived timeout.
func (s Session) expired(now time.Time, timeout time.Duration) bool {
	return !s.HasEyesReaction && now.Sub(s.StartTime) > timeout
}

// advancePR applies one PR snapshot to a session and returns the updated
// value plus the event it produced, if any.
//
//	noPR/anything -> draft:   first draft snapshot, emits PullRequestCreated
//	draft -> readyForReview:  open non-draft after a draft, marks completed
func advancePR(s Session, pr github.PullRequest, now time.Time) (Session, event.Event) {
	switch {
	case pr.IsDraft && !s.HasDraftPR:
		s.HasDraftPR = true
		return s, event.PullRequestCreated{
			At:         now,
			Repository: s.Repository,
			PRNumber:   pr.Number,
		}
	case !pr.IsDraft && pr.State == "open" && s.HasDraftPR:
		s.IsCompleted = true
	}
	return s, nil
}

// ErrorKind classifies fetch failures.
type ErrorKind string

const (
	KindConfigurationMissing ErrorKind = "configuration_missing"
	KindTransient            ErrorKind = "transient"
	KindAuth                 ErrorKind = "auth"
	KindMalformedResponse    ErrorKind = "malformed_response"
)

// Classify maps a data source error onto the failure taxonomy.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, github.ErrNotConfigured), errors.Is(err, github.ErrInvalidRepository):
		return KindConfigurationMissing
	case errors.Is(err, github.ErrUnauthenticated):
		return KindAuth
	case errors.Is(err, github.ErrInvalidResponse):
		return KindMalformedResponse
	default:
		return KindTransient
	}
}
