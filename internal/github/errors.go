// Package github is a read-only client for the GitHub issues and pulls API.
package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v69/github"
)

var (
	// ErrNotConfigured is returned by every fetch until a token is set.
	ErrNotConfigured     = errors.New("github token not configured")
	ErrInvalidRepository = errors.New("invalid repository, want owner/name")
	ErrUnauthenticated   = errors.New("github authentication failed")
	ErrRateLimited       = errors.New("github rate limit exceeded")
	ErrNetwork           = errors.New("github request failed")
	ErrInvalidResponse   = errors.New("invalid github response")
)

// StatusError is a non-2xx API response. It unwraps to one of the sentinel
// errors above.
type StatusError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v: status %d", e.kind, e.StatusCode)
	}
	return fmt.Sprintf("%v: status %d: %s", e.kind, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// classify maps a go-github error onto the sentinels.
func classify(err error) error {
	var (
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
		respErr  *gh.ErrorResponse
		syntax   *json.SyntaxError
		typeErr  *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &rateErr):
		return newStatusError(rateErr.Response, rateErr.Message, ErrRateLimited)
	case errors.As(err, &abuseErr):
		return newStatusError(abuseErr.Response, abuseErr.Message, ErrRateLimited)
	case errors.As(err, &respErr):
		return newStatusError(respErr.Response, respErr.Message, statusKind(respErr))
	case errors.As(err, &syntax), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: decode: %w", ErrInvalidResponse, err)
	default:
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
}

func newStatusError(resp *http.Response, msg string, kind error) *StatusError {
	se := &StatusError{Message: msg, kind: kind}
	if resp != nil {
		se.StatusCode = resp.StatusCode
	}
	return se
}

// statusKind classifies an error response. A 403 is a rate limit when it
// carries Retry-After or says so, which is how secondary limits look.
func statusKind(e *gh.ErrorResponse) error {
	if e.Response == nil {
		return ErrNetwork
	}
	switch e.Response.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusForbidden:
		if e.Response.Header.Get("Retry-After") != "" ||
			e.Response.Header.Get("X-RateLimit-Remaining") == "0" ||
			strings.Contains(strings.ToLower(e.Message), "rate limit") {
			return ErrRateLimited
		}
		return ErrUnauthenticated
	default:
		return ErrNetwork
	}
}
