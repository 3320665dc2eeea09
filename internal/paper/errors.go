// Package paper provides error kinds shared by the version watcher components.
package paper

import (
	"errors"
	"fmt"
)

// Error variables for the version watcher
var (
	// ErrVersionNotFound is returned when no version token is present in a text
	ErrVersionNotFound = errors.New("no version number found")
	// ErrNetwork is returned on transport failures and unexpected HTTP statuses
	ErrNetwork = errors.New("network error")
	// ErrParse is returned when the page lacks the expected HTML structure
	ErrParse = errors.New("unexpected page structure")
	// ErrMalformedResponse is returned when the builds API response lacks the builds array
	ErrMalformedResponse = errors.New("malformed builds response")
	// ErrInvalidVersion is returned when the builds API does not know the queried version
	ErrInvalidVersion = errors.New("invalid version")
	// ErrIO is returned when the persisted version slot cannot be read or written
	ErrIO = errors.New("version store I/O error")
)

// VersionNotFoundError carries the text that did not contain a version.
type VersionNotFoundError struct {
	Text string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("%v in text: %q", ErrVersionNotFound, e.Text)
}

// Is makes errors.Is(err, ErrVersionNotFound) hold.
func (e *VersionNotFoundError) Is(target error) bool {
	return target == ErrVersionNotFound
}

// Kind classifies an error returned by this package.
type Kind int

const (
	KindNone Kind = iota
	KindVersionNotFound
	KindNetwork
	KindParse
	KindMalformedResponse
	KindInvalidVersion
	KindIO
	KindOther
)

var kindNames = map[Kind]string{
	KindNone:              "none",
	KindVersionNotFound:   "version_not_found",
	KindNetwork:           "network",
	KindParse:             "parse",
	KindMalformedResponse: "malformed_response",
	KindInvalidVersion:    "invalid_version",
	KindIO:                "io",
	KindOther:             "other",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindOf returns the kind of err so callers can switch on the outcome
// instead of chaining errors.Is checks.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrVersionNotFound):
		return KindVersionNotFound
	case errors.Is(err, ErrInvalidVersion):
		return KindInvalidVersion
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrIO):
		return KindIO
	default:
		return KindOther
	}
}
