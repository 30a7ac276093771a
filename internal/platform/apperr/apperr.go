// Package apperr defines the error taxonomy shared by every arena component.
// All kinds are per-request failures; none of them is fatal to the process.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for the HTTP layer.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindAlreadyVoted
	KindExpired
	KindInvalidInput
	KindInsufficientCandidatePool
	KindIntegrityDenied
	KindTransientUpstream
	KindStorageFailure
)

var kindNames = map[Kind]string{
	KindInternal:                  "internal",
	KindNotFound:                  "not_found",
	KindAlreadyVoted:              "already_voted",
	KindExpired:                   "expired",
	KindInvalidInput:              "invalid_input",
	KindInsufficientCandidatePool: "insufficient_candidate_pool",
	KindIntegrityDenied:           "integrity_denied",
	KindTransientUpstream:         "transient_upstream",
	KindStorageFailure:            "storage_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Recoverable reports whether the caller may show the reason to the client
// as a plain rejection.
func (k Kind) Recoverable() bool {
	switch k {
	case KindNotFound, KindAlreadyVoted, KindExpired, KindInvalidInput,
		KindInsufficientCandidatePool, KindIntegrityDenied:
		return true
	}
	return false
}

// Error is the concrete error carried through the service layers.
type Error struct {
	Kind Kind
	Msg  string
	// Score is only meaningful for KindIntegrityDenied.
	Score int
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrExpired) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound                  = &Error{Kind: KindNotFound}
	ErrAlreadyVoted              = &Error{Kind: KindAlreadyVoted}
	ErrExpired                   = &Error{Kind: KindExpired}
	ErrInvalidInput              = &Error{Kind: KindInvalidInput}
	ErrInsufficientCandidatePool = &Error{Kind: KindInsufficientCandidatePool}
	ErrIntegrityDenied           = &Error{Kind: KindIntegrityDenied}
	ErrTransientUpstream         = &Error{Kind: KindTransientUpstream}
	ErrStorageFailure            = &Error{Kind: KindStorageFailure}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, format, args...)
}

func Storage(err error, format string, args ...any) *Error {
	return Wrap(KindStorageFailure, err, format, args...)
}

func Upstream(err error, format string, args ...any) *Error {
	return Wrap(KindTransientUpstream, err, format, args...)
}

// Denied builds an IntegrityDenied error carrying the trust score.
func Denied(reason string, score int) *Error {
	return &Error{Kind: KindIntegrityDenied, Msg: reason, Score: score}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
