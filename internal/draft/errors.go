package draft

import "errors"

// Kind classifies engine failures
type Kind int

const (
	// KindUsage marks caller bugs: unknown keys, uninitialised engine, broken internal contracts
	KindUsage Kind = iota + 1
	// KindIllegalState marks expected, recoverable rejections of a command
	KindIllegalState
	// KindConfiguration marks session inputs that prevent the engine from being built
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindIllegalState:
		return "illegal_state"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Code is a machine-readable error code
type Code string

const (
	CodeUnknownCard       Code = "UNKNOWN_CARD"
	CodeUnknownTeam       Code = "UNKNOWN_TEAM"
	CodeNotInitialized    Code = "NOT_INITIALIZED"
	CodeIllegalTransition Code = "ILLEGAL_TRANSITION"
	CodeDuplicateClaim    Code = "DUPLICATE_CLAIM"

	CodeCardUnavailable   Code = "CARD_UNAVAILABLE"
	CodeNothingToUndo     Code = "NOTHING_TO_UNDO"
	CodeDraftAlreadyEnded Code = "DRAFT_ALREADY_ENDED"
	CodeDraftNotEnded     Code = "DRAFT_NOT_ENDED"

	CodeInvalidPool      Code = "INVALID_POOL"
	CodeInvalidRoster    Code = "INVALID_ROSTER"
	CodeInvalidThreshold Code = "INVALID_THRESHOLD"
)

// Error is a classified engine error. Two errors match under errors.Is when their codes match,
// so detail-carrying copies still compare equal to the package sentinels.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports code equality
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(kind Kind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// with returns a copy of e whose message carries extra detail
func (e *Error) with(detail string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message + ": " + detail}
}

var (
	ErrUnknownCard       = newError(KindUsage, CodeUnknownCard, "unknown card")
	ErrUnknownTeam       = newError(KindUsage, CodeUnknownTeam, "unknown team")
	ErrNotInitialized    = newError(KindUsage, CodeNotInitialized, "draft engine not initialized")
	ErrIllegalTransition = newError(KindUsage, CodeIllegalTransition, "illegal card status transition")
	ErrDuplicateClaim    = newError(KindUsage, CodeDuplicateClaim, "card already claimed by team")

	ErrCardUnavailable   = newError(KindIllegalState, CodeCardUnavailable, "card is not available")
	ErrNothingToUndo     = newError(KindIllegalState, CodeNothingToUndo, "nothing to undo")
	ErrDraftAlreadyEnded = newError(KindIllegalState, CodeDraftAlreadyEnded, "draft already ended")
	ErrDraftNotEnded     = newError(KindIllegalState, CodeDraftNotEnded, "draft has not ended")

	ErrInvalidPool      = newError(KindConfiguration, CodeInvalidPool, "invalid card pool")
	ErrInvalidRoster    = newError(KindConfiguration, CodeInvalidRoster, "roster size must be at least 1")
	ErrInvalidThreshold = newError(KindConfiguration, CodeInvalidThreshold, "termination threshold must be at least 1")
)

// KindOf returns the kind of the first *Error in err's chain, or 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf returns the code of the first *Error in err's chain, or ""
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsUsage(err error) bool         { return KindOf(err) == KindUsage }
func IsIllegalState(err error) bool  { return KindOf(err) == KindIllegalState }
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }
