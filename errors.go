package ice

import "github.com/pkg/errors"

// ErrorKind is the closed set of error conditions the agent surfaces to the
// application, as opposed to STUN-layer statuses which are carried in
// Check.ErrCode instead (see §7 of the design spec).
type ErrorKind int

const (
	// InvalidArgument covers malformed input to a public Session method.
	InvalidArgument ErrorKind = iota
	// TooManyCandidates means a local or remote candidate table is already
	// at MaxCandidates.
	TooManyCandidates
	// TooManyChecks means check-list construction would exceed MaxChecks.
	TooManyChecks
	// NoCheckList means StartChecks was called before any check was built.
	NoCheckList
	// NameTooLong means a generated check name exceeded CheckNameLen.
	NameTooLong
	// Busy means a gather/resolve operation is already in flight.
	Busy
	// NotSupported marks a feature intentionally left unimplemented. It is
	// also what GatherServerReflexive returns when its query times out or
	// the response lacks XOR-MAPPED-ADDRESS.
	NotSupported
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case TooManyCandidates:
		return "too many candidates"
	case TooManyChecks:
		return "too many checks"
	case NoCheckList:
		return "no check list"
	case NameTooLong:
		return "name too long"
	case Busy:
		return "busy"
	case NotSupported:
		return "not supported"
	default:
		return "unknown error"
	}
}

// Error is the error type returned by public Session/Checklist operations.
type Error struct {
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.msg
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: errors.Errorf(format, args...).Error()}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
