package cerrors

import (
	"fmt"

	"github.com/palantir/stacktrace"
)

// Error is the common error carrier for the orchestration core, it keeps
// the failing phase and target alongside the machine readable code
type Error struct {
	ErrorCode ErrorType
	Phase     string
	Target    string
	Reason    string
}

func (e Error) Error() string {
	switch {
	case e.Phase == "" && e.Target == "":
		return e.Reason
	case e.Target == "":
		return fmt.Sprintf("[%s]: %s", e.Phase, e.Reason)
	case e.Phase == "":
		return fmt.Sprintf("target: '%s', %s", e.Target, e.Reason)
	}
	return fmt.Sprintf("[%s]: target: '%s', %s", e.Phase, e.Target, e.Reason)
}

func (e Error) UserFriendly() bool {
	return true
}

func (e Error) ErrorType() ErrorType {
	return e.ErrorCode
}

// Is matches err (or its root cause) against the given error code
func Is(err error, code ErrorType) bool {
	if err == nil {
		return false
	}
	if GetErrorType(err) == code {
		return true
	}
	return GetErrorType(stacktrace.RootCause(err)) == code
}
