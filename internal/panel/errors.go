package panel

import (
	"errors"
	"fmt"
)

var (
	ErrNoIPAddress     = errors.New("no valid IP address found")
	ErrActionInFlight  = errors.New("action already in progress")
	ErrNothingSelected = errors.New("no sessions selected")
	ErrCurrentSession  = errors.New("current session cannot be revoked from the table")
	ErrUnknownSession  = errors.New("session not in working set")
	ErrDuplicateToken  = errors.New("duplicate session token")
)

// ServiceError is a failure the collaborator reported on purpose, as opposed
// to a failure to reach it. Message is shown to the user verbatim.
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Level is the severity of a Notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a transient user-facing message produced by an action.
type Notice struct {
	Level   Level
	Message string
}

func successNotice(msg string) Notice { return Notice{Level: LevelSuccess, Message: msg} }

func errorNotice(msg string) Notice { return Notice{Level: LevelError, Message: msg} }

// failureMessage picks the collaborator's own message when it sent one and
// the fallback for transport failures.
func failureMessage(err error, fallback string) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return fallback
}
