package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindAuthRequired    ErrorKind = "AUTH_REQUIRED"
	KindNotAvailable    ErrorKind = "NOT_AVAILABLE"
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindPayload         ErrorKind = "PAYLOAD_ERROR"
	KindNetworkOrServer ErrorKind = "NETWORK_OR_SERVER"
)

const (
	authRequiredMessage = "Your session has expired. Please log in again."
	notFoundMessage     = "The report has not been generated yet. Please check back later."
	payloadMessage      = "The report file could not be read. Please try again."
	networkMessage      = "Failed to retrieve the report. Please try again."
)

var (
	ErrAuthRequired    = &ReportError{Kind: KindAuthRequired}
	ErrNotAvailable    = &ReportError{Kind: KindNotAvailable}
	ErrNotFound        = &ReportError{Kind: KindNotFound}
	ErrPayload         = &ReportError{Kind: KindPayload}
	ErrNetworkOrServer = &ReportError{Kind: KindNetworkOrServer}
)

// ReportError is the only error shape surfaced to callers of report actions.
// Message carries caller-visible detail (gate reasons, server suggestion).
type ReportError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewReportError(kind ErrorKind, message string, err error) *ReportError {
	return &ReportError{Kind: kind, Message: message, Err: err}
}

func (e *ReportError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

// Is matches kind sentinels, so errors.Is(err, ErrNotFound) holds for any
// NOT_FOUND error regardless of its message.
func (e *ReportError) Is(target error) bool {
	t, ok := target.(*ReportError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func KindOf(err error) ErrorKind {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Kind
	}
	if err == nil {
		return ""
	}
	return KindNetworkOrServer
}

// UserMessage maps any error to exactly one user-facing string.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var re *ReportError
	if !errors.As(err, &re) {
		return networkMessage
	}
	switch re.Kind {
	case KindAuthRequired:
		return authRequiredMessage
	case KindNotAvailable:
		if re.Message != "" {
			return re.Message
		}
		return ReportNotAvailableMessage
	case KindNotFound:
		if re.Message != "" {
			return re.Message
		}
		return notFoundMessage
	case KindPayload:
		return payloadMessage
	default:
		return networkMessage
	}
}
