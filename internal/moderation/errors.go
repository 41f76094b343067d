package moderation

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigMissing means the chat has no configuration yet
	ErrConfigMissing = errors.New("chat configuration missing")
	// ErrPermissionDenied is returned when a non-admin tries to change chat settings
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrNotFound marks a poll, job or chat that is already gone
	ErrNotFound = errors.New("not found")

	ErrCannotDelete     = errors.New("message can't be deleted")
	ErrPollClosed       = errors.New("poll has already been closed")
	ErrMessageNotFound  = errors.New("message not found")
	errUnclassifiedCall = errors.New("gateway call failed")
)

// GatewayKind classifies platform failures the lifecycle reacts to
type GatewayKind int

const (
	GatewayOther GatewayKind = iota
	GatewayCannotDelete
	GatewayPollClosed
	GatewayMessageNotFound
)

func (k GatewayKind) String() string {
	switch k {
	case GatewayCannotDelete:
		return "cannot_delete"
	case GatewayPollClosed:
		return "poll_closed"
	case GatewayMessageNotFound:
		return "message_not_found"
	default:
		return "other"
	}
}

func (k GatewayKind) sentinel() error {
	switch k {
	case GatewayCannotDelete:
		return ErrCannotDelete
	case GatewayPollClosed:
		return ErrPollClosed
	case GatewayMessageNotFound:
		return ErrMessageNotFound
	default:
		return errUnclassifiedCall
	}
}

// GatewayError wraps a failed outbound platform call
type GatewayError struct {
	Op   string
	Kind GatewayKind
	Err  error
}

// Error returns the platform's own description, which is what gets shown in chat
func (e *GatewayError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.sentinel().Error()
	}
	return e.Err.Error()
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// ParamError is an out-of-range threshold or expiry. Reason is shown to the requester.
type ParamError struct {
	Param  string
	Value  int
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s %d: %s", e.Param, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParameter }
