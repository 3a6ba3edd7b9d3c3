package services

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrPermission    = errors.New("permission denied")
	ErrCrossDevice   = errors.New("cross-device move")
	ErrConflict      = errors.New("destination conflict")
	ErrState         = errors.New("invalid state")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Kind is the coarse classification callers use to decide between retrying,
// surfacing, or ignoring a failure.
type Kind string

const (
	KindNone          Kind = ""
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindPermission    Kind = "permission"
	KindCrossDevice   Kind = "cross_device"
	KindConflict      Kind = "conflict"
	KindState         Kind = "state"
	KindTimeout       Kind = "timeout"
	KindTransient     Kind = "transient"
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error onto a Kind. Explicit markers win; otherwise common
// filesystem errors are recognized so raw os errors classify sensibly too.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrState):
		return KindState
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrCrossDevice):
		return KindCrossDevice
	case errors.Is(err, ErrPermission):
		return KindPermission
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	case errors.Is(err, fs.ErrExist):
		return KindConflict
	case errors.Is(err, syscall.EXDEV):
		return KindCrossDevice
	default:
		return KindTransient
	}
}

// Retryable reports whether a failure of this classification may succeed when
// attempted again without user intervention.
func Retryable(err error) bool {
	switch Classify(err) {
	case KindTransient, KindTimeout:
		return true
	default:
		return false
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
