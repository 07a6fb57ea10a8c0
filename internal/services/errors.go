package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrAuth          = errors.New("authentication failed")
	ErrRateLimited   = errors.New("rate limited")
	ErrTransient     = errors.New("transient failure")
	ErrTimeout       = errors.New("timeout")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrExternalTool  = errors.New("external service error")
)

// Kind is the user-facing failure category a run reports when it halts.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
	KindAuthInvalid  Kind = "auth_invalid"
	KindRateLimited  Kind = "rate_limited"
	KindTransient    Kind = "transient"
	KindValidation   Kind = "validation"
	KindFatal        Kind = "fatal"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// markers lists the taxonomy sentinels from most to least specific.
var markers = []error{
	ErrInvalidInput,
	ErrNotFound,
	ErrAuth,
	ErrConfiguration,
	ErrRateLimited,
	ErrTransient,
	ErrTimeout,
	ErrValidation,
	ErrExternalTool,
}

// MarkerOf returns the most specific sentinel err already carries, or nil.
func MarkerOf(err error) error {
	if err == nil {
		return nil
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return nil
}

// KindOf maps a stage error onto the failure taxonomy. Markers are checked in
// order of specificity so an auth failure wrapped inside an external tool error
// still reports as auth_invalid.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindFatal
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAuth), errors.Is(err, ErrConfiguration):
		return KindAuthInvalid
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout):
		return KindTransient
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindFatal
	}
}

// Remediation returns a short operator hint for the failure kind, or an empty
// string when there is nothing actionable to suggest.
func Remediation(kind Kind) string {
	switch kind {
	case KindInvalidInput:
		return "check the repository and commit identifiers and resubmit"
	case KindNotFound:
		return "verify the commit exists and the token can read the repository"
	case KindAuthInvalid:
		return "check credentials in the config file or environment (see 'bluestar config validate')"
	case KindRateLimited:
		return "API quota exhausted; wait for the reset window or configure a token"
	case KindTransient:
		return "upstream service unavailable; try again later"
	case KindValidation:
		return "the model returned malformed output; rerun or switch models"
	default:
		return ""
	}
}

// UserMessage formats err for the run's error list, appending the remediation
// hint for its kind when one exists.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if hint := Remediation(KindOf(err)); hint != "" {
		return msg + " (" + hint + ")"
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
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
