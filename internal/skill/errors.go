package skill

import (
	"errors"
	"fmt"

	"github.com/joshu-sajeev/wastewise/internal/models"
)

var (
	ErrSkillNotFound = errors.New("skill not registered")
	// ErrConfigNotFound is returned when no configuration row exists for a
	// skill.
	ErrConfigNotFound = models.ErrSkillConfigNotFound
)

// Kind classifies a skill failure for the retry decision.
type Kind int

const (
	// KindInfrastructure failures are transient and retried.
	KindInfrastructure Kind = iota
	// KindValidation failures come from bad input and are never retried.
	KindValidation
	// KindConfiguration failures come from missing or drifted configuration
	// and are never retried.
	KindConfiguration
	// KindCancellation marks work stopped by a cancel request.
	KindCancellation
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindCancellation:
		return "cancellation"
	default:
		return "infrastructure"
	}
}

// Error is a classified skill failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ValidationErr(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func ConfigurationErr(code string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func InfrastructureErr(code string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindInfrastructure, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func CancellationErr(format string, args ...any) *Error {
	return &Error{Kind: KindCancellation, Code: "CANCELLED", Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the classification of err. Errors that are not *Error are
// treated as infrastructure failures.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInfrastructure
}

// CodeOf returns the code carried by err, or fallback.
func CodeOf(err error, fallback string) string {
	var se *Error
	if errors.As(err, &se) && se.Code != "" {
		return se.Code
	}
	return fallback
}

func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

func IsConfiguration(err error) bool {
	return err != nil && KindOf(err) == KindConfiguration
}

func IsInfrastructure(err error) bool {
	return err != nil && KindOf(err) == KindInfrastructure
}

func IsCancellation(err error) bool {
	return err != nil && KindOf(err) == KindCancellation
}
