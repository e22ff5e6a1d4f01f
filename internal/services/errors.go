package services

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	ErrExternalTool      = errors.New("external tool error")
	ErrToolMissing       = fmt.Errorf("%w: tool unavailable", ErrExternalTool)
	ErrTimeout           = errors.New("timeout")
	ErrMalformedOutput   = errors.New("malformed output")
	ErrMissingArtifact   = errors.New("missing artifact")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
	ErrTransient         = errors.New("transient failure")
)

// ErrorKind is the stable classification reported to logs and pollers.
type ErrorKind string

const (
	KindExternalTool      ErrorKind = "external_tool"
	KindTimeout           ErrorKind = "timeout"
	KindMalformedOutput   ErrorKind = "malformed_output"
	KindMissingArtifact   ErrorKind = "missing_artifact"
	KindResourceExhausted ErrorKind = "resource_exhausted"
	KindValidation        ErrorKind = "validation"
	KindConfiguration     ErrorKind = "configuration"
	KindNotFound          ErrorKind = "not_found"
	KindCancelled         ErrorKind = "cancelled"
	KindTransient         ErrorKind = "transient"
	KindUnknown           ErrorKind = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
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

// Classify maps an error onto an ErrorKind. Cancellation wins over every
// marker so an aborted run is never reported as a tool failure.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrResourceExhausted):
		return KindResourceExhausted
	case errors.Is(err, ErrMissingArtifact):
		return KindMissingArtifact
	case errors.Is(err, ErrMalformedOutput):
		return KindMalformedOutput
	case errors.Is(err, ErrExternalTool), errors.Is(err, exec.ErrNotFound):
		return KindExternalTool
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

// ErrorDetails is the structured view of a classified failure used for
// logging and user-facing status messages.
type ErrorDetails struct {
	Kind    ErrorKind
	Message string
	Hint    string
}

// Details extracts the classification, a trimmed message and an operator hint.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	kind := Classify(err)
	return ErrorDetails{
		Kind:    kind,
		Message: strings.TrimSpace(err.Error()),
		Hint:    hintFor(kind),
	}
}

func hintFor(kind ErrorKind) string {
	switch kind {
	case KindExternalTool:
		return "install the missing tool or check its service endpoint"
	case KindTimeout:
		return "increase the stage timeout or check the generator load"
	case KindMalformedOutput:
		return "inspect the generator output; the next provider was tried"
	case KindMissingArtifact:
		return "an earlier stage did not produce its files; regenerate the lesson"
	case KindResourceExhausted:
		return "free disk space or GPU memory and retry"
	case KindConfiguration, KindValidation:
		return "check siksha config with 'siksha config validate'"
	case KindCancelled:
		return "run was cancelled; start it again to resume"
	default:
		return "check logs for details"
	}
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
