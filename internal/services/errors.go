package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFatal marks job failures that can never succeed on retry, such as
	// unsupported codecs or corrupt input.
	ErrFatal = errors.New("fatal failure")
	// ErrRetryable marks job failures worth another attempt, such as I/O
	// errors, busy devices, and timeouts.
	ErrRetryable = errors.New("retryable failure")
	// ErrStartup marks process-level failures that abort the daemon before
	// any work begins.
	ErrStartup = errors.New("startup failure")
	// ErrPath marks path-level problems that skip a single path while the
	// rest of the pipeline keeps running.
	ErrPath = errors.New("path skipped")
)

// Kind is the closed classification carried on job records and log events.
type Kind string

const (
	KindFatal     Kind = "fatal"
	KindRetryable Kind = "retryable"
	KindStartup   Kind = "startup"
	KindPath      Kind = "path"
	KindUnknown   Kind = "unknown"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrRetryable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf maps an error chain to its classification. Unmarked errors report
// KindUnknown; the retry policy treats those as retryable.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrFatal):
		return KindFatal
	case errors.Is(err, ErrStartup):
		return KindStartup
	case errors.Is(err, ErrPath):
		return KindPath
	case errors.Is(err, ErrRetryable):
		return KindRetryable
	default:
		return KindUnknown
	}
}

// Retryable reports whether the error should be offered to the retry policy.
// Unclassified errors are retryable so unexpected tool output never strands a
// job without the retry budget having a say.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindFatal, KindStartup, KindPath:
		return false
	default:
		return true
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
