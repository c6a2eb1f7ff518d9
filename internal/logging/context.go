package logging

import (
	"context"
	"log/slog"

	"hopper/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for queue job identifiers.
	FieldJobID = "job_id"
	// FieldAttemptID is the standardized structured logging key for per-attempt correlation identifiers.
	FieldAttemptID = "attempt_id"
	// FieldAttempt is the standardized structured logging key for the zero-based retry counter.
	FieldAttempt = "attempt"
	// FieldSourcePath is the standardized structured logging key for source media paths.
	FieldSourcePath = "source_path"
	// FieldOutputPath is the standardized structured logging key for converted output paths.
	FieldOutputPath = "output_path"
	// FieldStatus is the standardized structured logging key for job lifecycle statuses.
	FieldStatus = "status"
	// FieldErrorKind is the standardized structured logging key for the failure classification.
	FieldErrorKind = "error_kind"
	// FieldEncoder is the standardized structured logging key for encoder names.
	FieldEncoder = "encoder"
	// FieldTier is the standardized structured logging key for encoder probe tiers.
	FieldTier = "tier"
	// FieldWorker is the standardized structured logging key for worker indexes.
	FieldWorker = "worker"
	// FieldExitCode is the standardized structured logging key for subprocess exit codes.
	FieldExitCode = "exit_code"
	// FieldEventType labels notable lifecycle events for downstream filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator-facing next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldJobID, id))
	}
	if component, ok := services.ComponentFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldComponent, component))
	}
	if aid, ok := services.AttemptIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAttemptID, aid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
