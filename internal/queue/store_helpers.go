package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, source_path, output_path, status, attempts, error_kind, error_message, source_size, run_after, progress_percent, progress_message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		sourcePath      string
		outputPath      sql.NullString
		statusStr       string
		attempts        sql.NullInt64
		errorKind       sql.NullString
		errorMessage    sql.NullString
		sourceSize      sql.NullInt64
		runAfterRaw     sql.NullInt64
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&outputPath,
		&statusStr,
		&attempts,
		&errorKind,
		&errorMessage,
		&sourceSize,
		&runAfterRaw,
		&progressPercent,
		&progressMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		SourcePath:      sourcePath,
		OutputPath:      outputPath.String,
		Status:          Status(statusStr),
		Attempts:        int(attempts.Int64),
		ErrorKind:       errorKind.String,
		ErrorMessage:    errorMessage.String,
		SourceSize:      sourceSize.Int64,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}

	if runAfterRaw.Valid {
		job.RunAfter = time.Unix(0, runAfterRaw.Int64).UTC()
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// nullableEpochNanos stores times as integer nanoseconds so SQL comparisons
// keep full precision. Retry delays under a second still gate claims.
func nullableEpochNanos(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().UnixNano()
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
