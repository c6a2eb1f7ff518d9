package transcode

import (
	"regexp"

	"hopper/internal/services"
)

// Pre-compiled regexes for sorting ffmpeg stderr into the error taxonomy.
// Fatal signatures cover input and codec problems that no retry can fix;
// retryable signatures cover transient host conditions. Anything that
// matches neither bucket stays retryable so the retry budget decides.
var (
	reFatalCodec = regexp.MustCompile(
		`(?i)Unknown encoder|` +
			`Encoder not found|` +
			`Unsupported codec|` +
			`codec not currently supported in container|` +
			`Could not find tag for codec|` +
			`Error while opening encoder|` +
			`is not supported by the (bitstream filter|muxer)|` +
			`Unable to find a suitable output format`)

	reFatalInput = regexp.MustCompile(
		`(?i)Invalid data found when processing input|` +
			`moov atom not found|` +
			`EBML header parsing failed|` +
			`does not contain any stream|` +
			`Failed to read frame size|` +
			`Header missing|` +
			`error reading header`)

	reRetryable = regexp.MustCompile(
		`(?i)Device or resource busy|` +
			`Resource temporarily unavailable|` +
			`Cannot allocate memory|` +
			`Input/output error|` +
			`No space left on device|` +
			`Too many open files|` +
			`Connection (reset|refused|timed out)|` +
			`Protocol error|` +
			`Stale file handle`)
)

// classifyStderr maps a transcoder stderr tail to the error kind recorded on
// the job. Unrecognized output is retryable; the retry budget caps how long
// an unknown failure mode can recur.
func classifyStderr(tail string) services.Kind {
	switch {
	case reFatalCodec.MatchString(tail), reFatalInput.MatchString(tail):
		return services.KindFatal
	case reRetryable.MatchString(tail):
		return services.KindRetryable
	default:
		return services.KindRetryable
	}
}

// markerForKind translates a classification into the sentinel used by Wrap.
func markerForKind(kind services.Kind) error {
	if kind == services.KindFatal {
		return services.ErrFatal
	}
	return services.ErrRetryable
}
