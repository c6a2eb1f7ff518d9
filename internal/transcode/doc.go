// Package transcode runs the external ffmpeg conversion for one queued job.
//
// Each execution probes the source, maps exactly one primary video stream
// (embedded cover art is never selected) plus every audio stream, and
// excludes subtitle, data, and attachment streams. The subprocess writes to
// a temporary name that is renamed into place only on clean exit. Failures
// are classified into the fatal/retryable taxonomy from the stderr tail;
// timeouts and unrecognized output stay retryable.
package transcode
