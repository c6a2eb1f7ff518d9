package transcode

import (
	"fmt"
	"strings"

	"hopper/internal/config"
	"hopper/internal/encoder"
	"hopper/internal/media/ffprobe"
	"hopper/internal/services"
)

// plan is the resolved invocation for one source file.
type plan struct {
	args     []string
	videoIdx int
	audio    int
	duration float64
}

// buildPlan selects streams and assembles the full ffmpeg argument vector.
// Exactly one video stream is converted: the first whose disposition is not
// attached_pic. All audio streams ride along; subtitles, data, and
// attachments are dropped so container quirks in the source cannot poison
// the mux.
func buildPlan(profile encoder.Profile, probe ffprobe.Result, sourcePath, tempPath string, tc config.Transcode) (plan, error) {
	primary, ok := probe.PrimaryVideoStream()
	if !ok {
		return plan{}, services.Wrap(services.ErrFatal, "transcoder", "plan", "no usable video stream in "+sourcePath, nil)
	}

	args := []string{"-hide_banner", "-nostdin", "-y"}
	args = append(args, profile.InputArgs...)
	args = append(args, "-i", sourcePath)
	args = append(args, "-map", fmt.Sprintf("0:%d", primary.Index))
	args = append(args, "-map", "0:a?")
	args = append(args, profile.VideoArgs...)
	args = append(args, audioArgs(tc)...)
	args = append(args, "-sn", "-dn")

	format := containerFormat(tc.Container)
	if format == "mp4" {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, "-progress", "pipe:1")
	args = append(args, "-f", format, tempPath)

	return plan{
		args:     args,
		videoIdx: primary.Index,
		audio:    len(probe.AudioStreams()),
		duration: probe.DurationSeconds(),
	}, nil
}

func audioArgs(tc config.Transcode) []string {
	codec := strings.TrimSpace(strings.ToLower(tc.AudioCodec))
	if codec == "" || codec == "copy" {
		return []string{"-c:a", "copy"}
	}
	args := []string{"-c:a", codec}
	if bitrate := strings.TrimSpace(tc.AudioBitrate); bitrate != "" {
		args = append(args, "-b:a", bitrate)
	}
	return args
}

// containerFormat maps the configured container extension to the muxer name
// ffmpeg expects after -f. The temp output carries a .partial suffix, so the
// muxer cannot be inferred from the file name.
func containerFormat(container string) string {
	switch strings.TrimSpace(strings.ToLower(strings.TrimPrefix(container, "."))) {
	case "", "mkv", "matroska":
		return "matroska"
	case "mp4", "m4v", "mov":
		return "mp4"
	case "webm":
		return "webm"
	default:
		return strings.TrimSpace(strings.ToLower(strings.TrimPrefix(container, ".")))
	}
}
