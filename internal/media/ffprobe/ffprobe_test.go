package ffprobe

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// stubInspect replaces the command seam with a helper process that prints the
// given payload, recording the argument vector of each invocation.
func stubInspect(t *testing.T, payload string, fail bool) *[]string {
	t.Helper()
	var calls []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, strings.Join(append([]string{name}, args...), " "))
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		mode := "success"
		if fail {
			mode = "failure"
		}
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"FFPROBE_HELPER_MODE="+mode,
			"FFPROBE_HELPER_PAYLOAD="+payload,
		)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &calls
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Print(os.Getenv("FFPROBE_HELPER_PAYLOAD"))
	if os.Getenv("FFPROBE_HELPER_MODE") == "failure" {
		os.Exit(1)
	}
	os.Exit(0)
}

func TestInspectParsesStreams(t *testing.T) {
	payload := `{
		"streams": [
			{"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
			{"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2}
		],
		"format": {"filename": "sample.mkv", "nb_streams": 2, "duration": "61.5"}
	}`
	calls := stubInspect(t, payload, false)

	result, err := Inspect(context.Background(), "", "/media/incoming/sample.mkv")
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if len(result.Streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(result.Streams))
	}
	primary, ok := result.PrimaryVideoStream()
	if !ok || primary.CodecName != "h264" {
		t.Fatalf("unexpected primary video stream: %#v", primary)
	}
	if result.DurationSeconds() != 61.5 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if len(*calls) != 1 {
		t.Fatalf("expected one invocation, got %d", len(*calls))
	}
	invocation := (*calls)[0]
	if !strings.HasPrefix(invocation, "ffprobe ") {
		t.Fatalf("expected default binary, got %q", invocation)
	}
	if !strings.HasSuffix(invocation, "-of json -- /media/incoming/sample.mkv") {
		t.Fatalf("expected path after -- separator, got %q", invocation)
	}
}

func TestInspectSurfacesToolFailure(t *testing.T) {
	stubInspect(t, "ffprobe: no such file", true)

	_, err := Inspect(context.Background(), "ffprobe", "/media/incoming/missing.mkv")
	if err == nil {
		t.Fatal("expected error when ffprobe exits non-zero")
	}
	if !strings.Contains(err.Error(), "no such file") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{Index: 0, CodecType: "video"},
			{Index: 1, CodecType: "audio"},
			{Index: 2, CodecType: "audio"},
			{Index: 3, CodecType: "subtitle"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.SubtitleStreamCount() != 1 {
		t.Fatalf("expected 1 subtitle stream, got %d", result.SubtitleStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestPrimaryVideoStreamSkipsCoverArt(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{Index: 0, CodecType: "video", CodecName: "mjpeg", Disposition: Disposition{AttachedPic: 1}},
			{Index: 1, CodecType: "video", CodecName: "h264"},
			{Index: 2, CodecType: "audio"},
		},
	}
	primary, ok := result.PrimaryVideoStream()
	if !ok {
		t.Fatal("expected a primary video stream")
	}
	if primary.Index != 1 || primary.CodecName != "h264" {
		t.Fatalf("expected h264 stream at index 1, got %#v", primary)
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected attached pic excluded from count, got %d", result.VideoStreamCount())
	}
}

func TestPrimaryVideoStreamMissing(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{Index: 0, CodecType: "video", CodecName: "png", Disposition: Disposition{AttachedPic: 1}},
			{Index: 1, CodecType: "audio"},
		},
	}
	if _, ok := result.PrimaryVideoStream(); ok {
		t.Fatal("expected no primary video stream for audio file with cover art")
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
}
