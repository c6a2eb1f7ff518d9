package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"hopper/internal/config"
)

const userAgent = "Hopper/0.1.0"

// Event enumerates the pipeline milestones worth pushing to an operator.
type Event string

const (
	EventJobSucceeded  Event = "job_succeeded"
	EventJobFailed     Event = "job_failed"
	EventJobAbandoned  Event = "job_abandoned"
	EventQueueDrained  Event = "queue_drained"
	EventDaemonStarted Event = "daemon_started"
	EventDaemonStopped Event = "daemon_stopped"
	EventError         Event = "error"
	EventTest          Event = "test"
)

// Payload carries the event-specific values interpolated into messages.
type Payload map[string]string

// Service is the notification surface the workflow publishes to.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notifier backed by ntfy when a topic is configured,
// or a no-op otherwise. Per-event config flags silently drop suppressed
// events so callers never need to consult the config themselves.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = time.Second
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil
	client := retryClient.StandardClient()
	client.Timeout = timeout

	return &ntfyService{
		endpoint: topic,
		token:    strings.TrimSpace(cfg.Notifications.NtfyToken),
		client:   client,
		enabled: map[Event]bool{
			EventJobSucceeded:  cfg.Notifications.JobSuccess,
			EventJobFailed:     cfg.Notifications.JobFailure,
			EventJobAbandoned:  cfg.Notifications.JobFailure,
			EventQueueDrained:  cfg.Notifications.QueueDrained,
			EventDaemonStarted: cfg.Notifications.DaemonEvents,
			EventDaemonStopped: cfg.Notifications.DaemonEvents,
			EventError:         true,
			EventTest:          true,
		},
	}
}

// NewNop returns a notifier that drops everything. Used by tests and by
// commands that never notify.
func NewNop() Service {
	return noopService{}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	token    string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if enabled, known := n.enabled[event]; known && !enabled {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	get := func(key string) string {
		return strings.TrimSpace(payload[key])
	}

	switch event {
	case EventJobSucceeded:
		body := fmt.Sprintf("Converted: %s", get("source"))
		if output := get("output"); output != "" {
			body += "\nOutput: " + output
		}
		if elapsed := get("elapsed"); elapsed != "" {
			body += "\nTook: " + elapsed
		}
		return message{
			title: "Hopper - Converted",
			body:  body,
			tags:  []string{"hopper", "job", "succeeded"},
		}, true
	case EventJobFailed:
		body := fmt.Sprintf("Failed: %s", get("source"))
		if detail := get("error"); detail != "" {
			body += "\n" + detail
		}
		if attempts := get("attempts"); attempts != "" {
			body += "\nAttempts: " + attempts
		}
		return message{
			title:    "Hopper - Job Failed",
			body:     body,
			tags:     []string{"hopper", "job", "failed"},
			priority: "high",
		}, true
	case EventJobAbandoned:
		body := fmt.Sprintf("Abandoned: %s", get("source"))
		if reason := get("reason"); reason != "" {
			body += "\n" + reason
		}
		return message{
			title:    "Hopper - Job Abandoned",
			body:     body,
			tags:     []string{"hopper", "job", "abandoned"},
			priority: "high",
		}, true
	case EventQueueDrained:
		body := fmt.Sprintf("Queue drained: %s converted, %s failed", orZero(get("succeeded")), orZero(get("failed")))
		if duration := get("duration"); duration != "" {
			body += " in " + duration
		}
		return message{
			title: "Hopper - Queue Drained",
			body:  body,
			tags:  []string{"hopper", "queue", "drained"},
		}, true
	case EventDaemonStarted:
		body := "Daemon started"
		if workers := get("workers"); workers != "" {
			body += " with " + workers + " workers"
		}
		if encoderName := get("encoder"); encoderName != "" {
			body += " using " + encoderName
		}
		return message{
			title: "Hopper - Started",
			body:  body,
			tags:  []string{"hopper", "daemon", "started"},
		}, true
	case EventDaemonStopped:
		return message{
			title: "Hopper - Stopped",
			body:  "Daemon stopped",
			tags:  []string{"hopper", "daemon", "stopped"},
		}, true
	case EventError:
		body := "Error"
		if where := get("context"); where != "" {
			body += " with " + where
		}
		if detail := get("error"); detail != "" {
			body += ": " + detail
		}
		return message{
			title:    "Hopper - Error",
			body:     body,
			tags:     []string{"hopper", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Hopper - Test",
			body:     "Notification system test",
			tags:     []string{"hopper", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func orZero(value string) string {
	if value == "" {
		return "0"
	}
	return value
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
