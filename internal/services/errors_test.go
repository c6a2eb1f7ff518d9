package services_test

import (
	"errors"
	"strings"
	"testing"

	"hopper/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrRetryable, "transcoder", "execute", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrRetryable) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcoder", "execute", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToRetryable(t *testing.T) {
	err := services.Wrap(nil, "watcher", "scan", "walk failed", errors.New("io"))
	if !errors.Is(err, services.ErrRetryable) {
		t.Fatalf("expected nil marker to default to retryable, got %v", err)
	}
}

func TestKindOfMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		expect services.Kind
	}{
		{"fatal", services.Wrap(services.ErrFatal, "transcoder", "classify", "unsupported codec", nil), services.KindFatal},
		{"retryable", services.Wrap(services.ErrRetryable, "transcoder", "execute", "io error", nil), services.KindRetryable},
		{"startup", services.Wrap(services.ErrStartup, "daemon", "lock", "already running", nil), services.KindStartup},
		{"path", services.Wrap(services.ErrPath, "watcher", "scan", "missing root", nil), services.KindPath},
		{"unmarked", errors.New("mystery"), services.KindUnknown},
		{"nil", nil, services.KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if kind := services.KindOf(tc.err); kind != tc.expect {
				t.Fatalf("expected %s, got %s", tc.expect, kind)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if services.Retryable(services.Wrap(services.ErrFatal, "transcoder", "classify", "corrupt input", nil)) {
		t.Fatal("fatal errors must not be retryable")
	}
	if !services.Retryable(services.Wrap(services.ErrRetryable, "transcoder", "execute", "device busy", nil)) {
		t.Fatal("retryable marker should be retryable")
	}
	if !services.Retryable(errors.New("unclassified tool output")) {
		t.Fatal("unclassified errors should fall back to retryable")
	}
}
