package workflow_test

import (
	"errors"
	"testing"
	"time"

	"hopper/internal/queue"
	"hopper/internal/services"
	"hopper/internal/workflow"
)

func TestDecideSuccess(t *testing.T) {
	policy := workflow.Policy{MaxRetries: 3, Delay: time.Minute}
	decision := policy.Decide(2, nil)
	if decision.Status != queue.StatusSucceeded || decision.Retry {
		t.Fatalf("unexpected decision: %#v", decision)
	}
}

func TestDecideFatalFailsImmediately(t *testing.T) {
	policy := workflow.Policy{MaxRetries: 5, Delay: time.Minute}
	err := services.Wrap(services.ErrFatal, "transcoder", "execute", "unsupported codec", nil)

	decision := policy.Decide(1, err)
	if decision.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", decision.Status)
	}
	if decision.Retry {
		t.Fatal("fatal errors must not retry")
	}
	if decision.Kind != services.KindFatal {
		t.Fatalf("kind = %s, want fatal", decision.Kind)
	}
}

func TestDecideRetryableWithinBudget(t *testing.T) {
	policy := workflow.Policy{MaxRetries: 2, Delay: 30 * time.Second, Backoff: workflow.BackoffFixed}
	err := services.Wrap(services.ErrRetryable, "transcoder", "execute", "device busy", nil)

	decision := policy.Decide(1, err)
	if !decision.Retry || decision.Status != queue.StatusQueued {
		t.Fatalf("unexpected decision: %#v", decision)
	}
	if decision.Delay != 30*time.Second {
		t.Fatalf("delay = %s, want 30s", decision.Delay)
	}

	// Exactly MaxRetries re-executions after the first run, then failed.
	if d := policy.Decide(2, err); !d.Retry {
		t.Fatalf("second execution should retry: %#v", d)
	}
	if d := policy.Decide(3, err); d.Retry || d.Status != queue.StatusFailed {
		t.Fatalf("budget exhausted should fail: %#v", d)
	}
}

func TestDecideZeroBudgetFailsFirstError(t *testing.T) {
	policy := workflow.Policy{MaxRetries: 0, Delay: time.Second}
	err := services.Wrap(services.ErrRetryable, "transcoder", "execute", "device busy", nil)

	decision := policy.Decide(1, err)
	if decision.Retry || decision.Status != queue.StatusFailed {
		t.Fatalf("zero budget must fail on first error: %#v", decision)
	}
}

func TestDecideUnclassifiedErrorIsRetryable(t *testing.T) {
	policy := workflow.Policy{MaxRetries: 1, Delay: time.Second}
	decision := policy.Decide(1, errors.New("mystery tool output"))
	if !decision.Retry {
		t.Fatalf("unclassified errors retry: %#v", decision)
	}
	if decision.Kind != services.KindRetryable {
		t.Fatalf("kind = %s, want retryable", decision.Kind)
	}
}

func TestDecideExponentialBackoff(t *testing.T) {
	policy := workflow.Policy{
		MaxRetries: 10,
		Delay:      10 * time.Second,
		Backoff:    workflow.BackoffExponential,
		MaxDelay:   60 * time.Second,
	}
	err := services.Wrap(services.ErrRetryable, "transcoder", "execute", "io error", nil)

	wantDelays := []time.Duration{
		10 * time.Second, // first retry
		20 * time.Second,
		40 * time.Second,
		60 * time.Second, // capped
		60 * time.Second,
	}
	for i, want := range wantDelays {
		execution := i + 1
		decision := policy.Decide(execution, err)
		if decision.Delay != want {
			t.Errorf("execution=%d delay = %s, want %s", execution, decision.Delay, want)
		}
	}
}
