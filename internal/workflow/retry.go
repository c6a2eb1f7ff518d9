package workflow

import (
	"time"

	"hopper/internal/config"
	"hopper/internal/queue"
	"hopper/internal/services"
)

// BackoffFixed and BackoffExponential name the supported retry delay shapes.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Policy decides what happens to a job after a conversion attempt.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
	Backoff    string
	MaxDelay   time.Duration
}

// NewPolicy builds the retry policy from configuration.
func NewPolicy(cfg *config.Config) Policy {
	return Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		Delay:      cfg.RetryDelay(),
		Backoff:    cfg.Retry.Backoff,
		MaxDelay:   cfg.RetryMaxDelay(),
	}
}

// Decision is the policy's verdict for one completed attempt.
type Decision struct {
	Status queue.Status
	Retry  bool
	Delay  time.Duration
	Kind   services.Kind
}

// Decide maps an attempt outcome to the job's next state. attempts counts
// executions including the one that just finished, so the first failure
// arrives as attempts=1. A fatal classification fails immediately regardless
// of budget; anything else retries while attempts <= MaxRetries, allowing
// MaxRetries re-executions after the first run. Unclassified errors count as
// retryable so unexpected tool output never strands a job without the budget
// having a say.
func (p Policy) Decide(attempts int, err error) Decision {
	if err == nil {
		return Decision{Status: queue.StatusSucceeded}
	}

	kind := services.KindOf(err)
	if kind == services.KindUnknown {
		kind = services.KindRetryable
	}
	if kind == services.KindFatal {
		return Decision{Status: queue.StatusFailed, Kind: kind}
	}
	if attempts > p.MaxRetries {
		return Decision{Status: queue.StatusFailed, Kind: kind}
	}
	return Decision{
		Status: queue.StatusQueued,
		Retry:  true,
		Delay:  p.delayFor(attempts),
		Kind:   kind,
	}
}

// delayFor computes the wait after the given execution number (1-based). The
// first retry waits the base delay; exponential backoff doubles it per
// further execution.
func (p Policy) delayFor(execution int) time.Duration {
	delay := p.Delay
	if p.Backoff == BackoffExponential {
		for i := 1; i < execution; i++ {
			delay *= 2
			if p.MaxDelay > 0 && delay >= p.MaxDelay {
				return p.MaxDelay
			}
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
