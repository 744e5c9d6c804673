package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/tfconvert/internal/ctxlog"
)

// Client is the model invocation contract. Invoke sends one prompt and
// returns the model's raw text output. Failures are always reported as a
// *InvocationError so callers can distinguish transient from permanent
// faults.
type Client interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// InvocationError is the typed failure of a model call.
type InvocationError struct {
	// Transient marks faults worth retrying (throttling, timeouts,
	// service unavailability). Permanent faults (access denied, unknown
	// model, oversized payload) must not be retried.
	Transient bool
	Cause     error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("model invocation failed (%s): %v", kind, e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *InvocationError) Unwrap() error {
	return e.Cause
}

// IsPermanent reports whether err is a non-retryable model invocation error.
func IsPermanent(err error) bool {
	var invErr *InvocationError
	return errors.As(err, &invErr) && !invErr.Transient
}

// Options configures the concrete clients.
type Options struct {
	// ModelID selects the model, e.g. "us.amazon.nova-pro-v1:0".
	ModelID string
	// Region is the AWS region for the Bedrock client.
	Region string
	// Endpoint, when set, selects the OpenAI-compatible HTTP client.
	Endpoint string
	// Timeout bounds a single model call.
	Timeout time.Duration
	// MaxRetries caps the internal retry loop for transient faults.
	MaxRetries int
}

const (
	defaultTimeout    = 120 * time.Second
	defaultMaxRetries = 3
	retryBaseDelay    = 500 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	return o
}

// invokeWithRetry runs one model call with the client's own transient-fault
// retry loop: exponential backoff, bounded by maxRetries, never retrying a
// permanent fault. The per-call timeout is applied inside fn, so a caller
// cancellation that lands mid-call still lets the in-flight request run out
// its own deadline.
func invokeWithRetry(ctx context.Context, maxRetries int, fn func(context.Context) (string, error)) (string, error) {
	logger := ctxlog.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			logger.Warn("Transient model fault, backing off before retry.",
				"attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", &InvocationError{Transient: true, Cause: ctx.Err()}
			}
		}

		text, err := fn(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var invErr *InvocationError
		if errors.As(err, &invErr) && !invErr.Transient {
			return "", err
		}
	}

	return "", lastErr
}
