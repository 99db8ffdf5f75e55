package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mathtikz/internal/config"
	"mathtikz/internal/services"
)

// Backoff computes the wait that follows prev after the given 1-based attempt.
// Implementations must be pure and must not return less than prev.
type Backoff interface {
	Next(attempt int, prev time.Duration) time.Duration
}

// BackoffFunc adapts a function to Backoff.
type BackoffFunc func(attempt int, prev time.Duration) time.Duration

func (f BackoffFunc) Next(attempt int, prev time.Duration) time.Duration { return f(attempt, prev) }

// Additive grows the wait by a fixed step.
func Additive(step time.Duration) Backoff {
	if step < 0 {
		step = 0
	}
	return BackoffFunc(func(_ int, prev time.Duration) time.Duration {
		return prev + step
	})
}

// Exponential multiplies the wait by factor (at least 1).
func Exponential(factor float64) Backoff {
	if factor < 1 {
		factor = 1
	}
	return BackoffFunc(func(_ int, prev time.Duration) time.Duration {
		return time.Duration(float64(prev) * factor)
	})
}

// Verdict classifies one attempt.
type Verdict int

const (
	// Done ends the loop successfully.
	Done Verdict = iota
	// Stop ends the loop with the attempt's own result and error.
	Stop
	// RetryRateLimited retries after throttling.
	RetryRateLimited
	// RetryNetwork retries after a transport failure.
	RetryNetwork
)

func (v Verdict) String() string {
	switch v {
	case Done:
		return "done"
	case Stop:
		return "stop"
	case RetryRateLimited:
		return "rate_limited"
	case RetryNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Decision is returned by a classifier; Hint is an optional minimum wait
// suggested by the server (Retry-After).
type Decision struct {
	Verdict Verdict
	Hint    time.Duration
}

// RetryEvent is reported before each sleep.
type RetryEvent struct {
	Attempt int
	Wait    time.Duration
	Reason  Verdict
	Err     error
}

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts     int
	InitialWait     time.Duration
	Backoff         Backoff
	MaxWait         time.Duration
	HonorRetryAfter bool
	// Sleep replaces the context-aware timer (tests).
	Sleep   func(context.Context, time.Duration) error
	OnRetry func(RetryEvent)
}

// PolicyFromConfig builds the policy described by the [retry] section.
func PolicyFromConfig(cfg *config.Config) Policy {
	seconds := func(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }
	policy := Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialWait:     seconds(cfg.Retry.InitialWaitSeconds),
		MaxWait:         seconds(cfg.Retry.MaxWaitSeconds),
		HonorRetryAfter: cfg.Retry.HonorRetryAfter,
	}
	switch cfg.Retry.Backoff {
	case config.BackoffExponential:
		policy.Backoff = Exponential(cfg.Retry.Factor)
	default:
		policy.Backoff = Additive(seconds(cfg.Retry.StepSeconds))
	}
	return policy
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// nextWait combines the scheduled backoff, a server hint, the cap, and the
// previous sleep so the sequence of sleeps never decreases.
func (p Policy) nextWait(scheduled, hint, last time.Duration) time.Duration {
	wait := scheduled
	if p.HonorRetryAfter && hint > wait {
		wait = hint
	}
	if p.MaxWait > 0 && wait > p.MaxWait {
		wait = p.MaxWait
	}
	if wait < last {
		wait = last
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// Trace records what a retry loop did.
type Trace struct {
	Attempts int
	Waits    []time.Duration
}

// ExhaustedError is returned when every attempt asked for a retry.
type ExhaustedError struct {
	Attempts int
	Reason   Verdict
	Last     error
}

func (e *ExhaustedError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("retries exhausted after %d attempts (%s): %v", e.Attempts, e.Reason, e.Last)
	}
	return fmt.Sprintf("retries exhausted after %d attempts (%s)", e.Attempts, e.Reason)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Execute runs fn until classify reports Done or Stop, or until the policy's
// attempts are used up. Attempts run strictly one after another.
func Execute[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error), classify func(T, error) Decision) (T, Trace, error) {
	var trace Trace
	maxAttempts := p.attempts()
	scheduled := p.InitialWait
	var last time.Duration

	for attempt := 1; ; attempt++ {
		result, err := fn(ctx, attempt)
		trace.Attempts = attempt
		decision := classify(result, err)
		if decision.Verdict == Done || decision.Verdict == Stop {
			return result, trace, err
		}
		if attempt >= maxAttempts {
			return result, trace, &ExhaustedError{Attempts: attempt, Reason: decision.Verdict, Last: err}
		}

		wait := p.nextWait(scheduled, decision.Hint, last)
		if p.OnRetry != nil {
			p.OnRetry(RetryEvent{Attempt: attempt, Wait: wait, Reason: decision.Verdict, Err: err})
		}
		if err := p.sleep(ctx, wait); err != nil {
			return result, trace, err
		}
		trace.Waits = append(trace.Waits, wait)
		last = wait
		if p.Backoff != nil {
			scheduled = p.Backoff.Next(attempt, scheduled)
		}
	}
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
	}
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Classify maps a Send outcome to a retry decision: 2xx is done, 429 and
// transport failures retry, everything else stops.
func Classify(resp Response, err error) Decision {
	if err != nil {
		if errors.Is(err, services.ErrNetwork) {
			return Decision{Verdict: RetryNetwork}
		}
		return Decision{Verdict: Stop}
	}
	switch {
	case resp.OK():
		return Decision{Verdict: Done}
	case resp.StatusCode == 429:
		return Decision{Verdict: RetryRateLimited, Hint: resp.RetryAfter}
	default:
		return Decision{Verdict: Stop}
	}
}

// Request sends the prompt under policy and converts terminal outcomes into
// tagged errors: exhausted throttling (ErrRateLimited), exhausted transport
// failures (ErrNetwork), and other non-2xx statuses (ErrUpstream). A nil
// error guarantees a 2xx Response.
func (c *Client) Request(ctx context.Context, policy Policy, systemInstruction, prompt, model string) (Response, Trace, error) {
	send := func(ctx context.Context, _ int) (Response, error) {
		return c.Send(ctx, systemInstruction, prompt, model)
	}
	resp, trace, err := Execute(ctx, policy, send, Classify)

	var exhausted *ExhaustedError
	switch {
	case errors.As(err, &exhausted) && exhausted.Reason == RetryRateLimited:
		status := statusError(resp)
		return resp, trace, services.Wrap(
			services.ErrRateLimited,
			"llm",
			"retry",
			fmt.Sprintf("Erro 429: limite de pedidos do modelo atingido após %d tentativas. %s", exhausted.Attempts, status.Body),
			status,
		)
	case errors.As(err, &exhausted) && exhausted.Reason == RetryNetwork:
		return resp, trace, services.Wrap(
			services.ErrNetwork,
			"llm",
			"retry",
			services.PublicMessage(exhausted.Last),
			exhausted,
		)
	case err != nil:
		return resp, trace, err
	case !resp.OK():
		status := statusError(resp)
		return resp, trace, services.Wrap(
			services.ErrUpstream,
			"llm",
			"request",
			fmt.Sprintf("Erro ao contactar o modelo: HTTP %d: %s", status.StatusCode, status.Body),
			status,
		)
	}
	return resp, trace, nil
}
