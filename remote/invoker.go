package remote

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// BackoffFunc returns the wait before the next attempt, given the number of
// attempts already made.
type BackoffFunc func(attempt int) time.Duration

// LinearBackoff waits base*attempt between attempts.
func LinearBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Policy describes how failed attempts are retried.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	// Timer replaces the wall clock between attempts; nil uses time.After.
	Timer retry.Timer
}

// DefaultPolicy retries three times with a linear one second step.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     LinearBackoff(DefaultBaseDelay),
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(attempt)
}

// Invoker runs requests through a Runner under a retry Policy.
type Invoker struct {
	runner Runner
	policy Policy
	log    *zap.Logger
}

// NewInvoker creates an Invoker. A nil logger discards retry events.
func NewInvoker(runner Runner, policy Policy, log *zap.Logger) *Invoker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Invoker{runner: runner, policy: policy, log: log}
}

// WithLogger returns a copy of the invoker that reports to log.
func (inv *Invoker) WithLogger(log *zap.Logger) *Invoker {
	cp := *inv
	cp.log = log
	return &cp
}

// Invoke performs req, giving each attempt its own timeout. Any non-zero
// exit status or timeout is retried until the policy's attempt budget is
// spent, after which a *RemoteError describing the last failure is returned.
func (inv *Invoker) Invoke(ctx context.Context, req Request, timeout time.Duration) ([]byte, error) {
	var (
		stdout  []byte
		attempt int
		maxAtt  = inv.policy.attempts()
	)

	opts := []retry.Option{
		retry.Attempts(uint(maxAtt)),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.DelayType(func(_ uint, _ error, _ *retry.Config) time.Duration {
			return inv.policy.delay(attempt)
		}),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil
		}),
		retry.OnRetry(func(_ uint, err error) {
			inv.log.Warn("Remote operation failed",
				zap.String("operation", req.String()),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAtt),
				zap.Error(err))
		}),
	}
	if inv.policy.Timer != nil {
		opts = append(opts, retry.WithTimer(inv.policy.Timer))
	}

	err := retry.Do(func() error {
		attempt++
		out, err := inv.runOnce(ctx, req, timeout)
		if err != nil {
			return err
		}
		stdout = out
		return nil
	}, opts...)
	if err == nil {
		return stdout, nil
	}

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		remoteErr.Attempts = attempt
		return nil, remoteErr
	}
	return nil, &RemoteError{Operation: req.String(), Attempts: attempt, Diagnostic: err.Error()}
}

func (inv *Invoker) runOnce(ctx context.Context, req Request, timeout time.Duration) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, runErr := inv.runner.Run(attemptCtx, req)
	if runErr == nil && out.OK() {
		return out.Stdout, nil
	}
	if deadlineExpired(attemptCtx) && ctx.Err() == nil {
		out.TimedOut = true
	}
	return nil, attemptError(req, out, runErr, 0)
}
