// Package remote executes command-style operations against the hosting
// service with a per-attempt timeout and a bounded retry policy.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Operation names a remote read operation.
type Operation string

// Supported operations
const (
	OpListRepos    Operation = "list-repos"
	OpListBranches Operation = "list-branches"
	OpListCommits  Operation = "list-commits"
	OpCommitStats  Operation = "commit-stats"
)

// Request carries the parameters of one remote operation.
type Request struct {
	Operation    Operation
	Organization string
	Repository   string
	Branch       string
	Since        string
	Until        string
	SHA          string
}

// String describes the request for logs and error messages.
func (r Request) String() string {
	parts := []string{string(r.Operation), r.Organization}
	if r.Repository != "" {
		parts = append(parts, "repo="+r.Repository)
	}
	if r.Branch != "" {
		parts = append(parts, "branch="+r.Branch)
	}
	if r.SHA != "" {
		parts = append(parts, "sha="+r.SHA)
	}
	return strings.Join(parts, " ")
}

// Output is the raw result of a single attempt.
type Output struct {
	ExitCode int
	Stdout   []byte
	Stderr   string
	TimedOut bool
}

// OK reports whether the attempt succeeded.
func (o Output) OK() bool {
	return o.ExitCode == 0 && !o.TimedOut
}

// Runner performs exactly one attempt of a request. Implementations must
// honour ctx cancellation and report an expired deadline as TimedOut.
type Runner interface {
	Run(ctx context.Context, req Request) (Output, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req Request) (Output, error)

// Run calls f(ctx, req).
func (f RunnerFunc) Run(ctx context.Context, req Request) (Output, error) {
	return f(ctx, req)
}

// ErrRemote is matched by every RemoteError.
var ErrRemote = errors.New("remote operation failed")

// RemoteError is returned once the retry budget for a request is exhausted.
type RemoteError struct {
	Operation  string
	Attempts   int
	Diagnostic string
	TimedOut   bool
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: after %d attempt(s): %s", e.Operation, e.Attempts, e.Diagnostic)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// attemptError classifies the outcome of one failed attempt.
func attemptError(req Request, out Output, runErr error, attempt int) *RemoteError {
	e := &RemoteError{Operation: req.String(), Attempts: attempt}
	switch {
	case out.TimedOut:
		e.TimedOut = true
		e.Diagnostic = "timed out"
	case runErr != nil:
		e.Diagnostic = runErr.Error()
	default:
		diag := strings.TrimSpace(out.Stderr)
		if diag == "" {
			diag = fmt.Sprintf("exit status %d", out.ExitCode)
		}
		e.Diagnostic = diag
	}
	return e
}

// deadlineExpired reports whether ctx ended because its deadline passed.
func deadlineExpired(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// Default retry settings
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)
