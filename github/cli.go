package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"orgcommits/remote"
)

const (
	defaultCLIBinary = "gh"
	repoListLimit    = "1000"
	commitsPerPage   = "100"

	commitJQ = ".[] | {message: .commit.message, author: .commit.author.name, date: .commit.author.date, sha: .sha}"
	statsJQ  = ".stats | {additions: .additions, deletions: .deletions, total: .total}"
)

// CLIRunner executes requests through the GitHub CLI. Authentication is
// whatever `gh auth` has already established.
type CLIRunner struct {
	binary string
}

var _ remote.Runner = (*CLIRunner)(nil)

// NewCLIRunner creates a runner for the gh binary found on PATH.
func NewCLIRunner() *CLIRunner {
	return &CLIRunner{binary: defaultCLIBinary}
}

// Args builds the gh argument list for req.
func (r *CLIRunner) Args(req remote.Request) ([]string, error) {
	switch req.Operation {
	case remote.OpListRepos:
		return []string{"repo", "list", req.Organization, "--limit", repoListLimit, "--json", "name"}, nil
	case remote.OpListBranches:
		return []string{
			"api", fmt.Sprintf("/repos/%s/%s/branches", req.Organization, req.Repository),
			"--paginate", "--jq", ".[].name",
		}, nil
	case remote.OpListCommits:
		args := []string{
			"api", fmt.Sprintf("/repos/%s/%s/commits", req.Organization, req.Repository),
			"--method", "GET", "--paginate",
			"-f", "sha=" + req.Branch,
			"-f", "since=" + req.Since,
			"-f", "per_page=" + commitsPerPage,
		}
		if req.Until != "" {
			args = append(args, "-f", "until="+req.Until)
		}
		return append(args, "--jq", commitJQ), nil
	case remote.OpCommitStats:
		return []string{
			"api", fmt.Sprintf("/repos/%s/%s/commits/%s", req.Organization, req.Repository, req.SHA),
			"--jq", statsJQ,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, req.Operation)
	}
}

// Run executes one attempt of req.
func (r *CLIRunner) Run(ctx context.Context, req remote.Request) (remote.Output, error) {
	args, err := r.Args(req)
	if err != nil {
		return remote.Output{ExitCode: -1}, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	out := remote.Output{Stdout: stdout.Bytes(), Stderr: stderr.String()}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.ExitCode = -1
		out.TimedOut = true
		return out, nil
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return out, nil
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	default:
		out.ExitCode = -1
		return out, fmt.Errorf("failed to run %s: %w", r.binary, err)
	}
}

// Available reports whether the gh binary is installed and authenticated.
func (r *CLIRunner) Available(ctx context.Context) bool {
	if _, err := exec.LookPath(r.binary); err != nil {
		return false
	}
	return exec.CommandContext(ctx, r.binary, "auth", "status").Run() == nil
}
