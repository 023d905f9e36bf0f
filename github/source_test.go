package github

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"orgcommits/config"
	"orgcommits/remote"
)

// stubRunner answers each operation with a fixed output.
type stubRunner struct {
	outputs  map[remote.Operation]remote.Output
	requests []remote.Request
}

func (s *stubRunner) Run(ctx context.Context, req remote.Request) (remote.Output, error) {
	s.requests = append(s.requests, req)
	out, ok := s.outputs[req.Operation]
	if !ok {
		return remote.Output{ExitCode: 1, Stderr: "not stubbed"}, nil
	}
	return out, nil
}

func newTestSource(t *testing.T, runner remote.Runner, opts ...config.Option) *Source {
	cfg, err := config.NewCollectionConfig("acme", opts...)
	require.NoError(t, err)
	inv := remote.NewInvoker(runner, remote.Policy{MaxAttempts: 1}, nil)
	return NewSource(inv, cfg, zaptest.NewLogger(t))
}

func TestSourceRepositories(t *testing.T) {
	testCases := []struct {
		name          string
		output        remote.Output
		expected      []string
		expectedError error
	}{
		{
			name:     "successful listing",
			output:   remote.Output{Stdout: []byte(`[{"name":"widgets"},{"name":"tools"}]`)},
			expected: []string{"widgets", "tools"},
		},
		{
			name:          "malformed listing",
			output:        remote.Output{Stdout: []byte(`not json`)},
			expectedError: ErrParse,
		},
		{
			name:          "remote failure",
			output:        remote.Output{ExitCode: 1, Stderr: "HTTP 404"},
			expectedError: remote.ErrRemote,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &stubRunner{outputs: map[remote.Operation]remote.Output{remote.OpListRepos: tc.output}}
			src := newTestSource(t, runner)

			repos, err := src.Repositories(context.Background())
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, repos)
		})
	}
}

func TestSourceBranches(t *testing.T) {
	runner := &stubRunner{outputs: map[remote.Operation]remote.Output{
		remote.OpListBranches: {Stdout: []byte("main\n  dev \n\nfeature/x\n")},
	}}
	src := newTestSource(t, runner, config.WithTimeout(time.Minute))

	branches, err := src.Branches(context.Background(), "widgets")
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "dev", "feature/x"}, branches)
	assert.Equal(t, "widgets", runner.requests[0].Repository)
}

func TestSourceCommits(t *testing.T) {
	stdout := `{"message":"Fix parser\nwith details","author":"Alice Smith","date":"2025-03-02T10:00:00Z","sha":"0123456789abcdef"}
{"message":"Merge pull request #4","author":"Bob","date":"2025-03-01T10:00:00Z","sha":"fedcba9876543210"}
{broken json
{"message":"no sha","author":"Bob","date":"2025-03-01T10:00:00Z"}
{"message":"Add docs","author":"Carol","date":"2025-02-01T10:00:00Z","sha":"aaaaaaaabbbbbbbb"}
`

	t.Run("skips malformed records", func(t *testing.T) {
		runner := &stubRunner{outputs: map[remote.Operation]remote.Output{remote.OpListCommits: {Stdout: []byte(stdout)}}}
		src := newTestSource(t, runner, config.WithUntil("2025-12-31"))

		commits, err := src.Commits(context.Background(), "widgets", "main")
		require.NoError(t, err)
		require.Len(t, commits, 3)

		assert.Equal(t, "01234567", commits[0].SHA)
		assert.Equal(t, "Fix parser with details", commits[0].Message)
		assert.Equal(t, "widgets", commits[0].Repository)
		assert.Equal(t, "main", commits[0].Branch)
		assert.Nil(t, commits[0].Stats)

		req := runner.requests[0]
		assert.Equal(t, "main", req.Branch)
		assert.Equal(t, config.DefaultSince, req.Since)
		assert.Equal(t, "2025-12-31", req.Until)
	})

	t.Run("drops merge commits when configured", func(t *testing.T) {
		runner := &stubRunner{outputs: map[remote.Operation]remote.Output{remote.OpListCommits: {Stdout: []byte(stdout)}}}
		src := newTestSource(t, runner, config.WithoutMerges(true))

		commits, err := src.Commits(context.Background(), "widgets", "main")
		require.NoError(t, err)
		require.Len(t, commits, 2)
		for _, c := range commits {
			assert.NotContains(t, c.Message, "Merge")
		}
	})

	t.Run("empty output", func(t *testing.T) {
		runner := &stubRunner{outputs: map[remote.Operation]remote.Output{remote.OpListCommits: {Stdout: []byte("\n")}}}
		src := newTestSource(t, runner)

		commits, err := src.Commits(context.Background(), "widgets", "main")
		require.NoError(t, err)
		assert.Empty(t, commits)
	})
}

func TestSourceCommitStats(t *testing.T) {
	testCases := []struct {
		name          string
		output        remote.Output
		expected      int
		expectedError bool
	}{
		{name: "stats object", output: remote.Output{Stdout: []byte(`{"additions":4,"deletions":1,"total":5}`)}, expected: 5},
		{name: "empty output", output: remote.Output{Stdout: []byte("")}, expected: 0},
		{name: "null stats", output: remote.Output{Stdout: []byte(`{"additions":null,"deletions":null,"total":null}`)}, expected: 0},
		{name: "garbage", output: remote.Output{Stdout: []byte(`[1,2`)}, expectedError: true},
		{name: "remote failure", output: remote.Output{ExitCode: 1}, expectedError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &stubRunner{outputs: map[remote.Operation]remote.Output{remote.OpCommitStats: tc.output}}
			src := newTestSource(t, runner)

			stats, err := src.CommitStats(context.Background(), "widgets", "01234567")
			if tc.expectedError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, stats.Total)
		})
	}
}

func TestParseCommit(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	line := `{"message":"` + string(long) + `","author":"A","date":"2025-01-02T00:00:00Z","sha":"abc"}`

	commit, err := ParseCommit("r", "b", line)
	require.NoError(t, err)
	assert.Len(t, commit.Message, 500)
	assert.Equal(t, "abc", commit.SHA)

	_, err = ParseCommit("r", "b", `{"message":"m","date":"2025-01-02T00:00:00Z","sha":"abc"}`)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "b", parseErr.Branch)
	assert.Contains(t, err.Error(), "missing author")
}
