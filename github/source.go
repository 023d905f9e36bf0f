package github

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"orgcommits/config"
	"orgcommits/models"
	"orgcommits/remote"
)

// ShortTimeout caps branch listing and per-commit statistics requests.
const ShortTimeout = 15 * time.Second

// Source turns remote output into typed values for one organization.
type Source struct {
	invoker       *remote.Invoker
	org           string
	since         string
	until         string
	excludeMerges bool
	timeout       time.Duration
	log           *zap.Logger
}

// NewSource creates a Source bound to the organization and date window in cfg.
func NewSource(invoker *remote.Invoker, cfg *config.CollectionConfig, log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{
		invoker:       invoker.WithLogger(log),
		org:           cfg.Organization,
		since:         cfg.Since,
		until:         cfg.Until,
		excludeMerges: cfg.ExcludeMergeCommits,
		timeout:       cfg.Timeout,
		log:           log,
	}
}

func (s *Source) shortTimeout() time.Duration {
	if s.timeout < ShortTimeout {
		return s.timeout
	}
	return ShortTimeout
}

// Repositories lists the names of every repository in the organization.
func (s *Source) Repositories(ctx context.Context) ([]string, error) {
	out, err := s.invoker.Invoke(ctx, remote.Request{
		Operation:    remote.OpListRepos,
		Organization: s.org,
	}, s.timeout)
	if err != nil {
		return nil, err
	}

	var records []repoRecord
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, &ParseError{Repository: s.org, Record: string(out), Err: err}
	}

	repos := make([]string, 0, len(records))
	for _, r := range records {
		if r.Name == "" {
			return nil, &ParseError{Repository: s.org, Err: errors.New("repository without name")}
		}
		repos = append(repos, r.Name)
	}

	s.log.Info("Found repositories", zap.Int("count", len(repos)))
	return repos, nil
}

// Branches lists branch names of repo in the order the service returns them.
func (s *Source) Branches(ctx context.Context, repo string) ([]string, error) {
	out, err := s.invoker.Invoke(ctx, remote.Request{
		Operation:    remote.OpListBranches,
		Organization: s.org,
		Repository:   repo,
	}, s.shortTimeout())
	if err != nil {
		return nil, err
	}

	var branches []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

// Commits lists the commits of repo on branch within the configured window.
// Records that fail to parse are logged and skipped.
func (s *Source) Commits(ctx context.Context, repo, branch string) ([]models.Commit, error) {
	out, err := s.invoker.Invoke(ctx, remote.Request{
		Operation:    remote.OpListCommits,
		Organization: s.org,
		Repository:   repo,
		Branch:       branch,
		Since:        s.since,
		Until:        s.until,
	}, s.timeout)
	if err != nil {
		return nil, err
	}

	var commits []models.Commit
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		commit, err := ParseCommit(repo, branch, line)
		if err != nil {
			s.log.Warn("Skipping malformed commit record",
				zap.String("repository", repo),
				zap.String("branch", branch),
				zap.Error(err))
			continue
		}
		if s.excludeMerges && strings.HasPrefix(commit.Message, "Merge") {
			continue
		}
		commits = append(commits, commit)
	}
	if err := scanner.Err(); err != nil {
		return commits, &ParseError{Repository: repo, Branch: branch, Err: err}
	}
	return commits, nil
}

// CommitStats fetches addition and deletion counts for a commit.
func (s *Source) CommitStats(ctx context.Context, repo, sha string) (models.ChangeStats, error) {
	out, err := s.invoker.Invoke(ctx, remote.Request{
		Operation:    remote.OpCommitStats,
		Organization: s.org,
		Repository:   repo,
		SHA:          sha,
	}, s.shortTimeout())
	if err != nil {
		return models.ChangeStats{}, err
	}
	return ParseStats(repo, out)
}

// ParseCommit decodes one line-delimited commit record.
func ParseCommit(repo, branch, line string) (models.Commit, error) {
	var rec commitRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return models.Commit{}, &ParseError{Repository: repo, Branch: branch, Record: line, Err: err}
	}

	switch {
	case rec.SHA == nil || *rec.SHA == "":
		return models.Commit{}, &ParseError{Repository: repo, Branch: branch, Record: line, Err: errors.New("missing sha")}
	case rec.Date == nil || *rec.Date == "":
		return models.Commit{}, &ParseError{Repository: repo, Branch: branch, Record: line, Err: errors.New("missing date")}
	case rec.Message == nil:
		return models.Commit{}, &ParseError{Repository: repo, Branch: branch, Record: line, Err: errors.New("missing message")}
	case rec.Author == nil:
		return models.Commit{}, &ParseError{Repository: repo, Branch: branch, Record: line, Err: errors.New("missing author")}
	}

	return models.Commit{
		Timestamp:  *rec.Date,
		Repository: repo,
		Branch:     branch,
		Message:    models.NormalizeMessage(*rec.Message),
		Author:     *rec.Author,
		SHA:        models.ShortSHA(*rec.SHA),
	}, nil
}

// ParseStats decodes a statistics object. Empty output means no changes.
func ParseStats(repo string, out []byte) (models.ChangeStats, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 || string(out) == "null" {
		return models.ChangeStats{}, nil
	}

	var rec statsRecord
	if err := json.Unmarshal(out, &rec); err != nil {
		return models.ChangeStats{}, &ParseError{Repository: repo, Record: string(out), Err: fmt.Errorf("stats: %w", err)}
	}
	return models.ChangeStats{Additions: rec.Additions, Deletions: rec.Deletions, Total: rec.Total}, nil
}
