package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gh "github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"orgcommits/config"
	"orgcommits/logger"
	"orgcommits/remote"
)

const (
	perPage          = 100 // GitHub's maximum allowed per page
	maxRepositories  = 1000
	maxRateLimitWait = 15 * time.Minute
)

// Client serves remote requests through the GitHub REST API. It produces the
// same stdout shapes as the gh CLI templates so both backends are
// interchangeable behind remote.Runner.
type Client struct {
	client *gh.Client
}

var _ remote.Runner = (*Client)(nil)

type repoRecord struct {
	Name string `json:"name"`
}

type commitRecord struct {
	Message *string `json:"message"`
	Author  *string `json:"author"`
	Date    *string `json:"date"`
	SHA     *string `json:"sha"`
}

type statsRecord struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Total     int `json:"total"`
}

// NewClient creates an API client authenticated with token. A non-empty
// baseURL targets a GitHub Enterprise installation.
func NewClient(token, baseURL string) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := gh.NewClient(oauth2.NewClient(context.Background(), ts))

	if baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub Enterprise client: %w", err)
		}
	}

	logger.Info("Initializing GitHub client", zap.String("base_url", client.BaseURL.String()))
	return &Client{client: client}, nil
}

// Run executes one attempt of req. API failures are reported as a non-zero
// exit status with the error text as diagnostic output.
func (c *Client) Run(ctx context.Context, req remote.Request) (remote.Output, error) {
	var (
		stdout []byte
		err    error
	)

	switch req.Operation {
	case remote.OpListRepos:
		stdout, err = c.listRepos(ctx, req)
	case remote.OpListBranches:
		stdout, err = c.listBranches(ctx, req)
	case remote.OpListCommits:
		stdout, err = c.listCommits(ctx, req)
	case remote.OpCommitStats:
		stdout, err = c.commitStats(ctx, req)
	default:
		return remote.Output{ExitCode: -1}, fmt.Errorf("%w: %s", ErrUnknownOperation, req.Operation)
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return remote.Output{ExitCode: -1, TimedOut: true}, nil
		}
		c.handleRateLimit(ctx, err)
		return remote.Output{ExitCode: 1, Stderr: err.Error()}, nil
	}
	return remote.Output{Stdout: stdout}, nil
}

func (c *Client) listRepos(ctx context.Context, req remote.Request) ([]byte, error) {
	opts := &gh.RepositoryListByOrgOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	records := []repoRecord{}
	for {
		repos, resp, err := c.client.Repositories.ListByOrg(ctx, req.Organization, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories: %w", err)
		}
		for _, repo := range repos {
			records = append(records, repoRecord{Name: repo.GetName()})
		}
		if resp.NextPage == 0 || len(records) >= maxRepositories {
			break
		}
		opts.Page = resp.NextPage
	}
	if len(records) > maxRepositories {
		records = records[:maxRepositories]
	}
	return json.Marshal(records)
}

func (c *Client) listBranches(ctx context.Context, req remote.Request) ([]byte, error) {
	opts := &gh.BranchListOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	var buf bytes.Buffer
	for {
		branches, resp, err := c.client.Repositories.ListBranches(ctx, req.Organization, req.Repository, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list branches: %w", err)
		}
		for _, b := range branches {
			buf.WriteString(b.GetName())
			buf.WriteByte('\n')
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return buf.Bytes(), nil
}

func (c *Client) listCommits(ctx context.Context, req remote.Request) ([]byte, error) {
	opts := &gh.CommitsListOptions{
		SHA:         req.Branch,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}
	if req.Since != "" {
		since, err := config.ParseDate(req.Since)
		if err != nil {
			return nil, err
		}
		opts.Since = since
	}
	if req.Until != "" {
		until, err := config.ParseDate(req.Until)
		if err != nil {
			return nil, err
		}
		opts.Until = until
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for {
		commits, resp, err := c.client.Repositories.ListCommits(ctx, req.Organization, req.Repository, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list commits: %w", err)
		}
		for _, rc := range commits {
			if err := enc.Encode(toCommitRecord(rc)); err != nil {
				return nil, fmt.Errorf("failed to encode commit %s: %w", rc.GetSHA(), err)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return buf.Bytes(), nil
}

func (c *Client) commitStats(ctx context.Context, req remote.Request) ([]byte, error) {
	rc, _, err := c.client.Repositories.GetCommit(ctx, req.Organization, req.Repository, req.SHA, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", req.SHA, err)
	}
	stats := rc.GetStats()
	return json.Marshal(statsRecord{
		Additions: stats.GetAdditions(),
		Deletions: stats.GetDeletions(),
		Total:     stats.GetTotal(),
	})
}

func toCommitRecord(rc *gh.RepositoryCommit) commitRecord {
	rec := commitRecord{SHA: rc.SHA}
	commit := rc.GetCommit()
	if commit == nil {
		return rec
	}
	rec.Message = commit.Message
	if author := commit.GetAuthor(); author != nil {
		rec.Author = author.Name
		if author.Date != nil {
			date := author.Date.UTC().Format(time.RFC3339)
			rec.Date = &date
		}
	}
	return rec
}

// handleRateLimit waits for the rate limit window to reset so the next
// attempt has a chance to succeed
func (c *Client) handleRateLimit(ctx context.Context, err error) {
	var waitTime time.Duration

	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	switch {
	case errors.As(err, &rateErr):
		waitTime = time.Until(rateErr.Rate.Reset.Time)
	case errors.As(err, &abuseErr):
		waitTime = abuseErr.GetRetryAfter()
	default:
		return
	}
	if waitTime <= 0 {
		return
	}
	if waitTime > maxRateLimitWait {
		waitTime = maxRateLimitWait
	}

	logger.Info("Rate limit exceeded, waiting for reset", zap.Duration("wait_time", waitTime))
	select {
	case <-ctx.Done():
	case <-time.After(waitTime):
	}
}
