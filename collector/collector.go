package collector

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"orgcommits/aggregate"
	"orgcommits/config"
	"orgcommits/models"
)

// BatchTimeout bounds how long the engine waits for one batch of repositories.
const BatchTimeout = 120 * time.Second

// FallbackBranches are used when branch discovery fails or returns nothing.
var FallbackBranches = []string{"main", "master"}

// DefaultBranch is the only branch read when all-branches mode is off.
const DefaultBranch = "main"

// Source defines the remote operations needed by the engine
type Source interface {
	Repositories(ctx context.Context) ([]string, error)
	Branches(ctx context.Context, repo string) ([]string, error)
	Commits(ctx context.Context, repo, branch string) ([]models.Commit, error)
	CommitStats(ctx context.Context, repo, sha string) (models.ChangeStats, error)
}

// Engine collects commits for one organization.
type Engine struct {
	source       Source
	cfg          *config.CollectionConfig
	log          *zap.Logger
	batchTimeout time.Duration
}

// NewEngine creates an Engine. A nil logger discards events.
func NewEngine(source Source, cfg *config.CollectionConfig, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		source:       source,
		cfg:          cfg,
		log:          log,
		batchTimeout: BatchTimeout,
	}
}

type repoResult struct {
	idx     int
	commits []models.Commit
}

// Collect gathers commits from repos, or from every repository of the
// organization when repos is nil, and returns them newest first.
// Only a failed repository listing is returned as an error; every other
// failure empties the affected branch or repository.
func (e *Engine) Collect(ctx context.Context, repos []string) ([]models.Commit, error) {
	if repos == nil {
		discovered, err := e.source.Repositories(ctx)
		if err != nil {
			return nil, &DiscoveryError{Organization: e.cfg.Organization, Err: err}
		}
		repos = discovered
	} else {
		e.log.Info("Using explicit repository list", zap.Int("count", len(repos)))
	}

	if len(repos) == 0 {
		e.log.Info("No repositories to process")
		return []models.Commit{}, nil
	}

	batches := Partition(repos, e.cfg.BatchSize)
	all := make([]models.Commit, 0)
	for i, batch := range batches {
		e.log.Info("Processing batch",
			zap.Int("batch", i+1),
			zap.Int("batches", len(batches)),
			zap.Strings("repositories", batch))

		for _, commits := range e.runBatch(ctx, batch) {
			all = append(all, commits...)
		}
	}

	e.log.Info("Collection finished",
		zap.Int("repositories", len(repos)),
		zap.Int("commits", len(all)))
	return aggregate.SortGlobal(all), nil
}

// runBatch processes every repository in batch on a pool of at most
// MaxWorkers goroutines and returns the per-repository results in batch order.
func (e *Engine) runBatch(ctx context.Context, batch []string) [][]models.Commit {
	results := make([][]models.Commit, len(batch))

	pool, err := ants.NewPool(e.cfg.MaxWorkers)
	if err != nil {
		e.log.Error("Failed to create worker pool, processing batch sequentially", zap.Error(err))
		for i, repo := range batch {
			results[i] = e.processRepository(ctx, repo)
		}
		return results
	}
	defer pool.Release()

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := time.NewTimer(e.batchTimeout)
	defer timer.Stop()

	// Submit blocks while the pool is full; the ceiling counts from here.
	done := make(chan repoResult, len(batch))
	go func() {
		for i, repo := range batch {
			i, repo := i, repo
			if batchCtx.Err() != nil {
				return
			}
			err := pool.Submit(func() {
				done <- repoResult{idx: i, commits: e.processRepository(batchCtx, repo)}
			})
			if err != nil {
				if batchCtx.Err() == nil {
					e.log.Error("Failed to submit repository",
						zap.String("repository", repo),
						zap.Error(err))
				}
				done <- repoResult{idx: i}
			}
		}
	}()

	pending := len(batch)
	for pending > 0 {
		select {
		case r := <-done:
			results[r.idx] = r.commits
			pending--
		case <-timer.C:
			e.log.Error("Batch timed out, dropping unfinished repositories",
				zap.Duration("timeout", e.batchTimeout),
				zap.Int("unfinished", pending))
			return results
		}
	}
	return results
}

// processRepository collects one repository. Any failure, including a panic,
// yields an empty list.
func (e *Engine) processRepository(ctx context.Context, repo string) (commits []models.Commit) {
	log := e.log.With(zap.String("repository", repo))
	defer func() {
		if r := recover(); r != nil {
			log.Error("Repository processing failed", zap.Any("panic", r))
			commits = nil
		}
	}()

	branches := e.branches(ctx, repo, log)

	perBranch := make([][]models.Commit, 0, len(branches))
	for _, branch := range branches {
		found, err := e.source.Commits(ctx, repo, branch)
		if err != nil {
			log.Warn("Failed to read branch",
				zap.String("branch", branch),
				zap.Error(err))
			continue
		}
		perBranch = append(perBranch, found)
	}

	commits = aggregate.MergeBranches(perBranch)
	if e.cfg.IncludeStats {
		e.attachStats(ctx, repo, commits, log)
	}

	log.Info("Repository processed",
		zap.Int("branches", len(branches)),
		zap.Int("commits", len(commits)))
	return commits
}

func (e *Engine) branches(ctx context.Context, repo string, log *zap.Logger) []string {
	if !e.cfg.IncludeAllBranches {
		return []string{DefaultBranch}
	}

	branches, err := e.source.Branches(ctx, repo)
	if err != nil {
		log.Warn("Branch discovery failed, using fallback branches", zap.Error(err))
		return append([]string(nil), FallbackBranches...)
	}
	if len(branches) == 0 {
		log.Warn("No branches found, using fallback branches")
		return append([]string(nil), FallbackBranches...)
	}
	return branches
}

func (e *Engine) attachStats(ctx context.Context, repo string, commits []models.Commit, log *zap.Logger) {
	for i := range commits {
		stats, err := e.source.CommitStats(ctx, repo, commits[i].SHA)
		if err != nil {
			log.Warn("Failed to read commit stats",
				zap.String("sha", commits[i].SHA),
				zap.Error(err))
			stats = models.ChangeStats{}
		}
		commits[i].Stats = &stats
	}
}

// Partition splits repos into consecutive batches of at most size entries.
func Partition(repos []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	batches := make([][]string, 0, (len(repos)+size-1)/size)
	for start := 0; start < len(repos); start += size {
		end := start + size
		if end > len(repos) {
			end = len(repos)
		}
		batches = append(batches, repos[start:end])
	}
	return batches
}
