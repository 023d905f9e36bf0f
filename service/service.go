package service

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"orgcommits/aggregate"
	"orgcommits/collector"
	"orgcommits/config"
	"orgcommits/db"
	"orgcommits/export"
	"orgcommits/github"
	"orgcommits/logger"
	"orgcommits/models"
	"orgcommits/remote"
	"orgcommits/report"
)

// Collector abstracts the collection engine needed by the service
// (for testability)
type Collector interface {
	Collect(ctx context.Context, repos []string) ([]models.Commit, error)
}

// Store abstracts the database operations needed by the service
// (for testability)
type Store interface {
	BatchInsert(ctx context.Context, org string, commits []models.Commit) error
	StoredRepositories(ctx context.Context, org string) ([]string, error)
	GetRepositoryStats(ctx context.Context, org, repo string) (*models.RepositoryStats, error)
	Close() error
}

// Service errors
var (
	ErrServiceInit     = fmt.Errorf("service initialization error")
	ErrServiceShutdown = fmt.Errorf("service shutdown error")
	ErrExport          = fmt.Errorf("export error")
	ErrStore           = fmt.Errorf("store error")
)

// Result is the outcome of a run.
type Result struct {
	Commits        []models.Commit
	Output         string
	MatchedAuthors []string
	Statistics     *models.Statistics
}

// Service represents the main application service
type Service struct {
	config    *config.AppConfig
	collector Collector
	store     Store
	printer   *report.Printer
	log       *zap.Logger
}

// NewService wires the remote backend, the collection engine and, when a
// database url is configured, the commit store.
func NewService(ctx context.Context, cfg *config.AppConfig, v *viper.Viper) (*Service, error) {
	log := logger.ForRun(cfg.Collection.Organization)

	runner, err := newRunner(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceInit, err)
	}

	invoker := remote.NewInvoker(runner, remote.DefaultPolicy(), log)
	source := github.NewSource(invoker, cfg.Collection, log)
	engine := collector.NewEngine(source, cfg.Collection, log)

	var store Store
	if cfg.DatabaseURL != "" {
		database, err := db.New(cfg.DatabaseURL, v)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to initialize database: %v", ErrServiceInit, err)
		}
		if err := database.EnsureSchema(ctx); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("%w: %v", ErrServiceInit, err)
		}
		store = database
	}

	log.Info("Service initialized successfully",
		zap.String("backend", cfg.Backend),
		zap.String("since", cfg.Collection.Since),
		zap.String("until", cfg.Collection.Until),
		zap.Bool("stats", cfg.Collection.IncludeStats),
		zap.Bool("all_branches", cfg.Collection.IncludeAllBranches),
		zap.Int("max_workers", cfg.Collection.MaxWorkers),
		zap.Int("batch_size", cfg.Collection.BatchSize),
		zap.Bool("database", store != nil))

	return New(cfg, engine, store, os.Stdout, log), nil
}

// New creates a Service from already built parts. store may be nil.
func New(cfg *config.AppConfig, c Collector, store Store, out io.Writer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		config:    cfg,
		collector: c,
		store:     store,
		printer:   report.NewPrinter(out, !color.NoColor),
		log:       log,
	}
}

func newRunner(ctx context.Context, cfg *config.AppConfig) (remote.Runner, error) {
	switch cfg.Backend {
	case config.BackendAPI:
		client, err := github.NewClient(cfg.Token, cfg.APIURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		runner := github.NewCLIRunner()
		if !runner.Available(ctx) {
			return nil, fmt.Errorf("gh CLI is not installed or not authenticated, run 'gh auth login'")
		}
		return runner, nil
	}
}

// Run collects, filters, exports, stores and reports the commits of the
// organization. A run that ends with zero commits is not an error.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	cfg := s.config.Collection
	result := &Result{}

	commits, err := s.collector.Collect(ctx, s.config.Repos)
	if err != nil {
		return nil, fmt.Errorf("failed to collect commits for %s: %w", cfg.Organization, err)
	}
	s.log.Info("Collected commits", zap.Int("count", len(commits)))

	if cfg.AuthorFilter != "" {
		commits = aggregate.FilterByAuthor(commits, cfg.AuthorFilter)
		if len(commits) == 0 {
			s.log.Warn("No commits found matching author", zap.String("author", cfg.AuthorFilter))
			result.Commits = commits
			return result, nil
		}
		result.MatchedAuthors = aggregate.MatchedAuthors(commits)
		s.log.Info("Filtered commits by author",
			zap.String("author", cfg.AuthorFilter),
			zap.Strings("matched_authors", result.MatchedAuthors),
			zap.Int("count", len(commits)))
	}

	if cfg.ExcludeMergeCommits {
		before := len(commits)
		commits = aggregate.ExcludeMerges(commits)
		s.log.Info("Excluded merge commits", zap.Int("removed", before-len(commits)))
	}

	result.Commits = commits
	if len(commits) == 0 {
		s.log.Info("No commits found")
		return result, nil
	}

	result.Output = s.config.Output
	if result.Output == "" {
		result.Output = export.DefaultFilename(cfg, s.config.Format)
	}
	fields := export.FieldSetFor(cfg.IncludeAllBranches, cfg.IncludeStats)
	if err := export.Save(result.Output, s.config.Format, commits, fields); err != nil {
		return result, fmt.Errorf("%w: %v", ErrExport, err)
	}
	s.log.Info("Saved commits",
		zap.String("output", result.Output),
		zap.String("fields", fields.Name()),
		zap.Int("count", len(commits)))

	if s.store != nil {
		if err := s.storeCommits(ctx, cfg.Organization, commits); err != nil {
			return result, err
		}
	}

	result.Statistics = aggregate.Aggregate(commits)
	if err := s.printer.Statistics(result.Statistics); err != nil {
		return result, err
	}
	if cfg.IncludeStats {
		if err := s.printer.LargestCommits(commits, s.config.TopCommits); err != nil {
			return result, err
		}
	}
	if err := s.printer.Timeline(aggregate.Timeline(commits), report.TimelineDays); err != nil {
		return result, err
	}

	return result, nil
}

// storeCommits upserts commits and logs the stored totals of each repository.
func (s *Service) storeCommits(ctx context.Context, org string, commits []models.Commit) error {
	if err := s.store.BatchInsert(ctx, org, commits); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	repos, err := s.store.StoredRepositories(ctx, org)
	if err != nil {
		s.log.Warn("Failed to list stored repositories", zap.Error(err))
		return nil
	}
	for _, repo := range repos {
		stats, err := s.store.GetRepositoryStats(ctx, org, repo)
		if err != nil {
			s.log.Warn("Failed to read stored repository stats",
				zap.String("repository", repo),
				zap.Error(err))
			continue
		}
		s.log.Info("Stored repository",
			zap.String("repository", repo),
			zap.Int("total_commits", stats.TotalCommits),
			zap.Int("unique_authors", stats.UniqueAuthors),
			zap.String("first_commit", stats.FirstCommitDate),
			zap.String("last_commit", stats.LastCommitDate))
	}
	return nil
}

// Close performs cleanup operations
func (s *Service) Close() error {
	s.log.Info("Closing service")
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("%w: failed to close database: %v", ErrServiceShutdown, err)
	}
	return nil
}
