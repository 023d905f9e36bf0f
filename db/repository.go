package db

import (
	"context"
	"fmt"

	"orgcommits/models"
)

const repositoryStatsQuery = `
	SELECT
		COUNT(*) AS total_commits,
		COUNT(DISTINCT author) AS unique_authors,
		COALESCE(TO_CHAR(MIN(committed_at) AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'), '') AS first_commit_date,
		COALESCE(TO_CHAR(MAX(committed_at) AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'), '') AS last_commit_date
	FROM commits
	WHERE organization = $1 AND repository = $2
`

const storedRepositoriesQuery = `
	SELECT DISTINCT repository
	FROM commits
	WHERE organization = $1
	ORDER BY repository
`

// GetRepositoryStats returns totals for a stored repository.
func (db *DB) GetRepositoryStats(ctx context.Context, org, repo string) (*models.RepositoryStats, error) {
	if org == "" || repo == "" {
		return nil, fmt.Errorf("%w: organization and repository cannot be empty", ErrInvalidInput)
	}

	stmt, err := db.getStmt(ctx, repositoryStatsQuery)
	if err != nil {
		return nil, err
	}

	stats := &models.RepositoryStats{}
	if err := stmt.GetContext(ctx, stats, org, repo); err != nil {
		return nil, fmt.Errorf("failed to get repository statistics: %w", err)
	}
	if stats.TotalCommits == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, org, repo)
	}
	return stats, nil
}

// StoredRepositories lists the repositories of org that have stored commits.
func (db *DB) StoredRepositories(ctx context.Context, org string) ([]string, error) {
	if org == "" {
		return nil, fmt.Errorf("%w: organization cannot be empty", ErrInvalidInput)
	}

	stmt, err := db.getStmt(ctx, storedRepositoriesQuery)
	if err != nil {
		return nil, err
	}

	var repos []string
	if err := stmt.SelectContext(ctx, &repos, org); err != nil {
		return nil, fmt.Errorf("failed to list stored repositories: %w", err)
	}
	return repos, nil
}
