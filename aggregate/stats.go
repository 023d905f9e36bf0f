package aggregate

import (
	"sort"

	"orgcommits/models"
)

// Aggregate computes statistics for commits in a single pass. It returns nil
// for an empty collection.
func Aggregate(commits []models.Commit) *models.Statistics {
	if len(commits) == 0 {
		return nil
	}

	stats := &models.Statistics{
		TotalCommits:        len(commits),
		RepositoryBreakdown: make(map[string]int),
		AuthorBreakdown:     make(map[string]int),
		DateRange: models.DateRange{
			Earliest: day(commits[0].Timestamp),
			Latest:   day(commits[0].Timestamp),
		},
	}
	if commits[0].Branch != "" {
		stats.BranchBreakdown = make(map[string]int)
	}
	if commits[0].HasStats() {
		stats.Changes = &models.ChangeTotals{PerRepository: make(map[string]models.RepositoryChanges)}
	}

	for _, c := range commits {
		stats.RepositoryBreakdown[c.Repository]++
		stats.AuthorBreakdown[c.Author]++

		d := day(c.Timestamp)
		if d < stats.DateRange.Earliest {
			stats.DateRange.Earliest = d
		}
		if d > stats.DateRange.Latest {
			stats.DateRange.Latest = d
		}

		if stats.BranchBreakdown != nil && c.Branch != "" {
			stats.BranchBreakdown[c.Repository+":"+c.Branch]++
		}

		if stats.Changes != nil && c.Stats != nil {
			stats.Changes.Additions += c.Stats.Additions
			stats.Changes.Deletions += c.Stats.Deletions

			repo := stats.Changes.PerRepository[c.Repository]
			repo.Commits++
			repo.Additions += c.Stats.Additions
			repo.Deletions += c.Stats.Deletions
			stats.Changes.PerRepository[c.Repository] = repo
		}
	}

	stats.UniqueAuthors = len(stats.AuthorBreakdown)
	stats.UniqueRepositories = len(stats.RepositoryBreakdown)
	if stats.Changes != nil {
		stats.Changes.Net = stats.Changes.Additions - stats.Changes.Deletions
	}
	return stats
}

// Count is a name with its commit count.
type Count struct {
	Name    string
	Commits int
}

// Ranked orders a breakdown by count descending, then name, and truncates to
// limit entries (limit < 0 keeps all).
func Ranked(breakdown map[string]int, limit int) []Count {
	ranked := make([]Count, 0, len(breakdown))
	for name, n := range breakdown {
		ranked = append(ranked, Count{Name: name, Commits: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Commits != ranked[j].Commits {
			return ranked[i].Commits > ranked[j].Commits
		}
		return ranked[i].Name < ranked[j].Name
	})
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// RepositoryChange is a repository with its change totals.
type RepositoryChange struct {
	Name string
	models.RepositoryChanges
}

// RankedChanges orders per-repository change totals by commit count
// descending, then name, truncated to limit entries.
func RankedChanges(totals *models.ChangeTotals, limit int) []RepositoryChange {
	if totals == nil {
		return nil
	}
	ranked := make([]RepositoryChange, 0, len(totals.PerRepository))
	for name, rc := range totals.PerRepository {
		ranked = append(ranked, RepositoryChange{Name: name, RepositoryChanges: rc})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Commits != ranked[j].Commits {
			return ranked[i].Commits > ranked[j].Commits
		}
		return ranked[i].Name < ranked[j].Name
	})
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
