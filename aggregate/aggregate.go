// Package aggregate merges, orders, filters and summarizes commit collections.
package aggregate

import (
	"sort"
	"strings"

	"orgcommits/matcher"
	"orgcommits/models"
)

// MergePrefix marks a merge commit message.
const MergePrefix = "Merge"

// MergeBranches flattens per-branch commit lists in the order given, keeping
// only the first occurrence of each (repository, sha) pair.
func MergeBranches(perBranch [][]models.Commit) []models.Commit {
	seen := make(map[string]struct{})
	var merged []models.Commit
	for _, branch := range perBranch {
		for _, c := range branch {
			key := c.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, c)
		}
	}
	return merged
}

// SortGlobal orders commits newest first by timestamp, keeping the relative
// order of equal timestamps. The input slice is sorted in place and returned.
func SortGlobal(commits []models.Commit) []models.Commit {
	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].Timestamp > commits[j].Timestamp
	})
	return commits
}

// ExcludeMerges drops commits whose message starts with MergePrefix.
func ExcludeMerges(commits []models.Commit) []models.Commit {
	filtered := make([]models.Commit, 0, len(commits))
	for _, c := range commits {
		if !strings.HasPrefix(c.Message, MergePrefix) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// FilterByAuthor keeps commits whose author matches pattern. An empty
// pattern keeps everything.
func FilterByAuthor(commits []models.Commit, pattern string) []models.Commit {
	if pattern == "" {
		return commits
	}
	filtered := make([]models.Commit, 0)
	for _, c := range commits {
		if matcher.Matches(c.Author, pattern) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// MatchedAuthors returns the sorted distinct authors in commits.
func MatchedAuthors(commits []models.Commit) []string {
	set := make(map[string]struct{})
	for _, c := range commits {
		set[c.Author] = struct{}{}
	}
	authors := make([]string, 0, len(set))
	for a := range set {
		authors = append(authors, a)
	}
	sort.Strings(authors)
	return authors
}

// TopByChange returns up to limit commits with a positive change count,
// largest first. Commits without statistics are ignored.
func TopByChange(commits []models.Commit, limit int) []models.Commit {
	var changed []models.Commit
	for _, c := range commits {
		if c.TotalChanges() > 0 {
			changed = append(changed, c)
		}
	}
	sort.SliceStable(changed, func(i, j int) bool {
		return changed[i].TotalChanges() > changed[j].TotalChanges()
	})
	if limit >= 0 && len(changed) > limit {
		changed = changed[:limit]
	}
	return changed
}

// Timeline counts commits per day (YYYY-MM-DD).
func Timeline(commits []models.Commit) map[string]int {
	timeline := make(map[string]int)
	for _, c := range commits {
		timeline[day(c.Timestamp)]++
	}
	return timeline
}

func day(timestamp string) string {
	if len(timestamp) > 10 {
		return timestamp[:10]
	}
	return timestamp
}
