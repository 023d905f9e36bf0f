// Package models defines the core data structures used throughout the application.
package models

import "strings"

// MaxMessageLength is the number of characters kept from a commit message.
const MaxMessageLength = 500

// ShortSHALength is the length of the abbreviated commit hash carried on a Commit.
const ShortSHALength = 8

// ChangeStats holds the line counts of a single commit.
type ChangeStats struct {
	Additions int `db:"additions" json:"additions"`
	Deletions int `db:"deletions" json:"deletions"`
	Total     int `db:"total_changes" json:"total_changes"`
}

// Commit represents one commit discovered on a repository branch.
// Stats is nil unless statistics collection was enabled for the run.
type Commit struct {
	Timestamp  string       `json:"timestamp"`
	Repository string       `json:"repository"`
	Branch     string       `json:"branch"`
	Message    string       `json:"message"`
	Author     string       `json:"author"`
	SHA        string       `json:"sha"`
	Stats      *ChangeStats `json:"stats,omitempty"`
}

// HasStats reports whether change statistics were attached to the commit.
func (c Commit) HasStats() bool {
	return c.Stats != nil
}

// TotalChanges returns the total changed lines, or 0 when no stats are attached.
func (c Commit) TotalChanges() int {
	if c.Stats == nil {
		return 0
	}
	return c.Stats.Total
}

// Key identifies a commit within an organization.
func (c Commit) Key() string {
	return c.Repository + "@" + c.SHA
}

// NormalizeMessage collapses line breaks, trims surrounding space and
// truncates the result to MaxMessageLength characters.
func NormalizeMessage(msg string) string {
	msg = strings.NewReplacer("\r", " ", "\n", " ").Replace(msg)
	msg = strings.TrimSpace(msg)
	if r := []rune(msg); len(r) > MaxMessageLength {
		msg = string(r[:MaxMessageLength])
	}
	return msg
}

// ShortSHA returns the first ShortSHALength characters of sha.
func ShortSHA(sha string) string {
	if len(sha) > ShortSHALength {
		return sha[:ShortSHALength]
	}
	return sha
}

// DateRange is the earliest and latest commit day (YYYY-MM-DD) in a collection.
type DateRange struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

// RepositoryChanges represents commit and line totals for one repository.
type RepositoryChanges struct {
	Commits   int `json:"commits"`
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// Net returns additions minus deletions.
func (r RepositoryChanges) Net() int {
	return r.Additions - r.Deletions
}

// ChangeTotals summarizes line changes across a collection.
type ChangeTotals struct {
	Additions     int                          `json:"total_additions"`
	Deletions     int                          `json:"total_deletions"`
	Net           int                          `json:"net_changes"`
	PerRepository map[string]RepositoryChanges `json:"repository_stats"`
}

// Statistics is a projection computed from a commit collection.
type Statistics struct {
	TotalCommits        int            `json:"total_commits"`
	UniqueAuthors       int            `json:"unique_authors"`
	UniqueRepositories  int            `json:"unique_repositories"`
	DateRange           DateRange      `json:"date_range"`
	RepositoryBreakdown map[string]int `json:"repository_breakdown"`
	AuthorBreakdown     map[string]int `json:"author_breakdown"`
	// BranchBreakdown is keyed by "repository:branch"; nil when commits carry no branch.
	BranchBreakdown map[string]int `json:"branch_breakdown,omitempty"`
	// Changes is nil when the collection has no statistics attached.
	Changes *ChangeTotals `json:"changes,omitempty"`
}

// RepositoryStats represents totals for a repository stored in the database.
type RepositoryStats struct {
	TotalCommits    int    `db:"total_commits" json:"total_commits"`
	UniqueAuthors   int    `db:"unique_authors" json:"unique_authors"`
	FirstCommitDate string `db:"first_commit_date" json:"first_commit_date"`
	LastCommitDate  string `db:"last_commit_date" json:"last_commit_date"`
}
