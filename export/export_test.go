package export

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgcommits/config"
	"orgcommits/models"
)

func sampleCommits() []models.Commit {
	return []models.Commit{
		{
			Timestamp:  "2025-03-02T10:00:00Z",
			Repository: "api",
			Branch:     "main",
			Message:    `fix "quoted", comma`,
			Author:     "Alice Smith",
			SHA:        "aaaaaaaa",
			Stats:      &models.ChangeStats{Additions: 10, Deletions: 3, Total: 13},
		},
		{
			Timestamp:  "2025-03-01T10:00:00Z",
			Repository: "web",
			Branch:     "dev",
			Message:    "feat: thing",
			Author:     "bob",
			SHA:        "bbbbbbbb",
			Stats:      &models.ChangeStats{},
		},
	}
}

type statTuple struct {
	repo, sha            string
	additions, deletions int
}

func tuples(commits []models.Commit) []statTuple {
	out := make([]statTuple, 0, len(commits))
	for _, c := range commits {
		t := statTuple{repo: c.Repository, sha: c.SHA}
		if c.Stats != nil {
			t.additions, t.deletions = c.Stats.Additions, c.Stats.Deletions
		}
		out = append(out, t)
	}
	return out
}

func TestFieldSetColumns(t *testing.T) {
	testCases := []struct {
		name     string
		fields   FieldSet
		expected string
	}{
		{name: "basic", fields: FieldsBasic, expected: "timestamp,repository,message,author,sha"},
		{name: "with_branches", fields: FieldsWithBranch, expected: "timestamp,repository,branch,message,author,sha"},
		{name: "with_stats", fields: FieldsWithStats, expected: "timestamp,repository,branch,message,author,sha,additions,deletions,total_changes"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, strings.Join(tc.fields.Columns(), ","))
			assert.Equal(t, tc.name, tc.fields.Name())
		})
	}
}

func TestFieldSetFor(t *testing.T) {
	testCases := []struct {
		name            string
		includeBranches bool
		includeStats    bool
		expected        FieldSet
	}{
		{name: "default branch only", expected: FieldsBasic},
		{name: "all branches", includeBranches: true, expected: FieldsWithBranch},
		{name: "stats on default branch", includeStats: true, expected: FieldsWithStats},
		{name: "stats on all branches", includeBranches: true, includeStats: true, expected: FieldsWithStats},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, FieldSetFor(tc.includeBranches, tc.includeStats))
		})
	}
}

func TestWriteCSVStatsKeepsBranch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleCommits(), FieldSetFor(false, true)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,repository,branch,message,author,sha,additions,deletions,total_changes", lines[0])
	assert.Equal(t, "2025-03-01T10:00:00Z,web,dev,feat: thing,bob,bbbbbbbb,0,0,0", lines[2])
}

func TestWriteCSVBasic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleCommits(), FieldsBasic))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,repository,message,author,sha", lines[0])
	assert.Equal(t, `2025-03-02T10:00:00Z,api,"fix ""quoted"", comma",Alice Smith,aaaaaaaa`, lines[1])
}

func TestCSVRoundTripWithStats(t *testing.T) {
	commits := sampleCommits()
	fields := FieldSetFor(true, true)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, commits, fields))

	loaded, detected, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, fields, detected)
	assert.ElementsMatch(t, tuples(commits), tuples(loaded))
	assert.Equal(t, commits, loaded)
}

func TestCSVRoundTripBasicDropsStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleCommits(), FieldsBasic))

	loaded, detected, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, FieldsBasic, detected)
	require.Len(t, loaded, 2)
	assert.Nil(t, loaded[0].Stats)
	assert.Empty(t, loaded[0].Branch)
	assert.Equal(t, `fix "quoted", comma`, loaded[0].Message)
}

func TestReadCSVErrors(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("timestamp,repository,author,sha\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	input := "timestamp,repository,message,author,sha,additions,deletions,total_changes\n" +
		"2025-01-01,api,m,a,s,ten,0,0\n"
	_, _, err = ReadCSV(strings.NewReader(input))
	assert.Error(t, err)

	commits, _, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, commits)
}

func TestSaveAndLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.csv")
	commits := sampleCommits()

	require.NoError(t, Save(path, config.FormatCSV, commits, FieldsWithStats))

	loaded, err := LoadCSV(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, tuples(commits), tuples(loaded))

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestParquetSchema(t *testing.T) {
	schema := parquet.SchemaOf(new(commitRow))
	for _, col := range FieldSetFor(true, true).Columns() {
		_, ok := schema.Lookup(col)
		assert.True(t, ok, "column %s should exist", col)
	}
}

func TestParquetRoundTrip(t *testing.T) {
	commits := sampleCommits()

	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, commits, FieldSetFor(true, true)))

	loaded, err := ReadParquet(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, commits, loaded)
}

func TestParquetWithoutOptionalColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, sampleCommits(), FieldsBasic))

	loaded, err := ReadParquet(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Nil(t, loaded[0].Stats)
	assert.Empty(t, loaded[1].Branch)
}

func TestSaveAndLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.parquet")
	commits := sampleCommits()

	require.NoError(t, Save(path, config.FormatParquet, commits, FieldsWithStats))

	loaded, err := LoadParquet(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, tuples(commits), tuples(loaded))
}

func TestLoadChoosesFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	commits := sampleCommits()

	parquetPath := filepath.Join(dir, "commits.PARQUET")
	require.NoError(t, SaveParquet(parquetPath, commits, FieldsWithStats))
	loaded, err := Load(parquetPath)
	require.NoError(t, err)
	assert.ElementsMatch(t, tuples(commits), tuples(loaded))

	csvPath := filepath.Join(dir, "commits.csv")
	require.NoError(t, SaveCSV(csvPath, commits, FieldsWithStats))
	loaded, err = Load(csvPath)
	require.NoError(t, err)
	assert.ElementsMatch(t, tuples(commits), tuples(loaded))
}

func TestDefaultFilename(t *testing.T) {
	testCases := []struct {
		name     string
		opts     []config.Option
		format   string
		expected string
	}{
		{name: "defaults", format: config.FormatCSV, expected: "acme_commits_2025.csv"},
		{
			name:     "all flags",
			opts:     []config.Option{config.WithSince("2024-06-01"), config.WithAllBranches(true), config.WithStats(true), config.WithAuthor("Alice Smith!")},
			format:   config.FormatCSV,
			expected: "acme_commits_2024_all_branches_with_stats_AliceSmith.csv",
		},
		{
			name:     "parquet keeps separators",
			opts:     []config.Option{config.WithAuthor("a.smith_x-y")},
			format:   config.FormatParquet,
			expected: "acme_commits_2025_a.smith_x-y.parquet",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := config.NewCollectionConfig("acme", tc.opts...)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, DefaultFilename(cfg, tc.format))
		})
	}
}
