package db

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"orgcommits/logger"
	"orgcommits/models"
)

const schema = `
	CREATE TABLE IF NOT EXISTS commits (
		organization  TEXT        NOT NULL,
		repository    TEXT        NOT NULL,
		sha           TEXT        NOT NULL,
		branch        TEXT        NOT NULL DEFAULT '',
		message       TEXT        NOT NULL,
		author        TEXT        NOT NULL,
		committed_at  TIMESTAMPTZ NOT NULL,
		additions     INTEGER,
		deletions     INTEGER,
		total_changes INTEGER,
		collected_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (organization, repository, sha)
	);
	CREATE INDEX IF NOT EXISTS idx_commits_author ON commits (organization, author);
`

const upsertCommit = `
	INSERT INTO commits (
		organization, repository, sha, branch, message, author,
		committed_at, additions, deletions, total_changes
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (organization, repository, sha) DO UPDATE SET
		branch = EXCLUDED.branch,
		message = EXCLUDED.message,
		author = EXCLUDED.author,
		committed_at = EXCLUDED.committed_at,
		additions = COALESCE(EXCLUDED.additions, commits.additions),
		deletions = COALESCE(EXCLUDED.deletions, commits.deletions),
		total_changes = COALESCE(EXCLUDED.total_changes, commits.total_changes),
		collected_at = NOW()
`

// EnsureSchema creates the commits table when it does not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// BatchInsert upserts commits of org in a single transaction, keyed by
// (organization, repository, sha).
func (db *DB) BatchInsert(ctx context.Context, org string, commits []models.Commit) error {
	if org == "" {
		return fmt.Errorf("%w: organization cannot be empty", ErrInvalidInput)
	}
	if len(commits) == 0 {
		return nil
	}

	logger.Info("Starting batch insertion of commits",
		zap.String("organization", org),
		zap.Int("count", len(commits)))
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, upsertCommit)
	if err != nil {
		return fmt.Errorf("failed to prepare commit insert statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range commits {
		additions, deletions, total := nullStats(c.Stats)
		if _, err := stmt.ExecContext(ctx,
			org,
			c.Repository,
			c.SHA,
			c.Branch,
			c.Message,
			c.Author,
			c.Timestamp,
			additions,
			deletions,
			total,
		); err != nil {
			return fmt.Errorf("failed to insert commit %s: %w", c.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrTransactionFailed, err)
	}

	logger.Info("Successfully inserted commits", zap.Int("count", len(commits)))
	return nil
}

func nullStats(s *models.ChangeStats) (additions, deletions, total sql.NullInt64) {
	if s == nil {
		return
	}
	return sql.NullInt64{Int64: int64(s.Additions), Valid: true},
		sql.NullInt64{Int64: int64(s.Deletions), Valid: true},
		sql.NullInt64{Int64: int64(s.Total), Valid: true}
}
