package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Feed pages read newest first per group
			CREATE INDEX IF NOT EXISTS idx_posts_group_created
			ON posts (group_id, created_at DESC);

			-- Reaction summaries rebuild from all reactions on a target
			CREATE INDEX IF NOT EXISTS idx_reactions_target
			ON reactions (target_id, created_at ASC);

			-- Thread assembly loads a post's comments oldest first
			CREATE INDEX IF NOT EXISTS idx_comments_post_created
			ON comments (post_id, created_at ASC);

			-- Reply counts scan ancestor paths
			CREATE INDEX IF NOT EXISTS idx_comments_path
			ON comments USING GIN (path);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create initial indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_posts_group_created;
			DROP INDEX IF EXISTS idx_reactions_target;
			DROP INDEX IF EXISTS idx_comments_post_created;
			DROP INDEX IF EXISTS idx_comments_path;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop initial indexes: %w", err)
		}

		return nil
	})
}
