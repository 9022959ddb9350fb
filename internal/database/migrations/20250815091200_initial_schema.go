package migrations

import (
	"context"
	"fmt"

	"github.com/bumpring/bumpring/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []interface{}{
			(*types.Post)(nil),
			(*types.Reaction)(nil),
			(*types.Comment)(nil),
			(*types.GroupMember)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table for %T: %w", model, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []interface{}{
			(*types.GroupMember)(nil),
			(*types.Comment)(nil),
			(*types.Reaction)(nil),
			(*types.Post)(nil),
		}

		for _, model := range models {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", model, err)
			}
		}

		return nil
	})
}
