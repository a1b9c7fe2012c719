package cmd

import (
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/uroborus2s/campus-sync/internal/logger"
	"github.com/uroborus2s/campus-sync/migrations"
)

// CmdMigrate applies the embedded schema migrations.
func CmdMigrate() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE:  runCommand(runMigrate),
	}
}

func runMigrate(ctx *Context, _ []string) error {
	pool, err := ctx.Pool()
	if err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.Info(ctx, "Migrations applied")
	return nil
}
