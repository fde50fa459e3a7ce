package migrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/whitecard/whitecard-backend/internal/config"
	"github.com/whitecard/whitecard-backend/internal/database"
	"github.com/whitecard/whitecard-backend/internal/di"
	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/tools/common"
)

const toolName = "migrate"

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tooling",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newUpCommand(opts),
		newStatusCommand(opts),
		newPlanCommand(opts),
	)
	return cmd
}

func newUpCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return finish(opts, "up", func(ctx context.Context) ([]string, error) {
				if err := common.LoadEnvFile(opts.envFile); err != nil {
					return nil, err
				}
				runner, err := di.InitializeMigrationRunner()
				if err != nil {
					return nil, err
				}
				defer closeDB(runner.DB())
				if err := ping(ctx, runner.DB()); err != nil {
					return nil, err
				}
				if err := runner.Run(); err != nil {
					return nil, err
				}
				return []string{"schema migration applied", "tables: " + tableList()}, nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report which card tables exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return finish(opts, "status", func(ctx context.Context) ([]string, error) {
				_, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB(db)
				if err := ping(ctx, db); err != nil {
					return nil, err
				}
				details := []string{"database reachable"}
				for _, model := range migratedModels() {
					state := "missing"
					if db.Migrator().HasTable(model.value) {
						state = "present"
					}
					details = append(details, fmt.Sprintf("%s: %s", model.table, state))
				}
				return details, nil
			})
		},
	}
}

func newPlanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show migration plan (dry-run)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return finish(opts, "plan", func(ctx context.Context) ([]string, error) {
				_, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB(db)
				if err := ping(ctx, db); err != nil {
					return nil, err
				}
				return []string{
					"would apply AutoMigrate for domain models",
					"tables: " + tableList(),
					"no mutation executed in plan mode",
				}, nil
			})
		},
	}
}

type migratedModel struct {
	table string
	value any
}

func migratedModels() []migratedModel {
	return []migratedModel{
		{table: "cards", value: &domain.Card{}},
		{table: "qr_codes", value: &domain.QRCode{}},
	}
}

func tableList() string {
	models := migratedModels()
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.table)
	}
	return strings.Join(names, ", ")
}

func finish(opts *options, command string, fn func(context.Context) ([]string, error)) error {
	common.Finish(common.RunAction(toolName, command, opts.ci, opts.timeout, fn), opts.ci, 3)
	return nil
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func loadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
