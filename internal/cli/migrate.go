package cli

import (
	"context"
	"database/sql"
	"fmt"

	"ai-quiz-service/internal/config"
	"ai-quiz-service/internal/domain"
	"ai-quiz-service/internal/infra/memory"
	"ai-quiz-service/internal/infra/postgres"
	pgmigrations "ai-quiz-service/internal/infra/postgres/migrations"
	"ai-quiz-service/internal/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// NewMigrateCmd applies the question bank schema.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run question bank migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath, seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "insert the sample question sets after migrating")
	return cmd
}

func runMigrations(ctx context.Context, configPath string, seed bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}
	if !seed {
		return nil
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	return seedQuestionBank(ctx, postgres.NewQuestionBank(pool), log)
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("question bank schema up to date")
		return nil
	}
	log.Info("migrations applied", "group", group.String())
	return nil
}

// seedQuestionBank stores every sample set once per difficulty.
func seedQuestionBank(ctx context.Context, bank *postgres.QuestionBank, log *logger.Logger) error {
	for topic, questions := range memory.SampleQuestionSets() {
		for _, difficulty := range []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard} {
			id, err := bank.AddSet(ctx, topic, difficulty, questions)
			if err != nil {
				return fmt.Errorf("seed %s/%s: %w", topic, difficulty, err)
			}
			log.Debug("question set seeded", "id", id, "topic", topic, "difficulty", string(difficulty))
		}
	}
	log.Info("question bank seeded")
	return nil
}
