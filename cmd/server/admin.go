package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pantheon/duel-server-go/internal/auth"
	"github.com/pantheon/duel-server-go/internal/deck"
	"github.com/pantheon/duel-server-go/internal/repository"
	"github.com/pantheon/duel-server-go/migrations"
)

// withDB runs fn against the configured database.
func withDB(ctx context.Context, configPath string, fn func(*repository.DB, *zap.Logger) error) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if ctx == nil {
		ctx = context.Background()
	}
	db, err := repository.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	return fn(db, logger)
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), *configPath, func(db *repository.DB, _ *zap.Logger) error {
				return db.Migrate(cmd.Context(), migrations.FS)
			})
		},
	}
}

func newImportCardsCmd(configPath *string) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import-cards <catalogue.csv>",
		Short: "Load the card catalogue from a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			catalogue, err := deck.ParseCSV(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			return withDB(cmd.Context(), *configPath, func(db *repository.DB, logger *zap.Logger) error {
				n, err := repository.NewCardRepository(db, logger).ImportCards(cmd.Context(), catalogue, replace)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d cards\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "truncate the catalogue and all ownership rows first")
	return cmd
}

func newGrantCardCmd(configPath *string) *cobra.Command {
	var copies int

	cmd := &cobra.Command{
		Use:   "grant-card <player> <card-id>",
		Short: "Add catalogue cards to a player's collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("card id %q: %w", args[1], err)
			}
			if copies < 1 {
				return errors.New("--copies must be positive")
			}

			return withDB(cmd.Context(), *configPath, func(db *repository.DB, logger *zap.Logger) error {
				repo := repository.NewCardRepository(db, logger)
				for range copies {
					if err := repo.GrantCard(cmd.Context(), args[0], cardID); err != nil {
						return err
					}
				}
				logger.Info("cards granted",
					zap.String("player_id", args[0]),
					zap.Int64("card_id", cardID),
					zap.Int("copies", copies),
				)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&copies, "copies", 1, "number of copies to grant")
	return cmd
}

func newHashTokenCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-token <token>",
		Short: "Print the bcrypt hash to put in auth.token_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashToken(args[0], cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
