package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/cmsauth/internal/app"
	"github.com/charlesng35/cmsauth/internal/auth"
	"github.com/charlesng35/cmsauth/internal/database"
	"github.com/charlesng35/cmsauth/pkg/crypto"
	"github.com/charlesng35/cmsauth/pkg/logger"
)

const generatedSaltLength = 8

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the auth tables",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			return database.Close(db)
		},
	}
}

func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge expired sessions and cache entries once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, database.Close(db)) }()

			store, err := openCache(cfg, db)
			if err != nil {
				return err
			}

			sessions, err := buildSessionService(cfg, db, store, auth.SystemClock{})
			if err != nil {
				return err
			}

			stats, err := newCleaner(cfg, sessions, store).RunOnce(cmd.Context())
			logger.WithModule("maintenance").Info("cleanup finished",
				zap.Int64("sessions", stats.Sessions),
				zap.Int64("cache_entries", stats.CacheEntries),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "sessions=%d cache_entries=%d\n", stats.Sessions, stats.CacheEntries)
			return err
		},
	}
}

func newHashPasswordCommand() *cobra.Command {
	var (
		salt      string
		algorithm string
	)

	cmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the salt and stored digest for a user password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(algorithm) == "" {
				cfg, err := app.LoadConfig(configPathList()...)
				if err != nil {
					return err
				}
				algorithm = cfg.Auth.Password.Algorithm
			}

			hasher, err := auth.NewPasswordHasher(algorithm)
			if err != nil {
				return err
			}

			if salt == "" {
				if salt, err = crypto.RandomAlphanumeric(generatedSaltLength); err != nil {
					return fmt.Errorf("generate salt: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "salt=%s\npassword=%s\n", salt, hasher.Hash(salt, args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&salt, "salt", "", "Salt to hash with; generated when omitted")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Digest algorithm (sha256 or argon2id); defaults to auth.password.algorithm")
	return cmd
}

func configPathList() []string {
	if p := strings.TrimSpace(configPath); p != "" {
		return []string{p}
	}
	return nil
}
