package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/yupeng0512/user-management/internal/bootstrap"
	"github.com/yupeng0512/user-management/internal/config"
	"github.com/yupeng0512/user-management/internal/service/password"
	"github.com/yupeng0512/user-management/pkg/logger"
)

// loadConfig is replaced in tests
var loadConfig = func(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	return config.LoadConfig()
}

func newRootCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:           "umctl",
		Short:         "Administrative tasks for the password lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory containing config.yaml")

	load := func() (*config.Config, error) {
		cfg, err := loadConfig(configDir)
		if err != nil {
			return nil, err
		}
		if _, err := logger.Setup(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "umctl"}); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cmd.AddCommand(newPolicyCommand(load))
	cmd.AddCommand(newScoreCommand())
	cmd.AddCommand(newPurgeTokensCommand(load))
	cmd.AddCommand(newPurgeHistoryCommand(load))
	return cmd
}

func newPolicyCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Print the effective password policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), password.PolicyFromConfig(cfg.Password).Document())
		},
	}
}

func newScoreCommand() *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "score PASSWORD",
		Short: "Score a password the way the validate endpoint does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), password.Evaluate(args[0], username, email))
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username hint")
	cmd.Flags().StringVar(&email, "email", "", "Email hint")
	return cmd
}

func newPurgeTokensCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-tokens",
		Short: "Delete expired reset tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			repos, err := bootstrap.OpenRepositories(ctx, cfg)
			if err != nil {
				return err
			}
			defer repos.Close()

			tokens := password.NewTokenStore(repos.Tokens, repos.Attempts, password.PolicyFromConfig(cfg.Password), time.Now)
			n, err := tokens.PurgeExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d reset tokens\n", n)
			return nil
		},
	}
}

func newPurgeHistoryCommand(load func() (*config.Config, error)) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge-history",
		Short: "Delete archived password hashes past retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if days <= 0 {
				days = cfg.Password.HistoryRetentionDays
			}
			if days <= 0 {
				return fmt.Errorf("retention days must be positive")
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			repos, err := bootstrap.OpenRepositories(ctx, cfg)
			if err != nil {
				return err
			}
			defer repos.Close()

			history := password.NewHistoryLedger(repos.History, bootstrap.NewHasher(cfg), password.PolicyFromConfig(cfg.Password), time.Now)
			n, err := history.PurgeOlderThan(ctx, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d password history entries older than %d days\n", n, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (defaults to password.history_retention_days)")
	return cmd
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, 5*time.Minute)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
