package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/config"
)

const defaultAccountTimeout = 10 * time.Second

// accountAddConfig holds configuration for the account add command.
type accountAddConfig struct {
	id       string
	username string
	password string
	timeout  time.Duration
}

// NewAccountCmd creates the account command group.
func NewAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Seed accounts into the Redis account store",
	}
	cmd.AddCommand(newAccountAddCmd())
	return cmd
}

func newAccountAddCmd() *cobra.Command {
	cfg := &accountAddConfig{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAccountAdd(cmd, cfg)
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().StringVar(&cfg.id, "id", "", "account id (default: random UUID)")
	cmd.Flags().StringVar(&cfg.username, "username", "", "account username")
	cmd.Flags().StringVar(&cfg.password, "password", "", "account password")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultAccountTimeout, "timeout for redis operations")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runAccountAdd(cmd *cobra.Command, cfg *accountAddConfig) error {
	settings, err := config.LoadPassword(cmd.Flags(), envFile)
	if err != nil {
		return err
	}
	if settings.RedisAddr == "" {
		return oops.Code(config.CodeInvalid).Errorf("redis-addr is required to add accounts")
	}
	hasher, err := newHasher(settings)
	if err != nil {
		return err
	}
	if !hasher.Accepts(cfg.password) {
		return oops.Code("INPUT_INVALID").Errorf("password exceeds the configured maximum length")
	}

	id := cfg.id
	if id == "" {
		id = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: settings.RedisAddr})
	defer func() { _ = client.Close() }()

	store := goSession.NewRedisAccountStore(client, settings.RedisPrefix)
	err = store.Put(ctx, goSession.Account{
		ID:             id,
		Username:       cfg.username,
		PasswordDigest: hasher.Hash(cfg.password),
	})
	switch {
	case errors.Is(err, goSession.ErrUsernameTaken):
		return oops.Code("ACCOUNT_EXISTS").With("username", cfg.username).Wrap(err)
	case err != nil:
		return oops.Code("REDIS_UNAVAILABLE").With("addr", settings.RedisAddr).Wrap(err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
