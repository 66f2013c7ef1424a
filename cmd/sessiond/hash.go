package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/password"
)

// NewHashCmd creates the hash subcommand.
func NewHashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash [password]",
		Short: "Print the stored digest for a password",
		Long: `Hashes a password with the deployment salt and argon2id parameters, exactly
as the service does at login. Reads one line from stdin when no argument is
given.

With --check, the password is verified against an existing digest instead. The
command fails when the password does not match, and warns when the digest was
produced with other parameters or another salt: such digests can no longer be
matched at login and must be reseeded.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHash,
	}
	config.RegisterFlags(cmd.Flags())
	cmd.Flags().String(flagCheck, "", "verify the password against this stored digest")
	return cmd
}

const flagCheck = "check"

func runHash(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadPassword(cmd.Flags(), envFile)
	if err != nil {
		return err
	}
	hasher, err := newHasher(cfg)
	if err != nil {
		return err
	}

	var pw string
	if len(args) == 1 {
		pw = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return oops.Code("INPUT_INVALID").Wrap(err)
		}
		pw = strings.TrimRight(line, "\r\n")
	}

	if !hasher.Accepts(pw) {
		return oops.Code("INPUT_INVALID").Errorf("password exceeds the configured maximum length")
	}
	digest, _ := cmd.Flags().GetString(flagCheck)
	if digest != "" {
		return checkDigest(cmd, hasher, pw, digest)
	}
	fmt.Fprintln(cmd.OutOrStdout(), hasher.Hash(pw))
	return nil
}

func checkDigest(cmd *cobra.Command, hasher *password.Argon2, pw, digest string) error {
	ok, err := hasher.Verify(pw, digest)
	if err != nil {
		return oops.Code("INPUT_INVALID").Hint("pass a digest printed by sessiond hash").Wrap(err)
	}
	if !ok {
		return oops.Code("DIGEST_MISMATCH").Errorf("password does not match digest")
	}

	out := cmd.OutOrStdout()
	stale, err := hasher.NeedsUpgrade(digest)
	if err != nil {
		return oops.Code("INPUT_INVALID").Wrap(err)
	}
	if stale {
		fmt.Fprintln(out, "match (stale: rehash with current settings and reseed the account)")
		return nil
	}
	fmt.Fprintln(out, "match")
	return nil
}

func newHasher(cfg *config.Config) (*password.Argon2, error) {
	hasher, err := password.NewArgon2(cfg.PasswordConfig())
	if err != nil {
		return nil, oops.Code(config.CodeInvalid).Wrap(err)
	}
	return hasher, nil
}
