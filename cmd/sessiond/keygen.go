package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/goSession/internal"
)

// keygenConfig holds configuration for the keygen command.
type keygenConfig struct {
	ed25519 bool
	size    int
	hex     bool
	kid     string
}

// NewKeygenCmd creates the keygen subcommand.
func NewKeygenCmd() *cobra.Command {
	cfg := &keygenConfig{}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key",
		Long: `Prints a fresh signing key as SESSIOND_* lines ready for a .env file.
Rotate by giving the new key a --kid and listing the previous one in
SESSIOND_VERIFY_KEYS until its sessions have expired.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeygen(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.ed25519, "ed25519", false, "generate an Ed25519 key pair instead of an HS256 secret")
	cmd.Flags().IntVar(&cfg.size, "bytes", internal.MinSecretBytes, "HS256 secret size in bytes")
	cmd.Flags().BoolVar(&cfg.hex, "hex", false, "encode keys as hex:<hex> instead of base64")
	cmd.Flags().StringVar(&cfg.kid, "kid", "", "key id to print alongside the key")

	return cmd
}

func runKeygen(cmd *cobra.Command, cfg *keygenConfig) error {
	out := cmd.OutOrStdout()
	encode := func(b []byte) string {
		if cfg.hex {
			return "hex:" + hex.EncodeToString(b)
		}
		return base64.StdEncoding.EncodeToString(b)
	}

	if cfg.ed25519 {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return oops.Code("ENTROPY_UNAVAILABLE").Wrap(err)
		}
		fmt.Fprintln(out, "SESSIOND_SIGNING_METHOD=ed25519")
		fmt.Fprintf(out, "SESSIOND_SIGNING_KEY=%s\n", encode(priv))
		fmt.Fprintf(out, "SESSIOND_PUBLIC_KEY=%s\n", encode(pub))
	} else {
		if cfg.size < internal.MinSecretBytes {
			return oops.Code("KEYGEN_INVALID").With("bytes", cfg.size).Errorf("HS256 secrets must be at least %d bytes", internal.MinSecretBytes)
		}
		key, err := internal.NewSecret(cfg.size)
		if err != nil {
			return oops.Code("ENTROPY_UNAVAILABLE").Wrap(err)
		}
		fmt.Fprintln(out, "SESSIOND_SIGNING_METHOD=hs256")
		fmt.Fprintf(out, "SESSIOND_SIGNING_KEY=%s\n", encode(key))
	}
	if cfg.kid != "" {
		fmt.Fprintf(out, "SESSIOND_KEY_ID=%s\n", cfg.kid)
	}
	return nil
}
