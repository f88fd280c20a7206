package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/schemagate/adapters/auth"
	"github.com/artpar/schemagate/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for POST /snapshots",
	Long: `Mint a JWT signed with auth.secret from the config file (or
SCHEMAGATE_AUTH_SECRET). The token is printed to stdout.

Use --generate-secret to print a fresh random secret for auth.secret.`,
	Example: `  schemagate token
  schemagate token --subject release-pipeline --ttl 1h
  schemagate token --generate-secret`,
	RunE: runToken,
}

var (
	tokenSubject        string
	tokenRole           string
	tokenTTL            time.Duration
	tokenGenerateSecret bool
)

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "token subject")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleWriter, "token role")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default: auth.token_ttl)")
	tokenCmd.Flags().BoolVar(&tokenGenerateSecret, "generate-secret", false, "print a new signing secret and exit")
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenGenerateSecret {
		fmt.Fprintln(cmd.OutOrStdout(), auth.GenerateSecret())
		return nil
	}

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return errors.New("auth.secret is not set; the server would reject this token (see --generate-secret)")
	}

	ttl := cfg.Auth.TokenTTL
	if tokenTTL > 0 {
		ttl = tokenTTL
	}

	tokens := auth.NewTokenService(cfg.Auth.Secret, ttl)
	token, expiresAt, err := tokens.GenerateToken(tokenSubject, tokenRole)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
