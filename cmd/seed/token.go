package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"lawwarden.io/warden/internal/api/middleware"
	"lawwarden.io/warden/internal/app/modules"
	"lawwarden.io/warden/internal/config"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		name    string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token",
		Long: `Token signs a JWT with security.jwt_signing_key. Set SECURITY_JWT_SIGNING_KEY
so the server verifies it; an auto-generated key only lives for one process.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if os.Getenv("SECURITY_JWT_SIGNING_KEY") == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: SECURITY_JWT_SIGNING_KEY is not set; a config file key is required for the server to accept this token")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			jwtCfg := modules.JWTConfig(cfg)
			if ttl > 0 {
				jwtCfg.ExpiresIn = ttl
			}
			token, expires, err := mintToken(jwtCfg, subject, name, roles)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "user id placed in the token")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the subject)")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to grant: admin, worldbuilder, game_server (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to server.token_ttl)")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

var knownRoles = map[string]bool{
	middleware.RoleAdmin:        true,
	middleware.RoleWorldbuilder: true,
	middleware.RoleGameServer:   true,
}

// mintToken rejects unknown roles so a typo cannot produce a token that
// every endpoint refuses.
func mintToken(cfg middleware.JWTConfig, subject, name string, roles []string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("subject must not be empty")
	}
	if len(roles) == 0 {
		return "", time.Time{}, fmt.Errorf("at least one role is required")
	}
	for _, r := range roles {
		if !knownRoles[r] {
			return "", time.Time{}, fmt.Errorf("unknown role %q", r)
		}
	}
	if name == "" {
		name = subject
	}
	return middleware.GenerateToken(cfg, subject, name, roles)
}
