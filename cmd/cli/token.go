package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"webtoonhub/internal/auth"
	"webtoonhub/pkg/utils"
)

func tokenCmd(opts *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored bearer token",
	}

	var email string
	var ttl time.Duration
	mint := &cobra.Command{
		Use:   "mint <clerk-id>",
		Short: "Sign a token locally with the server's JWT secret",
		Long: `Signs a token with WEBTOONHUB_JWT_SECRET and WEBTOONHUB_JWT_ISSUER,
the same settings the api-server reads. The user must already be
provisioned (identity webhook or seed).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := utils.Load()
			ts := auth.TokenService{
				Secret:   []byte(cfg.Auth.JWTSecret),
				Issuer:   cfg.Auth.JWTIssuer,
				Duration: cfg.Auth.JWTDuration,
			}
			if ttl > 0 {
				ts.Duration = ttl
			}
			tok, exp, err := ts.Sign(args[0], email)
			if err != nil {
				return err
			}
			if err := saveToken(opts.tokenPath, tok); err != nil {
				return err
			}
			fmt.Printf("token saved to %s (expires %s)\n", opts.tokenPath, exp.Format(time.RFC3339))
			return nil
		},
	}
	mint.Flags().StringVar(&email, "email", "", "email claim")
	mint.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to server setting)")

	set := &cobra.Command{
		Use:   "set <token>",
		Short: "Store a token issued elsewhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return errors.New("empty token")
			}
			return saveToken(opts.tokenPath, args[0])
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearToken(opts.tokenPath)
		},
	}

	cmd.AddCommand(mint, set, clearCmd)
	return cmd
}

func meCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the authenticated user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts, true)
			if err != nil {
				return err
			}
			var out map[string]any
			if err := c.doJSON(cmd.Context(), "GET", "/users/me", nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}
