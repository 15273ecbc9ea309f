package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

const defaultBaseURL = "http://localhost:8080"

type globalOpts struct {
	baseURL   string
	tokenPath string
	token     string
}

func main() {
	opts := &globalOpts{}

	rootCmd := &cobra.Command{
		Use:   "webtoonhub",
		Short: "Command line client for the webtoonhub API",
		Long: `webtoonhub talks to a running api-server.

Authenticate with "token mint" (local development, shares the server's
JWT secret) or "token set" with a token issued elsewhere.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "api", envOr("WEBTOONHUB_API", defaultBaseURL), "API base URL")
	rootCmd.PersistentFlags().StringVar(&opts.tokenPath, "token-file", defaultTokenPath(), "token file path")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("WEBTOONHUB_TOKEN"), "bearer token (overrides --token-file)")

	rootCmd.AddCommand(
		tokenCmd(opts),
		meCmd(opts),
		webtoonsCmd(opts),
		uploadCmd(opts),
		watchCmd(opts),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
