package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/browser"
	"github.com/rohankatakam/gitbuddy/internal/config"
	"github.com/rohankatakam/gitbuddy/internal/output"
	"github.com/spf13/cobra"
)

var (
	latestOpen    bool
	latestPatches bool
	latestTimeout time.Duration
)

var latestCmd = &cobra.Command{
	Use:   "latest [email]",
	Short: "Show the most recent commit across all repositories you own",
	Long: `Find the most recent commit, by author date, across every GitHub repository
owned by the account behind an email address (default: profile.email).

Examples:
  gitbuddy latest alice@example.com
  gitbuddy latest --open
  gitbuddy latest alice@example.com -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLatest,
}

func init() {
	latestCmd.Flags().BoolVar(&latestOpen, "open", false, "open the commit in the browser")
	latestCmd.Flags().BoolVar(&latestPatches, "patches", false, "print each file's diff (text output)")
	latestCmd.Flags().DurationVar(&latestTimeout, "timeout", 0, "give up after this long (default: github.timeout)")
}

func identityArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Profile.Email
}

func runLatest(cmd *cobra.Command, args []string) error {
	if err := validate(config.ValidationContextResolve); err != nil {
		return err
	}
	creds, err := credentials()
	if err != nil {
		return err
	}
	f, err := formatter()
	if err != nil {
		return err
	}

	var c closers
	defer c.Close()
	r, err := newResolver(&c)
	if err != nil {
		return err
	}

	timeout := latestTimeout
	if timeout <= 0 {
		timeout = cfg.GitHub.Timeout
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	identity := identityArg(args)
	logger.WithField("identity_set", identity != "").Debug("Resolving latest commit")
	result, err := r.ResolveLatestCommit(ctx, identity, creds)
	if err != nil {
		return err
	}

	if tf, ok := f.(*output.TextFormatter); ok {
		tf.ShowPatches = latestPatches
	}
	if err := f.FormatCommit(os.Stdout, result); err != nil {
		return err
	}

	if latestOpen && result.CommitURL != "" {
		if err := browser.OpenURL(result.CommitURL); err != nil {
			logger.WithError(err).Warn("Could not open browser")
		}
	}
	return nil
}
