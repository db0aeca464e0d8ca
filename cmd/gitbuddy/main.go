package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rohankatakam/gitbuddy/internal/config"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/logging"
	"github.com/rohankatakam/gitbuddy/internal/output"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile      string
	verbose      bool
	logFile      string
	outputFormat string
	logger       *logrus.Logger
	cfg          *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Close()

	if err != nil {
		output.FormatError(os.Stderr, err, verbose)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "gitbuddy",
	Short: "GitBuddy - post about your latest commit",
	Long: `GitBuddy finds your most recent commit across every GitHub repository you own,
summarizes it, publishes the post to IPFS and keeps your daily posting streak on chain.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		if err := initLogging(cmd); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.gitbuddy/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: text, json or yaml")

	rootCmd.SetVersionTemplate(`GitBuddy {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(unpinCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(streakCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(mcpCmd)
}

const mcpLogFilesKept = 10

// initLogging routes slog output. The mcp command logs to a file only,
// since stdout carries protocol frames.
func initLogging(cmd *cobra.Command) error {
	lc := logging.DefaultConfig(verbose)
	if lvl := os.Getenv("GITBUDDY_LOG_LEVEL"); lvl != "" && !verbose {
		level, err := logging.ParseLevel(lvl)
		if err != nil {
			return apperrors.ConfigErrorf("GITBUDDY_LOG_LEVEL: %v", err)
		}
		lc.Level = level
	}
	lc.OutputFile = logFile

	if cmd.Name() == "mcp" {
		if lc.OutputFile == "" {
			dir := filepath.Join(config.Dir(), "logs")
			// one file per session; keep the last few
			if _, err := logging.PruneLogFiles(dir, mcpLogFilesKept-1); err != nil {
				logger.WithError(err).Debug("could not prune old mcp logs")
			}
			lc.OutputFile = logging.DefaultLogFile(dir)
		}
		lc.Quiet = true
		lc.JSONFormat = true
		if !verbose {
			lc.Level = logging.INFO
		}
	}
	return logging.Initialize(lc)
}

func formatter() (output.Formatter, error) {
	format := output.GetDefaultFormat()
	if outputFormat != "" {
		f, err := output.ParseFormat(outputFormat)
		if err != nil {
			return nil, apperrors.InvalidArgument(err.Error())
		}
		format = f
	}
	return output.NewFormatter(format), nil
}

// exitCode gives scripts a stable code per failure class
func exitCode(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindInvalidArgument, apperrors.KindConfig:
		return 2
	case apperrors.KindIdentityNotFound, apperrors.KindNoRepositories,
		apperrors.KindNoCommitsFound, apperrors.KindNoFilesInCommit, apperrors.KindNotFound:
		return 3
	case apperrors.KindUnauthorized, apperrors.KindForbidden:
		return 4
	case apperrors.KindRateLimited:
		return 5
	case apperrors.KindCancelled:
		return 130
	default:
		return 1
	}
}
