package main

import (
	"fmt"

	"github.com/rohankatakam/gitbuddy/internal/config"
	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set up your profile and credentials",
	Long: `Interactively set your profile, GitHub token, LLM keys, Pinata JWT and streak node.

Secrets are saved to the OS keychain when one is available and never
written to ~/.gitbuddy/config.yaml in that case. Press Enter to keep a value.`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cm := config.NewCredentialManager()
	out := cmd.OutOrStdout()

	prompts := []struct {
		label  string
		target *string
	}{
		{"Display name", &cfg.Profile.Name},
		{"Email", &cfg.Profile.Email},
		{"Avatar URL", &cfg.Profile.Image},
		{"LLM provider (gemini, openai, none)", &cfg.LLM.Provider},
		{"Streak RPC URL", &cfg.Streak.RPCURL},
		{"Streak contract address", &cfg.Streak.ContractAddress},
		{"Streak account", &cfg.Streak.Account},
	}
	for _, p := range prompts {
		v, err := cm.Prompt(p.label, *p.target)
		if err != nil {
			return err
		}
		*p.target = v
	}

	inKeychain := 0
	for _, s := range config.Secrets(cfg) {
		v, err := cm.PromptSecret(s.Label, *s.Target)
		if err != nil {
			return err
		}
		stored, err := cm.StoreSecret(s.Item, v)
		if err != nil {
			logger.WithError(err).Warnf("Keeping %s in the config file", s.Label)
			*s.Target = v
			continue
		}
		if stored {
			inKeychain++
			*s.Target = ""
		} else {
			*s.Target = v
		}
	}
	if inKeychain > 0 {
		cfg.LLM.UseKeychain = true
	}

	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nSaved %s", path)
	if inKeychain > 0 {
		fmt.Fprintf(out, " (%d secret(s) in the OS keychain)", inKeychain)
	}
	fmt.Fprintln(out)

	result := cfg.Validate(config.ValidationContextAll)
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  error: %s\n", e)
	}
	return nil
}
