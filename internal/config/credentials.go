package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"golang.org/x/term"
)

// CredentialManager stores secrets collected by `gitbuddy configure`.
// Secrets go to the OS keychain when one is available, else into the config file.
type CredentialManager struct {
	mode    DeploymentMode
	keyring *KeyringManager
	in      *bufio.Reader
	out     io.Writer
	stdinFd int
}

// NewCredentialManager creates a credential manager on stdin/stdout
func NewCredentialManager() *CredentialManager {
	return &CredentialManager{
		mode:    DetectMode(),
		keyring: NewKeyringManager(),
		in:      bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		stdinFd: int(os.Stdin.Fd()),
	}
}

// Secret is one credential `gitbuddy configure` asks for
type Secret struct {
	Item   string
	Label  string
	Target *string // field in Config the value lands in
}

// Secrets lists the credentials of cfg in prompt order
func Secrets(cfg *Config) []Secret {
	return []Secret{
		{Item: KeyringGitHubTokenItem, Label: "GitHub token", Target: &cfg.GitHub.Token},
		{Item: KeyringGeminiKeyItem, Label: "Gemini API key", Target: &cfg.LLM.GeminiKey},
		{Item: KeyringOpenAIKeyItem, Label: "OpenAI API key", Target: &cfg.LLM.OpenAIKey},
		{Item: KeyringPinataJWTItem, Label: "Pinata JWT", Target: &cfg.Pinata.JWT},
		{Item: KeyringStreakKeyItem, Label: "Streak private key (optional)", Target: &cfg.Streak.PrivateKey},
	}
}

// Prompt reads one line, showing current as the default
func (cm *CredentialManager) Prompt(label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(cm.out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(cm.out, "%s: ", label)
	}
	line, err := cm.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if v := strings.TrimSpace(line); v != "" {
		return v, nil
	}
	return current, nil
}

// PromptSecret reads a secret without echo. Enter keeps the current value.
func (cm *CredentialManager) PromptSecret(label, current string) (string, error) {
	if !cm.mode.AllowsInteractivePrompts() {
		return "", apperrors.ConfigErrorf("cannot prompt for %s in %s mode; use environment variables", label, cm.mode)
	}
	fmt.Fprintf(cm.out, "%s [%s] (Enter to keep): ", label, MaskAPIKey(current))
	value, err := cm.readSecurely()
	if err != nil {
		return "", err
	}
	if value == "" {
		return current, nil
	}
	return value, nil
}

// StoreSecret saves value under item. It returns true when the keychain took it,
// in which case the caller must not write it to the config file.
func (cm *CredentialManager) StoreSecret(item, value string) (bool, error) {
	if value == "" || !cm.keyring.IsAvailable() {
		return false, nil
	}
	if err := cm.keyring.Set(item, value); err != nil {
		return false, apperrors.Wrapf(err, apperrors.KindConfig, "save %s to keychain", item)
	}
	return true, nil
}

// readSecurely reads a password/token from stdin without echoing
func (cm *CredentialManager) readSecurely() (string, error) {
	if term.IsTerminal(cm.stdinFd) {
		bytes, err := term.ReadPassword(cm.stdinFd)
		fmt.Fprintln(cm.out) // New line after password input
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	// Fallback: piped input
	line, err := cm.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetMode returns the current deployment mode
func (cm *CredentialManager) GetMode() DeploymentMode {
	return cm.mode
}

// Keyring exposes the keychain backing this manager
func (cm *CredentialManager) Keyring() *KeyringManager {
	return cm.keyring
}
