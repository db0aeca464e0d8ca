package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "GitBuddy"

	KeyringGitHubTokenItem  = "github-token"
	KeyringGeminiKeyItem    = "gemini-api-key"
	KeyringOpenAIKeyItem    = "openai-api-key"
	KeyringPinataJWTItem    = "pinata-jwt"
	KeyringPinataSecretItem = "pinata-secret-key"
	KeyringStreakKeyItem    = "streak-private-key"
)

// secretEnv maps keychain items to the environment variable that overrides them
var secretEnv = map[string]string{
	KeyringGitHubTokenItem:  "GITHUB_TOKEN",
	KeyringGeminiKeyItem:    "GEMINI_API_KEY",
	KeyringOpenAIKeyItem:    "OPENAI_API_KEY",
	KeyringPinataJWTItem:    "PINATA_JWT",
	KeyringPinataSecretItem: "PINATA_SECRET_KEY",
	KeyringStreakKeyItem:    "STREAK_PRIVATE_KEY",
}

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	service string
	logger  *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		service: KeyringService,
		logger:  slog.Default().With("component", "keyring"),
	}
}

// Set stores a secret in the OS keychain:
// - macOS: Keychain Access.app → "GitBuddy"
// - Windows: Credential Manager → "GitBuddy"
// - Linux: Secret Service (requires libsecret)
func (km *KeyringManager) Set(item, secret string) error {
	if secret == "" {
		return fmt.Errorf("%s cannot be empty", item)
	}

	if err := keyring.Set(km.service, item, secret); err != nil {
		km.logger.Error("failed to save secret to keychain", "item", item, "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.Info("secret saved to keychain", "service", km.service, "item", item)
	return nil
}

// Get returns the secret stored under item, or "" when none is stored
func (km *KeyringManager) Get(item string) (string, error) {
	secret, err := keyring.Get(km.service, item)
	if err == keyring.ErrNotFound {
		// Not an error - just not set yet
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to read secret from keychain", "item", item, "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return secret, nil
}

// Delete removes item from the keychain
func (km *KeyringManager) Delete(item string) error {
	err := keyring.Delete(km.service, item)
	if err == keyring.ErrNotFound {
		// Already deleted, not an error
		return nil
	}
	if err != nil {
		km.logger.Error("failed to delete secret from keychain", "item", item, "error", err)
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}

	km.logger.Info("secret deleted from keychain", "item", item)
	return nil
}

// GetGitHubToken retrieves GitHub token from OS keychain
func (km *KeyringManager) GetGitHubToken() (string, error) {
	return km.Get(KeyringGitHubTokenItem)
}

// SetGitHubToken stores GitHub token securely in OS keychain
func (km *KeyringManager) SetGitHubToken(token string) error {
	return km.Set(KeyringGitHubTokenItem, token)
}

// IsAvailable checks if OS keychain is available.
// Returns false on headless systems (CI/CD) where keychain isn't available
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(km.service, "test-availability")

	// "not found" means the keychain answered
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}
	return true
}

// KeySourceInfo returns information about where a secret is stored
type KeySourceInfo struct {
	Source      string // "env", "keychain", "config", "none"
	Secure      bool
	Recommended string
}

// SecretSource determines where item is coming from
func (km *KeyringManager) SecretSource(item, fileValue string) KeySourceInfo {
	if env, ok := secretEnv[item]; ok && os.Getenv(env) != "" {
		return KeySourceInfo{
			Source:      "env",
			Secure:      true,
			Recommended: "Using environment variable (good for CI/CD)",
		}
	}

	if secret, _ := km.Get(item); secret != "" {
		return KeySourceInfo{
			Source:      "keychain",
			Secure:      true,
			Recommended: "Stored securely in OS keychain",
		}
	}

	if fileValue != "" {
		return KeySourceInfo{
			Source:      "config",
			Secure:      false,
			Recommended: "Plaintext storage detected. Run: gitbuddy configure",
		}
	}

	return KeySourceInfo{
		Source:      "none",
		Recommended: "Not configured. Run: gitbuddy configure",
	}
}

// MaskAPIKey masks an API key for display
// Shows first 7 chars and last 4 chars: "sk-proj...abc123"
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return "(not set)"
	}
	if len(apiKey) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", apiKey[:7], apiKey[len(apiKey)-4:])
}
