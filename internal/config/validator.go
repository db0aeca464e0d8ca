package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextResolve - gitbuddy latest needs a GitHub token
	ValidationContextResolve ValidationContext = "resolve"
	// ValidationContextPublish - gitbuddy post also needs Pinata and the streak node
	ValidationContextPublish ValidationContext = "publish"
	// ValidationContextFeed - feed, show and unpin need Pinata
	ValidationContextFeed ValidationContext = "feed"
	// ValidationContextStreak - streak reads need the streak node
	ValidationContextStreak ValidationContext = "streak"
	// ValidationContextAll - validate all configuration
	ValidationContextAll ValidationContext = "all"
)

var (
	addressPattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	privateKeyPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}
	return sb.String()
}

// Err returns a config error when validation failed, nil otherwise
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return apperrors.ConfigError(vr.Error())
}

// Validate validates configuration for the given context with auto-detected mode
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	return c.ValidateWithMode(ctx, DetectMode())
}

// ValidateWithMode validates configuration for the given context and deployment mode
func (c *Config) ValidateWithMode(ctx ValidationContext, mode DeploymentMode) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextResolve:
		c.validateGitHub(result, true)
	case ValidationContextPublish:
		c.validateGitHub(result, true)
		c.validateLLM(result)
		c.validatePinata(result, true)
		c.validateStreak(result, true, true)
		c.validateStorage(result, mode)
	case ValidationContextFeed:
		c.validatePinata(result, true)
		c.validateStorage(result, mode)
	case ValidationContextStreak:
		c.validateStreak(result, true, false)
	case ValidationContextAll:
		c.validateGitHub(result, false)
		c.validateLLM(result)
		c.validatePinata(result, false)
		c.validateStreak(result, false, false)
		c.validateStorage(result, mode)
	}

	return result
}

func (c *Config) validateGitHub(result *ValidationResult, required bool) {
	if c.GitHub.Token == "" {
		if required {
			result.AddError("GITHUB_TOKEN is required but not set. Create a token at https://github.com/settings/tokens")
		} else {
			result.AddWarning("GITHUB_TOKEN is not set")
		}
	}
	if c.GitHub.BaseURL != "" {
		validateHTTPURL(result, "GITHUB_API_URL", c.GitHub.BaseURL)
	}
	if c.GitHub.RateLimit <= 0 {
		result.AddError("github.rate_limit must be positive, got %v", c.GitHub.RateLimit)
	}
	if c.GitHub.Concurrency < 0 || c.GitHub.MaxRepositories < 0 {
		result.AddError("github.concurrency and github.max_repositories cannot be negative")
	}
	if c.GitHub.MaxRetries < 0 {
		result.AddError("github.max_retries cannot be negative, got %d", c.GitHub.MaxRetries)
	}
}

func (c *Config) validateLLM(result *ValidationResult) {
	switch strings.ToLower(c.LLM.Provider) {
	case "", "gemini":
		if c.LLM.GeminiKey == "" {
			result.AddWarning("GEMINI_API_KEY is not set, posts will have no summary")
		}
	case "openai":
		if c.LLM.OpenAIKey == "" {
			result.AddWarning("OPENAI_API_KEY is not set, posts will have no summary")
		}
	case "none":
	default:
		result.AddError("LLM_PROVIDER must be gemini, openai or none, got %q", c.LLM.Provider)
	}
	if c.LLM.RPM < 0 || c.LLM.TPM < 0 || c.LLM.RPD < 0 {
		result.AddError("llm quota limits cannot be negative")
	}
}

func (c *Config) validatePinata(result *ValidationResult, required bool) {
	hasKeyPair := c.Pinata.APIKey != "" && c.Pinata.SecretKey != ""
	if c.Pinata.JWT == "" && !hasKeyPair {
		if required {
			result.AddError("Pinata credentials are required: set PINATA_JWT or PINATA_API_KEY and PINATA_SECRET_KEY")
		} else {
			result.AddWarning("Pinata credentials are not set")
		}
	}
	if c.Pinata.JWT == "" && (c.Pinata.APIKey == "") != (c.Pinata.SecretKey == "") {
		result.AddError("PINATA_API_KEY and PINATA_SECRET_KEY must be set together")
	}
	if c.Pinata.APIURL != "" {
		validateHTTPURL(result, "pinata.api_url", c.Pinata.APIURL)
	}
	if c.Pinata.GatewayURL != "" {
		validateHTTPURL(result, "PINATA_GATEWAY_URL", c.Pinata.GatewayURL)
	}
}

func (c *Config) validateStreak(result *ValidationResult, required, needsAccount bool) {
	if c.Streak.RPCURL == "" {
		if required {
			result.AddError("STREAK_RPC_URL is required but not set")
		} else {
			result.AddWarning("STREAK_RPC_URL is not set, streaks are disabled")
		}
	} else {
		validateHTTPURL(result, "STREAK_RPC_URL", c.Streak.RPCURL)
	}

	if c.Streak.ContractAddress != "" && !addressPattern.MatchString(c.Streak.ContractAddress) {
		result.AddError("STREAK_CONTRACT_ADDRESS is not a 20-byte hex address: %q", c.Streak.ContractAddress)
	}
	if c.Streak.Account == "" {
		if needsAccount && c.Streak.PrivateKey == "" {
			result.AddError("STREAK_ACCOUNT or STREAK_PRIVATE_KEY is required to record posts")
		}
	} else if !addressPattern.MatchString(c.Streak.Account) {
		result.AddError("STREAK_ACCOUNT is not a 20-byte hex address: %q", c.Streak.Account)
	}
	if c.Streak.PrivateKey != "" && !privateKeyPattern.MatchString(c.Streak.PrivateKey) {
		// never echo the key
		result.AddError("STREAK_PRIVATE_KEY is not a 32-byte hex key")
	}
}

func (c *Config) validateStorage(result *ValidationResult, mode DeploymentMode) {
	switch strings.ToLower(c.Storage.Type) {
	case "", "sqlite", "local":
		if c.Storage.LocalPath == "" {
			result.AddError("LOCAL_DB_PATH is required for sqlite storage")
		}
		if mode.RequiresSecureCredentials() {
			result.AddWarning("sqlite post index in %s mode is lost with the workspace", mode)
		}
	case "postgres", "postgresql":
		dsn := c.Storage.PostgresDSN
		if dsn == "" {
			result.AddError("POSTGRES_DSN is required for postgres storage")
			return
		}
		if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
			result.AddError("POSTGRES_DSN must start with postgres:// or postgresql://")
		}
		if strings.Contains(dsn, "sslmode=disable") && mode.RequiresSecureCredentials() {
			result.AddError("POSTGRES_DSN has sslmode=disable. This is not allowed in %s mode", mode)
		}
	case "none":
	default:
		result.AddError("STORAGE_TYPE must be sqlite, postgres or none, got %q", c.Storage.Type)
	}
}

func validateHTTPURL(result *ValidationResult, name, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		result.AddError("%s is not a valid http(s) URL: %q", name, raw)
	}
}
