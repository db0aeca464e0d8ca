package config

import (
	"os"
	"strings"
)

// DeploymentMode decides whether GitBuddy may prompt and how strictly it validates
type DeploymentMode string

const (
	// ModeInteractive - a person at a terminal; prompts allowed
	ModeInteractive DeploymentMode = "interactive"

	// ModeCI - CI/CD pipelines; no prompts, secrets come from the environment
	ModeCI DeploymentMode = "ci"
)

// DetectMode automatically detects the current deployment mode
func DetectMode() DeploymentMode {
	// Explicit override via environment variable
	if mode := os.Getenv("GITBUDDY_MODE"); mode != "" {
		switch strings.ToLower(mode) {
		case "ci", "cicd":
			return ModeCI
		case "interactive", "local":
			return ModeInteractive
		}
	}

	if isCI() {
		return ModeCI
	}
	return ModeInteractive
}

// isCI checks if running in a CI/CD environment
func isCI() bool {
	ciEnvVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"BUILDKITE",
		"JENKINS_URL",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return true
		}
	}
	return false
}

func (m DeploymentMode) String() string {
	return string(m)
}

// AllowsInteractivePrompts returns true if prompts for missing secrets are allowed
func (m DeploymentMode) AllowsInteractivePrompts() bool {
	return m == ModeInteractive
}

// RequiresSecureCredentials returns true if plaintext secrets in files are rejected
func (m DeploymentMode) RequiresSecureCredentials() bool {
	return m == ModeCI
}
