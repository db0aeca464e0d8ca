package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rohankatakam/gitbuddy/internal/models"
)

// Formatter renders command results
type Formatter interface {
	FormatCommit(w io.Writer, commit *models.ResolvedCommit) error
	FormatPost(w io.Writer, post *models.Post) error
	FormatPublish(w io.Writer, result *models.PublishResult) error
	FormatFeed(w io.Writer, feed []models.FeedEntry) error
	FormatHistory(w io.Writer, records []*models.PostRecord) error
	FormatStreak(w io.Writer, streak StreakView) error
}

// StreakView is what `gitbuddy streak` prints
type StreakView struct {
	Address           string    `json:"address" yaml:"address"`
	StreakCount       uint64    `json:"streakCount" yaml:"streak_count"`
	LastValidPostTime time.Time `json:"lastValidPostTime,omitempty" yaml:"last_valid_post_time,omitempty"`
}

// Format is an output encoding
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json or yaml (case-insensitive, "yml" allowed)
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// NewFormatter creates the formatter for format
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: "  "}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TextFormatter{}
	}
}

// GetDefaultFormat picks JSON for agents and text for terminals
func GetDefaultFormat() Format {
	if os.Getenv("GITBUDDY_OUTPUT") != "" {
		if f, err := ParseFormat(os.Getenv("GITBUDDY_OUTPUT")); err == nil {
			return f
		}
	}
	if os.Getenv("CI") == "true" {
		return FormatJSON
	}
	return FormatText
}
