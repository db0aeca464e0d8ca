package output

import (
	"encoding/json"
	"io"

	"github.com/rohankatakam/gitbuddy/internal/models"
	"gopkg.in/yaml.v3"
)

// JSONFormatter outputs machine-readable JSON
type JSONFormatter struct {
	Indent string
}

func (f *JSONFormatter) encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	if f.Indent != "" {
		enc.SetIndent("", f.Indent)
	}
	return enc.Encode(v)
}

func (f *JSONFormatter) FormatCommit(w io.Writer, commit *models.ResolvedCommit) error {
	return f.encode(w, commit)
}

func (f *JSONFormatter) FormatPost(w io.Writer, post *models.Post) error {
	return f.encode(w, post)
}

func (f *JSONFormatter) FormatPublish(w io.Writer, result *models.PublishResult) error {
	return f.encode(w, result)
}

func (f *JSONFormatter) FormatFeed(w io.Writer, feed []models.FeedEntry) error {
	if feed == nil {
		feed = []models.FeedEntry{}
	}
	return f.encode(w, feed)
}

func (f *JSONFormatter) FormatHistory(w io.Writer, records []*models.PostRecord) error {
	if records == nil {
		records = []*models.PostRecord{}
	}
	return f.encode(w, records)
}

func (f *JSONFormatter) FormatStreak(w io.Writer, streak StreakView) error {
	return f.encode(w, streak)
}

// YAMLFormatter outputs YAML
type YAMLFormatter struct{}

func (f *YAMLFormatter) encode(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (f *YAMLFormatter) FormatCommit(w io.Writer, commit *models.ResolvedCommit) error {
	return f.encode(w, commit)
}

func (f *YAMLFormatter) FormatPost(w io.Writer, post *models.Post) error {
	return f.encode(w, post)
}

func (f *YAMLFormatter) FormatPublish(w io.Writer, result *models.PublishResult) error {
	return f.encode(w, result)
}

func (f *YAMLFormatter) FormatFeed(w io.Writer, feed []models.FeedEntry) error {
	return f.encode(w, feed)
}

func (f *YAMLFormatter) FormatHistory(w io.Writer, records []*models.PostRecord) error {
	return f.encode(w, records)
}

func (f *YAMLFormatter) FormatStreak(w io.Writer, streak StreakView) error {
	return f.encode(w, streak)
}
