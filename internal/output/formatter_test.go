package output

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/fatih/color"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func init() {
	color.NoColor = true
}

func sampleCommit() *models.ResolvedCommit {
	patch := "@@ -1 +1,2 @@\n-old\n+new\n+more"
	return &models.ResolvedCommit{
		Repository:    "R2",
		CommitSHA:     "bbbbbbbbbbbb",
		CommitMessage: "add parser\n\nlonger body",
		CommitDate:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		CommitURL:     "https://github.com/alice/R2/commit/bbbbbbbbbbbb",
		Files: []models.FileChange{
			{Filename: "parser.go", Status: models.FileAdded, Additions: 2, Deletions: 1, Patch: &patch},
			{Filename: "new.go", PreviousFilename: "old.go", Status: models.FileRenamed},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"TEXT", FormatText, false},
		{"json", FormatJSON, false},
		{"yml", FormatYAML, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextFormatter_Commit(t *testing.T) {
	var buf bytes.Buffer
	f := &TextFormatter{ShowPatches: true}

	require.NoError(t, f.FormatCommit(&buf, sampleCommit()))
	out := buf.String()

	assert.Contains(t, out, "Latest commit in R2")
	assert.Contains(t, out, "commit bbbbbbbbbbbb")
	assert.Contains(t, out, "    add parser\n    \n    longer body")
	assert.Contains(t, out, "Files changed: 2")
	assert.Contains(t, out, "A parser.go +2 -1")
	assert.Contains(t, out, "R old.go -> new.go +0 -0")
	assert.Contains(t, out, "      +new")
}

func TestTextFormatter_FeedAndStreak(t *testing.T) {
	var buf bytes.Buffer
	f := &TextFormatter{}

	require.NoError(t, f.FormatFeed(&buf, nil))
	assert.Equal(t, "No posts yet.\n", buf.String())

	buf.Reset()
	feed := []models.FeedEntry{{
		IPFSHash: "QmX",
		Post: models.Post{
			UserName:     "Alice",
			GithubCommit: &models.PostCommit{Repository: "R2", SHA: "bbbbbbbbbb", Message: "add parser\nbody", Summary: "Adds a parser."},
		},
	}}
	require.NoError(t, f.FormatFeed(&buf, feed))
	assert.Contains(t, buf.String(), "Alice  R2 @ bbbbbbb")
	assert.Contains(t, buf.String(), "    add parser\n    Adds a parser.")

	buf.Reset()
	require.NoError(t, f.FormatStreak(&buf, StreakView{Address: "0xabc", StreakCount: 1}))
	assert.Contains(t, buf.String(), "Streak:  1 day\n")
}

func TestJSONFormatter_CommitFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).FormatCommit(&buf, sampleCommit()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "R2", decoded["repository"])
	assert.Equal(t, "bbbbbbbbbbbb", decoded["commitSha"])
	files := decoded["files"].([]interface{})
	assert.Len(t, files, 2)
	assert.Nil(t, files[1].(map[string]interface{})["patch"], "absent patch is omitted")
}

func TestJSONFormatter_EmptyFeedIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).FormatFeed(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestYAMLFormatter_Publish(t *testing.T) {
	var buf bytes.Buffer
	result := &models.PublishResult{
		Pin:     models.PinResult{IPFSHash: "QmX", UniqueID: "uid-1"},
		Receipt: &models.Receipt{TxHash: "0xabc", Success: true},
		Streak:  3,
	}
	require.NoError(t, NewFormatter(FormatYAML).FormatPublish(&buf, result))

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 3, decoded["streak"])
	assert.Equal(t, "QmX", decoded["pin"].(map[string]interface{})["ipfs_hash"])
	assert.Equal(t, "0xabc", decoded["receipt"].(map[string]interface{})["tx_hash"])
}

func TestFormatError(t *testing.T) {
	var buf bytes.Buffer
	FormatError(&buf, apperrors.New(apperrors.KindIdentityNotFound, "search returned nothing"), false)
	assert.Equal(t, "Error: No GitHub user found with this email address.\n", buf.String())

	buf.Reset()
	FormatError(&buf, stderrors.New("boom"), true)
	assert.Contains(t, buf.String(), "INTERNAL: boom")
}
