package tools

import (
	"time"

	"github.com/rohankatakam/gitbuddy/internal/models"
)

// LatestCommitInput is the argument of latest_commit
type LatestCommitInput struct {
	Identity string `json:"identity" jsonschema:"email address (or GitHub login) whose latest commit to find"`
}

// FileChange is one file of a resolved commit
type FileChange struct {
	Filename         string `json:"filename"`
	Status           string `json:"status"`
	Additions        int    `json:"additions"`
	Deletions        int    `json:"deletions"`
	Changes          int    `json:"changes"`
	Patch            string `json:"patch,omitempty" jsonschema:"unified diff, absent for binary files"`
	PreviousFilename string `json:"previous_filename,omitempty"`
}

// LatestCommitOutput is the result of latest_commit
type LatestCommitOutput struct {
	Repository    string       `json:"repository"`
	CommitSHA     string       `json:"commit_sha"`
	CommitMessage string       `json:"commit_message"`
	CommitDate    string       `json:"commit_date" jsonschema:"author date, RFC 3339"`
	CommitURL     string       `json:"commit_url"`
	Files         []FileChange `json:"files"`
}

// StreakInput is the argument of streak
type StreakInput struct {
	Address string `json:"address,omitempty" jsonschema:"account to read; defaults to the configured account"`
}

// StreakOutput is the result of streak
type StreakOutput struct {
	Address           string `json:"address"`
	StreakCount       uint64 `json:"streak_count"`
	LastValidPostTime string `json:"last_valid_post_time,omitempty" jsonschema:"RFC 3339, absent when the account never posted"`
}

func toLatestCommitOutput(r *models.ResolvedCommit) LatestCommitOutput {
	out := LatestCommitOutput{
		Repository:    r.Repository,
		CommitSHA:     r.CommitSHA,
		CommitMessage: r.CommitMessage,
		CommitDate:    r.CommitDate.UTC().Format(time.RFC3339),
		CommitURL:     r.CommitURL,
		Files:         make([]FileChange, 0, len(r.Files)),
	}
	for _, f := range r.Files {
		fc := FileChange{
			Filename:         f.Filename,
			Status:           string(f.Status),
			Additions:        f.Additions,
			Deletions:        f.Deletions,
			Changes:          f.Changes,
			PreviousFilename: f.PreviousFilename,
		}
		if f.Patch != nil {
			fc.Patch = *f.Patch
		}
		out.Files = append(out.Files, fc)
	}
	return out
}
