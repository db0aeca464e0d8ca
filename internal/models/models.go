package models

import (
	"time"
)

// Credentials is the bearer credential forwarded to every source host call
type Credentials struct {
	Token string `json:"-"`
}

// Valid reports whether a token is present
func (c Credentials) Valid() bool {
	return c.Token != ""
}

// AccountHandle is a platform account resolved from an identity
type AccountHandle struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

// RepositoryRef is one repository owned by a resolved account
type RepositoryRef struct {
	Owner            string     `json:"owner"`
	Name             string     `json:"name"`
	LastActivityHint *time.Time `json:"last_activity_hint,omitempty"` // nil when the host gives no hint
}

// FullName returns "owner/name"
func (r RepositoryRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// CommitSummary is a repository's most recent commit before detail expansion
type CommitSummary struct {
	SHA        string    `json:"sha"`
	Message    string    `json:"message"`
	AuthorDate time.Time `json:"author_date"`
	HTMLURL    string    `json:"html_url"`
	DetailURL  string    `json:"detail_url"`
}

// FileStatus mirrors the host's per-file change status
type FileStatus string

const (
	FileAdded     FileStatus = "added"
	FileModified  FileStatus = "modified"
	FileRemoved   FileStatus = "removed"
	FileRenamed   FileStatus = "renamed"
	FileCopied    FileStatus = "copied"
	FileChanged   FileStatus = "changed"
	FileUnchanged FileStatus = "unchanged"
)

// FileChange is one file touched by a commit.
// Patch is nil for binary files or diffs the host elides.
type FileChange struct {
	Filename         string     `json:"filename" yaml:"filename"`
	Status           FileStatus `json:"status" yaml:"status"`
	Additions        int        `json:"additions" yaml:"additions"`
	Deletions        int        `json:"deletions" yaml:"deletions"`
	Changes          int        `json:"changes" yaml:"changes"`
	Patch            *string    `json:"patch,omitempty" yaml:"patch,omitempty"`
	PreviousFilename string     `json:"previousFilename,omitempty" yaml:"previous_filename,omitempty"`
}

// HasPatch reports whether the host returned a textual diff
func (f FileChange) HasPatch() bool {
	return f.Patch != nil
}

// CommitDetail is the expanded view of a single commit
type CommitDetail struct {
	SHA   string       `json:"sha"`
	Files []FileChange `json:"files"`
}

// ResolvedCommit is the most recent commit across all of an identity's repositories
type ResolvedCommit struct {
	Repository    string       `json:"repository" yaml:"repository"`
	CommitSHA     string       `json:"commitSha" yaml:"commit_sha"`
	CommitMessage string       `json:"commitMessage" yaml:"commit_message"`
	CommitDate    time.Time    `json:"commitDate" yaml:"commit_date"`
	CommitURL     string       `json:"commitUrl" yaml:"commit_url"`
	Files         []FileChange `json:"files" yaml:"files"`
}

// LastFile returns the last changed file, the one the summarizer reads
func (r *ResolvedCommit) LastFile() (FileChange, bool) {
	if r == nil || len(r.Files) == 0 {
		return FileChange{}, false
	}
	return r.Files[len(r.Files)-1], true
}
