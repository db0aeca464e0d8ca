package prompts

import (
	"fmt"
	"strings"
)

// MaxPatchBytes bounds how much of a diff is sent to the model
const MaxPatchBytes = 8000

// CommitSummarySystem is the system prompt for single-file commit summaries
const CommitSummarySystem = `You are a senior engineer writing a one-paragraph summary of a code change for a developer social feed.

RULES:
- Focus on the high-level purpose of the change, not line-by-line details
- Two or three sentences, plain text, no markdown headings or bullet lists
- Never invent behavior that the diff does not show
- If the diff is missing (binary or very large file), summarize from the file name and counts`

// CommitSummaryInput is the data rendered into CommitSummaryUser
type CommitSummaryInput struct {
	Repository    string
	CommitMessage string
	Filename      string
	Status        string
	Additions     int
	Deletions     int
	Patch         string
	HasPatch      bool
}

// CommitSummaryUser renders the user prompt for one changed file
func CommitSummaryUser(in CommitSummaryInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following GitHub commit change concisely.\n\n")
	if in.Repository != "" {
		fmt.Fprintf(&b, "Repository: %s\n", in.Repository)
	}
	if in.CommitMessage != "" {
		fmt.Fprintf(&b, "Commit message: %s\n", firstLine(in.CommitMessage))
	}
	fmt.Fprintf(&b, "File: %s (%s, +%d -%d)\n\n", in.Filename, in.Status, in.Additions, in.Deletions)

	if in.HasPatch {
		patch, truncated := truncate(in.Patch, MaxPatchBytes)
		b.WriteString("Diff:\n```diff\n")
		b.WriteString(patch)
		if truncated {
			b.WriteString("\n... (diff truncated)")
		}
		b.WriteString("\n```\n\n")
	} else {
		b.WriteString("No diff is available for this file.\n\n")
	}

	b.WriteString("Provide a clear, succinct summary that would help a developer understand the change quickly.")
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
