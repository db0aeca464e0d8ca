package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rohankatakam/gitbuddy/internal/models"
)

const dateLayout = "2006-01-02 15:04 MST"

// TextFormatter outputs colored, human-readable text
type TextFormatter struct {
	// ShowPatches prints each file's diff below its stat line
	ShowPatches bool
}

func (f *TextFormatter) FormatCommit(w io.Writer, commit *models.ResolvedCommit) error {
	bold := color.New(color.Bold)
	yellow := color.New(color.FgYellow)

	bold.Fprintf(w, "Latest commit in %s\n", commit.Repository)
	yellow.Fprintf(w, "commit %s\n", commit.CommitSHA)
	fmt.Fprintf(w, "Date:   %s\n", commit.CommitDate.Local().Format(dateLayout))
	if commit.CommitURL != "" {
		fmt.Fprintf(w, "URL:    %s\n", commit.CommitURL)
	}
	fmt.Fprintf(w, "\n    %s\n\n", indentMessage(commit.CommitMessage))

	f.writeFiles(w, commit.Files)
	return nil
}

func (f *TextFormatter) writeFiles(w io.Writer, files []models.FileChange) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	fmt.Fprintf(w, "Files changed: %d\n", len(files))
	for _, file := range files {
		name := file.Filename
		if file.PreviousFilename != "" {
			name = file.PreviousFilename + " -> " + file.Filename
		}
		fmt.Fprintf(w, "  %s %s ", statusMark(file.Status), name)
		green.Fprintf(w, "+%d", file.Additions)
		fmt.Fprint(w, " ")
		red.Fprintf(w, "-%d", file.Deletions)
		fmt.Fprintln(w)

		if f.ShowPatches && file.HasPatch() {
			writePatch(w, *file.Patch)
		}
	}
}

func writePatch(w io.Writer, patch string) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			cyan.Fprintf(w, "      %s\n", line)
		case strings.HasPrefix(line, "+"):
			green.Fprintf(w, "      %s\n", line)
		case strings.HasPrefix(line, "-"):
			red.Fprintf(w, "      %s\n", line)
		default:
			fmt.Fprintf(w, "      %s\n", line)
		}
	}
}

func (f *TextFormatter) FormatPost(w io.Writer, post *models.Post) error {
	bold := color.New(color.Bold)

	bold.Fprintf(w, "%s", post.UserName)
	if post.Email != "" && post.Email != post.UserName {
		fmt.Fprintf(w, " <%s>", post.Email)
	}
	fmt.Fprintln(w)
	if c := post.GithubCommit; c != nil {
		fmt.Fprintf(w, "%s @ %s\n", c.Repository, shortSHA(c.SHA))
		fmt.Fprintf(w, "%s\n", firstLine(c.Message))
		if c.Summary != "" {
			color.New(color.FgCyan).Fprintf(w, "\n%s\n", c.Summary)
		}
		fmt.Fprintln(w)
		f.writeFiles(w, c.Files)
	}
	return nil
}

func (f *TextFormatter) FormatPublish(w io.Writer, result *models.PublishResult) error {
	green := color.New(color.FgGreen)

	green.Fprintf(w, "Posted!\n")
	fmt.Fprintf(w, "IPFS hash: %s\n", result.Pin.IPFSHash)
	fmt.Fprintf(w, "Unique ID: %s\n", result.Pin.UniqueID)
	if result.Receipt != nil {
		fmt.Fprintf(w, "Tx:        %s (block %d)\n", result.Receipt.TxHash, result.Receipt.BlockNumber)
		color.New(color.FgYellow, color.Bold).Fprintf(w, "Streak:    %d\n", result.Streak)
	}
	return nil
}

func (f *TextFormatter) FormatFeed(w io.Writer, feed []models.FeedEntry) error {
	if len(feed) == 0 {
		fmt.Fprintln(w, "No posts yet.")
		return nil
	}
	yellow := color.New(color.FgYellow)
	faint := color.New(color.Faint)

	for i, entry := range feed {
		if i > 0 {
			fmt.Fprintln(w)
		}
		yellow.Fprintf(w, "%s", entry.IPFSHash)
		faint.Fprintf(w, "  %s\n", entry.DatePinned.Local().Format(dateLayout))
		c := entry.Post.GithubCommit
		fmt.Fprintf(w, "%s  %s @ %s\n", entry.Post.UserName, c.Repository, shortSHA(c.SHA))
		fmt.Fprintf(w, "    %s\n", firstLine(c.Message))
		if c.Summary != "" {
			fmt.Fprintf(w, "    %s\n", c.Summary)
		}
	}
	return nil
}

func (f *TextFormatter) FormatHistory(w io.Writer, records []*models.PostRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No posts recorded locally.")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(w, "%s  %-20s %s@%s  streak %d\n",
			r.CreatedAt.Local().Format(dateLayout),
			r.UniqueID,
			r.Repository,
			shortSHA(r.CommitSHA),
			r.Streak,
		)
	}
	return nil
}

func (f *TextFormatter) FormatStreak(w io.Writer, streak StreakView) error {
	bold := color.New(color.FgYellow, color.Bold)

	if streak.Address != "" {
		fmt.Fprintf(w, "Account: %s\n", streak.Address)
	}
	bold.Fprintf(w, "Streak:  %d day%s\n", streak.StreakCount, plural(streak.StreakCount))
	if !streak.LastValidPostTime.IsZero() {
		fmt.Fprintf(w, "Last post: %s (%s ago)\n",
			streak.LastValidPostTime.Local().Format(dateLayout),
			time.Since(streak.LastValidPostTime).Round(time.Minute))
	}
	return nil
}

func statusMark(s models.FileStatus) string {
	switch s {
	case models.FileAdded:
		return color.GreenString("A")
	case models.FileRemoved:
		return color.RedString("D")
	case models.FileRenamed:
		return color.CyanString("R")
	case models.FileCopied:
		return color.CyanString("C")
	default:
		return color.YellowString("M")
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func firstLine(msg string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(msg), "\n")
	return line
}

func indentMessage(msg string) string {
	return strings.ReplaceAll(strings.TrimSpace(msg), "\n", "\n    ")
}

func plural(n uint64) string {
	if n == 1 {
		return ""
	}
	return "s"
}
