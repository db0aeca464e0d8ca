package resolver

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sort"
	"strings"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxRepositories bounds how many repositories one call scans
	DefaultMaxRepositories = 100
	// DefaultConcurrency is the number of parallel latest-commit lookups
	DefaultConcurrency = 8
)

// Config holds resolver limits
type Config struct {
	MaxRepositories int
	Concurrency     int
}

// DefaultConfig returns the default resolver limits
func DefaultConfig() Config {
	return Config{
		MaxRepositories: DefaultMaxRepositories,
		Concurrency:     DefaultConcurrency,
	}
}

// Resolver finds the most recent commit, by author date, across every repository an identity owns.
// It holds no state between calls and is safe for concurrent use.
type Resolver struct {
	host   SourceHost
	config Config
	logger *slog.Logger
}

// New creates a Resolver over the given host
func New(host SourceHost, cfg Config) *Resolver {
	if cfg.MaxRepositories <= 0 {
		cfg.MaxRepositories = DefaultMaxRepositories
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Resolver{
		host:   host,
		config: cfg,
		logger: slog.Default().With("component", "resolver"),
	}
}

// candidate is one repository's latest commit, tagged with its listing position
type candidate struct {
	index  int
	repo   models.RepositoryRef
	commit *models.CommitSummary
}

// ScanStats summarizes one resolution call
type ScanStats struct {
	Repositories int
	Empty        int
	Failed       int
	Candidates   int
}

// ResolveLatestCommit returns the globally most recent commit for identity, with its file changes.
// Per-repository failures are skipped; identity, listing, rate limit and cancellation failures abort.
func (r *Resolver) ResolveLatestCommit(ctx context.Context, identity string, creds models.Credentials) (*models.ResolvedCommit, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, apperrors.InvalidArgument("identity is required")
	}
	if !creds.Valid() {
		return nil, apperrors.InvalidArgument("credentials are required")
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Cancelled(err)
	}

	account, err := r.host.FindAccountByIdentity(ctx, identity, creds)
	if err != nil {
		return nil, r.fatal(err, "find account")
	}
	logger := r.logger.With("account", account.Login)

	repos, err := r.listRepositories(ctx, *account, creds)
	if err != nil {
		return nil, r.fatal(err, "list repositories")
	}
	if len(repos) == 0 {
		return nil, apperrors.Newf(apperrors.KindNoRepositories, "account %s owns no repositories", account.Login)
	}

	candidates, stats, err := r.scan(ctx, *account, repos, creds)
	if err != nil {
		return nil, err
	}
	logger.Debug("repository scan complete",
		"repositories", stats.Repositories,
		"empty", stats.Empty,
		"failed", stats.Failed,
		"candidates", stats.Candidates,
	)

	ranked := rank(candidates)
	if len(ranked) == 0 {
		return nil, apperrors.Newf(apperrors.KindNoCommitsFound, "no commits found in %d repositories", len(repos)).
			WithContext("empty", stats.Empty).
			WithContext("failed", stats.Failed)
	}

	// Detail is fetched only for the current best. A per-repository failure drops it
	// and promotes the next-ranked candidate.
	for _, best := range ranked {
		detail, err := r.host.GetCommitDetail(ctx, *account, best.repo, best.commit.SHA, creds)
		if err != nil {
			if abortsScan(err) {
				return nil, r.fatal(err, "commit detail")
			}
			logger.Warn("commit detail failed, trying next candidate",
				"repo", best.repo.FullName(), "sha", best.commit.SHA, "error", err)
			continue
		}
		if ctx.Err() != nil {
			return nil, apperrors.Cancelled(ctx.Err())
		}
		if len(detail.Files) == 0 {
			return nil, apperrors.Newf(apperrors.KindNoFilesInCommit, "commit %s in %s has no file changes",
				best.commit.SHA, best.repo.Name)
		}
		return buildResult(best, detail), nil
	}

	return nil, apperrors.Newf(apperrors.KindNoCommitsFound, "commit detail unavailable for all %d candidates", len(ranked))
}

// listRepositories pages through the account's repositories up to MaxRepositories
func (r *Resolver) listRepositories(ctx context.Context, account models.AccountHandle, creds models.Credentials) ([]models.RepositoryRef, error) {
	var all []models.RepositoryRef
	page := 1
	for page != 0 && len(all) < r.config.MaxRepositories {
		repos, next, err := r.host.ListRepositories(ctx, account, creds, page)
		if err != nil {
			return nil, err
		}
		all = append(all, repos...)
		if next <= page {
			break
		}
		page = next
	}
	if len(all) > r.config.MaxRepositories {
		r.logger.Debug("repository list truncated", "account", account.Login, "listed", len(all), "max", r.config.MaxRepositories)
		all = all[:r.config.MaxRepositories]
	}
	return all, nil
}

// scan fetches every repository's latest commit in parallel.
// Each goroutine writes only its own slot, so the reduce that follows runs single-writer.
func (r *Resolver) scan(ctx context.Context, account models.AccountHandle, repos []models.RepositoryRef, creds models.Credentials) ([]candidate, ScanStats, error) {
	slots := make([]*models.CommitSummary, len(repos))
	failed := make([]bool, len(repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	for i, repo := range repos {
		g.Go(func() error {
			commit, err := r.host.GetMostRecentCommit(gctx, account, repo, creds)
			if err != nil {
				if abortsScan(err) {
					return err
				}
				r.logger.Warn("skipping repository", "repo", repo.FullName(), "kind", apperrors.KindOf(err).String(), "error", err)
				failed[i] = true
				return nil
			}
			slots[i] = commit
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ScanStats{}, apperrors.Cancelled(ctx.Err())
		}
		return nil, ScanStats{}, r.fatal(err, "scan repositories")
	}
	if ctx.Err() != nil {
		return nil, ScanStats{}, apperrors.Cancelled(ctx.Err())
	}

	stats := ScanStats{Repositories: len(repos)}
	var candidates []candidate
	for i, commit := range slots {
		switch {
		case failed[i]:
			stats.Failed++
		case commit == nil:
			stats.Empty++
		default:
			candidates = append(candidates, candidate{index: i, repo: repos[i], commit: commit})
		}
	}
	stats.Candidates = len(candidates)
	return candidates, stats, nil
}

// rank orders candidates newest first. Equal author dates keep listing order,
// so ranked[0] is exactly what a left fold with strict "more recent" replacement yields.
func rank(candidates []candidate) []candidate {
	ranked := make([]candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		ti, tj := ranked[i].commit.AuthorDate, ranked[j].commit.AuthorDate
		if ti.Equal(tj) {
			return ranked[i].index < ranked[j].index
		}
		return ti.After(tj)
	})
	return ranked
}

// abortsScan reports errors that apply to the whole call rather than one repository.
// A rejected credential fails every remaining repository the same way; a
// forbidden or missing repository does not.
func abortsScan(err error) bool {
	switch apperrors.KindOf(err) {
	case apperrors.KindCancelled, apperrors.KindRateLimited, apperrors.KindUnauthorized:
		return true
	}
	return false
}

// fatal normalizes an error that ends the call, keeping its kind
func (r *Resolver) fatal(err error, operation string) error {
	err = apperrors.FromContext(err)
	var e *apperrors.Error
	if stderrors.As(err, &e) {
		return err
	}
	return apperrors.Wrap(err, apperrors.KindExternal, operation)
}

func buildResult(best candidate, detail *models.CommitDetail) *models.ResolvedCommit {
	files := make([]models.FileChange, len(detail.Files))
	copy(files, detail.Files)
	return &models.ResolvedCommit{
		Repository:    best.repo.Name,
		CommitSHA:     best.commit.SHA,
		CommitMessage: best.commit.Message,
		CommitDate:    best.commit.AuthorDate,
		CommitURL:     best.commit.HTMLURL,
		Files:         files,
	}
}
