package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultRateLimit is the client-side request budget, in requests per second
	DefaultRateLimit = 10
	// DefaultPageSize is the repository listing page size
	DefaultPageSize = 100
)

// Options configures a Client
type Options struct {
	// BaseURL overrides the API endpoint, e.g. for GitHub Enterprise or tests
	BaseURL    string
	HTTPClient *http.Client
	RateLimit  float64
	PageSize   int
}

// Client implements resolver.SourceHost against the GitHub REST API.
// Credentials travel with each call, so one Client serves many users.
type Client struct {
	base        *github.Client
	rateLimiter *rate.Limiter
	pageSize    int
}

// NewClient creates a new GitHub client with rate limiting
func NewClient(opts Options) (*Client, error) {
	base := github.NewClient(opts.HTTPClient)
	if opts.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, apperrors.ConfigErrorf("invalid github base url %q: %v", opts.BaseURL, err)
		}
		base.BaseURL = u
	}

	limit := opts.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = DefaultPageSize
	}

	return &Client{
		base:        base,
		rateLimiter: rate.NewLimiter(rate.Limit(limit), 1),
		pageSize:    pageSize,
	}, nil
}

func (c *Client) clientFor(creds models.Credentials) *github.Client {
	return c.base.WithAuthToken(creds.Token)
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return apperrors.Cancelled(ctx.Err())
		}
		return apperrors.Wrap(err, apperrors.KindInternal, "rate limiter")
	}
	return nil
}

// FindAccountByIdentity resolves an email through user search. An identity without "@"
// is treated as a login and looked up directly.
func (c *Client) FindAccountByIdentity(ctx context.Context, identity string, creds models.Credentials) (*models.AccountHandle, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	gh := c.clientFor(creds)

	if !strings.Contains(identity, "@") {
		user, _, err := gh.Users.Get(ctx, identity)
		if err != nil {
			if isStatus(err, http.StatusNotFound) {
				return nil, apperrors.Newf(apperrors.KindIdentityNotFound, "no github account with login %s", identity)
			}
			return nil, mapError(err, "get user")
		}
		return &models.AccountHandle{Login: user.GetLogin(), ID: user.GetID()}, nil
	}

	result, _, err := gh.Search.Users(ctx, identity+" in:email", &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, mapError(err, "search users")
	}
	if result.GetTotal() == 0 || len(result.Users) == 0 {
		return nil, apperrors.Newf(apperrors.KindIdentityNotFound, "no github account found for %s", identity)
	}

	user := result.Users[0]
	return &models.AccountHandle{Login: user.GetLogin(), ID: user.GetID()}, nil
}

// ListRepositories lists repositories the account owns, most recently updated first
func (c *Client) ListRepositories(ctx context.Context, account models.AccountHandle, creds models.Credentials, page int) ([]models.RepositoryRef, int, error) {
	if page < 1 {
		page = 1
	}
	if err := c.wait(ctx); err != nil {
		return nil, 0, err
	}

	repos, resp, err := c.clientFor(creds).Repositories.ListByUser(ctx, account.Login, &github.RepositoryListByUserOptions{
		Type:      "owner",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: c.pageSize,
		},
	})
	if err != nil {
		return nil, 0, mapError(err, "list repositories")
	}

	refs := make([]models.RepositoryRef, 0, len(repos))
	for _, repo := range repos {
		ref := models.RepositoryRef{
			Owner: repo.GetOwner().GetLogin(),
			Name:  repo.GetName(),
		}
		if ref.Owner == "" {
			ref.Owner = account.Login
		}
		if repo.PushedAt != nil {
			t := repo.PushedAt.Time
			ref.LastActivityHint = &t
		}
		refs = append(refs, ref)
	}

	return refs, resp.NextPage, nil
}

// GetMostRecentCommit returns the head of the default branch, or nil for an empty repository
func (c *Client) GetMostRecentCommit(ctx context.Context, account models.AccountHandle, repo models.RepositoryRef, creds models.Credentials) (*models.CommitSummary, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	commits, _, err := c.clientFor(creds).Repositories.ListCommits(ctx, ownerOf(account, repo), repo.Name, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		// GitHub answers 409 Conflict for a repository with no commits
		if isStatus(err, http.StatusConflict) {
			return nil, nil
		}
		return nil, mapError(err, fmt.Sprintf("list commits %s", repo.FullName()))
	}
	if len(commits) == 0 {
		return nil, nil
	}

	commit := commits[0]
	return &models.CommitSummary{
		SHA:        commit.GetSHA(),
		Message:    commit.GetCommit().GetMessage(),
		AuthorDate: commit.GetCommit().GetAuthor().GetDate().Time,
		HTMLURL:    commit.GetHTMLURL(),
		DetailURL:  commit.GetURL(),
	}, nil
}

// GetCommitDetail fetches the file changes of one commit
func (c *Client) GetCommitDetail(ctx context.Context, account models.AccountHandle, repo models.RepositoryRef, sha string, creds models.Credentials) (*models.CommitDetail, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	commit, _, err := c.clientFor(creds).Repositories.GetCommit(ctx, ownerOf(account, repo), repo.Name, sha, nil)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("get commit %s@%s", repo.FullName(), sha))
	}

	detail := &models.CommitDetail{SHA: commit.GetSHA()}
	for _, f := range commit.Files {
		change := models.FileChange{
			Filename:         f.GetFilename(),
			Status:           models.FileStatus(f.GetStatus()),
			Additions:        f.GetAdditions(),
			Deletions:        f.GetDeletions(),
			Changes:          f.GetChanges(),
			PreviousFilename: f.GetPreviousFilename(),
		}
		// Binary and oversized diffs come back without a patch
		if f.Patch != nil {
			patch := *f.Patch
			change.Patch = &patch
		}
		detail.Files = append(detail.Files, change)
	}

	return detail, nil
}

func ownerOf(account models.AccountHandle, repo models.RepositoryRef) string {
	if repo.Owner != "" {
		return repo.Owner
	}
	return account.Login
}
