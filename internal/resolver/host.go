package resolver

import (
	"context"

	"github.com/rohankatakam/gitbuddy/internal/models"
)

// SourceHost is the read-only view of a source hosting platform the resolver needs.
// Implementations map their transport failures onto internal/errors kinds.
type SourceHost interface {
	// FindAccountByIdentity returns KindIdentityNotFound when no account matches
	FindAccountByIdentity(ctx context.Context, identity string, creds models.Credentials) (*models.AccountHandle, error)

	// ListRepositories returns one page of repositories and the next page number (0 when done).
	// Pages start at 1.
	ListRepositories(ctx context.Context, account models.AccountHandle, creds models.Credentials, page int) ([]models.RepositoryRef, int, error)

	// GetMostRecentCommit returns nil, nil for a repository without commits
	GetMostRecentCommit(ctx context.Context, account models.AccountHandle, repo models.RepositoryRef, creds models.Credentials) (*models.CommitSummary, error)

	GetCommitDetail(ctx context.Context, account models.AccountHandle, repo models.RepositoryRef, sha string, creds models.Credentials) (*models.CommitDetail, error)
}
