package post

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/ipfs"
	"github.com/rohankatakam/gitbuddy/internal/llm"
	"github.com/rohankatakam/gitbuddy/internal/models"
	"github.com/rohankatakam/gitbuddy/internal/storage"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultFeedLimit is the number of pins the feed lists
	DefaultFeedLimit = 20
	// feedConcurrency bounds gateway fetches in Feed
	feedConcurrency = 8
)

// CommitResolver finds the latest commit of an identity
type CommitResolver interface {
	ResolveLatestCommit(ctx context.Context, identity string, creds models.Credentials) (*models.ResolvedCommit, error)
}

// PinStore is the content-addressed store posts are published to
type PinStore interface {
	PinJSON(ctx context.Context, name string, content interface{}) (*models.PinResult, error)
	PinFile(ctx context.Context, filename string, r io.Reader) (*models.PinResult, error)
	ListPins(ctx context.Context, q ipfs.ListQuery) ([]models.Pin, error)
	Fetch(ctx context.Context, hash string, out interface{}) error
	GatewayURL(hash string) string
	DeleteByUniqueID(ctx context.Context, uid string) (string, error)
}

// StreakRecorder records a post on chain
type StreakRecorder interface {
	RecordPost(ctx context.Context) (*models.Receipt, error)
	GetStreak(ctx context.Context) (uint64, error)
}

// Service drafts, publishes and lists posts.
// Summarizer, index and chain are optional; a nil one skips its step.
type Service struct {
	resolver   CommitResolver
	summarizer llm.Summarizer
	pins       PinStore
	index      storage.Store
	chain      StreakRecorder
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithSummarizer sets the summarizer used by Draft
func WithSummarizer(s llm.Summarizer) Option {
	return func(svc *Service) { svc.summarizer = s }
}

// WithIndex records published posts in a local index
func WithIndex(store storage.Store) Option {
	return func(svc *Service) { svc.index = store }
}

// WithStreak records every published post on chain
func WithStreak(chain StreakRecorder) Option {
	return func(svc *Service) { svc.chain = chain }
}

// NewService creates a post service
func NewService(resolver CommitResolver, pins PinStore, opts ...Option) *Service {
	svc := &Service{
		resolver: resolver,
		pins:     pins,
		logger:   slog.Default().With("component", "post"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Draft resolves the author's latest commit and builds an unpublished post.
// The summary covers the last changed file; a failed summary leaves it empty.
func (s *Service) Draft(ctx context.Context, author models.Author, creds models.Credentials) (*models.Post, error) {
	if s.resolver == nil {
		return nil, apperrors.ConfigError("no commit resolver configured")
	}
	result, err := s.resolver.ResolveLatestCommit(ctx, author.Email, creds)
	if err != nil {
		return nil, err
	}

	commit := &models.PostCommit{
		Repository: result.Repository,
		SHA:        result.CommitSHA,
		Message:    result.CommitMessage,
		Date:       result.CommitDate,
		URL:        result.CommitURL,
		Files:      result.Files,
	}

	if file, ok := result.LastFile(); ok && s.summarizer != nil {
		summary, err := s.summarizer.Summarize(ctx, llm.SummaryRequest{
			Repository:    result.Repository,
			CommitSHA:     result.CommitSHA,
			CommitMessage: result.CommitMessage,
			File:          file,
		})
		switch {
		case err == nil:
			commit.Summary = summary
		case apperrors.KindOf(err) == apperrors.KindCancelled:
			return nil, err
		default:
			s.logger.Warn("summary failed, posting without one",
				"file", file.Filename,
				"error", err)
		}
	}

	name := author.Name
	if name == "" {
		name = author.Email
	}
	return &models.Post{
		UserName:     name,
		Email:        author.Email,
		Image:        author.Image,
		GithubCommit: commit,
		CreatedAt:    s.now().UTC(),
	}, nil
}

// UploadImage pins an avatar and returns its gateway URL
func (s *Service) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	pin, err := s.pins.PinFile(ctx, filename, r)
	if err != nil {
		return "", err
	}
	return s.pins.GatewayURL(pin.IPFSHash), nil
}

// Publish pins the post, indexes it and records it on chain.
// A pin or index failure returns before any transaction is sent. Once the
// post is pinned, errors come with the partial result.
func (s *Service) Publish(ctx context.Context, p *models.Post) (*models.PublishResult, error) {
	if p == nil || p.GithubCommit == nil {
		return nil, apperrors.InvalidArgument("post has no commit")
	}
	if p.Email == "" {
		return nil, apperrors.InvalidArgument("post has no author email")
	}

	pin, err := s.pins.PinJSON(ctx, pinName(p), p)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindOf(err), "store post")
	}
	s.logger.Info("post pinned", "hash", pin.IPFSHash, "unique_id", pin.UniqueID)

	result := &models.PublishResult{Pin: *pin}
	record := &models.PostRecord{
		UniqueID:   pin.UniqueID,
		IPFSHash:   pin.IPFSHash,
		Email:      p.Email,
		Repository: p.GithubCommit.Repository,
		CommitSHA:  p.GithubCommit.SHA,
		Summary:    p.GithubCommit.Summary,
		CreatedAt:  s.now().UTC(),
	}
	if s.index != nil {
		if err := s.index.SavePost(ctx, record); err != nil {
			// the pin exists; hand its hash back so it can be found or unpinned
			return result, apperrors.Wrap(err, apperrors.KindOf(err), "index post")
		}
	}

	if s.chain == nil {
		return result, nil
	}

	receipt, err := s.chain.RecordPost(ctx)
	if err != nil {
		return result, apperrors.Wrap(err, apperrors.KindOf(err), "record streak")
	}
	result.Receipt = receipt

	if receipt.StreakCount != nil && receipt.StreakCount.IsUint64() {
		result.Streak = receipt.StreakCount.Uint64()
	} else {
		streak, err := s.chain.GetStreak(ctx)
		if err != nil {
			return result, apperrors.Wrap(err, apperrors.KindOf(err), "read streak")
		}
		result.Streak = streak
	}

	if s.index != nil {
		record.TxHash = receipt.TxHash
		record.Streak = int64(result.Streak)
		if err := s.index.SavePost(ctx, record); err != nil {
			s.logger.Warn("failed to update indexed post", "unique_id", record.UniqueID, "error", err)
		}
	}
	return result, nil
}

// Feed lists pinned posts, newest first. Entries that cannot be fetched or
// decoded are dropped.
func (s *Service) Feed(ctx context.Context, limit int) ([]models.FeedEntry, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	pins, err := s.pins.ListPins(ctx, ipfs.ListQuery{Limit: limit})
	if err != nil {
		return nil, err
	}

	entries := make([]*models.FeedEntry, len(pins))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(feedConcurrency)
	for i, pin := range pins {
		g.Go(func() error {
			var p models.Post
			if err := s.pins.Fetch(gctx, pin.IPFSHash, &p); err != nil {
				if gctx.Err() != nil {
					return apperrors.Cancelled(gctx.Err())
				}
				s.logger.Debug("dropping feed entry", "hash", pin.IPFSHash, "error", err)
				return nil
			}
			if p.GithubCommit == nil {
				s.logger.Debug("dropping feed entry without commit", "hash", pin.IPFSHash)
				return nil
			}
			entries[i] = &models.FeedEntry{
				Post:       p,
				IPFSHash:   pin.IPFSHash,
				UniqueID:   pin.KeyValues["uniqueId"],
				DatePinned: pin.DatePinned,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	feed := make([]models.FeedEntry, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			feed = append(feed, *e)
		}
	}
	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].DatePinned.After(feed[j].DatePinned)
	})
	return feed, nil
}

// Show fetches one post by content hash
func (s *Service) Show(ctx context.Context, hash string) (*models.Post, error) {
	var p models.Post
	if err := s.pins.Fetch(ctx, strings.TrimSpace(hash), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete unpins the post tagged uid and drops it from the index.
// It returns the unpinned hash.
func (s *Service) Delete(ctx context.Context, uid string) (string, error) {
	hash, err := s.pins.DeleteByUniqueID(ctx, uid)
	if err != nil {
		return "", err
	}
	if s.index != nil {
		if err := s.index.DeletePost(ctx, uid); err != nil && apperrors.KindOf(err) != apperrors.KindNotFound {
			return hash, err
		}
	}
	return hash, nil
}

// History lists indexed posts of email, newest first
func (s *Service) History(ctx context.Context, email string, limit int) ([]*models.PostRecord, error) {
	if s.index == nil {
		return nil, apperrors.ConfigError("no local post index configured")
	}
	return s.index.ListPosts(ctx, email, limit)
}

func pinName(p *models.Post) string {
	sha := p.GithubCommit.SHA
	if len(sha) > 7 {
		sha = sha[:7]
	}
	return "gitbuddy-post-" + p.GithubCommit.Repository + "-" + sha
}
