package storage

import (
	"context"
	"strings"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
	"github.com/sirupsen/logrus"
)

// Common errors
var (
	ErrNotFound = apperrors.ErrNotFound
)

// DefaultListLimit caps ListPosts when no limit is given
const DefaultListLimit = 50

// Store is the local index of published posts
type Store interface {
	// SavePost inserts or replaces the record keyed by UniqueID
	SavePost(ctx context.Context, post *models.PostRecord) error
	GetPost(ctx context.Context, uniqueID string) (*models.PostRecord, error)
	GetPostByHash(ctx context.Context, ipfsHash string) (*models.PostRecord, error)
	// ListPosts returns newest first; an empty email lists every author
	ListPosts(ctx context.Context, email string, limit int) ([]*models.PostRecord, error)
	DeletePost(ctx context.Context, uniqueID string) error

	// Close connection
	Close() error
}

// Config selects a backend
type Config struct {
	Type        string // "sqlite" (default) or "postgres"
	SQLitePath  string
	PostgresDSN string
}

// Open creates the configured store
func Open(cfg Config, logger *logrus.Logger) (Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite", "local":
		if cfg.SQLitePath == "" {
			return nil, apperrors.ConfigError("sqlite path is required")
		}
		return NewSQLiteStore(cfg.SQLitePath, logger)
	case "postgres", "postgresql":
		if cfg.PostgresDSN == "" {
			return nil, apperrors.ConfigError("postgres dsn is required: set POSTGRES_DSN")
		}
		return NewPostgresStore(cfg.PostgresDSN, logger)
	default:
		return nil, apperrors.ConfigErrorf("unknown storage type %q", cfg.Type)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func validateRecord(post *models.PostRecord) error {
	if post == nil || post.UniqueID == "" || post.IPFSHash == "" {
		return apperrors.InvalidArgument("post record needs a unique id and an ipfs hash")
	}
	return nil
}
