package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
	"github.com/sirupsen/logrus"
)

// PostgresStore implements storage using PostgreSQL, for a shared team index
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, apperrors.StorageError(err, "connect to postgres")
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{
		db:     db,
		logger: logger,
	}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.StorageError(err, "init schema")
	}

	logger.Debug("postgres post index connected")
	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		unique_id TEXT PRIMARY KEY,
		ipfs_hash TEXT NOT NULL,
		email TEXT NOT NULL,
		repository TEXT NOT NULL DEFAULT '',
		commit_sha TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		tx_hash TEXT NOT NULL DEFAULT '',
		streak BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_email ON posts(email, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_hash ON posts(ipfs_hash);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) SavePost(ctx context.Context, post *models.PostRecord) error {
	if err := validateRecord(post); err != nil {
		return err
	}
	query := `
		INSERT INTO posts (unique_id, ipfs_hash, email, repository, commit_sha, summary, tx_hash, streak, created_at)
		VALUES (:unique_id, :ipfs_hash, :email, :repository, :commit_sha, :summary, :tx_hash, :streak, :created_at)
		ON CONFLICT (unique_id) DO UPDATE SET
			ipfs_hash = EXCLUDED.ipfs_hash,
			summary = EXCLUDED.summary,
			tx_hash = EXCLUDED.tx_hash,
			streak = EXCLUDED.streak
	`
	if _, err := s.db.NamedExecContext(ctx, query, post); err != nil {
		return apperrors.StorageError(err, "save post")
	}
	return nil
}

func (s *PostgresStore) GetPost(ctx context.Context, uniqueID string) (*models.PostRecord, error) {
	return s.getOne(ctx, `SELECT * FROM posts WHERE unique_id = $1`, uniqueID)
}

func (s *PostgresStore) GetPostByHash(ctx context.Context, ipfsHash string) (*models.PostRecord, error) {
	return s.getOne(ctx, `SELECT * FROM posts WHERE ipfs_hash = $1 ORDER BY created_at DESC LIMIT 1`, ipfsHash)
}

func (s *PostgresStore) getOne(ctx context.Context, query string, arg string) (*models.PostRecord, error) {
	var post models.PostRecord
	err := s.db.GetContext(ctx, &post, query, arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.Newf(apperrors.KindNotFound, "post %s not found", arg)
		}
		return nil, apperrors.StorageError(err, "get post")
	}
	return &post, nil
}

func (s *PostgresStore) ListPosts(ctx context.Context, email string, limit int) ([]*models.PostRecord, error) {
	var posts []*models.PostRecord
	var err error
	if email == "" {
		err = s.db.SelectContext(ctx, &posts,
			`SELECT * FROM posts ORDER BY created_at DESC LIMIT $1`, normalizeLimit(limit))
	} else {
		err = s.db.SelectContext(ctx, &posts,
			`SELECT * FROM posts WHERE email = $1 ORDER BY created_at DESC LIMIT $2`, email, normalizeLimit(limit))
	}
	if err != nil {
		return nil, apperrors.StorageError(err, "list posts")
	}
	return posts, nil
}

func (s *PostgresStore) DeletePost(ctx context.Context, uniqueID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE unique_id = $1`, uniqueID)
	if err != nil {
		return apperrors.StorageError(err, "delete post")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "post %s not found", uniqueID)
	}
	return nil
}
