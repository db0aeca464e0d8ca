package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
	"github.com/sirupsen/logrus"
)

// SQLiteStore implements storage using SQLite (the local default)
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore creates a new SQLite storage
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.StorageError(err, "create database directory")
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, apperrors.StorageError(err, "connect to sqlite")
	}

	// WAL lets the feed read while a publish writes
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.StorageError(err, "init schema")
	}

	logger.WithField("path", path).Debug("sqlite post index opened")
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		unique_id TEXT PRIMARY KEY,
		ipfs_hash TEXT NOT NULL,
		email TEXT NOT NULL,
		repository TEXT,
		commit_sha TEXT,
		summary TEXT,
		tx_hash TEXT,
		streak INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_email ON posts(email, created_at);
	CREATE INDEX IF NOT EXISTS idx_posts_hash ON posts(ipfs_hash);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SavePost(ctx context.Context, post *models.PostRecord) error {
	if err := validateRecord(post); err != nil {
		return err
	}
	query := `
		INSERT OR REPLACE INTO posts
		(unique_id, ipfs_hash, email, repository, commit_sha, summary, tx_hash, streak, created_at)
		VALUES (:unique_id, :ipfs_hash, :email, :repository, :commit_sha, :summary, :tx_hash, :streak, :created_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, post); err != nil {
		return apperrors.StorageError(err, "save post")
	}
	return nil
}

func (s *SQLiteStore) GetPost(ctx context.Context, uniqueID string) (*models.PostRecord, error) {
	return s.getOne(ctx, `SELECT * FROM posts WHERE unique_id = ?`, uniqueID)
}

func (s *SQLiteStore) GetPostByHash(ctx context.Context, ipfsHash string) (*models.PostRecord, error) {
	return s.getOne(ctx, `SELECT * FROM posts WHERE ipfs_hash = ? ORDER BY created_at DESC LIMIT 1`, ipfsHash)
}

func (s *SQLiteStore) getOne(ctx context.Context, query string, arg string) (*models.PostRecord, error) {
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

func (s *SQLiteStore) ListPosts(ctx context.Context, email string, limit int) ([]*models.PostRecord, error) {
	var posts []*models.PostRecord
	var err error
	if email == "" {
		err = s.db.SelectContext(ctx, &posts,
			`SELECT * FROM posts ORDER BY created_at DESC LIMIT ?`, normalizeLimit(limit))
	} else {
		err = s.db.SelectContext(ctx, &posts,
			`SELECT * FROM posts WHERE email = ? ORDER BY created_at DESC LIMIT ?`, email, normalizeLimit(limit))
	}
	if err != nil {
		return nil, apperrors.StorageError(err, "list posts")
	}
	return posts, nil
}

func (s *SQLiteStore) DeletePost(ctx context.Context, uniqueID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE unique_id = ?`, uniqueID)
	if err != nil {
		return apperrors.StorageError(err, "delete post")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "post %s not found", uniqueID)
	}
	return nil
}
