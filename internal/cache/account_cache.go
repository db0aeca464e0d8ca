package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
	bolt "go.etcd.io/bbolt"
)

const (
	accountsBucket = "accounts"

	// DefaultAccountTTL is how long an identity lookup stays valid
	DefaultAccountTTL = 24 * time.Hour
)

// accountEntry is the JSON value stored per identity
type accountEntry struct {
	Account   models.AccountHandle `json:"account"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// AccountCache persists identity → account lookups in a bbolt file
type AccountCache struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

// OpenAccountCache opens (or creates) the cache file at path
func OpenAccountCache(path string, ttl time.Duration) (*AccountCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.StorageError(err, "create cache directory")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, apperrors.StorageError(err, "open account cache "+path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(accountsBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, apperrors.StorageError(err, "create accounts bucket")
	}

	if ttl <= 0 {
		ttl = DefaultAccountTTL
	}
	return &AccountCache{db: db, ttl: ttl, now: time.Now}, nil
}

// Close closes the underlying bbolt file
func (c *AccountCache) Close() error {
	return c.db.Close()
}

// identity keys are case-insensitive, as email addresses are
func cacheKey(identity string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(identity)))
}

// Get returns the cached account, or false on a miss or an expired entry
func (c *AccountCache) Get(identity string) (*models.AccountHandle, bool, error) {
	var entry *accountEntry
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(accountsBucket)).Get(cacheKey(identity))
		if data == nil {
			return nil
		}
		var e accountEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		entry = &e
		return nil
	})
	if err != nil {
		return nil, false, apperrors.StorageError(err, "read account cache")
	}
	if entry == nil || !c.now().Before(entry.ExpiresAt) {
		return nil, false, nil
	}
	account := entry.Account
	return &account, true, nil
}

// Put stores account under identity for the cache TTL
func (c *AccountCache) Put(identity string, account models.AccountHandle) error {
	data, err := json.Marshal(accountEntry{Account: account, ExpiresAt: c.now().Add(c.ttl)})
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "encode account entry")
	}
	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(accountsBucket)).Put(cacheKey(identity), data)
	})
	if err != nil {
		return apperrors.StorageError(err, "write account cache")
	}
	return nil
}

// Invalidate drops identity from the cache
func (c *AccountCache) Invalidate(identity string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(accountsBucket)).Delete(cacheKey(identity))
	})
	if err != nil {
		return apperrors.StorageError(err, "delete account cache entry")
	}
	return nil
}

// Prune removes expired entries and returns how many were dropped
func (c *AccountCache) Prune() (int, error) {
	now := c.now()
	removed := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(accountsBucket))
		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var e accountEntry
			if json.Unmarshal(v, &e) != nil || !now.Before(e.ExpiresAt) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, apperrors.StorageError(err, "prune account cache")
	}
	return removed, nil
}
