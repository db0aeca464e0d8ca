package models

import (
	"math/big"
	"time"
)

// Post is the object pinned to IPFS for every published commit
type Post struct {
	UserName     string      `json:"userName" yaml:"user_name"`
	Email        string      `json:"email" yaml:"email"`
	Image        string      `json:"img" yaml:"img"`
	GithubCommit *PostCommit `json:"githubCommit" yaml:"github_commit"`
	CreatedAt    time.Time   `json:"createdAt" yaml:"created_at"`
}

// PostCommit is the commit section of a post
type PostCommit struct {
	Repository string       `json:"repository" yaml:"repository"`
	SHA        string       `json:"sha" yaml:"sha"`
	Message    string       `json:"message" yaml:"message"`
	Date       time.Time    `json:"date" yaml:"date"`
	URL        string       `json:"url" yaml:"url"`
	Files      []FileChange `json:"files" yaml:"files"`
	Summary    string       `json:"summary" yaml:"summary"`
}

// Author identifies who a post is published for
type Author struct {
	Name  string
	Email string
	Image string
}

// Pin is one row of the pinning service's pin list
type Pin struct {
	IPFSHash   string            `json:"ipfs_pin_hash"`
	Size       int64             `json:"size"`
	DatePinned time.Time         `json:"date_pinned"`
	Name       string            `json:"name"`
	KeyValues  map[string]string `json:"keyvalues"`
}

// PinResult is returned after pinning new content
type PinResult struct {
	IPFSHash  string    `json:"ipfsHash" yaml:"ipfs_hash"`
	UniqueID  string    `json:"uniqueId" yaml:"unique_id"`
	PinSize   int64     `json:"pinSize" yaml:"pin_size"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// FeedEntry is a decoded post together with its pin metadata
type FeedEntry struct {
	Post       Post      `json:"post" yaml:"post"`
	IPFSHash   string    `json:"ipfsHash" yaml:"ipfs_hash"`
	UniqueID   string    `json:"uniqueId,omitempty" yaml:"unique_id,omitempty"`
	DatePinned time.Time `json:"date" yaml:"date"`
}

// Receipt is the outcome of a mined streak transaction
type Receipt struct {
	TxHash      string   `json:"txHash" yaml:"tx_hash"`
	BlockNumber uint64   `json:"blockNumber" yaml:"block_number"`
	Success     bool     `json:"success" yaml:"success"`
	GasUsed     uint64   `json:"gasUsed" yaml:"gas_used"`
	StreakCount *big.Int `json:"streakCount,omitempty" yaml:"-"` // From the PostLogged event, nil if absent
}

// UserStreak is the contract's per-address state
type UserStreak struct {
	LastValidPostTime time.Time `json:"lastValidPostTime" yaml:"last_valid_post_time"`
	StreakCount       uint64    `json:"streakCount" yaml:"streak_count"`
}

// PostRecord is a published post in the local index
type PostRecord struct {
	UniqueID   string    `json:"unique_id" yaml:"unique_id" db:"unique_id"`
	IPFSHash   string    `json:"ipfs_hash" yaml:"ipfs_hash" db:"ipfs_hash"`
	Email      string    `json:"email" yaml:"email" db:"email"`
	Repository string    `json:"repository" yaml:"repository" db:"repository"`
	CommitSHA  string    `json:"commit_sha" yaml:"commit_sha" db:"commit_sha"`
	Summary    string    `json:"summary" yaml:"summary" db:"summary"`
	TxHash     string    `json:"tx_hash" yaml:"tx_hash" db:"tx_hash"`
	Streak     int64     `json:"streak" yaml:"streak" db:"streak"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at" db:"created_at"`
}

// PublishResult reports everything that happened while publishing a post
type PublishResult struct {
	Pin     PinResult `json:"pin" yaml:"pin"`
	Receipt *Receipt  `json:"receipt,omitempty" yaml:"receipt,omitempty"`
	Streak  uint64    `json:"streak" yaml:"streak"`
}
