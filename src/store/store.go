package store

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrNotFound means no matching post or claim exists.
	ErrNotFound = errors.New("store: not found")
	// ErrPostInactive means the post is already completed; inactive posts
	// are frozen and refuse every mutation.
	ErrPostInactive = errors.New("store: post inactive")
	// ErrDuplicateClaim means a live claim already exists for the
	// (author, channel) pair. Enforced by the unique index, not by a
	// lookup-then-insert check.
	ErrDuplicateClaim = errors.New("store: duplicate pending claim")
)

// Store is the persistence layer for exchange posts, confirmed exchanges
// and pending claims.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a Store on top of an open gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB exposes the underlying connection for callers that share it.
func (s *Store) DB() *gorm.DB { return s.db }
