package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swapboard/swapboard/src/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreatePost persists a freshly published forum listing.
func (s *Store) CreatePost(ctx context.Context, post *types.ExchangePost) error {
	if post.Status == "" {
		post.Status = types.StatusAvailable
	}
	post.Active = true
	if post.LastActivity.IsZero() {
		post.LastActivity = s.now()
	}
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("create post %s: %w", post.ThreadID, err)
	}
	return nil
}

// GetPost loads a post by its thread ID.
func (s *Store) GetPost(ctx context.Context, threadID string) (*types.ExchangePost, error) {
	var post types.ExchangePost
	err := s.db.WithContext(ctx).First(&post, "thread_id = ?", threadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// SetStatus persists a new status for an active post. Completion must go
// through CompletePost so the inactive flag and the exchange record land
// in the same transaction.
func (s *Store) SetStatus(ctx context.Context, threadID, status string) error {
	res := s.db.WithContext(ctx).Model(&types.ExchangePost{}).
		Where("thread_id = ? AND active = ?", threadID, true).
		Updates(map[string]interface{}{
			"status":        status,
			"last_activity": s.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missingOrInactive(s.db.WithContext(ctx), threadID)
	}
	return nil
}

// CompletePost freezes the post and writes the confirmed exchange record
// in a single transaction: either both land or neither does, so a failed
// record insert leaves the post open for a retry instead of completed
// with no record. The active guard in the WHERE clause makes a second
// completion report ErrPostInactive.
func (s *Store) CompletePost(ctx context.Context, threadID string, rec *types.ConfirmedExchange) (bool, error) {
	if rec.ConfirmedAt.IsZero() {
		rec.ConfirmedAt = s.now()
	}
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&types.ExchangePost{}).
			Where("thread_id = ? AND active = ?", threadID, true).
			Updates(map[string]interface{}{
				"status": types.StatusCompleted,
				"active": false,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return missingOrInactive(tx, threadID)
		}
		// The unique index on thread_id keeps the record exactly-once
		// even against a row left behind out of band.
		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
		if ins.Error != nil {
			return ins.Error
		}
		created = ins.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// TouchActivity resets the last-activity timestamp of an active post and
// reports whether a row was touched. It runs on every guild message, so
// an untracked or frozen thread is a plain false, with no follow-up
// lookup to tell the two apart.
func (s *Store) TouchActivity(ctx context.Context, threadID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&types.ExchangePost{}).
		Where("thread_id = ? AND active = ?", threadID, true).
		Update("last_activity", s.now())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IncrementBump bumps the counter and resets last-activity in one atomic
// SQL update, so concurrent sweeps never lose an increment.
func (s *Store) IncrementBump(ctx context.Context, threadID string) error {
	res := s.db.WithContext(ctx).Model(&types.ExchangePost{}).
		Where("thread_id = ? AND active = ?", threadID, true).
		Updates(map[string]interface{}{
			"bump_count":    gorm.Expr("bump_count + 1"),
			"last_activity": s.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missingOrInactive(s.db.WithContext(ctx), threadID)
	}
	return nil
}

// GetInactivePosts returns active posts whose last activity is older than
// daysInactive days.
func (s *Store) GetInactivePosts(ctx context.Context, daysInactive int) ([]types.ExchangePost, error) {
	cutoff := s.now().Add(-time.Duration(daysInactive) * 24 * time.Hour)
	var posts []types.ExchangePost
	err := s.db.WithContext(ctx).
		Where("active = ? AND last_activity < ?", true, cutoff).
		Order("last_activity ASC").
		Find(&posts).Error
	return posts, err
}

// ListActivePostsByAuthor returns the author's open posts in a channel,
// oldest first. Used by the claim workflow's post-selection step.
func (s *Store) ListActivePostsByAuthor(ctx context.Context, authorID, channelID string) ([]types.ExchangePost, error) {
	var posts []types.ExchangePost
	err := s.db.WithContext(ctx).
		Where("author_id = ? AND channel_id = ? AND active = ?", authorID, channelID, true).
		Order("created_at ASC").
		Find(&posts).Error
	return posts, err
}

// ListConfirmedExchanges returns completed exchanges for a guild, newest
// first.
func (s *Store) ListConfirmedExchanges(ctx context.Context, guildID string, limit int) ([]types.ConfirmedExchange, error) {
	q := s.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("confirmed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []types.ConfirmedExchange
	err := q.Find(&recs).Error
	return recs, err
}

// CountConfirmedExchanges returns the number of completed exchanges for a
// guild.
func (s *Store) CountConfirmedExchanges(ctx context.Context, guildID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&types.ConfirmedExchange{}).
		Where("guild_id = ?", guildID).
		Count(&n).Error
	return n, err
}

// missingOrInactive distinguishes a thread that was never tracked from a
// frozen one, for mutations whose callers surface different messages.
func missingOrInactive(db *gorm.DB, threadID string) error {
	var n int64
	if err := db.Model(&types.ExchangePost{}).
		Where("thread_id = ?", threadID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrPostInactive
}
