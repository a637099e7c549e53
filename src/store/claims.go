package store

import (
	"context"
	"errors"
	"time"

	"github.com/swapboard/swapboard/src/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateClaim inserts a pending claim. The unique (author, channel) index
// rejects a second live claim for the pair; the conflict is detected by
// the insert itself, so two near-simultaneous creations cannot both pass.
func (s *Store) CreateClaim(ctx context.Context, claim *types.PendingClaim) error {
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = s.now()
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(claim)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateClaim
	}
	return nil
}

// GetClaim returns the live claim for the pair: not processed and not yet
// expired. Anything else is ErrNotFound.
func (s *Store) GetClaim(ctx context.Context, authorID, channelID string) (*types.PendingClaim, error) {
	var claim types.PendingClaim
	err := s.db.WithContext(ctx).
		Where("author_id = ? AND channel_id = ? AND processed = ? AND expires_at > ?",
			authorID, channelID, false, s.now()).
		First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// MarkClaimProcessed flips the processed flag. The flag in the WHERE
// clause is the idempotency guard: a concurrent second resolution sees
// zero rows and reports ErrNotFound.
func (s *Store) MarkClaimProcessed(ctx context.Context, id uint64) error {
	res := s.db.WithContext(ctx).Model(&types.PendingClaim{}).
		Where("id = ? AND processed = ?", id, false).
		Update("processed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SweepClaims deletes processed or expired claims and returns how many
// rows went away.
func (s *Store) SweepClaims(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("processed = ? OR expires_at <= ?", true, s.now()).
		Delete(&types.PendingClaim{})
	return res.RowsAffected, res.Error
}

// SweepClaimPair clears processed or expired claims for one pair so a new
// claim can take the unique slot.
func (s *Store) SweepClaimPair(ctx context.Context, authorID, channelID string) error {
	return s.db.WithContext(ctx).
		Where("author_id = ? AND channel_id = ? AND (processed = ? OR expires_at <= ?)",
			authorID, channelID, true, s.now()).
		Delete(&types.PendingClaim{}).Error
}

// ClaimTTL computes an expiry from the store clock.
func (s *Store) ClaimTTL(ttl time.Duration) time.Time {
	return s.now().Add(ttl)
}
