package types

import "time"

// Post status labels. These double as the forum tag names mirrored on the
// thread, so they are compared case-insensitively wherever tags are synced.
const (
	StatusAvailable = "AVAILABLE"
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
)

// Exchange kinds
const (
	KindTrade   = "trade"
	KindGive    = "give"
	KindRequest = "request"
)

// ExchangePost is one forum listing. The thread ID is the identity; a post
// is never deleted, only deactivated when the exchange completes.
type ExchangePost struct {
	ThreadID     string `gorm:"primaryKey;size:64"`
	ChannelID    string `gorm:"size:64;index;not null"`
	GuildID      string `gorm:"size:64;index"`
	AuthorID     string `gorm:"size:64;index;not null"`
	Title        string `gorm:"size:255"`
	Kind         string `gorm:"size:16"` // trade, give, request
	Category     string `gorm:"size:64"`
	Status       string `gorm:"size:16;not null;default:AVAILABLE"`
	BumpCount    uint32 `gorm:"default:0"`
	Active       bool   `gorm:"default:true;index"`
	LastActivity time.Time
	CreatedAt    time.Time
}

// ConfirmedExchange records one completed exchange. Written exactly once
// per post, at the COMPLETED transition, and never updated.
type ConfirmedExchange struct {
	ID          uint64 `gorm:"primaryKey"`
	ThreadID    string `gorm:"size:64;uniqueIndex;not null"`
	GuildID     string `gorm:"size:64;index"`
	PosterID    string `gorm:"size:64;not null"`
	PosterName  string `gorm:"size:64"`
	PartnerID   string `gorm:"size:64"`
	PartnerName string `gorm:"size:64"`
	Item        string `gorm:"size:255"`
	Kind        string `gorm:"size:16"` // trade, give, request
	Category    string `gorm:"size:64"`
	ConfirmedAt time.Time
}

// PendingClaim is the ephemeral two-step claim token. The unique index on
// (author_id, channel_id) is what enforces one live claim per pair; rows
// for a pair are swept before a new insert so the index only ever covers
// the live claim.
type PendingClaim struct {
	ID        uint64 `gorm:"primaryKey"`
	AuthorID  string `gorm:"size:64;not null;uniqueIndex:idx_claim_pair"`
	ChannelID string `gorm:"size:64;not null;uniqueIndex:idx_claim_pair"`
	ThreadID  string `gorm:"size:64"`
	Processed bool   `gorm:"default:false"`
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}
