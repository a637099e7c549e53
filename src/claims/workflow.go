package claims

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/swapboard/swapboard/src/lifecycle"
	"github.com/swapboard/swapboard/src/store"
	"github.com/swapboard/swapboard/src/types"
)

// ErrExpired reports a resolution attempt with no live claim: either none
// was created or its deadline passed. Expired claims are cancelled, never
// resumed.
var ErrExpired = errors.New("claims: claim missing or expired")

// ErrConflict reports a second claim for a pair that already has a live
// one.
var ErrConflict = store.ErrDuplicateClaim

// DefaultTTL bounds how long a claim may sit between partner selection and
// post selection.
const DefaultTTL = 5 * time.Minute

// Workflow drives the two-step claim-to-fulfillment sequence. Step one
// records the pending claim; step two, a later independent interaction,
// resolves it into a completed exchange.
type Workflow struct {
	store       *store.Store
	coordinator *lifecycle.Coordinator
	ttl         time.Duration
}

func New(st *store.Store, coordinator *lifecycle.Coordinator, ttl time.Duration) *Workflow {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Workflow{store: st, coordinator: coordinator, ttl: ttl}
}

// Create opens a claim for the (author, channel) pair. Leftover processed
// or expired rows for the pair are swept first so the unique index only
// guards the live claim; a live duplicate is ErrConflict.
func (w *Workflow) Create(ctx context.Context, authorID, channelID, threadID string) (*types.PendingClaim, error) {
	if err := w.store.SweepClaimPair(ctx, authorID, channelID); err != nil {
		return nil, err
	}
	claim := &types.PendingClaim{
		AuthorID:  authorID,
		ChannelID: channelID,
		ThreadID:  threadID,
		ExpiresAt: w.store.ClaimTTL(w.ttl),
	}
	if err := w.store.CreateClaim(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// Fulfillment names the post being completed and the counterparty.
type Fulfillment struct {
	ThreadID    string
	PosterName  string
	PartnerID   string
	PartnerName string
	Kind        string
}

// Resolve consumes the pair's live claim and completes the chosen post.
// The claim is marked processed even when the post turned out to be
// already completed, so it cannot be replayed.
func (w *Workflow) Resolve(ctx context.Context, authorID, channelID string, f Fulfillment) error {
	claim, err := w.store.GetClaim(ctx, authorID, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrExpired
		}
		return err
	}

	threadID := f.ThreadID
	if threadID == "" {
		threadID = claim.ThreadID
	}

	transitionErr := w.coordinator.TransitionToCompleted(ctx, threadID, &lifecycle.Completion{
		PosterName:  f.PosterName,
		PartnerID:   f.PartnerID,
		PartnerName: f.PartnerName,
		Kind:        f.Kind,
	})
	if transitionErr != nil && !errors.Is(transitionErr, lifecycle.ErrAlreadyTerminal) {
		return transitionErr
	}

	if err := w.store.MarkClaimProcessed(ctx, claim.ID); err != nil {
		// A concurrent resolution already consumed it; the transition
		// guard kept the outcome single-shot either way.
		log.Printf("claims: mark claim %d processed: %v", claim.ID, err)
	}
	return transitionErr
}

// Sweep removes processed or expired claims to bound table growth.
func (w *Workflow) Sweep(ctx context.Context) (int64, error) {
	return w.store.SweepClaims(ctx)
}
