package claims

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"github.com/swapboard/swapboard/src/lifecycle"
	"github.com/swapboard/swapboard/src/store"
	"github.com/swapboard/swapboard/src/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// nopForum satisfies the gateway surface; the workflow tests only care
// about persisted state.
type nopForum struct{}

func (nopForum) Thread(threadID string) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: threadID, ParentID: "chan-1"}, nil
}
func (nopForum) LeadMessage(threadID string) (*discordgo.Message, error) {
	return &discordgo.Message{ID: threadID, ChannelID: threadID, Embeds: []*discordgo.MessageEmbed{
		{Fields: []*discordgo.MessageEmbedField{{Name: "Status", Value: "Available"}}},
	}}, nil
}
func (nopForum) EditMessage(string, string, []*discordgo.MessageEmbed, []discordgo.MessageComponent) error {
	return nil
}
func (nopForum) StartThread(string, string, *discordgo.MessageSend, []string) (string, error) {
	return "thread-1", nil
}
func (nopForum) AvailableTags(string) ([]discordgo.ForumTag, error) { return nil, nil }
func (nopForum) SetAppliedTags(string, []string) error              { return nil }
func (nopForum) LockThread(string) error                            { return nil }
func (nopForum) ArchiveThread(string) error                         { return nil }
func (nopForum) PostMessage(string, string) error                   { return nil }

type fixture struct {
	workflow *Workflow
	store    *store.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.ExchangePost{},
		&types.ConfirmedExchange{},
		&types.PendingClaim{},
	))
	st := store.New(db)
	coordinator := lifecycle.New(st, nopForum{})
	return &fixture{
		workflow: New(st, coordinator, 5*time.Minute),
		store:    st,
	}
}

func (f *fixture) seedPost(t *testing.T, threadID string) {
	t.Helper()
	require.NoError(t, f.store.CreatePost(context.Background(), &types.ExchangePost{
		ThreadID:  threadID,
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		AuthorID:  "100",
		Title:     "winter tires",
	}))
}

func TestClaimCreateResolve(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seedPost(t, "t1")

	claim, err := f.workflow.Create(ctx, "100", "chan-1", "t1")
	require.NoError(t, err)
	require.False(t, claim.Processed)

	// A second claim before resolution is a conflict.
	_, err = f.workflow.Create(ctx, "100", "chan-1", "t1")
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, f.workflow.Resolve(ctx, "100", "chan-1", Fulfillment{
		ThreadID:    "t1",
		PosterName:  "Alice",
		PartnerID:   "200",
		PartnerName: "Bob",
		Kind:        types.KindTrade,
	}))

	post, err := f.store.GetPost(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, types.StatusCompleted, post.Status)
	require.False(t, post.Active)

	recs, err := f.store.ListConfirmedExchanges(ctx, "guild-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "200", recs[0].PartnerID)
	require.Equal(t, types.KindTrade, recs[0].Kind)

	// The claim was consumed; resolving again reports expiry.
	require.ErrorIs(t, f.workflow.Resolve(ctx, "100", "chan-1", Fulfillment{ThreadID: "t1"}), ErrExpired)

	// And a fresh claim for the pair is allowed again.
	_, err = f.workflow.Create(ctx, "100", "chan-1", "t1")
	require.NoError(t, err)
}

func TestResolveWithoutClaim(t *testing.T) {
	f := setup(t)
	require.ErrorIs(t, f.workflow.Resolve(context.Background(), "100", "chan-1", Fulfillment{}), ErrExpired)
}

func TestExpiredClaimIsCancelled(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seedPost(t, "t1")

	short := New(f.store, lifecycle.New(f.store, nopForum{}), time.Millisecond)
	_, err := short.Create(ctx, "100", "chan-1", "t1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.ErrorIs(t, short.Resolve(ctx, "100", "chan-1", Fulfillment{ThreadID: "t1"}), ErrExpired)

	// The expired row no longer blocks a new claim for the pair.
	_, err = short.Create(ctx, "100", "chan-1", "t1")
	require.NoError(t, err)

	// Post untouched by the failed resolution.
	post, err := f.store.GetPost(ctx, "t1")
	require.NoError(t, err)
	require.True(t, post.Active)
}

func TestResolveAlreadyCompletedPostConsumesClaim(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seedPost(t, "t1")

	coordinator := lifecycle.New(f.store, nopForum{})
	require.NoError(t, coordinator.TransitionToCompleted(ctx, "t1", nil))

	_, err := f.workflow.Create(ctx, "100", "chan-1", "t1")
	require.NoError(t, err)

	err = f.workflow.Resolve(ctx, "100", "chan-1", Fulfillment{ThreadID: "t1"})
	require.ErrorIs(t, err, lifecycle.ErrAlreadyTerminal)

	// Only one confirmed exchange exists and the claim cannot replay.
	n, err := f.store.CountConfirmedExchanges(ctx, "guild-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.ErrorIs(t, f.workflow.Resolve(ctx, "100", "chan-1", Fulfillment{ThreadID: "t1"}), ErrExpired)
}

func TestSweepRemovesConsumedClaims(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seedPost(t, "t1")

	claim, err := f.workflow.Create(ctx, "100", "chan-1", "t1")
	require.NoError(t, err)
	require.NoError(t, f.store.MarkClaimProcessed(ctx, claim.ID))

	removed, err := f.workflow.Sweep(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}
