package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/swapboard/swapboard/src/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.ExchangePost{},
		&types.ConfirmedExchange{},
		&types.PendingClaim{},
	))
	return New(db)
}

func newPost(threadID, authorID string) *types.ExchangePost {
	return &types.ExchangePost{
		ThreadID:  threadID,
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		AuthorID:  authorID,
		Title:     "spare mechanical keyboard",
		Category:  "electronics",
	}
}

func TestCreateAndGetPost(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePost(ctx, newPost("t1", "alice")))

	post, err := s.GetPost(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, types.StatusAvailable, post.Status)
	require.True(t, post.Active)
	require.EqualValues(t, 0, post.BumpCount)

	_, err = s.GetPost(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInactivePostIsFrozen(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePost(ctx, newPost("t1", "alice")))
	created, err := s.CompletePost(ctx, "t1", &types.ConfirmedExchange{ThreadID: "t1", GuildID: "guild-1", PosterID: "alice"})
	require.NoError(t, err)
	require.True(t, created)

	before, err := s.GetPost(ctx, "t1")
	require.NoError(t, err)
	require.False(t, before.Active)
	require.Equal(t, types.StatusCompleted, before.Status)

	require.ErrorIs(t, s.IncrementBump(ctx, "t1"), ErrPostInactive)
	require.ErrorIs(t, s.SetStatus(ctx, "t1", types.StatusPending), ErrPostInactive)

	touched, err := s.TouchActivity(ctx, "t1")
	require.NoError(t, err)
	require.False(t, touched)

	_, err = s.CompletePost(ctx, "t1", &types.ConfirmedExchange{ThreadID: "t1", GuildID: "guild-1", PosterID: "alice"})
	require.ErrorIs(t, err, ErrPostInactive)

	after, err := s.GetPost(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, before.Status, after.Status)
	require.Equal(t, before.BumpCount, after.BumpCount)
	require.Equal(t, before.LastActivity.Unix(), after.LastActivity.Unix())
}

func TestGetInactivePostsWindow(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	require.NoError(t, s.CreatePost(ctx, newPost("t1", "alice")))

	// Fresh post is not stale.
	stale, err := s.GetInactivePosts(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, stale)

	// Just short of seven days: still excluded.
	s.now = func() time.Time { return base.Add(7*24*time.Hour - time.Minute) }
	stale, err = s.GetInactivePosts(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, stale)

	// Eight days later the post shows up.
	s.now = func() time.Time { return base.Add(8 * 24 * time.Hour) }
	stale, err = s.GetInactivePosts(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, "t1", stale[0].ThreadID)

	// A bump resets the window and increments the counter.
	require.NoError(t, s.IncrementBump(ctx, "t1"))
	post, err := s.GetPost(ctx, "t1")
	require.NoError(t, err)
	require.EqualValues(t, 1, post.BumpCount)

	stale, err = s.GetInactivePosts(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, stale)
}

func TestIncrementBumpAccumulates(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePost(ctx, newPost("t1", "alice")))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.IncrementBump(ctx, "t1"))
	}

	post, err := s.GetPost(ctx, "t1")
	require.NoError(t, err)
	require.EqualValues(t, 5, post.BumpCount)
}

func TestConfirmedExchangeExactlyOnce(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePost(ctx, newPost("t1", "alice")))

	rec := &types.ConfirmedExchange{
		ThreadID:   "t1",
		GuildID:    "guild-1",
		PosterID:   "alice",
		PosterName: "Alice",
		PartnerID:  "bob",
		Item:       "keyboard",
		Kind:       types.KindTrade,
	}
	created, err := s.CompletePost(ctx, "t1", rec)
	require.NoError(t, err)
	require.True(t, created)

	dup := *rec
	dup.ID = 0
	_, err = s.CompletePost(ctx, "t1", &dup)
	require.ErrorIs(t, err, ErrPostInactive)

	n, err := s.CountConfirmedExchanges(ctx, "guild-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestCompletePostRollsBackOnRecordFailure(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePost(ctx, newPost("t1", "alice")))
	require.NoError(t, s.DB().Migrator().DropTable(&types.ConfirmedExchange{}))

	_, err := s.CompletePost(ctx, "t1", &types.ConfirmedExchange{ThreadID: "t1", GuildID: "guild-1", PosterID: "alice"})
	require.Error(t, err)

	// The deactivation rolled back with the failed insert, so the post is
	// still open and a retry can finish the job.
	post, err := s.GetPost(ctx, "t1")
	require.NoError(t, err)
	require.True(t, post.Active)
	require.Equal(t, types.StatusAvailable, post.Status)

	require.NoError(t, s.DB().AutoMigrate(&types.ConfirmedExchange{}))
	created, err := s.CompletePost(ctx, "t1", &types.ConfirmedExchange{ThreadID: "t1", GuildID: "guild-1", PosterID: "alice"})
	require.NoError(t, err)
	require.True(t, created)

	n, err := s.CountConfirmedExchanges(ctx, "guild-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestTouchActivityUntrackedThreadIsNoOp(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.NoError(t, s.CreatePost(ctx, newPost("t1", "alice")))

	touched, err := s.TouchActivity(ctx, "never-seen")
	require.NoError(t, err)
	require.False(t, touched)

	s.now = func() time.Time { return base.Add(time.Hour) }
	touched, err = s.TouchActivity(ctx, "t1")
	require.NoError(t, err)
	require.True(t, touched)

	post, err := s.GetPost(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, base.Add(time.Hour).Unix(), post.LastActivity.Unix())
}

func TestClaimUniquePerPair(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	first := &types.PendingClaim{
		AuthorID:  "alice",
		ChannelID: "chan-1",
		ThreadID:  "t1",
		ExpiresAt: base.Add(5 * time.Minute),
	}
	require.NoError(t, s.CreateClaim(ctx, first))

	second := &types.PendingClaim{
		AuthorID:  "alice",
		ChannelID: "chan-1",
		ThreadID:  "t2",
		ExpiresAt: base.Add(5 * time.Minute),
	}
	require.ErrorIs(t, s.CreateClaim(ctx, second), ErrDuplicateClaim)

	// Different channel is a different pair.
	other := &types.PendingClaim{
		AuthorID:  "alice",
		ChannelID: "chan-2",
		ThreadID:  "t3",
		ExpiresAt: base.Add(5 * time.Minute),
	}
	require.NoError(t, s.CreateClaim(ctx, other))
}

func TestGetClaimFiltersProcessedAndExpired(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	claim := &types.PendingClaim{
		AuthorID:  "alice",
		ChannelID: "chan-1",
		ThreadID:  "t1",
		ExpiresAt: base.Add(5 * time.Minute),
	}
	require.NoError(t, s.CreateClaim(ctx, claim))

	got, err := s.GetClaim(ctx, "alice", "chan-1")
	require.NoError(t, err)
	require.Equal(t, "t1", got.ThreadID)

	// Past expiry the claim is gone even though the row remains.
	s.now = func() time.Time { return base.Add(6 * time.Minute) }
	_, err = s.GetClaim(ctx, "alice", "chan-1")
	require.ErrorIs(t, err, ErrNotFound)

	// Processed claims are filtered too.
	s.now = func() time.Time { return base }
	require.NoError(t, s.MarkClaimProcessed(ctx, got.ID))
	_, err = s.GetClaim(ctx, "alice", "chan-1")
	require.ErrorIs(t, err, ErrNotFound)

	// Second processing attempt reports nothing to do.
	require.ErrorIs(t, s.MarkClaimProcessed(ctx, got.ID), ErrNotFound)
}

func TestSweepClaims(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	live := &types.PendingClaim{AuthorID: "alice", ChannelID: "chan-1", ExpiresAt: base.Add(5 * time.Minute)}
	expired := &types.PendingClaim{AuthorID: "bob", ChannelID: "chan-1", ExpiresAt: base.Add(-time.Minute)}
	require.NoError(t, s.CreateClaim(ctx, live))
	require.NoError(t, s.CreateClaim(ctx, expired))

	removed, err := s.SweepClaims(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	// The live claim survived.
	_, err = s.GetClaim(ctx, "alice", "chan-1")
	require.NoError(t, err)

	// Sweeping the pair frees the unique slot for a new claim.
	require.NoError(t, s.MarkClaimProcessed(ctx, live.ID))
	require.NoError(t, s.SweepClaimPair(ctx, "alice", "chan-1"))
	again := &types.PendingClaim{AuthorID: "alice", ChannelID: "chan-1", ExpiresAt: base.Add(5 * time.Minute)}
	require.NoError(t, s.CreateClaim(ctx, again))
}
