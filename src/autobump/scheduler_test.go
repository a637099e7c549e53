package autobump

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"github.com/swapboard/swapboard/src/store"
	"github.com/swapboard/swapboard/src/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type sweepForum struct {
	posted  map[string][]string
	postErr error
}

func (f *sweepForum) Thread(threadID string) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: threadID}, nil
}
func (f *sweepForum) LeadMessage(threadID string) (*discordgo.Message, error) {
	return &discordgo.Message{ID: threadID}, nil
}
func (f *sweepForum) EditMessage(string, string, []*discordgo.MessageEmbed, []discordgo.MessageComponent) error {
	return nil
}
func (f *sweepForum) StartThread(string, string, *discordgo.MessageSend, []string) (string, error) {
	return "", nil
}
func (f *sweepForum) AvailableTags(string) ([]discordgo.ForumTag, error) { return nil, nil }
func (f *sweepForum) SetAppliedTags(string, []string) error              { return nil }
func (f *sweepForum) LockThread(string) error                            { return nil }
func (f *sweepForum) ArchiveThread(string) error                         { return nil }
func (f *sweepForum) PostMessage(threadID, content string) error {
	if f.postErr != nil {
		return f.postErr
	}
	if f.posted == nil {
		f.posted = map[string][]string{}
	}
	f.posted[threadID] = append(f.posted[threadID], content)
	return nil
}

func setup(t *testing.T) (*Scheduler, *store.Store, *sweepForum) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.ExchangePost{},
		&types.ConfirmedExchange{},
		&types.PendingClaim{},
	))
	st := store.New(db)
	forum := &sweepForum{}
	sc := New(st, forum, Config{DaysInactive: func() int { return 7 }})
	return sc, st, forum
}

func seedPost(t *testing.T, st *store.Store, threadID string, lastActivity time.Time) {
	t.Helper()
	require.NoError(t, st.CreatePost(context.Background(), &types.ExchangePost{
		ThreadID:  threadID,
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		AuthorID:  "100",
		Title:     "garden tools",
	}))
	require.NoError(t, st.DB().Model(&types.ExchangePost{}).
		Where("thread_id = ?", threadID).
		Update("last_activity", lastActivity).Error)
}

func TestRunOnceBumpsOnlyStalePosts(t *testing.T) {
	sc, st, forum := setup(t)
	ctx := context.Background()

	seedPost(t, st, "stale", time.Now().Add(-8*24*time.Hour))
	seedPost(t, st, "fresh", time.Now().Add(-1*time.Hour))

	bumped, err := sc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, bumped)

	require.Len(t, forum.posted["stale"], 1)
	require.Contains(t, forum.posted["stale"][0], "<@100>")
	require.Contains(t, forum.posted["stale"][0], "garden tools")
	require.Empty(t, forum.posted["fresh"])

	post, err := st.GetPost(ctx, "stale")
	require.NoError(t, err)
	require.Equal(t, uint32(1), post.BumpCount)

	// Bumping refreshed last_activity, so the next sweep is a no-op.
	bumped, err = sc.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, bumped)
	require.Len(t, forum.posted["stale"], 1)
}

func TestRunOnceSkipsCompletedPosts(t *testing.T) {
	sc, st, forum := setup(t)
	ctx := context.Background()

	seedPost(t, st, "done", time.Now().Add(-30*24*time.Hour))
	_, err := st.CompletePost(ctx, "done", &types.ConfirmedExchange{ThreadID: "done", GuildID: "guild-1", PosterID: "100"})
	require.NoError(t, err)

	bumped, err := sc.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, bumped)
	require.Empty(t, forum.posted)
}

func TestRunOnceReminderFailureLeavesPostUntouched(t *testing.T) {
	sc, st, forum := setup(t)
	ctx := context.Background()

	seedPost(t, st, "stale", time.Now().Add(-8*24*time.Hour))
	forum.postErr = errors.New("thread gone")

	bumped, err := sc.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, bumped)

	post, err := st.GetPost(ctx, "stale")
	require.NoError(t, err)
	require.Zero(t, post.BumpCount)

	// Once the reminder can be delivered the post is bumped after all.
	forum.postErr = nil
	bumped, err = sc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, bumped)
}

func TestRunOnceSweepsStaleClaims(t *testing.T) {
	sc, st, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, st.CreateClaim(ctx, &types.PendingClaim{
		AuthorID:  "100",
		ChannelID: "chan-1",
		ThreadID:  "t1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, err := sc.RunOnce(ctx)
	require.NoError(t, err)

	var count int64
	require.NoError(t, st.DB().Model(&types.PendingClaim{}).Count(&count).Error)
	require.Zero(t, count)
}
