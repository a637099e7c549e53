package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	swapdiscord "github.com/swapboard/swapboard/src/discord"
	"github.com/swapboard/swapboard/src/gateway"
	"github.com/swapboard/swapboard/src/store"
	"github.com/swapboard/swapboard/src/types"
)

// ErrAlreadyTerminal reports a transition that has nothing to do: the post
// is already in the requested state, or it is completed and frozen.
var ErrAlreadyTerminal = errors.New("lifecycle: post already in terminal or requested state")

// Completion carries the counterparty details recorded when a post
// completes. Nil means the post closed without a named partner.
type Completion struct {
	PartnerID   string
	PartnerName string
	PosterName  string
	Item        string
	Kind        string
}

// Coordinator owns the post status machine. The database write is
// authoritative; the embed, tag, and lock/archive sync that follows is
// best-effort and never rolls the write back.
type Coordinator struct {
	store *store.Store
	forum gateway.Forum
}

func New(st *store.Store, forum gateway.Forum) *Coordinator {
	return &Coordinator{store: st, forum: forum}
}

// PostRequest describes a new listing.
type PostRequest struct {
	ChannelID   string
	GuildID     string
	AuthorID    string
	AuthorName  string
	Title       string
	Kind        string
	Category    string
	Description string
}

// CreatePost publishes the forum thread with the status embed, control
// buttons and initial tag, then persists the record. The thread exists
// before the row does; a crash between the two leaves an untracked thread
// rather than a phantom record.
func (c *Coordinator) CreatePost(ctx context.Context, req PostRequest) (string, error) {
	post := &types.ExchangePost{
		ChannelID: req.ChannelID,
		GuildID:   req.GuildID,
		AuthorID:  req.AuthorID,
		Title:     req.Title,
		Kind:      req.Kind,
		Category:  req.Category,
		Status:    types.StatusAvailable,
	}

	var tagIDs []string
	if catalog, err := c.forum.AvailableTags(req.ChannelID); err != nil {
		log.Printf("lifecycle: read tag catalog for %s: %v", req.ChannelID, err)
	} else if id := tagIDForStatus(catalog, types.StatusAvailable); id != "" {
		tagIDs = []string{id}
	}

	components, err := postComponents(req.AuthorID)
	if err != nil {
		return "", err
	}

	threadID, err := c.forum.StartThread(req.ChannelID, req.Title, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{buildStatusEmbed(post, req.AuthorName, req.Description)},
		Components: components,
	}, tagIDs)
	if err != nil {
		return "", fmt.Errorf("publish post: %w", err)
	}

	post.ThreadID = threadID
	if err := c.store.CreatePost(ctx, post); err != nil {
		return threadID, err
	}
	return threadID, nil
}

// TransitionToAvailable reverts a pending post (moderator override path).
func (c *Coordinator) TransitionToAvailable(ctx context.Context, threadID string) error {
	return c.transition(ctx, threadID, types.StatusAvailable, nil)
}

// TransitionToPending marks a post as spoken-for.
func (c *Coordinator) TransitionToPending(ctx context.Context, threadID string) error {
	return c.transition(ctx, threadID, types.StatusPending, nil)
}

// TransitionToCompleted closes a post for good and records the confirmed
// exchange exactly once.
func (c *Coordinator) TransitionToCompleted(ctx context.Context, threadID string, completion *Completion) error {
	return c.transition(ctx, threadID, types.StatusCompleted, completion)
}

func (c *Coordinator) transition(ctx context.Context, threadID, target string, completion *Completion) error {
	post, err := c.store.GetPost(ctx, threadID)
	if err != nil {
		return err
	}
	if !post.Active || post.Status == types.StatusCompleted || post.Status == target {
		return ErrAlreadyTerminal
	}

	// (a) authoritative write. Completion freezes the post and records the
	// confirmed exchange in one transaction, so a failed insert leaves the
	// post open for a retry.
	if target == types.StatusCompleted {
		rec := &types.ConfirmedExchange{
			ThreadID: threadID,
			GuildID:  post.GuildID,
			PosterID: post.AuthorID,
			Item:     post.Title,
			Kind:     post.Kind,
			Category: post.Category,
		}
		if completion != nil {
			rec.PosterName = completion.PosterName
			rec.PartnerID = completion.PartnerID
			rec.PartnerName = completion.PartnerName
			if completion.Item != "" {
				rec.Item = completion.Item
			}
			if completion.Kind != "" {
				rec.Kind = completion.Kind
			}
		}
		if _, err := c.store.CompletePost(ctx, threadID, rec); err != nil {
			if errors.Is(err, store.ErrPostInactive) {
				// Lost the race against a concurrent completion.
				return ErrAlreadyTerminal
			}
			return err
		}
	} else {
		if err := c.store.SetStatus(ctx, threadID, target); err != nil {
			if errors.Is(err, store.ErrPostInactive) {
				return ErrAlreadyTerminal
			}
			return err
		}
	}

	// (b)-(d) best-effort platform sync; failures are logged, never
	// propagated, so a deleted thread or missing permission cannot undo
	// the persisted state.
	post.Status = target
	c.syncDisplay(post)
	if target == types.StatusCompleted {
		c.closeThread(threadID)
	}
	return nil
}

// Reconcile recomputes the thread's embed and tags from the persisted
// record. This is the read-side repair for transient mismatches left by a
// failed best-effort sync.
func (c *Coordinator) Reconcile(ctx context.Context, threadID string) error {
	post, err := c.store.GetPost(ctx, threadID)
	if err != nil {
		return err
	}
	return c.syncDisplay(post)
}

// syncDisplay rewrites the status field and accent color of the lead
// message and reapplies the status tag. Errors are logged and joined for
// callers that care (Reconcile); transition callers drop them.
func (c *Coordinator) syncDisplay(post *types.ExchangePost) error {
	var errs []error

	if err := c.syncEmbed(post); err != nil {
		log.Printf("lifecycle: sync embed for %s: %v", post.ThreadID, err)
		errs = append(errs, err)
	}
	if err := c.syncTags(post); err != nil {
		log.Printf("lifecycle: sync tags for %s: %v", post.ThreadID, err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Coordinator) syncEmbed(post *types.ExchangePost) error {
	msg, err := c.forum.LeadMessage(post.ThreadID)
	if err != nil {
		return err
	}
	idx := findStatusEmbed(msg.Embeds)
	if idx < 0 {
		return fmt.Errorf("no status embed on lead message of %s", post.ThreadID)
	}
	rewriteStatus(msg.Embeds[idx], post.Status)

	// Completed posts also lose their control buttons.
	var components []discordgo.MessageComponent
	if post.Status == types.StatusCompleted {
		components = []discordgo.MessageComponent{}
	}
	return c.forum.EditMessage(post.ThreadID, msg.ID, msg.Embeds, components)
}

func (c *Coordinator) syncTags(post *types.ExchangePost) error {
	thread, err := c.forum.Thread(post.ThreadID)
	if err != nil {
		return err
	}
	catalog, err := c.forum.AvailableTags(post.ChannelID)
	if err != nil {
		return err
	}

	names := make(map[string]string, len(catalog))
	for _, tag := range catalog {
		names[tag.ID] = tag.Name
	}

	// Keep every non-status tag, then append the tag for the new status.
	tags := make([]string, 0, len(thread.AppliedTags)+1)
	for _, id := range thread.AppliedTags {
		if IsStatusLabel(names[id]) {
			continue
		}
		tags = append(tags, id)
	}
	if id := tagIDForStatus(catalog, post.Status); id != "" {
		tags = append(tags, id)
	}
	return c.forum.SetAppliedTags(post.ThreadID, tags)
}

// closeThread locks then archives. Locking needs a permission the bot may
// not hold; in that case the thread is archived unlocked.
func (c *Coordinator) closeThread(threadID string) {
	if err := c.forum.LockThread(threadID); err != nil {
		if gateway.IsMissingPermissions(err) {
			log.Printf("lifecycle: not permitted to lock %s, archiving unlocked", threadID)
		} else {
			log.Printf("lifecycle: lock thread %s: %v", threadID, err)
		}
	}
	if err := c.forum.ArchiveThread(threadID); err != nil {
		log.Printf("lifecycle: archive thread %s: %v", threadID, err)
	}
}

func tagIDForStatus(catalog []discordgo.ForumTag, status string) string {
	label := StatusLabel(status)
	for _, tag := range catalog {
		if strings.EqualFold(tag.Name, label) {
			return tag.ID
		}
	}
	return ""
}

func postComponents(authorID string) ([]discordgo.MessageComponent, error) {
	contactID, err := swapdiscord.EncodeCustomID(swapdiscord.Payload{
		Action: swapdiscord.ActionContact, Sub: swapdiscord.SubOpen, PosterID: authorID,
	})
	if err != nil {
		return nil, err
	}
	availID, err := swapdiscord.EncodeCustomID(swapdiscord.Payload{
		Action: swapdiscord.ActionAvailability, Sub: swapdiscord.SubOpen, PosterID: authorID,
	})
	if err != nil {
		return nil, err
	}
	claimID, err := swapdiscord.EncodeCustomID(swapdiscord.Payload{
		Action: swapdiscord.ActionClaim, Sub: swapdiscord.SubOpen, PosterID: authorID,
	})
	if err != nil {
		return nil, err
	}
	closeID, err := swapdiscord.EncodeCustomID(swapdiscord.Payload{
		Action: swapdiscord.ActionClose, Sub: swapdiscord.SubOpen, PosterID: authorID,
	})
	if err != nil {
		return nil, err
	}
	return controlButtons(contactID, availID, claimID, closeID), nil
}
