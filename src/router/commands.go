package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	swapdiscord "github.com/swapboard/swapboard/src/discord"
	"github.com/swapboard/swapboard/src/lifecycle"
	"github.com/swapboard/swapboard/src/store"
	"github.com/swapboard/swapboard/src/types"
)

func (r *Router) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.ApplicationCommandData().Name {
	case swapdiscord.CommandPost:
		r.commandPost(s, i)
	case swapdiscord.CommandClose:
		r.closePost(s, i, swapdiscord.Payload{})
	case swapdiscord.CommandSwapStatus:
		r.commandSwapStatus(s, i)
	case swapdiscord.CommandForceBump:
		r.commandForceBump(s, i)
	case swapdiscord.CommandForceClaim:
		r.commandForce(s, i, types.StatusPending)
	case swapdiscord.CommandForceAvailable:
		r.commandForce(s, i, types.StatusAvailable)
	}
}

// commandPost publishes a new exchange post in the invoking forum channel.
func (r *Router) commandPost(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var title, kind, category, description string
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "title":
			title = strings.TrimSpace(opt.StringValue())
		case "kind":
			kind = opt.StringValue()
		case "category":
			category = strings.TrimSpace(opt.StringValue())
		case "description":
			description = strings.TrimSpace(opt.StringValue())
		}
	}
	if title == "" {
		r.reply(s, i, "The post needs a title.")
		return
	}

	if err := r.Deps.DeferEphemeral(s, i); err != nil {
		log.Printf("router: ack post command: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	threadID, err := r.Coordinator.CreatePost(ctx, lifecycle.PostRequest{
		ChannelID:   i.ChannelID,
		GuildID:     i.GuildID,
		AuthorID:    swapdiscord.InteractionUserID(i),
		AuthorName:  swapdiscord.InteractionUserName(i),
		Title:       title,
		Kind:        kind,
		Category:    category,
		Description: description,
	})
	if err != nil {
		log.Printf("router: create post: %v", err)
		r.edit(s, i, "Could not publish the post. Is this a forum channel?")
		return
	}
	r.edit(s, i, fmt.Sprintf("Your post is live: %s", threadLink(i.GuildID, threadID)))
}

// commandSwapStatus shows the persisted record next to the thread's
// current tags, so a transient display mismatch is visible.
func (r *Router) commandSwapStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	post, err := r.Store.GetPost(ctx, i.ChannelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.reply(s, i, "This thread has no tracked exchange post.")
			return
		}
		log.Printf("router: load post %s: %v", i.ChannelID, err)
		r.reply(s, i, "Something went wrong, please try again.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", post.Title)
	fmt.Fprintf(&b, "Status: %s", lifecycle.StatusLabel(post.Status))
	if !post.Active {
		b.WriteString(" (closed)")
	}
	fmt.Fprintf(&b, "\nBumps: %d\nLast activity: <t:%d:R>", post.BumpCount, post.LastActivity.Unix())

	if tags := r.appliedTagNames(post); tags != "" {
		fmt.Fprintf(&b, "\nThread tags: %s", tags)
	}
	if n, err := r.Store.CountConfirmedExchanges(ctx, post.GuildID); err == nil {
		fmt.Fprintf(&b, "\nCompleted exchanges in this server: %d", n)
	}

	r.reply(s, i, b.String())
}

// commandForce is the moderator override: the same persisted write and
// display sync as a user transition, without an interactive claim.
func (r *Router) commandForce(s *discordgo.Session, i *discordgo.InteractionCreate, target string) {
	if !swapdiscord.IsModerator(i, r.moderatorRoleID()) {
		r.reply(s, i, "You don't have permission to use this command.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	post, err := r.Store.GetPost(ctx, i.ChannelID)
	if err != nil {
		r.reply(s, i, "This thread has no tracked exchange post.")
		return
	}
	if !post.Active {
		r.reply(s, i, "This post is already completed.")
		return
	}

	switch target {
	case types.StatusPending:
		err = r.Coordinator.TransitionToPending(ctx, post.ThreadID)
	case types.StatusAvailable:
		err = r.Coordinator.TransitionToAvailable(ctx, post.ThreadID)
	default:
		r.reply(s, i, "Unsupported transition.")
		return
	}

	if errors.Is(err, lifecycle.ErrAlreadyTerminal) {
		r.reply(s, i, fmt.Sprintf("The post is already %s.", strings.ToLower(lifecycle.StatusLabel(target))))
		return
	}
	if err != nil {
		log.Printf("router: force %s on %s: %v", target, post.ThreadID, err)
		r.reply(s, i, "Could not apply the transition, please try again.")
		return
	}
	r.reply(s, i, fmt.Sprintf("Post forced to %s.", strings.ToLower(lifecycle.StatusLabel(target))))
}

// commandForceBump triggers the stale-post sweep immediately.
func (r *Router) commandForceBump(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !swapdiscord.IsModerator(i, r.moderatorRoleID()) {
		r.reply(s, i, "You don't have permission to use this command.")
		return
	}
	if r.TriggerBump == nil {
		r.reply(s, i, "The bump scheduler is not running.")
		return
	}

	if err := r.Deps.DeferEphemeral(s, i); err != nil {
		log.Printf("router: ack force-bump: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bumped, err := r.TriggerBump(ctx)
	if err != nil {
		log.Printf("router: manual bump sweep: %v", err)
		r.edit(s, i, "The sweep failed, check the logs.")
		return
	}
	r.edit(s, i, fmt.Sprintf("Sweep finished, %d post(s) bumped.", bumped))
}

func (r *Router) moderatorRoleID() string {
	if r.ModeratorRoleID == nil {
		return ""
	}
	return r.ModeratorRoleID()
}

func (r *Router) appliedTagNames(post *types.ExchangePost) string {
	thread, err := r.Forum.Thread(post.ThreadID)
	if err != nil {
		return ""
	}
	catalog, err := r.Forum.AvailableTags(post.ChannelID)
	if err != nil {
		return ""
	}
	names := make(map[string]string, len(catalog))
	for _, tag := range catalog {
		names[tag.ID] = tag.Name
	}
	var out []string
	for _, id := range thread.AppliedTags {
		if name := names[id]; name != "" {
			out = append(out, name)
		}
	}
	return strings.Join(out, ", ")
}
