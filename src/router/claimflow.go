package router

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/swapboard/swapboard/src/claims"
	swapdiscord "github.com/swapboard/swapboard/src/discord"
	"github.com/swapboard/swapboard/src/lifecycle"
)

// claimOpen starts the two-step fulfillment flow with a partner picker.
func (r *Router) claimOpen(s *discordgo.Session, i *discordgo.InteractionCreate, payload swapdiscord.Payload) {
	actor := swapdiscord.InteractionUserID(i)
	if actor != payload.PosterID {
		r.reply(s, i, "Only the original poster can mark this post fulfilled.")
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

	pickID, err := swapdiscord.EncodeCustomID(swapdiscord.Payload{
		Action: swapdiscord.ActionClaim, Sub: swapdiscord.SubPick, PosterID: actor,
	})
	if err != nil {
		log.Printf("router: encode partner picker id: %v", err)
		return
	}

	menu := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.UserSelectMenu,
				CustomID:    pickID,
				Placeholder: "Select your exchange partner",
			},
		}},
	}
	if err := r.Deps.RespondSelect(s, i, "Who did you exchange with?", menu); err != nil {
		log.Printf("router: open partner picker: %v", err)
	}
}

// claimPickPartner records the pending claim and offers the poster's open
// posts for selection. A live claim for the pair is a conflict, never a
// silent overwrite.
func (r *Router) claimPickPartner(s *discordgo.Session, i *discordgo.InteractionCreate, payload swapdiscord.Payload) {
	actor := swapdiscord.InteractionUserID(i)
	if actor != payload.PosterID {
		r.reply(s, i, "This picker belongs to the original poster.")
		return
	}

	values := i.MessageComponentData().Values
	if len(values) == 0 {
		r.reply(s, i, "No partner selected.")
		return
	}
	partner := values[0]
	if partner == actor {
		r.reply(s, i, "You cannot record an exchange with yourself.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	post, err := r.Store.GetPost(ctx, i.ChannelID)
	if err != nil {
		r.reply(s, i, "This thread has no tracked exchange post.")
		return
	}

	if _, err := r.Claims.Create(ctx, actor, post.ChannelID, post.ThreadID); err != nil {
		if errors.Is(err, claims.ErrConflict) {
			r.reply(s, i, "You already have a claim in progress in this channel. Finish it or let it expire first.")
			return
		}
		log.Printf("router: create claim for %s: %v", actor, err)
		r.reply(s, i, "Could not start the claim, please try again.")
		return
	}

	open, err := r.Store.ListActivePostsByAuthor(ctx, actor, post.ChannelID)
	if err != nil || len(open) == 0 {
		log.Printf("router: list open posts for %s: %v", actor, err)
		r.reply(s, i, "Could not list your open posts, please try again.")
		return
	}

	submitID, err := swapdiscord.EncodeCustomID(swapdiscord.Payload{
		Action: swapdiscord.ActionClaim, Sub: swapdiscord.SubSubmit, PosterID: actor, ClaimerID: partner,
	})
	if err != nil {
		log.Printf("router: encode post picker id: %v", err)
		return
	}

	options := make([]discordgo.SelectMenuOption, 0, len(open))
	for idx, p := range open {
		if idx == 25 {
			break // select menus cap at 25 options
		}
		options = append(options, discordgo.SelectMenuOption{
			Label:   truncate(p.Title, 100),
			Value:   p.ThreadID,
			Default: p.ThreadID == post.ThreadID,
		})
	}

	menu := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    submitID,
				Placeholder: "Which post was fulfilled?",
				Options:     options,
			},
		}},
	}
	if err := r.Deps.RespondSelect(s, i, fmt.Sprintf("Recording an exchange with <@%s>. Which post?", partner), menu); err != nil {
		log.Printf("router: open post picker: %v", err)
	}
}

// claimPickPost resolves the claim against the chosen post.
func (r *Router) claimPickPost(s *discordgo.Session, i *discordgo.InteractionCreate, payload swapdiscord.Payload) {
	actor := swapdiscord.InteractionUserID(i)
	if actor != payload.PosterID {
		r.reply(s, i, "This picker belongs to the original poster.")
		return
	}

	values := i.MessageComponentData().Values
	if len(values) == 0 {
		r.reply(s, i, "No post selected.")
		return
	}
	chosen := values[0]

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	post, err := r.Store.GetPost(ctx, chosen)
	if err != nil {
		r.reply(s, i, "That post is no longer tracked.")
		return
	}

	err = r.Claims.Resolve(ctx, actor, post.ChannelID, claims.Fulfillment{
		ThreadID:    chosen,
		PosterName:  swapdiscord.InteractionUserName(i),
		PartnerID:   payload.ClaimerID,
		PartnerName: r.Deps.UserName(s, payload.ClaimerID),
		Kind:        post.Kind,
	})
	switch {
	case errors.Is(err, claims.ErrExpired):
		r.reply(s, i, "Your claim expired. Press \"Mark fulfilled\" to start over.")
	case errors.Is(err, lifecycle.ErrAlreadyTerminal):
		r.reply(s, i, "That post is already completed.")
	case err != nil:
		log.Printf("router: resolve claim for %s: %v", actor, err)
		r.reply(s, i, "Could not record the exchange, please try again.")
	default:
		r.reply(s, i, fmt.Sprintf("Exchange with <@%s> recorded. The post is closed.", payload.ClaimerID))
	}
}

// truncate shortens to max runes, never splitting a multibyte character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
