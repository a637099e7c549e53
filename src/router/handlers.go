package router

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	swapdiscord "github.com/swapboard/swapboard/src/discord"
	"github.com/swapboard/swapboard/src/gateway"
	"github.com/swapboard/swapboard/src/lifecycle"
	"github.com/swapboard/swapboard/src/store"
)

const (
	inputContactInfo = "contact_info"
	inputMessage     = "message"
)

// contactPayload is what the opaque modal token resolves to.
type contactPayload struct {
	ThreadID string `json:"threadId"`
	PosterID string `json:"posterId"`
	AskerID  string `json:"askerId"`
}

// contactOpen opens the two-field contact form. Self-contact is rejected
// before anything is stored.
func (r *Router) contactOpen(s *discordgo.Session, i *discordgo.InteractionCreate, payload swapdiscord.Payload) {
	actor := swapdiscord.InteractionUserID(i)
	if actor == payload.PosterID {
		r.reply(s, i, "You cannot contact yourself about your own post.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	token, err := r.Tokens.Put(ctx, contactPayload{
		ThreadID: i.ChannelID,
		PosterID: payload.PosterID,
		AskerID:  actor,
	})
	if err != nil {
		log.Printf("router: store contact payload: %v", err)
		r.reply(s, i, "Something went wrong, please try again.")
		return
	}

	customID, err := swapdiscord.EncodeCustomID(swapdiscord.Payload{
		Action: swapdiscord.ActionContact, Sub: swapdiscord.SubSubmit, Token: token,
	})
	if err != nil {
		log.Printf("router: encode contact modal id: %v", err)
		return
	}

	form := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    inputContactInfo,
				Label:       "How can the poster reach you?",
				Style:       discordgo.TextInputShort,
				Required:    true,
				MaxLength:   200,
				Placeholder: "Username, phone, meetup spot...",
			},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:  inputMessage,
				Label:     "Message to the poster",
				Style:     discordgo.TextInputParagraph,
				Required:  true,
				MaxLength: 1000,
			},
		}},
	}
	if err := r.Deps.RespondModal(s, i, customID, "Contact the poster", form); err != nil {
		log.Printf("router: open contact modal: %v", err)
	}
}

// contactSubmit resolves the token, loads the post and DMs the poster both
// fields. Delivery failure is a soft warning, not a rollback.
func (r *Router) contactSubmit(s *discordgo.Session, i *discordgo.InteractionCreate, payload swapdiscord.Payload) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	var stored contactPayload
	if err := r.Tokens.Take(ctx, payload.Token, &stored); err != nil {
		if errors.Is(err, redis.Nil) {
			r.reply(s, i, "This form expired, please press the contact button again.")
			return
		}
		log.Printf("router: resolve contact token: %v", err)
		r.reply(s, i, "Something went wrong, please try again.")
		return
	}

	if err := r.Deps.DeferEphemeral(s, i); err != nil {
		log.Printf("router: ack contact submit: %v", err)
		return
	}

	post, err := r.Store.GetPost(ctx, stored.ThreadID)
	if err != nil {
		r.edit(s, i, "This post is no longer tracked.")
		return
	}

	modal := i.ModalSubmitData()
	contact := swapdiscord.ModalInputValue(modal, inputContactInfo)
	message := swapdiscord.ModalInputValue(modal, inputMessage)
	asker := swapdiscord.InteractionUserName(i)

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Someone is interested in: %s", post.Title),
		Description: fmt.Sprintf("<@%s> (%s) sent you a message about your post.", stored.AskerID, asker),
		Color:       0x3498DB,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Contact info", Value: contact},
			{Name: "Message", Value: message},
			{Name: "Post", Value: threadLink(post.GuildID, post.ThreadID)},
		},
	}

	if err := r.Notifier.NotifyUser(post.AuthorID, embed); err != nil {
		if errors.Is(err, gateway.ErrDMClosed) {
			r.edit(s, i, "Could not notify the poster — they have direct messages disabled.")
			return
		}
		log.Printf("router: contact DM to %s: %v", post.AuthorID, err)
		r.edit(s, i, "Could not deliver your message, please try again later.")
		return
	}
	r.edit(s, i, "Your message was sent to the poster.")
}

// availabilityCheck DMs the poster that someone is asking whether the
// item is still available.
func (r *Router) availabilityCheck(s *discordgo.Session, i *discordgo.InteractionCreate, payload swapdiscord.Payload) {
	actor := swapdiscord.InteractionUserID(i)
	if actor == payload.PosterID {
		r.reply(s, i, "You cannot ask yourself about availability.")
		return
	}

	if err := r.Deps.DeferEphemeral(s, i); err != nil {
		log.Printf("router: ack availability check: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	post, err := r.Store.GetPost(ctx, i.ChannelID)
	if err != nil {
		r.edit(s, i, "This post is no longer tracked.")
		return
	}

	asker := swapdiscord.InteractionUserName(i)
	embed := &discordgo.MessageEmbed{
		Title:       "Availability check",
		Description: fmt.Sprintf("<@%s> (%s) is asking whether **%s** is still available.", actor, asker, post.Title),
		Color:       0x3498DB,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Post", Value: threadLink(post.GuildID, post.ThreadID)},
		},
	}

	if err := r.Notifier.NotifyUser(post.AuthorID, embed); err != nil {
		if errors.Is(err, gateway.ErrDMClosed) {
			r.edit(s, i, "Could not notify the poster — they have direct messages disabled.")
			return
		}
		log.Printf("router: availability DM to %s: %v", post.AuthorID, err)
		r.edit(s, i, "Could not reach the poster, please try again later.")
		return
	}
	r.edit(s, i, "The poster has been asked about availability.")
}

// closePost completes the post. Only the original poster may close, and
// only while the post is still active.
func (r *Router) closePost(s *discordgo.Session, i *discordgo.InteractionCreate, _ swapdiscord.Payload) {
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

	actor := swapdiscord.InteractionUserID(i)
	if actor != post.AuthorID {
		r.reply(s, i, "Only the original poster can close this post.")
		return
	}
	if !post.Active {
		r.reply(s, i, "This post is already completed.")
		return
	}

	err = r.Coordinator.TransitionToCompleted(ctx, post.ThreadID, &lifecycle.Completion{
		PosterName: swapdiscord.InteractionUserName(i),
	})
	if errors.Is(err, lifecycle.ErrAlreadyTerminal) {
		r.reply(s, i, "This post is already completed.")
		return
	}
	if err != nil {
		log.Printf("router: close %s: %v", post.ThreadID, err)
		r.reply(s, i, "Could not close the post, please try again.")
		return
	}
	r.reply(s, i, "Post closed. Thanks for keeping the board tidy!")
}

func (r *Router) edit(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if err := r.Deps.EditResponse(s, i, content); err != nil {
		log.Printf("router: edit response: %v", err)
	}
}

func threadLink(guildID, threadID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s", guildID, threadID)
}
