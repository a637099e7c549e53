package router

import (
	"context"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/swapboard/swapboard/src/claims"
	"github.com/swapboard/swapboard/src/data"
	swapdiscord "github.com/swapboard/swapboard/src/discord"
	"github.com/swapboard/swapboard/src/gateway"
	"github.com/swapboard/swapboard/src/lifecycle"
	"github.com/swapboard/swapboard/src/store"
)

// handlerTimeout bounds the work done after an interaction is
// acknowledged. The acknowledgement itself must happen inside the
// platform's few-second response window.
const handlerTimeout = 10 * time.Second

// Dependencies are the reply and lookup callbacks a handler needs beyond
// the domain services. Tests swap them for recorders.
type Dependencies struct {
	RespondEphemeral func(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error
	RespondSelect    func(s *discordgo.Session, i *discordgo.InteractionCreate, content string, components []discordgo.MessageComponent) error
	DeferEphemeral   func(s *discordgo.Session, i *discordgo.InteractionCreate) error
	EditResponse     func(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error
	RespondModal     func(s *discordgo.Session, i *discordgo.InteractionCreate, customID, title string, components []discordgo.MessageComponent) error
	UserName         func(s *discordgo.Session, userID string) string
}

// Router dispatches inbound interactions by (interaction kind, action
// namespace) to the claim, contact, availability, close and moderator
// handlers. There are no locks between handlers: every mutation re-checks
// the persisted guards right before writing.
type Router struct {
	Store       *store.Store
	Coordinator *lifecycle.Coordinator
	Claims      *claims.Workflow
	Forum       gateway.Forum
	Notifier    gateway.Notifier
	Tokens      *data.TokenStore

	// ModeratorRoleID resolves the configured moderator role at call
	// time, so a settings change applies without restart.
	ModeratorRoleID func() string
	// TriggerBump runs one bump sweep on demand (the /force-bump path).
	TriggerBump func(ctx context.Context) (int, error)

	Deps Dependencies
}

// New wires a router with live Discord reply callbacks.
func New(st *store.Store, coordinator *lifecycle.Coordinator, workflow *claims.Workflow, forum gateway.Forum, notifier gateway.Notifier, tokens *data.TokenStore) *Router {
	return &Router{
		Store:       st,
		Coordinator: coordinator,
		Claims:      workflow,
		Forum:       forum,
		Notifier:    notifier,
		Tokens:      tokens,
		Deps: Dependencies{
			RespondEphemeral: swapdiscord.RespondEphemeral,
			RespondSelect:    respondSelect,
			DeferEphemeral:   swapdiscord.DeferEphemeral,
			EditResponse:     swapdiscord.EditResponse,
			RespondModal:     swapdiscord.RespondModal,
			UserName:         lookupUserName,
		},
	}
}

// Handle is registered as the session's InteractionCreate handler.
func (r *Router) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		r.handleCommand(s, i)
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		payload, ok := swapdiscord.DecodeCustomID(data.CustomID)
		if !ok {
			return // not ours
		}
		r.handleComponent(s, i, payload)
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		payload, ok := swapdiscord.DecodeCustomID(data.CustomID)
		if !ok {
			return
		}
		r.handleModal(s, i, payload)
	}
}

func (r *Router) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate, payload swapdiscord.Payload) {
	switch payload.Action {
	case swapdiscord.ActionContact:
		r.contactOpen(s, i, payload)
	case swapdiscord.ActionAvailability:
		r.availabilityCheck(s, i, payload)
	case swapdiscord.ActionClose:
		r.closePost(s, i, payload)
	case swapdiscord.ActionClaim:
		switch payload.Sub {
		case swapdiscord.SubOpen:
			r.claimOpen(s, i, payload)
		case swapdiscord.SubPick:
			r.claimPickPartner(s, i, payload)
		case swapdiscord.SubSubmit:
			r.claimPickPost(s, i, payload)
		}
	}
}

func (r *Router) handleModal(s *discordgo.Session, i *discordgo.InteractionCreate, payload swapdiscord.Payload) {
	if payload.Action == swapdiscord.ActionContact && payload.Sub == swapdiscord.SubSubmit {
		r.contactSubmit(s, i, payload)
	}
}

func (r *Router) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if err := r.Deps.RespondEphemeral(s, i, content); err != nil {
		log.Printf("router: respond: %v", err)
	}
}

// respondSelect answers with an ephemeral message carrying a select menu.
func respondSelect(s *discordgo.Session, i *discordgo.InteractionCreate, content string, components []discordgo.MessageComponent) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Flags:      discordgo.MessageFlagsEphemeral,
			Components: components,
		},
	})
}

func lookupUserName(s *discordgo.Session, userID string) string {
	user, err := s.User(userID)
	if err != nil {
		return userID
	}
	return user.Username
}
