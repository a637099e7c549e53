package bot

import (
	"context"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/swapboard/swapboard/src/autobump"
	"github.com/swapboard/swapboard/src/claims"
	"github.com/swapboard/swapboard/src/config"
	"github.com/swapboard/swapboard/src/data"
	swapdiscord "github.com/swapboard/swapboard/src/discord"
	"github.com/swapboard/swapboard/src/gateway"
	"github.com/swapboard/swapboard/src/lifecycle"
	"github.com/swapboard/swapboard/src/router"
	"github.com/swapboard/swapboard/src/store"
	"gorm.io/gorm"
)

// Bot owns the Discord session and the services behind it.
type Bot struct {
	session *discordgo.Session
	cfg     *config.Config
	store   *store.Store
	router  *router.Router
	bumper  *autobump.Scheduler

	skipRegister bool
}

func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.Token())
	if err != nil {
		return nil, err
	}

	forum := gateway.NewDiscord(dg)
	st := store.New(db)
	coordinator := lifecycle.New(st, forum)
	workflow := claims.New(st, coordinator, cfg.ClaimTTL())
	tokens := data.NewTokenStore(rdb, cfg.TokenTTL())

	bumper := autobump.New(st, forum, autobump.Config{
		CronSpec:     cfg.BumpCron(),
		DaysInactive: cfg.DaysInactive,
	})

	r := router.New(st, coordinator, workflow, forum, forum, tokens)
	r.ModeratorRoleID = cfg.ModeratorRoleID
	r.TriggerBump = bumper.RunOnce

	b := &Bot{session: dg, cfg: cfg, store: st, router: r, bumper: bumper}

	dg.AddHandler(b.handleReady)
	dg.AddHandler(r.Handle)
	dg.AddHandler(b.handleMessage)
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	return b, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return err
	}
	return b.bumper.Start()
}

func (b *Bot) Stop() {
	b.bumper.Stop()
	b.session.Close()
}

// RemoveCommands connects just long enough to delete the guild's slash
// commands. Used when decommissioning the bot from a server.
func (b *Bot) RemoveCommands() error {
	b.skipRegister = true
	if err := b.session.Open(); err != nil {
		return err
	}
	defer b.session.Close()
	return swapdiscord.DeleteSlashCommands(b.session, b.cfg.GuildID())
}

// handleMessage refreshes a tracked post's activity when anyone replies in
// its thread, which keeps the auto-bump sweep away from live conversations.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := b.store.TouchActivity(ctx, m.ChannelID); err != nil {
		log.Printf("bot: touch activity for %s: %v", m.ChannelID, err)
	}
}

func (b *Bot) handleReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Printf("bot: logged in as %s", event.User.Username)
	if b.skipRegister {
		return
	}
	if err := swapdiscord.RegisterSlashCommands(s, b.cfg.GuildID()); err != nil {
		log.Printf("bot: register slash commands: %v", err)
	}
}
