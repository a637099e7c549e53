package discord

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	CommandPost           = "post"
	CommandClose          = "close"
	CommandSwapStatus     = "swap-status"
	CommandForceBump      = "force-bump"
	CommandForceClaim     = "force-claim"
	CommandForceAvailable = "force-available"
)

var commandDefinitions = map[string]*discordgo.ApplicationCommand{
	CommandPost: {
		Name:        CommandPost,
		Description: "Publish a new exchange post in this forum channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "What you are offering or looking for",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "kind",
				Description: "Kind of exchange",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Trade", Value: "trade"},
					{Name: "Give away", Value: "give"},
					{Name: "Request", Value: "request"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "category",
				Description: "Free-form category label",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "description",
				Description: "Details for the post body",
				Required:    false,
			},
		},
	},
	CommandClose: {
		Name:        CommandClose,
		Description: "Close your exchange post in this thread",
	},
	CommandSwapStatus: {
		Name:        CommandSwapStatus,
		Description: "Show the recorded state of this thread's exchange post",
	},
	CommandForceBump: {
		Name:        CommandForceBump,
		Description: "Run the stale-post bump sweep now (moderators)",
	},
	CommandForceClaim: {
		Name:        CommandForceClaim,
		Description: "Force this thread's post to pending (moderators)",
	},
	CommandForceAvailable: {
		Name:        CommandForceAvailable,
		Description: "Force this thread's post back to available (moderators)",
	},
}

var defaultCommandOrder = []string{
	CommandPost,
	CommandClose,
	CommandSwapStatus,
	CommandForceBump,
	CommandForceClaim,
	CommandForceAvailable,
}

// RegisterSlashCommands registers the requested slash commands for a guild.
// When no command names are provided, all known commands are registered.
func RegisterSlashCommands(s *discordgo.Session, guildID string, names ...string) error {
	if guildID == "" {
		return fmt.Errorf("discord: guildID is required to register slash commands")
	}

	if len(names) == 0 {
		names = defaultCommandOrder
	}

	var failures []string
	for _, name := range names {
		definition, ok := commandDefinitions[name]
		if !ok {
			log.Printf("discord: unknown slash command %q", name)
			continue
		}

		_, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, definition)
		if err != nil {
			if isDuplicateCommandError(err) {
				log.Printf("discord: slash command %q already registered", name)
				continue
			}
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			log.Printf("discord: failed to register command %q: %v", name, err)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("discord: slash command registration errors: %s", strings.Join(failures, "; "))
	}

	return nil
}

// DeleteSlashCommands removes all registered slash commands for a guild.
func DeleteSlashCommands(s *discordgo.Session, guildID string) error {
	if guildID == "" {
		return fmt.Errorf("discord: guildID is required to delete slash commands")
	}

	commands, err := s.ApplicationCommands(s.State.User.ID, guildID)
	if err != nil {
		return err
	}

	for _, cmd := range commands {
		if err := s.ApplicationCommandDelete(s.State.User.ID, guildID, cmd.ID); err != nil {
			return err
		}
	}

	return nil
}

func isDuplicateCommandError(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			msg := strings.ToLower(restErr.Message.Message)
			if strings.Contains(msg, "already exists") {
				return true
			}
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "50035") && strings.Contains(msg, "already exists")
}
