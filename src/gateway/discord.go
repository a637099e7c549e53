package gateway

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Forum and Notifier on a live session.
type Discord struct {
	session *discordgo.Session
}

var (
	_ Forum    = (*Discord)(nil)
	_ Notifier = (*Discord)(nil)
)

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) Thread(threadID string) (*discordgo.Channel, error) {
	ch, err := d.session.Channel(threadID)
	if err != nil {
		return nil, fmt.Errorf("fetch thread %s: %w", threadID, err)
	}
	return ch, nil
}

// LeadMessage relies on the forum convention that the starter message
// shares the thread's ID.
func (d *Discord) LeadMessage(threadID string) (*discordgo.Message, error) {
	msg, err := d.session.ChannelMessage(threadID, threadID)
	if err != nil {
		return nil, fmt.Errorf("fetch lead message of %s: %w", threadID, err)
	}
	return msg, nil
}

func (d *Discord) EditMessage(channelID, messageID string, embeds []*discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.Embeds = &embeds
	if components != nil {
		edit.Components = &components
	}
	if _, err := d.session.ChannelMessageEditComplex(edit); err != nil {
		return fmt.Errorf("edit message %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

func (d *Discord) StartThread(channelID, title string, message *discordgo.MessageSend, tagIDs []string) (string, error) {
	thread, err := d.session.ForumThreadStartComplex(channelID, &discordgo.ThreadStart{
		Name:        title,
		AppliedTags: tagIDs,
	}, message)
	if err != nil {
		return "", fmt.Errorf("start thread in %s: %w", channelID, err)
	}
	return thread.ID, nil
}

func (d *Discord) AvailableTags(channelID string) ([]discordgo.ForumTag, error) {
	ch, err := d.session.Channel(channelID)
	if err != nil {
		return nil, fmt.Errorf("fetch channel %s: %w", channelID, err)
	}
	return ch.AvailableTags, nil
}

func (d *Discord) SetAppliedTags(threadID string, tagIDs []string) error {
	_, err := d.session.ChannelEdit(threadID, &discordgo.ChannelEdit{AppliedTags: &tagIDs})
	if err != nil {
		return fmt.Errorf("set tags on %s: %w", threadID, err)
	}
	return nil
}

func (d *Discord) LockThread(threadID string) error {
	locked := true
	_, err := d.session.ChannelEdit(threadID, &discordgo.ChannelEdit{Locked: &locked})
	if err != nil {
		return fmt.Errorf("lock thread %s: %w", threadID, err)
	}
	return nil
}

func (d *Discord) ArchiveThread(threadID string) error {
	archived := true
	_, err := d.session.ChannelEdit(threadID, &discordgo.ChannelEdit{Archived: &archived})
	if err != nil {
		return fmt.Errorf("archive thread %s: %w", threadID, err)
	}
	return nil
}

func (d *Discord) PostMessage(threadID, content string) error {
	if _, err := d.session.ChannelMessageSend(threadID, content); err != nil {
		return fmt.Errorf("post message in %s: %w", threadID, err)
	}
	return nil
}

// NotifyUser opens (or reuses) the DM channel and sends the embed. Users
// who disallow DMs surface as ErrDMClosed.
func (d *Discord) NotifyUser(userID string, embed *discordgo.MessageEmbed) error {
	ch, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("open DM with %s: %w", userID, err)
	}
	if _, err := d.session.ChannelMessageSendEmbed(ch.ID, embed); err != nil {
		if isDMBlocked(err) {
			return ErrDMClosed
		}
		return fmt.Errorf("send DM to %s: %w", userID, err)
	}
	return nil
}

func isDMBlocked(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Message == nil {
		return false
	}
	return rest.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser
}

// IsMissingPermissions reports whether a REST call failed because the bot
// lacks the required permission, e.g. locking a thread it cannot manage.
func IsMissingPermissions(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Message == nil {
		return false
	}
	return rest.Message.Code == discordgo.ErrCodeMissingPermissions
}
